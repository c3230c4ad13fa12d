// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package validation

import (
	"fmt"
	"math"
	"net/mail"
	"net/netip"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// Kind is the value type a chain checks.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindArray  Kind = "array"
)

func (k Kind) numeric() bool {
	return k == KindInt || k == KindFloat
}

func (k Kind) stringLike() bool {
	return k == KindString || k.numeric()
}

// Chain applies rules to a single value. Every failed rule is recorded on
// the Validation the chain was created from.
type Chain struct {
	v     *Validation
	kind  Kind
	field string
	value any
}

// Value returns the checked value. Int chains hold an int64 and float
// chains a float64 once the type check passed.
func (c *Chain) Value() any {
	return c.value
}

func (c *Chain) fail(message string) {
	c.v.collect(c.field, message)
}

func (c *Chain) typeMessage(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return DefaultTypeMessage
}

// check validates the message and the chain kind of a rule.
func (c *Chain) check(rule, message string, kinds func(Kind) bool) bool {
	if message == "" {
		c.v.misuse("%s: empty message", rule)
		return false
	}
	if kinds != nil && !kinds(c.kind) {
		c.v.misuse("%s cannot be used with %s values", rule, c.kind)
		return false
	}
	return true
}

// ItRequired fails for empty values: nil, false, zero numbers, "", "0" and
// empty collections.
func (c *Chain) ItRequired(message string) *Chain {
	if c.check("ItRequired", message, nil) && isEmpty(c.value) {
		c.fail(message)
	}
	return c
}

// MinLen fails when the value is shorter than n characters, or has fewer
// than n elements.
func (c *Chain) MinLen(n int, message string) *Chain {
	if c.check("MinLen", message, nil) && length(c.value) < n {
		c.fail(message)
	}
	return c
}

// MaxLen fails when the value is longer than n characters, or has more than
// n elements.
func (c *Chain) MaxLen(n int, message string) *Chain {
	if c.check("MaxLen", message, nil) && length(c.value) > n {
		c.fail(message)
	}
	return c
}

// Equals fails unless the value is identical to want.
func (c *Chain) Equals(want any, message string) *Chain {
	if c.check("Equals", message, nil) && !c.identical(want) {
		c.fail(message)
	}
	return c
}

// NotEquals fails when the value is identical to want.
func (c *Chain) NotEquals(want any, message string) *Chain {
	if c.check("NotEquals", message, nil) && c.identical(want) {
		c.fail(message)
	}
	return c
}

func (c *Chain) identical(want any) bool {
	if c.kind.numeric() {
		if nw, ok := normalize(c.kind, want); ok {
			want = nw
		}
	}
	return reflect.DeepEqual(c.value, want)
}

// Callback fails when fn returns false.
func (c *Chain) Callback(fn func(value any) bool, message string) *Chain {
	if !c.check("Callback", message, nil) {
		return c
	}
	if fn == nil {
		c.v.misuse("Callback: nil function")
		return c
	}
	if !fn(c.value) {
		c.fail(message)
	}
	return c
}

// Regexp fails when the value does not match pattern.
func (c *Chain) Regexp(pattern string, message string) *Chain {
	if !c.check("Regexp", message, Kind.stringLike) {
		return c
	}
	re, err := regexp.Compile(pattern)
	if err != nil || pattern == "" {
		c.v.misuse("Regexp: invalid pattern %q", pattern)
		return c
	}
	if !re.MatchString(text(c.value)) {
		c.fail(message)
	}
	return c
}

// InArray fails unless the value loosely equals one of values.
func (c *Chain) InArray(values []any, message string) *Chain {
	if !c.check("InArray", message, Kind.stringLike) {
		return c
	}
	if len(values) == 0 {
		c.v.misuse("InArray: empty values")
		return c
	}
	if !looselyContains(values, c.value) {
		c.fail(message)
	}
	return c
}

// NotInArray fails when the value loosely equals one of values.
func (c *Chain) NotInArray(values []any, message string) *Chain {
	if !c.check("NotInArray", message, Kind.stringLike) {
		return c
	}
	if len(values) == 0 {
		c.v.misuse("NotInArray: empty values")
		return c
	}
	if looselyContains(values, c.value) {
		c.fail(message)
	}
	return c
}

// MinValue fails when the value is below min.
func (c *Chain) MinValue(min float64, message string) *Chain {
	if c.check("MinValue", message, Kind.numeric) && number(c.value) < min {
		c.fail(message)
	}
	return c
}

// MaxValue fails when the value is above max.
func (c *Chain) MaxValue(max float64, message string) *Chain {
	if c.check("MaxValue", message, Kind.numeric) && number(c.value) > max {
		c.fail(message)
	}
	return c
}

// Phone fails unless the value holds 10 to 12 digits.
func (c *Chain) Phone(message string) *Chain {
	if c.check("Phone", message, Kind.stringLike) && !IsPhone(text(c.value)) {
		c.fail(message)
	}
	return c
}

// Email fails unless the value is a bare email address.
func (c *Chain) Email(message string) *Chain {
	if c.check("Email", message, Kind.stringLike) && !IsEmail(text(c.value)) {
		c.fail(message)
	}
	return c
}

// IPAddress fails unless the value is an IPv4 or IPv6 address.
func (c *Chain) IPAddress(message string) *Chain {
	if c.check("IPAddress", message, Kind.stringLike) && !IsIPAddress(text(c.value)) {
		c.fail(message)
	}
	return c
}

// IsPhone reports whether s holds 10 to 12 digits.
func IsPhone(s string) bool {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n >= 10 && n <= 12
}

// IsEmail reports whether s is a bare address with a dotted domain.
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".") && !strings.HasPrefix(domain, ".")
}

// IsIPAddress reports whether s is an IPv4 or IPv6 address.
func IsIPAddress(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Zone() == ""
}

// normalize converts value into the chain representation and reports
// whether it has the chain type. nil always passes.
func normalize(kind Kind, value any) (any, bool) {
	if value == nil {
		return nil, true
	}
	switch kind {
	case KindString:
		if _, ok := value.(string); ok || isNumber(value) || isEmpty(value) {
			return value, true
		}
	case KindInt:
		if !isNumber(value) {
			return value, false
		}
		switch value.(type) {
		case string, float32, float64:
			f := number(value)
			if f != math.Trunc(f) {
				return value, false
			}
			return int64(f), true
		}
		i, err := cast.ToInt64E(value)
		return i, err == nil
	case KindFloat:
		if !isNumber(value) {
			return value, false
		}
		return number(value), true
	case KindBool:
		_, ok := value.(bool)
		return value, ok
	case KindArray:
		switch reflect.TypeOf(value).Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return value, true
		}
	}
	return value, false
}

// isNumber reports whether v is a number or a numeric string.
func isNumber(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case string:
		_, err := cast.ToFloat64E(strings.TrimSpace(t))
		return err == nil && strings.TrimSpace(t) != ""
	}
	return false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		return t == "" || t == "0"
	}
	if isNumber(v) {
		return number(v) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func number(v any) float64 {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	return cast.ToFloat64(v)
}

func text(v any) string {
	if v == nil {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

func length(v any) int {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	}
	return utf8.RuneCountInString(text(v))
}

// looselyContains compares numbers by value and everything else by text.
func looselyContains(values []any, v any) bool {
	for _, want := range values {
		if isNumber(want) && isNumber(v) {
			if number(want) == number(v) {
				return true
			}
			continue
		}
		if text(want) == text(v) {
			return true
		}
	}
	return false
}

// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rules

import (
	"regexp"

	"go.chromium.org/luci/common/errors"
)

// ConditionKind names a field condition.
type ConditionKind string

const (
	KindItRequired ConditionKind = "itRequired"
	KindMinLen     ConditionKind = "minLen"
	KindMaxLen     ConditionKind = "maxLen"
	KindMinValue   ConditionKind = "minValue"
	KindMaxValue   ConditionKind = "maxValue"
	KindEquals     ConditionKind = "equals"
	KindNotEquals  ConditionKind = "notEquals"
	KindRegexp     ConditionKind = "regexp"
	KindInArray    ConditionKind = "inArray"
	KindNotInArray ConditionKind = "notInArray"
	KindPhone      ConditionKind = "phone"
	KindEmail      ConditionKind = "email"
	KindIPAddress  ConditionKind = "ipAddress"
	KindCallback   ConditionKind = "callback"
)

// CheckFunc is a custom field check. data holds every validated value.
// Returning an error reports a generic failure for the field.
type CheckFunc func(value any, data map[string]any) (bool, error)

// Condition is a single check of a Field.
type Condition struct {
	Kind    ConditionKind
	Value   any
	Message string

	check CheckFunc
}

// WithMessage returns the condition with a custom failure message.
func (c Condition) WithMessage(message string) Condition {
	c.Message = message
	return c
}

// ItRequired fails for empty values.
func ItRequired() Condition { return Condition{Kind: KindItRequired} }

// MinLen fails for values shorter than n.
func MinLen(n int) Condition { return Condition{Kind: KindMinLen, Value: n} }

// MaxLen fails for values longer than n.
func MaxLen(n int) Condition { return Condition{Kind: KindMaxLen, Value: n} }

// MinValue fails for numbers below n.
func MinValue(n float64) Condition { return Condition{Kind: KindMinValue, Value: n} }

// MaxValue fails for numbers above n.
func MaxValue(n float64) Condition { return Condition{Kind: KindMaxValue, Value: n} }

// Equals fails unless the value is identical to v.
func Equals(v any) Condition { return Condition{Kind: KindEquals, Value: v} }

// NotEquals fails when the value is identical to v.
func NotEquals(v any) Condition { return Condition{Kind: KindNotEquals, Value: v} }

// Regexp fails when the value does not match pattern.
func Regexp(pattern string) Condition { return Condition{Kind: KindRegexp, Value: pattern} }

// InArray fails unless the value is one of values.
func InArray(values ...any) Condition { return Condition{Kind: KindInArray, Value: values} }

// NotInArray fails when the value is one of values.
func NotInArray(values ...any) Condition { return Condition{Kind: KindNotInArray, Value: values} }

// IsPhone fails unless the value is a phone number.
func IsPhone() Condition { return Condition{Kind: KindPhone} }

// IsEmail fails unless the value is an email address.
func IsEmail() Condition { return Condition{Kind: KindEmail} }

// IsIPAddress fails unless the value is an IP address.
func IsIPAddress() Condition { return Condition{Kind: KindIPAddress} }

// Callback runs fn against the value. Unlike other conditions it can be
// added to a field more than once.
func Callback(fn CheckFunc) Condition { return Condition{Kind: KindCallback, check: fn} }

// validate checks the condition value matches its kind.
func (c Condition) validate() error {
	ok := true
	switch c.Kind {
	case KindItRequired, KindEquals, KindNotEquals, KindPhone, KindEmail, KindIPAddress:
	case KindMinLen, KindMaxLen:
		_, ok = c.Value.(int)
	case KindMinValue, KindMaxValue:
		_, ok = c.Value.(float64)
	case KindRegexp:
		var pattern string
		if pattern, ok = c.Value.(string); ok {
			_, err := regexp.Compile(pattern)
			ok = err == nil && pattern != ""
		}
	case KindInArray, KindNotInArray:
		var values []any
		values, ok = c.Value.([]any)
		ok = ok && len(values) > 0
	case KindCallback:
		ok = c.check != nil
	default:
		return errors.Annotate(ErrInvalidRule, "unknown condition %q", c.Kind).Err()
	}
	if !ok {
		return errors.Annotate(ErrInvalidRule, "invalid %s condition value %v", c.Kind, c.Value).Err()
	}
	return nil
}

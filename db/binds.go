// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"database/sql/driver"
	"reflect"
	"strings"
	"time"

	"go.chromium.org/luci/common/errors"
)

// Binds maps placeholder names to values. Names may be given with or
// without the leading ':'.
//
// A value is nil, a bool, a number, a string, a []byte, a time.Time, a
// driver.Valuer or a non-empty slice of those. A slice bound to :p is
// expanded into the list :p0,:p1,... so it can be used as `IN (:p)`.
type Binds map[string]any

// Merge copies the binds of other into b, keeping the values already in b.
func (b Binds) Merge(other Binds) Binds {
	if b == nil {
		b = Binds{}
	}
	for k, v := range other {
		k = normalizePlaceholder(k)
		if _, ok := b[k]; !ok {
			b[k] = v
		}
	}
	return b
}

// Has reports whether a placeholder is bound.
func (b Binds) Has(name string) bool {
	_, ok := b[normalizePlaceholder(name)]
	return ok
}

func normalizePlaceholder(name string) string {
	if strings.HasPrefix(name, ":") {
		return name
	}
	return ":" + name
}

// normalizeBind validates a bind value and converts it into what the driver
// receives. Booleans become 0/1 and slices become []any.
func normalizeBind(name string, v any) (any, error) {
	if scalar, ok := normalizeScalar(v); ok {
		return scalar, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, invalidArgf("invalid bind value of %s: %T should be scalar or slice", name, v)
	}
	if rv.Len() == 0 {
		return nil, invalidArgf("slice bind value of %s has to be not empty", name)
	}
	out := make([]any, rv.Len())
	for i := range out {
		el := rv.Index(i).Interface()
		scalar, ok := normalizeScalar(el)
		if !ok {
			return nil, invalidArgf("invalid bind value %s -> %d: %T should be scalar", name, i, el)
		}
		out[i] = scalar
	}
	return out, nil
}

func normalizeScalar(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, string, []byte, time.Time, driver.Valuer:
		return v, true
	}
	return nil, false
}

// compileNamed rewrites named placeholders into driver '?' placeholders and
// returns the positional arguments. Text inside quotes, back-quotes and
// comments is left untouched.
func compileNamed(query string, binds Binds) (string, []any, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.Grow(len(query))
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		if quote != 0 {
			sb.WriteByte(c)
			switch {
			case c == '\\' && quote != '`' && i+1 < len(query):
				i++
				sb.WriteByte(query[i])
			case c == quote:
				quote = 0
			}
			continue
		}
		if end := commentEnd(query, i); end > i {
			sb.WriteString(query[i:end])
			i = end - 1
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			sb.WriteByte(c)
		case c == ':' && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			name := query[i:j]
			v, ok := binds[name]
			if !ok {
				return "", nil, errors.Annotate(ErrInvalidArgument, "no value bound to %s", name).Err()
			}
			if list, ok := v.([]any); ok {
				for k, el := range list {
					if k > 0 {
						sb.WriteByte(',')
					}
					sb.WriteByte('?')
					args = append(args, el)
				}
			} else {
				sb.WriteByte('?')
				args = append(args, v)
			}
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), args, nil
}

// commentEnd returns the end of the comment starting at query[i], or i when
// no comment starts there. "-- " and "#" comments run to the end of the line.
func commentEnd(query string, i int) int {
	rest := query[i:]
	switch {
	case rest[0] == '#',
		strings.HasPrefix(rest, "--") && (len(rest) == 2 || rest[2] == ' ' || rest[2] == '\t' || rest[2] == '\n' || rest[2] == '\r'):
		if n := strings.IndexByte(rest, '\n'); n >= 0 {
			return i + n
		}
		return len(query)
	case strings.HasPrefix(rest, "/*"):
		if n := strings.Index(rest[2:], "*/"); n >= 0 {
			return i + 2 + n + 2
		}
		return len(query)
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}


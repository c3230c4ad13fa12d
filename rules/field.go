// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package rules

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"go.chromium.org/luci/common/errors"

	"github.com/pobratym/EDMo/validation"
)

// ValueType is the type a Field value must have.
type ValueType string

const (
	TypeBool      ValueType = "bool"
	TypeEmail     ValueType = "email"
	TypePhone     ValueType = "phone"
	TypeFloat     ValueType = "float"
	TypeInt       ValueType = "int"
	TypeIPAddress ValueType = "ip_address"
	TypeString    ValueType = "string"
	TypeArray     ValueType = "array"
	TypeAny       ValueType = "any"
)

// DefaultMessage is reported when a value has the wrong type.
const DefaultMessage = "Invalid value"

const callbackFailure = "Unknown error, please, try again"

// Field is the type and the conditions of a single field.
type Field struct {
	name    string
	typ     ValueType
	conds   []Condition
	message string
	err     error
}

// NewField returns a field of type typ. Repeating a condition kind other
// than KindCallback is an error reported by Rules.Validate.
func NewField(typ ValueType, conds ...Condition) *Field {
	f := &Field{typ: typ, message: DefaultMessage}
	switch typ {
	case TypeBool, TypeEmail, TypePhone, TypeFloat, TypeInt, TypeIPAddress, TypeString, TypeArray, TypeAny:
	default:
		f.err = errors.Annotate(ErrInvalidRule, "invalid value type %q", typ).Err()
		return f
	}
	seen := map[ConditionKind]bool{}
	for _, c := range conds {
		if c.Kind != KindCallback && seen[c.Kind] {
			f.err = errors.Annotate(ErrInvalidRule, "there are duplicated %s conditions", c.Kind).Err()
			return f
		}
		if err := c.validate(); err != nil {
			f.err = err
			return f
		}
		seen[c.Kind] = true
	}
	f.conds = conds
	return f
}

// Int is an integer field.
func Int(conds ...Condition) *Field { return NewField(TypeInt, conds...) }

// Email is an email address field.
func Email(conds ...Condition) *Field { return NewField(TypeEmail, conds...) }

// Phone is a phone number field.
func Phone(conds ...Condition) *Field { return NewField(TypePhone, conds...) }

// Float is a number field.
func Float(conds ...Condition) *Field { return NewField(TypeFloat, conds...) }

// Bool is a boolean field.
func Bool(conds ...Condition) *Field { return NewField(TypeBool, conds...) }

// IPAddress is an IPv4 or IPv6 address field.
func IPAddress(conds ...Condition) *Field { return NewField(TypeIPAddress, conds...) }

// String is a text field.
func String(conds ...Condition) *Field { return NewField(TypeString, conds...) }

// Array is a list field.
func Array(conds ...Condition) *Field { return NewField(TypeArray, conds...) }

// Any accepts a value of any type.
func Any(conds ...Condition) *Field { return NewField(TypeAny, conds...) }

// ID is a required positive integer.
func ID() *Field {
	return Int(ItRequired(), MinValue(1))
}

// Message sets the type error message.
func (f *Field) Message(message string) *Field {
	if message == "" {
		f.err = errors.Annotate(ErrInvalidRule, "empty message").Err()
		return f
	}
	f.message = message
	return f
}

// Name returns the field name given by Rules.Add.
func (f *Field) Name() string { return f.name }

// Type returns the value type.
func (f *Field) Type() ValueType { return f.typ }

// Conditions returns the field conditions.
func (f *Field) Conditions() []Condition { return f.conds }

// Err returns the configuration error of the field.
func (f *Field) Err() error { return f.err }

// Check validates value and records failures on v.
func (f *Field) Check(value any, data map[string]any, v *validation.Validation) {
	chain := f.typed(value, v)
	name := f.name

	for _, c := range f.conds {
		switch c.Kind {
		case KindItRequired:
			chain.ItRequired(msg(c, "`%s` is required", name))
			continue
		case KindCallback:
			ok, err := c.check(value, data)
			switch {
			case err != nil:
				v.AddError(name, callbackFailure)
			case !ok && !v.IsErrorExist(name):
				v.AddError(name, msg(c, "`%s` is invalid", name))
			}
			continue
		}

		// The rest is optional and skipped for missing values.
		if value == nil {
			continue
		}
		switch c.Kind {
		case KindMinLen:
			chain.MinLen(c.Value.(int), msg(c, "`%s` is too short", name))
		case KindMaxLen:
			chain.MaxLen(c.Value.(int), msg(c, "`%s` is too long", name))
		case KindMinValue:
			chain.MinValue(c.Value.(float64), msg(c, "`%s` is too small", name))
		case KindMaxValue:
			chain.MaxValue(c.Value.(float64), msg(c, "`%s` is too big", name))
		case KindEquals:
			chain.Equals(c.Value, msg(c, "`%s` has not expected value", name))
		case KindNotEquals:
			chain.NotEquals(c.Value, msg(c, "`%s` has not expected value", name))
		case KindRegexp:
			chain.Regexp(c.Value.(string), msg(c, "`%s` has not expected value", name))
		case KindInArray:
			chain.InArray(c.Value.([]any), msg(c, "`%s` has not expected value", name))
		case KindNotInArray:
			chain.NotInArray(c.Value.([]any), msg(c, "`%s` has not expected value", name))
		case KindPhone:
			chain.Phone(msg(c, "`%s` is invalid", name))
		case KindEmail:
			chain.Email(msg(c, "`%s` is invalid", name))
		case KindIPAddress:
			chain.IPAddress(msg(c, "`%s` is invalid", name))
		}
	}
}

// typed starts the validation chain matching the field type.
func (f *Field) typed(value any, v *validation.Validation) *validation.Chain {
	switch f.typ {
	case TypeBool:
		return v.Bool(value, f.name, f.message)
	case TypeFloat:
		return v.Float(value, f.name, f.message)
	case TypeInt:
		return v.Int(value, f.name, f.message)
	case TypeArray:
		return v.Array(value, f.name, f.message)
	case TypeIPAddress:
		return v.IPAddress(value, f.name, f.message)
	case TypePhone:
		return v.Phone(value, f.name, f.message)
	case TypeEmail:
		return v.Email(value, f.name, f.message)
	case TypeAny:
		return f.anyTyped(value, v)
	default:
		return v.String(value, f.name, f.message)
	}
}

func (f *Field) anyTyped(value any, v *validation.Validation) *validation.Chain {
	if value == nil {
		return v.String(value, f.name, f.message)
	}
	switch value.(type) {
	case bool:
		return v.Bool(value, f.name, f.message)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v.Int(value, f.name, f.message)
	case float32, float64:
		return v.Float(value, f.name, f.message)
	case string:
		if _, err := cast.ToFloat64E(strings.TrimSpace(value.(string))); err == nil {
			return v.Float(value, f.name, f.message)
		}
		return v.String(value, f.name, f.message)
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Array(value, f.name, f.message)
	}
	// Anything else fails the string type check.
	return v.String(value, f.name, f.message)
}

func msg(c Condition, format, name string) string {
	if c.Message != "" {
		return c.Message
	}
	return fmt.Sprintf(format, name)
}

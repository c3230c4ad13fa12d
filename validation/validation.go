// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package validation checks values against chains of rules and collects the
// failures by field name.
//
//	v := validation.New()
//	v.String(name, "name").ItRequired("Name is required").MaxLen(64, "Name is too long")
//	v.Int(age, "age").MinValue(18, "Too young")
//	if err := v.Err(); err != nil {
//		return err
//	}
package validation

import (
	"strings"

	"github.com/hashicorp/go-multierror"

	"go.chromium.org/luci/common/errors"
)

// DefaultTypeMessage is reported when a value does not have the chain type.
const DefaultTypeMessage = "Data type error"

// ErrConfig is returned for rules that cannot be applied, such as an invalid
// pattern or an empty message.
var ErrConfig = errors.New("invalid validation rule")

// FieldError is a failed rule. Field is empty for unnamed values.
type FieldError struct {
	Field   string
	Message string
}

// Error is the set of failures of a validation run.
type Error struct {
	Errors []FieldError
}

// Error returns the first message.
func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if f := e.Errors[0].Field; f != "" {
		return f + ": " + e.Errors[0].Message
	}
	return e.Errors[0].Message
}

// Map returns the messages keyed by field. Unnamed failures are dropped.
func (e *Error) Map() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Field != "" {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// Validation collects the failures of every chain created from it.
type Validation struct {
	errors []FieldError
	config *multierror.Error
}

// New returns an empty validation.
func New() *Validation {
	return &Validation{}
}

func (v *Validation) collect(field, message string) {
	if field != "" {
		for i := range v.errors {
			if v.errors[i].Field == field {
				v.errors[i].Message = message
				return
			}
		}
	}
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

func (v *Validation) misuse(format string, args ...any) {
	v.config = multierror.Append(v.config, errors.Annotate(ErrConfig, format, args...).Err())
}

// AddError records a failure for a field, replacing its previous message.
func (v *Validation) AddError(field, message string) *Validation {
	switch {
	case field == "":
		v.misuse("AddError: empty field name")
	case message == "":
		v.misuse("AddError: empty message for %q", field)
	default:
		v.collect(field, message)
	}
	return v
}

// Errors returns the failures in the order they happened.
func (v *Validation) Errors() []FieldError {
	out := make([]FieldError, len(v.errors))
	copy(out, v.errors)
	return out
}

// FirstError returns the first failure message, or "".
func (v *Validation) FirstError() string {
	if len(v.errors) == 0 {
		return ""
	}
	return v.errors[0].Message
}

// FirstErrorField returns the field of the first failure. ok is false when
// there is no failure.
func (v *Validation) FirstErrorField() (field string, ok bool) {
	if len(v.errors) == 0 {
		return "", false
	}
	return v.errors[0].Field, true
}

// IsValid reports whether no rule failed.
func (v *Validation) IsValid() bool {
	return len(v.errors) == 0
}

// IsErrorExist reports whether a field has a failure.
func (v *Validation) IsErrorExist(field string) bool {
	for _, fe := range v.errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Err returns the failures as *Error, or nil when every rule passed.
func (v *Validation) Err() error {
	if v.IsValid() {
		return nil
	}
	return &Error{Errors: v.Errors()}
}

// ConfigErr returns the rules that could not be applied.
func (v *Validation) ConfigErr() error {
	return v.config.ErrorOrNil()
}

func (v *Validation) chain(kind Kind, value any, args []string) *Chain {
	field, message := "", DefaultTypeMessage
	if len(args) > 0 {
		field = args[0]
	}
	if len(args) > 1 {
		message = args[1]
	}
	c := &Chain{v: v, kind: kind, field: field}
	if strings.TrimSpace(message) == "" {
		v.misuse("%s: empty type message", kind)
		return c
	}
	nv, ok := normalize(kind, value)
	c.value = nv
	if !ok {
		c.fail(message)
	}
	return c
}

// String starts a chain for a string value. Numbers are accepted too.
// fieldAndMessage optionally names the field and the type error message.
func (v *Validation) String(value any, fieldAndMessage ...string) *Chain {
	return v.chain(KindString, value, fieldAndMessage)
}

// Int starts a chain for an integer value. Numeric strings and integral
// floats are accepted.
func (v *Validation) Int(value any, fieldAndMessage ...string) *Chain {
	return v.chain(KindInt, value, fieldAndMessage)
}

// Float starts a chain for a number.
func (v *Validation) Float(value any, fieldAndMessage ...string) *Chain {
	return v.chain(KindFloat, value, fieldAndMessage)
}

// Bool starts a chain for a bool.
func (v *Validation) Bool(value any, fieldAndMessage ...string) *Chain {
	return v.chain(KindBool, value, fieldAndMessage)
}

// Array starts a chain for a slice, array or map.
func (v *Validation) Array(value any, fieldAndMessage ...string) *Chain {
	return v.chain(KindArray, value, fieldAndMessage)
}

// Email starts a string chain which also checks the value is an email.
// A nil value is not checked, like with every other chain type.
func (v *Validation) Email(value any, fieldAndMessage ...string) *Chain {
	c := v.chain(KindString, value, fieldAndMessage)
	if value == nil {
		return c
	}
	return c.Email(c.typeMessage(fieldAndMessage))
}

// IPAddress starts a string chain which also checks the value is an IP.
func (v *Validation) IPAddress(value any, fieldAndMessage ...string) *Chain {
	c := v.chain(KindString, value, fieldAndMessage)
	if value == nil {
		return c
	}
	return c.IPAddress(c.typeMessage(fieldAndMessage))
}

// Phone starts a string chain which also checks the value is a phone number.
func (v *Validation) Phone(value any, fieldAndMessage ...string) *Chain {
	c := v.chain(KindString, value, fieldAndMessage)
	if value == nil {
		return c
	}
	return c.Phone(c.typeMessage(fieldAndMessage))
}

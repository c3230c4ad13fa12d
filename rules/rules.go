// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package rules declares per-field validation rules and checks maps of
// values against them.
package rules

import (
	"github.com/hashicorp/go-multierror"

	"go.chromium.org/luci/common/errors"

	"github.com/pobratym/EDMo/validation"
)

// ErrInvalidRule is returned for rule sets that cannot be applied.
var ErrInvalidRule = errors.New("invalid rule")

// Rules is an ordered set of named fields.
type Rules struct {
	names  []string
	fields map[string]*Field
	err    *multierror.Error
}

// New returns an empty rule set.
func New() *Rules {
	return &Rules{fields: map[string]*Field{}}
}

// Add sets the rules of a field, replacing the previous ones.
func (r *Rules) Add(name string, f *Field) *Rules {
	if name == "" {
		r.err = multierror.Append(r.err, errors.Annotate(ErrInvalidRule, "empty field name").Err())
		return r
	}
	if f == nil {
		r.err = multierror.Append(r.err, errors.Annotate(ErrInvalidRule, "nil field %q", name).Err())
		return r
	}
	if f.err != nil {
		r.err = multierror.Append(r.err, errors.Annotate(f.err, "field %q", name).Err())
	}
	if r.fields == nil {
		r.fields = map[string]*Field{}
	}
	cp := *f
	cp.name = name
	if _, ok := r.fields[name]; !ok {
		r.names = append(r.names, name)
	}
	r.fields[name] = &cp
	return r
}

// Only returns the rules of the named fields which exist in r.
func (r *Rules) Only(names ...string) *Rules {
	out := New()
	if r.err != nil {
		out.err = &multierror.Error{Errors: append([]error(nil), r.err.Errors...)}
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}
	for _, n := range r.names {
		if keep[n] {
			out.names = append(out.names, n)
			out.fields[n] = r.fields[n]
		}
	}
	return out
}

// FieldExists reports whether a field has rules.
func (r *Rules) FieldExists(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Field returns the rules of a field.
func (r *Rules) Field(name string) (*Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Names returns the field names in the order they were added.
func (r *Rules) Names() []string {
	return append([]string(nil), r.names...)
}

// Err returns the configuration errors collected by Add.
func (r *Rules) Err() error {
	return r.err.ErrorOrNil()
}

// Len returns the number of fields.
func (r *Rules) Len() int {
	return len(r.names)
}

// Validate checks data against every field. Missing keys are validated as
// nil. The returned error is set only when the rules themselves are broken;
// value failures are reported by the returned Validation.
func (r *Rules) Validate(data map[string]any) (*validation.Validation, error) {
	v := validation.New()
	if err := r.err.ErrorOrNil(); err != nil {
		return v, err
	}
	for _, n := range r.names {
		r.fields[n].Check(data[n], data, v)
	}
	if err := v.ConfigErr(); err != nil {
		return v, errors.Annotate(ErrInvalidRule, "%s", err).Err()
	}
	return v, nil
}

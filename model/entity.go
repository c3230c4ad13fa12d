// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import (
	"sort"

	"github.com/spf13/cast"
)

// Record is implemented by every type embedding *Entity.
type Record interface {
	Base() *Entity
}

// Entity is a property bag holding the values of a single row.
//
// A new entity is novice until it is loaded from or saved to the database.
type Entity struct {
	data   map[string]any
	novice bool
}

// NewEntity returns a novice entity holding a copy of data.
func NewEntity(data map[string]any) *Entity {
	e := &Entity{data: make(map[string]any, len(data)), novice: true}
	for k, v := range data {
		e.data[k] = v
	}
	return e
}

// Base returns e. It lets records embedding *Entity satisfy Record.
func (e *Entity) Base() *Entity {
	return e
}

// Get returns the value of a property, or nil when it is not set.
func (e *Entity) Get(name string) any {
	return e.data[name]
}

// Set sets a property.
func (e *Entity) Set(name string, value any) *Entity {
	if e.data == nil {
		e.data = map[string]any{}
	}
	e.data[name] = value
	return e
}

// Unset removes a property.
func (e *Entity) Unset(name string) *Entity {
	delete(e.data, name)
	return e
}

// Has reports whether a property is set, even to nil.
func (e *Entity) Has(name string) bool {
	_, ok := e.data[name]
	return ok
}

// String returns a property converted to a string.
func (e *Entity) String(name string) string {
	return cast.ToString(e.data[name])
}

// Int64 returns a property converted to an int64, 0 when it does not
// convert.
func (e *Entity) Int64(name string) int64 {
	switch v := e.data[name].(type) {
	case string:
		// Decimal only; cast treats a leading zero as octal.
		if f, err := cast.ToFloat64E(v); err == nil {
			return int64(f)
		}
		return 0
	default:
		return cast.ToInt64(v)
	}
}

// Float64 returns a property converted to a float64.
func (e *Entity) Float64(name string) float64 {
	return cast.ToFloat64(e.data[name])
}

// Bool returns a property converted to a bool. "1", "t" and "true" are true.
func (e *Entity) Bool(name string) bool {
	return cast.ToBool(e.data[name])
}

// Data returns a copy of every property.
func (e *Entity) Data() map[string]any {
	out := make(map[string]any, len(e.data))
	for k, v := range e.data {
		out[k] = v
	}
	return out
}

// Properties returns the names of the set properties in name order.
func (e *Entity) Properties() []string {
	names := make([]string, 0, len(e.data))
	for k := range e.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsNovice reports whether the entity was never loaded or saved.
func (e *Entity) IsNovice() bool {
	return e.novice
}

func (e *Entity) markSaved()   { e.novice = false }
func (e *Entity) markDeleted() { e.novice = true }

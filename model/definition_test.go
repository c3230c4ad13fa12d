// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"go.chromium.org/luci/common/errors"

	"github.com/pobratym/EDMo/rules"
)

func TestDefinitionNormalized(t *testing.T) {
	t.Parallel()

	d, err := Definition{
		TableName:  "posts",
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "title", Types: []ColumnType{TypeString}, Length: 64},
		},
	}.normalized()
	assert.NoError(t, err)
	assert.Equal(t, "posts", d.JoinedTables)
	if diff := cmp.Diff([]Column{
		{Name: "title", Types: []ColumnType{TypeString}, Length: 64},
		{Name: "id"},
	}, d.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"title", "id"}, d.selectExprs())

	joined, err := Definition{
		TableName:    "posts",
		JoinedTables: "posts p JOIN users u ON u.id = p.user_id",
		UniqueKeys:   []string{"id"},
		Columns:      []Column{{Name: "id"}, {Name: "title"}},
		JoinedColumns: []JoinedColumn{
			{Property: "id", Column: "p.id"},
			{Property: "title"},
			{Property: "author", Column: "u.name"},
		},
	}.normalized()
	assert.NoError(t, err)
	assert.Equal(t, []string{"p.id AS id", "title", "u.name AS author"}, joined.selectExprs())
	assert.Equal(t, "u.name", joined.sourceOf("author"))
	assert.Equal(t, "title", joined.sourceOf("title"))
	assert.Equal(t, "missing", joined.sourceOf("missing"))
}

func TestDefinitionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{
			name: "joined table name",
			def:  Definition{TableName: "a JOIN b", Columns: []Column{{Name: "id"}}},
			want: "has to be a single table",
		},
		{
			name: "table list",
			def:  Definition{TableName: "a,b", Columns: []Column{{Name: "id"}}},
			want: "has to be a single table",
		},
		{
			name: "no columns",
			def:  Definition{TableName: "a"},
			want: "Columns were not set",
		},
		{
			name: "both key kinds",
			def:  Definition{TableName: "a", PrimaryKey: "id", UniqueKeys: []string{"x"}, Columns: []Column{{Name: "id"}}},
			want: "mutually exclusive",
		},
		{
			name: "duplicated column",
			def:  Definition{TableName: "a", Columns: []Column{{Name: "id"}, {Name: "id"}}},
			want: "declared twice",
		},
		{
			name: "unknown type",
			def:  Definition{TableName: "a", Columns: []Column{{Name: "id", Types: []ColumnType{"uuid"}}}},
			want: "unknown type",
		},
		{
			name: "broken rules",
			def: Definition{
				TableName: "a",
				Columns:   []Column{{Name: "id"}},
				Rules:     rules.New().Add("id", rules.Int(rules.MinLen(1), rules.MinLen(2))),
			},
			want: "rules",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.def.normalized()
			assert.True(t, errors.Is(err, ErrInvalidModel))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseColumn(t *testing.T) {
	t.Parallel()

	col, err := ParseColumn("note", "string|null|255")
	assert.NoError(t, err)
	assert.Equal(t, Column{Name: "note", Types: []ColumnType{TypeString, TypeNull}, Length: 255}, col)
	assert.True(t, col.Nullable())

	col, err = ParseColumn("id", "int")
	assert.NoError(t, err)
	assert.False(t, col.Nullable())

	_, err = ParseColumn("id", "integer")
	assert.ErrorContains(t, err, `unknown type "integer"`)
}

func TestCheckValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		col     Column
		in      any
		want    any
		wantErr string
	}{
		{"untyped", Column{Name: "x"}, []int{1}, []int{1}, ""},
		{"bool word", Column{Name: "x", Types: []ColumnType{TypeBool}}, "on", 1, ""},
		{"bool false", Column{Name: "x", Types: []ColumnType{TypeBool}}, false, 0, ""},
		{"bool number", Column{Name: "x", Types: []ColumnType{TypeBool}}, 2, nil, "Invalid property `x` value"},
		{"int string", Column{Name: "x", Types: []ColumnType{TypeInt}}, "12", "12", ""},
		{"not int", Column{Name: "x", Types: []ColumnType{TypeInt}}, "1.5", nil, "Invalid property `x` value"},
		{"float", Column{Name: "x", Types: []ColumnType{TypeFloat}}, 1.5, 1.5, ""},
		{"long string", Column{Name: "x", Types: []ColumnType{TypeString}, Length: 3}, "abcd", nil, "Property length is over allowed value"},
		{"email", Column{Name: "x", Types: []ColumnType{TypeEmail}}, "a@example.com", "a@example.com", ""},
		{"bad email", Column{Name: "x", Types: []ColumnType{TypeEmail}}, "a@", nil, "Invalid property `x` value"},
		{"ip", Column{Name: "x", Types: []ColumnType{TypeIPAddress}}, "::1", "::1", ""},
		{"int or string", Column{Name: "x", Types: []ColumnType{TypeInt, TypeString}}, "abc", "abc", ""},
		{"null only", Column{Name: "x", Types: []ColumnType{TypeNull}}, 1, nil, "Invalid property `x` value"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := checkValue(tt.col, tt.in)
			if tt.wantErr != "" {
				assert.True(t, errors.Is(err, ErrInvalidValue))
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntity(t *testing.T) {
	t.Parallel()

	e := NewEntity(map[string]any{"id": "12", "score": "2.5", "active": "1"})
	assert.True(t, e.IsNovice())
	assert.Equal(t, int64(12), e.Int64("id"))
	assert.Equal(t, 2.5, e.Float64("score"))
	assert.True(t, e.Bool("active"))
	assert.Equal(t, "12", e.String("id"))

	e.Set("name", nil)
	assert.True(t, e.Has("name"))
	assert.Nil(t, e.Get("name"))
	e.Unset("name")
	assert.False(t, e.Has("name"))
	assert.Equal(t, []string{"active", "id", "score"}, e.Properties())

	data := e.Data()
	data["id"] = 1
	assert.Equal(t, "12", e.Get("id"))

	var zero Entity
	zero.Set("a", 1)
	assert.Equal(t, 1, zero.Get("a"))
}

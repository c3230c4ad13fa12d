// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import (
	"context"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/pobratym/EDMo/db"
	"github.com/pobratym/EDMo/rules"
)

// ColumnType is a type a column value may have.
type ColumnType string

const (
	TypeBool      ColumnType = "bool"
	TypeNull      ColumnType = "null"
	TypeInt       ColumnType = "int"
	TypeFloat     ColumnType = "float"
	TypeString    ColumnType = "string"
	TypeIPAddress ColumnType = "ip_address"
	TypeEmail     ColumnType = "email"
)

func (t ColumnType) valid() bool {
	switch t {
	case TypeBool, TypeNull, TypeInt, TypeFloat, TypeString, TypeIPAddress, TypeEmail:
		return true
	}
	return false
}

// Column is a writable table column.
//
// A value fits the column when any of its Types accepts it. A column without
// types accepts any value. Length limits the length of string values.
type Column struct {
	Name   string
	Types  []ColumnType
	Length int
}

// Nullable reports whether the column accepts NULL.
func (c Column) Nullable() bool {
	for _, t := range c.Types {
		if t == TypeNull {
			return true
		}
	}
	return false
}

// ParseColumn parses the "type|length" shorthand, e.g. "string|50" or
// "int|null".
func ParseColumn(name, shorthand string) (Column, error) {
	col := Column{Name: name}
	for _, part := range strings.Split(shorthand, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			if n < 0 {
				return Column{}, invalidModelf("column %q: negative length %d", name, n)
			}
			col.Length = n
			continue
		}
		t := ColumnType(part)
		if !t.valid() {
			return Column{}, invalidModelf("column %q: unknown type %q", name, part)
		}
		col.Types = append(col.Types, t)
	}
	return col, nil
}

// JoinedColumn maps a record property onto the select expression it is
// read from, e.g. {"author", "u.name"}.
type JoinedColumn struct {
	Property string
	Column   string
}

// expr renders the select expression of the property.
func (jc JoinedColumn) expr() string {
	if jc.Column == "" || jc.Column == jc.Property {
		return jc.Property
	}
	return jc.Column + " AS " + jc.Property
}

// Definition describes where and how a model is stored.
type Definition struct {
	// TableName is the single table rows are written to.
	TableName string
	// JoinedTables is the FROM part of reads. Defaults to TableName.
	JoinedTables string
	// Connection names the db connection. Empty selects the default one.
	Connection string
	// Registry holds the connection. Defaults to db.DefaultRegistry.
	Registry *db.Registry

	// PrimaryKey is the key column of a single key model.
	PrimaryKey string
	// UniqueKeys identify a row of a multi key model.
	UniqueKeys []string

	Columns []Column
	// JoinedColumns lists the properties read by queries. Defaults to
	// Columns.
	JoinedColumns []JoinedColumn

	// Rules validate loaded rows.
	Rules *rules.Rules
	// Filter is called with every loaded row before it becomes a record.
	Filter func(row db.Row)
}

// normalized checks d and fills in the defaults.
func (d Definition) normalized() (Definition, error) {
	var merr *multierror.Error
	lower := strings.ToLower(d.TableName)
	if d.TableName == "" || strings.ContainsAny(d.TableName, ", ") || strings.Contains(lower, "join") {
		merr = multierror.Append(merr, invalidModelf("TableName %q has to be a single table", d.TableName))
	}
	if d.JoinedTables == "" {
		d.JoinedTables = d.TableName
	}
	if d.PrimaryKey != "" && len(d.UniqueKeys) > 0 {
		merr = multierror.Append(merr, invalidModelf("PrimaryKey and UniqueKeys are mutually exclusive"))
	}
	if len(d.Columns) == 0 {
		merr = multierror.Append(merr, invalidModelf("Columns were not set"))
	}

	seen := map[string]bool{}
	cols := make([]Column, 0, len(d.Columns)+1)
	for _, c := range d.Columns {
		switch {
		case c.Name == "":
			merr = multierror.Append(merr, invalidModelf("empty column name"))
			continue
		case seen[c.Name]:
			merr = multierror.Append(merr, invalidModelf("column %q declared twice", c.Name))
			continue
		case c.Length < 0:
			merr = multierror.Append(merr, invalidModelf("column %q: negative length %d", c.Name, c.Length))
		}
		for _, t := range c.Types {
			if !t.valid() {
				merr = multierror.Append(merr, invalidModelf("column %q: unknown type %q", c.Name, t))
			}
		}
		seen[c.Name] = true
		cols = append(cols, c)
	}
	if d.PrimaryKey != "" && !seen[d.PrimaryKey] {
		cols = append(cols, Column{Name: d.PrimaryKey})
		seen[d.PrimaryKey] = true
	}
	for _, k := range d.UniqueKeys {
		switch {
		case k == "":
			merr = multierror.Append(merr, invalidModelf("empty unique key column"))
		case !seen[k]:
			cols = append(cols, Column{Name: k})
			seen[k] = true
		}
	}
	d.Columns = cols

	if len(d.JoinedColumns) == 0 {
		d.JoinedColumns = make([]JoinedColumn, len(cols))
		for i, c := range cols {
			d.JoinedColumns[i] = JoinedColumn{Property: c.Name, Column: c.Name}
		}
	}
	for _, jc := range d.JoinedColumns {
		if jc.Property == "" {
			merr = multierror.Append(merr, invalidModelf("empty joined column property"))
		}
	}

	if d.Rules != nil {
		if err := d.Rules.Err(); err != nil {
			merr = multierror.Append(merr, invalidModelf("rules: %s", err))
		}
	}
	return d, merr.ErrorOrNil()
}

// column returns the declared column with the given name.
func (d *Definition) column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// selectExprs returns the select expressions of every joined column.
func (d *Definition) selectExprs() []string {
	out := make([]string, len(d.JoinedColumns))
	for i, jc := range d.JoinedColumns {
		out[i] = jc.expr()
	}
	return out
}

// sourceOf returns the expression a property is read from.
func (d *Definition) sourceOf(property string) string {
	for _, jc := range d.JoinedColumns {
		if jc.Property == property && jc.Column != "" {
			return jc.Column
		}
	}
	return property
}

func (d *Definition) registry() *db.Registry {
	if d.Registry == nil {
		return db.DefaultRegistry
	}
	return d.Registry
}

func (d *Definition) connect(ctx context.Context) (*db.Conn, error) {
	return d.registry().Connect(ctx, d.Connection, false)
}

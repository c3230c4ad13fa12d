// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go.chromium.org/luci/common/errors"
)

// Relation joins conditions of different columns.
type Relation string

const (
	RelationAnd Relation = "AND"
	RelationOr  Relation = "OR"
)

func (r Relation) valid() bool {
	return r == RelationAnd || r == RelationOr
}

// Order is a sort direction.
type Order string

const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)

func (o Order) valid() bool {
	return o == OrderAsc || o == OrderDesc
}

// Conditions maps a column to the value it must equal. A slice value
// matches any of its elements.
type Conditions map[string]any

// Columns returns the condition columns in name order.
func (c Conditions) Columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

type orderTerm struct {
	column string
	order  Order
}

// Build is a SELECT builder.
type Build struct {
	columns    []string
	connection string
	table      string

	conds    Conditions
	relation Relation
	where    string
	binds    Binds

	limit   int
	page    int
	groupBy []string
	having  string
	orderBy []orderTerm

	err error
}

// Select starts a SELECT of columns; no columns selects '*'.
func Select(columns ...string) *Build {
	return &Build{columns: columns, binds: Binds{}, page: 1}
}

func (b *Build) fail(err error) *Build {
	if b.err == nil {
		b.err = err
	}
	return b
}

// OnConnection runs the query on a named connection instead of the default.
func (b *Build) OnConnection(name string) *Build {
	b.connection = name
	return b
}

// From sets the table, or joined tables, to select from.
func (b *Build) From(table string) *Build {
	if table == "" {
		return b.fail(invalidArgf("From: invalid table name"))
	}
	b.table = table
	return b
}

// Find adds column equality conditions joined with relation.
func (b *Build) Find(conds Conditions, relation Relation) *Build {
	if len(conds) == 0 {
		return b.fail(invalidArgf("Find: invalid conditions"))
	}
	if !relation.valid() {
		return b.fail(invalidArgf("Find: invalid relation %q", relation))
	}
	b.conds = conds
	b.relation = relation
	return b
}

// Where sets a raw condition with its binds.
func (b *Build) Where(where string, binds Binds) *Build {
	if where == "" {
		return b.fail(invalidArgf("Where: invalid condition"))
	}
	b.where = where
	b.binds = b.binds.Merge(binds)
	return b
}

// Binds adds binds used by the raw condition or the having clause.
func (b *Build) Binds(binds Binds) *Build {
	if len(binds) == 0 {
		return b.fail(invalidArgf("Binds: invalid binds"))
	}
	b.binds = b.binds.Merge(binds)
	return b
}

// Limit selects a page of limit rows. Pages start at 1.
func (b *Build) Limit(limit, page int) *Build {
	if limit < 1 {
		return b.fail(invalidArgf("Limit: invalid limit %d", limit))
	}
	if page < 1 {
		return b.fail(invalidArgf("Limit: invalid page %d", page))
	}
	b.limit, b.page = limit, page
	return b
}

// GroupBy adds a grouping column.
func (b *Build) GroupBy(column string) *Build {
	if column == "" {
		return b.fail(invalidArgf("GroupBy: invalid column name"))
	}
	for _, c := range b.groupBy {
		if c == column {
			return b
		}
	}
	b.groupBy = append(b.groupBy, column)
	return b
}

// Having sets the HAVING condition.
func (b *Build) Having(cond string) *Build {
	if cond == "" {
		return b.fail(invalidArgf("Having: invalid condition"))
	}
	b.having = cond
	return b
}

// OrderBy adds a sort column. Ordering the same column again replaces its
// direction.
func (b *Build) OrderBy(column string, order Order) *Build {
	if column == "" {
		return b.fail(invalidArgf("OrderBy: invalid column name"))
	}
	if !order.valid() {
		return b.fail(invalidArgf("OrderBy: invalid order type %q", order))
	}
	for i := range b.orderBy {
		if b.orderBy[i].column == column {
			b.orderBy[i].order = order
			return b
		}
	}
	b.orderBy = append(b.orderBy, orderTerm{column, order})
	return b
}

// SQL renders the query and the binds it needs.
func (b *Build) SQL() (string, Binds, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if b.table == "" {
		return "", nil, badCallf("SQL: From has to be called first")
	}

	binds := Binds{}.Merge(b.binds)

	selectCols := "*"
	if len(b.columns) > 0 {
		for _, c := range b.columns {
			if c == "" {
				return "", nil, invalidArgf("SQL: invalid column name")
			}
		}
		selectCols = strings.Join(b.columns, ", ")
	}

	var conds []string
	for _, col := range b.conds.Columns() {
		value := b.conds[col]
		name := placeholderName(col)
		for binds.Has(name) {
			name += "1"
		}
		if isList(value) {
			conds = append(conds, fmt.Sprintf("%s IN (%s)", QuoteColumn(col), name))
		} else {
			conds = append(conds, fmt.Sprintf("%s = %s", QuoteColumn(col), name))
		}
		binds[name] = value
	}
	where := strings.Join(conds, " "+string(b.relation)+" ")
	switch {
	case b.where != "" && where != "":
		where = "(" + b.where + ") AND (" + where + ")"
	case b.where != "":
		where = b.where
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + selectCols + " FROM " + b.table)
	if where != "" {
		sb.WriteString(" WHERE " + where)
	}
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY " + strings.Join(b.groupBy, ", "))
	}
	if b.having != "" {
		sb.WriteString(" HAVING " + b.having)
	}
	if len(b.orderBy) > 0 {
		terms := make([]string, len(b.orderBy))
		for i, t := range b.orderBy {
			terms[i] = t.column + " " + string(t.order)
		}
		sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(strings.TrimRight(LimitString(b.limit, b.page), " "))
	}
	return sb.String(), binds, nil
}

// Execute runs the query on r, or on DefaultRegistry when r is nil, and
// returns every row.
func (b *Build) Execute(ctx context.Context, r *Registry) ([]Row, error) {
	query, binds, err := b.SQL()
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = DefaultRegistry
	}
	conn, err := r.Connect(ctx, b.connection, false)
	if err != nil {
		return nil, err
	}
	st := conn.Query(query)
	if len(binds) > 0 {
		st.Binds(binds)
	}
	res, err := st.Execute(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "Build.Execute").Err()
	}
	return res.FetchAll(), nil
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

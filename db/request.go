// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"fmt"
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

// Operator compares a column with a value in a Request.
type Operator string

const (
	In        Operator = "IN"
	NotIn     Operator = "NOT IN"
	Like      Operator = "LIKE"
	NotLike   Operator = "NOT LIKE"
	More      Operator = ">"
	Less      Operator = "<"
	Equal     Operator = "="
	MoreEqual Operator = ">="
	LessEqual Operator = "<="

	// IsNull and IsNotNull need no value.
	IsNull    Operator = "IS NULL"
	IsNotNull Operator = "IS NOT NULL"
)

func (o Operator) valid() bool {
	switch o {
	case In, NotIn, Like, NotLike, More, Less, Equal, MoreEqual, LessEqual, IsNull, IsNotNull:
		return true
	}
	return false
}

func (o Operator) nullCheck() bool {
	return o == IsNull || o == IsNotNull
}

// Condition is a single column condition of a Request. An empty Op uses the
// default operator of the request.
type Condition struct {
	Op    Operator
	Value any
}

type columnConditions struct {
	Column     string
	Conditions []Condition
}

type requestOrder struct {
	Column string
	Order  Order
}

// Request is a set of column conditions with ordering and paging, compiled
// into the WHERE, ORDER BY and LIMIT parts of a query.
//
// Conditions of one column are OR-ed together; columns are joined with the
// relation of the request.
type Request struct {
	relation Relation
	operator Operator
	columns  []columnConditions
	order    []requestOrder
	limit    string

	compiled bool
	where    string
	binds    Binds
	orderBy  string

	err error
}

// NewRequest returns an AND request with IN as the default operator.
func NewRequest() *Request {
	return &Request{relation: RelationAnd, operator: In}
}

func (r *Request) fail(err error) *Request {
	if r.err == nil {
		r.err = err
	}
	r.compiled = false
	return r
}

// SetRelation sets how column conditions are joined.
func (r *Request) SetRelation(rel Relation) *Request {
	if !rel.valid() {
		return r.fail(invalidArgf("SetRelation: invalid relation %q", rel))
	}
	r.relation = rel
	r.compiled = false
	return r
}

// SetOperator sets the operator used by conditions without one.
func (r *Request) SetOperator(op Operator) *Request {
	if !op.valid() {
		return r.fail(invalidArgf("SetOperator: invalid operator %q", op))
	}
	r.operator = op
	r.compiled = false
	return r
}

// Add adds conditions on a column. Passing IsNull or IsNotNull as the value
// checks the column for NULL.
func (r *Request) Add(column string, conds ...Condition) *Request {
	if column == "" {
		return r.fail(invalidArgf("Add: empty column name"))
	}
	if len(conds) == 0 {
		return r.fail(invalidArgf("Add: no condition given for %q", column))
	}
	for _, c := range conds {
		if c.Op != "" && !c.Op.valid() {
			return r.fail(invalidArgf("Add: invalid column condition %q", c.Op))
		}
		if op, ok := c.Value.(Operator); ok && !op.nullCheck() {
			return r.fail(invalidArgf("Add: invalid column value %q", op))
		}
	}
	for i := range r.columns {
		if r.columns[i].Column == column {
			r.columns[i].Conditions = append(r.columns[i].Conditions, conds...)
			r.compiled = false
			return r
		}
	}
	r.columns = append(r.columns, columnConditions{Column: column, Conditions: conds})
	r.compiled = false
	return r
}

// Is adds a condition using the default operator.
func (r *Request) Is(column string, value any) *Request {
	return r.Add(column, Condition{Value: value})
}

// OrderBy adds a sort column.
func (r *Request) OrderBy(column string, order Order) *Request {
	if column == "" {
		return r.fail(invalidArgf("OrderBy: empty column name"))
	}
	if !order.valid() {
		return r.fail(invalidArgf("OrderBy: invalid request order type %q", order))
	}
	r.order = append(r.order, requestOrder{column, order})
	r.compiled = false
	return r
}

// SetLimit selects a page of rows. Pages start at 1.
func (r *Request) SetLimit(rows, page int) *Request {
	if rows < 1 {
		return r.fail(invalidArgf("SetLimit: invalid rows per page %d", rows))
	}
	if page < 1 {
		return r.fail(invalidArgf("SetLimit: invalid page number %d", page))
	}
	r.limit = LimitString(rows, page)
	return r
}

// Compile renders the request. It has to be called before Where.
func (r *Request) Compile() error {
	if r.err != nil {
		return r.err
	}
	r.binds = Binds{}
	i := 0
	var groups []string
	for _, cc := range r.columns {
		bindCol := strings.ReplaceAll(cc.Column, ".", "_")
		var parts []string
		for _, c := range cc.Conditions {
			if op, ok := c.Value.(Operator); ok && op.nullCheck() {
				parts = append(parts, fmt.Sprintf("%s %s", cc.Column, op))
				continue
			}
			if c.Op.nullCheck() {
				parts = append(parts, fmt.Sprintf("%s %s", cc.Column, c.Op))
				continue
			}
			op := c.Op
			if op == "" {
				op = r.operator
			}
			i++
			// The counter after the last underscore keeps names unique.
			name := fmt.Sprintf(":%s_%d", bindCol, i)
			holder := name
			if op == In || op == NotIn {
				holder = "(" + name + ")"
			}
			parts = append(parts, fmt.Sprintf("%s %s %s", cc.Column, op, holder))
			r.binds[name] = c.Value
		}
		if len(parts) > 0 {
			groups = append(groups, "("+strings.Join(parts, " OR ")+")")
		}
	}
	r.where = ""
	if len(groups) > 0 {
		r.where = "WHERE " + strings.Join(groups, " "+string(r.relation)+" ")
	}

	r.orderBy = ""
	if len(r.order) > 0 {
		terms := make([]string, len(r.order))
		for i, o := range r.order {
			terms[i] = o.Column + " " + string(o.Order)
		}
		r.orderBy = "ORDER BY " + strings.Join(terms, ", ")
	}
	r.compiled = true
	return nil
}

// Where returns the compiled WHERE clause, empty when the request has no
// conditions.
func (r *Request) Where() (string, error) {
	if !r.compiled {
		return "", badCallf("Request.Where has to be called after Request.Compile")
	}
	return r.where, nil
}

// Binds returns the compiled binds.
func (r *Request) Binds() Binds {
	return r.binds
}

// OrderByClause returns the compiled ORDER BY clause.
func (r *Request) OrderByClause() string {
	return r.orderBy
}

// Limit returns the LIMIT clause set by SetLimit.
func (r *Request) Limit() string {
	return r.limit
}

// Hash identifies the request inputs. Equal requests hash equally.
func (r *Request) Hash() string {
	in := struct {
		Relation Relation
		Operator Operator
		Columns  []columnConditions
		Order    []requestOrder
	}{r.relation, r.operator, r.columns, r.order}
	h, err := hashstructure.Hash(in, hashstructure.FormatV2, nil)
	if err != nil {
		// Values hashstructure cannot walk still get a stable digest.
		h, _ = hashstructure.Hash(fmt.Sprintf("%v", in), hashstructure.FormatV2, nil)
	}
	return fmt.Sprintf("%016x", h)
}

// LimitString renders the LIMIT clause for a page of rows. Pages start at 1;
// invalid input renders an empty string.
func LimitString(rows, page int) string {
	if rows < 1 || page < 1 {
		return ""
	}
	if page == 1 {
		return fmt.Sprintf(" LIMIT %d ", rows)
	}
	return fmt.Sprintf(" LIMIT %d, %d ", (page-1)*rows, rows)
}

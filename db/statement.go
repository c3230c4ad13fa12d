// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

// DuplicateAction selects how an INSERT treats duplicate keys.
type DuplicateAction int

const (
	// DuplicateError lets the database reject duplicates.
	DuplicateError DuplicateAction = iota
	// DuplicateUpdate updates the existing row (ON DUPLICATE KEY UPDATE).
	DuplicateUpdate
	// DuplicateIgnore skips the duplicate row (INSERT IGNORE).
	DuplicateIgnore
)

type statementKind int

const (
	kindQuery statementKind = iota
	kindUpdate
	kindInsert
	kindReplace
	kindDelete
)

func (k statementKind) String() string {
	switch k {
	case kindUpdate:
		return "update"
	case kindInsert:
		return "insert"
	case kindReplace:
		return "replace"
	case kindDelete:
		return "delete"
	default:
		return "query"
	}
}

// ColumnValue is a column and the value to write into it.
type ColumnValue struct {
	Column string
	Value  any
}

// ValueSet is an ordered list of column values.
type ValueSet []ColumnValue

// Columns returns the column names of the set.
func (vs ValueSet) Columns() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Column
	}
	return out
}

const primaryKeyLookup = "SELECT k.COLUMN_NAME FROM information_schema.table_constraints t " +
	"LEFT JOIN information_schema.key_column_usage k USING(constraint_name, table_schema, table_name) " +
	"WHERE t.constraint_type = 'PRIMARY KEY' AND t.table_schema = DATABASE() AND t.table_name = :table_name"

// Statement is a single statement being built on a Conn.
//
// Builder methods never fail on their own. The first misuse is kept and
// returned by Execute.
type Statement struct {
	conn   *Conn
	kind   statementKind
	table  string
	action DuplicateAction

	query       string
	where       string
	duplicateOn string
	binds       Binds
	primaryKey  string
	hasValues   bool

	err error
}

func newStatement(c *Conn, kind statementKind) *Statement {
	return &Statement{conn: c, kind: kind, binds: Binds{}}
}

func newTableStatement(c *Conn, kind statementKind, table string, action DuplicateAction) *Statement {
	s := newStatement(c, kind)
	s.table = table
	s.action = action
	if table == "" {
		s.fail(invalidArgf("%s: table must be a non-empty string", kind))
	}
	return s
}

func (s *Statement) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Values sets the values an UPDATE, INSERT or REPLACE writes. A prefix is
// prepended to every column name.
func (s *Statement) Values(values ValueSet, prefix ...string) *Statement {
	switch s.kind {
	case kindUpdate, kindInsert, kindReplace:
	default:
		s.fail(badCallf("Values has to be called after Update, Insert or Replace"))
		return s
	}
	if len(values) == 0 {
		s.fail(invalidArgf("Values: values must be a non-empty set"))
		return s
	}
	p := strings.Join(prefix, "")

	cols := make([]string, len(values))
	holders := make([]string, len(values))
	sets := make([]string, len(values))
	for i, v := range values {
		if v.Column == "" {
			s.fail(invalidArgf("Values: column names must be non-empty strings for %s", s.kind))
			return s
		}
		cols[i] = QuoteColumn(p + v.Column)
		if s.kind == kindUpdate {
			holders[i] = fmt.Sprintf(":update_val_%d", i)
		} else {
			holders[i] = fmt.Sprintf(":insert_val_%d", i)
		}
		sets[i] = cols[i] + " = " + holders[i]
		s.bind(holders[i], v.Value)
	}

	switch s.kind {
	case kindUpdate:
		s.query = fmt.Sprintf("UPDATE %s SET %s", s.table, strings.Join(sets, ", "))
	case kindReplace:
		s.query = fmt.Sprintf("REPLACE INTO %s (%s) VALUES (%s)", s.table, strings.Join(cols, ", "), strings.Join(holders, ", "))
	case kindInsert:
		verb := "INSERT INTO"
		if s.action == DuplicateIgnore {
			verb = "INSERT IGNORE INTO"
		}
		s.query = fmt.Sprintf("%s %s (%s) VALUES (%s)", verb, s.table, strings.Join(cols, ", "), strings.Join(holders, ", "))
		s.duplicateOn = ""
		if s.action == DuplicateUpdate {
			s.duplicateOn = " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
		}
	}
	s.hasValues = true
	return s
}

// Where sets the WHERE condition of an UPDATE or DELETE. An empty condition
// is ignored.
func (s *Statement) Where(cond string) *Statement {
	switch s.kind {
	case kindUpdate, kindDelete:
	default:
		s.fail(badCallf("Where can be used only after Update or Delete"))
		return s
	}
	if cond == "" {
		return s
	}
	if s.where != "" {
		s.fail(invalidArgf("current %s statement already has a WHERE condition", s.kind))
		return s
	}
	s.where = " WHERE " + cond
	return s
}

// Binds adds placeholder values.
func (s *Statement) Binds(binds Binds) *Statement {
	if len(binds) == 0 {
		s.fail(invalidArgf("Binds: binds must be a non-empty map"))
		return s
	}
	for name, v := range binds {
		s.bind(name, v)
	}
	return s
}

// Bind adds a single placeholder value.
func (s *Statement) Bind(name string, value any) *Statement {
	s.bind(name, value)
	return s
}

func (s *Statement) bind(name string, value any) {
	if name == "" || name == ":" {
		s.fail(invalidArgf("invalid bind placeholder %q: should be a non-empty string", name))
		return
	}
	name = normalizePlaceholder(name)
	v, err := normalizeBind(name, value)
	if err != nil {
		s.fail(err)
		return
	}
	s.binds[name] = v
}

// PrimaryKey names the primary key column used by ON DUPLICATE KEY UPDATE
// to keep LAST_INSERT_ID meaningful. Without it the key is looked up in
// information_schema.
func (s *Statement) PrimaryKey(column string) *Statement {
	s.primaryKey = column
	return s
}

// SQL returns the named statement as it will be compiled, without
// resolving the primary key of an upsert.
func (s *Statement) SQL() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.query == "" {
		if s.kind == kindUpdate || s.kind == kindInsert || s.kind == kindReplace {
			return "", badCallf("Values has to be called before %s is executed", s.kind)
		}
		return "", invalidArgf("empty statement")
	}
	return s.query + s.duplicateOn + s.where, nil
}

// Execute runs the statement.
func (s *Statement) Execute(ctx context.Context) (*Result, error) {
	query, err := s.SQL()
	if err != nil {
		return nil, err
	}
	if s.duplicateOn != "" {
		pk := s.primaryKey
		if pk == "" {
			if pk, err = s.lookupPrimaryKey(ctx); err != nil {
				return nil, err
			}
		}
		if pk != "" {
			query = s.query + s.duplicateOn + fmt.Sprintf(", %s=LAST_INSERT_ID(%s)", pk, pk)
		}
	}

	compiled, args, err := compileNamed(query, s.binds)
	if err != nil {
		return nil, errors.Annotate(err, "Execute").Err()
	}

	name, kind := s.conn.Name(), s.kind.String()
	logging.Debugf(ctx, "Execute: %q: %s (%d args)", name, compiled, len(args))
	statementCount.Add(ctx, 1, name, kind)

	run := s.conn.runner()
	if returnsRows(compiled) {
		rows, err := run.QueryContext(ctx, compiled, args...)
		if err != nil {
			return nil, s.failed(ctx, err)
		}
		res, err := readRows(rows)
		if err != nil {
			return nil, s.failed(ctx, err)
		}
		return res, nil
	}

	r, err := run.ExecContext(ctx, compiled, args...)
	if err != nil {
		return nil, s.failed(ctx, err)
	}
	res := &Result{}
	if res.RowCount, err = r.RowsAffected(); err != nil {
		logging.Warningf(ctx, "Execute: %q: rows affected: %s", name, err)
	}
	if id, err := r.LastInsertId(); err == nil && id > 0 {
		res.LastInsertID = id
		s.conn.setLastInsertID(id)
	}
	return res, nil
}

func (s *Statement) failed(ctx context.Context, err error) error {
	statementFailures.Add(ctx, 1, s.conn.Name(), s.kind.String())
	logging.Errorf(ctx, "Execute: %q: %s", s.conn.Name(), err)
	return errors.Annotate(classify(err), "Execute %s", s.kind).Err()
}

func (s *Statement) lookupPrimaryKey(ctx context.Context) (string, error) {
	table := s.table
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	table = strings.ReplaceAll(strings.TrimSpace(table), "`", "")

	res, err := s.conn.Query(primaryKeyLookup).Bind("table_name", table).Execute(ctx)
	if err != nil {
		return "", errors.Annotate(err, "lookup primary key of %s", table).Err()
	}
	v, err := res.FetchValue("COLUMN_NAME")
	if err != nil || v == nil {
		return "", err
	}
	return fmt.Sprint(v), nil
}

// returnsRows reports whether a statement produces a result set.
func returnsRows(query string) bool {
	word := strings.TrimLeft(query, " \t\r\n(")
	if i := strings.IndexAny(word, " \t\r\n("); i >= 0 {
		word = word[:i]
	}
	switch strings.ToUpper(word) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH":
		return true
	}
	return false
}

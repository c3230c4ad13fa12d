// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/pobratym/EDMo/db"
	"github.com/pobratym/EDMo/validation"
)

// Processor runs the reads and writes of a single Definition.
type Processor struct {
	def Definition
}

// NewProcessor checks def and returns a processor for it.
func NewProcessor(def Definition) (*Processor, error) {
	d, err := def.normalized()
	if err != nil {
		return nil, err
	}
	return &Processor{def: d}, nil
}

// Definition returns the normalized definition of the processor.
func (p *Processor) Definition() Definition {
	return p.def
}

// Search is a read over the joined tables of a definition.
type Search struct {
	def   *Definition
	build *db.Build
	err   error
}

func (p *Processor) newSearch() *Search {
	b := db.Select(p.def.selectExprs()...).
		From(p.def.JoinedTables).
		OnConnection(p.def.Connection)
	return &Search{def: &p.def, build: b}
}

// All reads every row.
func (p *Processor) All() *Search {
	return p.newSearch()
}

// Find reads the rows whose properties equal conds. A slice value matches
// any of its elements and may not be empty.
func (p *Processor) Find(conds db.Conditions, relation db.Relation) *Search {
	s := p.newSearch()
	mapped := make(db.Conditions, len(conds))
	for prop, v := range conds {
		if isEmptyList(v) {
			s.err = errors.Annotate(db.ErrInvalidArgument, "Find: empty value list for %q", prop).Err()
			return s
		}
		mapped[p.def.sourceOf(prop)] = v
	}
	s.build.Find(mapped, relation)
	return s
}

// Search reads the rows matching a raw condition.
func (p *Processor) Search(where string, binds db.Binds) *Search {
	s := p.newSearch()
	s.build.Where(where, binds)
	return s
}

// GroupBy adds a grouping column.
func (s *Search) GroupBy(column string) *Search {
	s.build.GroupBy(column)
	return s
}

// OrderBy adds a sort column.
func (s *Search) OrderBy(column string, order db.Order) *Search {
	s.build.OrderBy(column, order)
	return s
}

// Limit reads a page of limit rows.
func (s *Search) Limit(limit, page int) *Search {
	s.build.Limit(limit, page)
	return s
}

// Extract runs the read.
func (s *Search) Extract(ctx context.Context) ([]db.Row, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.build.Execute(ctx, s.def.registry())
}

// writer collects checked column values.
type writer struct {
	def    *Definition
	values map[string]any
	where  string
	binds  db.Binds
	err    error
}

func (p *Processor) newWriter() writer {
	return writer{def: &p.def, values: map[string]any{}}
}

// set checks value against the column and stores it. nil is stored
// unchecked; only nullable columns write it.
func (w *writer) set(column string, value any) error {
	col, ok := w.def.column(column)
	if !ok {
		return invalidValuef("property `%s` does not exist or is not writable", column)
	}
	if value == nil {
		w.values[column] = nil
		return nil
	}
	v, err := checkValue(col, value)
	if err != nil {
		return err
	}
	w.values[column] = v
	return nil
}

// load sets every declared column found in values. Other keys are ignored.
func (w *writer) load(values map[string]any) error {
	for _, col := range w.def.Columns {
		v, ok := values[col.Name]
		if !ok {
			continue
		}
		if err := w.set(col.Name, v); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) setBinds(binds db.Binds, where string) {
	if len(binds) == 0 {
		w.fail(errors.Annotate(db.ErrInvalidArgument, "%s: invalid binds", where).Err())
		return
	}
	for name, v := range binds {
		if isEmptyList(v) {
			w.fail(errors.Annotate(db.ErrInvalidArgument, "%s: there is no condition for %q", where, name).Err())
			return
		}
	}
	w.binds = w.binds.Merge(binds)
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// AddNew inserts a row.
type AddNew struct {
	writer
}

// AddNew starts an insert.
func (p *Processor) AddNew() *AddNew {
	return &AddNew{p.newWriter()}
}

// Set checks and stores a column value.
func (a *AddNew) Set(column string, value any) error {
	return a.set(column, value)
}

// Save loads values, inserts the non-nil columns and returns the id
// generated for the row.
func (a *AddNew) Save(ctx context.Context, values map[string]any, action db.DuplicateAction) (int64, error) {
	if err := a.load(values); err != nil {
		return 0, err
	}
	var vs db.ValueSet
	for _, col := range a.def.Columns {
		if v, ok := a.values[col.Name]; ok && v != nil {
			vs = append(vs, db.ColumnValue{Column: col.Name, Value: v})
		}
	}
	conn, err := a.def.connect(ctx)
	if err != nil {
		return 0, err
	}
	st := conn.Insert(a.def.TableName, action).Values(vs)
	if a.def.PrimaryKey != "" {
		st.PrimaryKey(a.def.PrimaryKey)
	}
	res, err := st.Execute(ctx)
	if err != nil {
		logging.Errorf(ctx, "AddNew.Save: %s: %s", a.def.TableName, err)
		return 0, err
	}
	return res.LastInsertID, nil
}

// Update updates the rows matching a condition.
type Update struct {
	writer
}

// Update starts an update of the rows matching where.
func (p *Processor) Update(where string) *Update {
	u := &Update{p.newWriter()}
	u.where = where
	return u
}

// Binds sets the values of the condition placeholders.
func (u *Update) Binds(binds db.Binds) *Update {
	u.setBinds(binds, "Update.Binds")
	return u
}

// Set checks and stores a column value.
func (u *Update) Set(column string, value any) error {
	return u.set(column, value)
}

// Save loads values and writes the non-nil columns. Nullable columns are
// written even when they hold nil.
func (u *Update) Save(ctx context.Context, values map[string]any) error {
	if u.err != nil {
		return u.err
	}
	if u.where == "" {
		return errors.Annotate(db.ErrInvalidArgument, "Update.Save: WHERE condition is missed").Err()
	}
	if err := u.load(values); err != nil {
		return err
	}
	var vs db.ValueSet
	for _, col := range u.def.Columns {
		v, ok := u.values[col.Name]
		if ok && (v != nil || col.Nullable()) {
			vs = append(vs, db.ColumnValue{Column: col.Name, Value: v})
		}
	}
	conn, err := u.def.connect(ctx)
	if err != nil {
		return err
	}
	st := conn.Update(u.def.TableName).Values(vs).Where(u.where)
	if len(u.binds) > 0 {
		st.Binds(u.binds)
	}
	_, err = st.Execute(ctx)
	return err
}

// Delete removes the rows matching a condition.
type Delete struct {
	writer
}

// Delete starts a removal of the rows matching where.
func (p *Processor) Delete(where string) *Delete {
	d := &Delete{p.newWriter()}
	d.where = where
	return d
}

// Binds sets the values of the condition placeholders.
func (d *Delete) Binds(binds db.Binds) *Delete {
	d.setBinds(binds, "Delete.Binds")
	return d
}

// Execute runs the removal.
func (d *Delete) Execute(ctx context.Context) error {
	if d.err != nil {
		return d.err
	}
	if d.where == "" {
		return errors.Annotate(db.ErrInvalidArgument, "Delete.Execute: WHERE condition is missed").Err()
	}
	conn, err := d.def.connect(ctx)
	if err != nil {
		return err
	}
	st := conn.Delete(d.def.TableName).Where(d.where)
	if len(d.binds) > 0 {
		st.Binds(d.binds)
	}
	_, err = st.Execute(ctx)
	return err
}

const lengthMessage = "Property length is over allowed value"

// checkValue returns the value to store when any type of col accepts it.
// Booleans are stored as 0 or 1.
func checkValue(col Column, value any) (any, error) {
	if len(col.Types) == 0 {
		return value, nil
	}
	msg := fmt.Sprintf("Invalid property `%s` value", col.Name)
	first := ""
	for _, t := range col.Types {
		v := validation.New()
		out := value
		switch t {
		case TypeNull:
			if value != nil {
				v.AddError(col.Name, msg)
			}
		case TypeBool:
			b, ok := toBool(value)
			if !ok {
				v.AddError(col.Name, msg)
				break
			}
			out = 0
			if b {
				out = 1
			}
		default:
			if value == nil {
				v.AddError(col.Name, msg)
				break
			}
			var c *validation.Chain
			switch t {
			case TypeInt:
				c = v.Int(value, col.Name, msg)
			case TypeFloat:
				c = v.Float(value, col.Name, msg)
			case TypeString:
				c = v.String(value, col.Name, msg)
			case TypeIPAddress:
				c = v.IPAddress(value, col.Name, msg)
			case TypeEmail:
				c = v.Email(value, col.Name, msg)
			}
			if col.Length > 0 && t != TypeInt && t != TypeFloat {
				c.MaxLen(col.Length, lengthMessage)
			}
		}
		if v.IsValid() {
			return out, nil
		}
		if first == "" {
			first = v.FirstError()
		}
	}
	return nil, invalidValuef("%s", first)
}

// toBool accepts bools, 0 and 1, and the usual boolean words.
func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return false, false
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "on", "yes":
			return true, true
		case "0", "false", "off", "no", "":
			return false, true
		}
		return false, false
	}
	n, err := cast.ToInt64E(value)
	if err != nil || (n != 0 && n != 1) {
		return false, false
	}
	return n == 1, true
}

// listLen returns the length of a slice or array. ok is false for other
// values, []byte included.
func listLen(v any) (n int, ok bool) {
	if v == nil {
		return 0, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}

func isEmptyList(v any) bool {
	n, ok := listLen(v)
	return ok && n == 0
}

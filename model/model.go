// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import (
	"context"
	"fmt"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/pobratym/EDMo/db"
)

// DefaultLimit is the page size of Find and Search when no limit is given.
const DefaultLimit = 100

// Model loads and stores records of type T.
//
// T is usually a struct embedding *Entity:
//
//	type User struct{ *model.Entity }
//
//	users, err := model.New(def, func(e *model.Entity) *User { return &User{e} })
type Model[T Record] struct {
	proc *Processor
	wrap func(*Entity) T
}

// New checks def and returns a model building records with wrap. The
// definition needs either a PrimaryKey or UniqueKeys.
func New[T Record](def Definition, wrap func(*Entity) T) (*Model[T], error) {
	if wrap == nil {
		return nil, invalidModelf("New: nil record constructor")
	}
	p, err := NewProcessor(def)
	if err != nil {
		return nil, err
	}
	if p.def.PrimaryKey == "" && len(p.def.UniqueKeys) == 0 {
		return nil, invalidModelf("New: %s: either PrimaryKey or UniqueKeys has to be set", p.def.TableName)
	}
	return &Model[T]{proc: p, wrap: wrap}, nil
}

// Processor returns the processor behind the model.
func (m *Model[T]) Processor() *Processor {
	return m.proc
}

// New returns a novice record holding data.
func (m *Model[T]) New(data map[string]any) T {
	return m.wrap(NewEntity(data))
}

// All reads every record. limit < 1 reads without paging.
func (m *Model[T]) All(ctx context.Context, limit, page int) ([]T, error) {
	s := m.proc.All()
	if limit > 0 {
		s.Limit(limit, page)
	}
	return m.extract(ctx, s)
}

// Find reads the records whose properties equal conds. limit 0 reads
// DefaultLimit records; a negative limit reads without paging.
func (m *Model[T]) Find(ctx context.Context, conds db.Conditions, limit, page int) ([]T, error) {
	s := m.proc.Find(conds, db.RelationAnd)
	paginate(s, limit, page)
	return m.extract(ctx, s)
}

// FindOne reads the first record matching conds.
func (m *Model[T]) FindOne(ctx context.Context, conds db.Conditions) (T, error) {
	var zero T
	recs, err := m.Find(ctx, conds, 1, 1)
	if err != nil {
		return zero, err
	}
	if len(recs) == 0 {
		return zero, errors.Annotate(ErrNotFound, "FindOne: %s", m.proc.def.TableName).Err()
	}
	return recs[0], nil
}

// Search reads the records matching a raw condition. limit works like in
// Find.
func (m *Model[T]) Search(ctx context.Context, where string, binds db.Binds, limit, page int) ([]T, error) {
	s := m.proc.Search(where, binds)
	paginate(s, limit, page)
	return m.extract(ctx, s)
}

// Filter reads the records matching a compiled request, in its order and
// page.
func (m *Model[T]) Filter(ctx context.Context, req *db.Request) ([]T, error) {
	if req == nil {
		return nil, errors.Annotate(db.ErrInvalidArgument, "Filter: nil request").Err()
	}
	if err := req.Compile(); err != nil {
		return nil, err
	}
	where, err := req.Where()
	if err != nil {
		return nil, err
	}
	def := &m.proc.def
	var sb strings.Builder
	sb.WriteString("SELECT " + strings.Join(def.selectExprs(), ", ") + " FROM " + def.JoinedTables)
	if where != "" {
		sb.WriteString(" " + where)
	}
	if ob := req.OrderByClause(); ob != "" {
		sb.WriteString(" " + ob)
	}
	sb.WriteString(strings.TrimRight(req.Limit(), " "))

	conn, err := def.connect(ctx)
	if err != nil {
		return nil, err
	}
	st := conn.Query(sb.String())
	if binds := req.Binds(); len(binds) > 0 {
		st.Binds(binds)
	}
	res, err := st.Execute(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "Filter").Err()
	}
	return m.records(res.FetchAll()), nil
}

// Get reads the record with a primary key value.
func (m *Model[T]) Get(ctx context.Context, pk any) (T, error) {
	var zero T
	if m.proc.def.PrimaryKey == "" {
		return zero, invalidModelf("Get: %s has no primary key", m.proc.def.TableName)
	}
	if _, list := listLen(pk); pk == nil || list {
		return zero, errors.Annotate(db.ErrInvalidArgument, "Get: invalid primary key value %v", pk).Err()
	}
	return m.GetBy(ctx, db.Conditions{m.proc.def.PrimaryKey: pk})
}

// GetBy reads the only record matching conds. The loaded values are checked
// against the rules of the model columns; failures are returned as
// *validation.Error.
func (m *Model[T]) GetBy(ctx context.Context, conds db.Conditions) (T, error) {
	var zero T
	if len(conds) == 0 {
		return zero, errors.Annotate(db.ErrInvalidArgument, "GetBy: invalid conditions").Err()
	}
	recs, err := m.Find(ctx, conds, 2, 1)
	if err != nil {
		return zero, err
	}
	if len(recs) != 1 {
		return zero, errors.Annotate(ErrNotFound, "GetBy: %s: %d records match", m.proc.def.TableName, len(recs)).Err()
	}
	rec := recs[0]

	def := &m.proc.def
	if def.Rules == nil {
		return rec, nil
	}
	names := make([]string, len(def.Columns))
	data := make(map[string]any, len(def.Columns))
	for i, col := range def.Columns {
		names[i] = col.Name
		data[col.Name] = rec.Base().Get(col.Name)
	}
	v, err := def.Rules.Only(names...).Validate(data)
	if err != nil {
		return zero, err
	}
	if err := v.Err(); err != nil {
		logging.Warningf(ctx, "GetBy: %s: stored record is invalid: %s", def.TableName, err)
		return zero, err
	}
	return rec, nil
}

// AddNew inserts a row and returns its generated id.
func (m *Model[T]) AddNew(ctx context.Context, values map[string]any) (int64, error) {
	return m.proc.AddNew().Save(ctx, values, db.DuplicateError)
}

// AddNewOrUpdate inserts a row or updates the row with the same key.
func (m *Model[T]) AddNewOrUpdate(ctx context.Context, values map[string]any) (int64, error) {
	return m.proc.AddNew().Save(ctx, values, db.DuplicateUpdate)
}

// AddNewOrIgnore inserts a row unless one with the same key exists.
func (m *Model[T]) AddNewOrIgnore(ctx context.Context, values map[string]any) (int64, error) {
	return m.proc.AddNew().Save(ctx, values, db.DuplicateIgnore)
}

// Save writes a record.
//
// A single key record which is not novice and has a key value is updated by
// its key. Otherwise it is inserted with action and gets the generated key.
// Multi key records are inserted or updated on their unique keys.
func (m *Model[T]) Save(ctx context.Context, rec T, action db.DuplicateAction) error {
	e := rec.Base()
	def := &m.proc.def

	if def.PrimaryKey == "" {
		values := m.keyConditions(e)
		for _, col := range def.Columns {
			values[col.Name] = e.Get(col.Name)
		}
		if _, err := m.AddNewOrUpdate(ctx, values); err != nil {
			return err
		}
		e.markSaved()
		return nil
	}

	pk := def.PrimaryKey
	values := map[string]any{}
	for _, col := range def.Columns {
		if col.Name != pk {
			values[col.Name] = e.Get(col.Name)
		}
	}
	if !m.isNovice(e) {
		err := m.proc.Update(quoteKey(pk)+" = :pk_column_value").
			Binds(db.Binds{"pk_column_value": e.Get(pk)}).
			Save(ctx, values)
		if err != nil {
			return err
		}
		e.markSaved()
		return nil
	}

	id, err := m.proc.AddNew().Save(ctx, values, action)
	if err != nil {
		return err
	}
	if id > 0 {
		e.Set(pk, id)
	}
	e.markSaved()
	return nil
}

// Delete removes a record by its key and makes it novice.
func (m *Model[T]) Delete(ctx context.Context, rec T) error {
	e := rec.Base()
	if err := m.Remove(ctx, m.keyConditions(e)); err != nil {
		return err
	}
	e.markDeleted()
	return nil
}

// Remove deletes the rows whose columns equal conds.
func (m *Model[T]) Remove(ctx context.Context, conds map[string]any) error {
	if len(conds) == 0 {
		return errors.Annotate(db.ErrInvalidArgument, "Remove: invalid conditions").Err()
	}
	cols := db.Conditions(conds).Columns()
	where := make([]string, len(cols))
	binds := make(db.Binds, len(cols))
	for i, col := range cols {
		name := fmt.Sprintf("remove_%d", i)
		where[i] = quoteKey(col) + " = :" + name
		binds[name] = conds[col]
	}
	return m.proc.Delete(strings.Join(where, " AND ")).Binds(binds).Execute(ctx)
}

// isNovice reports whether a single key record has to be inserted.
func (m *Model[T]) isNovice(e *Entity) bool {
	if e.IsNovice() {
		return true
	}
	v := e.Get(m.proc.def.PrimaryKey)
	return v == nil || v == "" || v == 0 || v == int64(0)
}

// keyConditions returns the key values identifying e.
func (m *Model[T]) keyConditions(e *Entity) map[string]any {
	def := &m.proc.def
	if def.PrimaryKey != "" {
		return map[string]any{def.PrimaryKey: e.Get(def.PrimaryKey)}
	}
	out := make(map[string]any, len(def.UniqueKeys))
	for _, k := range def.UniqueKeys {
		out[k] = e.Get(k)
	}
	return out
}

func (m *Model[T]) extract(ctx context.Context, s *Search) ([]T, error) {
	rows, err := s.Extract(ctx)
	if err != nil {
		return nil, err
	}
	return m.records(rows), nil
}

// records turns loaded rows into records which are not novice.
func (m *Model[T]) records(rows []db.Row) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if m.proc.def.Filter != nil {
			m.proc.def.Filter(row)
		}
		e := NewEntity(row)
		e.markSaved()
		out = append(out, m.wrap(e))
	}
	return out
}

func paginate(s *Search, limit, page int) {
	switch {
	case limit == 0:
		s.Limit(DefaultLimit, page)
	case limit > 0:
		s.Limit(limit, page)
	}
}

// quoteKey quotes a column name unless it is already quoted or is an
// expression.
func quoteKey(column string) string {
	if strings.ContainsAny(column, "`( ") {
		return column
	}
	return db.QuoteColumn(column)
}

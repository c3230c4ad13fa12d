// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"database/sql"
	"fmt"

	"go.chromium.org/luci/common/errors"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// Result is the outcome of an executed statement.
//
// Rows of row returning statements are buffered. Fetch walks them with a
// cursor and the other Fetch* helpers consume whatever the cursor has not
// reached yet.
type Result struct {
	// RowCount is the number of returned rows, or of affected rows for
	// statements that return none.
	RowCount int64
	// LastInsertID is the auto increment id reported by a write.
	LastInsertID int64

	Columns []string
	Rows    []Row

	cursor int
}

// Fetch returns the next row.
func (r *Result) Fetch() (Row, bool) {
	if r == nil || r.cursor >= len(r.Rows) {
		return nil, false
	}
	row := r.Rows[r.cursor]
	r.cursor++
	return row, true
}

// FetchValue returns a column of the next row, or nil when no rows are left.
func (r *Result) FetchValue(key string) (any, error) {
	row, ok := r.Fetch()
	if !ok {
		return nil, nil
	}
	v, ok := row[key]
	if !ok {
		return nil, errors.Annotate(ErrColumnNotFound, "column %q was not found in request result", key).Err()
	}
	return v, nil
}

// FetchAll returns the rows the cursor has not reached yet.
func (r *Result) FetchAll() []Row {
	if r == nil || r.cursor >= len(r.Rows) {
		return nil
	}
	rows := r.Rows[r.cursor:]
	r.cursor = len(r.Rows)
	return rows
}

// FetchIndexed returns the remaining rows keyed by the text form of the
// key column. Later rows win on equal keys.
func (r *Result) FetchIndexed(key string) (map[string]Row, error) {
	rows := r.FetchAll()
	out := make(map[string]Row, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	if _, ok := rows[0][key]; !ok {
		return nil, errors.Annotate(ErrColumnNotFound, "column %q was not found in request result", key).Err()
	}
	for _, row := range rows {
		out[keyString(row[key])] = row
	}
	return out, nil
}

// FetchColumn returns one column of the remaining rows.
func (r *Result) FetchColumn(value string) ([]any, error) {
	rows := r.FetchAll()
	if len(rows) == 0 {
		return nil, nil
	}
	if _, ok := rows[0][value]; !ok {
		return nil, errors.Annotate(ErrColumnNotFound, "column %q was not found in request result", value).Err()
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row[value]
	}
	return out, nil
}

// FetchColumnMap returns the value column of the remaining rows keyed by the
// text form of the key column.
func (r *Result) FetchColumnMap(value, key string) (map[string]any, error) {
	rows := r.FetchAll()
	out := make(map[string]any, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	for _, col := range []string{value, key} {
		if _, ok := rows[0][col]; !ok {
			return nil, errors.Annotate(ErrColumnNotFound, "column %q was not found in request result", col).Err()
		}
	}
	for _, row := range rows {
		out[keyString(row[key])] = row[value]
	}
	return out, nil
}

func keyString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// readRows buffers every row of rows.
func readRows(rows *sql.Rows) (*Result, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Annotate(err, "readRows: columns").Err()
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Annotate(err, "readRows: scan").Err()
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Annotate(err, "readRows").Err()
	}
	res.RowCount = int64(len(res.Rows))
	return res, nil
}

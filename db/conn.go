// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"sync"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

// execer is implemented by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn is a named connection pool with a nestable transaction.
//
// Nested BeginTransaction calls only bump a counter; the real transaction is
// committed when the outermost CommitTransaction runs. While a transaction is
// open every statement of the Conn runs inside it.
type Conn struct {
	name string
	pool *sql.DB

	mu           sync.Mutex
	tx           *sql.Tx
	txCount      int
	lastInsertID int64
}

func newConn(name string, pool *sql.DB) *Conn {
	return &Conn{name: name, pool: pool}
}

// Name returns the connection name.
func (c *Conn) Name() string {
	return c.name
}

// DB returns the underlying pool.
func (c *Conn) DB() *sql.DB {
	return c.pool
}

// Ping checks the connection is alive.
func (c *Conn) Ping(ctx context.Context) error {
	return c.pool.PingContext(ctx)
}

// Close closes the pool. An open transaction is rolled back first.
func (c *Conn) Close() error {
	c.mu.Lock()
	tx := c.tx
	c.tx, c.txCount = nil, 0
	c.mu.Unlock()
	if tx != nil {
		_ = tx.Rollback()
	}
	return c.pool.Close()
}

// InTransaction reports whether a transaction is open.
func (c *Conn) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txCount > 0
}

// TransactionDepth returns the nesting level of the open transaction.
func (c *Conn) TransactionDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txCount
}

// BeginTransaction opens a transaction, or joins the open one.
func (c *Conn) BeginTransaction(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txCount == 0 {
		tx, err := c.pool.BeginTx(ctx, nil)
		if err != nil {
			logging.Errorf(ctx, "BeginTransaction: %q: %s", c.name, err)
			return errors.Annotate(err, "BeginTransaction: %q", c.name).Err()
		}
		c.tx = tx
		transactionCount.Add(ctx, 1, c.name, "begin")
	}
	c.txCount++
	return nil
}

// CommitTransaction leaves one level of the open transaction and commits it
// when the outermost level is left.
func (c *Conn) CommitTransaction(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.txCount == 0 {
		return badCallf("CommitTransaction: %q has no open transaction", c.name)
	}
	if c.txCount == 1 {
		tx := c.tx
		c.tx, c.txCount = nil, 0
		if err := tx.Commit(); err != nil {
			logging.Errorf(ctx, "CommitTransaction: %q: %s", c.name, err)
			return errors.Annotate(err, "CommitTransaction: %q", c.name).Err()
		}
		transactionCount.Add(ctx, 1, c.name, "commit")
		return nil
	}
	c.txCount--
	return nil
}

// RollbackTransaction rolls back the open transaction regardless of the
// nesting level.
func (c *Conn) RollbackTransaction(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := c.tx
	c.tx, c.txCount = nil, 0
	if tx == nil {
		return badCallf("RollbackTransaction: %q has no open transaction", c.name)
	}
	if err := tx.Rollback(); err != nil {
		logging.Errorf(ctx, "RollbackTransaction: %q: unable to rollback: %s", c.name, err)
		return errors.Annotate(err, "RollbackTransaction: %q", c.name).Err()
	}
	transactionCount.Add(ctx, 1, c.name, "rollback")
	return nil
}

// LastInsertID returns the auto increment id of the latest write made
// through this connection.
func (c *Conn) LastInsertID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInsertID
}

// Query starts a raw statement.
func (c *Conn) Query(query string) *Statement {
	s := newStatement(c, kindQuery)
	if query == "" {
		s.err = invalidArgf("Query: query must be a non-empty string")
	}
	s.query = query
	return s
}

// Update starts an UPDATE statement; call Values and Where next.
func (c *Conn) Update(table string) *Statement {
	return newTableStatement(c, kindUpdate, table, DuplicateError)
}

// Insert starts an INSERT statement; call Values next.
func (c *Conn) Insert(table string, action DuplicateAction) *Statement {
	return newTableStatement(c, kindInsert, table, action)
}

// Replace starts a REPLACE statement; call Values next.
func (c *Conn) Replace(table string) *Statement {
	return newTableStatement(c, kindReplace, table, DuplicateError)
}

// Delete starts a DELETE statement; call Where next.
func (c *Conn) Delete(table string) *Statement {
	s := newTableStatement(c, kindDelete, table, DuplicateError)
	s.query = "DELETE FROM " + table
	return s
}

// runner returns where statements have to run right now.
func (c *Conn) runner() execer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return c.tx
	}
	return c.pool
}

func (c *Conn) setLastInsertID(id int64) {
	c.mu.Lock()
	c.lastInsertID = id
	c.mu.Unlock()
}

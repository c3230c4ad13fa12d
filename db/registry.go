// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	cloudsqlmysql "cloud.google.com/go/cloudsqlconn/mysql/mysql"
	"github.com/hashicorp/go-multierror"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

const (
	mysqlDriverName    = "mysql"
	cloudSQLDriverName = "edmo-cloudsql-mysql"
)

// Opener opens a connection pool for a named config.
type Opener func(ctx context.Context, name string, cfg Config) (*sql.DB, error)

// Registry keeps named connection configs and the connections opened from
// them.
type Registry struct {
	// Open is used to open pools. It defaults to OpenMySQL.
	Open Opener

	mu           sync.Mutex
	configs      map[string]Config
	conns        map[string]*Conn
	lastConnName string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		configs: map[string]Config{},
		conns:   map[string]*Conn{},
	}
}

// DefaultRegistry backs the package level helpers.
var DefaultRegistry = NewRegistry()

// AddConfig adds connection configs, replacing the ones with the same name.
//
// All entries are checked before any of them is stored.
func (r *Registry) AddConfig(configs map[string]Config) error {
	if len(configs) == 0 {
		return invalidArgf("AddConfig: no connection config given")
	}
	var merr *multierror.Error
	for _, name := range sortedNames(configs) {
		if name == "" {
			merr = multierror.Append(merr, invalidArgf("AddConfig: empty connection name"))
			continue
		}
		if err := configs[name].Validate(); err != nil {
			merr = multierror.Append(merr, errors.Annotate(ErrInvalidArgument, "AddConfig: invalid %q DB connection config: %s", name, err).Err())
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()
	for name, cfg := range configs {
		r.configs[name] = cfg
	}
	return nil
}

// CleanConfig forgets the configs of the named connections, or every
// config when no name is given.
func (r *Registry) CleanConfig(names ...string) error {
	for _, name := range names {
		if name == "" {
			return invalidArgf("CleanConfig: empty connection name")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()
	if len(names) == 0 {
		r.configs = map[string]Config{}
		return nil
	}
	for _, name := range names {
		delete(r.configs, name)
	}
	return nil
}

// Config returns the stored config of a connection.
func (r *Registry) Config(name string) (Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Connect returns the connection with the given name, opening it on first
// use. An empty name selects DefaultConnectionName. Pass force to replace an
// already open connection with a new one.
func (r *Registry) Connect(ctx context.Context, name string, force bool) (*Conn, error) {
	if name == "" {
		name = DefaultConnectionName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()
	r.lastConnName = name

	if conn, ok := r.conns[name]; ok && !force {
		return conn, nil
	}
	cfg, ok := r.configs[name]
	if !ok {
		if conn, ok := r.conns[name]; ok {
			// Attached pools have no config to reopen from.
			return conn, nil
		}
		return nil, errors.Annotate(ErrUnknownConnection, "Connect: %q", name).Err()
	}

	open := r.Open
	if open == nil {
		open = OpenMySQL
	}
	pool, err := open(ctx, name, cfg)
	if err != nil {
		logging.Errorf(ctx, "Connect: unable to connect to %q: %s", name, err)
		return nil, errors.Annotate(err, "Connect: %q", name).Err()
	}
	if old, ok := r.conns[name]; ok {
		if err := old.Close(); err != nil {
			logging.Warningf(ctx, "Connect: closing replaced connection %q: %s", name, err)
		}
	}
	conn := newConn(name, pool)
	r.conns[name] = conn
	return conn, nil
}

// Attach registers an already opened pool under a connection name. It
// replaces an open connection with the same name without closing it.
func (r *Registry) Attach(name string, pool *sql.DB) (*Conn, error) {
	if name == "" {
		name = DefaultConnectionName
	}
	if pool == nil {
		return nil, invalidArgf("Attach: nil pool for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()
	conn := newConn(name, pool)
	r.conns[name] = conn
	return conn, nil
}

// LastConnectionName returns the name passed to the latest Connect call.
func (r *Registry) LastConnectionName() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastConnName == "" {
		return "", ErrNoConnection
	}
	return r.lastConnName, nil
}

// Clean closes and forgets the named connection together with its config.
// An empty name closes every connection and drops every config.
func (r *Registry) Clean(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()

	var toClose []*Conn
	if name == "" {
		for _, conn := range r.conns {
			toClose = append(toClose, conn)
		}
		r.conns = map[string]*Conn{}
		r.configs = map[string]Config{}
		r.lastConnName = ""
	} else {
		if conn, ok := r.conns[name]; ok {
			toClose = append(toClose, conn)
			delete(r.conns, name)
			delete(r.configs, name)
		}
		if r.lastConnName == name {
			r.lastConnName = ""
		}
	}

	var errs errors.MultiError
	for _, conn := range toClose {
		if err := conn.Close(); err != nil {
			logging.Warningf(ctx, "Clean: closing %q: %s", conn.Name(), err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// BeginTransaction begins a transaction on the named connection.
func (r *Registry) BeginTransaction(ctx context.Context, name string) (*Conn, error) {
	conn, err := r.Connect(ctx, name, false)
	if err != nil {
		return nil, err
	}
	return conn, conn.BeginTransaction(ctx)
}

// CommitTransaction commits a transaction on the named connection.
func (r *Registry) CommitTransaction(ctx context.Context, name string) (*Conn, error) {
	conn, err := r.Connect(ctx, name, false)
	if err != nil {
		return nil, err
	}
	return conn, conn.CommitTransaction(ctx)
}

// RollbackTransaction rolls back a transaction on the named connection.
func (r *Registry) RollbackTransaction(ctx context.Context, name string) (*Conn, error) {
	conn, err := r.Connect(ctx, name, false)
	if err != nil {
		return nil, err
	}
	return conn, conn.RollbackTransaction(ctx)
}

// Query starts a raw statement on the default connection.
func (r *Registry) Query(ctx context.Context, query string) (*Statement, error) {
	conn, err := r.Connect(ctx, "", false)
	if err != nil {
		return nil, err
	}
	return conn.Query(query), nil
}

// Update starts an UPDATE statement on the default connection.
func (r *Registry) Update(ctx context.Context, table string) (*Statement, error) {
	conn, err := r.Connect(ctx, "", false)
	if err != nil {
		return nil, err
	}
	return conn.Update(table), nil
}

// Insert starts an INSERT statement on the default connection.
func (r *Registry) Insert(ctx context.Context, table string, action DuplicateAction) (*Statement, error) {
	conn, err := r.Connect(ctx, "", false)
	if err != nil {
		return nil, err
	}
	return conn.Insert(table, action), nil
}

// Replace starts a REPLACE statement on the default connection.
func (r *Registry) Replace(ctx context.Context, table string) (*Statement, error) {
	conn, err := r.Connect(ctx, "", false)
	if err != nil {
		return nil, err
	}
	return conn.Replace(table), nil
}

// Delete starts a DELETE statement on the default connection.
func (r *Registry) Delete(ctx context.Context, table string) (*Statement, error) {
	conn, err := r.Connect(ctx, "", false)
	if err != nil {
		return nil, err
	}
	return conn.Delete(table), nil
}

// LastInsertID returns the last auto increment id seen on the named
// connection.
func (r *Registry) LastInsertID(ctx context.Context, name string) (int64, error) {
	conn, err := r.Connect(ctx, name, false)
	if err != nil {
		return 0, err
	}
	return conn.LastInsertID(), nil
}

// init lazily allocates the maps of a zero Registry. Callers hold r.mu.
func (r *Registry) init() {
	if r.configs == nil {
		r.configs = map[string]Config{}
	}
	if r.conns == nil {
		r.conns = map[string]*Conn{}
	}
}

func sortedNames(configs map[string]Config) []string {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	cloudSQLOnce sync.Once
	cloudSQLErr  error
)

// OpenMySQL opens a MySQL pool for cfg and applies the pool limits.
//
// Configs with an Instance are dialed through the Cloud SQL connector.
func OpenMySQL(ctx context.Context, name string, cfg Config) (*sql.DB, error) {
	driver, network := mysqlDriverName, "tcp"
	if cfg.Instance != "" {
		cloudSQLOnce.Do(func() {
			_, cloudSQLErr = cloudsqlmysql.RegisterDriver(cloudSQLDriverName)
		})
		if cloudSQLErr != nil {
			return nil, errors.Annotate(cloudSQLErr, "OpenMySQL: register Cloud SQL driver").Err()
		}
		driver, network = cloudSQLDriverName, cloudSQLDriverName
	}

	logging.Debugf(ctx, "OpenMySQL: connecting %q as user=%s to %s:%s%s database=%s",
		name, cfg.User, cfg.Host, cfg.Port, cfg.Instance, cfg.DBName)
	pool, err := sql.Open(driver, cfg.DSN(network))
	if err != nil {
		return nil, errors.Annotate(err, "sql.Open").Err()
	}
	pool.SetConnMaxLifetime(connMaxLifetime)
	pool.SetMaxOpenConns(maxOpenConns)
	if cfg.UsePersistentConnection {
		pool.SetMaxIdleConns(maxIdleConns)
	} else {
		pool.SetMaxIdleConns(0)
	}
	return pool, nil
}

// AddConfig adds connection configs to DefaultRegistry.
func AddConfig(configs map[string]Config) error {
	return DefaultRegistry.AddConfig(configs)
}

// CleanConfig removes connection configs from DefaultRegistry.
func CleanConfig(names ...string) error {
	return DefaultRegistry.CleanConfig(names...)
}

// Connect opens or reuses a connection of DefaultRegistry.
func Connect(ctx context.Context, name string, force bool) (*Conn, error) {
	return DefaultRegistry.Connect(ctx, name, force)
}

// LastConnectionName returns the latest connection name of DefaultRegistry.
func LastConnectionName() (string, error) {
	return DefaultRegistry.LastConnectionName()
}

// Clean closes connections of DefaultRegistry.
func Clean(ctx context.Context, name string) error {
	return DefaultRegistry.Clean(ctx, name)
}

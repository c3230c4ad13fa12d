// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"go.chromium.org/luci/common/errors"
)

const (
	// DefaultConnectionName is used when a caller does not name a connection.
	DefaultConnectionName = "default"

	// DefaultCharset is the connection charset when a config has none.
	DefaultCharset = "utf8"

	connMaxLifetime time.Duration = 0
	maxIdleConns    int           = 50
	maxOpenConns    int           = 50
)

// Config describes a single named MySQL connection.
type Config struct {
	Host   string `yaml:"host"`
	Port   string `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	DBName string `yaml:"db_name"`

	// UsePersistentConnection keeps idle connections in the pool between
	// statements. Without it every statement dials a fresh connection.
	UsePersistentConnection bool `yaml:"use_persistent_connection"`

	// Charset defaults to DefaultCharset.
	Charset string `yaml:"charset"`

	// Instance is a Cloud SQL instance connection name
	// (project:region:instance). When set the connection is dialed through
	// the Cloud SQL connector and Host/Port are ignored.
	Instance string `yaml:"instance"`
}

// Validate reports whether every mandatory field is set.
func (c Config) Validate() error {
	switch {
	case c.Instance == "" && c.Host == "":
		return errors.Reason("host is empty").Err()
	case c.Instance == "" && c.Port == "":
		return errors.Reason("port is empty").Err()
	case c.User == "":
		return errors.Reason("user is empty").Err()
	case c.DBName == "":
		return errors.Reason("db_name is empty").Err()
	}
	return nil
}

// charset returns the configured charset or the default one.
func (c Config) charset() string {
	if c.Charset == "" {
		return DefaultCharset
	}
	return c.Charset
}

// DSN renders the go-sql-driver/mysql data source name for the config.
//
// network names the network the driver dials; "tcp" for plain connections or a
// registered dialer name for Cloud SQL.
func (c Config) DSN(network string) string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Pass
	cfg.DBName = c.DBName
	cfg.Net = network
	if c.Instance != "" {
		cfg.Addr = c.Instance
	} else {
		cfg.Addr = net.JoinHostPort(c.Host, c.Port)
	}
	cfg.Params = map[string]string{"charset": c.charset()}
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config loads the connection configs of the edmo tool.
package config

import (
	"context"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/pobratym/EDMo/db"
)

// Connection is a connection entry of a config file.
type Connection struct {
	db.Config `yaml:",inline"`

	// PassEnv names an environment variable holding the password. It wins
	// over Pass.
	PassEnv string `yaml:"pass_env"`
}

// File is the layout of a config file:
//
//	connections:
//	  default:
//	    host: 127.0.0.1
//	    port: "3306"
//	    user: app
//	    pass_env: EDMO_DB_PASS
//	    db_name: app
//	migrations:
//	  dir: ./dumps
//	  track: true
type File struct {
	Connections map[string]Connection `yaml:"connections"`
	Migrations  Migrations            `yaml:"migrations"`
}

// Migrations holds the defaults of the migrate command.
type Migrations struct {
	Dir   string `yaml:"dir"`
	Track bool   `yaml:"track"`
}

// Load reads and parses a config file.
func Load(ctx context.Context, path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Errorf(ctx, "Load: failed to read config %s: %s", path, err)
		return nil, errors.Annotate(err, "load config").Err()
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Annotate(err, "load config %s", path).Err()
	}
	return f, nil
}

// Parse parses a config file.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errors.Annotate(err, "parse config").Err()
	}
	if len(f.Connections) == 0 {
		return nil, errors.Reason("parse config: no connections").Err()
	}
	return f, nil
}

// Names returns the connection names in name order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Connections))
	for n := range f.Connections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DBConfigs resolves the passwords and returns the configs to register.
func (f *File) DBConfigs(ctx context.Context) (map[string]db.Config, error) {
	out := make(map[string]db.Config, len(f.Connections))
	for _, name := range f.Names() {
		c := f.Connections[name]
		cfg := c.Config
		if c.PassEnv != "" {
			pass, err := passwordFromEnv(ctx, c.PassEnv)
			if err != nil {
				return nil, errors.Annotate(err, "connection %q", name).Err()
			}
			cfg.Pass = pass
		}
		out[name] = cfg
	}
	return out, nil
}

// passwordFromEnv reads a password from the environment variable k. An
// unset or empty variable is an error.
func passwordFromEnv(ctx context.Context, k string) (string, error) {
	v, ok := os.LookupEnv(k)
	switch {
	case !ok:
		logging.Errorf(ctx, "passwordFromEnv: %s environment variable not set", k)
		return "", errors.Reason("%s environment variable not set", k).Err()
	case v == "":
		logging.Errorf(ctx, "passwordFromEnv: %s environment variable is empty", k)
		return "", errors.Reason("%s environment variable is empty", k).Err()
	}
	return v, nil
}

// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package site

import (
	"flag"
	"os"
)

// DefaultConfigPath is read when neither -config nor ConfigEnvVar is set.
const DefaultConfigPath = "edmo.yaml"

// ConfigEnvVar overrides DefaultConfigPath.
const ConfigEnvVar = "EDMO_CONFIG"

// CommonFlags are the flags common to all commands.
type CommonFlags struct {
	config     string
	connection string
}

// Register registers the common flags on f.
func (fl *CommonFlags) Register(f *flag.FlagSet) {
	f.StringVar(&fl.config, "config", "", "path to the YAML config, defaults to $"+ConfigEnvVar+" or "+DefaultConfigPath)
	f.StringVar(&fl.connection, "connection", "", "connection name, empty selects every connection or the default one")
}

// ConfigPath returns the config file to read.
func (fl *CommonFlags) ConfigPath() string {
	if fl.config != "" {
		return fl.config
	}
	if p := os.Getenv(ConfigEnvVar); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Connection returns the -connection value, empty when not given.
func (fl *CommonFlags) Connection() string {
	return fl.connection
}

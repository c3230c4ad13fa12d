// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package commands implements the edmo subcommands.
package commands

import (
	"context"

	"go.chromium.org/luci/common/errors"

	"github.com/pobratym/EDMo/db"
	"github.com/pobratym/EDMo/internal/config"
	"github.com/pobratym/EDMo/internal/site"
)

// newRegistry returns the registry commands open connections with.
var newRegistry = db.NewRegistry

// openRegistry loads the config named by the flags into a new registry.
func openRegistry(ctx context.Context, fl *site.CommonFlags) (*db.Registry, *config.File, error) {
	f, err := config.Load(ctx, fl.ConfigPath())
	if err != nil {
		return nil, nil, err
	}
	cfgs, err := f.DBConfigs(ctx)
	if err != nil {
		return nil, nil, err
	}
	r := newRegistry()
	if err := r.AddConfig(cfgs); err != nil {
		return nil, nil, errors.Annotate(err, "register connections").Err()
	}
	return r, f, nil
}

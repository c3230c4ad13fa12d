// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/pobratym/EDMo/db"
	"github.com/pobratym/EDMo/internal/cmdlib"
	"github.com/pobratym/EDMo/internal/site"
)

// MigrateCommand runs SQL dump files on a connection.
var MigrateCommand *subcommands.Command = &subcommands.Command{
	UsageLine: "migrate [options...]",
	ShortDesc: "run SQL dump files",
	LongDesc: `Run SQL dump files in a single transaction.

Without -file every *.sql file of the dump directory is run in name order.
With -track files already recorded in the ` + db.MigrationTable + ` table are skipped.`,
	CommandRun: func() subcommands.CommandRun {
		c := &migrateCommand{}
		c.commonFlags.Register(&c.Flags)
		c.Flags.StringVar(&c.dir, "dir", "", "dump directory, defaults to migrations.dir of the config")
		c.Flags.StringVar(&c.file, "file", "", "single dump file of the directory to run")
		c.Flags.BoolVar(&c.track, "track", false, "skip and record applied files, also enabled by migrations.track")
		return c
	},
}

type migrateCommand struct {
	subcommands.CommandRunBase
	commonFlags site.CommonFlags

	dir   string
	file  string
	track bool
}

// Run is the main entrypoint to the migrate.
func (c *migrateCommand) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if err := c.innerRun(ctx, a.GetOut()); err != nil {
		cmdlib.PrintError(a, err)
		return 1
	}
	return 0
}

func (c *migrateCommand) innerRun(ctx context.Context, out io.Writer) error {
	r, f, err := openRegistry(ctx, &c.commonFlags)
	if err != nil {
		return errors.Annotate(err, "migrate command").Err()
	}
	defer func() {
		if err := r.Clean(ctx, ""); err != nil {
			logging.Warningf(ctx, "migrate: closing connections: %s", err)
		}
	}()

	dir := c.dir
	if dir == "" {
		dir = f.Migrations.Dir
	}
	m, err := db.NewMigration(dir)
	if err != nil {
		return errors.Annotate(err, "migrate command").Err()
	}
	m.TrackApplied = c.track || f.Migrations.Track
	if c.file != "" {
		err = m.CollectUpgrades(c.file)
	} else {
		err = m.CollectAll()
	}
	if err != nil {
		return errors.Annotate(err, "migrate command").Err()
	}

	conn, err := r.Connect(ctx, c.commonFlags.Connection(), false)
	if err != nil {
		return errors.Annotate(err, "migrate command").Err()
	}
	n, err := m.Execute(ctx, conn)
	if err != nil {
		return errors.Annotate(err, "migrate command").Err()
	}
	fmt.Fprintf(out, "%s: %d queries applied\n", conn.Name(), n)
	return nil
}

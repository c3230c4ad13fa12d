// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/maruel/subcommands"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/pobratym/EDMo/internal/cmdlib"
	"github.com/pobratym/EDMo/internal/site"
)

// PingCommand opens and pings configured connections.
var PingCommand *subcommands.Command = &subcommands.Command{
	UsageLine: "ping [options...]",
	ShortDesc: "ping configured DB connections",
	LongDesc:  "Open and ping every configured DB connection, or the one named by -connection.",
	CommandRun: func() subcommands.CommandRun {
		c := &pingCommand{}
		c.commonFlags.Register(&c.Flags)
		return c
	},
}

const maxConcurrentPings = 8

type pingCommand struct {
	subcommands.CommandRunBase
	commonFlags site.CommonFlags
}

// Run is the main entrypoint to the ping.
func (c *pingCommand) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if err := c.innerRun(ctx, a.GetOut()); err != nil {
		cmdlib.PrintError(a, err)
		return 1
	}
	return 0
}

// pingError lists the connections which failed to answer.
type pingError struct {
	failed map[string]error
	order  []string
}

func (e *pingError) Error() string {
	return fmt.Sprintf("%d connection(s) failed to answer", len(e.order))
}

// ReportUserError implements cmdlib.UserErrorReporter.
func (e *pingError) ReportUserError(w io.Writer) {
	fmt.Fprintln(w, e.Error()+":")
	for _, name := range e.order {
		fmt.Fprintf(w, "\t%s: %s\n", name, e.failed[name])
	}
}

func (c *pingCommand) innerRun(ctx context.Context, out io.Writer) error {
	r, f, err := openRegistry(ctx, &c.commonFlags)
	if err != nil {
		return errors.Annotate(err, "ping command").Err()
	}
	defer func() {
		if err := r.Clean(ctx, ""); err != nil {
			logging.Warningf(ctx, "ping: closing connections: %s", err)
		}
	}()

	names := f.Names()
	if n := c.commonFlags.Connection(); n != "" {
		if _, ok := f.Connections[n]; !ok {
			return errors.Reason("ping command: unknown connection %q", n).Err()
		}
		names = []string{n}
	}

	// Ping every connection at once; the failures are reported together.
	errs := make([]error, len(names))
	var g errgroup.Group
	g.SetLimit(maxConcurrentPings)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			conn, err := r.Connect(ctx, name, false)
			if err == nil {
				err = conn.Ping(ctx)
			}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	perr := &pingError{failed: map[string]error{}}
	for i, name := range names {
		if errs[i] != nil {
			perr.failed[name] = errs[i]
			perr.order = append(perr.order, name)
			continue
		}
		fmt.Fprintf(out, "%s: ok\n", name)
	}
	if len(perr.order) > 0 {
		return perr
	}
	return nil
}

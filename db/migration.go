// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

// MigrationTable records the dump files applied with TrackApplied.
const MigrationTable = "edmo_migrations"

const maxDumpLine = 4 << 20

// Migration runs SQL dump files.
//
// A dump is split into query blocks: blank lines and lines starting with
// "--" or "#" end the current block, every other line is appended to it.
type Migration struct {
	// TrackApplied skips files already recorded in MigrationTable and
	// records the files it applies.
	TrackApplied bool

	dir   string
	files []dumpFile
}

type dumpFile struct {
	name    string
	queries []dumpQuery
}

type dumpQuery struct {
	line int
	sql  string
}

// NewMigration returns a migration reading dumps from dir.
func NewMigration(dir string) (*Migration, error) {
	if dir == "" {
		return nil, invalidArgf("NewMigration: empty dump directory")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Annotate(ErrInvalidArgument, "NewMigration: %s", err).Err()
	}
	if !st.IsDir() {
		return nil, invalidArgf("NewMigration: %s is not a directory", dir)
	}
	return &Migration{dir: filepath.Clean(dir)}, nil
}

// CollectUpgrades reads the query blocks of a dump file in the directory.
func (m *Migration) CollectUpgrades(file string) error {
	if file == "" {
		return invalidArgf("CollectUpgrades: empty file name")
	}
	path := filepath.Join(m.dir, file)
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return invalidArgf("CollectUpgrades: file does not exist: %s", path)
	}
	queries, err := parseDump(path)
	if err != nil {
		return errors.Annotate(err, "CollectUpgrades: %s", path).Err()
	}
	if len(queries) > 0 {
		m.files = append(m.files, dumpFile{name: file, queries: queries})
	}
	return nil
}

// CollectAll reads every *.sql file of the directory in name order.
func (m *Migration) CollectAll() error {
	matches, err := filepath.Glob(filepath.Join(m.dir, "*.sql"))
	if err != nil {
		return errors.Annotate(err, "CollectAll").Err()
	}
	sort.Strings(matches)
	for _, path := range matches {
		if err := m.CollectUpgrades(filepath.Base(path)); err != nil {
			return err
		}
	}
	return nil
}

// QueryCount returns the number of collected query blocks.
func (m *Migration) QueryCount() int {
	n := 0
	for _, f := range m.files {
		n += len(f.queries)
	}
	return n
}

func parseDump(path string) ([]dumpQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		queries []dumpQuery
		cur     *dumpQuery
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxDumpLine)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") || strings.HasPrefix(line, "#") {
			cur = nil
			continue
		}
		if cur == nil {
			queries = append(queries, dumpQuery{line: n})
			cur = &queries[len(queries)-1]
		}
		cur.sql += line + "\n"
	}
	return queries, sc.Err()
}

// Execute runs every collected query block inside one transaction and
// returns the number of executed blocks.
func (m *Migration) Execute(ctx context.Context, conn *Conn) (int, error) {
	files := m.files
	if m.TrackApplied {
		var err error
		if files, err = m.pending(ctx, conn); err != nil {
			return 0, err
		}
	}
	if len(files) == 0 {
		logging.Debugf(ctx, "Migration.Execute: nothing to apply")
		return 0, nil
	}

	if err := conn.BeginTransaction(ctx); err != nil {
		return 0, err
	}
	count := 0
	for _, f := range files {
		for _, q := range f.queries {
			count++
			if _, err := conn.Query(q.sql).Execute(ctx); err != nil {
				if rerr := conn.RollbackTransaction(ctx); rerr != nil {
					logging.Errorf(ctx, "Migration.Execute: rollback: %s", rerr)
				}
				return 0, errors.Annotate(err, "Migration.Execute: at %s:%d, query:\n```\n%s```", filepath.Join(m.dir, f.name), q.line, q.sql).Err()
			}
		}
		if m.TrackApplied {
			if _, err := conn.Insert(MigrationTable, DuplicateIgnore).Values(ValueSet{{"file_name", f.name}}).Execute(ctx); err != nil {
				if rerr := conn.RollbackTransaction(ctx); rerr != nil {
					logging.Errorf(ctx, "Migration.Execute: rollback: %s", rerr)
				}
				return 0, errors.Annotate(err, "Migration.Execute: record %s", f.name).Err()
			}
		}
		logging.Debugf(ctx, "Migration.Execute: applied %s (%d queries)", f.name, len(f.queries))
	}
	if err := conn.CommitTransaction(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

// pending drops the files already recorded in MigrationTable.
func (m *Migration) pending(ctx context.Context, conn *Conn) ([]dumpFile, error) {
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"file_name VARCHAR(255) NOT NULL PRIMARY KEY, "+
		"applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)", MigrationTable)
	if _, err := conn.Query(create).Execute(ctx); err != nil {
		return nil, errors.Annotate(err, "ensure migration table").Err()
	}
	res, err := conn.Query("SELECT file_name FROM " + MigrationTable).Execute(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "list applied migrations").Err()
	}
	names, err := res.FetchColumn("file_name")
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[fmt.Sprint(n)] = true
	}
	var out []dumpFile
	for _, f := range m.files {
		if applied[f.name] {
			logging.Debugf(ctx, "Migration.Execute: %s already applied", f.name)
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/smartystreets/goconvey/convey"

	"go.chromium.org/luci/common/errors"
	. "go.chromium.org/luci/common/testing/assertions"
)

func testConfig() Config {
	return Config{
		Host:   "127.0.0.1",
		Port:   "3306",
		User:   "root",
		DBName: "edmo",
	}
}

// mockOpener hands out sqlmock pools and remembers their mocks.
type mockOpener struct {
	opened map[string]int
	mocks  []sqlmock.Sqlmock
}

func (o *mockOpener) open(ctx context.Context, name string, cfg Config) (*sql.DB, error) {
	pool, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	mock.ExpectClose()
	if o.opened == nil {
		o.opened = map[string]int{}
	}
	o.opened[name]++
	o.mocks = append(o.mocks, mock)
	return pool, nil
}

func TestRegistryConfig(t *testing.T) {
	t.Parallel()

	Convey("AddConfig", t, func() {
		r := NewRegistry()

		Convey("AddConfig: empty set", func() {
			err := r.AddConfig(nil)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})
		Convey("AddConfig: valid configs", func() {
			err := r.AddConfig(map[string]Config{
				"default": testConfig(),
				"stats":   testConfig(),
			})
			So(err, ShouldBeNil)
			cfg, ok := r.Config("stats")
			So(ok, ShouldBeTrue)
			So(cfg.DBName, ShouldEqual, "edmo")
		})
		Convey("AddConfig: an invalid entry adds nothing", func() {
			bad := testConfig()
			bad.User = ""
			err := r.AddConfig(map[string]Config{
				"default": testConfig(),
				"broken":  bad,
			})
			So(err, ShouldErrLike, `invalid "broken" DB connection config: user is empty`)
			_, ok := r.Config("default")
			So(ok, ShouldBeFalse)
		})
		Convey("AddConfig: every invalid entry is reported", func() {
			noHost := testConfig()
			noHost.Host = ""
			noDB := testConfig()
			noDB.DBName = ""
			err := r.AddConfig(map[string]Config{"a": noHost, "b": noDB})
			So(err, ShouldErrLike, "host is empty")
			So(err, ShouldErrLike, "db_name is empty")
		})
		Convey("AddConfig: Cloud SQL instance replaces host and port", func() {
			cfg := Config{Instance: "proj:region:inst", User: "u", DBName: "d"}
			So(r.AddConfig(map[string]Config{"cloud": cfg}), ShouldBeNil)
		})
		Convey("CleanConfig", func() {
			So(r.AddConfig(map[string]Config{"a": testConfig(), "b": testConfig()}), ShouldBeNil)
			So(r.CleanConfig("a"), ShouldBeNil)
			_, ok := r.Config("a")
			So(ok, ShouldBeFalse)
			_, ok = r.Config("b")
			So(ok, ShouldBeTrue)

			So(errors.Is(r.CleanConfig(""), ErrInvalidArgument), ShouldBeTrue)

			So(r.CleanConfig(), ShouldBeNil)
			_, ok = r.Config("b")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRegistryConnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	Convey("Connect", t, func() {
		opener := &mockOpener{}
		r := NewRegistry()
		r.Open = opener.open
		So(r.AddConfig(map[string]Config{DefaultConnectionName: testConfig(), "stats": testConfig()}), ShouldBeNil)

		Convey("Connect: no connection made yet", func() {
			_, err := r.LastConnectionName()
			So(errors.Is(err, ErrNoConnection), ShouldBeTrue)
		})
		Convey("Connect: empty name selects the default connection", func() {
			conn, err := r.Connect(ctx, "", false)
			So(err, ShouldBeNil)
			So(conn.Name(), ShouldEqual, DefaultConnectionName)
			name, err := r.LastConnectionName()
			So(err, ShouldBeNil)
			So(name, ShouldEqual, DefaultConnectionName)
		})
		Convey("Connect: open connections are reused", func() {
			first, err := r.Connect(ctx, "stats", false)
			So(err, ShouldBeNil)
			second, err := r.Connect(ctx, "stats", false)
			So(err, ShouldBeNil)
			So(second, ShouldEqual, first)
			So(opener.opened["stats"], ShouldEqual, 1)
		})
		Convey("Connect: force reopens", func() {
			first, err := r.Connect(ctx, "stats", false)
			So(err, ShouldBeNil)
			second, err := r.Connect(ctx, "stats", true)
			So(err, ShouldBeNil)
			So(second, ShouldNotEqual, first)
			So(opener.opened["stats"], ShouldEqual, 2)
			So(opener.mocks[0].ExpectationsWereMet(), ShouldBeNil)
		})
		Convey("Connect: unknown connection", func() {
			_, err := r.Connect(ctx, "missing", false)
			So(errors.Is(err, ErrUnknownConnection), ShouldBeTrue)
		})
		Convey("Clean: one connection", func() {
			_, err := r.Connect(ctx, "stats", false)
			So(err, ShouldBeNil)
			So(r.Clean(ctx, "stats"), ShouldBeNil)
			_, err = r.LastConnectionName()
			So(errors.Is(err, ErrNoConnection), ShouldBeTrue)
			_, err = r.Connect(ctx, "stats", false)
			So(errors.Is(err, ErrUnknownConnection), ShouldBeTrue)
			_, ok := r.Config(DefaultConnectionName)
			So(ok, ShouldBeTrue)
		})
		Convey("Clean: everything", func() {
			_, err := r.Connect(ctx, "stats", false)
			So(err, ShouldBeNil)
			_, err = r.Connect(ctx, "", false)
			So(err, ShouldBeNil)
			So(r.Clean(ctx, ""), ShouldBeNil)
			for _, m := range opener.mocks {
				So(m.ExpectationsWereMet(), ShouldBeNil)
			}
			_, err = r.Connect(ctx, "", false)
			So(errors.Is(err, ErrUnknownConnection), ShouldBeTrue)
		})
		Convey("Attach: attached pools need no config", func() {
			pool, mock, err := sqlmock.New()
			So(err, ShouldBeNil)
			mock.ExpectClose()
			attached, err := r.Attach("external", pool)
			So(err, ShouldBeNil)
			conn, err := r.Connect(ctx, "external", false)
			So(err, ShouldBeNil)
			So(conn, ShouldEqual, attached)
			So(r.Clean(ctx, "external"), ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
		Convey("Attach: nil pool", func() {
			_, err := r.Attach("external", nil)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})
	})
}

func TestRegistryShortcuts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	Convey("Registry shortcuts", t, func() {
		pool, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
		}
		defer func() {
			mock.ExpectClose()
			if err := pool.Close(); err != nil {
				t.Fatalf("failed to close db: %s", err)
			}
		}()
		r := NewRegistry()
		_, err = r.Attach("", pool)
		So(err, ShouldBeNil)

		Convey("transactions on the default connection", func() {
			mock.ExpectBegin()
			mock.ExpectExec("DELETE FROM t").WillReturnResult(sqlmock.NewResult(0, 3))
			mock.ExpectCommit()

			conn, err := r.BeginTransaction(ctx, "")
			So(err, ShouldBeNil)
			So(conn.InTransaction(), ShouldBeTrue)

			st, err := r.Delete(ctx, "t")
			So(err, ShouldBeNil)
			res, err := st.Execute(ctx)
			So(err, ShouldBeNil)
			So(res.RowCount, ShouldEqual, 3)

			_, err = r.CommitTransaction(ctx, "")
			So(err, ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
		Convey("last insert id", func() {
			mock.ExpectExec("INSERT INTO t").WithArgs("x").WillReturnResult(sqlmock.NewResult(42, 1))

			st, err := r.Insert(ctx, "t", DuplicateError)
			So(err, ShouldBeNil)
			_, err = st.Values(ValueSet{{"name", "x"}}).Execute(ctx)
			So(err, ShouldBeNil)

			id, err := r.LastInsertID(ctx, "")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 42)
		})
	})
}

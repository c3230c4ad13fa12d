// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/smartystreets/goconvey/convey"

	"go.chromium.org/luci/common/errors"
	. "go.chromium.org/luci/common/testing/assertions"
)

const testDump = `---region Install
# companies
CREATE TABLE company (
  id int(11) NOT NULL AUTO_INCREMENT,
  PRIMARY KEY (id)
);
--
INSERT INTO company (id) VALUES (1);

UPDATE company SET id = 2
WHERE id = 1;
---endregion
`

func writeDump(t *testing.T, dir, name, body string) {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write dump: %s", err)
	}
}

func TestMigrationCollect(t *testing.T) {
	t.Parallel()

	Convey("Migration", t, func() {
		dir := t.TempDir()
		writeDump(t, dir, "001.sql", testDump)

		Convey("NewMigration needs a directory", func() {
			_, err := NewMigration("")
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			_, err = NewMigration(filepath.Join(dir, "001.sql"))
			So(err, ShouldErrLike, "is not a directory")
			_, err = NewMigration(filepath.Join(dir, "missing"))
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})
		Convey("CollectUpgrades splits query blocks", func() {
			m, err := NewMigration(dir)
			So(err, ShouldBeNil)
			So(m.CollectUpgrades("001.sql"), ShouldBeNil)
			So(m.files, ShouldHaveLength, 1)
			So(m.files[0].queries, ShouldResemble, []dumpQuery{
				{line: 3, sql: "CREATE TABLE company (\nid int(11) NOT NULL AUTO_INCREMENT,\nPRIMARY KEY (id)\n);\n"},
				{line: 8, sql: "INSERT INTO company (id) VALUES (1);\n"},
				{line: 10, sql: "UPDATE company SET id = 2\nWHERE id = 1;\n"},
			})
		})
		Convey("CollectUpgrades needs an existing file", func() {
			m, err := NewMigration(dir)
			So(err, ShouldBeNil)
			So(m.CollectUpgrades("002.sql"), ShouldErrLike, "file does not exist")
			So(errors.Is(m.CollectUpgrades(""), ErrInvalidArgument), ShouldBeTrue)
		})
		Convey("CollectAll reads every dump in name order", func() {
			writeDump(t, dir, "000.sql", "SELECT 1;\n")
			writeDump(t, dir, "notes.txt", "SELECT 2;\n")
			m, err := NewMigration(dir)
			So(err, ShouldBeNil)
			So(m.CollectAll(), ShouldBeNil)
			So(m.files, ShouldHaveLength, 2)
			So(m.files[0].name, ShouldEqual, "000.sql")
			So(m.QueryCount(), ShouldEqual, 4)
		})
	})
}

func TestMigrationExecute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	Convey("Migration.Execute", t, func() {
		dir := t.TempDir()
		writeDump(t, dir, "001.sql", "CREATE TABLE a (id INT);\n--\nINSERT INTO a VALUES (1);\n")

		pool, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
		}
		conn := newConn("default", pool)
		defer func() {
			mock.ExpectClose()
			if err := conn.Close(); err != nil {
				t.Fatalf("failed to close db: %s", err)
			}
		}()

		m, err := NewMigration(dir)
		So(err, ShouldBeNil)
		So(m.CollectUpgrades("001.sql"), ShouldBeNil)

		Convey("runs every block in one transaction", func() {
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT);")).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO a VALUES (1);")).WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectCommit()

			n, err := m.Execute(ctx, conn)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
		Convey("rolls back on failure", func() {
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT);")).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO a VALUES (1);")).WillReturnError(errors.New("table is read only"))
			mock.ExpectRollback()

			_, err := m.Execute(ctx, conn)
			So(err, ShouldErrLike, "001.sql:3")
			So(err, ShouldErrLike, "table is read only")
			So(conn.InTransaction(), ShouldBeFalse)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
		Convey("skips tracked files", func() {
			m.TrackApplied = true
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS edmo_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT file_name FROM edmo_migrations").
				WillReturnRows(sqlmock.NewRows([]string{"file_name"}).AddRow("001.sql"))

			n, err := m.Execute(ctx, conn)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
		Convey("records newly applied files", func() {
			m.TrackApplied = true
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS edmo_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT file_name FROM edmo_migrations").
				WillReturnRows(sqlmock.NewRows([]string{"file_name"}))
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT);")).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO a VALUES (1);")).WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO edmo_migrations (`file_name`) VALUES (?)")).
				WithArgs("001.sql").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			n, err := m.Execute(ctx, conn)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}

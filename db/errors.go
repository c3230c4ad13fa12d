// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	stderrors "errors"

	"github.com/go-sql-driver/mysql"

	"go.chromium.org/luci/common/errors"
)

var (
	// ErrInvalidArgument is returned when a caller passes an empty or
	// malformed argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownConnection is returned for a connection name without config.
	ErrUnknownConnection = errors.New("unknown DB connection")
	// ErrNoConnection is returned when no connection was made yet.
	ErrNoConnection = errors.New("no DB connection was made")
	// ErrBadCall is returned when builder methods are called out of order.
	ErrBadCall = errors.New("method called out of order")
	// ErrColumnNotFound is returned when a fetch helper names a column which
	// is not part of the result.
	ErrColumnNotFound = errors.New("column was not found in request result")
	// ErrDuplicate is returned when MySQL rejects a row on a unique key.
	ErrDuplicate = errors.New("duplicate entry")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// invalidArgf annotates ErrInvalidArgument with a reason.
func invalidArgf(format string, args ...any) error {
	return errors.Annotate(ErrInvalidArgument, format, args...).Err()
}

// badCallf annotates ErrBadCall with a reason.
func badCallf(format string, args ...any) error {
	return errors.Annotate(ErrBadCall, format, args...).Err()
}

// classify maps driver errors onto package sentinels.
func classify(err error) error {
	var myErr *mysql.MySQLError
	if stderrors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return errors.Annotate(ErrDuplicate, "%s", myErr.Message).Err()
	}
	return err
}

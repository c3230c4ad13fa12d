// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"go.chromium.org/luci/common/tsmon/field"
	"go.chromium.org/luci/common/tsmon/metric"
)

var (
	statementCount = metric.NewCounter(
		"edmo/db/statements",
		"The number of executed statements by connection and statement kind",
		nil,
		field.String("connection"),
		field.String("kind"),
	)

	statementFailures = metric.NewCounter(
		"edmo/db/statement_failures",
		"The number of statements rejected by the database",
		nil,
		field.String("connection"),
		field.String("kind"),
	)

	transactionCount = metric.NewCounter(
		"edmo/db/transactions",
		"The number of real transaction operations by connection and operation",
		nil,
		field.String("connection"),
		field.String("op"),
	)
)

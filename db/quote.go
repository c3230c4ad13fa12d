// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"strings"
)

// QuoteColumn back-quotes a column name. Dotted names are quoted per part,
// so "user.name" becomes "`user`.`name`".
func QuoteColumn(name string) string {
	return "`" + strings.ReplaceAll(name, ".", "`.`") + "`"
}

// placeholderName turns a column name into a bind placeholder name.
func placeholderName(column string) string {
	return ":" + strings.ReplaceAll(column, ".", "_")
}

// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package model

import (
	"go.chromium.org/luci/common/errors"
)

var (
	// ErrNotFound is returned when a lookup does not match exactly one row.
	ErrNotFound = errors.New("record was not found")
	// ErrInvalidModel is returned for an incomplete or malformed Definition.
	ErrInvalidModel = errors.New("model was not implemented correctly")
	// ErrInvalidValue is returned when a value does not fit its column.
	ErrInvalidValue = errors.New("invalid column value")
)

func invalidModelf(format string, args ...any) error {
	return errors.Annotate(ErrInvalidModel, format, args...).Err()
}

func invalidValuef(format string, args ...any) error {
	return errors.Annotate(ErrInvalidValue, format, args...).Err()
}

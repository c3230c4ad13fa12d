// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cmdlib holds helpers shared by the edmo subcommands.
package cmdlib

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/maruel/subcommands"
)

// UserErrorReporter reports a detailed error message to the user.
//
// PrintError() uses a UserErrorReporter to print multi-line user error details
// along with the actual error.
type UserErrorReporter interface {
	// Report a user-friendly error through w.
	ReportUserError(w io.Writer)
}

// PrintError reports errors back to the user.
//
// Detailed error information is printed if err is a UserErrorReporter.
// Aggregated errors are printed one per line.
func PrintError(a subcommands.Application, err error) {
	var u UserErrorReporter
	var merr *multierror.Error
	switch {
	case stderrors.As(err, &u):
		u.ReportUserError(a.GetErr())
	case stderrors.As(err, &merr) && len(merr.Errors) > 1:
		fmt.Fprintf(a.GetErr(), "%s: %d errors occurred:\n", a.GetName(), len(merr.Errors))
		for _, e := range merr.Errors {
			fmt.Fprintf(a.GetErr(), "\t* %s\n", e)
		}
	default:
		fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), err)
	}
}

// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package model maps table rows onto records backed by a property bag.
//
// A Definition describes the table, its columns and keys. A Processor runs
// the reads and writes of a definition, and Model wraps a Processor with
// typed record loading, saving and deleting.
package model

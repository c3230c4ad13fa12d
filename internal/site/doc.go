// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package site contains details specific to the edmo tool but not related
// to its logic, such as where configs are read from.
package site

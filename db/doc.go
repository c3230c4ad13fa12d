// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package db contains the MySQL access layer of EDMo: a registry of named
// connections, a statement builder with named placeholders, a SELECT builder,
// an operator based condition request and a dump file migration runner.
//
// Connections are configured once and opened lazily:
//
//	err := db.AddConfig(map[string]db.Config{
//		db.DefaultConnectionName: {
//			Host:   "localhost",
//			Port:   "3306",
//			User:   "root",
//			DBName: "app",
//		},
//	})
//	conn, err := db.Connect(ctx, "", false)
//	res, err := conn.Update("user").
//		Values(db.ValueSet{{"name", "Tony"}}).
//		Where("user_id = :id").
//		Bind("id", 10).
//		Execute(ctx)
package db

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout pattern so tests that wait on pipeline
// goroutines never need their own time.After. [WriteTree] lays out a
// directory of files from a map, which most build, cache, and
// packaging tests start from. [DiscardLogger] returns a logger for
// components whose log output a test does not inspect.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil

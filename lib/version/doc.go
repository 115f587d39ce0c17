// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the bureau-release
// binary itself. This is unrelated to the version of the project being
// released, which comes from release tags or the project manifest.
//
// Four package-level variables are injected with -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if the tree had uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version, set for tagged builds
package version

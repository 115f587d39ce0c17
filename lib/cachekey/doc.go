// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cachekey derives the two dependency cache keys a release run
// uses.
//
// The index key is the commit the upstream dependency index (the
// crates.io index repository) currently points at, read with
// "git ls-remote". It only names the cache entry; the index content is
// never fetched here.
//
// The artifacts key is a SHA256 of the lockfile after the project's
// own package versions are stripped, so a version bump of the project
// does not invalidate the dependency cache. Stripping follows the
// Cargo.lock grammar rather than matching lines blindly:
//
//   - The lockfile is parsed to find the project's own packages:
//     every [[package]] without a "source" (workspace and path
//     members), plus any names the caller lists.
//   - Inside an own package's [[package]] table, the version line is
//     dropped.
//   - In every dependencies array, a "name version" entry naming an
//     own package is reduced to "name".
//   - CRLF line endings are normalized to LF.
//
// Everything else is hashed verbatim, including order. Cargo writes
// packages sorted by name, version and source, so equal dependency
// sets produce equal text; a lockfile reordered by hand produces a
// different key, which is accepted rather than corrected.
//
// Neither derivation is fatal. [Deriver.Derive] logs failures and
// returns a zero key for the affected scope, which the dependency
// cache treats as a miss.
package cachekey

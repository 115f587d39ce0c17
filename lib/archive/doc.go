// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive writes and extracts the tar and zip streams used by
// release archives and dependency cache entries.
//
// Writers produce reproducible output: entries are sorted, ownership
// and timestamps are cleared, and permissions are normalized to 0755
// for directories and executables and 0644 for everything else. Two
// writers given the same tree produce the same bytes, which is what
// lets concurrent cache writers race without a lock.
//
// Extraction resolves every entry name with filepath-securejoin, so an
// archive cannot write outside the destination directory. Only regular
// files and directories are materialized; other entry types are
// rejected.
package archive

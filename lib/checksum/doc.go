// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package checksum computes SHA256 digests of built binaries and
// reads and writes the checksum manifest published next to every
// release archive.
//
// A manifest has one line per binary, sorted by name:
//
//	<hex sha256>  <binary name>
//
// Two spaces separate the digest from the name, matching the output
// of sha256sum so users can verify a download with
// "sha256sum -c". The packager computes a manifest over the binaries
// before archiving and again after unpacking the archive; the two
// must be equal byte for byte.
package checksum

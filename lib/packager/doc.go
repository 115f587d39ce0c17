// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package packager turns the binaries of one build target into a
// verified release archive.
//
// Packaging computes a SHA-256 manifest over the binaries before they
// are archived, writes the archive, then unpacks it into a scratch
// directory and recomputes the manifest from what came out. Any
// difference, including a missing or extra file, fails the target with
// [*IntegrityError]. Only archives that survive the round trip are
// handed to the publisher.
//
// Archives are named
//
//	<project>-<version>[.<date>]-<triple>-<cpu>.<ext>
//
// with ext "zip" for Windows targets and "tar.gz" otherwise. Binaries
// sit at the archive root. The manifest text ("<hex>  <name>" lines,
// readable by sha256sum -c) is also written next to the archive as
// <archive>.sha256.
package packager

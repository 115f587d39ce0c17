// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package toolchain is the boundary between the release pipeline and
// the compiler. The pipeline only ever asks two things of it: fetch the
// project's dependencies, and build one binary for one target.
//
// [Command] implements both by running shell command templates from
// the release definition. Templates reference per-invocation values
// with ${NAME}:
//
//	TARGET      target triple
//	CPU         CPU variant name
//	CPU_FLAGS   compiler flags for the CPU variant (may be empty)
//	TOOLCHAIN   toolchain channel
//	BINARY      binary being built
//	VERSION     version with date stamp, as in archive names
//	DATE        date stamp (empty for versioned releases)
//	OUT_DIR     directory the binary must be written to
//	EXE         executable suffix (".exe" on Windows targets)
//	CACHE_DIR   dependency cache directory for this target
//
// Only the braced form is expanded. Bare $NAME is left for the shell,
// and the same values are exported into the command's environment, so
// a template may use either.
package toolchain

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrix expands build dimensions into the set of targets a
// release run builds.
//
// A [Config] lists values for five dimensions (operating system,
// target triple, CPU variant, toolchain, cross-compile flag), a list of
// exclusion selectors, and a list of explicitly included targets. [New]
// validates the whole configuration once: after that, [Matrix.Targets]
// lazily yields the Cartesian product in declaration order, skipping
// excluded combinations and then yielding the includes. No two yielded
// targets are equal.
//
// Only the OS dimension is required. The others default to a single
// value: the conventional x86_64 triple for each OS, the "generic" CPU,
// the "stable" toolchain, and a native (non-cross) build.
package matrix

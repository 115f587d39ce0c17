// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package build runs the build job for one matrix target: restore the
// dependency caches, fetch on a miss, then compile every binary.
//
// Each target gets its own work directory under the executor's root:
//
//	<root>/<target-id>/cache/registry/index   dependency index scope
//	<root>/<target-id>/cache/registry/cache   dependency artifacts scope
//	<root>/<target-id>/out                    built binaries
//	<root>/<target-id>/build.log              toolchain output
//	<root>/prefetch/                          shared fetch ahead of the matrix
//
// Cache trouble never fails a build. A restore that errors is treated
// as a miss, and a write-back that errors is logged and dropped. Only
// toolchain failures are fatal to the target, reported as [*Error].
package build

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package releaserecord manages release records on the hosting
// service: the release a run's archives are attached to.
//
// Versioned runs create a Draft record for a fresh tag, attach every
// target's archive, and publish only when all expected assets are
// present. A tag that already has a record is a [*ConflictError]; a
// versioned release is never overwritten.
//
// Nightly runs rotate a single record under a reserved tag: the prior
// record and its tag are deleted, then a Published prerelease is
// created in its place and assets are appended as targets finish.
// Missing or undeletable prior records surface as a [*RotationWarning]
// and never stop the run.
//
// The hosting service sits behind [Host]. [GitHubHost] talks to the
// GitHub REST API; [MemoryHost] keeps everything in process for dry
// runs and tests.
package releaserecord

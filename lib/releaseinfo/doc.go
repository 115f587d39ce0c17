// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package releaseinfo turns a trigger (manual dispatch, tag push, or
// schedule) into the version, tag, release kind, and date stamp a run
// releases under.
//
// Manual and tag triggers produce a versioned release whose tag comes
// from the pushed ref or an explicit input and whose version is the
// tag without its leading "v". Schedule triggers produce a nightly
// release under the reserved nightly tag, versioned by the project
// manifest and stamped with the current UTC date as YYYYMMDD.
//
// Resolution happens once per run; the resulting [Info] is immutable.
package releaseinfo

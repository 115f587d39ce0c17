// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package depcache is the content-addressed dependency cache shared by
// every build target in a run.
//
// An entry is a directory tree (a registry index checkout, or the
// downloaded and compiled dependencies) stored under a cache key.
// Entries live in the cache root as
//
//	<root>/<scope>/<address>.payload   compressed tar stream
//	<root>/<scope>/<address>.meta      CBOR metadata sidecar
//
// where address is the BLAKE3 keyed hash of the key string. The payload
// is a reproducible tar stream (see lib/archive) compressed with zstd,
// LZ4 or nothing. The sidecar records the key, codec, file count and
// the BLAKE3 digest of the payload, which Get checks before restoring.
//
// Writes go to a temporary file that is renamed into place, so readers
// never observe a partial entry. Concurrent writers of the same key
// need no lock: the payload is a pure function of the key, and the
// last rename wins. An entry whose sidecar and payload disagree is
// treated as a miss.
package depcache

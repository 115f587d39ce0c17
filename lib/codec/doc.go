// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration for on-disk pipeline
// state.
//
// JSON is used for everything a person or another tool reads: the
// release definition, --json CLI output, and the GitHub API. CBOR is
// used for files only the pipeline itself reads back: the dependency
// cache metadata sidecars. The encoder uses Core Deterministic Encoding
// (RFC 8949 §4.2), so the same metadata always produces the same bytes
// and sidecars written by racing builds for the same key are identical.
//
//	data, err := codec.Marshal(entry)
//	err = codec.Unmarshal(data, &entry)
//
// Types serialized only as CBOR use `cbor` struct tags. Types that
// also appear in JSON output use `json` tags, which fxamacker/cbor
// falls back to when no `cbor` tag is present. Never put both on one
// field.
package codec

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cachekey

import "fmt"

// Scope names what a cache key addresses.
type Scope int

const (
	// DependencyIndex addresses the fetched registry index.
	DependencyIndex Scope = iota
	// DependencyArtifacts addresses downloaded and compiled
	// dependencies.
	DependencyArtifacts
)

func (scope Scope) String() string {
	switch scope {
	case DependencyIndex:
		return "dependency-index"
	case DependencyArtifacts:
		return "dependency-artifacts"
	default:
		return fmt.Sprintf("Scope(%d)", int(scope))
	}
}

// MarshalText encodes the scope by name.
func (scope Scope) MarshalText() ([]byte, error) {
	return []byte(scope.String()), nil
}

// Key is a deterministic cache key. A Key with an empty Digest is the
// "no key" value: lookups miss and writes are skipped.
type Key struct {
	Scope  Scope  `json:"scope"`
	Digest string `json:"digest"`
}

// IsZero reports whether the key is the "no key" value.
func (key Key) IsZero() bool { return key.Digest == "" }

// String renders the key as "<scope>-<digest>", or "<scope>-none".
func (key Key) String() string {
	if key.IsZero() {
		return key.Scope.String() + "-none"
	}
	return key.Scope.String() + "-" + key.Digest
}

// Keys holds both keys for a run.
type Keys struct {
	Index     Key `json:"index"`
	Artifacts Key `json:"artifacts"`
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaserecord

import (
	"fmt"
	"slices"
	"sync"
)

// State is the visibility of a release record.
type State int

const (
	// Draft records are invisible to users and accept assets.
	Draft State = iota
	// Published records are live.
	Published
)

func (state State) String() string {
	switch state {
	case Draft:
		return "draft"
	case Published:
		return "published"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// MarshalText encodes the state by name.
func (state State) MarshalText() ([]byte, error) {
	return []byte(state.String()), nil
}

// Asset is an uploaded archive attached to a record.
type Asset struct {
	Name   string `json:"name"`
	ID     int64  `json:"id"`
	Size   int64  `json:"size"`
	Digest string `json:"digest,omitempty"`
	Target string `json:"target,omitempty"`
}

// Record is a release record on the hosting service. Identity fields
// are fixed at creation; the state and asset list are guarded by a
// mutex because per-target upload stages append concurrently.
type Record struct {
	ID         int64
	Tag        string
	Name       string
	UploadURL  string
	Prerelease bool

	mu     sync.Mutex
	state  State
	assets []Asset
}

func newRecord(release Release) *Record {
	record := &Record{
		ID:         release.ID,
		Tag:        release.Tag,
		Name:       release.Name,
		UploadURL:  release.UploadURL,
		Prerelease: release.Prerelease,
		state:      Draft,
	}
	if !release.Draft {
		record.state = Published
	}
	for _, asset := range release.Assets {
		record.assets = append(record.assets, Asset{Name: asset.Name, ID: asset.ID, Size: asset.Size})
	}
	return record
}

// State returns the record's current state.
func (record *Record) State() State {
	record.mu.Lock()
	defer record.mu.Unlock()
	return record.state
}

func (record *Record) setState(state State) {
	record.mu.Lock()
	defer record.mu.Unlock()
	record.state = state
}

// AppendAsset adds asset, replacing any asset with the same name.
// Reports whether an existing entry was replaced.
func (record *Record) AppendAsset(asset Asset) bool {
	record.mu.Lock()
	defer record.mu.Unlock()
	for index := range record.assets {
		if record.assets[index].Name == asset.Name {
			record.assets[index] = asset
			return true
		}
	}
	record.assets = append(record.assets, asset)
	return false
}

// RemoveAsset drops the asset named name, if present.
func (record *Record) RemoveAsset(name string) {
	record.mu.Lock()
	defer record.mu.Unlock()
	record.assets = slices.DeleteFunc(record.assets, func(asset Asset) bool {
		return asset.Name == name
	})
}

// Assets returns a copy of the asset list in append order.
func (record *Record) Assets() []Asset {
	record.mu.Lock()
	defer record.mu.Unlock()
	return slices.Clone(record.assets)
}

// HasAsset reports whether an asset named name is attached.
func (record *Record) HasAsset(name string) bool {
	record.mu.Lock()
	defer record.mu.Unlock()
	return slices.ContainsFunc(record.assets, func(asset Asset) bool {
		return asset.Name == name
	})
}

// MissingAssets returns the names in expected that are not attached,
// in the order given.
func (record *Record) MissingAssets(expected []string) []string {
	var missing []string
	for _, name := range expected {
		if !record.HasAsset(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func (record *Record) String() string {
	return fmt.Sprintf("%s (id %d, %s)", record.Tag, record.ID, record.State())
}

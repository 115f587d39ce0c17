// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaserecord

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/bureau-foundation/bureau-release/lib/github"
)

// MemoryHost keeps release records in process. Used for dry runs and
// tests. The hook fields inject failures and are read under the host's
// lock, so set them before use.
type MemoryHost struct {
	// FailDelete, when set, is returned by DeleteRelease.
	FailDelete error

	// FailUpload, when set, is consulted per upload; a non-nil result
	// fails that upload.
	FailUpload func(name string) error

	mu       sync.Mutex
	nextID   int64
	releases []*memoryRelease
	tags     map[string]bool
	statuses []ReportedStatus
}

// ReportedStatus is a commit status MemoryHost received.
type ReportedStatus struct {
	Commit string
	CommitStatus
}

type memoryRelease struct {
	release  Release
	contents map[string][]byte
}

// NewMemoryHost returns an empty host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{tags: make(map[string]bool)}
}

func (host *MemoryHost) allocateID() int64 {
	host.nextID++
	return host.nextID
}

func (host *MemoryHost) find(releaseID int64) (*memoryRelease, error) {
	for _, entry := range host.releases {
		if entry.release.ID == releaseID {
			return entry, nil
		}
	}
	return nil, &github.APIError{StatusCode: 404, Message: fmt.Sprintf("release %d not found", releaseID)}
}

func snapshot(entry *memoryRelease) *Release {
	release := entry.release
	release.Assets = slices.Clone(entry.release.Assets)
	return &release
}

func (host *MemoryHost) FindRelease(ctx context.Context, tag string) (*Release, error) {
	host.mu.Lock()
	defer host.mu.Unlock()
	for _, entry := range host.releases {
		if entry.release.Tag == tag {
			return snapshot(entry), nil
		}
	}
	return nil, nil
}

func (host *MemoryHost) CreateRelease(ctx context.Context, spec ReleaseSpec) (*Release, error) {
	host.mu.Lock()
	defer host.mu.Unlock()
	for _, entry := range host.releases {
		if entry.release.Tag == spec.Tag {
			return nil, fmt.Errorf("%w: tag %s", ErrReleaseExists, spec.Tag)
		}
	}
	id := host.allocateID()
	entry := &memoryRelease{
		release: Release{
			ID:         id,
			Tag:        spec.Tag,
			Name:       spec.Name,
			UploadURL:  fmt.Sprintf("memory://releases/%d/assets", id),
			Draft:      spec.Draft,
			Prerelease: spec.Prerelease,
		},
		contents: make(map[string][]byte),
	}
	host.releases = append(host.releases, entry)
	host.tags[spec.Tag] = true
	return snapshot(entry), nil
}

func (host *MemoryHost) PublishRelease(ctx context.Context, releaseID int64) (*Release, error) {
	host.mu.Lock()
	defer host.mu.Unlock()
	entry, err := host.find(releaseID)
	if err != nil {
		return nil, err
	}
	entry.release.Draft = false
	return snapshot(entry), nil
}

func (host *MemoryHost) DeleteRelease(ctx context.Context, releaseID int64) error {
	host.mu.Lock()
	defer host.mu.Unlock()
	if host.FailDelete != nil {
		return host.FailDelete
	}
	if _, err := host.find(releaseID); err != nil {
		return err
	}
	host.releases = slices.DeleteFunc(host.releases, func(entry *memoryRelease) bool {
		return entry.release.ID == releaseID
	})
	return nil
}

func (host *MemoryHost) DeleteTag(ctx context.Context, tag string) error {
	host.mu.Lock()
	defer host.mu.Unlock()
	delete(host.tags, tag)
	return nil
}

func (host *MemoryHost) ListAssets(ctx context.Context, releaseID int64) ([]RemoteAsset, error) {
	host.mu.Lock()
	defer host.mu.Unlock()
	entry, err := host.find(releaseID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(entry.release.Assets), nil
}

func (host *MemoryHost) UploadAsset(ctx context.Context, releaseID int64, uploadURL string, spec UploadSpec) (*RemoteAsset, error) {
	content, err := io.ReadAll(io.NewSectionReader(spec.Content, 0, spec.Size))
	if err != nil {
		return nil, err
	}

	host.mu.Lock()
	defer host.mu.Unlock()
	if host.FailUpload != nil {
		if err := host.FailUpload(spec.Name); err != nil {
			return nil, err
		}
	}
	entry, err := host.find(releaseID)
	if err != nil {
		return nil, err
	}
	if _, exists := entry.contents[spec.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAssetExists, spec.Name)
	}
	asset := RemoteAsset{ID: host.allocateID(), Name: spec.Name, Size: int64(len(content))}
	entry.release.Assets = append(entry.release.Assets, asset)
	entry.contents[spec.Name] = content
	return &asset, nil
}

func (host *MemoryHost) DeleteAsset(ctx context.Context, releaseID, assetID int64) error {
	host.mu.Lock()
	defer host.mu.Unlock()
	entry, err := host.find(releaseID)
	if err != nil {
		return err
	}
	index := slices.IndexFunc(entry.release.Assets, func(asset RemoteAsset) bool { return asset.ID == assetID })
	if index < 0 {
		return &github.APIError{StatusCode: 404, Message: fmt.Sprintf("asset %d not found", assetID)}
	}
	delete(entry.contents, entry.release.Assets[index].Name)
	entry.release.Assets = slices.Delete(entry.release.Assets, index, index+1)
	return nil
}

// Releases returns a snapshot of every release, oldest first.
func (host *MemoryHost) Releases() []Release {
	host.mu.Lock()
	defer host.mu.Unlock()
	releases := make([]Release, len(host.releases))
	for index, entry := range host.releases {
		releases[index] = *snapshot(entry)
	}
	return releases
}

// AssetContent returns the uploaded bytes of an asset.
func (host *MemoryHost) AssetContent(releaseID int64, name string) ([]byte, bool) {
	host.mu.Lock()
	defer host.mu.Unlock()
	entry, err := host.find(releaseID)
	if err != nil {
		return nil, false
	}
	content, exists := entry.contents[name]
	return content, exists
}

// HasTag reports whether the git tag exists.
func (host *MemoryHost) HasTag(tag string) bool {
	host.mu.Lock()
	defer host.mu.Unlock()
	return host.tags[tag]
}

func (host *MemoryHost) ReportStatus(ctx context.Context, commit string, status CommitStatus) error {
	host.mu.Lock()
	defer host.mu.Unlock()
	host.statuses = append(host.statuses, ReportedStatus{Commit: commit, CommitStatus: status})
	return nil
}

// Statuses returns every reported commit status in order.
func (host *MemoryHost) Statuses() []ReportedStatus {
	host.mu.Lock()
	defer host.mu.Unlock()
	return slices.Clone(host.statuses)
}

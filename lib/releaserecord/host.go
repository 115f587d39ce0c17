// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaserecord

import (
	"context"
	"errors"
	"io"
)

// Release is a release as the hosting service reports it.
type Release struct {
	ID         int64
	Tag        string
	Name       string
	UploadURL  string
	Draft      bool
	Prerelease bool
	Assets     []RemoteAsset
}

// RemoteAsset is an asset as the hosting service reports it.
type RemoteAsset struct {
	ID   int64
	Name string
	Size int64
}

// ReleaseSpec describes a release to create.
type ReleaseSpec struct {
	Tag        string
	Name       string
	Body       string
	Commit     string
	Draft      bool
	Prerelease bool
}

// UploadSpec describes an asset upload.
type UploadSpec struct {
	Name        string
	ContentType string
	Content     io.ReaderAt
	Size        int64
}

// ErrReleaseExists is returned by Host.CreateRelease when the tag
// already has a release.
var ErrReleaseExists = errors.New("release already exists")

// ErrAssetExists is returned by Host.UploadAsset when the release
// already has an asset with that name.
var ErrAssetExists = errors.New("asset already exists")

// Host is the release hosting service.
type Host interface {
	// FindRelease returns the release for tag, draft or published, or
	// nil without error if there is none.
	FindRelease(ctx context.Context, tag string) (*Release, error)

	CreateRelease(ctx context.Context, spec ReleaseSpec) (*Release, error)

	// PublishRelease turns a draft live.
	PublishRelease(ctx context.Context, releaseID int64) (*Release, error)

	DeleteRelease(ctx context.Context, releaseID int64) error

	// DeleteTag removes the git tag. A missing tag is not an error.
	DeleteTag(ctx context.Context, tag string) error

	ListAssets(ctx context.Context, releaseID int64) ([]RemoteAsset, error)

	// UploadAsset attaches a file. uploadURL is the record's upload
	// endpoint reference and may be empty.
	UploadAsset(ctx context.Context, releaseID int64, uploadURL string, spec UploadSpec) (*RemoteAsset, error)

	DeleteAsset(ctx context.Context, releaseID, assetID int64) error
}

// Commit status states.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// CommitStatus is one per-target status line on the released commit.
type CommitStatus struct {
	// Context distinguishes statuses on the same commit.
	Context     string
	State       string
	Description string
}

// StatusReporter posts commit statuses. Hosts that support them
// implement it alongside Host.
type StatusReporter interface {
	ReportStatus(ctx context.Context, commit string, status CommitStatus) error
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import "time"

// User is the account that authored a release or uploaded an asset.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// Release is a GitHub release.
type Release struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`

	// TargetCommitish is the branch or commit the tag is created from
	// when it does not exist yet.
	TargetCommitish string `json:"target_commitish"`

	// UploadURL is an RFC 6570 template such as
	// "https://uploads.github.com/repos/o/r/releases/1/assets{?name,label}".
	UploadURL string `json:"upload_url"`
	HTMLURL   string `json:"html_url"`

	Author      User           `json:"author"`
	Assets      []ReleaseAsset `json:"assets"`
	CreatedAt   time.Time      `json:"created_at"`
	PublishedAt *time.Time     `json:"published_at"`
}

// ReleaseAsset is a file attached to a release.
type ReleaseAsset struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Label              string    `json:"label"`
	ContentType        string    `json:"content_type"`
	State              string    `json:"state"` // "uploaded" or "open"
	Size               int64     `json:"size"`
	BrowserDownloadURL string    `json:"browser_download_url"`
	Uploader           User      `json:"uploader"`
	CreatedAt          time.Time `json:"created_at"`
}

// Ref is a git reference.
type Ref struct {
	Ref    string    `json:"ref"`
	Object RefObject `json:"object"`
}

// RefObject is the object a ref points to.
type RefObject struct {
	SHA  string `json:"sha"`
	Type string `json:"type"` // "commit" or "tag"
}

// CommitStatus is a status on a commit.
type CommitStatus struct {
	ID          int64     `json:"id"`
	State       string    `json:"state"`
	Description string    `json:"description"`
	Context     string    `json:"context"`
	TargetURL   string    `json:"target_url"`
	CreatedAt   time.Time `json:"created_at"`
}

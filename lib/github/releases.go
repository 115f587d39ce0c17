// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// CreateReleaseRequest contains the fields for creating a release.
type CreateReleaseRequest struct {
	TagName string `json:"tag_name"`

	// TargetCommitish is used only when TagName does not exist yet.
	TargetCommitish string `json:"target_commitish,omitempty"`

	Name       string `json:"name,omitempty"`
	Body       string `json:"body,omitempty"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// UpdateReleaseRequest contains the fields to change on a release. Nil
// fields are left as they are.
type UpdateReleaseRequest struct {
	Name       *string `json:"name,omitempty"`
	Body       *string `json:"body,omitempty"`
	Draft      *bool   `json:"draft,omitempty"`
	Prerelease *bool   `json:"prerelease,omitempty"`
}

// CreateRelease creates a release.
func (client *Client) CreateRelease(ctx context.Context, owner, repo string, request CreateReleaseRequest) (*Release, error) {
	var release Release
	path := fmt.Sprintf("/repos/%s/%s/releases", owner, repo)
	if err := client.post(ctx, path, request, &release); err != nil {
		return nil, fmt.Errorf("creating release %s in %s/%s: %w", request.TagName, owner, repo, err)
	}
	return &release, nil
}

// GetReleaseByTag returns the published release for tag. Drafts are
// not visible through this endpoint; see FindRelease.
func (client *Client) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error) {
	var release Release
	path := fmt.Sprintf("/repos/%s/%s/releases/tags/%s", owner, repo, url.PathEscape(tag))
	if err := client.get(ctx, path, &release); err != nil {
		return nil, fmt.Errorf("getting release %s in %s/%s: %w", tag, owner, repo, err)
	}
	return &release, nil
}

// ListReleases returns an iterator over a repository's releases,
// drafts included, newest first.
func (client *Client) ListReleases(owner, repo string) *PageIterator[Release] {
	return list[Release](client, fmt.Sprintf("/repos/%s/%s/releases?per_page=100", owner, repo))
}

// FindRelease returns the release, draft or published, whose tag is
// tag. Returns nil without error when there is none.
func (client *Client) FindRelease(ctx context.Context, owner, repo, tag string) (*Release, error) {
	release, err := client.GetReleaseByTag(ctx, owner, repo, tag)
	if err == nil {
		return release, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	iterator := client.ListReleases(owner, repo)
	for {
		page, err := iterator.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing releases in %s/%s: %w", owner, repo, err)
		}
		if page == nil {
			return nil, nil
		}
		for index := range page {
			if page[index].TagName == tag {
				return &page[index], nil
			}
		}
	}
}

// UpdateRelease changes a release, for example to publish a draft.
func (client *Client) UpdateRelease(ctx context.Context, owner, repo string, releaseID int64, request UpdateReleaseRequest) (*Release, error) {
	var release Release
	path := fmt.Sprintf("/repos/%s/%s/releases/%d", owner, repo, releaseID)
	if err := client.patch(ctx, path, request, &release); err != nil {
		return nil, fmt.Errorf("updating release %d in %s/%s: %w", releaseID, owner, repo, err)
	}
	return &release, nil
}

// DeleteRelease deletes a release. The tag is left in place.
func (client *Client) DeleteRelease(ctx context.Context, owner, repo string, releaseID int64) error {
	path := fmt.Sprintf("/repos/%s/%s/releases/%d", owner, repo, releaseID)
	if err := client.delete(ctx, path); err != nil {
		return fmt.Errorf("deleting release %d in %s/%s: %w", releaseID, owner, repo, err)
	}
	return nil
}

// ListReleaseAssets returns an iterator over a release's assets.
func (client *Client) ListReleaseAssets(owner, repo string, releaseID int64) *PageIterator[ReleaseAsset] {
	return list[ReleaseAsset](client, fmt.Sprintf("/repos/%s/%s/releases/%d/assets?per_page=100", owner, repo, releaseID))
}

// DeleteReleaseAsset deletes one asset.
func (client *Client) DeleteReleaseAsset(ctx context.Context, owner, repo string, assetID int64) error {
	path := fmt.Sprintf("/repos/%s/%s/releases/assets/%d", owner, repo, assetID)
	if err := client.delete(ctx, path); err != nil {
		return fmt.Errorf("deleting asset %d in %s/%s: %w", assetID, owner, repo, err)
	}
	return nil
}

// UploadAssetRequest describes one asset upload.
type UploadAssetRequest struct {
	// UploadURL is the release's upload_url. When empty the asset URL
	// is built from the client's upload root.
	UploadURL string
	ReleaseID int64

	Name        string
	Label       string
	ContentType string

	// Content is read from offset zero on every attempt, so a
	// rate-limited upload can be replayed.
	Content io.ReaderAt
	Size    int64
}

// UploadReleaseAsset uploads a file to a release. GitHub rejects a
// name already in use on the release with a 422 (see IsAlreadyExists).
func (client *Client) UploadReleaseAsset(ctx context.Context, owner, repo string, request UploadAssetRequest) (*ReleaseAsset, error) {
	endpoint, err := client.assetUploadURL(owner, repo, request)
	if err != nil {
		return nil, err
	}
	contentType := request.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	body := &payload{
		open:        func() io.Reader { return io.NewSectionReader(request.Content, 0, request.Size) },
		contentType: contentType,
		length:      request.Size,
	}

	responseBody, _, err := client.doURL(ctx, http.MethodPost, endpoint, body, false)
	if err != nil {
		return nil, fmt.Errorf("uploading %s to release %d in %s/%s: %w", request.Name, request.ReleaseID, owner, repo, err)
	}
	var asset ReleaseAsset
	if err := json.Unmarshal(responseBody, &asset); err != nil {
		return nil, fmt.Errorf("decoding uploaded asset %s: %w", request.Name, err)
	}
	return &asset, nil
}

func (client *Client) assetUploadURL(owner, repo string, request UploadAssetRequest) (string, error) {
	base := request.UploadURL
	if base == "" {
		base = fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets", client.uploadURL, owner, repo, request.ReleaseID)
	}
	// Drop the RFC 6570 query template.
	if index := strings.IndexByte(base, '{'); index >= 0 {
		base = base[:index]
	}
	if !strings.HasPrefix(base, "https://") {
		return "", fmt.Errorf("github: refusing non-HTTPS upload URL %q", base)
	}
	query := url.Values{"name": {request.Name}}
	if request.Label != "" {
		query.Set("label", request.Label)
	}
	return base + "?" + query.Encode(), nil
}

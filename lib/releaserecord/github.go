// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaserecord

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/bureau-release/lib/github"
)

// GitHubHost keeps release records on GitHub.
type GitHubHost struct {
	Client *github.Client
	Owner  string
	Repo   string
}

func fromGitHub(release *github.Release) *Release {
	converted := &Release{
		ID:         release.ID,
		Tag:        release.TagName,
		Name:       release.Name,
		UploadURL:  release.UploadURL,
		Draft:      release.Draft,
		Prerelease: release.Prerelease,
	}
	for _, asset := range release.Assets {
		converted.Assets = append(converted.Assets, RemoteAsset{ID: asset.ID, Name: asset.Name, Size: asset.Size})
	}
	return converted
}

func (host *GitHubHost) FindRelease(ctx context.Context, tag string) (*Release, error) {
	release, err := host.Client.FindRelease(ctx, host.Owner, host.Repo, tag)
	if err != nil || release == nil {
		return nil, err
	}
	return fromGitHub(release), nil
}

func (host *GitHubHost) CreateRelease(ctx context.Context, spec ReleaseSpec) (*Release, error) {
	release, err := host.Client.CreateRelease(ctx, host.Owner, host.Repo, github.CreateReleaseRequest{
		TagName:         spec.Tag,
		TargetCommitish: spec.Commit,
		Name:            spec.Name,
		Body:            spec.Body,
		Draft:           spec.Draft,
		Prerelease:      spec.Prerelease,
	})
	if github.IsAlreadyExists(err) {
		return nil, fmt.Errorf("%w: %v", ErrReleaseExists, err)
	}
	if err != nil {
		return nil, err
	}
	return fromGitHub(release), nil
}

func (host *GitHubHost) PublishRelease(ctx context.Context, releaseID int64) (*Release, error) {
	draft := false
	release, err := host.Client.UpdateRelease(ctx, host.Owner, host.Repo, releaseID, github.UpdateReleaseRequest{Draft: &draft})
	if err != nil {
		return nil, err
	}
	return fromGitHub(release), nil
}

func (host *GitHubHost) DeleteRelease(ctx context.Context, releaseID int64) error {
	return host.Client.DeleteRelease(ctx, host.Owner, host.Repo, releaseID)
}

func (host *GitHubHost) DeleteTag(ctx context.Context, tag string) error {
	err := host.Client.DeleteRef(ctx, host.Owner, host.Repo, "tags/"+tag)
	// GitHub answers 422 "Reference does not exist" as well as 404.
	if github.IsNotFound(err) || github.IsValidationFailed(err) {
		return nil
	}
	return err
}

func (host *GitHubHost) ListAssets(ctx context.Context, releaseID int64) ([]RemoteAsset, error) {
	assets, err := host.Client.ListReleaseAssets(host.Owner, host.Repo, releaseID).Collect(ctx)
	if err != nil {
		return nil, err
	}
	converted := make([]RemoteAsset, len(assets))
	for index, asset := range assets {
		converted[index] = RemoteAsset{ID: asset.ID, Name: asset.Name, Size: asset.Size}
	}
	return converted, nil
}

func (host *GitHubHost) UploadAsset(ctx context.Context, releaseID int64, uploadURL string, spec UploadSpec) (*RemoteAsset, error) {
	asset, err := host.Client.UploadReleaseAsset(ctx, host.Owner, host.Repo, github.UploadAssetRequest{
		UploadURL:   uploadURL,
		ReleaseID:   releaseID,
		Name:        spec.Name,
		ContentType: spec.ContentType,
		Content:     spec.Content,
		Size:        spec.Size,
	})
	if github.IsAlreadyExists(err) {
		return nil, fmt.Errorf("%w: %v", ErrAssetExists, err)
	}
	if err != nil {
		return nil, err
	}
	return &RemoteAsset{ID: asset.ID, Name: asset.Name, Size: asset.Size}, nil
}

func (host *GitHubHost) DeleteAsset(ctx context.Context, releaseID, assetID int64) error {
	return host.Client.DeleteReleaseAsset(ctx, host.Owner, host.Repo, assetID)
}

func (host *GitHubHost) ReportStatus(ctx context.Context, commit string, status CommitStatus) error {
	_, err := host.Client.CreateCommitStatus(ctx, host.Owner, host.Repo, commit, github.CreateStatusRequest{
		State:       status.State,
		Context:     status.Context,
		Description: truncate(status.Description, 140),
	})
	return err
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

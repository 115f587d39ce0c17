// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish uploads verified archives to a release record.
//
// Uploads are idempotent per archive name: an asset already attached
// under the same name, on the host or on the record, is deleted and
// replaced, so a retried stage never leaves two copies. Transport
// failures are reported as [*UploadError] and are not retried here.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bureau-foundation/bureau-release/lib/packager"
	"github.com/bureau-foundation/bureau-release/lib/releaserecord"
)

// UploadError reports an archive that could not be attached to a
// record. Isolated to its target.
type UploadError struct {
	Tag     string
	Archive string
	Err     error
}

func (err *UploadError) Error() string {
	return fmt.Sprintf("uploading %s to %s: %v", err.Archive, err.Tag, err.Err)
}

func (err *UploadError) Unwrap() error { return err.Err }

// Config configures a Publisher.
type Config struct {
	Host   releaserecord.Host
	Logger *slog.Logger
}

// Publisher uploads artifacts. Safe for concurrent use; uploads for
// different archives proceed independently.
type Publisher struct {
	host   releaserecord.Host
	logger *slog.Logger
}

// New returns a publisher over config.Host.
func New(config Config) *Publisher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Publisher{host: config.Host, logger: config.Logger}
}

// ContentType is the upload media type for an archive name.
func ContentType(archiveName string) string {
	switch {
	case strings.HasSuffix(archiveName, ".zip"):
		return "application/zip"
	case strings.HasSuffix(archiveName, ".tar.gz"):
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}

// Upload attaches artifact's archive to record and appends the asset
// reference to the record.
func (publisher *Publisher) Upload(ctx context.Context, record *releaserecord.Record, artifact *packager.Artifact) (releaserecord.Asset, error) {
	fail := func(err error) (releaserecord.Asset, error) {
		return releaserecord.Asset{}, &UploadError{Tag: record.Tag, Archive: artifact.ArchiveName, Err: err}
	}

	file, err := os.Open(artifact.ArchivePath)
	if err != nil {
		return fail(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fail(err)
	}

	if err := publisher.removeExisting(ctx, record, artifact.ArchiveName); err != nil {
		return fail(err)
	}

	spec := releaserecord.UploadSpec{
		Name:        artifact.ArchiveName,
		ContentType: ContentType(artifact.ArchiveName),
		Content:     file,
		Size:        info.Size(),
	}
	remote, err := publisher.host.UploadAsset(ctx, record.ID, record.UploadURL, spec)
	if errors.Is(err, releaserecord.ErrAssetExists) {
		// Another writer attached the same name between our check and
		// the upload. Replace it once.
		if err := publisher.removeExisting(ctx, record, artifact.ArchiveName); err != nil {
			return fail(err)
		}
		remote, err = publisher.host.UploadAsset(ctx, record.ID, record.UploadURL, spec)
	}
	if err != nil {
		return fail(err)
	}

	asset := releaserecord.Asset{
		Name:   remote.Name,
		ID:     remote.ID,
		Size:   remote.Size,
		Digest: artifact.ArchiveDigest,
		Target: artifact.Target.ID(),
	}
	record.AppendAsset(asset)
	publisher.logger.Info("asset uploaded",
		"tag", record.Tag,
		"asset", asset.Name,
		"target", asset.Target,
		"bytes", asset.Size,
	)
	return asset, nil
}

// removeExisting deletes any asset named name from the host and the
// record.
func (publisher *Publisher) removeExisting(ctx context.Context, record *releaserecord.Record, name string) error {
	remote, err := publisher.host.ListAssets(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("listing assets: %w", err)
	}
	for _, asset := range remote {
		if asset.Name != name {
			continue
		}
		if err := publisher.host.DeleteAsset(ctx, record.ID, asset.ID); err != nil {
			return fmt.Errorf("replacing existing asset %d: %w", asset.ID, err)
		}
		publisher.logger.Info("replacing existing asset", "tag", record.Tag, "asset", name, "id", asset.ID)
	}
	record.RemoveAsset(name)
	return nil
}

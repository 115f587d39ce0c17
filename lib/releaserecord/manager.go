// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaserecord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultNightlyTag is the reserved tag of the rotating nightly record.
const DefaultNightlyTag = "nightly"

// ConflictError reports a versioned create for a tag that already has
// a record. Fatal to the run.
type ConflictError struct {
	Tag        string
	ExistingID int64
}

func (err *ConflictError) Error() string {
	if err.ExistingID == 0 {
		return fmt.Sprintf("release record for tag %s already exists", err.Tag)
	}
	return fmt.Sprintf("release record for tag %s already exists (id %d)", err.Tag, err.ExistingID)
}

// RotationWarning reports a nightly rotation whose delete step did not
// go cleanly. Rotation continues regardless.
type RotationWarning struct {
	Tag    string
	Reason string
	Err    error
}

func (warning *RotationWarning) Error() string {
	if warning.Err == nil {
		return fmt.Sprintf("nightly rotation of %s: %s", warning.Tag, warning.Reason)
	}
	return fmt.Sprintf("nightly rotation of %s: %s: %v", warning.Tag, warning.Reason, warning.Err)
}

func (warning *RotationWarning) Unwrap() error { return warning.Err }

var (
	// ErrMissingAssets is wrapped by Publish when expected assets are
	// not attached to the record.
	ErrMissingAssets = errors.New("release record is missing assets")

	// ErrAlreadyPublished is returned by Publish for a live record.
	ErrAlreadyPublished = errors.New("release record is already published")

	// ErrReservedTag is returned by Create for the nightly tag, which
	// only Rotate may create.
	ErrReservedTag = errors.New("tag is reserved for the nightly record")
)

// Config configures a Manager.
type Config struct {
	Host Host

	// NightlyTag defaults to DefaultNightlyTag.
	NightlyTag string

	Logger *slog.Logger
}

// Manager drives release records through their lifecycle.
type Manager struct {
	host       Host
	nightlyTag string
	logger     *slog.Logger
}

// NewManager returns a manager over config.Host.
func NewManager(config Config) *Manager {
	if config.NightlyTag == "" {
		config.NightlyTag = DefaultNightlyTag
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Manager{
		host:       config.Host,
		nightlyTag: config.NightlyTag,
		logger:     config.Logger,
	}
}

// Host returns the hosting service the manager writes to.
func (manager *Manager) Host() Host { return manager.host }

// NightlyTag returns the reserved nightly tag.
func (manager *Manager) NightlyTag() string { return manager.nightlyTag }

// CreateRequest describes a versioned release record.
type CreateRequest struct {
	Tag     string
	Name    string
	Message string

	// Commit is where the tag is created if it does not exist yet.
	Commit string
}

// Create makes a Draft record for request.Tag. Fails with
// *ConflictError if the tag already has a record.
func (manager *Manager) Create(ctx context.Context, request CreateRequest) (*Record, error) {
	if request.Tag == "" {
		return nil, errors.New("release tag is required")
	}
	if request.Tag == manager.nightlyTag {
		return nil, fmt.Errorf("creating %s: %w", request.Tag, ErrReservedTag)
	}

	existing, err := manager.host.FindRelease(ctx, request.Tag)
	if err != nil {
		return nil, fmt.Errorf("looking up release %s: %w", request.Tag, err)
	}
	if existing != nil {
		return nil, &ConflictError{Tag: request.Tag, ExistingID: existing.ID}
	}

	release, err := manager.host.CreateRelease(ctx, ReleaseSpec{
		Tag:    request.Tag,
		Name:   request.Name,
		Body:   request.Message,
		Commit: request.Commit,
		Draft:  true,
	})
	if errors.Is(err, ErrReleaseExists) {
		return nil, &ConflictError{Tag: request.Tag}
	}
	if err != nil {
		return nil, fmt.Errorf("creating release %s: %w", request.Tag, err)
	}

	record := newRecord(*release)
	manager.logger.Info("release record created",
		"tag", record.Tag,
		"id", record.ID,
		"state", record.State().String(),
	)
	return record, nil
}

// Publish makes a Draft record live. Every name in expected must be
// attached first; otherwise the error wraps ErrMissingAssets and the
// record stays a draft.
func (manager *Manager) Publish(ctx context.Context, record *Record, expected []string) (*Record, error) {
	if record.State() == Published {
		return nil, fmt.Errorf("publishing %s: %w", record.Tag, ErrAlreadyPublished)
	}
	if missing := record.MissingAssets(expected); len(missing) > 0 {
		return nil, fmt.Errorf("publishing %s: %w: %s", record.Tag, ErrMissingAssets, strings.Join(missing, ", "))
	}

	if _, err := manager.host.PublishRelease(ctx, record.ID); err != nil {
		return nil, fmt.Errorf("publishing %s: %w", record.Tag, err)
	}
	record.setState(Published)
	manager.logger.Info("release record published",
		"tag", record.Tag,
		"id", record.ID,
		"assets", len(record.Assets()),
	)
	return record, nil
}

// RotateRequest describes the nightly record to create.
type RotateRequest struct {
	Name    string
	Message string
	Commit  string
}

// Rotate replaces the nightly record: delete the prior record and its
// tag, then create a Published prerelease. Trouble deleting yields a
// *RotationWarning alongside the new record. Only a failure to create
// the new record is an error.
func (manager *Manager) Rotate(ctx context.Context, request RotateRequest) (*Record, *RotationWarning, error) {
	tag := manager.nightlyTag
	warning := manager.removePrior(ctx, tag)
	if warning != nil {
		manager.logger.Warn("nightly rotation warning",
			"tag", tag,
			"reason", warning.Reason,
			"error", warning.Err,
		)
	}

	release, err := manager.host.CreateRelease(ctx, ReleaseSpec{
		Tag:        tag,
		Name:       request.Name,
		Body:       request.Message,
		Commit:     request.Commit,
		Draft:      false,
		Prerelease: true,
	})
	if err != nil {
		return nil, warning, fmt.Errorf("creating nightly release: %w", err)
	}

	record := newRecord(*release)
	manager.logger.Info("nightly record rotated",
		"tag", record.Tag,
		"id", record.ID,
	)
	return record, warning, nil
}

// removePrior deletes the current nightly record and tag. Returns nil
// when both were deleted.
func (manager *Manager) removePrior(ctx context.Context, tag string) *RotationWarning {
	prior, err := manager.host.FindRelease(ctx, tag)
	if err != nil {
		return &RotationWarning{Tag: tag, Reason: "looking up prior record failed", Err: err}
	}

	var warning *RotationWarning
	if prior == nil {
		warning = &RotationWarning{Tag: tag, Reason: "no prior record to delete"}
	} else if err := manager.host.DeleteRelease(ctx, prior.ID); err != nil {
		return &RotationWarning{Tag: tag, Reason: fmt.Sprintf("deleting prior record %d failed", prior.ID), Err: err}
	} else {
		manager.logger.Info("prior nightly record deleted", "tag", tag, "id", prior.ID)
	}

	// The tag must move to the new commit, so it goes too.
	if err := manager.host.DeleteTag(ctx, tag); err != nil {
		if warning == nil {
			return &RotationWarning{Tag: tag, Reason: "deleting tag failed", Err: err}
		}
		warning.Err = errors.Join(warning.Err, err)
	}
	return warning
}

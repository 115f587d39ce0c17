// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cachekey

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/bureau-release/lib/git"
)

// HeadSource reports the commit a remote ref currently points at.
type HeadSource interface {
	Head(ctx context.Context, url, ref string) (string, error)
}

// GitHeads is a HeadSource backed by "git ls-remote".
type GitHeads struct{}

// Head implements HeadSource.
func (GitHeads) Head(ctx context.Context, url, ref string) (string, error) {
	return git.LsRemote(ctx, url, ref)
}

// IndexKey returns the DependencyIndex key for the index at url.
func IndexKey(ctx context.Context, heads HeadSource, url, ref string) (Key, error) {
	head, err := heads.Head(ctx, url, ref)
	if err != nil {
		return Key{Scope: DependencyIndex}, fmt.Errorf("reading dependency index head: %w", err)
	}
	if head == "" {
		return Key{Scope: DependencyIndex}, fmt.Errorf("dependency index %s has an empty %s", url, ref)
	}
	return Key{Scope: DependencyIndex, Digest: head}, nil
}

// Deriver computes both keys for a run.
type Deriver struct {
	Heads HeadSource

	// IndexURL and IndexRef locate the dependency index. An empty URL
	// skips the index key.
	IndexURL string
	IndexRef string

	// LockfilePath is the project lockfile.
	LockfilePath string

	// OwnPackages lists package names to strip in addition to the
	// lockfile's source-less packages.
	OwnPackages []string

	Logger *slog.Logger
}

// Derive computes both keys. Failures never abort: each is logged,
// reported in the returned warnings, and leaves that key zero.
func (deriver *Deriver) Derive(ctx context.Context) (Keys, []string) {
	logger := deriver.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keys := Keys{
		Index:     Key{Scope: DependencyIndex},
		Artifacts: Key{Scope: DependencyArtifacts},
	}
	var warnings []string

	if deriver.IndexURL != "" {
		heads := deriver.Heads
		if heads == nil {
			heads = GitHeads{}
		}
		ref := deriver.IndexRef
		if ref == "" {
			ref = "HEAD"
		}
		key, err := IndexKey(ctx, heads, deriver.IndexURL, ref)
		if err != nil {
			logger.Warn("dependency index key unavailable, cache will miss",
				"url", deriver.IndexURL,
				"error", err,
			)
			warnings = append(warnings, err.Error())
		} else {
			keys.Index = key
		}
	}

	content, err := os.ReadFile(deriver.LockfilePath)
	if err != nil {
		err = fmt.Errorf("reading lockfile: %w", err)
	} else {
		var key Key
		key, err = LockfileKey(content, deriver.OwnPackages)
		if err == nil {
			keys.Artifacts = key
		}
	}
	if err != nil {
		logger.Warn("dependency artifacts key unavailable, cache will miss",
			"lockfile", deriver.LockfilePath,
			"error", err,
		)
		warnings = append(warnings, err.Error())
	}

	logger.Info("derived cache keys",
		"index", keys.Index.String(),
		"artifacts", keys.Artifacts.String(),
	)
	return keys, warnings
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/bureau-foundation/bureau-release/lib/build"
	"github.com/bureau-foundation/bureau-release/lib/cachekey"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/packager"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
	"github.com/bureau-foundation/bureau-release/lib/releaserecord"
)

// RunContext carries values between stages of one run. A stage reads
// only what its predecessors wrote; the graph's edges order the
// accesses and the mutex makes them safe across targets.
type RunContext struct {
	mu sync.Mutex

	trigger releaseinfo.Trigger
	info    releaseinfo.Info
	keys    cachekey.Keys
	record  *releaserecord.Record

	builds    map[matrix.Target]*build.Result
	artifacts map[matrix.Target]*packager.Artifact
	uploads   map[matrix.Target]releaserecord.Asset

	warnings []string
}

// NewRunContext returns an empty context for a run started by trigger.
func NewRunContext(trigger releaseinfo.Trigger) *RunContext {
	return &RunContext{
		trigger:   trigger,
		builds:    make(map[matrix.Target]*build.Result),
		artifacts: make(map[matrix.Target]*packager.Artifact),
		uploads:   make(map[matrix.Target]releaserecord.Asset),
	}
}

func (rc *RunContext) Trigger() releaseinfo.Trigger { return rc.trigger }

func (rc *RunContext) SetInfo(info releaseinfo.Info) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.info = info
}

func (rc *RunContext) Info() releaseinfo.Info {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.info
}

func (rc *RunContext) SetKeys(keys cachekey.Keys) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.keys = keys
}

func (rc *RunContext) Keys() cachekey.Keys {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.keys
}

func (rc *RunContext) SetRecord(record *releaserecord.Record) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.record = record
}

// Record is the run's release record, or nil before it is created.
func (rc *RunContext) Record() *releaserecord.Record {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.record
}

func (rc *RunContext) SetBuild(target matrix.Target, result *build.Result) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.builds[target] = result
}

func (rc *RunContext) Build(target matrix.Target) *build.Result {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.builds[target]
}

func (rc *RunContext) SetArtifact(target matrix.Target, artifact *packager.Artifact) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.artifacts[target] = artifact
}

func (rc *RunContext) Artifact(target matrix.Target) *packager.Artifact {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.artifacts[target]
}

// Artifacts returns every packaged artifact, ordered by target ID.
func (rc *RunContext) Artifacts() []*packager.Artifact {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	artifacts := make([]*packager.Artifact, 0, len(rc.artifacts))
	for _, artifact := range rc.artifacts {
		artifacts = append(artifacts, artifact)
	}
	slices.SortFunc(artifacts, func(a, b *packager.Artifact) int {
		return cmp.Compare(a.Target.ID(), b.Target.ID())
	})
	return artifacts
}

func (rc *RunContext) SetUpload(target matrix.Target, asset releaserecord.Asset) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.uploads[target] = asset
}

// Upload returns the asset uploaded for target.
func (rc *RunContext) Upload(target matrix.Target) (releaserecord.Asset, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	asset, exists := rc.uploads[target]
	return asset, exists
}

// Warn records a non-fatal problem for the run summary.
func (rc *RunContext) Warn(format string, args ...any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.warnings = append(rc.warnings, fmt.Sprintf(format, args...))
}

func (rc *RunContext) Warnings() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return slices.Clone(rc.warnings)
}

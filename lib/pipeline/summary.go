// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
)

// Outcome is the overall result of a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure means at least one target failed. The run itself
	// completed.
	OutcomeFailure Outcome = "failure"
	// OutcomeAborted means a run-scoped stage failed or the run was
	// cancelled.
	OutcomeAborted Outcome = "aborted"
)

// TargetStatus is one target's line in the summary.
type TargetStatus struct {
	Target  string `json:"target"`
	Archive string `json:"archive,omitempty"`
	Passed  bool   `json:"passed"`

	// State is the state of the target's furthest stage: succeeded
	// when uploaded, otherwise failed, skipped or cancelled.
	State State `json:"state"`

	// Stage, ErrorKind and Error describe the first failed stage.
	Stage     string `json:"stage,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	IndexHit     bool `json:"index_cache_hit"`
	ArtifactsHit bool `json:"artifacts_cache_hit"`
}

// StageStatus is one node's line in the summary.
type StageStatus struct {
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Target     string `json:"target,omitempty"`
	State      State  `json:"state"`
	DurationMS int64  `json:"duration_ms"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	SkippedBy  string `json:"skipped_by,omitempty"`
}

// Summary reports a run to whatever triggered it.
type Summary struct {
	Flow    releaseinfo.Kind `json:"flow"`
	Tag     string           `json:"tag,omitempty"`
	Version string           `json:"version,omitempty"`
	DryRun  bool             `json:"dry_run,omitempty"`
	Outcome Outcome          `json:"outcome"`

	// Error is the run's error, if any: the abort cause, or the
	// aggregate of target failures.
	Error string `json:"error,omitempty"`

	Targets  []TargetStatus `json:"targets"`
	Stages   []StageStatus  `json:"stages"`
	Warnings []string       `json:"warnings,omitempty"`

	// Published is set once the record is live: after the barrier for
	// versioned runs, after rotation for nightly runs.
	Published bool `json:"published"`

	DurationMS int64 `json:"duration_ms"`
}

// Passed counts targets that uploaded their archive.
func (summary *Summary) Passed() int {
	passed := 0
	for _, target := range summary.Targets {
		if target.Passed {
			passed++
		}
	}
	return passed
}

// Failed counts targets that did not.
func (summary *Summary) Failed() int {
	return len(summary.Targets) - summary.Passed()
}

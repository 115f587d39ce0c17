// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// resultLog writes one JSON object per line while a run progresses.
// A killed run keeps every completed stage's line, and a CI step can
// tail the file for progress. A nil *resultLog is a no-op.
type resultLog struct {
	logger  *slog.Logger
	file    *os.File
	encoder *json.Encoder
}

func newResultLog(path string, logger *slog.Logger) (*resultLog, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating result log %s: %w", path, err)
	}
	return &resultLog{
		logger:  logger,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

func (r *resultLog) Close() error {
	if r == nil {
		return nil
	}
	return r.file.Close()
}

func (r *resultLog) writeStart(flow string, stages, targets int, started time.Time) {
	if r == nil {
		return
	}
	r.write(resultStartEntry{
		Type:      "start",
		Flow:      flow,
		Stages:    stages,
		Targets:   targets,
		Timestamp: started.UTC().Format(time.RFC3339),
	})
}

func (r *resultLog) writeStage(node NodeResult) {
	if r == nil {
		return
	}
	entry := resultStageEntry{
		Type:       "stage",
		Name:       node.Name,
		State:      node.State,
		DurationMS: node.Duration.Milliseconds(),
		SkippedBy:  node.SkippedBy,
	}
	if node.Err != nil {
		entry.Error = node.Err.Error()
		entry.ErrorKind = ErrorKind(node.Err)
	}
	r.write(entry)
}

func (r *resultLog) writeComplete(summary *Summary) {
	if r == nil {
		return
	}
	r.write(resultCompleteEntry{
		Type:       "complete",
		Outcome:    summary.Outcome,
		Tag:        summary.Tag,
		Version:    summary.Version,
		Passed:     summary.Passed(),
		Failed:     summary.Failed(),
		Published:  summary.Published,
		Error:      summary.Error,
		DurationMS: summary.DurationMS,
	})
}

func (r *resultLog) write(entry any) {
	if err := r.encoder.Encode(entry); err != nil {
		r.logger.Warn("failed to write result log entry", "error", err)
		return
	}
	if err := r.file.Sync(); err != nil {
		r.logger.Warn("failed to sync result log", "error", err)
	}
}

type resultStartEntry struct {
	Type      string `json:"type"`
	Flow      string `json:"flow"`
	Stages    int    `json:"stages"`
	Targets   int    `json:"targets"`
	Timestamp string `json:"timestamp"`
}

type resultStageEntry struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	State      State  `json:"state"`
	DurationMS int64  `json:"duration_ms"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	SkippedBy  string `json:"skipped_by,omitempty"`
}

type resultCompleteEntry struct {
	Type       string  `json:"type"`
	Outcome    Outcome `json:"outcome"`
	Tag        string  `json:"tag,omitempty"`
	Version    string  `json:"version,omitempty"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	Published  bool    `json:"published"`
	Error      string  `json:"error,omitempty"`
	DurationMS int64   `json:"duration_ms"`
}

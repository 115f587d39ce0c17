// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
)

// Commit status states.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"
)

// CreateStatusRequest contains the fields for creating a commit status.
type CreateStatusRequest struct {
	State     string `json:"state"`
	TargetURL string `json:"target_url,omitempty"`

	// Description is truncated by GitHub at 140 characters.
	Description string `json:"description,omitempty"`

	// Context distinguishes statuses on the same commit, for example
	// "release/linux-x86_64-unknown-linux-gnu-generic-stable".
	Context string `json:"context,omitempty"`
}

// CreateCommitStatus creates a status on the commit sha.
func (client *Client) CreateCommitStatus(ctx context.Context, owner, repo, sha string, request CreateStatusRequest) (*CommitStatus, error) {
	var status CommitStatus
	path := fmt.Sprintf("/repos/%s/%s/statuses/%s", owner, repo, sha)
	if err := client.post(ctx, path, request, &status); err != nil {
		return nil, fmt.Errorf("creating status on %s/%s@%s: %w", owner, repo, sha[:min(len(sha), 8)], err)
	}
	return &status, nil
}

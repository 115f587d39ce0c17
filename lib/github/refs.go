// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
)

// GetRef returns a git reference. ref omits the "refs/" prefix, for
// example "tags/nightly".
func (client *Client) GetRef(ctx context.Context, owner, repo, ref string) (*Ref, error) {
	var result Ref
	path := fmt.Sprintf("/repos/%s/%s/git/ref/%s", owner, repo, ref)
	if err := client.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("getting ref %s in %s/%s: %w", ref, owner, repo, err)
	}
	return &result, nil
}

// DeleteRef deletes a git reference. ref omits the "refs/" prefix.
func (client *Client) DeleteRef(ctx context.Context, owner, repo, ref string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs/%s", owner, repo, ref)
	if err := client.delete(ctx, path); err != nil {
		return fmt.Errorf("deleting ref %s in %s/%s: %w", ref, owner, repo, err)
	}
	return nil
}

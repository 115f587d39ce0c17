// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package git wraps the git CLI for the few repository queries the
// release pipeline makes: the commit being released, whether a tag
// already exists locally, and the head of a remote (the dependency
// index) without cloning it.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrRefNotFound is returned when a ref does not exist on the remote
// or in the repository.
var ErrRefNotFound = errors.New("git: ref not found")

// Repository is a git working tree or bare repository. Every command
// targets it via "git -C <dir>".
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command in this repository and returns stdout.
// Stderr is included in the error on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	return run(ctx, append([]string{"-C", r.dir}, args...)...)
}

// HeadCommit returns the full SHA of HEAD.
func (r *Repository) HeadCommit(ctx context.Context) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// TagExists reports whether refs/tags/<tag> exists in this repository.
func (r *Repository) TagExists(ctx context.Context, tag string) (bool, error) {
	command := exec.CommandContext(ctx, "git", "-C", r.dir, "show-ref", "--verify", "--quiet", "refs/tags/"+tag)
	err := command.Run()
	if err == nil {
		return true, nil
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) && exitError.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("git show-ref refs/tags/%s in %s: %w", tag, r.dir, err)
}

// LsRemote returns the commit SHA that ref points to on the remote at
// url. The remote is queried live; nothing is fetched. Returns
// ErrRefNotFound if the remote has no such ref.
func LsRemote(ctx context.Context, url, ref string) (string, error) {
	output, err := run(ctx, "ls-remote", url, ref)
	if err != nil {
		return "", err
	}
	for line := range strings.SplitSeq(output, "\n") {
		sha, name, found := strings.Cut(strings.TrimSpace(line), "\t")
		if !found {
			continue
		}
		if name == ref || strings.HasSuffix(name, "/"+ref) {
			return sha, nil
		}
	}
	return "", fmt.Errorf("%w: %s on %s", ErrRefNotFound, ref, url)
}

func run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", args...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w (stderr: %s)",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

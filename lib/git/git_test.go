// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initRepo creates a repository with one commit and returns its path.
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	gitCommand := func(args ...string) {
		t.Helper()
		command := exec.Command("git", append([]string{"-C", dir}, args...)...)
		command.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.local",
			"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.local",
		)
		if output, err := command.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, output)
		}
	}

	gitCommand("init", "--initial-branch=main")
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	gitCommand("add", "Cargo.toml")
	gitCommand("commit", "-m", "initial")
	gitCommand("tag", "v1.0.0")
	return dir
}

func TestHeadCommitAndLsRemote(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	repository := NewRepository(dir)

	head, err := repository.HeadCommit(ctx)
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if len(head) != 40 {
		t.Fatalf("HeadCommit = %q, want a 40-character SHA", head)
	}

	remoteHead, err := LsRemote(ctx, dir, "refs/heads/main")
	if err != nil {
		t.Fatalf("LsRemote: %v", err)
	}
	if remoteHead != head {
		t.Errorf("LsRemote = %s, want %s", remoteHead, head)
	}

	shortName, err := LsRemote(ctx, dir, "main")
	if err != nil {
		t.Fatalf("LsRemote(main): %v", err)
	}
	if shortName != head {
		t.Errorf("LsRemote(main) = %s, want %s", shortName, head)
	}
}

func TestLsRemoteMissingRef(t *testing.T) {
	dir := initRepo(t)
	_, err := LsRemote(context.Background(), dir, "refs/heads/does-not-exist")
	if !errors.Is(err, ErrRefNotFound) {
		t.Fatalf("LsRemote error = %v, want ErrRefNotFound", err)
	}
}

func TestTagExists(t *testing.T) {
	dir := initRepo(t)
	repository := NewRepository(dir)
	ctx := context.Background()

	exists, err := repository.TagExists(ctx, "v1.0.0")
	if err != nil || !exists {
		t.Errorf("TagExists(v1.0.0) = %v, %v; want true", exists, err)
	}
	exists, err = repository.TagExists(ctx, "v9.9.9")
	if err != nil || exists {
		t.Errorf("TagExists(v9.9.9) = %v, %v; want false", exists, err)
	}
}

func TestRunReportsStderr(t *testing.T) {
	dir := initRepo(t)
	_, err := NewRepository(dir).Run(context.Background(), "rev-parse", "no-such-revision")
	if err == nil {
		t.Fatal("Run should fail for an unknown revision")
	}
}

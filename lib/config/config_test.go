// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "release.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_RequiresEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when BUREAU_RELEASE_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "BUREAU_RELEASE_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_WithEnvironmentVariable(t *testing.T) {
	path := writeConfig(t, `
environment: ci
paths:
  root: /srv/release
github:
  owner: input-output-hk
  repo: jormungandr
`)
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != CI {
		t.Errorf("environment = %s, want ci", cfg.Environment)
	}
	if cfg.Paths.Cache != "/srv/release/cache" {
		t.Errorf("paths.cache = %s, want /srv/release/cache", cfg.Paths.Cache)
	}
	if cfg.GitHub.TokenEnv != "GITHUB_TOKEN" {
		t.Errorf("github.token_env = %s, want default GITHUB_TOKEN", cfg.GitHub.TokenEnv)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: ci
paths:
  root: /base
cache:
  compression: zstd
run:
  parallelism: 2
github:
  owner: o
  repo: r
ci:
  paths:
    cache: /mnt/cache
  cache:
    compression: lz4
  run:
    parallelism: 8
    report_status: true
local:
  paths:
    cache: /should/not/apply
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Cache != "/mnt/cache" {
		t.Errorf("paths.cache = %s, want /mnt/cache", cfg.Paths.Cache)
	}
	if cfg.Paths.Work != "/base/work" {
		t.Errorf("paths.work = %s, want /base/work", cfg.Paths.Work)
	}
	if cfg.Cache.Compression != "lz4" {
		t.Errorf("cache.compression = %s, want lz4", cfg.Cache.Compression)
	}
	if cfg.Run.Parallelism != 8 || !cfg.Run.ReportStatus {
		t.Errorf("run = %+v, want parallelism 8 with status reporting", cfg.Run)
	}
}

func TestLoadFile_ExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/releaser")
	path := writeConfig(t, "github: {owner: o, repo: r}\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Root != "/home/releaser/.cache/bureau-release" {
		t.Errorf("paths.root = %s", cfg.Paths.Root)
	}
	if cfg.Paths.Output != "/home/releaser/.cache/bureau-release/output" {
		t.Errorf("paths.output = %s", cfg.Paths.Output)
	}
}

func TestLoadFile_RelativeSourceAndDefinition(t *testing.T) {
	path := writeConfig(t, "paths: {source: checkout, definition: ci/release.jsonc}\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	base := filepath.Dir(path)
	if want := filepath.Join(base, "checkout"); cfg.Paths.Source != want {
		t.Errorf("paths.source = %s, want %s", cfg.Paths.Source, want)
	}
	if want := filepath.Join(base, "checkout", "ci", "release.jsonc"); cfg.Paths.Definition != want {
		t.Errorf("paths.definition = %s, want %s", cfg.Paths.Definition, want)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Environment = "production"
	cfg.Cache.Compression = "brotli"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, fragment := range []string{"invalid environment", "github.owner", "cache.compression"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q does not mention %q", err, fragment)
		}
	}
}

func TestToken(t *testing.T) {
	cfg := Default()
	cfg.GitHub.TokenEnv = "RELEASE_TEST_TOKEN"

	t.Setenv("RELEASE_TEST_TOKEN", "")
	if _, err := cfg.Token(); err == nil {
		t.Error("Token() should fail when the variable is empty")
	}

	t.Setenv("RELEASE_TEST_TOKEN", "ghp_example")
	token, err := cfg.Token()
	if err != nil || token != "ghp_example" {
		t.Errorf("Token() = %q, %v", token, err)
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.Work = filepath.Join(root, "work")
	cfg.Paths.Cache = filepath.Join(root, "cache")
	cfg.Paths.Output = filepath.Join(root, "out", "archives")
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, path := range []string{cfg.Paths.Work, cfg.Paths.Cache, cfg.Paths.Output} {
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			t.Errorf("%s was not created", path)
		}
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bureau-release tool configuration.
//
// Configuration is loaded from a single YAML file named by:
//   - BUREAU_RELEASE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The file may contain
// per-environment sections (local, ci) that override base values when
// the environment matches.
//
// This file describes where the tool keeps its state and how it reaches
// the release host. What gets built and released is described by the
// release definition (see lib/releasedef), whose path is configured
// here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "BUREAU_RELEASE_CONFIG"

// Environment identifies where the tool runs.
type Environment string

const (
	// Local is a developer machine: dry runs and plan output.
	Local Environment = "local"
	// CI is the release runner.
	CI Environment = "ci"
)

// Config is the tool configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths  PathsConfig  `yaml:"paths"`
	GitHub GitHubConfig `yaml:"github"`
	Cache  CacheConfig  `yaml:"cache"`
	Run    RunConfig    `yaml:"run"`

	Local *ConfigOverrides `yaml:"local,omitempty"`
	CI    *ConfigOverrides `yaml:"ci,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	GitHub *GitHubConfig `yaml:"github,omitempty"`
	Cache  *CacheConfig  `yaml:"cache,omitempty"`
	Run    *RunConfig    `yaml:"run,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for pipeline state. The other
	// directories default to subdirectories of it.
	Root string `yaml:"root"`

	// Source is the checkout being released. The release definition
	// and the project manifest and lockfile paths it names are
	// resolved relative to this directory.
	Source string `yaml:"source"`

	// Definition is the release definition file (JSONC).
	Definition string `yaml:"definition"`

	// Work holds per-target build output and logs.
	Work string `yaml:"work"`

	// Cache holds the dependency cache.
	Cache string `yaml:"cache"`

	// Output receives finished archives and checksum sidecars.
	Output string `yaml:"output"`
}

// GitHubConfig configures the release host.
type GitHubConfig struct {
	// BaseURL is the API root. Default: https://api.github.com
	BaseURL string `yaml:"base_url"`

	// UploadURL is the asset upload root. Default:
	// https://uploads.github.com
	UploadURL string `yaml:"upload_url"`

	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`

	// TokenEnv names the environment variable holding the API token.
	// The token itself is never written to configuration.
	TokenEnv string `yaml:"token_env"`
}

// CacheConfig configures the dependency cache.
type CacheConfig struct {
	// Compression is the payload codec for new entries: zstd, lz4,
	// or none.
	Compression string `yaml:"compression"`
}

// RunConfig configures pipeline execution.
type RunConfig struct {
	// Parallelism bounds how many pipeline stages run at once. Zero
	// means unbounded.
	Parallelism int `yaml:"parallelism"`

	// ReportStatus posts a commit status per build target.
	ReportStatus bool `yaml:"report_status"`
}

// Default returns the configuration that a loaded file is merged into.
// The config file is still required.
func Default() *Config {
	return &Config{
		Environment: Local,
		Paths: PathsConfig{
			Root:       "${HOME}/.cache/bureau-release",
			Source:     ".",
			Definition: "release.jsonc",
			Work:       "${RELEASE_ROOT}/work",
			Cache:      "${RELEASE_ROOT}/cache",
			Output:     "${RELEASE_ROOT}/output",
		},
		GitHub: GitHubConfig{
			BaseURL:   "https://api.github.com",
			UploadURL: "https://uploads.github.com",
			TokenEnv:  "GITHUB_TOKEN",
		},
		Cache: CacheConfig{
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the BUREAU_RELEASE_CONFIG environment
// variable. Fails if it is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your release config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the matching
// environment section, and expands ${HOME}-style variables in paths.
// Relative source and definition paths are resolved against the
// config file's directory.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	base := filepath.Dir(path)
	if !filepath.IsAbs(cfg.Paths.Source) {
		cfg.Paths.Source = filepath.Join(base, cfg.Paths.Source)
	}
	if !filepath.IsAbs(cfg.Paths.Definition) {
		cfg.Paths.Definition = filepath.Join(cfg.Paths.Source, cfg.Paths.Definition)
	}

	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Local:
		overrides = c.Local
	case CI:
		overrides = c.CI
	}
	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		setIfNonEmpty(&c.Paths.Root, overrides.Paths.Root)
		setIfNonEmpty(&c.Paths.Source, overrides.Paths.Source)
		setIfNonEmpty(&c.Paths.Definition, overrides.Paths.Definition)
		setIfNonEmpty(&c.Paths.Work, overrides.Paths.Work)
		setIfNonEmpty(&c.Paths.Cache, overrides.Paths.Cache)
		setIfNonEmpty(&c.Paths.Output, overrides.Paths.Output)
	}
	if overrides.GitHub != nil {
		setIfNonEmpty(&c.GitHub.BaseURL, overrides.GitHub.BaseURL)
		setIfNonEmpty(&c.GitHub.UploadURL, overrides.GitHub.UploadURL)
		setIfNonEmpty(&c.GitHub.Owner, overrides.GitHub.Owner)
		setIfNonEmpty(&c.GitHub.Repo, overrides.GitHub.Repo)
		setIfNonEmpty(&c.GitHub.TokenEnv, overrides.GitHub.TokenEnv)
	}
	if overrides.Cache != nil {
		setIfNonEmpty(&c.Cache.Compression, overrides.Cache.Compression)
	}
	if overrides.Run != nil {
		if overrides.Run.Parallelism != 0 {
			c.Run.Parallelism = overrides.Run.Parallelism
		}
		// Bool, so the override section always wins.
		c.Run.ReportStatus = overrides.Run.ReportStatus
	}
}

func setIfNonEmpty(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["RELEASE_ROOT"] = c.Paths.Root

	c.Paths.Source = expandVars(c.Paths.Source, vars)
	c.Paths.Definition = expandVars(c.Paths.Definition, vars)
	c.Paths.Work = expandVars(c.Paths.Work, vars)
	c.Paths.Cache = expandVars(c.Paths.Cache, vars)
	c.Paths.Output = expandVars(c.Paths.Output, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Local && c.Environment != CI {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		errs = append(errs, fmt.Errorf("github.owner and github.repo are required"))
	}
	if c.GitHub.TokenEnv == "" {
		errs = append(errs, fmt.Errorf("github.token_env is required"))
	}
	compressions := []string{"zstd", "lz4", "none"}
	if !slices.Contains(compressions, c.Cache.Compression) {
		errs = append(errs, fmt.Errorf("cache.compression must be one of: %v", compressions))
	}
	if c.Run.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("run.parallelism must not be negative"))
	}

	return errors.Join(errs...)
}

// Token returns the API token from the configured environment
// variable.
func (c *Config) Token() (string, error) {
	token := os.Getenv(c.GitHub.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("%s is not set", c.GitHub.TokenEnv)
	}
	return token, nil
}

// EnsurePaths creates the work, cache, and output directories.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Work, c.Paths.Cache, c.Paths.Output} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/bureau-release/cmd/bureau-release/cli"
	"github.com/bureau-foundation/bureau-release/lib/build"
	"github.com/bureau-foundation/bureau-release/lib/cachekey"
	"github.com/bureau-foundation/bureau-release/lib/clock"
	"github.com/bureau-foundation/bureau-release/lib/config"
	"github.com/bureau-foundation/bureau-release/lib/depcache"
	"github.com/bureau-foundation/bureau-release/lib/git"
	"github.com/bureau-foundation/bureau-release/lib/github"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/packager"
	"github.com/bureau-foundation/bureau-release/lib/pipeline"
	"github.com/bureau-foundation/bureau-release/lib/publish"
	"github.com/bureau-foundation/bureau-release/lib/releasedef"
	"github.com/bureau-foundation/bureau-release/lib/releaserecord"
	"github.com/bureau-foundation/bureau-release/lib/version"
)

// releaseHost is a release host that also takes commit statuses.
type releaseHost interface {
	releaserecord.Host
	releaserecord.StatusReporter
}

// app holds what commands share. Tests replace the clock, the index
// head source and the release host.
type app struct {
	stdout io.Writer
	stderr io.Writer
	clock  clock.Clock

	// heads is nil in production, meaning git ls-remote.
	heads cachekey.HeadSource

	// host, when set, replaces the GitHub host for non-dry runs.
	host releaseHost
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, clock: clock.Real()}
}

func (app *app) root() *cli.Command {
	return &cli.Command{
		Name: "bureau-release",
		Description: `bureau-release: release-build orchestration.

Expands the build matrix from a release definition, builds every target
with a shared dependency cache, packages and verifies the archives, and
publishes them: as a versioned release gated on every target passing,
or as the rotating nightly release.`,
		Output: app.stderr,
		Subcommands: []*cli.Command{
			app.runCommand(),
			app.planCommand(),
			app.cacheKeyCommand(),
			app.verifyCommand(),
			app.scheduleCommand(),
			app.versionCommand(),
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 1 && args[0] == "--version" {
				fmt.Fprintf(app.stdout, "bureau-release %s\n", version.Info())
				return nil
			}
			return errors.New("subcommand required\n\nRun 'bureau-release --help' for usage.")
		},
	}
}

func (app *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print the bureau-release build",
		Run: func(ctx context.Context, args []string) error {
			fmt.Fprintf(app.stdout, "bureau-release %s\n", version.Full())
			return nil
		},
	}
}

// configParams locate the tool config. Every command embeds them.
type configParams struct {
	Config  string `flag:"config,c" desc:"tool config file (default: $BUREAU_RELEASE_CONFIG)"`
	Verbose bool   `flag:"verbose,v" desc:"log debug records, including toolchain command lines"`
}

// environment is a loaded config and release definition.
type environment struct {
	config     *config.Config
	definition *releasedef.Definition
	matrix     *matrix.Matrix
	logger     *slog.Logger
}

func (app *app) load(params configParams) (*environment, error) {
	var cfg *config.Config
	var err error
	if params.Config != "" {
		cfg, err = config.LoadFile(params.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	definition, err := releasedef.ReadFile(cfg.Paths.Definition)
	if err != nil {
		return nil, err
	}
	if issues := releasedef.Validate(definition); len(issues) > 0 {
		return nil, fmt.Errorf("%s: %d issue(s):\n  - %s",
			cfg.Paths.Definition, len(issues), strings.Join(issues, "\n  - "))
	}
	definition.Resolve(cfg.Paths.Source)

	buildMatrix, err := definition.BuildMatrix()
	if err != nil {
		return nil, err
	}
	return &environment{
		config:     cfg,
		definition: definition,
		matrix:     buildMatrix,
		logger:     cli.NewCommandLogger(app.stderr, params.Verbose),
	}, nil
}

// runOptions are the per-invocation controller settings.
type runOptions struct {
	dryRun       bool
	parallelism  int
	reportStatus bool
	resultPath   string
}

// controller wires the whole pipeline for env.
func (app *app) controller(env *environment, options runOptions) (*pipeline.Controller, error) {
	cfg := env.config
	definition := env.definition
	logger := env.logger

	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	compression, err := depcache.ParseCompression(cfg.Cache.Compression)
	if err != nil {
		return nil, err
	}
	store, err := depcache.New(depcache.Config{
		Root:        cfg.Paths.Cache,
		Compression: compression,
		Clock:       app.clock,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	executor, err := build.NewExecutor(build.Config{
		Toolchain: definition.Command(cfg.Paths.Source, logger),
		Cache:     store,
		Binaries:  definition.Binaries,
		WorkRoot:  cfg.Paths.Work,
		DateEnv:   definition.DateEnv,
		Clock:     app.clock,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	archiver, err := packager.New(packager.Config{
		Project:    definition.Project,
		OutputDir:  cfg.Paths.Output,
		ScratchDir: filepath.Join(cfg.Paths.Work, "verify"),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	host, err := app.releaseHost(cfg, options.dryRun, logger)
	if err != nil {
		return nil, err
	}
	var statuses releaserecord.StatusReporter
	if options.reportStatus || cfg.Run.ReportStatus {
		statuses = host
	}

	parallelism := cfg.Run.Parallelism
	if options.parallelism > 0 {
		parallelism = options.parallelism
	}

	return pipeline.NewController(pipeline.Config{
		Matrix:   env.matrix,
		Resolver: definition.Resolver(app.clock),
		Deriver:  definition.Deriver(app.heads, logger),
		Builder:  executor,
		Packager: archiver,
		Records: releaserecord.NewManager(releaserecord.Config{
			Host:       host,
			NightlyTag: definition.NightlyTag,
			Logger:     logger,
		}),
		Publisher:   publish.New(publish.Config{Host: host, Logger: logger}),
		Statuses:    statuses,
		Parallelism: parallelism,
		ResultPath:  options.resultPath,
		DryRun:      options.dryRun,
		Clock:       app.clock,
		Logger:      logger,
	})
}

// releaseHost picks the host records are written to: in memory for a
// dry run, otherwise GitHub.
func (app *app) releaseHost(cfg *config.Config, dryRun bool, logger *slog.Logger) (releaseHost, error) {
	if dryRun {
		return releaserecord.NewMemoryHost(), nil
	}
	if app.host != nil {
		return app.host, nil
	}
	token, err := cfg.Token()
	if err != nil {
		return nil, fmt.Errorf("release host token: %w (use --dry-run to publish in memory)", err)
	}
	client, err := github.NewClient(github.Config{
		BaseURL:   cfg.GitHub.BaseURL,
		UploadURL: cfg.GitHub.UploadURL,
		Token:     token,
		Clock:     app.clock,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return &releaserecord.GitHubHost{Client: client, Owner: cfg.GitHub.Owner, Repo: cfg.GitHub.Repo}, nil
}

// headCommit reads the checkout's HEAD for triggers that name no
// commit. Statuses and tag creation need it; a checkout that is not a
// git repository leaves it empty.
func headCommit(ctx context.Context, env *environment) string {
	commit, err := git.NewRepository(env.config.Paths.Source).HeadCommit(ctx)
	if err != nil {
		env.logger.Debug("checkout HEAD unavailable", "source", env.config.Paths.Source, "error", err)
		return ""
	}
	return commit
}

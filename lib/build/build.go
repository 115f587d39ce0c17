// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/bureau-release/lib/cachekey"
	"github.com/bureau-foundation/bureau-release/lib/clock"
	"github.com/bureau-foundation/bureau-release/lib/depcache"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
	"github.com/bureau-foundation/bureau-release/lib/toolchain"
)

// Stage names the step of a target build that failed.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageBuild Stage = "build"
)

// Error reports a toolchain failure for one target. Binary is empty
// for fetch failures.
type Error struct {
	Target matrix.Target
	Binary string
	Stage  Stage
	Err    error
}

func (err *Error) Error() string {
	if err.Binary == "" {
		return fmt.Sprintf("%s %s: %v", err.Target.ID(), err.Stage, err.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", err.Target.ID(), err.Stage, err.Binary, err.Err)
}

func (err *Error) Unwrap() error { return err.Err }

// Binary is one built executable.
type Binary struct {
	// Name is the file name inside the release archive, including the
	// executable suffix.
	Name string `json:"name"`
	Path string `json:"path"`
}

// Request is one target build.
type Request struct {
	Target matrix.Target
	Info   releaseinfo.Info
	Keys   cachekey.Keys
}

// Result describes a successful target build.
type Result struct {
	Target   matrix.Target
	Binaries []Binary

	WorkDir string
	LogPath string

	IndexHit     bool
	ArtifactsHit bool
	Duration     time.Duration
}

// Config configures an Executor.
type Config struct {
	Toolchain toolchain.Toolchain

	// Cache is the shared dependency cache. Nil disables caching and
	// every build fetches.
	Cache *depcache.Store

	// Binaries are built in order for every target.
	Binaries []string

	// WorkRoot holds one directory per target.
	WorkRoot string

	// DateEnv names the environment variable that receives the date
	// stamp of nightly builds. Empty disables it.
	DateEnv string

	// Clock times builds. Defaults to the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Executor runs target builds. Safe for concurrent use across
// different targets.
type Executor struct {
	toolchain toolchain.Toolchain
	cache     *depcache.Store
	binaries  []string
	workRoot  string
	dateEnv   string
	clock     clock.Clock
	logger    *slog.Logger
}

// NewExecutor validates config and returns an executor.
func NewExecutor(config Config) (*Executor, error) {
	if config.Toolchain == nil {
		return nil, errors.New("build: toolchain is required")
	}
	if len(config.Binaries) == 0 {
		return nil, errors.New("build: at least one binary is required")
	}
	if config.WorkRoot == "" {
		return nil, errors.New("build: work root is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Executor{
		toolchain: config.Toolchain,
		cache:     config.Cache,
		binaries:  config.Binaries,
		workRoot:  config.WorkRoot,
		dateEnv:   config.DateEnv,
		clock:     config.Clock,
		logger:    config.Logger,
	}, nil
}

// WorkDir returns the work directory for target.
func (executor *Executor) WorkDir(target matrix.Target) string {
	return filepath.Join(executor.workRoot, target.ID())
}

// Build restores caches, fetches on a miss and builds every binary for
// request.Target.
func (executor *Executor) Build(ctx context.Context, request Request) (*Result, error) {
	started := executor.clock.Now()
	target := request.Target
	logger := executor.logger.With("target", target.ID())

	workDir := executor.WorkDir(target)
	cacheDir := filepath.Join(workDir, "cache")
	outDir := filepath.Join(workDir, "out")
	// A previous run's binaries must not satisfy this one.
	if err := os.RemoveAll(outDir); err != nil {
		return nil, fmt.Errorf("cleaning %s: %w", outDir, err)
	}
	for _, directory := range []string{cacheDir, outDir} {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", directory, err)
		}
	}

	logPath := filepath.Join(workDir, "build.log")
	log, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("creating build log: %w", err)
	}
	defer log.Close()

	result := &Result{Target: target, WorkDir: workDir, LogPath: logPath}

	invocation := toolchain.Invocation{
		Target:    target,
		Version:   request.Info.StampedVersion(),
		DateStamp: request.Info.DateStamp,
		OutDir:    outDir,
		CacheDir:  cacheDir,
		Env:       executor.environment(request.Info),
		Log:       log,
	}

	scopes := cacheScopes(request.Keys, cacheDir)
	if _, err := executor.dependencies(ctx, logger, invocation, scopes); err != nil {
		return nil, err
	}
	result.IndexHit = scopes[0].hit
	result.ArtifactsHit = scopes[1].hit

	for _, binary := range executor.binaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		invocation.Binary = binary
		path, err := executor.toolchain.Build(ctx, invocation)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &Error{Target: target, Binary: binary, Stage: StageBuild, Err: err}
		}
		result.Binaries = append(result.Binaries, Binary{
			Name: binary + target.ExecutableSuffix(),
			Path: path,
		})
	}

	result.Duration = executor.clock.Now().Sub(started)
	logger.Info("target built",
		"binaries", len(result.Binaries),
		"duration", result.Duration,
	)
	return result, nil
}

// Prefetch populates the dependency cache once, ahead of the matrix, so
// target builds restore instead of each fetching. request.Target only
// selects the toolchain invocation; the fetched content is the same for
// every target. Returns whether a fetch ran. Nothing runs when caching
// is disabled or every non-zero key is already stored.
func (executor *Executor) Prefetch(ctx context.Context, request Request) (bool, error) {
	if executor.cache == nil {
		return false, nil
	}
	missing := false
	for _, key := range []cachekey.Key{request.Keys.Index, request.Keys.Artifacts} {
		if key.IsZero() {
			continue
		}
		if _, stored := executor.cache.Stat(key); !stored {
			missing = true
		}
	}
	if !missing {
		return false, nil
	}

	logger := executor.logger.With("stage", "prefetch")
	workDir := filepath.Join(executor.workRoot, "prefetch")
	// Stale content from an interrupted prefetch would be stored under
	// the new keys.
	if err := os.RemoveAll(workDir); err != nil {
		return false, fmt.Errorf("cleaning %s: %w", workDir, err)
	}
	cacheDir := filepath.Join(workDir, "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", cacheDir, err)
	}
	log, err := os.Create(filepath.Join(workDir, "fetch.log"))
	if err != nil {
		return false, fmt.Errorf("creating fetch log: %w", err)
	}
	defer log.Close()

	invocation := toolchain.Invocation{
		Target:   request.Target,
		Version:  request.Info.StampedVersion(),
		OutDir:   filepath.Join(workDir, "out"),
		CacheDir: cacheDir,
		Log:      log,
	}
	return executor.dependencies(ctx, logger, invocation, cacheScopes(request.Keys, cacheDir))
}

// cacheScope is one cached dependency directory.
type cacheScope struct {
	key       cachekey.Key
	directory string
	hit       bool
}

func cacheScopes(keys cachekey.Keys, cacheDir string) []*cacheScope {
	return []*cacheScope{
		{key: keys.Index, directory: filepath.Join(cacheDir, "registry", "index")},
		{key: keys.Artifacts, directory: filepath.Join(cacheDir, "registry", "cache")},
	}
}

// dependencies restores every scope, and when any missed runs the
// toolchain fetch and writes the missed scopes back. Returns whether a
// fetch ran.
func (executor *Executor) dependencies(ctx context.Context, logger *slog.Logger, invocation toolchain.Invocation, scopes []*cacheScope) (bool, error) {
	allHit := true
	for _, scope := range scopes {
		scope.hit = executor.restore(ctx, logger, scope.key, scope.directory)
		allHit = allHit && scope.hit
	}
	if allHit {
		return false, nil
	}

	logger.Info("fetching dependencies",
		"index_hit", scopes[0].hit,
		"artifacts_hit", scopes[1].hit,
	)
	if err := executor.toolchain.Fetch(ctx, invocation); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return true, ctxErr
		}
		return true, &Error{Target: invocation.Target, Stage: StageFetch, Err: err}
	}
	for _, scope := range scopes {
		if !scope.hit {
			executor.store(ctx, logger, scope.key, scope.directory)
		}
	}
	return true, nil
}

func (executor *Executor) environment(info releaseinfo.Info) map[string]string {
	if executor.dateEnv == "" || info.DateStamp == "" {
		return nil
	}
	return map[string]string{executor.dateEnv: info.DateStamp}
}

func (executor *Executor) restore(ctx context.Context, logger *slog.Logger, key cachekey.Key, directory string) bool {
	if executor.cache == nil {
		return false
	}
	hit, err := executor.cache.Get(ctx, key, directory)
	if err != nil {
		logger.Warn("cache restore failed, continuing without cache",
			"key", key.String(),
			"error", err,
		)
		// A partial restore must not be mistaken for fetched content.
		os.RemoveAll(directory)
		return false
	}
	return hit
}

func (executor *Executor) store(ctx context.Context, logger *slog.Logger, key cachekey.Key, directory string) {
	if executor.cache == nil || key.IsZero() {
		return
	}
	if _, err := os.Stat(directory); err != nil {
		logger.Debug("nothing to cache", "key", key.String(), "directory", directory)
		return
	}
	if err := executor.cache.Put(ctx, key, directory); err != nil {
		logger.Warn("cache write failed", "key", key.String(), "error", err)
	}
}

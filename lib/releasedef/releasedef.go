// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package releasedef parses and validates release definitions.
//
// A release definition describes what a project ships: the binaries,
// the build matrix, the toolchain command templates, where the
// dependency index lives, and when nightlies run. Definitions are
// authored as JSONC files (JSON with comments and trailing commas),
// conventionally release.jsonc at the root of the checkout.
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Definition, with defaults applied
//  2. Validate: structural checks, reported as a list of issues
//  3. Resolve: make manifest and lockfile paths absolute
//  4. Matrix, Toolchain, Deriver: build the runtime components
package releasedef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/bureau-release/lib/cachekey"
	"github.com/bureau-foundation/bureau-release/lib/clock"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
	"github.com/bureau-foundation/bureau-release/lib/toolchain"
)

// Defaults applied by Parse to omitted fields.
const (
	DefaultManifest = "Cargo.toml"
	DefaultLockfile = "Cargo.lock"
	DefaultIndexRef = "HEAD"
	DefaultSchedule = "@nightly"
	DefaultDateEnv  = "BUILD_DATE"
)

// Definition is a parsed release definition.
type Definition struct {
	// Project prefixes archive and release names.
	Project string `json:"project"`

	// Binaries are built for every target and shipped together in
	// one archive per target.
	Binaries []string `json:"binaries"`

	// Manifest is the project manifest nightly versions are read
	// from. Relative to the checkout.
	Manifest string `json:"manifest,omitempty"`

	// Lockfile is the dependency lockfile the artifacts cache key is
	// derived from. Relative to the checkout.
	Lockfile string `json:"lockfile,omitempty"`

	// OwnPackages names lockfile packages whose versions are stripped
	// before hashing, in addition to those without a source.
	OwnPackages []string `json:"own_packages,omitempty"`

	Index IndexSource `json:"index"`

	// NightlyTag is the reserved tag nightly records rotate under.
	NightlyTag string `json:"nightly_tag,omitempty"`

	// Schedule is the cron expression (UTC) nightly runs fire at.
	Schedule string `json:"schedule,omitempty"`

	Matrix    matrix.Config `json:"matrix"`
	Toolchain Toolchain     `json:"toolchain"`

	// DateEnv names the build environment variable that carries the
	// nightly date stamp.
	DateEnv string `json:"date_env,omitempty"`
}

// IndexSource locates the upstream dependency index.
type IndexSource struct {
	URL string `json:"url,omitempty"`
	Ref string `json:"ref,omitempty"`
}

// Toolchain holds the shell command templates. See lib/toolchain for
// the ${NAME} variables they may reference.
type Toolchain struct {
	Fetch      string            `json:"fetch,omitempty"`
	Build      string            `json:"build"`
	CrossBuild string            `json:"cross_build,omitempty"`
	CPUFlags   map[string]string `json:"cpu_flags,omitempty"`
}

// Parse strips JSONC comments and trailing commas from data,
// unmarshals the result and fills in defaults. Unknown fields are
// rejected so a misspelled key does not silently fall back to a
// default.
func Parse(data []byte) (*Definition, error) {
	stripped := jsonc.ToJSON(data)

	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()
	var definition Definition
	if err := decoder.Decode(&definition); err != nil {
		return nil, fmt.Errorf("parsing release definition: %w", err)
	}
	definition.applyDefaults()
	return &definition, nil
}

// ReadFile reads and parses a JSONC release definition.
func ReadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	definition, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return definition, nil
}

func (definition *Definition) applyDefaults() {
	setIfEmpty(&definition.Manifest, DefaultManifest)
	setIfEmpty(&definition.Lockfile, DefaultLockfile)
	setIfEmpty(&definition.Index.Ref, DefaultIndexRef)
	setIfEmpty(&definition.NightlyTag, releaseinfo.DefaultNightlyTag)
	setIfEmpty(&definition.Schedule, DefaultSchedule)
	setIfEmpty(&definition.DateEnv, DefaultDateEnv)
}

func setIfEmpty(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

// Resolve makes the manifest and lockfile paths absolute against the
// checkout directory.
func (definition *Definition) Resolve(checkout string) {
	if !filepath.IsAbs(definition.Manifest) {
		definition.Manifest = filepath.Join(checkout, definition.Manifest)
	}
	if !filepath.IsAbs(definition.Lockfile) {
		definition.Lockfile = filepath.Join(checkout, definition.Lockfile)
	}
}

// BuildMatrix validates and returns the build matrix.
func (definition *Definition) BuildMatrix() (*matrix.Matrix, error) {
	return matrix.New(definition.Matrix)
}

// Command returns the exec toolchain for this definition, running in
// checkout.
func (definition *Definition) Command(checkout string, logger *slog.Logger) *toolchain.Command {
	return &toolchain.Command{
		FetchCommand:      definition.Toolchain.Fetch,
		BuildCommand:      definition.Toolchain.Build,
		CrossBuildCommand: definition.Toolchain.CrossBuild,
		CPUFlags:          definition.Toolchain.CPUFlags,
		Dir:               checkout,
		Logger:            logger,
	}
}

// Deriver returns the cache key deriver for this definition. heads may
// be nil to use git ls-remote.
func (definition *Definition) Deriver(heads cachekey.HeadSource, logger *slog.Logger) *cachekey.Deriver {
	return &cachekey.Deriver{
		Heads:        heads,
		IndexURL:     definition.Index.URL,
		IndexRef:     definition.Index.Ref,
		LockfilePath: definition.Lockfile,
		OwnPackages:  definition.OwnPackages,
		Logger:       logger,
	}
}

// Resolver returns the release info resolver for this definition,
// reading nightly versions from the project manifest.
func (definition *Definition) Resolver(now clock.Clock) *releaseinfo.Resolver {
	return &releaseinfo.Resolver{
		Clock:      now,
		Versions:   releaseinfo.CargoManifest{Path: definition.Manifest},
		NightlyTag: definition.NightlyTag,
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaseinfo

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// CargoManifest reads the project version from a Cargo.toml. The
// [package] version wins; a package that inherits its version from the
// workspace (version.workspace = true), or a virtual workspace
// manifest, falls back to [workspace.package].
type CargoManifest struct {
	Path string
}

type cargoManifestFile struct {
	Package struct {
		Version any `toml:"version"`
	} `toml:"package"`
	Workspace struct {
		Package struct {
			Version string `toml:"version"`
		} `toml:"package"`
	} `toml:"workspace"`
}

// ProjectVersion implements VersionSource.
func (manifest CargoManifest) ProjectVersion() (string, error) {
	data, err := os.ReadFile(manifest.Path)
	if err != nil {
		return "", fmt.Errorf("reading project manifest: %w", err)
	}

	var parsed cargoManifestFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parsing %s: %w", manifest.Path, err)
	}

	if version, ok := parsed.Package.Version.(string); ok && version != "" {
		return version, nil
	}
	if parsed.Workspace.Package.Version != "" {
		return parsed.Workspace.Package.Version, nil
	}
	return "", fmt.Errorf("%s declares no package or workspace version", manifest.Path)
}

// StaticVersion is a VersionSource with a fixed value.
type StaticVersion string

// ProjectVersion implements VersionSource.
func (version StaticVersion) ProjectVersion() (string, error) {
	if version == "" {
		return "", fmt.Errorf("no version configured")
	}
	return string(version), nil
}

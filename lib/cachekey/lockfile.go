// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cachekey

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type lockfile struct {
	Package []struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
		Source  string `toml:"source"`
	} `toml:"package"`
}

// OwnPackages returns the names of the lockfile's packages that have
// no source, i.e. workspace and path members, plus extra.
func OwnPackages(content []byte, extra []string) (map[string]bool, error) {
	var parsed lockfile
	if err := toml.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("parsing lockfile: %w", err)
	}
	own := make(map[string]bool, len(extra))
	for _, name := range extra {
		own[name] = true
	}
	for _, pkg := range parsed.Package {
		if pkg.Source == "" && pkg.Name != "" {
			own[pkg.Name] = true
		}
	}
	return own, nil
}

var (
	tableHeaderPattern = regexp.MustCompile(`^\s*\[\[?\s*([A-Za-z0-9_.-]+)\s*\]\]?\s*$`)
	keyValuePattern    = regexp.MustCompile(`^\s*([A-Za-z0-9_-]+)\s*=\s*(.*)$`)
	quotedPattern      = regexp.MustCompile(`"([^"\\]*)"`)
)

// StripOwnVersions returns content with the versions of own packages
// removed as described in the package documentation.
func StripOwnVersions(content []byte, own map[string]bool) []byte {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var (
		output         []string
		pendingBlock   []string // lines of the current [[package]] table
		packageName    string
		inPackage      bool
		inDependencies bool
	)

	flush := func() {
		for _, line := range pendingBlock {
			if packageName != "" && own[packageName] && isVersionLine(line) {
				continue
			}
			output = append(output, line)
		}
		pendingBlock = nil
		packageName = ""
	}

	for _, line := range lines {
		if match := tableHeaderPattern.FindStringSubmatch(line); match != nil && !inDependencies {
			if inPackage {
				flush()
			}
			inPackage = strings.HasPrefix(strings.TrimSpace(line), "[[") && match[1] == "package"
			if inPackage {
				pendingBlock = append(pendingBlock, line)
			} else {
				output = append(output, line)
			}
			continue
		}

		rewritten := line
		if match := keyValuePattern.FindStringSubmatch(line); match != nil && !inDependencies {
			if match[1] == "dependencies" {
				rewritten = rewriteDependencyEntries(line, own)
				value := strings.TrimSpace(match[2])
				inDependencies = strings.HasPrefix(value, "[") && !strings.Contains(value, "]")
			} else if match[1] == "name" && inPackage {
				if names := quotedPattern.FindStringSubmatch(match[2]); names != nil {
					packageName = names[1]
				}
			}
		} else if inDependencies {
			rewritten = rewriteDependencyEntries(line, own)
			if strings.Contains(line, "]") {
				inDependencies = false
			}
		}

		if inPackage {
			pendingBlock = append(pendingBlock, rewritten)
		} else {
			output = append(output, rewritten)
		}
	}
	if inPackage {
		flush()
	}

	return []byte(strings.Join(output, "\n"))
}

func isVersionLine(line string) bool {
	match := keyValuePattern.FindStringSubmatch(line)
	return match != nil && match[1] == "version"
}

// rewriteDependencyEntries reduces every quoted "name version ..."
// entry on line to "name" when name is an own package.
func rewriteDependencyEntries(line string, own map[string]bool) string {
	return quotedPattern.ReplaceAllStringFunc(line, func(quoted string) string {
		entry := quoted[1 : len(quoted)-1]
		name, _, hasVersion := strings.Cut(entry, " ")
		if hasVersion && own[name] {
			return `"` + name + `"`
		}
		return quoted
	})
}

// LockfileKey computes the DependencyArtifacts key for a lockfile.
// extraOwn names packages to treat as the project's own in addition to
// the source-less ones found in the lockfile.
func LockfileKey(content []byte, extraOwn []string) (Key, error) {
	own, err := OwnPackages(content, extraOwn)
	if err != nil {
		return Key{Scope: DependencyArtifacts}, err
	}
	stripped := StripOwnVersions(content, own)
	stripped = bytes.TrimRight(stripped, "\n")
	digest := sha256.Sum256(stripped)
	return Key{Scope: DependencyArtifacts, Digest: hex.EncodeToString(digest[:])}, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
)

// Entry is one line of a manifest.
type Entry struct {
	Name   string
	Digest [32]byte
}

// Manifest is a set of binary digests kept sorted by name. The zero
// value is an empty manifest.
type Manifest struct {
	entries []Entry
}

// Compute hashes each file in paths (keyed by the name it will carry
// in the manifest) and returns the resulting manifest.
func Compute(paths map[string]string) (Manifest, error) {
	var manifest Manifest
	for name, path := range paths {
		digest, err := HashFile(path)
		if err != nil {
			return Manifest{}, err
		}
		if err := manifest.Add(name, digest); err != nil {
			return Manifest{}, err
		}
	}
	return manifest, nil
}

// ComputeDir hashes the named files relative to dir.
func ComputeDir(dir string, names []string) (Manifest, error) {
	paths := make(map[string]string, len(names))
	for _, name := range names {
		paths[name] = filepath.Join(dir, filepath.FromSlash(name))
	}
	return Compute(paths)
}

// Add inserts an entry, keeping the manifest sorted. Names must be
// unique and must not contain whitespace or line breaks.
func (manifest *Manifest) Add(name string, digest [32]byte) error {
	if name == "" {
		return fmt.Errorf("manifest entry has empty name")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("manifest entry name %q contains whitespace", name)
	}
	index, found := slices.BinarySearchFunc(manifest.entries, name, func(entry Entry, target string) int {
		return strings.Compare(entry.Name, target)
	})
	if found {
		return fmt.Errorf("duplicate manifest entry %q", name)
	}
	manifest.entries = slices.Insert(manifest.entries, index, Entry{Name: name, Digest: digest})
	return nil
}

// Entries returns a copy of the entries in name order.
func (manifest Manifest) Entries() []Entry {
	return slices.Clone(manifest.entries)
}

// Names returns the entry names in order.
func (manifest Manifest) Names() []string {
	names := make([]string, len(manifest.entries))
	for i, entry := range manifest.entries {
		names[i] = entry.Name
	}
	return names
}

// Len returns the number of entries.
func (manifest Manifest) Len() int { return len(manifest.entries) }

// Lookup returns the digest recorded for name.
func (manifest Manifest) Lookup(name string) ([32]byte, bool) {
	index, found := slices.BinarySearchFunc(manifest.entries, name, func(entry Entry, target string) int {
		return strings.Compare(entry.Name, target)
	})
	if !found {
		return [32]byte{}, false
	}
	return manifest.entries[index].Digest, true
}

// Bytes renders the manifest in its canonical text form.
func (manifest Manifest) Bytes() []byte {
	var buffer bytes.Buffer
	for _, entry := range manifest.entries {
		buffer.WriteString(FormatDigest(entry.Digest))
		buffer.WriteString("  ")
		buffer.WriteString(entry.Name)
		buffer.WriteByte('\n')
	}
	return buffer.Bytes()
}

// String is the canonical text form.
func (manifest Manifest) String() string { return string(manifest.Bytes()) }

// Digest is the hex SHA256 of the canonical text form. It identifies
// the manifest as a whole in summaries and asset metadata.
func (manifest Manifest) Digest() string {
	return FormatDigest(sha256.Sum256(manifest.Bytes()))
}

// Equal reports whether both manifests list the same names with the
// same digests.
func (manifest Manifest) Equal(other Manifest) bool {
	return slices.Equal(manifest.entries, other.entries)
}

// Mismatch describes one difference between an expected and an actual
// manifest.
type Mismatch struct {
	Name     string
	Expected string // hex digest, empty if the name is unexpected
	Actual   string // hex digest, empty if the name is missing
}

func (mismatch Mismatch) String() string {
	switch {
	case mismatch.Expected == "":
		return fmt.Sprintf("%s: unexpected file", mismatch.Name)
	case mismatch.Actual == "":
		return fmt.Sprintf("%s: missing", mismatch.Name)
	default:
		return fmt.Sprintf("%s: digest %s, want %s", mismatch.Name, mismatch.Actual, mismatch.Expected)
	}
}

// Compare returns every difference between expected and actual, in
// name order. An empty result means the manifests are equal.
func Compare(expected, actual Manifest) []Mismatch {
	var mismatches []Mismatch
	i, j := 0, 0
	for i < len(expected.entries) || j < len(actual.entries) {
		switch {
		case j >= len(actual.entries) || (i < len(expected.entries) && expected.entries[i].Name < actual.entries[j].Name):
			mismatches = append(mismatches, Mismatch{
				Name:     expected.entries[i].Name,
				Expected: FormatDigest(expected.entries[i].Digest),
			})
			i++
		case i >= len(expected.entries) || actual.entries[j].Name < expected.entries[i].Name:
			mismatches = append(mismatches, Mismatch{
				Name:   actual.entries[j].Name,
				Actual: FormatDigest(actual.entries[j].Digest),
			})
			j++
		default:
			if expected.entries[i].Digest != actual.entries[j].Digest {
				mismatches = append(mismatches, Mismatch{
					Name:     expected.entries[i].Name,
					Expected: FormatDigest(expected.entries[i].Digest),
					Actual:   FormatDigest(actual.entries[j].Digest),
				})
			}
			i++
			j++
		}
	}
	return mismatches
}

// ParseManifest reads a manifest in canonical text form. Blank lines
// are ignored; anything else that is not "<digest>  <name>" is an
// error. A leading '*' on the name (sha256sum binary mode) is
// accepted and dropped.
func ParseManifest(reader io.Reader) (Manifest, error) {
	var manifest Manifest
	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		hexDigest, name, found := strings.Cut(line, "  ")
		if !found {
			hexDigest, name, found = strings.Cut(line, " *")
		}
		if !found {
			return Manifest{}, fmt.Errorf("manifest line %d: expected \"<digest>  <name>\"", lineNumber)
		}
		name = strings.TrimPrefix(name, "*")
		digest, err := ParseDigest(hexDigest)
		if err != nil {
			return Manifest{}, fmt.Errorf("manifest line %d: %w", lineNumber, err)
		}
		if err := manifest.Add(name, digest); err != nil {
			return Manifest{}, fmt.Errorf("manifest line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	return manifest, nil
}

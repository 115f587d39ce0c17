// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/bureau-foundation/bureau-release/lib/archive"
	"github.com/bureau-foundation/bureau-release/lib/build"
	"github.com/bureau-foundation/bureau-release/lib/checksum"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
)

// ChecksumSuffix is appended to an archive path to name its manifest
// sidecar.
const ChecksumSuffix = ".sha256"

// Artifact is a packaged and verified target archive.
type Artifact struct {
	Target   matrix.Target `json:"target"`
	Binaries []string      `json:"binaries"`

	ArchivePath string `json:"archive_path"`
	ArchiveName string `json:"archive_name"`

	Manifest checksum.Manifest `json:"-"`

	// Checksum is the SHA-256 of the manifest text. ArchiveDigest is
	// the SHA-256 of the archive file itself.
	Checksum      string `json:"checksum"`
	ArchiveDigest string `json:"archive_digest"`
	Size          int64  `json:"size"`
}

// ManifestPath is the path of the archive's .sha256 sidecar.
func (artifact *Artifact) ManifestPath() string {
	return artifact.ArchivePath + ChecksumSuffix
}

// IntegrityError reports an archive whose unpacked contents do not
// match the manifest computed before archiving.
type IntegrityError struct {
	Archive    string
	Mismatches []checksum.Mismatch
	Err        error
}

func (err *IntegrityError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("integrity check of %s failed: %v", err.Archive, err.Err)
	}
	details := make([]string, len(err.Mismatches))
	for i, mismatch := range err.Mismatches {
		details[i] = mismatch.String()
	}
	return fmt.Sprintf("integrity check of %s failed: %s", err.Archive, strings.Join(details, "; "))
}

func (err *IntegrityError) Unwrap() error { return err.Err }

// ArchiveName returns the release archive file name for a target.
func ArchiveName(project string, info releaseinfo.Info, target matrix.Target) string {
	return fmt.Sprintf("%s-%s-%s-%s.%s",
		project, info.StampedVersion(), target.Triple, target.CPU, Extension(target))
}

// Extension is "zip" for Windows targets and "tar.gz" otherwise.
func Extension(target matrix.Target) string {
	if target.Windows() {
		return "zip"
	}
	return "tar.gz"
}

// Request is one target to package.
type Request struct {
	Target   matrix.Target
	Info     releaseinfo.Info
	Binaries []build.Binary
}

// Config configures a Packager.
type Config struct {
	Project string

	// OutputDir receives archives and sidecars.
	OutputDir string

	// ScratchDir is where archives are unpacked for verification.
	// Created on first use. Defaults to the system temporary directory.
	ScratchDir string

	Logger *slog.Logger
}

// Packager builds and verifies release archives.
type Packager struct {
	project    string
	outputDir  string
	scratchDir string
	logger     *slog.Logger
}

// New returns a packager writing into config.OutputDir.
func New(config Config) (*Packager, error) {
	if config.Project == "" {
		return nil, errors.New("packager: project name is required")
	}
	if config.OutputDir == "" {
		return nil, errors.New("packager: output directory is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Packager{
		project:    config.Project,
		outputDir:  config.OutputDir,
		scratchDir: config.ScratchDir,
		logger:     config.Logger,
	}, nil
}

// Project is the name archives are prefixed with.
func (packager *Packager) Project() string { return packager.project }

// Package archives request.Binaries, verifies the archive round trip
// and writes the manifest sidecar.
func (packager *Packager) Package(ctx context.Context, request Request) (*Artifact, error) {
	if len(request.Binaries) == 0 {
		return nil, fmt.Errorf("no binaries to package for %s", request.Target.ID())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths := make(map[string]string, len(request.Binaries))
	entries := make([]archive.Entry, 0, len(request.Binaries))
	names := make([]string, 0, len(request.Binaries))
	for _, binary := range request.Binaries {
		if _, duplicate := paths[binary.Name]; duplicate {
			return nil, fmt.Errorf("binary %s listed twice", binary.Name)
		}
		paths[binary.Name] = binary.Path
		entries = append(entries, archive.Entry{Name: binary.Name, Path: binary.Path, Executable: true})
		names = append(names, binary.Name)
	}

	manifest, err := checksum.Compute(paths)
	if err != nil {
		return nil, fmt.Errorf("computing manifest: %w", err)
	}

	if err := os.MkdirAll(packager.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	name := ArchiveName(packager.project, request.Info, request.Target)
	archivePath := filepath.Join(packager.outputDir, name)
	if err := writeArchive(archivePath, request.Target, entries); err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}

	if err := packager.verify(archivePath, manifest); err != nil {
		os.Remove(archivePath)
		return nil, err
	}

	if err := os.WriteFile(archivePath+ChecksumSuffix, manifest.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing manifest sidecar: %w", err)
	}

	archiveDigest, err := checksum.HashFile(archivePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, err
	}

	artifact := &Artifact{
		Target:        request.Target,
		Binaries:      names,
		ArchivePath:   archivePath,
		ArchiveName:   name,
		Manifest:      manifest,
		Checksum:      manifest.Digest(),
		ArchiveDigest: checksum.FormatDigest(archiveDigest),
		Size:          info.Size(),
	}
	packager.logger.Info("archive packaged and verified",
		"target", request.Target.ID(),
		"archive", name,
		"bytes", artifact.Size,
		"checksum", artifact.Checksum,
	)
	return artifact, nil
}

// Verify unpacks the archive at archivePath into a scratch directory
// and checks its contents against expected. A mismatch is an
// *IntegrityError.
func (packager *Packager) Verify(archivePath string, expected checksum.Manifest) error {
	return packager.verify(archivePath, expected)
}

// Verify is Packager.Verify using the system temporary directory.
func Verify(archivePath string, expected checksum.Manifest) error {
	return (&Packager{}).verify(archivePath, expected)
}

func (packager *Packager) verify(archivePath string, expected checksum.Manifest) error {
	if packager.scratchDir != "" {
		if err := os.MkdirAll(packager.scratchDir, 0o755); err != nil {
			return fmt.Errorf("creating scratch directory: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(packager.scratchDir, "verify-*")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	names, err := extractArchive(archivePath, scratch)
	if err != nil {
		return &IntegrityError{Archive: filepath.Base(archivePath), Err: err}
	}
	actual, err := checksum.ComputeDir(scratch, names)
	if err != nil {
		return &IntegrityError{Archive: filepath.Base(archivePath), Err: err}
	}
	if mismatches := checksum.Compare(expected, actual); len(mismatches) > 0 {
		return &IntegrityError{Archive: filepath.Base(archivePath), Mismatches: mismatches}
	}
	return nil
}

// writeArchive writes entries to path through a temporary file, as a
// zip for Windows targets and a gzipped tar otherwise.
func writeArchive(path string, target matrix.Target, entries []archive.Entry) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return err
	}
	defer os.Remove(temporary.Name())

	if target.Windows() {
		_, err = archive.WriteZip(temporary, entries)
	} else {
		err = writeTarGz(temporary, entries)
	}
	if err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Close(); err != nil {
		return err
	}
	return os.Rename(temporary.Name(), path)
}

func writeTarGz(writer io.Writer, entries []archive.Entry) error {
	// The gzip header carries no name or timestamp, so identical
	// binaries give identical archives.
	compressor, err := gzip.NewWriterLevel(writer, gzip.BestCompression)
	if err != nil {
		return err
	}
	if _, err := archive.WriteTar(compressor, entries); err != nil {
		compressor.Close()
		return err
	}
	return compressor.Close()
}

// extractArchive unpacks a .zip or .tar.gz by extension.
func extractArchive(archivePath, destination string) ([]string, error) {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return archive.ExtractZip(archivePath, destination)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		file, err := os.Open(archivePath)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		decompressor, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("reading gzip header: %w", err)
		}
		defer decompressor.Close()
		return archive.ExtractTar(decompressor, destination)
	default:
		return nil, fmt.Errorf("unrecognized archive format: %s", filepath.Base(archivePath))
	}
}

// ReadManifest reads a .sha256 sidecar.
func ReadManifest(path string) (checksum.Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return checksum.Manifest{}, err
	}
	defer file.Close()
	return checksum.ParseManifest(file)
}

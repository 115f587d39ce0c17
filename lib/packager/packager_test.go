// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package packager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/bureau-release/lib/build"
	"github.com/bureau-foundation/bureau-release/lib/checksum"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
	"github.com/bureau-foundation/bureau-release/lib/testutil"
)

var (
	linuxTarget   = matrix.Target{OS: "linux", Triple: "x86_64-unknown-linux-gnu", CPU: "generic", Toolchain: "stable"}
	windowsTarget = matrix.Target{OS: "windows", Triple: "x86_64-pc-windows-msvc", CPU: "generic", Toolchain: "stable"}
	macosTarget   = matrix.Target{OS: "macos", Triple: "x86_64-apple-darwin", CPU: "broadwell", Toolchain: "stable"}
)

var (
	versioned = releaseinfo.Info{Version: "0.9.1", Tag: "v0.9.1", Kind: releaseinfo.Versioned}
	nightly   = releaseinfo.Info{Version: "0.9.1", Tag: "nightly", Kind: releaseinfo.Nightly, DateStamp: "20260314"}
)

func TestArchiveName(t *testing.T) {
	tests := []struct {
		info   releaseinfo.Info
		target matrix.Target
		want   string
	}{
		{versioned, linuxTarget, "jormungandr-0.9.1-x86_64-unknown-linux-gnu-generic.tar.gz"},
		{nightly, linuxTarget, "jormungandr-0.9.1.20260314-x86_64-unknown-linux-gnu-generic.tar.gz"},
		{versioned, windowsTarget, "jormungandr-0.9.1-x86_64-pc-windows-msvc-generic.zip"},
		{nightly, macosTarget, "jormungandr-0.9.1.20260314-x86_64-apple-darwin-broadwell.tar.gz"},
	}
	for _, test := range tests {
		if got := ArchiveName("jormungandr", test.info, test.target); got != test.want {
			t.Errorf("ArchiveName(%s, %s) = %q, want %q", test.info.Tag, test.target.ID(), got, test.want)
		}
	}
}

func newPackager(t *testing.T) *Packager {
	t.Helper()
	packager, err := New(Config{
		Project:    "jormungandr",
		OutputDir:  t.TempDir(),
		ScratchDir: t.TempDir(),
		Logger:     testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return packager
}

func binaries(t *testing.T, suffix string) []build.Binary {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"jormungandr" + suffix: "node binary\x00\x01\x02",
		"jcli" + suffix:        "cli binary\xff",
	})
	return []build.Binary{
		{Name: "jormungandr" + suffix, Path: filepath.Join(dir, "jormungandr"+suffix)},
		{Name: "jcli" + suffix, Path: filepath.Join(dir, "jcli"+suffix)},
	}
}

// Unpacking a packaged archive and recomputing the manifest yields the
// digests computed before archiving.
func TestPackageRoundTrip(t *testing.T) {
	for _, target := range []matrix.Target{linuxTarget, windowsTarget, macosTarget} {
		t.Run(target.ID(), func(t *testing.T) {
			packager := newPackager(t)
			input := binaries(t, target.ExecutableSuffix())
			artifact, err := packager.Package(context.Background(), Request{Target: target, Info: nightly, Binaries: input})
			if err != nil {
				t.Fatalf("Package: %v", err)
			}

			paths := make(map[string]string)
			for _, binary := range input {
				paths[binary.Name] = binary.Path
			}
			preArchival, err := checksum.Compute(paths)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}

			unpacked := t.TempDir()
			names, err := extractArchive(artifact.ArchivePath, unpacked)
			if err != nil {
				t.Fatalf("extractArchive: %v", err)
			}
			recomputed, err := checksum.ComputeDir(unpacked, names)
			if err != nil {
				t.Fatalf("ComputeDir: %v", err)
			}
			if string(recomputed.Bytes()) != string(preArchival.Bytes()) {
				t.Errorf("recomputed manifest differs:\n%s\nwant:\n%s", recomputed, preArchival)
			}
			if !artifact.Manifest.Equal(preArchival) {
				t.Error("artifact manifest differs from pre-archival manifest")
			}
			if artifact.Checksum != preArchival.Digest() {
				t.Errorf("Checksum = %s, want %s", artifact.Checksum, preArchival.Digest())
			}
		})
	}
}

func TestPackageWritesSidecar(t *testing.T) {
	packager := newPackager(t)
	artifact, err := packager.Package(context.Background(), Request{Target: linuxTarget, Info: versioned, Binaries: binaries(t, "")})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	sidecar, err := ReadManifest(artifact.ManifestPath())
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if !sidecar.Equal(artifact.Manifest) {
		t.Errorf("sidecar manifest = %s, want %s", sidecar, artifact.Manifest)
	}
	content, _ := os.ReadFile(artifact.ManifestPath())
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "  jcli") || !strings.HasSuffix(lines[1], "  jormungandr") {
		t.Errorf("sidecar lines = %q", lines)
	}
}

// The scratch directory sits under the work root and does not exist
// until the first target is verified.
func TestPackageCreatesScratchDirectory(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "work", "verify")
	packager, err := New(Config{
		Project:    "jormungandr",
		OutputDir:  t.TempDir(),
		ScratchDir: scratch,
		Logger:     testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := packager.Package(context.Background(), Request{Target: linuxTarget, Info: versioned, Binaries: binaries(t, "")}); err != nil {
		t.Fatalf("Package: %v", err)
	}
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("scratch directory: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch directory not cleaned up: %d entries left", len(entries))
	}
}

func TestPackageReproducible(t *testing.T) {
	input := binaries(t, "")
	first, err := newPackager(t).Package(context.Background(), Request{Target: linuxTarget, Info: versioned, Binaries: input})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	second, err := newPackager(t).Package(context.Background(), Request{Target: linuxTarget, Info: versioned, Binaries: input})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if first.ArchiveDigest != second.ArchiveDigest {
		t.Error("packaging identical binaries twice gave different archives")
	}
}

func TestVerifyDetectsMismatch(t *testing.T) {
	packager := newPackager(t)
	artifact, err := packager.Package(context.Background(), Request{Target: linuxTarget, Info: versioned, Binaries: binaries(t, "")})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}

	var tampered checksum.Manifest
	var wrong [32]byte
	wrong[0] = 0xff
	if err := tampered.Add("jormungandr", wrong); err != nil {
		t.Fatal(err)
	}
	if err := tampered.Add("jcli-extra", wrong); err != nil {
		t.Fatal(err)
	}

	err = packager.Verify(artifact.ArchivePath, tampered)
	var integrityError *IntegrityError
	if !errors.As(err, &integrityError) {
		t.Fatalf("Verify error = %v, want *IntegrityError", err)
	}
	// jcli unexpected, jcli-extra missing, jormungandr digest differs.
	if len(integrityError.Mismatches) != 3 {
		t.Errorf("mismatches = %v, want 3", integrityError.Mismatches)
	}
}

func TestVerifyCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tar.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	var integrityError *IntegrityError
	if err := Verify(path, checksum.Manifest{}); !errors.As(err, &integrityError) {
		t.Errorf("Verify error = %v, want *IntegrityError", err)
	}
}

func TestPackageRejectsDuplicateBinary(t *testing.T) {
	packager := newPackager(t)
	input := binaries(t, "")
	input = append(input, input[0])
	if _, err := packager.Package(context.Background(), Request{Target: linuxTarget, Info: versioned, Binaries: input}); err == nil {
		t.Error("Package accepted a duplicate binary name")
	}
}

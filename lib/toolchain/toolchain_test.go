// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/testutil"
)

func TestExpand(t *testing.T) {
	variables := map[string]string{"TARGET": "x86_64-unknown-linux-gnu", "EXE": ""}
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{"plain", "cargo build", "cargo build", ""},
		{"braced", "--target ${TARGET}", "--target x86_64-unknown-linux-gnu", ""},
		{"empty value", "jcli${EXE}", "jcli", ""},
		{"bare dollar untouched", "echo $HOME ${TARGET}", "echo $HOME x86_64-unknown-linux-gnu", ""},
		{"unresolved", "${NOPE} ${ALSO} ${NOPE}", "", "NOPE, ALSO"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Expand(test.input, variables)
			if test.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("Expand error = %v, want containing %q", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if got != test.want {
				t.Errorf("Expand = %q, want %q", got, test.want)
			}
		})
	}
}

func TestReferences(t *testing.T) {
	got := References("cargo build --target ${TARGET} ${CPU_FLAGS} --out ${OUT_DIR}/${TARGET}")
	want := []string{"TARGET", "CPU_FLAGS", "OUT_DIR"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("References = %v, want %v", got, want)
	}
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func linuxTarget(cpu string, cross bool) matrix.Target {
	return matrix.Target{
		OS:        "linux",
		Triple:    "x86_64-unknown-linux-gnu",
		CPU:       cpu,
		Toolchain: "stable",
		Cross:     cross,
	}
}

func TestCommandBuild(t *testing.T) {
	requireShell(t)
	command := &Command{
		BuildCommand: `printf '%s|%s|%s|%s' "${TARGET}" "${CPU_FLAGS}" "${VERSION}" "$RELEASE_DATE" > ${OUT_DIR}/${BINARY}${EXE}`,
		CPUFlags:     map[string]string{"broadwell": "-C target-cpu=broadwell"},
		Dir:          t.TempDir(),
		Logger:       testutil.DiscardLogger(),
	}
	var log bytes.Buffer
	invocation := Invocation{
		Target:    linuxTarget("broadwell", false),
		Binary:    "jormungandr",
		Version:   "0.9.1.20260314",
		DateStamp: "20260314",
		OutDir:    filepath.Join(t.TempDir(), "out"),
		CacheDir:  t.TempDir(),
		Env:       map[string]string{"RELEASE_DATE": "20260314"},
		Log:       &log,
	}

	path, err := command.Build(context.Background(), invocation)
	if err != nil {
		t.Fatalf("Build: %v\n%s", err, log.String())
	}
	if path != filepath.Join(invocation.OutDir, "jormungandr") {
		t.Errorf("Build path = %q", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "x86_64-unknown-linux-gnu|-C target-cpu=broadwell|0.9.1.20260314|20260314"
	if string(content) != want {
		t.Errorf("binary content = %q, want %q", content, want)
	}
	if !strings.HasPrefix(log.String(), "$ printf") {
		t.Errorf("log does not start with the command line: %q", log.String())
	}
}

func TestCommandCrossBuildTemplate(t *testing.T) {
	requireShell(t)
	command := &Command{
		BuildCommand:      `echo native > ${OUT_DIR}/${BINARY}`,
		CrossBuildCommand: `echo cross > ${OUT_DIR}/${BINARY}`,
		Logger:            testutil.DiscardLogger(),
	}
	for _, cross := range []bool{false, true} {
		outDir := t.TempDir()
		path, err := command.Build(context.Background(), Invocation{
			Target: linuxTarget("generic", cross),
			Binary: "jcli",
			OutDir: outDir,
		})
		if err != nil {
			t.Fatalf("Build(cross=%v): %v", cross, err)
		}
		content, _ := os.ReadFile(path)
		want := "native\n"
		if cross {
			want = "cross\n"
		}
		if string(content) != want {
			t.Errorf("cross=%v: content = %q, want %q", cross, content, want)
		}
	}
}

func TestCommandBuildFailure(t *testing.T) {
	requireShell(t)
	command := &Command{
		BuildCommand: `echo "error[E0425]: cannot find value" >&2; exit 101`,
		Logger:       testutil.DiscardLogger(),
	}
	_, err := command.Build(context.Background(), Invocation{
		Target: linuxTarget("generic", false),
		Binary: "jormungandr",
		OutDir: t.TempDir(),
	})
	var exitError *ExitError
	if !errors.As(err, &exitError) {
		t.Fatalf("Build error = %v, want *ExitError", err)
	}
	if exitError.ExitCode != 101 {
		t.Errorf("ExitCode = %d, want 101", exitError.ExitCode)
	}
	if !strings.Contains(exitError.Output, "E0425") {
		t.Errorf("Output = %q, want the compiler message", exitError.Output)
	}
}

func TestCommandBuildNoOutput(t *testing.T) {
	requireShell(t)
	command := &Command{BuildCommand: "true", Logger: testutil.DiscardLogger()}
	_, err := command.Build(context.Background(), Invocation{
		Target: linuxTarget("generic", false),
		Binary: "jormungandr",
		OutDir: t.TempDir(),
	})
	if !errors.Is(err, ErrNoOutput) {
		t.Errorf("Build error = %v, want ErrNoOutput", err)
	}
}

func TestCommandUnknownVariable(t *testing.T) {
	command := &Command{BuildCommand: "cargo build ${PROFILE}", Logger: testutil.DiscardLogger()}
	_, err := command.Build(context.Background(), Invocation{
		Target: linuxTarget("generic", false),
		Binary: "jormungandr",
		OutDir: t.TempDir(),
	})
	if err == nil || !strings.Contains(err.Error(), "PROFILE") {
		t.Errorf("Build error = %v, want unresolved PROFILE", err)
	}
}

func TestCommandFetch(t *testing.T) {
	requireShell(t)
	cacheDir := t.TempDir()
	command := &Command{
		FetchCommand: `mkdir -p ${CACHE_DIR}/registry/index && touch ${CACHE_DIR}/registry/index/fetched`,
		Logger:       testutil.DiscardLogger(),
	}
	if err := command.Fetch(context.Background(), Invocation{CacheDir: cacheDir}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "registry", "index", "fetched")); err != nil {
		t.Errorf("fetch command did not run: %v", err)
	}

	empty := &Command{}
	if err := empty.Fetch(context.Background(), Invocation{}); err != nil {
		t.Errorf("Fetch with no command: %v", err)
	}
}

func TestCommandCancelled(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	command := &Command{BuildCommand: "sleep 30", Logger: testutil.DiscardLogger()}
	_, err := command.Build(ctx, Invocation{
		Target: linuxTarget("generic", false),
		Binary: "jormungandr",
		OutDir: t.TempDir(),
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Build error = %v, want context.Canceled", err)
	}
}

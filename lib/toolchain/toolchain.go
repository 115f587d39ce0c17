// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/bureau-foundation/bureau-release/lib/matrix"
)

// Toolchain fetches dependencies and builds binaries.
type Toolchain interface {
	// Fetch downloads the project's dependencies into
	// invocation.CacheDir. Binary is empty.
	Fetch(ctx context.Context, invocation Invocation) error

	// Build compiles invocation.Binary for invocation.Target and
	// returns the path of the produced executable.
	Build(ctx context.Context, invocation Invocation) (string, error)
}

// Invocation carries everything one toolchain call needs.
type Invocation struct {
	Target    matrix.Target
	Binary    string
	Version   string
	DateStamp string

	// OutDir receives built binaries. CacheDir holds the restored
	// dependency index and artifacts.
	OutDir   string
	CacheDir string

	// Env holds extra environment variables, such as the date stamp
	// under its configured name.
	Env map[string]string

	// Log receives the command line and its combined output. Nil
	// discards it.
	Log io.Writer
}

// variables returns the template variables for invocation.
func (invocation Invocation) variables(cpuFlags string) map[string]string {
	return map[string]string{
		"TARGET":    invocation.Target.Triple,
		"CPU":       invocation.Target.CPU,
		"CPU_FLAGS": cpuFlags,
		"TOOLCHAIN": invocation.Target.Toolchain,
		"BINARY":    invocation.Binary,
		"VERSION":   invocation.Version,
		"DATE":      invocation.DateStamp,
		"OUT_DIR":   invocation.OutDir,
		"EXE":       invocation.Target.ExecutableSuffix(),
		"CACHE_DIR": invocation.CacheDir,
	}
}

// ExitError reports a toolchain command that ran and failed.
type ExitError struct {
	Command  string
	ExitCode int

	// Output is the tail of the command's combined output.
	Output string
}

func (err *ExitError) Error() string {
	return fmt.Sprintf("command exited with status %d: %s", err.ExitCode, err.Command)
}

// ErrNoOutput is returned by Build when the command succeeded but the
// expected binary was not written to OutDir.
var ErrNoOutput = errors.New("build produced no binary")

// Command runs shell command templates.
type Command struct {
	// FetchCommand downloads dependencies. Empty means the toolchain
	// fetches on demand during builds and Fetch is a no-op.
	FetchCommand string

	// BuildCommand builds one binary for a native target.
	BuildCommand string

	// CrossBuildCommand builds for targets with Cross set. Empty
	// falls back to BuildCommand.
	CrossBuildCommand string

	// CPUFlags maps a CPU variant to compiler flags. Variants not
	// listed get no flags.
	CPUFlags map[string]string

	// Dir is the project checkout commands run in.
	Dir string

	// Environ is the base environment. Defaults to os.Environ().
	Environ []string

	Logger *slog.Logger
}

// Fetch runs FetchCommand.
func (command *Command) Fetch(ctx context.Context, invocation Invocation) error {
	if command.FetchCommand == "" {
		return nil
	}
	return command.run(ctx, command.FetchCommand, invocation)
}

// Build runs BuildCommand (or CrossBuildCommand) and returns
// OutDir/<binary><exe>.
func (command *Command) Build(ctx context.Context, invocation Invocation) (string, error) {
	template := command.BuildCommand
	if invocation.Target.Cross && command.CrossBuildCommand != "" {
		template = command.CrossBuildCommand
	}
	if template == "" {
		return "", errors.New("no build command configured")
	}
	if err := os.MkdirAll(invocation.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := command.run(ctx, template, invocation); err != nil {
		return "", err
	}

	output := filepath.Join(invocation.OutDir, invocation.Binary+invocation.Target.ExecutableSuffix())
	info, err := os.Stat(output)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: expected %s", ErrNoOutput, output)
	}
	return output, nil
}

func (command *Command) logger() *slog.Logger {
	if command.Logger == nil {
		return slog.Default()
	}
	return command.Logger
}

// run expands template and executes it via sh -c in its own process
// group, so cancellation kills the shell and everything it started.
func (command *Command) run(ctx context.Context, template string, invocation Invocation) error {
	variables := invocation.variables(command.CPUFlags[invocation.Target.CPU])
	line, err := Expand(template, variables)
	if err != nil {
		return err
	}

	log := invocation.Log
	if log == nil {
		log = io.Discard
	}
	fmt.Fprintf(log, "$ %s\n", line)

	tail := &tailBuffer{limit: 4096}
	output := io.MultiWriter(log, tail)

	process := exec.CommandContext(ctx, "sh", "-c", line)
	process.Dir = command.Dir
	process.Stdout = output
	process.Stderr = output
	process.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	process.Cancel = func() error {
		return syscall.Kill(-process.Process.Pid, syscall.SIGKILL)
	}

	environ := command.Environ
	if environ == nil {
		environ = os.Environ()
	}
	process.Env = slices.Clone(environ)
	for _, name := range slices.Sorted(maps.Keys(variables)) {
		process.Env = append(process.Env, name+"="+variables[name])
	}
	for _, name := range slices.Sorted(maps.Keys(invocation.Env)) {
		process.Env = append(process.Env, name+"="+invocation.Env[name])
	}

	command.logger().Debug("running toolchain command",
		"target", invocation.Target.ID(),
		"binary", invocation.Binary,
		"command", line,
	)

	err = process.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		return &ExitError{Command: line, ExitCode: exitError.ExitCode(), Output: tail.String()}
	}
	return fmt.Errorf("running %q: %w", line, err)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	data  []byte
}

func (buffer *tailBuffer) Write(p []byte) (int, error) {
	buffer.data = append(buffer.data, p...)
	if excess := len(buffer.data) - buffer.limit; excess > 0 {
		buffer.data = slices.Delete(buffer.data, 0, excess)
	}
	return len(p), nil
}

func (buffer *tailBuffer) String() string { return string(buffer.data) }

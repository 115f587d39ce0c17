// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesToSubcommand(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "bureau-release",
		Subcommands: []*Command{
			{
				Name: "plan",
				Run: func(ctx context.Context, args []string) error {
					called = "plan"
					return nil
				},
			},
			{
				Name: "verify",
				Run: func(ctx context.Context, args []string) error {
					called = "verify"
					receivedArgs = args
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"verify", "a.tar.gz", "a.tar.gz.sha256"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "verify" {
		t.Errorf("dispatched to %q, want verify", called)
	}
	if strings.Join(receivedArgs, " ") != "a.tar.gz a.tar.gz.sha256" {
		t.Errorf("args = %v", receivedArgs)
	}
}

func TestExecutePassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run-1")

	var got any
	root := &Command{
		Name: "bureau-release",
		Subcommands: []*Command{{
			Name: "run",
			Run: func(ctx context.Context, args []string) error {
				got = ctx.Value(key{})
				return nil
			},
		}},
	}
	if err := root.Execute(ctx, []string{"run"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "run-1" {
		t.Errorf("context value = %v", got)
	}
}

func TestExecuteFlagParsing(t *testing.T) {
	var parallel int
	var dryRun bool
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.IntVar(&parallel, "parallel", 0, "")
			flagSet.BoolVar(&dryRun, "dry-run", false, "")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				t.Errorf("unexpected args %v", args)
			}
			return nil
		},
	}
	if err := command.Execute(context.Background(), []string{"--parallel", "4", "--dry-run"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if parallel != 4 || !dryRun {
		t.Errorf("parallel = %d, dryRun = %v", parallel, dryRun)
	}
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name:   "bureau-release",
		Output: &bytes.Buffer{},
		Subcommands: []*Command{
			{Name: "schedule", Run: func(context.Context, []string) error { return nil }},
			{Name: "plan", Run: func(context.Context, []string) error { return nil }},
		},
	}
	err := root.Execute(context.Background(), []string{"schedul"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "schedule"`) {
		t.Errorf("error = %v", err)
	}
}

func TestExecuteUnknownFlagSuggests(t *testing.T) {
	var tag string
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVar(&tag, "tag", "", "")
			flagSet.StringVar(&tag, "event", "", "")
			return flagSet
		},
		Run: func(context.Context, []string) error { return nil },
	}
	err := command.Execute(context.Background(), []string{"--evnet", "tag"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --event") {
		t.Errorf("error = %v", err)
	}
}

func TestExecuteSubcommandRequired(t *testing.T) {
	help := &bytes.Buffer{}
	root := &Command{
		Name:        "bureau-release",
		Output:      help,
		Subcommands: []*Command{{Name: "plan", Summary: "Print the build plan"}},
	}
	if err := root.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected an error without a subcommand")
	}
	if !strings.Contains(help.String(), "Print the build plan") {
		t.Errorf("help output = %q", help.String())
	}
}

func TestPrintHelp(t *testing.T) {
	var verbose bool
	root := &Command{Name: "bureau-release"}
	command := &Command{
		Name:        "run",
		Description: "Run a release flow.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.BoolVar(&verbose, "verbose", false, "log toolchain commands")
			return flagSet
		},
		Examples: []Example{{Description: "Nightly", Command: "bureau-release run --event schedule"}},
		parent:   root,
	}

	var output bytes.Buffer
	command.PrintHelp(&output)
	for _, want := range []string{
		"Run a release flow.",
		"bureau-release run [flags]",
		"--verbose",
		"log toolchain commands",
		"# Nightly",
	} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("help does not contain %q:\n%s", want, output.String())
		}
	}
}

func TestExitError(t *testing.T) {
	var err error = &ExitError{Code: 1}
	coder, ok := err.(interface{ ExitCode() int })
	if !ok || coder.ExitCode() != 1 {
		t.Fatalf("ExitError does not report its code")
	}
}

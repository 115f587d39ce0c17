// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bureau-release/cmd/bureau-release/cli"
	"github.com/bureau-foundation/bureau-release/lib/pipeline"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
)

type runParams struct {
	configParams
	cli.JSONOutput

	Event        string `flag:"event,e" desc:"trigger event: manual, tag, or schedule"`
	Tag          string `flag:"tag" desc:"release tag (manual and tag events)"`
	Ref          string `flag:"ref" desc:"triggering ref, e.g. refs/tags/v1.2.3"`
	Version      string `flag:"version" desc:"release version (default: the tag without its v prefix, or the manifest version)"`
	Commit       string `flag:"commit" desc:"commit being released (default: HEAD of the source checkout)"`
	DryRun       bool   `flag:"dry-run" desc:"build and package for real, publish to an in-memory host"`
	Parallel     int    `flag:"parallel,j" desc:"maximum concurrent stages (default: run.parallelism)"`
	ReportStatus bool   `flag:"report-status" desc:"post a commit status per target"`
	ResultLog    string `flag:"result-log" desc:"write JSONL progress records to this file"`
}

func (app *app) runCommand() *cli.Command {
	var params runParams
	return &cli.Command{
		Name:    "run",
		Summary: "Run a versioned or nightly release",
		Description: `Run one release flow.

Manual and tag events run the versioned flow: a draft release record is
created for the tag, every target is built, packaged, verified and
uploaded, and the record is published only if every target passed.

Schedule events run the nightly flow: the nightly record is replaced by
a fresh prerelease and each target uploads as soon as it passes.

Exits 1 if any target failed or the run aborted. The summary is printed
either way.`,
		Usage: "bureau-release run --event <manual|tag|schedule> [flags]",
		Examples: []cli.Example{
			{Description: "Release a pushed tag", Command: "bureau-release run --event tag --ref refs/tags/v0.9.1"},
			{Description: "Nightly, without touching the release host", Command: "bureau-release run --event schedule --dry-run"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("run", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return errors.New("usage: bureau-release run --event <manual|tag|schedule> [flags]")
			}
			event, err := releaseinfo.ParseEvent(params.Event)
			if err != nil {
				return err
			}
			env, err := app.load(params.configParams)
			if err != nil {
				return err
			}
			controller, err := app.controller(env, runOptions{
				dryRun:       params.DryRun,
				parallelism:  params.Parallel,
				reportStatus: params.ReportStatus,
				resultPath:   params.ResultLog,
			})
			if err != nil {
				return err
			}

			trigger := releaseinfo.Trigger{
				Event:   event,
				Ref:     params.Ref,
				Tag:     params.Tag,
				Version: params.Version,
				Commit:  params.Commit,
			}
			if trigger.Commit == "" {
				trigger.Commit = headCommit(ctx, env)
			}
			return app.execute(ctx, controller, trigger, &params.JSONOutput)
		},
	}
}

// execute runs one flow and reports it. A failed run has already been
// reported, so it surfaces as an exit code.
func (app *app) execute(ctx context.Context, controller *pipeline.Controller, trigger releaseinfo.Trigger, output *cli.JSONOutput) error {
	summary, runErr := controller.Run(ctx, trigger)
	if summary == nil {
		return runErr
	}
	if done, err := output.EmitJSON(app.stdout, summary); done {
		if err != nil {
			return err
		}
	} else {
		renderSummary(app.stdout, summary, cli.IsTerminal(app.stdout))
	}
	if runErr != nil {
		return &cli.ExitError{Code: 1, Err: runErr}
	}
	return nil
}

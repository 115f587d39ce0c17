// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bureau-release/cmd/bureau-release/cli"
	"github.com/bureau-foundation/bureau-release/lib/cron"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
)

type scheduleParams struct {
	configParams
	cli.JSONOutput

	Once         bool   `flag:"once" desc:"wait for the next due time, run once, and exit with its result"`
	DryRun       bool   `flag:"dry-run" desc:"publish to an in-memory host"`
	Parallel     int    `flag:"parallel,j" desc:"maximum concurrent stages (default: run.parallelism)"`
	ReportStatus bool   `flag:"report-status" desc:"post a commit status per target"`
	ResultLog    string `flag:"result-log" desc:"write JSONL progress records to this file"`
}

func (app *app) scheduleCommand() *cli.Command {
	var params scheduleParams
	return &cli.Command{
		Name:    "schedule",
		Summary: "Run the nightly flow on the definition's schedule",
		Description: `Run the nightly flow each time the release definition's schedule
comes due. The schedule is a five-field cron expression or a descriptor
such as @nightly, evaluated in UTC.

A failed nightly is reported and the loop waits for the next due time.
With --once, the first run's result becomes the exit status.`,
		Usage: "bureau-release schedule [--once] [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("schedule", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return errors.New("usage: bureau-release schedule [flags]")
			}
			env, err := app.load(params.configParams)
			if err != nil {
				return err
			}
			schedule, err := cron.ParseNightly(env.definition.Schedule)
			if err != nil {
				return fmt.Errorf("release definition schedule: %w", err)
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

			for {
				run, err := schedule.NextRun(app.clock.Now().UTC())
				if err != nil {
					return err
				}
				env.logger.Info("next nightly run scheduled",
					"schedule", schedule.String(),
					"at", run.At,
					"in", run.Wait,
					"date_stamp", run.DateStamp,
				)
				select {
				case <-ctx.Done():
					env.logger.Info("scheduler stopped")
					return nil
				case <-app.clock.After(run.Wait):
				}

				trigger := releaseinfo.Trigger{Event: releaseinfo.EventSchedule, Commit: headCommit(ctx, env)}
				err = app.execute(ctx, controller, trigger, &params.JSONOutput)
				if params.Once || ctx.Err() != nil {
					return err
				}
				if err != nil {
					env.logger.Error("nightly run failed", "error", err)
				}
			}
		},
	}
}

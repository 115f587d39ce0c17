// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bureau-release/cmd/bureau-release/cli"
	"github.com/bureau-foundation/bureau-release/lib/packager"
	"github.com/bureau-foundation/bureau-release/lib/pipeline"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
)

type planParams struct {
	configParams
	cli.JSONOutput

	Event   string `flag:"event,e" default:"schedule" desc:"trigger event to plan for"`
	Tag     string `flag:"tag" desc:"release tag (manual and tag events)"`
	Ref     string `flag:"ref" desc:"triggering ref"`
	Version string `flag:"version" desc:"release version override"`
}

// plan is the plan command's JSON output.
type plan struct {
	Project  string           `json:"project"`
	Flow     releaseinfo.Kind `json:"flow"`
	Tag      string           `json:"tag"`
	Version  string           `json:"version"`
	Binaries []string         `json:"binaries"`
	Size     int              `json:"cross_product"`
	Excluded int              `json:"excluded"`
	Included int              `json:"included"`
	Targets  []plannedTarget  `json:"targets"`
	Stages   []string         `json:"stages"`
}

type plannedTarget struct {
	ID      string `json:"id"`
	OS      string `json:"os"`
	Triple  string `json:"triple"`
	CPU     string `json:"cpu"`
	Cross   bool   `json:"cross,omitempty"`
	Archive string `json:"archive"`
}

func (app *app) planCommand() *cli.Command {
	var params planParams
	return &cli.Command{
		Name:    "plan",
		Summary: "Print the targets, archive names and stages of a run",
		Description: `Expand the build matrix and resolve release info for a trigger without
building anything. Prints each scheduled target with the archive it
would produce, and the stage graph in execution order.`,
		Usage: "bureau-release plan [--event <event>] [flags]",
		Examples: []cli.Example{
			{Description: "Archive names for a tag", Command: "bureau-release plan --event tag --tag v0.9.1"},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("plan", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return errors.New("usage: bureau-release plan [flags]")
			}
			event, err := releaseinfo.ParseEvent(params.Event)
			if err != nil {
				return err
			}
			env, err := app.load(params.configParams)
			if err != nil {
				return err
			}
			trigger := releaseinfo.Trigger{Event: event, Ref: params.Ref, Tag: params.Tag, Version: params.Version}
			info, err := env.definition.Resolver(app.clock).Resolve(trigger)
			if err != nil {
				return err
			}

			result := buildPlan(env, info)
			if done, err := params.EmitJSON(app.stdout, result); done {
				return err
			}
			writePlan(app.stdout, result)
			return nil
		},
	}
}

func buildPlan(env *environment, info releaseinfo.Info) plan {
	project := env.definition.Project
	result := plan{
		Project:  project,
		Flow:     info.Kind,
		Tag:      info.Tag,
		Version:  info.StampedVersion(),
		Binaries: env.definition.Binaries,
		Size:     env.matrix.Size(),
		Excluded: env.matrix.Excluded(),
		Included: env.matrix.Included(),
		Stages:   pipeline.FlowStages(info.Kind),
	}
	for _, target := range env.matrix.List() {
		result.Targets = append(result.Targets, plannedTarget{
			ID:      target.ID(),
			OS:      target.OS,
			Triple:  target.Triple,
			CPU:     target.CPU,
			Cross:   target.Cross,
			Archive: packager.ArchiveName(project, info, target),
		})
	}
	return result
}

func writePlan(w io.Writer, result plan) {
	fmt.Fprintf(w, "%s %s (%s, tag %s)\n", result.Project, result.Version, result.Flow, result.Tag)
	fmt.Fprintf(w, "matrix: %d combinations, %d excluded, %d included, %d targets\n\n",
		result.Size, result.Excluded, result.Included, len(result.Targets))

	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tARCHIVE")
	for _, target := range result.Targets {
		fmt.Fprintf(tw, "%s\t%s\n", target.ID, target.Archive)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nstages: %s\n", strings.Join(result.Stages, " -> "))
}

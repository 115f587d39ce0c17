// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bureau-release/cmd/bureau-release/cli"
	"github.com/bureau-foundation/bureau-release/lib/cachekey"
	"github.com/bureau-foundation/bureau-release/lib/depcache"
)

type cacheKeyParams struct {
	configParams
	cli.JSONOutput
}

// cacheKeyReport is one scope's line of the cache-key output.
type cacheKeyReport struct {
	Scope  cachekey.Scope `json:"scope"`
	Key    string         `json:"key,omitempty"`
	Cached bool           `json:"cached"`
	Files  int            `json:"files,omitempty"`
	Size   int64          `json:"size,omitempty"`
}

type cacheKeyOutput struct {
	Keys     []cacheKeyReport `json:"keys"`
	Warnings []string         `json:"warnings,omitempty"`
}

func (app *app) cacheKeyCommand() *cli.Command {
	var params cacheKeyParams
	return &cli.Command{
		Name:    "cache-key",
		Summary: "Derive the dependency cache keys and check the cache",
		Description: `Derive both dependency cache keys the way a run would: the dependency
index key from the live head of the index repository, and the artifacts
key from the lockfile with the project's own package versions removed.
Reports whether the local cache holds an entry for each.

A key that cannot be derived is reported as a warning and left empty;
a run with an empty key always misses the cache.`,
		Usage: "bureau-release cache-key [flags]",
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("cache-key", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return errors.New("usage: bureau-release cache-key [flags]")
			}
			env, err := app.load(params.configParams)
			if err != nil {
				return err
			}
			store, err := depcache.New(depcache.Config{Root: env.config.Paths.Cache, Clock: app.clock, Logger: env.logger})
			if err != nil {
				return err
			}

			keys, warnings := env.definition.Deriver(app.heads, env.logger).Derive(ctx)
			output := cacheKeyOutput{Warnings: warnings}
			for _, key := range []cachekey.Key{keys.Index, keys.Artifacts} {
				report := cacheKeyReport{Scope: key.Scope}
				if !key.IsZero() {
					report.Key = key.String()
					if meta, found := store.Stat(key); found {
						report.Cached = true
						report.Files = meta.Files
						report.Size = meta.Size
					}
				}
				output.Keys = append(output.Keys, report)
			}

			if done, err := params.EmitJSON(app.stdout, output); done {
				return err
			}
			for _, report := range output.Keys {
				switch {
				case report.Key == "":
					fmt.Fprintf(app.stdout, "%-20s (none)\n", report.Scope)
				case report.Cached:
					fmt.Fprintf(app.stdout, "%-20s %s  cached, %d files, %d bytes\n", report.Scope, report.Key, report.Files, report.Size)
				default:
					fmt.Fprintf(app.stdout, "%-20s %s  not cached\n", report.Scope, report.Key)
				}
			}
			for _, warning := range output.Warnings {
				fmt.Fprintf(app.stdout, "warning: %s\n", warning)
			}
			return nil
		},
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/bureau-release/cmd/bureau-release/cli"
	"github.com/bureau-foundation/bureau-release/lib/packager"
)

func (app *app) verifyCommand() *cli.Command {
	return &cli.Command{
		Name:    "verify",
		Summary: "Check a release archive against its checksum manifest",
		Description: `Unpack a release archive and compare every file with the checksum
manifest published next to it. The manifest defaults to the archive
path with ".sha256" appended.

Needs no config: this is the check a user runs on a downloaded release.`,
		Usage: "bureau-release verify <archive> [manifest]",
		Examples: []cli.Example{
			{
				Description: "Verify a downloaded archive",
				Command:     "bureau-release verify jormungandr-0.9.1-x86_64-unknown-linux-gnu-generic.tar.gz",
			},
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return errors.New("usage: bureau-release verify <archive> [manifest]")
			}
			archive := args[0]
			manifestPath := archive + packager.ChecksumSuffix
			if len(args) == 2 {
				manifestPath = args[1]
			}

			manifest, err := packager.ReadManifest(manifestPath)
			if err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}
			if err := packager.Verify(archive, manifest); err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s: ok (%d files)\n", archive, manifest.Len())
			return nil
		},
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for bureau-release.
//
// A [Command] has a name, an optional [pflag.FlagSet] factory, nested
// [Command.Subcommands], and a Run function receiving the context the
// tree was executed with. [Command.Execute] parses flags, routes to
// subcommands, and prints structured help. Unknown commands and flags
// get a closest-match suggestion by edit distance.
//
// Parameter structs declare their flags with struct tags and are bound
// by [FlagsFromParams]. Embedding [JSONOutput] adds --json.
//
// A command that has already written its own report and only needs a
// non-zero exit returns an [*ExitError].
package cli

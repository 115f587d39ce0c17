// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releasedef

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/bureau-foundation/bureau-release/lib/cron"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/toolchain"
)

var (
	// projectPattern matches names that are safe inside archive file
	// names: no path separators, no whitespace.
	projectPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

	// environmentNamePattern matches valid environment variable names.
	environmentNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate checks a Definition for structural issues. Returns a list
// of human-readable issue descriptions. An empty list means the
// definition is valid.
//
// Checks include:
//   - project is required and usable in file names
//   - at least one binary, names unique and usable in file names
//   - toolchain.build is required; every template references only
//     known variables
//   - the matrix validates (see matrix.New)
//   - cpu_flags only names CPU variants the matrix builds
//   - schedule parses as a cron expression
//   - nightly_tag is not empty and contains no whitespace
//   - date_env is a valid environment variable name
func Validate(definition *Definition) []string {
	var issues []string

	if definition.Project == "" {
		issues = append(issues, "project is required")
	} else if !projectPattern.MatchString(definition.Project) {
		issues = append(issues, fmt.Sprintf("project %q: must start with a letter or digit and contain only letters, digits, '.', '_' or '-'", definition.Project))
	}

	if len(definition.Binaries) == 0 {
		issues = append(issues, "binaries: at least one binary is required")
	}
	seen := make(map[string]int, len(definition.Binaries))
	for index, name := range definition.Binaries {
		prefix := fmt.Sprintf("binaries[%d]", index)
		if name == "" {
			issues = append(issues, prefix+": name is required")
			continue
		}
		if !projectPattern.MatchString(name) {
			issues = append(issues, fmt.Sprintf("%s %q: not a valid file name", prefix, name))
		}
		if first, exists := seen[name]; exists {
			issues = append(issues, fmt.Sprintf("%s %q: duplicate binary (first listed at binaries[%d])", prefix, name, first))
		} else {
			seen[name] = index
		}
	}

	if definition.Toolchain.Build == "" {
		issues = append(issues, "toolchain.build is required")
	}
	issues = append(issues, validateTemplate("toolchain.fetch", definition.Toolchain.Fetch)...)
	issues = append(issues, validateTemplate("toolchain.build", definition.Toolchain.Build)...)
	issues = append(issues, validateTemplate("toolchain.cross_build", definition.Toolchain.CrossBuild)...)

	built, err := matrix.New(definition.Matrix)
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			issues = append(issues, "matrix: "+line)
		}
	} else {
		cpus := make(map[string]bool)
		for target := range built.Targets() {
			cpus[target.CPU] = true
		}
		variants := make([]string, 0, len(definition.Toolchain.CPUFlags))
		for variant := range definition.Toolchain.CPUFlags {
			variants = append(variants, variant)
		}
		slices.Sort(variants)
		for _, variant := range variants {
			if !cpus[variant] {
				issues = append(issues, fmt.Sprintf("toolchain.cpu_flags[%q]: no target in the matrix uses this CPU", variant))
			}
		}
	}

	if _, err := cron.ParseNightly(definition.Schedule); err != nil {
		issues = append(issues, fmt.Sprintf("schedule %q: %v", definition.Schedule, err))
	}

	if definition.NightlyTag == "" || strings.ContainsAny(definition.NightlyTag, " \t\n") {
		issues = append(issues, fmt.Sprintf("nightly_tag %q: must be non-empty and contain no whitespace", definition.NightlyTag))
	}

	if !environmentNamePattern.MatchString(definition.DateEnv) {
		issues = append(issues, fmt.Sprintf("date_env %q: not a valid environment variable name", definition.DateEnv))
	}

	return issues
}

// validateTemplate reports references to variables the toolchain never
// sets. Shell variables such as $HOME are left to the shell and are not
// checked; only the ${NAME} form is a template reference.
func validateTemplate(field, template string) []string {
	var issues []string
	for _, name := range toolchain.References(template) {
		if !slices.Contains(toolchain.KnownVariables, name) {
			issues = append(issues, fmt.Sprintf("%s: unknown variable ${%s} (known: %s)",
				field, name, strings.Join(toolchain.KnownVariables, ", ")))
		}
	}
	return issues
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolchain

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// variablePattern matches ${NAME} references. Names start with a
// letter or underscore and contain letters, digits and underscores.
var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expand replaces ${NAME} references in input with values from
// variables. Every reference without a value is reported in one error;
// a template that names an unknown variable fails before anything runs.
func Expand(input string, variables map[string]string) (string, error) {
	var unresolved []string
	result := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[2 : len(match)-1]
		if value, exists := variables[name]; exists {
			return value
		}
		if !slices.Contains(unresolved, name) {
			unresolved = append(unresolved, name)
		}
		return match
	})
	if len(unresolved) > 0 {
		return "", fmt.Errorf("unresolved template variables: %s", strings.Join(unresolved, ", "))
	}
	return result, nil
}

// References returns the distinct variable names input refers to, in
// order of first appearance.
func References(input string) []string {
	var names []string
	for _, match := range variablePattern.FindAllStringSubmatch(input, -1) {
		if !slices.Contains(names, match[1]) {
			names = append(names, match[1])
		}
	}
	return names
}

// KnownVariables lists every name a template may reference.
var KnownVariables = []string{
	"TARGET", "CPU", "CPU_FLAGS", "TOOLCHAIN", "BINARY",
	"VERSION", "DATE", "OUT_DIR", "EXE", "CACHE_DIR",
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import "strings"

// Target is one platform, CPU, toolchain and cross-compile combination.
// Targets are comparable and used as map keys.
type Target struct {
	OS        string `json:"os"`
	Triple    string `json:"triple"`
	CPU       string `json:"cpu"`
	Toolchain string `json:"toolchain"`
	Cross     bool   `json:"cross"`
}

// ID is a stable identifier for the target, used in node names, log
// attributes, work directory names and commit status contexts.
func (target Target) ID() string {
	var builder strings.Builder
	builder.WriteString(target.OS)
	builder.WriteByte('-')
	builder.WriteString(target.Triple)
	builder.WriteByte('-')
	builder.WriteString(target.CPU)
	builder.WriteByte('-')
	builder.WriteString(target.Toolchain)
	if target.Cross {
		builder.WriteString("-cross")
	}
	return builder.String()
}

func (target Target) String() string { return target.ID() }

// Windows reports whether binaries for this target carry the .exe
// suffix and ship in a zip archive.
func (target Target) Windows() bool {
	return target.OS == "windows" || strings.Contains(target.Triple, "-windows")
}

// ExecutableSuffix is ".exe" for Windows targets and empty otherwise.
func (target Target) ExecutableSuffix() string {
	if target.Windows() {
		return ".exe"
	}
	return ""
}

// Selector matches targets by the fields it sets. Empty strings and a
// nil Cross are wildcards.
type Selector struct {
	OS        string `json:"os,omitempty"`
	Triple    string `json:"triple,omitempty"`
	CPU       string `json:"cpu,omitempty"`
	Toolchain string `json:"toolchain,omitempty"`
	Cross     *bool  `json:"cross,omitempty"`
}

// Matches reports whether every field set on the selector equals the
// target's.
func (selector Selector) Matches(target Target) bool {
	return (selector.OS == "" || selector.OS == target.OS) &&
		(selector.Triple == "" || selector.Triple == target.Triple) &&
		(selector.CPU == "" || selector.CPU == target.CPU) &&
		(selector.Toolchain == "" || selector.Toolchain == target.Toolchain) &&
		(selector.Cross == nil || *selector.Cross == target.Cross)
}

// empty reports whether the selector would match every target.
func (selector Selector) empty() bool {
	return selector == Selector{}
}

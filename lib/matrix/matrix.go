// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Defaults for optional dimensions.
const (
	DefaultCPU       = "generic"
	DefaultToolchain = "stable"
)

// defaultTriples maps an OS to the triple used when the triple
// dimension is omitted.
var defaultTriples = map[string]string{
	"linux":   "x86_64-unknown-linux-gnu",
	"macos":   "x86_64-apple-darwin",
	"windows": "x86_64-pc-windows-msvc",
}

// ErrInvalidMatrix wraps every configuration error New returns.
var ErrInvalidMatrix = errors.New("invalid build matrix")

// Dimensions lists the values for each axis of the matrix.
type Dimensions struct {
	OS        []string `json:"os"`
	Triple    []string `json:"triple,omitempty"`
	CPU       []string `json:"cpu,omitempty"`
	Toolchain []string `json:"toolchain,omitempty"`
	Cross     []bool   `json:"cross,omitempty"`
}

// Config is a matrix declaration.
type Config struct {
	Dimensions Dimensions `json:"dimensions"`
	Exclude    []Selector `json:"exclude,omitempty"`
	Include    []Target   `json:"include,omitempty"`
}

// Matrix is a validated matrix declaration. It is immutable and safe
// for concurrent use.
type Matrix struct {
	os        []string
	triple    []string // empty means "derive from OS"
	cpu       []string
	toolchain []string
	cross     []bool
	exclude   []Selector
	include   []Target
	size      int
	excluded  int
}

// New validates config and returns the matrix. All problems are
// reported together, each wrapped in ErrInvalidMatrix.
func New(config Config) (*Matrix, error) {
	dimensions := config.Dimensions
	matrix := &Matrix{
		os:        dimensions.OS,
		triple:    dimensions.Triple,
		cpu:       orDefault(dimensions.CPU, DefaultCPU),
		toolchain: orDefault(dimensions.Toolchain, DefaultToolchain),
		cross:     dimensions.Cross,
		exclude:   config.Exclude,
	}
	if len(matrix.cross) == 0 {
		matrix.cross = []bool{false}
	}

	var issues []string
	if len(dimensions.OS) == 0 {
		issues = append(issues, "dimensions.os must list at least one operating system")
	}
	issues = append(issues, duplicates("os", dimensions.OS)...)
	issues = append(issues, duplicates("triple", dimensions.Triple)...)
	issues = append(issues, duplicates("cpu", matrix.cpu)...)
	issues = append(issues, duplicates("toolchain", matrix.toolchain)...)
	if len(matrix.cross) > 2 || (len(matrix.cross) == 2 && matrix.cross[0] == matrix.cross[1]) {
		issues = append(issues, fmt.Sprintf("dimensions.cross has duplicate values: %v", matrix.cross))
	}
	for _, value := range slices.Concat(dimensions.OS, dimensions.Triple, matrix.cpu, matrix.toolchain) {
		if value == "" || strings.ContainsAny(value, " \t/") {
			issues = append(issues, fmt.Sprintf("dimension value %q must be non-empty and contain no spaces or slashes", value))
		}
	}
	if len(dimensions.Triple) == 0 {
		for _, osName := range dimensions.OS {
			if _, ok := defaultTriples[osName]; !ok {
				issues = append(issues, fmt.Sprintf("os %q has no default target triple; list dimensions.triple explicitly", osName))
			}
		}
	}

	for index, selector := range config.Exclude {
		issues = append(issues, matrix.checkSelector(index, selector)...)
	}

	if len(issues) == 0 {
		matrix.size = len(matrix.os) * max(len(matrix.triple), 1) * len(matrix.cpu) * len(matrix.toolchain) * len(matrix.cross)

		generated := make(map[Target]bool, matrix.size)
		used := make([]bool, len(config.Exclude))
		for target := range matrix.product() {
			generated[target] = true
			if index := matrix.excludedBy(target); index >= 0 {
				matrix.excluded++
				used[index] = true
			}
		}
		for index, wasUsed := range used {
			if !wasUsed {
				issues = append(issues, fmt.Sprintf("exclude[%d] matches no target", index))
			}
		}

		seen := make(map[Target]int, len(config.Include))
		for index, include := range config.Include {
			target, targetIssues := matrix.completeInclude(index, include)
			issues = append(issues, targetIssues...)
			if len(targetIssues) > 0 {
				continue
			}
			if generated[target] {
				issues = append(issues, fmt.Sprintf("include[%d] duplicates generated target %s", index, target.ID()))
				continue
			}
			if first, exists := seen[target]; exists {
				issues = append(issues, fmt.Sprintf("include[%d] duplicates include[%d]", index, first))
				continue
			}
			seen[target] = index
			matrix.include = append(matrix.include, target)
		}
	}

	if len(issues) > 0 {
		errs := make([]error, len(issues))
		for i, issue := range issues {
			errs[i] = fmt.Errorf("%w: %s", ErrInvalidMatrix, issue)
		}
		return nil, errors.Join(errs...)
	}
	return matrix, nil
}

// Targets yields every scheduled target: the product minus exclusions,
// then the includes. Each call starts a fresh iteration.
func (matrix *Matrix) Targets() iter.Seq[Target] {
	return func(yield func(Target) bool) {
		for target := range matrix.product() {
			if matrix.excludedBy(target) >= 0 {
				continue
			}
			if !yield(target) {
				return
			}
		}
		for _, target := range matrix.include {
			if !yield(target) {
				return
			}
		}
	}
}

// List collects Targets into a slice.
func (matrix *Matrix) List() []Target {
	targets := make([]Target, 0, matrix.Count())
	for target := range matrix.Targets() {
		targets = append(targets, target)
	}
	return targets
}

// Size is the raw Cartesian product size.
func (matrix *Matrix) Size() int { return matrix.size }

// Excluded is the number of product targets removed by exclusions.
func (matrix *Matrix) Excluded() int { return matrix.excluded }

// Included is the number of explicitly included targets.
func (matrix *Matrix) Included() int { return len(matrix.include) }

// Count is the number of targets Targets yields.
func (matrix *Matrix) Count() int { return matrix.size - matrix.excluded + len(matrix.include) }

func (matrix *Matrix) product() iter.Seq[Target] {
	return func(yield func(Target) bool) {
		for _, osName := range matrix.os {
			triples := matrix.triple
			if len(triples) == 0 {
				triples = []string{defaultTriples[osName]}
			}
			for _, triple := range triples {
				for _, cpu := range matrix.cpu {
					for _, toolchain := range matrix.toolchain {
						for _, cross := range matrix.cross {
							target := Target{OS: osName, Triple: triple, CPU: cpu, Toolchain: toolchain, Cross: cross}
							if !yield(target) {
								return
							}
						}
					}
				}
			}
		}
	}
}

// excludedBy returns the index of the first exclusion matching target,
// or -1.
func (matrix *Matrix) excludedBy(target Target) int {
	for index, selector := range matrix.exclude {
		if selector.Matches(target) {
			return index
		}
	}
	return -1
}

func (matrix *Matrix) checkSelector(index int, selector Selector) []string {
	var issues []string
	prefix := fmt.Sprintf("exclude[%d]", index)
	if selector.empty() {
		return []string{prefix + " sets no fields and would exclude every target"}
	}
	check := func(field, value string, allowed []string) {
		if value != "" && len(allowed) > 0 && !slices.Contains(allowed, value) {
			issues = append(issues, fmt.Sprintf("%s.%s %q is not a value of dimensions.%s", prefix, field, value, field))
		}
	}
	check("os", selector.OS, matrix.os)
	check("triple", selector.Triple, matrix.triple)
	check("cpu", selector.CPU, matrix.cpu)
	check("toolchain", selector.Toolchain, matrix.toolchain)
	return issues
}

// completeInclude fills defaulted fields of an included target.
func (matrix *Matrix) completeInclude(index int, target Target) (Target, []string) {
	prefix := fmt.Sprintf("include[%d]", index)
	if target.OS == "" {
		return target, []string{prefix + ".os is required"}
	}
	if target.Triple == "" {
		triple, ok := defaultTriples[target.OS]
		if !ok {
			return target, []string{fmt.Sprintf("%s: os %q has no default target triple", prefix, target.OS)}
		}
		target.Triple = triple
	}
	if target.CPU == "" {
		target.CPU = DefaultCPU
	}
	if target.Toolchain == "" {
		target.Toolchain = DefaultToolchain
	}
	return target, nil
}

func orDefault(values []string, fallback string) []string {
	if len(values) == 0 {
		return []string{fallback}
	}
	return values
}

func duplicates(dimension string, values []string) []string {
	var issues []string
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		if seen[value] {
			issues = append(issues, fmt.Sprintf("dimensions.%s lists %q more than once", dimension, value))
		}
		seen[value] = true
	}
	return issues
}

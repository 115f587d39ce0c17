// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/bureau-release/lib/pipeline"
)

// summaryStyles color the run summary. Plain styles render text
// unchanged, which is what pipes and CI logs get.
type summaryStyles struct {
	heading lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
}

func newSummaryStyles(color bool) summaryStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return summaryStyles{heading: plain, passed: plain, failed: plain, muted: plain, warning: plain}
	}
	return summaryStyles{
		heading: lipgloss.NewStyle().Bold(true),
		passed:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// renderSummary writes a human-readable run report: one line per
// target, warnings, and the outcome.
func renderSummary(w io.Writer, summary *pipeline.Summary, color bool) {
	styles := newSummaryStyles(color)

	title := fmt.Sprintf("%s release %s", summary.Flow, summary.Version)
	if summary.Tag != "" {
		title += " (" + summary.Tag + ")"
	}
	if summary.DryRun {
		title += " [dry run]"
	}
	fmt.Fprintln(w, styles.heading.Render(title))

	width := 0
	for _, target := range summary.Targets {
		width = max(width, len(target.Target))
	}
	for _, target := range summary.Targets {
		name := target.Target + strings.Repeat(" ", width-len(target.Target))
		switch {
		case target.Passed:
			detail := target.Archive
			if target.IndexHit || target.ArtifactsHit {
				detail += styles.muted.Render(" (" + cacheDetail(target) + ")")
			}
			fmt.Fprintf(w, "  %s  %s  %s\n", styles.passed.Render("PASS"), name, detail)
		case target.Stage != "":
			fmt.Fprintf(w, "  %s  %s  %s failed: %s\n",
				styles.failed.Render("FAIL"), name, target.Stage, target.Error)
		default:
			fmt.Fprintf(w, "  %s  %s  %s\n", styles.muted.Render(strings.ToUpper(target.State.String()[:4])), name, target.State)
		}
	}

	for _, warning := range summary.Warnings {
		fmt.Fprintf(w, "%s %s\n", styles.warning.Render("warning:"), warning)
	}

	elapsed := (time.Duration(summary.DurationMS) * time.Millisecond).Round(time.Second)
	counts := fmt.Sprintf("%d passed, %d failed in %s", summary.Passed(), summary.Failed(), elapsed)
	switch summary.Outcome {
	case pipeline.OutcomeSuccess:
		published := "published"
		if !summary.Published {
			published = "not published"
		}
		fmt.Fprintf(w, "%s: %s, %s\n", styles.passed.Render("success"), counts, published)
	default:
		fmt.Fprintf(w, "%s: %s\n", styles.failed.Render(string(summary.Outcome)), counts)
		if summary.Error != "" {
			fmt.Fprintf(w, "  %s\n", summary.Error)
		}
	}
}

func cacheDetail(target pipeline.TargetStatus) string {
	var hits []string
	if target.IndexHit {
		hits = append(hits, "index")
	}
	if target.ArtifactsHit {
		hits = append(hits, "artifacts")
	}
	return "cache: " + strings.Join(hits, ", ")
}

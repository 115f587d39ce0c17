// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaseinfo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/bureau-foundation/bureau-release/lib/clock"
)

// DefaultNightlyTag is the reserved tag nightly releases rotate under.
const DefaultNightlyTag = "nightly"

// DateStampLayout formats nightly date stamps (YYYYMMDD).
const DateStampLayout = "20060102"

// Event is the kind of trigger that started a run.
type Event string

const (
	EventManual   Event = "manual"
	EventTag      Event = "tag"
	EventSchedule Event = "schedule"
)

// ParseEvent validates an event name from the command line.
func ParseEvent(name string) (Event, error) {
	switch event := Event(name); event {
	case EventManual, EventTag, EventSchedule:
		return event, nil
	default:
		return "", &ResolutionError{Event: event, Reason: "unrecognized trigger event (want manual, tag, or schedule)"}
	}
}

// Trigger is the context a run was started with.
type Trigger struct {
	Event Event

	// Ref is the pushed ref, e.g. "refs/tags/v0.9.1".
	Ref string

	// Tag and Version override what would be derived from Ref.
	Tag     string
	Version string

	// Commit is the SHA being released, if known.
	Commit string
}

// Kind distinguishes the two release flows.
type Kind int

const (
	Versioned Kind = iota
	Nightly
)

func (kind Kind) String() string {
	switch kind {
	case Versioned:
		return "versioned"
	case Nightly:
		return "nightly"
	default:
		return fmt.Sprintf("Kind(%d)", int(kind))
	}
}

// MarshalText encodes the kind by name in JSON output.
func (kind Kind) MarshalText() ([]byte, error) {
	return []byte(kind.String()), nil
}

// Info is the resolved identity of a release run.
type Info struct {
	Version string `json:"version"`
	Tag     string `json:"tag"`
	Kind    Kind   `json:"kind"`

	// DateStamp is the UTC build date (YYYYMMDD) for nightly runs and
	// empty for versioned runs.
	DateStamp string `json:"date_stamp,omitempty"`

	Commit string `json:"commit,omitempty"`
}

// StampedVersion is the version as it appears in archive names:
// "<version>" or "<version>.<dateStamp>".
func (info Info) StampedVersion() string {
	if info.DateStamp == "" {
		return info.Version
	}
	return info.Version + "." + info.DateStamp
}

// ReleaseName is the human-readable release title.
func (info Info) ReleaseName(project string) string {
	if info.Kind == Nightly {
		return fmt.Sprintf("%s nightly %s", project, info.StampedVersion())
	}
	return fmt.Sprintf("%s %s", project, info.Tag)
}

// ErrResolution is wrapped by every ResolutionError.
var ErrResolution = errors.New("release info resolution failed")

// ResolutionError reports a trigger that cannot be turned into release
// info. It aborts the run before anything is built.
type ResolutionError struct {
	Event  Event
	Reason string
	Err    error
}

func (err *ResolutionError) Error() string {
	message := fmt.Sprintf("resolving release info for %q trigger: %s", err.Event, err.Reason)
	if err.Err != nil {
		message += ": " + err.Err.Error()
	}
	return message
}

func (err *ResolutionError) Unwrap() []error {
	if err.Err != nil {
		return []error{ErrResolution, err.Err}
	}
	return []error{ErrResolution}
}

// VersionSource reports the version the project declares for itself.
type VersionSource interface {
	ProjectVersion() (string, error)
}

// Resolver resolves triggers into release info.
type Resolver struct {
	// Clock supplies the nightly date stamp. Defaults to clock.Real().
	Clock clock.Clock

	// Versions supplies the nightly version. Required for schedule
	// triggers.
	Versions VersionSource

	// NightlyTag defaults to DefaultNightlyTag.
	NightlyTag string
}

// Resolve derives release info from trigger.
func (resolver *Resolver) Resolve(trigger Trigger) (Info, error) {
	switch trigger.Event {
	case EventManual, EventTag:
		return resolver.resolveVersioned(trigger)
	case EventSchedule:
		return resolver.resolveNightly(trigger)
	case "":
		return Info{}, &ResolutionError{Event: trigger.Event, Reason: "trigger event is required"}
	default:
		return Info{}, &ResolutionError{Event: trigger.Event, Reason: "unrecognized trigger event"}
	}
}

func (resolver *Resolver) nightlyTag() string {
	if resolver.NightlyTag != "" {
		return resolver.NightlyTag
	}
	return DefaultNightlyTag
}

func (resolver *Resolver) resolveVersioned(trigger Trigger) (Info, error) {
	tag := trigger.Tag
	if tag == "" {
		name, isTag := strings.CutPrefix(trigger.Ref, "refs/tags/")
		switch {
		case trigger.Ref == "":
			return Info{}, &ResolutionError{Event: trigger.Event, Reason: "a tag or a refs/tags/ ref is required"}
		case !isTag || name == "":
			return Info{}, &ResolutionError{Event: trigger.Event, Reason: fmt.Sprintf("ref %q is not a tag", trigger.Ref)}
		}
		tag = name
	}
	if tag == resolver.nightlyTag() {
		return Info{}, &ResolutionError{Event: trigger.Event, Reason: fmt.Sprintf("tag %q is reserved for nightly releases", tag)}
	}

	version := trigger.Version
	if version == "" {
		version = strings.TrimPrefix(tag, "v")
	}
	if _, err := semver.StrictNewVersion(version); err != nil {
		return Info{}, &ResolutionError{Event: trigger.Event, Reason: fmt.Sprintf("version %q is not semantic", version), Err: err}
	}

	return Info{
		Version: version,
		Tag:     tag,
		Kind:    Versioned,
		Commit:  trigger.Commit,
	}, nil
}

func (resolver *Resolver) resolveNightly(trigger Trigger) (Info, error) {
	tag := resolver.nightlyTag()
	if trigger.Tag != "" && trigger.Tag != tag {
		return Info{}, &ResolutionError{Event: trigger.Event, Reason: fmt.Sprintf("schedule triggers always release under %q, not %q", tag, trigger.Tag)}
	}

	version := trigger.Version
	if version == "" {
		if resolver.Versions == nil {
			return Info{}, &ResolutionError{Event: trigger.Event, Reason: "no project version source configured"}
		}
		declared, err := resolver.Versions.ProjectVersion()
		if err != nil {
			return Info{}, &ResolutionError{Event: trigger.Event, Reason: "reading project version", Err: err}
		}
		version = declared
	}
	if _, err := semver.StrictNewVersion(version); err != nil {
		return Info{}, &ResolutionError{Event: trigger.Event, Reason: fmt.Sprintf("project version %q is not semantic", version), Err: err}
	}

	clk := resolver.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return Info{
		Version:   version,
		Tag:       tag,
		Kind:      Nightly,
		DateStamp: clk.Now().UTC().Format(DateStampLayout),
		Commit:    trigger.Commit,
	}, nil
}

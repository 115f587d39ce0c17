// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaseinfo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/bureau-release/lib/clock"
)

func TestResolveVersioned(t *testing.T) {
	resolver := &Resolver{}
	tests := []struct {
		name    string
		trigger Trigger
		want    Info
	}{
		{
			name:    "tag push",
			trigger: Trigger{Event: EventTag, Ref: "refs/tags/v0.9.1", Commit: "abc"},
			want:    Info{Version: "0.9.1", Tag: "v0.9.1", Kind: Versioned, Commit: "abc"},
		},
		{
			name:    "manual with explicit tag",
			trigger: Trigger{Event: EventManual, Tag: "v1.0.0-rc.2"},
			want:    Info{Version: "1.0.0-rc.2", Tag: "v1.0.0-rc.2", Kind: Versioned},
		},
		{
			name:    "explicit version override",
			trigger: Trigger{Event: EventManual, Tag: "release-7", Version: "7.0.0"},
			want:    Info{Version: "7.0.0", Tag: "release-7", Kind: Versioned},
		},
		{
			name:    "tag without v prefix",
			trigger: Trigger{Event: EventTag, Ref: "refs/tags/2.3.4"},
			want:    Info{Version: "2.3.4", Tag: "2.3.4", Kind: Versioned},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := resolver.Resolve(test.trigger)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != test.want {
				t.Errorf("Resolve = %+v, want %+v", got, test.want)
			}
			if got.DateStamp != "" {
				t.Errorf("versioned release has date stamp %q", got.DateStamp)
			}
		})
	}
}

func TestResolveNightly(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	location := time.FixedZone("UTC-5", -5*60*60)
	fake := clock.Fake(time.Date(2026, 3, 4, 23, 30, 0, 0, location))
	resolver := &Resolver{Clock: fake, Versions: StaticVersion("0.9.3")}

	info, err := resolver.Resolve(Trigger{Event: EventSchedule})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := Info{Version: "0.9.3", Tag: "nightly", Kind: Nightly, DateStamp: "20260305"}
	if info != want {
		t.Errorf("Resolve = %+v, want %+v", info, want)
	}
	if got := info.StampedVersion(); got != "0.9.3.20260305" {
		t.Errorf("StampedVersion() = %q", got)
	}
}

func TestResolveNightlyCustomTag(t *testing.T) {
	resolver := &Resolver{
		Clock:      clock.Fake(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)),
		Versions:   StaticVersion("1.2.3"),
		NightlyTag: "edge",
	}
	info, err := resolver.Resolve(Trigger{Event: EventSchedule, Tag: "edge"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.Tag != "edge" || info.DateStamp != "20260102" {
		t.Errorf("Resolve = %+v", info)
	}
}

func TestResolveErrors(t *testing.T) {
	resolver := &Resolver{Versions: StaticVersion("not-a-version")}
	tests := []struct {
		name     string
		trigger  Trigger
		fragment string
	}{
		{"empty event", Trigger{}, "trigger event is required"},
		{"unknown event", Trigger{Event: "push"}, "unrecognized trigger event"},
		{"manual without tag", Trigger{Event: EventManual}, "a tag or a refs/tags/ ref is required"},
		{"branch ref", Trigger{Event: EventTag, Ref: "refs/heads/master"}, "is not a tag"},
		{"reserved tag", Trigger{Event: EventManual, Tag: "nightly"}, "reserved for nightly"},
		{"non-semantic tag", Trigger{Event: EventTag, Ref: "refs/tags/latest"}, "is not semantic"},
		{"non-semantic manifest", Trigger{Event: EventSchedule}, "project version"},
		{"schedule with other tag", Trigger{Event: EventSchedule, Tag: "v1.0.0"}, "always release under"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := resolver.Resolve(test.trigger)
			var resolutionError *ResolutionError
			if !errors.As(err, &resolutionError) {
				t.Fatalf("error = %v, want *ResolutionError", err)
			}
			if !errors.Is(err, ErrResolution) {
				t.Error("error does not match ErrResolution")
			}
			if !strings.Contains(err.Error(), test.fragment) {
				t.Errorf("error %q does not mention %q", err, test.fragment)
			}
		})
	}
}

func TestResolveNightlyWithoutVersionSource(t *testing.T) {
	_, err := (&Resolver{}).Resolve(Trigger{Event: EventSchedule})
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("error = %v, want ErrResolution", err)
	}
}

func TestParseEvent(t *testing.T) {
	for _, name := range []string{"manual", "tag", "schedule"} {
		if _, err := ParseEvent(name); err != nil {
			t.Errorf("ParseEvent(%q): %v", name, err)
		}
	}
	if _, err := ParseEvent("cron"); !errors.Is(err, ErrResolution) {
		t.Errorf("ParseEvent(cron) error = %v, want ErrResolution", err)
	}
}

func TestCargoManifest(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     string
	}{
		{
			name:     "package version",
			manifest: "[package]\nname = \"jormungandr\"\nversion = \"0.9.1\"\n\n[dependencies]\nserde = \"1\"\n",
			want:     "0.9.1",
		},
		{
			name:     "inherited from workspace",
			manifest: "[package]\nname = \"node\"\nversion.workspace = true\n\n[workspace.package]\nversion = \"0.10.0\"\n",
			want:     "0.10.0",
		},
		{
			name:     "virtual workspace",
			manifest: "[workspace]\nmembers = [\"node\", \"cli\"]\n\n[workspace.package]\nversion = \"0.11.0-alpha.1\"\n",
			want:     "0.11.0-alpha.1",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Cargo.toml")
			if err := os.WriteFile(path, []byte(test.manifest), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			got, err := CargoManifest{Path: path}.ProjectVersion()
			if err != nil {
				t.Fatalf("ProjectVersion: %v", err)
			}
			if got != test.want {
				t.Errorf("ProjectVersion = %q, want %q", got, test.want)
			}
		})
	}
}

func TestCargoManifestWithoutVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.toml")
	if err := os.WriteFile(path, []byte("[package]\nname = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := (CargoManifest{Path: path}).ProjectVersion(); err == nil {
		t.Fatal("ProjectVersion should fail when no version is declared")
	}
}

func TestKindMarshalText(t *testing.T) {
	text, _ := Nightly.MarshalText()
	if string(text) != "nightly" {
		t.Errorf("Nightly.MarshalText() = %q", text)
	}
}

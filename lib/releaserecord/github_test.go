// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package releaserecord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureau-foundation/bureau-release/lib/github"
	"github.com/bureau-foundation/bureau-release/lib/testutil"
)

func newGitHubHost(t *testing.T, handler http.HandlerFunc) *GitHubHost {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)
	client, err := github.NewClient(github.Config{
		BaseURL:    server.URL,
		UploadURL:  server.URL,
		Token:      "test-token",
		HTTPClient: server.Client(),
		Logger:     testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return &GitHubHost{Client: client, Owner: "input-output-hk", Repo: "jormungandr"}
}

func TestGitHubHostCreateConflict(t *testing.T) {
	host := newGitHubHost(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnprocessableEntity)
		writer.Write([]byte(`{"message":"Validation Failed","errors":[{"resource":"Release","code":"already_exists","field":"tag_name"}]}`))
	})
	_, err := host.CreateRelease(context.Background(), ReleaseSpec{Tag: "v0.9.1", Draft: true})
	if !errors.Is(err, ErrReleaseExists) {
		t.Errorf("CreateRelease error = %v, want ErrReleaseExists", err)
	}
}

func TestGitHubHostDeleteMissingTag(t *testing.T) {
	host := newGitHubHost(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/repos/input-output-hk/jormungandr/git/refs/tags/nightly" {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		writer.WriteHeader(http.StatusUnprocessableEntity)
		writer.Write([]byte(`{"message":"Reference does not exist"}`))
	})
	if err := host.DeleteTag(context.Background(), "nightly"); err != nil {
		t.Errorf("DeleteTag on a missing tag: %v", err)
	}
}

func TestGitHubHostRotate(t *testing.T) {
	var requests []string
	host := newGitHubHost(t, func(writer http.ResponseWriter, request *http.Request) {
		requests = append(requests, request.Method+" "+request.URL.Path)
		switch {
		case request.Method == http.MethodGet && request.URL.Path == "/repos/input-output-hk/jormungandr/releases/tags/nightly":
			writer.Write([]byte(`{"id":40,"tag_name":"nightly","prerelease":true}`))
		case request.Method == http.MethodDelete:
			writer.WriteHeader(http.StatusNoContent)
		case request.Method == http.MethodPost && request.URL.Path == "/repos/input-output-hk/jormungandr/releases":
			writer.WriteHeader(http.StatusCreated)
			writer.Write([]byte(`{"id":41,"tag_name":"nightly","prerelease":true,"draft":false}`))
		default:
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
			writer.WriteHeader(http.StatusInternalServerError)
		}
	})

	manager := NewManager(Config{Host: host, Logger: testutil.DiscardLogger()})
	record, warning, err := manager.Rotate(context.Background(), RotateRequest{Name: "nightly", Commit: "3f2c1a"})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if warning != nil {
		t.Errorf("unexpected warning: %v", warning)
	}
	if record.ID != 41 || record.State() != Published {
		t.Errorf("record = %v", record)
	}
	want := []string{
		"GET /repos/input-output-hk/jormungandr/releases/tags/nightly",
		"DELETE /repos/input-output-hk/jormungandr/releases/40",
		"DELETE /repos/input-output-hk/jormungandr/git/refs/tags/nightly",
		"POST /repos/input-output-hk/jormungandr/releases",
	}
	if len(requests) != len(want) {
		t.Fatalf("requests = %q, want %q", requests, want)
	}
	for index := range want {
		if requests[index] != want[index] {
			t.Errorf("request %d = %q, want %q", index, requests[index], want[index])
		}
	}
}

func TestGitHubHostReportStatus(t *testing.T) {
	var body github.CreateStatusRequest
	host := newGitHubHost(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/repos/input-output-hk/jormungandr/statuses/0123456789abcdef" {
			t.Errorf("unexpected %s %s", request.Method, request.URL.Path)
		}
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Errorf("decoding status: %v", err)
		}
		writer.WriteHeader(http.StatusCreated)
		writer.Write([]byte(`{"id": 1, "state": "failure"}`))
	})

	err := host.ReportStatus(context.Background(), "0123456789abcdef", CommitStatus{
		Context:     "release/macos-x86_64-apple-darwin-generic-stable",
		State:       StatusFailure,
		Description: strings.Repeat("x", 200),
	})
	if err != nil {
		t.Fatalf("ReportStatus: %v", err)
	}
	if body.State != StatusFailure || body.Context != "release/macos-x86_64-apple-darwin-generic-stable" {
		t.Errorf("status body = %+v", body)
	}
	if length := len([]rune(body.Description)); length != 140 {
		t.Errorf("description length = %d, want 140", length)
	}
}

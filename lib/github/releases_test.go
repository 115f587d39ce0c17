// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateRelease(t *testing.T) {
	var received CreateReleaseRequest
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/repos/owner/repo/releases" {
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
		json.NewDecoder(request.Body).Decode(&received)
		writer.WriteHeader(http.StatusCreated)
		fmt.Fprintf(writer, `{"id":7,"tag_name":%q,"draft":true,"upload_url":"https://uploads.example/repos/owner/repo/releases/7/assets{?name,label}"}`, received.TagName)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	release, err := client.CreateRelease(context.Background(), "owner", "repo", CreateReleaseRequest{
		TagName:         "v0.9.1",
		TargetCommitish: "3f2c1a",
		Name:            "jormungandr v0.9.1",
		Draft:           true,
	})
	if err != nil {
		t.Fatalf("CreateRelease: %v", err)
	}
	if received.TagName != "v0.9.1" || !received.Draft || received.TargetCommitish != "3f2c1a" {
		t.Errorf("request body = %+v", received)
	}
	if release.ID != 7 || !release.Draft {
		t.Errorf("release = %+v", release)
	}
}

func TestFindReleaseFallsBackToListForDrafts(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch {
		case strings.HasPrefix(request.URL.Path, "/repos/owner/repo/releases/tags/"):
			writer.WriteHeader(http.StatusNotFound)
			writer.Write([]byte(`{"message":"Not Found"}`))
		case request.URL.Path == "/repos/owner/repo/releases" && request.URL.Query().Get("page") == "":
			writer.Header().Set("Link", fmt.Sprintf(`<https://%s/repos/owner/repo/releases?per_page=100&page=2>; rel="next"`, request.Host))
			writer.Write([]byte(`[{"id":1,"tag_name":"v0.9.0"}]`))
		case request.URL.Path == "/repos/owner/repo/releases":
			writer.Write([]byte(`[{"id":2,"tag_name":"v0.9.1","draft":true}]`))
		default:
			t.Errorf("unexpected request %s", request.URL)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	release, err := client.FindRelease(context.Background(), "owner", "repo", "v0.9.1")
	if err != nil {
		t.Fatalf("FindRelease: %v", err)
	}
	if release == nil || release.ID != 2 || !release.Draft {
		t.Errorf("FindRelease = %+v, want draft 2", release)
	}

	missing, err := client.FindRelease(context.Background(), "owner", "repo", "v1.0.0")
	if err != nil {
		t.Fatalf("FindRelease(missing): %v", err)
	}
	if missing != nil {
		t.Errorf("FindRelease(missing) = %+v, want nil", missing)
	}
}

func TestUpdateAndDeleteRelease(t *testing.T) {
	var methods []string
	var patchBody map[string]any
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		methods = append(methods, request.Method+" "+request.URL.Path)
		switch request.Method {
		case http.MethodPatch:
			json.NewDecoder(request.Body).Decode(&patchBody)
			writer.Write([]byte(`{"id":7,"tag_name":"v0.9.1","draft":false}`))
		case http.MethodDelete:
			writer.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	draft := false
	release, err := client.UpdateRelease(context.Background(), "owner", "repo", 7, UpdateReleaseRequest{Draft: &draft})
	if err != nil {
		t.Fatalf("UpdateRelease: %v", err)
	}
	if release.Draft {
		t.Error("release still draft after update")
	}
	if value, present := patchBody["draft"]; !present || value != false {
		t.Errorf("patch body = %v, want draft=false", patchBody)
	}
	if _, present := patchBody["name"]; present {
		t.Errorf("patch body sent unset name: %v", patchBody)
	}

	if err := client.DeleteRelease(context.Background(), "owner", "repo", 7); err != nil {
		t.Fatalf("DeleteRelease: %v", err)
	}
	if err := client.DeleteRef(context.Background(), "owner", "repo", "tags/nightly"); err != nil {
		t.Fatalf("DeleteRef: %v", err)
	}
	want := []string{
		"PATCH /repos/owner/repo/releases/7",
		"DELETE /repos/owner/repo/releases/7",
		"DELETE /repos/owner/repo/git/refs/tags/nightly",
	}
	if strings.Join(methods, "\n") != strings.Join(want, "\n") {
		t.Errorf("requests = %q, want %q", methods, want)
	}
}

func TestUploadReleaseAsset(t *testing.T) {
	var receivedName, receivedType, receivedBody, receivedPath string
	var receivedLength int64
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		receivedPath = request.URL.Path
		receivedName = request.URL.Query().Get("name")
		receivedType = request.Header.Get("Content-Type")
		receivedLength = request.ContentLength
		body, _ := io.ReadAll(request.Body)
		receivedBody = string(body)
		writer.WriteHeader(http.StatusCreated)
		fmt.Fprintf(writer, `{"id":99,"name":%q,"size":%d,"state":"uploaded"}`, receivedName, len(body))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	content := "archive bytes"
	asset, err := client.UploadReleaseAsset(context.Background(), "owner", "repo", UploadAssetRequest{
		UploadURL:   server.URL + "/repos/owner/repo/releases/7/assets{?name,label}",
		ReleaseID:   7,
		Name:        "jormungandr-0.9.1-x86_64-unknown-linux-gnu-generic.tar.gz",
		ContentType: "application/gzip",
		Content:     strings.NewReader(content),
		Size:        int64(len(content)),
	})
	if err != nil {
		t.Fatalf("UploadReleaseAsset: %v", err)
	}
	if receivedPath != "/repos/owner/repo/releases/7/assets" {
		t.Errorf("path = %q", receivedPath)
	}
	if receivedName != "jormungandr-0.9.1-x86_64-unknown-linux-gnu-generic.tar.gz" {
		t.Errorf("name = %q", receivedName)
	}
	if receivedType != "application/gzip" || receivedLength != int64(len(content)) || receivedBody != content {
		t.Errorf("upload = %q, %d, %q", receivedType, receivedLength, receivedBody)
	}
	if asset.ID != 99 || asset.Size != int64(len(content)) {
		t.Errorf("asset = %+v", asset)
	}
}

func TestUploadReleaseAssetDefaultURL(t *testing.T) {
	var receivedPath string
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		receivedPath = request.URL.Path
		writer.WriteHeader(http.StatusCreated)
		writer.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.UploadReleaseAsset(context.Background(), "owner", "repo", UploadAssetRequest{
		ReleaseID: 12,
		Name:      "a.zip",
		Content:   strings.NewReader("x"),
		Size:      1,
	})
	if err != nil {
		t.Fatalf("UploadReleaseAsset: %v", err)
	}
	if receivedPath != "/repos/owner/repo/releases/12/assets" {
		t.Errorf("path = %q", receivedPath)
	}
}

func TestUploadReleaseAssetRefusesHTTP(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		t.Error("request sent to a refused URL")
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.UploadReleaseAsset(context.Background(), "owner", "repo", UploadAssetRequest{
		UploadURL: "http://uploads.example/repos/owner/repo/releases/1/assets{?name,label}",
		Name:      "a.zip",
		Content:   strings.NewReader("x"),
		Size:      1,
	})
	if err == nil {
		t.Fatal("expected error for HTTP upload URL")
	}
}

func TestUploadReleaseAssetNameTaken(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnprocessableEntity)
		writer.Write([]byte(`{"message":"Validation Failed","errors":[{"resource":"ReleaseAsset","code":"already_exists","field":"name"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.UploadReleaseAsset(context.Background(), "owner", "repo", UploadAssetRequest{
		ReleaseID: 1,
		Name:      "a.zip",
		Content:   strings.NewReader("x"),
		Size:      1,
	})
	if !IsAlreadyExists(err) {
		t.Errorf("expected IsAlreadyExists, got %v", err)
	}
}

func TestListReleaseAssets(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Query().Get("page") == "" {
			writer.Header().Set("Link", fmt.Sprintf(`<https://%s%s?page=2>; rel="next"`, request.Host, request.URL.Path))
			writer.Write([]byte(`[{"id":1,"name":"a.tar.gz"}]`))
			return
		}
		writer.Write([]byte(`[{"id":2,"name":"b.zip"}]`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	assets, err := client.ListReleaseAssets("owner", "repo", 7).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(assets) != 2 || assets[0].Name != "a.tar.gz" || assets[1].Name != "b.zip" {
		t.Errorf("assets = %+v", assets)
	}
}

func TestCreateCommitStatus(t *testing.T) {
	var received CreateStatusRequest
	var receivedPath string
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		receivedPath = request.URL.Path
		json.NewDecoder(request.Body).Decode(&received)
		writer.WriteHeader(http.StatusCreated)
		writer.Write([]byte(`{"id":5,"state":"failure"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	sha := "3f2c1a0b9e8d7c6b5a4f3e2d1c0b9a8f7e6d5c4b"
	status, err := client.CreateCommitStatus(context.Background(), "owner", "repo", sha, CreateStatusRequest{
		State:       StatusFailure,
		Description: "BuildError: jcli exited with status 101",
		Context:     "release/macos-x86_64-apple-darwin-generic-stable",
	})
	if err != nil {
		t.Fatalf("CreateCommitStatus: %v", err)
	}
	if receivedPath != "/repos/owner/repo/statuses/"+sha {
		t.Errorf("path = %q", receivedPath)
	}
	if received.State != StatusFailure || status.State != "failure" {
		t.Errorf("state = %q / %q", received.State, status.State)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bureau-foundation/bureau-release/lib/clock"
	"github.com/bureau-foundation/bureau-release/lib/netutil"
)

// githubAPIVersion pins the REST API version header.
const githubAPIVersion = "2022-11-28"

const (
	defaultBaseURL   = "https://api.github.com"
	defaultUploadURL = "https://uploads.github.com"
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the root URL for API requests. Defaults to
	// "https://api.github.com". Must use HTTPS.
	BaseURL string

	// UploadURL is the root URL for release asset uploads, used when
	// a release does not carry its own upload_url. Defaults to
	// "https://uploads.github.com". Must use HTTPS.
	UploadURL string

	// Token is a personal access token, fine-grained token or
	// workflow token. Required.
	Token string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Clock defaults to clock.Real(). Tests inject clock.Fake to
	// control rate limit backoff.
	Clock clock.Clock

	Logger *slog.Logger
}

// Client is a GitHub REST API client. Safe for concurrent use.
type Client struct {
	baseURL    string
	uploadURL  string
	httpClient *http.Client
	authHeader string
	rateLimit  *rateLimitTracker
	etagCache  *etagCache
	clock      clock.Clock
	logger     *slog.Logger
}

// NewClient creates a client from config. Returns an error for a
// missing token or a non-HTTPS URL.
func NewClient(config Config) (*Client, error) {
	baseURL, err := httpsRoot(config.BaseURL, defaultBaseURL, "API")
	if err != nil {
		return nil, err
	}
	uploadURL, err := httpsRoot(config.UploadURL, defaultUploadURL, "upload")
	if err != nil {
		return nil, err
	}
	if config.Token == "" {
		return nil, errors.New("github: no token configured")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		uploadURL:  uploadURL,
		httpClient: httpClient,
		authHeader: "Bearer " + config.Token,
		rateLimit:  newRateLimitTracker(clk),
		etagCache:  newETagCache(),
		clock:      clk,
		logger:     logger,
	}, nil
}

func httpsRoot(configured, fallback, kind string) (string, error) {
	root := configured
	if root == "" {
		root = fallback
	}
	root = strings.TrimRight(root, "/")
	if !strings.HasPrefix(root, "https://") {
		return "", fmt.Errorf("github: %s client requires HTTPS (got %q)", kind, root)
	}
	return root, nil
}

// payload is a request body that can be replayed for the single
// rate-limit retry.
type payload struct {
	open        func() io.Reader
	contentType string
	length      int64
}

func jsonPayload(value any) (*payload, error) {
	if value == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("github: encoding request body: %w", err)
	}
	return &payload{
		open:        func() io.Reader { return bytes.NewReader(encoded) },
		contentType: "application/json",
		length:      int64(len(encoded)),
	}, nil
}

// do executes a request against the API host. path is relative to the
// base URL. Returns the response body; non-2xx responses are *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, http.Header, error) {
	body, err := jsonPayload(requestBody)
	if err != nil {
		return nil, nil, err
	}
	return client.doURL(ctx, method, client.baseURL+path, body, false)
}

// doURL sends one request to an absolute URL. A rate-limited response
// is retried once after the backoff the response asks for.
func (client *Client) doURL(ctx context.Context, method, url string, body *payload, isRetry bool) ([]byte, http.Header, error) {
	response, err := client.doRaw(ctx, method, url, body)
	if err != nil {
		return nil, nil, err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotModified {
		if cached := client.etagCache.body(url); cached != nil {
			return cached, response.Header, nil
		}
	}

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("github: reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		if !isRetry && (response.StatusCode == 429 || (response.StatusCode == 403 && isRateLimitMessage(string(responseBody)))) {
			if retryDuration := client.rateLimit.retryAfter(response.Header); retryDuration > 0 {
				client.logger.Info("rate limited, backing off",
					"duration", retryDuration,
					"method", method,
					"url", url,
				)
				select {
				case <-client.clock.After(retryDuration):
				case <-ctx.Done():
					return nil, nil, ctx.Err()
				}
				return client.doURL(ctx, method, url, body, true)
			}
		}
		return nil, nil, parseAPIErrorFromBody(response.StatusCode, responseBody)
	}

	if method == http.MethodGet {
		if etag := response.Header.Get("ETag"); etag != "" {
			client.etagCache.put(url, etag, responseBody)
		}
	}
	return responseBody, response.Header, nil
}

// doRaw sends an authenticated request after waiting out an exhausted
// rate limit. The caller closes the response body.
func (client *Client) doRaw(ctx context.Context, method, url string, body *payload) (*http.Response, error) {
	if err := client.rateLimit.wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = body.open()
	}
	request, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	request.Header.Set("Authorization", client.authHeader)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if body != nil {
		request.Header.Set("Content-Type", body.contentType)
		request.ContentLength = body.length
	}
	if method == http.MethodGet {
		if etag := client.etagCache.get(url); etag != "" {
			request.Header.Set("If-None-Match", etag)
		}
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("github: %s %s: %w", method, url, err)
	}
	client.rateLimit.update(response.Header)
	return response, nil
}

func (client *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, result)
}

func (client *Client) post(ctx context.Context, path string, requestBody any, result any) error {
	body, _, err := client.do(ctx, http.MethodPost, path, requestBody)
	if err != nil {
		return err
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

func (client *Client) patch(ctx context.Context, path string, requestBody any, result any) error {
	body, _, err := client.do(ctx, http.MethodPatch, path, requestBody)
	if err != nil {
		return err
	}
	if result != nil {
		return json.Unmarshal(body, result)
	}
	return nil
}

func (client *Client) delete(ctx context.Context, path string) error {
	_, _, err := client.do(ctx, http.MethodDelete, path, nil)
	return err
}

// list creates a PageIterator for a paginated GET endpoint.
func list[T any](client *Client, path string) *PageIterator[T] {
	return &PageIterator[T]{
		client:  client,
		nextURL: client.baseURL + path,
	}
}

func parseAPIError(response *http.Response) *APIError {
	body, _ := netutil.ReadResponse(response.Body)
	return parseAPIErrorFromBody(response.StatusCode, body)
}

func parseAPIErrorFromBody(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Errors           []ValidationError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
		apiError.DocumentationURL = wireError.DocumentationURL
		apiError.Errors = wireError.Errors
	} else {
		apiError.Message = string(body)
	}
	return apiError
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response body reads for the release host
// API client.
//
// API responses are small JSON documents. A body larger than
// MaxResponseSize is reported as ErrResponseTooLarge instead of being
// silently truncated into malformed JSON. Asset uploads and downloads
// stream and do not go through these helpers.
package netutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxResponseSize bounds API response body reads: 32 MB. A full page
// of release assets is well under a megabyte.
const MaxResponseSize int64 = 32 << 20

// ErrResponseTooLarge is returned when a body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// ReadResponse reads an API response body of at most MaxResponseSize
// bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return ReadLimited(body, MaxResponseSize)
}

// ReadLimited reads body, failing with ErrResponseTooLarge if it holds
// more than limit bytes.
func ReadLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, limit)
	}
	return data, nil
}

// DecodeResponse reads an API response body with ReadResponse and
// JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

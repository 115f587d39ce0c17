// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import "sync"

// etagEntry holds the validator and body of one cached GET response.
type etagEntry struct {
	etag string
	body []byte
}

// etagCache maps GET URLs to the last ETag and response body seen for
// them. When a URL is fetched again the client sends If-None-Match with
// the stored ETag. A 304 Not Modified reply is then answered from the
// cached body and does not count against the rate limit, so repeat
// lookups of an unchanged ref or release during a run are free.
//
// Nothing is evicted. The cache lives for the duration of the Client
// and is bounded by the number of distinct URLs one run queries.
type etagCache struct {
	mu      sync.Mutex
	entries map[string]etagEntry
}

func newETagCache() *etagCache {
	return &etagCache{entries: make(map[string]etagEntry)}
}

// get returns the stored ETag for a URL, or "" if the URL has not
// been cached.
func (cache *etagCache) get(url string) string {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	entry, ok := cache.entries[url]
	if !ok {
		return ""
	}
	return entry.etag
}

// body returns the cached response body for a URL, or nil if the URL
// has not been cached.
func (cache *etagCache) body(url string) []byte {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	entry, ok := cache.entries[url]
	if !ok {
		return nil
	}
	return entry.body
}

// put records the ETag and body of a 200 response. Responses without
// an ETag are not cached.
func (cache *etagCache) put(url string, etag string, body []byte) {
	if etag == "" {
		return
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[url] = etagEntry{etag: etag, body: body}
}

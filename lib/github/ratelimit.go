// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bureau-foundation/bureau-release/lib/clock"
)

// rateLimitTracker follows the primary rate limit from the
// X-RateLimit-Remaining and X-RateLimit-Reset headers of each response.
// Before a request goes out the client calls wait: once the remaining
// count reaches zero, further requests sleep until the reset time
// instead of drawing 403s. Release uploads run concurrently across
// targets, so the tracker is shared and guarded by a mutex.
type rateLimitTracker struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	known     bool // set by the first response carrying rate limit headers
	clock     clock.Clock
}

func newRateLimitTracker(clock clock.Clock) *rateLimitTracker {
	return &rateLimitTracker{clock: clock}
}

// update records the rate limit state carried by a response. Called
// after every API response. Responses missing either header, or with
// values that do not parse, leave the tracker unchanged.
func (tracker *rateLimitTracker) update(header http.Header) {
	remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	tracker.remaining = remaining
	tracker.reset = time.Unix(resetUnix, 0)
	tracker.known = true
}

// wait blocks until the rate limit window resets when the tracker
// knows the limit is exhausted. It returns immediately if no limit has
// been seen yet, requests remain, or the reset time has already passed.
// The sleep goes through the tracker's clock, so tests drive it with a
// fake clock.
//
// Returns an error only if ctx is cancelled while waiting.
func (tracker *rateLimitTracker) wait(ctx context.Context) error {
	tracker.mu.Lock()
	if !tracker.known || tracker.remaining > 0 {
		tracker.mu.Unlock()
		return nil
	}

	sleepDuration := tracker.reset.Sub(tracker.clock.Now())
	tracker.mu.Unlock()

	if sleepDuration <= 0 {
		return nil
	}

	select {
	case <-tracker.clock.After(sleepDuration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter computes how long to back off after a rate-limited
// response. Secondary rate limits, which GitHub applies to bursts of
// release asset uploads, send Retry-After in seconds. Primary limits
// send only X-RateLimit-Reset. Returns zero when the response carries
// neither.
func (tracker *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	// Secondary rate limit.
	if retryStr := header.Get("Retry-After"); retryStr != "" {
		if seconds, err := strconv.Atoi(retryStr); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	// Primary rate limit, as a Unix timestamp.
	if resetStr := header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetUnix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			duration := time.Unix(resetUnix, 0).Sub(tracker.clock.Now())
			if duration > 0 {
				return duration
			}
		}
	}

	return 0
}

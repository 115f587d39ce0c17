// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations the release pipeline performs:
// stamping nightly builds with the current UTC date, waiting out
// hosting-API rate limits, and sleeping until the next scheduled
// nightly run. Production code injects Real(); tests inject Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed. If d <= 0 the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time
}

// Sleep blocks until d elapses on clock or ctxDone is closed,
// whichever happens first. Returns false if ctxDone fired.
func Sleep(clock Clock, d time.Duration, ctxDone <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-clock.After(d):
		return true
	case <-ctxDone:
		return false
	}
}

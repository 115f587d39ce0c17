// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Anything in the pipeline that reads the wall clock or waits on it
// takes a Clock: the release-info resolver (nightly date stamps), the
// GitHub client (rate-limit backoff) and the nightly scheduler. Real()
// is the standard library; Fake() is a manually advanced clock for
// tests.
//
// A goroutine waiting on a FakeClock registers a pending waiter. Tests
// call WaitForTimers before Advance so the advance cannot race the
// registration:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go scheduler.Run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(24 * time.Hour)
package clock

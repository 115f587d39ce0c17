// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron computes when nightly releases are due.
//
// A release definition's "schedule" is a five-field cron expression,
// evaluated in UTC:
//
//	minute  hour  day-of-month  month  day-of-week
//	0-59    0-23  1-31          1-12   0-7 (0 and 7 are Sunday)
//
// Fields take values, ranges (1-5), lists (1,3,5), steps (*/15, 1-30/5,
// 10/20) and the wildcard. Months and weekdays may also be named by
// their three-letter English abbreviation (jan, mon). When both day
// fields are restricted a day matches if either does, as in Vixie
// cron.
//
// The descriptors @nightly, @midnight and @daily (00:00 every day),
// @weekly, @monthly and @yearly stand for the usual expressions.
//
// Nightly versions carry the UTC date of the run, so [ParseNightly]
// additionally rejects schedules that can fire more than once in a
// day. [Schedule.NextRun] gives the schedule command the next due
// time, how long to wait for it, and the date stamp that run will
// publish under.
package cron

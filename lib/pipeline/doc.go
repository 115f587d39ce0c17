// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs a release as an explicit dependency graph.
//
// A [Graph] holds named stages and the data dependencies between them.
// The [Scheduler] starts a stage once every predecessor has succeeded
// and runs independent stages concurrently. Stages exchange values
// through a typed [RunContext] rather than the environment.
//
// Failure policy depends on a stage's [Scope]:
//
//   - A failing TargetScope stage skips only its own dependents. Sibling
//     targets keep running.
//   - A failing RunScope stage aborts the run: in-flight stages are
//     cancelled and nothing further starts.
//   - A stage marked ContinueOnError never blocks its dependents.
//
// The [Controller] builds the graph for one of the two release flows
// and reduces the scheduler's result to a [Summary]:
//
//	versioned:  resolve ─► create-release ─┐
//	            cache-keys ─► prefetch ────┴─► build/T ─► package/T ─► upload/T ─► publish
//
//	nightly:    resolve ─► rotate-release ─┐
//	            cache-keys ─► prefetch ────┴─► build/T ─► package/T ─► upload/T
//
// The publish stage is a join barrier over every target's upload. It
// fires at most once, and only when every target uploaded its archive;
// otherwise the run ends with a single [*BarrierError].
package pipeline

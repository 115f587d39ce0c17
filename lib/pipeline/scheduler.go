// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/bureau-release/lib/clock"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
)

// State is a node's execution state.
type State int

const (
	Pending State = iota
	Running
	Succeeded
	Failed
	// Skipped nodes never ran because a predecessor failed or was
	// skipped.
	Skipped
	// Cancelled nodes were stopped, or never started, because the run
	// was aborted.
	Cancelled
)

func (state State) String() string {
	switch state {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// MarshalText encodes the state by name in JSON output.
func (state State) MarshalText() ([]byte, error) {
	return []byte(state.String()), nil
}

// Terminal reports whether the state is final.
func (state State) Terminal() bool {
	return state >= Succeeded
}

// NodeResult is the outcome of one node.
type NodeResult struct {
	Name   string
	Stage  string
	Scope  Scope
	Target *matrix.Target
	State  State

	// Err is set for Failed nodes, and for Cancelled nodes that were
	// running when the run was aborted.
	Err error

	// SkippedBy names the predecessor whose failure skipped this node.
	SkippedBy string

	Started  time.Time
	Duration time.Duration
}

// ErrAborted is the cancellation cause when a RunScope node fails.
var ErrAborted = errors.New("run aborted")

// AbortError is the cause recorded when a RunScope node's failure
// aborts the run.
type AbortError struct {
	Node string
	Err  error
}

func (err *AbortError) Error() string {
	return fmt.Sprintf("run aborted by %s: %v", err.Node, err.Err)
}

func (err *AbortError) Unwrap() []error { return []error{ErrAborted, err.Err} }

// Result is the outcome of a scheduled run.
type Result struct {
	// Nodes holds every node's result in graph insertion order.
	Nodes []NodeResult

	// Aborted is set when the run was cancelled, from outside or by a
	// failing RunScope node. Cause says which.
	Aborted bool
	Cause   error

	byName map[string]int
}

// Node returns the named node's result.
func (result *Result) Node(name string) (NodeResult, bool) {
	index, exists := result.byName[name]
	if !exists {
		return NodeResult{}, false
	}
	return result.Nodes[index], true
}

// Failed returns the Failed nodes in graph order.
func (result *Result) Failed() []NodeResult {
	var failed []NodeResult
	for _, node := range result.Nodes {
		if node.State == Failed {
			failed = append(failed, node)
		}
	}
	return failed
}

// Scheduler runs a graph.
type Scheduler struct {
	// Parallelism bounds how many nodes run at once. Zero or less
	// means unbounded.
	Parallelism int

	Clock  clock.Clock
	Logger *slog.Logger

	// Observer, if set, is called from the scheduling goroutine each
	// time a node reaches a terminal state.
	Observer func(NodeResult)
}

type completion struct {
	index int
	err   error
}

// Run validates graph and executes it to completion. The returned
// error reports an invalid graph only; node failures are in the
// Result.
//
// A node starts once all its predecessors have succeeded, or failed
// with ContinueOnError. When a predecessor fails otherwise, or is
// skipped, the node is skipped. A failing RunScope node cancels the
// context every running node received, and nothing further starts.
// Cancelling ctx does the same. Run returns only after every started
// node has returned.
func (scheduler *Scheduler) Run(ctx context.Context, graph *Graph, rc *RunContext) (*Result, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	now := scheduler.Clock
	if now == nil {
		now = clock.Real()
	}
	logger := scheduler.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	count := len(graph.nodes)
	result := &Result{
		Nodes:  make([]NodeResult, count),
		byName: make(map[string]int, count),
	}
	waiting := make([]int, count)
	var ready []int
	for index, node := range graph.nodes {
		result.Nodes[index] = NodeResult{
			Name:   node.Name,
			Stage:  node.Stage,
			Scope:  node.Scope,
			Target: node.Target,
		}
		result.byName[node.Name] = index
		waiting[index] = len(graph.incoming[index])
		if waiting[index] == 0 {
			ready = append(ready, index)
		}
	}

	finish := func(index int) {
		if scheduler.Observer != nil {
			scheduler.Observer(result.Nodes[index])
		}
	}

	// skip marks every pending descendant of index Skipped.
	var skip func(index int, cause string)
	skip = func(index int, cause string) {
		for _, successor := range graph.outgoing[index] {
			if result.Nodes[successor].State != Pending {
				continue
			}
			result.Nodes[successor].State = Skipped
			result.Nodes[successor].SkippedBy = cause
			logger.Info("stage skipped", "stage", graph.nodes[successor].Name, "after", cause)
			finish(successor)
			skip(successor, cause)
		}
	}

	done := make(chan completion)
	inFlight := 0
	for {
		for len(ready) > 0 && runCtx.Err() == nil &&
			(scheduler.Parallelism <= 0 || inFlight < scheduler.Parallelism) {
			index := ready[0]
			ready = ready[1:]
			node := graph.nodes[index]
			result.Nodes[index].State = Running
			result.Nodes[index].Started = now.Now()
			inFlight++
			logger.Debug("stage started", "stage", node.Name)
			go func() {
				done <- completion{index: index, err: node.Run(runCtx, rc)}
			}()
		}
		if inFlight == 0 {
			break
		}

		completed := <-done
		inFlight--
		index := completed.index
		node := graph.nodes[index]
		nodeResult := &result.Nodes[index]
		nodeResult.Duration = now.Now().Sub(nodeResult.Started)

		switch {
		case completed.err == nil:
			nodeResult.State = Succeeded
			logger.Info("stage succeeded", "stage", node.Name, "duration", nodeResult.Duration)
		case runCtx.Err() != nil:
			// Stopped by an abort that some other node, or the caller,
			// caused.
			nodeResult.State = Cancelled
			nodeResult.Err = completed.err
			logger.Info("stage cancelled", "stage", node.Name, "error", completed.err)
		default:
			nodeResult.State = Failed
			nodeResult.Err = completed.err
			logger.Warn("stage failed",
				"stage", node.Name,
				"scope", node.Scope.String(),
				"continue_on_error", node.ContinueOnError,
				"error", completed.err,
			)
		}
		finish(index)

		satisfied := nodeResult.State == Succeeded || (nodeResult.State == Failed && node.ContinueOnError)
		switch {
		case satisfied:
			for _, successor := range graph.outgoing[index] {
				waiting[successor]--
				if waiting[successor] == 0 && result.Nodes[successor].State == Pending {
					ready = append(ready, successor)
				}
			}
		case nodeResult.State == Failed:
			if node.Scope == RunScope {
				cancel(&AbortError{Node: node.Name, Err: completed.err})
			}
			skip(index, node.Name)
		}
	}

	if runCtx.Err() != nil {
		result.Aborted = true
		result.Cause = context.Cause(runCtx)
		for index := range result.Nodes {
			if result.Nodes[index].State == Pending {
				result.Nodes[index].State = Cancelled
				finish(index)
			}
		}
		logger.Warn("run aborted", "cause", result.Cause)
	}
	return result, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
	"github.com/bureau-foundation/bureau-release/lib/testutil"
)

const timeout = 5 * time.Second

var (
	linux = matrix.Target{OS: "linux", Triple: "x86_64-unknown-linux-gnu", CPU: "generic", Toolchain: "stable"}
	macos = matrix.Target{OS: "macos", Triple: "x86_64-apple-darwin", CPU: "generic", Toolchain: "stable"}
)

func newScheduler() *Scheduler {
	return &Scheduler{Logger: testutil.DiscardLogger()}
}

func runGraph(t *testing.T, ctx context.Context, scheduler *Scheduler, graph *Graph) *Result {
	t.Helper()
	result, err := scheduler.Run(ctx, graph, NewRunContext(releaseinfo.Trigger{}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

func requireState(t *testing.T, result *Result, name string, want State) {
	t.Helper()
	node, found := result.Node(name)
	if !found {
		t.Fatalf("no result for %s", name)
	}
	if node.State != want {
		t.Errorf("%s state = %s, want %s (err %v)", name, node.State, want, node.Err)
	}
}

func TestSchedulerRunsIndependentNodesConcurrently(t *testing.T) {
	t.Parallel()

	// Each node waits for the other to start; a serial scheduler
	// would never finish.
	started := map[string]chan struct{}{"a": make(chan struct{}), "b": make(chan struct{})}
	wait := func(self, other string) func(context.Context, *RunContext) error {
		return func(ctx context.Context, rc *RunContext) error {
			close(started[self])
			select {
			case <-started[other]:
				return nil
			case <-time.After(timeout):
				return errors.New("sibling never started")
			}
		}
	}

	graph := NewGraph()
	graph.AddNode(Node{Name: "a", Scope: RunScope, Run: wait("a", "b")})
	graph.AddNode(Node{Name: "b", Scope: RunScope, Run: wait("b", "a")})

	result := runGraph(t, context.Background(), newScheduler(), graph)
	requireState(t, result, "a", Succeeded)
	requireState(t, result, "b", Succeeded)
}

func TestSchedulerParallelismBound(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	work := func(context.Context, *RunContext) error {
		now := running.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	}
	graph := NewGraph()
	for _, name := range []string{"a", "b", "c", "d"} {
		graph.AddNode(Node{Name: name, Scope: RunScope, Run: work})
	}

	scheduler := newScheduler()
	scheduler.Parallelism = 2
	runGraph(t, context.Background(), scheduler, graph)
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak.Load())
	}
}

func TestSchedulerTargetFailureIsIsolated(t *testing.T) {
	t.Parallel()

	var published atomic.Bool
	graph := NewGraph()
	graph.AddNode(runNode("resolve"))
	graph.AddNode(Node{Name: "publish", Scope: RunScope,
		Run: func(context.Context, *RunContext) error {
			published.Store(true)
			return nil
		}})
	for _, target := range []matrix.Target{linux, macos} {
		run := noop
		if target.OS == "macos" {
			run = func(context.Context, *RunContext) error { return errors.New("linker failed") }
		}
		build, upload := "build/"+target.OS, "upload/"+target.OS
		graph.AddNode(Node{Name: build, Scope: TargetScope, Target: &target, Run: run})
		graph.AddNode(Node{Name: upload, Scope: TargetScope, Target: &target, Run: noop})
		graph.AddEdge("resolve", build)
		graph.AddEdge(build, upload)
		graph.AddEdge(upload, "publish")
	}

	result := runGraph(t, context.Background(), newScheduler(), graph)
	requireState(t, result, "upload/linux", Succeeded)
	requireState(t, result, "build/macos", Failed)
	requireState(t, result, "upload/macos", Skipped)
	requireState(t, result, "publish", Skipped)
	if published.Load() {
		t.Error("publish ran after a target failed")
	}
	if result.Aborted {
		t.Error("target failure aborted the run")
	}
	if node, _ := result.Node("publish"); node.SkippedBy != "build/macos" {
		t.Errorf("publish SkippedBy = %q, want build/macos", node.SkippedBy)
	}
	if failed := result.Failed(); len(failed) != 1 || failed[0].Name != "build/macos" {
		t.Errorf("Failed = %+v", failed)
	}
}

func TestSchedulerContinueOnError(t *testing.T) {
	t.Parallel()

	graph := NewGraph()
	graph.AddNode(Node{Name: "prefetch", Scope: RunScope, ContinueOnError: true,
		Run: func(context.Context, *RunContext) error { return errors.New("registry unreachable") }})
	graph.AddNode(runNode("build"))
	graph.AddEdge("prefetch", "build")

	result := runGraph(t, context.Background(), newScheduler(), graph)
	requireState(t, result, "prefetch", Failed)
	requireState(t, result, "build", Succeeded)
	if result.Aborted {
		t.Error("continue-on-error failure aborted the run")
	}
}

func TestSchedulerRunScopeFailureAborts(t *testing.T) {
	t.Parallel()

	buildStarted := make(chan struct{})
	conflict := errors.New("tag already has a release")

	graph := NewGraph()
	graph.AddNode(Node{Name: "build", Scope: TargetScope, Target: &linux,
		Run: func(ctx context.Context, rc *RunContext) error {
			close(buildStarted)
			<-ctx.Done()
			return ctx.Err()
		}})
	graph.AddNode(Node{Name: "create-release", Scope: RunScope,
		Run: func(ctx context.Context, rc *RunContext) error {
			<-buildStarted
			return conflict
		}})
	graph.AddNode(runNode("publish"))
	graph.AddNode(runNode("upload"))
	graph.AddEdge("build", "upload")
	graph.AddEdge("create-release", "upload")
	graph.AddEdge("upload", "publish")

	result := runGraph(t, context.Background(), newScheduler(), graph)
	if !result.Aborted {
		t.Fatal("run was not aborted")
	}
	var abortError *AbortError
	if !errors.As(result.Cause, &abortError) || abortError.Node != "create-release" {
		t.Errorf("Cause = %v, want *AbortError from create-release", result.Cause)
	}
	if !errors.Is(result.Cause, conflict) || !errors.Is(result.Cause, ErrAborted) {
		t.Errorf("Cause %v does not wrap the failure and ErrAborted", result.Cause)
	}
	requireState(t, result, "create-release", Failed)
	requireState(t, result, "build", Cancelled)
	requireState(t, result, "upload", Skipped)
	requireState(t, result, "publish", Skipped)
}

func TestSchedulerExternalCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var publishRan atomic.Bool

	graph := NewGraph()
	graph.AddNode(Node{Name: "build", Scope: TargetScope, Target: &linux,
		Run: func(ctx context.Context, rc *RunContext) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}})
	graph.AddNode(Node{Name: "publish", Scope: RunScope,
		Run: func(context.Context, *RunContext) error {
			publishRan.Store(true)
			return nil
		}})
	graph.AddEdge("build", "publish")

	result := runGraph(t, ctx, newScheduler(), graph)
	if !result.Aborted || !errors.Is(result.Cause, context.Canceled) {
		t.Errorf("Aborted = %v, Cause = %v", result.Aborted, result.Cause)
	}
	requireState(t, result, "build", Cancelled)
	requireState(t, result, "publish", Cancelled)
	if publishRan.Load() {
		t.Error("publish ran after cancellation")
	}
}

func TestSchedulerObserver(t *testing.T) {
	t.Parallel()

	graph := NewGraph()
	graph.AddNode(runNode("a"))
	graph.AddNode(Node{Name: "b", Scope: TargetScope, Target: &linux,
		Run: func(context.Context, *RunContext) error { return errors.New("boom") }})
	graph.AddNode(Node{Name: "c", Scope: TargetScope, Target: &linux, Run: noop})
	graph.AddEdge("a", "b")
	graph.AddEdge("b", "c")

	var observed []string
	scheduler := newScheduler()
	scheduler.Observer = func(node NodeResult) {
		observed = append(observed, node.Name+"="+node.State.String())
	}
	runGraph(t, context.Background(), scheduler, graph)

	want := []string{"a=succeeded", "b=failed", "c=skipped"}
	if len(observed) != len(want) {
		t.Fatalf("observed %v, want %v", observed, want)
	}
	for index := range want {
		if observed[index] != want[index] {
			t.Errorf("observed[%d] = %q, want %q", index, observed[index], want[index])
		}
	}
}

func TestSchedulerInvalidGraph(t *testing.T) {
	t.Parallel()

	graph := NewGraph()
	graph.AddNode(runNode("a"))
	graph.AddEdge("a", "missing")
	if _, err := newScheduler().Run(context.Background(), graph, NewRunContext(releaseinfo.Trigger{})); !errors.Is(err, ErrInvalidGraph) {
		t.Errorf("Run error = %v, want ErrInvalidGraph", err)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/bureau-release/lib/matrix"
)

// Scope is a stage's failure domain.
type Scope int

const (
	// RunScope stages serve the whole run. Their failure aborts it.
	RunScope Scope = iota
	// TargetScope stages serve one matrix target. Their failure is
	// isolated to that target.
	TargetScope
)

func (scope Scope) String() string {
	switch scope {
	case RunScope:
		return "run"
	case TargetScope:
		return "target"
	default:
		return fmt.Sprintf("Scope(%d)", int(scope))
	}
}

// Node is one stage of a run.
type Node struct {
	// Name is unique within the graph, e.g. "build/linux-x86_64-...".
	Name string

	// Stage is the kind of work, e.g. "build". Several nodes share a
	// stage; summaries group by it.
	Stage string

	Scope Scope

	// Target is set for TargetScope nodes.
	Target *matrix.Target

	// ContinueOnError makes a failure count as satisfied for the
	// node's dependents.
	ContinueOnError bool

	Run func(ctx context.Context, rc *RunContext) error
}

// ErrInvalidGraph wraps every structural problem Validate reports.
var ErrInvalidGraph = errors.New("invalid pipeline graph")

// CycleError reports a dependency cycle. Path starts and ends with the
// same node.
type CycleError struct {
	Path []string
}

func (err *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(err.Path, " -> ")
}

func (err *CycleError) Unwrap() error { return ErrInvalidGraph }

// Graph is a dependency graph of stages. Build it with AddNode and
// AddEdge, then Validate. A Graph is not safe for concurrent mutation;
// once validated it is only read.
type Graph struct {
	nodes  []*Node
	byName map[string]int
	edges  [][2]string
	issues []string

	// Filled by Validate, indexed like nodes.
	outgoing [][]int
	incoming [][]int
	valid    bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{byName: make(map[string]int)}
}

// AddNode adds a stage. Problems are reported by Validate.
func (graph *Graph) AddNode(node Node) {
	graph.valid = false
	if node.Name == "" {
		graph.issues = append(graph.issues, fmt.Sprintf("node %d has no name", len(graph.nodes)))
		return
	}
	if _, exists := graph.byName[node.Name]; exists {
		graph.issues = append(graph.issues, fmt.Sprintf("duplicate node %q", node.Name))
		return
	}
	if node.Run == nil {
		graph.issues = append(graph.issues, fmt.Sprintf("node %q has no run function", node.Name))
	}
	if node.Scope == TargetScope && node.Target == nil {
		graph.issues = append(graph.issues, fmt.Sprintf("target-scoped node %q has no target", node.Name))
	}
	graph.byName[node.Name] = len(graph.nodes)
	graph.nodes = append(graph.nodes, &node)
}

// AddEdge declares that to depends on from.
func (graph *Graph) AddEdge(from, to string) {
	graph.valid = false
	graph.edges = append(graph.edges, [2]string{from, to})
}

// Len is the number of nodes.
func (graph *Graph) Len() int { return len(graph.nodes) }

// Node returns the named node.
func (graph *Graph) Node(name string) (Node, bool) {
	index, exists := graph.byName[name]
	if !exists {
		return Node{}, false
	}
	return *graph.nodes[index], true
}

// Nodes returns every node in insertion order.
func (graph *Graph) Nodes() []Node {
	nodes := make([]Node, len(graph.nodes))
	for index, node := range graph.nodes {
		nodes[index] = *node
	}
	return nodes
}

// Predecessors returns the names of the nodes name depends on, in
// insertion order. Only meaningful after Validate.
func (graph *Graph) Predecessors(name string) []string {
	index, exists := graph.byName[name]
	if !exists || !graph.valid {
		return nil
	}
	names := make([]string, len(graph.incoming[index]))
	for position, predecessor := range graph.incoming[index] {
		names[position] = graph.nodes[predecessor].Name
	}
	return names
}

// Validate checks the graph: names unique and present, every edge
// between known nodes, no self loops or duplicate edges, and no
// cycles. All problems but a cycle are reported together; a cycle is
// reported as a *CycleError with one witness path.
func (graph *Graph) Validate() error {
	issues := append([]string(nil), graph.issues...)

	outgoing := make([][]int, len(graph.nodes))
	incoming := make([][]int, len(graph.nodes))
	seen := make(map[[2]int]bool, len(graph.edges))
	for _, edge := range graph.edges {
		from, fromExists := graph.byName[edge[0]]
		to, toExists := graph.byName[edge[1]]
		switch {
		case !fromExists:
			issues = append(issues, fmt.Sprintf("edge %q -> %q: unknown node %q", edge[0], edge[1], edge[0]))
			continue
		case !toExists:
			issues = append(issues, fmt.Sprintf("edge %q -> %q: unknown node %q", edge[0], edge[1], edge[1]))
			continue
		case from == to:
			issues = append(issues, fmt.Sprintf("edge %q -> %q: self loop", edge[0], edge[1]))
			continue
		}
		pair := [2]int{from, to}
		if seen[pair] {
			issues = append(issues, fmt.Sprintf("edge %q -> %q: duplicate", edge[0], edge[1]))
			continue
		}
		seen[pair] = true
		outgoing[from] = append(outgoing[from], to)
		incoming[to] = append(incoming[to], from)
	}

	if len(issues) > 0 {
		errs := make([]error, len(issues))
		for index, issue := range issues {
			errs[index] = fmt.Errorf("%w: %s", ErrInvalidGraph, issue)
		}
		return errors.Join(errs...)
	}

	graph.outgoing = outgoing
	graph.incoming = incoming
	if order := graph.topologicalOrder(); len(order) != len(graph.nodes) {
		return &CycleError{Path: graph.findCycle()}
	}
	graph.valid = true
	return nil
}

// Order returns the node names in a topological order, ties broken by
// insertion order. Only meaningful after Validate.
func (graph *Graph) Order() []string {
	if !graph.valid {
		return nil
	}
	order := graph.topologicalOrder()
	names := make([]string, len(order))
	for position, index := range order {
		names[position] = graph.nodes[index].Name
	}
	return names
}

// indexHeap is a min-heap of node indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

// topologicalOrder is Kahn's algorithm. A result shorter than the node
// count means the remainder sits on or behind a cycle.
func (graph *Graph) topologicalOrder() []int {
	indegree := make([]int, len(graph.nodes))
	for index := range graph.nodes {
		indegree[index] = len(graph.incoming[index])
	}

	ready := &indexHeap{}
	for index, degree := range indegree {
		if degree == 0 {
			heap.Push(ready, index)
		}
	}

	order := make([]int, 0, len(graph.nodes))
	for ready.Len() > 0 {
		index := heap.Pop(ready).(int)
		order = append(order, index)
		for _, successor := range graph.outgoing[index] {
			indegree[successor]--
			if indegree[successor] == 0 {
				heap.Push(ready, successor)
			}
		}
	}
	return order
}

// findCycle returns one cycle as node names, first and last equal.
func (graph *Graph) findCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	color := make([]int, len(graph.nodes))
	parent := make([]int, len(graph.nodes))
	var cycle []int

	var visit func(index int) bool
	visit = func(index int) bool {
		color[index] = visiting
		for _, successor := range graph.outgoing[index] {
			switch color[successor] {
			case unvisited:
				parent[successor] = index
				if visit(successor) {
					return true
				}
			case visiting:
				// Back edge index -> successor closes the cycle.
				cycle = []int{successor}
				for current := index; current != successor; current = parent[current] {
					cycle = append(cycle, current)
				}
				cycle = append(cycle, successor)
				return true
			}
		}
		color[index] = done
		return false
	}

	for index := range graph.nodes {
		if color[index] == unvisited && visit(index) {
			break
		}
	}

	// cycle was collected walking parents backwards.
	names := make([]string, len(cycle))
	for position, index := range cycle {
		names[len(cycle)-1-position] = graph.nodes[index].Name
	}
	return names
}

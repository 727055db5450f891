// Package graph implements the Dependency Graph (§4.4): cycle
// detection, deterministic topological sort, and weakly-connected
// group partitioning over a rig's handle dependency map.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/slipwayhq/slipway/pkg/primitives"
)

// Edges maps each handle to the set of handles it depends on (an edge
// source → dest meaning "source reads dest's output").
type Edges map[primitives.Handle]map[primitives.Handle]struct{}

// CycleError reports a detected cycle, with the path reconstructed in
// the order it was walked (§4.4, §8 scenario 4).
type CycleError struct {
	Path []primitives.Handle
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, h := range e.Path {
		names[i] = h.String()
	}
	return fmt.Sprintf("Cycle detected in the graph: %s", strings.Join(names, " -> "))
}

func sortedHandles(edges Edges) []primitives.Handle {
	handles := make([]primitives.Handle, 0, len(edges))
	for h := range edges {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

func sortedNeighbors(set map[primitives.Handle]struct{}) []primitives.Handle {
	out := make([]primitives.Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DetectCycle runs an iterative DFS over nodes in sorted order with an
// explicit recursion stack, returning the first cycle found. Performed
// before the topological sort, per §4.4.
func DetectCycle(edges Edges) *CycleError {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[primitives.Handle]int, len(edges))

	type frame struct {
		handle primitives.Handle
		neighbors []primitives.Handle
		idx       int
	}

	for _, start := range sortedHandles(edges) {
		if state[start] != unvisited {
			continue
		}

		var stack []frame
		stack = append(stack, frame{handle: start, neighbors: sortedNeighbors(edges[start])})
		state[start] = visiting

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.idx >= len(top.neighbors) {
				state[top.handle] = done
				stack = stack[:len(stack)-1]
				continue
			}

			next := top.neighbors[top.idx]
			top.idx++

			switch state[next] {
			case unvisited:
				state[next] = visiting
				stack = append(stack, frame{handle: next, neighbors: sortedNeighbors(edges[next])})
			case visiting:
				path := make([]primitives.Handle, 0, len(stack)+1)
				for _, f := range stack {
					path = append(path, f.handle)
				}
				path = append(path, next)
				return &CycleError{Path: path}
			case done:
				// already fully explored, no cycle through it
			}
		}
	}
	return nil
}

// TopologicalSort runs Kahn's algorithm with a FIFO queue seeded from
// zero-in-degree nodes in sorted order, draining neighbours in sorted
// order, producing the deterministic canonical execution order (§4.4).
//
// Callers must run DetectCycle first; TopologicalSort assumes an acyclic
// graph and will silently omit any node that never reaches zero in-degree.
func TopologicalSort(edges Edges) []primitives.Handle {
	inDegree := make(map[primitives.Handle]int, len(edges))
	reverse := make(Edges, len(edges))
	for h := range edges {
		inDegree[h] = 0
		reverse[h] = map[primitives.Handle]struct{}{}
	}
	for src, deps := range edges {
		for dep := range deps {
			// edge dep -> src in the "must run before" sense: src depends
			// on dep, so dep must be ordered before src.
			inDegree[src]++
			reverse[dep][src] = struct{}{}
		}
	}

	var queue []primitives.Handle
	for _, h := range sortedHandles(edges) {
		if inDegree[h] == 0 {
			queue = append(queue, h)
		}
	}

	var order []primitives.Handle
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		order = append(order, h)

		for _, next := range sortedNeighbors(reverse[h]) {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return order
}

// WeaklyConnectedGroups partitions the graph into weakly-connected
// components via BFS over the undirected projection, discovering nodes
// in sorted order, producing a deterministic group order (§4.4).
func WeaklyConnectedGroups(edges Edges) [][]primitives.Handle {
	undirected := make(Edges, len(edges))
	for h := range edges {
		undirected[h] = map[primitives.Handle]struct{}{}
	}
	for src, deps := range edges {
		for dep := range deps {
			undirected[src][dep] = struct{}{}
			if undirected[dep] == nil {
				undirected[dep] = map[primitives.Handle]struct{}{}
			}
			undirected[dep][src] = struct{}{}
		}
	}

	visited := make(map[primitives.Handle]bool, len(undirected))
	var groups [][]primitives.Handle

	for _, start := range sortedHandles(undirected) {
		if visited[start] {
			continue
		}
		var group []primitives.Handle
		queue := []primitives.Handle{start}
		visited[start] = true
		for len(queue) > 0 {
			h := queue[0]
			queue = queue[1:]
			group = append(group, h)
			for _, n := range sortedNeighbors(undirected[h]) {
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		groups = append(groups, group)
	}

	return groups
}

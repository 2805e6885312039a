// Package dag provides a directed acyclic graph store for reasoning nodes.
package dag

import (
	"errors"
	"sort"
	"sync"
)

// ErrCycleDetected indicates an edge was rejected because it would create a cycle.
var ErrCycleDetected = errors.New("circular dependency detected")

// DAG is a directed acyclic graph over string node IDs.
// Acyclicity is enforced at mutation time: an edge that would introduce a
// cycle is rejected before any state changes, never repaired after the fact.
type DAG struct {
	mu sync.RWMutex
	// nodes is the set of known node IDs.
	nodes map[string]bool
	// successors maps a node to the set of nodes it points to.
	successors map[string]map[string]bool
	// predecessors maps a node to the set of nodes pointing to it.
	predecessors map[string]map[string]bool
}

// New creates a new empty DAG.
func New() *DAG {
	return &DAG{
		nodes:        make(map[string]bool),
		successors:   make(map[string]map[string]bool),
		predecessors: make(map[string]map[string]bool),
	}
}

// AddNode registers a node ID. Returns false without mutating if the ID is
// already present.
func (d *DAG) AddNode(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.nodes[id] {
		return false
	}
	d.nodes[id] = true
	d.successors[id] = make(map[string]bool)
	d.predecessors[id] = make(map[string]bool)
	return true
}

// AddEdge adds a directed edge from one node to another.
// Returns false if either node is missing, the edge already exists, or
// accepting the edge would create a cycle. The graph is unchanged on failure.
func (d *DAG) AddEdge(fromID, toID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.nodes[fromID] || !d.nodes[toID] {
		return false
	}
	if d.successors[fromID][toID] {
		return false
	}
	// A self edge is the smallest cycle.
	if fromID == toID {
		return false
	}
	// The edge from->to closes a cycle iff from is already reachable from to.
	if d.reachableLocked(toID, fromID) {
		return false
	}

	d.successors[fromID][toID] = true
	d.predecessors[toID][fromID] = true
	return true
}

// reachableLocked reports whether target is reachable from start by
// following successor edges. Assumes the lock is held.
func (d *DAG) reachableLocked(start, target string) bool {
	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == target {
			return true
		}
		for next := range d.successors[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// RemoveEdge removes the edge between two nodes.
// Returns false if the edge does not exist.
func (d *DAG) RemoveEdge(fromID, toID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.successors[fromID][toID] {
		return false
	}
	delete(d.successors[fromID], toID)
	delete(d.predecessors[toID], fromID)
	return true
}

// HasNode returns true if the node ID is registered.
func (d *DAG) HasNode(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nodes[id]
}

// HasEdge returns true if the edge exists.
func (d *DAG) HasEdge(fromID, toID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.successors[fromID][toID]
}

// Successors returns the IDs of nodes the given node points to, sorted.
func (d *DAG) Successors(id string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedKeys(d.successors[id])
}

// Predecessors returns the IDs of nodes pointing to the given node, sorted.
func (d *DAG) Predecessors(id string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedKeys(d.predecessors[id])
}

// RootNodes returns all nodes with no predecessors, sorted.
func (d *DAG) RootNodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var roots []string
	for id := range d.nodes {
		if len(d.predecessors[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// LeafNodes returns all nodes with no successors, sorted.
func (d *DAG) LeafNodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var leaves []string
	for id := range d.nodes {
		if len(d.successors[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// NodeCount returns the number of registered nodes.
func (d *DAG) NodeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// EdgeCount returns the number of edges.
func (d *DAG) EdgeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, succ := range d.successors {
		count += len(succ)
	}
	return count
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

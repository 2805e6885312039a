package scheduler

import (
	"sync"

	"github.com/kestrel-ai/noesis/pkg/models"
)

// ReadyFunc reports whether a node's dependencies are satisfied.
// The engine injects its readiness predicate when constructing a Scheduler.
type ReadyFunc func(node *models.GoTNode) bool

// Scheduler orders ready nodes by priority for a single reasoning session.
// Nodes whose dependencies are unmet are buffered until ReschedulePending
// promotes them. Lower priority values are more urgent; ties are broken by
// insertion order. One Scheduler serves exactly one engine and is mutated
// only from the engine's orchestration loop, but operations take a mutex so
// instrumentation can read counts concurrently.
type Scheduler struct {
	mu sync.Mutex
	// heap orders ready nodes by priority.
	heap *Heap[*models.GoTNode]
	// handles maps node IDs to their heap positions for reprioritization.
	handles map[string]*Item[*models.GoTNode]
	// buffered holds nodes whose dependencies are not yet satisfied.
	buffered map[string]*models.GoTNode
	// ready is the dependency-readiness predicate.
	ready ReadyFunc
}

// New creates a Scheduler with the given readiness predicate.
// A nil predicate treats every node as ready.
func New(ready ReadyFunc) *Scheduler {
	if ready == nil {
		ready = func(*models.GoTNode) bool { return true }
	}
	return &Scheduler{
		heap:     NewHeap[*models.GoTNode](),
		handles:  make(map[string]*Item[*models.GoTNode]),
		buffered: make(map[string]*models.GoTNode),
		ready:    ready,
	}
}

// AddTask queues a node. If the node is ready it enters the priority heap
// and true is returned; otherwise it is buffered and false is returned.
// A node already queued or buffered is ignored (returns false).
func (s *Scheduler) AddTask(node *models.GoTNode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, queued := s.handles[node.ID]; queued {
		return false
	}
	if _, waiting := s.buffered[node.ID]; waiting {
		return false
	}

	if s.ready(node) {
		s.handles[node.ID] = s.heap.Insert(node.Priority, node)
		return true
	}
	s.buffered[node.ID] = node
	return false
}

// ReschedulePending promotes buffered nodes that have become ready.
// Returns the IDs of the promoted nodes.
func (s *Scheduler) ReschedulePending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var promoted []string
	for id, node := range s.buffered {
		if !s.ready(node) {
			continue
		}
		s.handles[id] = s.heap.Insert(node.Priority, node)
		delete(s.buffered, id)
		promoted = append(promoted, id)
	}
	return promoted
}

// NextTask extracts and returns the most urgent ready node.
// Returns nil, false when no ready node is queued.
func (s *Scheduler) NextTask() (*models.GoTNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.heap.ExtractMin()
	if it == nil {
		return nil, false
	}
	node := it.Value()
	delete(s.handles, node.ID)
	return node, true
}

// Prioritize changes the priority of a queued node. Lowering the value uses
// the heap's decrease-key; raising it extracts and reinserts. Buffered nodes
// just take the new priority for when they are promoted. Returns false if
// the node is unknown to the scheduler.
func (s *Scheduler) Prioritize(nodeID string, priority float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node, waiting := s.buffered[nodeID]; waiting {
		node.Priority = priority
		return true
	}

	it, queued := s.handles[nodeID]
	if !queued {
		return false
	}
	node := it.Value()
	node.Priority = priority

	if err := s.heap.DecreaseKey(it, priority); err != nil {
		// Raising urgency downward is cheap; raising the key needs a reinsert.
		removed := s.removeLocked(it)
		s.handles[nodeID] = s.heap.Insert(priority, removed)
	}
	return true
}

// removeLocked deletes an arbitrary item by decreasing it below every
// possible key and extracting it. Assumes the lock is held.
func (s *Scheduler) removeLocked(it *Item[*models.GoTNode]) *models.GoTNode {
	_ = s.heap.DecreaseKey(it, -1.0e308)
	min := s.heap.ExtractMin()
	return min.Value()
}

// IsEmpty returns true if no ready node is queued.
// Buffered nodes do not count; they are not extractable yet.
func (s *Scheduler) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.IsEmpty()
}

// Size returns the number of ready nodes queued in the heap.
func (s *Scheduler) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Size()
}

// BufferedCount returns the number of nodes waiting on dependencies.
func (s *Scheduler) BufferedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffered)
}

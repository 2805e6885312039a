package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-ai/noesis/internal/contentstore"
	"github.com/kestrel-ai/noesis/internal/dag"
	"github.com/kestrel-ai/noesis/internal/decompose"
	"github.com/kestrel-ai/noesis/internal/delegate"
	"github.com/kestrel-ai/noesis/internal/reasoner"
	"github.com/kestrel-ai/noesis/internal/scheduler"
	"github.com/kestrel-ai/noesis/pkg/models"
)

// defaultPriority is assigned to nodes created without an explicit priority.
// Lower values are more urgent.
const defaultPriority = 5.0

// Engine drives one graph-of-thought reasoning session. It exclusively owns
// its DAG, its scheduler, and its node table; all mutation is funneled
// through the single ProcessQuery loop even when the work a node represents
// runs elsewhere. Construct one Engine per session with New; there is no
// shared instance.
type Engine struct {
	dag       *dag.DAG
	sched     *scheduler.Scheduler
	reasoner  reasoner.Reasoner
	strategy  decompose.Strategy
	processor Processor
	store     contentstore.Store
	delegator *delegate.Delegator
	pool      *delegate.Pool
	logger    *DebugLogger
	emitter   *EventEmitter

	// maxRetries is how many times a failed node is reset to pending and
	// requeued before its failure sticks. Zero by default; retry policy is
	// the composition root's call.
	maxRetries int

	mu     sync.RWMutex
	graphs map[string]*models.Graph
	nodes  map[string]*models.GoTNode
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches a content store for PersistGraph.
func WithStore(store contentstore.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithDelegator attaches a worker registry for task-node delegation.
func WithDelegator(d *delegate.Delegator) Option {
	return func(e *Engine) { e.delegator = d }
}

// WithPool attaches a local worker pool for executing delegated task nodes.
func WithPool(p *delegate.Pool) Option {
	return func(e *Engine) { e.pool = p }
}

// WithStrategy overrides the decomposition parsing strategy.
func WithStrategy(s decompose.Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithProcessor overrides how individual nodes are processed.
func WithProcessor(p Processor) Option {
	return func(e *Engine) { e.processor = p }
}

// WithMaxRetries enables automatic requeueing of failed nodes, up to n
// attempts beyond the first.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

// WithLogger attaches a debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine for a single reasoning session.
func New(r reasoner.Reasoner, opts ...Option) *Engine {
	e := &Engine{
		dag:      dag.New(),
		reasoner: r,
		strategy: decompose.Default(),
		logger:   NopLogger(),
		emitter:  NewEventEmitter(100),
		graphs:   make(map[string]*models.Graph),
		nodes:    make(map[string]*models.GoTNode),
	}
	e.sched = scheduler.New(e.nodeReady)

	for _, opt := range opts {
		opt(e)
	}
	if e.processor == nil {
		e.processor = &reasonerProcessor{reasoner: r}
	}
	return e
}

// Events returns the engine's event stream.
func (e *Engine) Events() <-chan Event {
	return e.emitter.Events()
}

// Close ends the event stream once the session and any persistence are
// finished. Subscribers ranging over Events drain the buffer and terminate.
// Idempotent; no engine method may emit after Close.
func (e *Engine) Close() {
	e.emitter.Close()
}

// CreateGraph creates an empty reasoning graph and returns it.
func (e *Engine) CreateGraph() *models.Graph {
	g := &models.Graph{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}

	e.mu.Lock()
	e.graphs[g.ID] = g
	e.mu.Unlock()

	e.emitter.Emit(Event{Type: EventGraphCreated, GraphID: g.ID, Timestamp: time.Now()})
	return g
}

// NodeSpec describes a node to create.
type NodeSpec struct {
	// Type classifies the node.
	Type models.NodeType
	// Content is the node's problem statement or instruction.
	Content string
	// ParentIDs are existing nodes this node depends on.
	ParentIDs []string
	// Priority orders scheduling (lower = more urgent). Nil uses the default.
	Priority *float64
	// Requires lists worker capabilities for task nodes.
	Requires []string
}

// CreateNode creates a node in a graph, linking parent/child sets on the
// node objects and mirroring the edges into the DAG.
func (e *Engine) CreateNode(graphID string, spec NodeSpec) (*models.GoTNode, error) {
	priority := defaultPriority
	if spec.Priority != nil {
		priority = *spec.Priority
	}

	e.mu.Lock()
	g, ok := e.graphs[graphID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrGraphNotFound
	}
	for _, pid := range spec.ParentIDs {
		if _, ok := e.nodes[pid]; !ok {
			e.mu.Unlock()
			return nil, ErrNodeNotFound
		}
	}

	node := &models.GoTNode{
		ID:       uuid.New().String(),
		Content:  spec.Content,
		Type:     spec.Type,
		Status:   models.NodeStatusPending,
		Priority: priority,
		Requires: spec.Requires,
		Metadata: models.NodeMetadata{CreatedAt: time.Now()},
	}

	e.dag.AddNode(node.ID)
	for _, pid := range spec.ParentIDs {
		// Parents already exist and the node is new, so no edge can cycle.
		e.dag.AddEdge(pid, node.ID)
		node.ParentIDs = append(node.ParentIDs, pid)
		parent := e.nodes[pid]
		parent.ChildIDs = append(parent.ChildIDs, node.ID)
	}

	e.nodes[node.ID] = node
	g.NodeIDs = append(g.NodeIDs, node.ID)
	e.mu.Unlock()

	e.emitter.Emit(Event{Type: EventNodeCreated, GraphID: graphID, NodeID: node.ID, Timestamp: time.Now()})
	return node, nil
}

// GetNode returns the node for an ID.
func (e *Engine) GetNode(nodeID string) (*models.GoTNode, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.nodes[nodeID]
	return n, ok
}

// GraphNodes returns a graph's nodes in creation order.
func (e *Engine) GraphNodes(graphID string) ([]*models.GoTNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	g, ok := e.graphs[graphID]
	if !ok {
		return nil, ErrGraphNotFound
	}
	nodes := make([]*models.GoTNode, 0, len(g.NodeIDs))
	for _, id := range g.NodeIDs {
		nodes = append(nodes, e.nodes[id])
	}
	return nodes, nil
}

// NodesByType returns a graph's nodes of the given type, in creation order.
func (e *Engine) NodesByType(graphID string, nodeType models.NodeType) ([]*models.GoTNode, error) {
	nodes, err := e.GraphNodes(graphID)
	if err != nil {
		return nil, err
	}
	var out []*models.GoTNode
	for _, n := range nodes {
		if n.Type == nodeType {
			out = append(out, n)
		}
	}
	return out, nil
}

// UpdateNodeStatus moves a node to a new status, stamping timing metadata.
// Returns false if the node is unknown or the transition is not allowed
// (statuses only move forward; a retry reset to pending is the exception).
func (e *Engine) UpdateNodeStatus(nodeID string, status models.NodeStatus) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	node, ok := e.nodes[nodeID]
	if !ok {
		return false
	}
	if !node.Status.CanTransition(status) {
		return false
	}

	node.Status = status
	now := time.Now()
	switch {
	case status == models.NodeStatusInProgress:
		node.Metadata.StartedAt = &now
	case status.Terminal():
		node.Metadata.CompletedAt = &now
	case status == models.NodeStatusPending:
		// Retry reset.
		node.Metadata.RetryCount++
		node.Metadata.StartedAt = nil
		node.Metadata.CompletedAt = nil
		node.Result = ""
		node.Error = ""
	}
	return true
}

// AddEdge links two existing nodes, mirroring the DAG edge into the node
// parent/child sets. Fails with ErrEdgeRejected if the edge is a duplicate
// or would create a cycle; the graph is unchanged on failure.
func (e *Engine) AddEdge(parentID, childID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	parent, ok := e.nodes[parentID]
	if !ok {
		return ErrNodeNotFound
	}
	child, ok := e.nodes[childID]
	if !ok {
		return ErrNodeNotFound
	}

	if !e.dag.AddEdge(parentID, childID) {
		return ErrEdgeRejected
	}
	parent.ChildIDs = append(parent.ChildIDs, childID)
	child.ParentIDs = append(child.ParentIDs, parentID)
	return nil
}

// RemoveEdge unlinks two nodes. Returns false if no such edge exists.
func (e *Engine) RemoveEdge(parentID, childID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dag.RemoveEdge(parentID, childID) {
		return false
	}
	parent := e.nodes[parentID]
	child := e.nodes[childID]
	parent.ChildIDs = removeID(parent.ChildIDs, childID)
	child.ParentIDs = removeID(child.ParentIDs, parentID)
	return true
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// RootNodes returns a graph's nodes with no parents, in creation order.
func (e *Engine) RootNodes(graphID string) ([]*models.GoTNode, error) {
	nodes, err := e.GraphNodes(graphID)
	if err != nil {
		return nil, err
	}
	var roots []*models.GoTNode
	for _, n := range nodes {
		if len(n.ParentIDs) == 0 {
			roots = append(roots, n)
		}
	}
	return roots, nil
}

// LeafNodes returns a graph's nodes with no children, in creation order.
func (e *Engine) LeafNodes(graphID string) ([]*models.GoTNode, error) {
	nodes, err := e.GraphNodes(graphID)
	if err != nil {
		return nil, err
	}
	var leaves []*models.GoTNode
	for _, n := range nodes {
		if len(n.ChildIDs) == 0 {
			leaves = append(leaves, n)
		}
	}
	return leaves, nil
}

// ParentNodes returns the nodes a node depends on.
func (e *Engine) ParentNodes(nodeID string) ([]*models.GoTNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	node, ok := e.nodes[nodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	parents := make([]*models.GoTNode, 0, len(node.ParentIDs))
	for _, pid := range node.ParentIDs {
		parents = append(parents, e.nodes[pid])
	}
	return parents, nil
}

// ChildNodes returns the nodes depending on a node.
func (e *Engine) ChildNodes(nodeID string) ([]*models.GoTNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	node, ok := e.nodes[nodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	children := make([]*models.GoTNode, 0, len(node.ChildIDs))
	for _, cid := range node.ChildIDs {
		children = append(children, e.nodes[cid])
	}
	return children, nil
}

// AllParentsCompleted returns true if every parent of the node completed
// successfully. Vacuously true for nodes with no parents; false for unknown IDs.
func (e *Engine) AllParentsCompleted(nodeID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.allParentsCompletedLocked(nodeID)
}

func (e *Engine) allParentsCompletedLocked(nodeID string) bool {
	node, ok := e.nodes[nodeID]
	if !ok {
		return false
	}
	for _, pid := range node.ParentIDs {
		parent, ok := e.nodes[pid]
		if !ok || parent.Status != models.NodeStatusCompletedSuccess {
			return false
		}
	}
	return true
}

// ReadyNodes returns the graph's pending nodes whose parents have all
// completed successfully, ordered by priority then creation.
func (e *Engine) ReadyNodes(graphID string) ([]*models.GoTNode, error) {
	e.mu.RLock()
	g, ok := e.graphs[graphID]
	if !ok {
		e.mu.RUnlock()
		return nil, ErrGraphNotFound
	}

	var ready []*models.GoTNode
	for _, id := range g.NodeIDs {
		n := e.nodes[id]
		if n.Status != models.NodeStatusPending {
			continue
		}
		if e.allParentsCompletedLocked(id) {
			ready = append(ready, n)
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Priority < ready[j].Priority
	})
	return ready, nil
}

// nodeReady is the scheduler's readiness predicate.
func (e *Engine) nodeReady(node *models.GoTNode) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	current, ok := e.nodes[node.ID]
	if !ok || current.Status != models.NodeStatusPending {
		return false
	}
	return e.allParentsCompletedLocked(node.ID)
}

// UnresolvedCount returns the number of graph nodes that still need
// processing (pending, scheduled, or in progress).
func (e *Engine) UnresolvedCount(graphID string) (int, error) {
	nodes, err := e.GraphNodes(graphID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range nodes {
		if n.Unresolved() {
			count++
		}
	}
	return count, nil
}

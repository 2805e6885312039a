package models

import "time"

// NodeType classifies the role a node plays in a reasoning graph.
type NodeType string

const (
	// NodeTypeQuestion is the root problem statement for a session.
	NodeTypeQuestion NodeType = "question"
	// NodeTypeDecomposition is a sub-problem produced by breaking down a parent.
	NodeTypeDecomposition NodeType = "decomposition"
	// NodeTypeAnalysis examines one aspect of the problem in depth.
	NodeTypeAnalysis NodeType = "analysis"
	// NodeTypeResearch gathers supporting information.
	NodeTypeResearch NodeType = "research"
	// NodeTypeHypothesis is a candidate explanation to be tested.
	NodeTypeHypothesis NodeType = "hypothesis"
	// NodeTypeSynthesis combines results from multiple nodes.
	NodeTypeSynthesis NodeType = "synthesis"
	// NodeTypeTask is concrete work delegated to a capability-matched worker.
	NodeTypeTask NodeType = "task"
	// NodeTypeAnswer is the final answer for the session.
	NodeTypeAnswer NodeType = "answer"
)

// Valid returns true if the type is a known value.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeQuestion, NodeTypeDecomposition, NodeTypeAnalysis, NodeTypeResearch,
		NodeTypeHypothesis, NodeTypeSynthesis, NodeTypeTask, NodeTypeAnswer:
		return true
	default:
		return false
	}
}

// NodeStatus represents the current state of a node.
type NodeStatus string

const (
	// NodeStatusPending indicates the node has not been scheduled yet.
	NodeStatusPending NodeStatus = "pending"
	// NodeStatusScheduled indicates the node is queued for execution.
	NodeStatusScheduled NodeStatus = "scheduled"
	// NodeStatusInProgress indicates the node is being processed.
	NodeStatusInProgress NodeStatus = "in_progress"
	// NodeStatusCompletedSuccess indicates processing finished successfully.
	NodeStatusCompletedSuccess NodeStatus = "completed_success"
	// NodeStatusCompletedFailure indicates processing failed.
	NodeStatusCompletedFailure NodeStatus = "completed_failure"
	// NodeStatusCancelled indicates the node was cancelled before completion.
	NodeStatusCancelled NodeStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusPending, NodeStatusScheduled, NodeStatusInProgress,
		NodeStatusCompletedSuccess, NodeStatusCompletedFailure, NodeStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state.
func (s NodeStatus) Terminal() bool {
	switch s {
	case NodeStatusCompletedSuccess, NodeStatusCompletedFailure, NodeStatusCancelled:
		return true
	default:
		return false
	}
}

// rank orders statuses along the forward-only lifecycle.
// Terminal states share a rank: a node moves to exactly one of them.
func (s NodeStatus) rank() int {
	switch s {
	case NodeStatusPending:
		return 0
	case NodeStatusScheduled:
		return 1
	case NodeStatusInProgress:
		return 2
	case NodeStatusCompletedSuccess, NodeStatusCompletedFailure, NodeStatusCancelled:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether a status change is allowed.
// Statuses only move forward through the lifecycle, with one exception:
// a retry may reset a terminal node back to pending.
func (s NodeStatus) CanTransition(to NodeStatus) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	if s == to {
		return false
	}
	if to == NodeStatusPending {
		// Retry reset.
		return s.Terminal()
	}
	return to.rank() > s.rank()
}

// NodeMetadata holds timing and bookkeeping data for a node.
type NodeMetadata struct {
	// CreatedAt is when the node was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when processing began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when processing finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Confidence is the reasoner's confidence in the result, in [0,1].
	Confidence *float64 `json:"confidence,omitempty"`
	// RetryCount is the number of times this node has been reset to pending
	// after a failure.
	RetryCount int `json:"retry_count,omitempty"`
	// Complexity is an optional estimate of computational cost.
	Complexity float64 `json:"complexity,omitempty"`
}

// StorageRefs holds content identifiers for externally stored payloads.
type StorageRefs struct {
	// InstructionsCID references stored processing instructions.
	InstructionsCID string `json:"instructions_cid,omitempty"`
	// DataCID references stored input data.
	DataCID string `json:"data_cid,omitempty"`
	// ResultCID references the stored result payload.
	ResultCID string `json:"result_cid,omitempty"`
}

// GoTNode is a single typed node in a graph-of-thought.
// Parent/child ID sets are kept symmetric with the DAG's edge relation
// by the engine; nothing else mutates them.
type GoTNode struct {
	// ID is the unique identifier for this node.
	ID string `json:"id"`
	// Content is the problem statement or instruction text for this node.
	Content string `json:"content"`
	// Type classifies the node's role in the graph.
	Type NodeType `json:"type"`
	// Status is the current lifecycle state.
	Status NodeStatus `json:"status"`
	// Priority orders scheduling; lower values are more urgent.
	Priority float64 `json:"priority"`
	// ParentIDs are nodes this node depends on.
	ParentIDs []string `json:"parent_ids,omitempty"`
	// ChildIDs are nodes that depend on this node.
	ChildIDs []string `json:"child_ids,omitempty"`
	// Requires lists capabilities a worker must have to execute this node.
	// Only meaningful for task nodes.
	Requires []string `json:"requires,omitempty"`
	// Result is the output produced by processing, if any.
	Result string `json:"result,omitempty"`
	// Error contains the failure message if processing failed.
	Error string `json:"error,omitempty"`
	// Metadata holds timing and bookkeeping data.
	Metadata NodeMetadata `json:"metadata"`
	// Refs holds content-store identifiers for offloaded payloads.
	Refs StorageRefs `json:"refs,omitempty"`
}

// HasParent returns true if parentID is in the node's parent set.
func (n *GoTNode) HasParent(parentID string) bool {
	for _, id := range n.ParentIDs {
		if id == parentID {
			return true
		}
	}
	return false
}

// HasChild returns true if childID is in the node's child set.
func (n *GoTNode) HasChild(childID string) bool {
	for _, id := range n.ChildIDs {
		if id == childID {
			return true
		}
	}
	return false
}

// Unresolved returns true if the node still needs processing.
func (n *GoTNode) Unresolved() bool {
	switch n.Status {
	case NodeStatusPending, NodeStatusScheduled, NodeStatusInProgress:
		return true
	default:
		return false
	}
}

package engine

import (
	"errors"
	"fmt"
)

// Graph integrity errors: the mutation is refused and no partial state is left.
var (
	// ErrGraphNotFound indicates an unknown graph ID.
	ErrGraphNotFound = errors.New("graph not found")
	// ErrNodeNotFound indicates an unknown node ID.
	ErrNodeNotFound = errors.New("node not found")
	// ErrEdgeRejected indicates an edge was refused: missing endpoint,
	// duplicate edge, or it would create a cycle.
	ErrEdgeRejected = errors.New("edge rejected")
	// ErrStoreNotConnected indicates PersistGraph was called without a
	// connected content store. Nothing is written.
	ErrStoreNotConnected = errors.New("content store not connected")
)

// ProcessingError records a per-node failure. It is recovered locally:
// the node is marked completed_failure and the run continues.
type ProcessingError struct {
	NodeID string
	Err    error
}

// Error implements error.
func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing node %s: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessingError) Unwrap() error { return e.Err }

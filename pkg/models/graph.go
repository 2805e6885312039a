package models

import "time"

// Graph records the nodes owned by a single reasoning session.
// Roots are implicit: nodes with no parents.
type Graph struct {
	// ID is the unique identifier for this graph.
	ID string `json:"id"`
	// NodeIDs are the IDs of all nodes owned by this graph.
	NodeIDs []string `json:"node_ids"`
	// CreatedAt is when the graph was created.
	CreatedAt time.Time `json:"created_at"`
}

// Contains returns true if the graph owns the given node.
func (g *Graph) Contains(nodeID string) bool {
	for _, id := range g.NodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrel-ai/noesis/internal/contentstore"
	"github.com/kestrel-ai/noesis/pkg/models"
)

// NodeRecord is the content-addressed form of a node.
type NodeRecord struct {
	ID       string              `json:"id"`
	Content  string              `json:"content"`
	Type     models.NodeType     `json:"type"`
	Status   models.NodeStatus   `json:"status"`
	Result   string              `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
	Metadata models.NodeMetadata `json:"metadata"`
}

// GraphRecord is the content-addressed form of a graph: the root node plus
// the CID of every node block, in dependency order (parents before children).
type GraphRecord struct {
	GraphID    string   `json:"graphId"`
	RootNodeID string   `json:"rootNodeId,omitempty"`
	NodeCIDs   []string `json:"nodeCids"`
}

// PersistGraph writes every node of a graph to the content store as a block
// linked to its parents' blocks, then writes a graph block indexing them.
// Returns the graph block's CID. Refuses with ErrStoreNotConnected before
// writing anything if no connected store is attached.
func (e *Engine) PersistGraph(ctx context.Context, graphID string) (string, error) {
	if e.store == nil || !e.store.IsConnectedToServer() {
		return "", ErrStoreNotConnected
	}

	nodes, err := e.GraphNodes(graphID)
	if err != nil {
		return "", err
	}
	ordered, err := topoOrder(nodes)
	if err != nil {
		return "", err
	}

	cids := make(map[string]string, len(ordered))
	nodeCIDs := make([]string, 0, len(ordered))
	var rootID string
	for _, n := range ordered {
		if len(n.ParentIDs) == 0 && rootID == "" {
			rootID = n.ID
		}

		data, err := json.Marshal(NodeRecord{
			ID:       n.ID,
			Content:  n.Content,
			Type:     n.Type,
			Status:   n.Status,
			Result:   n.Result,
			Error:    n.Error,
			Metadata: n.Metadata,
		})
		if err != nil {
			return "", fmt.Errorf("encoding node %s: %w", n.ID, err)
		}

		// Parents are already persisted; link this block to theirs.
		links := make([]string, 0, len(n.ParentIDs))
		for _, pid := range n.ParentIDs {
			if cid, ok := cids[pid]; ok {
				links = append(links, cid)
			}
		}

		cid, err := e.store.AddNode(ctx, data, links)
		if err != nil {
			return "", fmt.Errorf("persisting node %s: %w", n.ID, err)
		}
		cids[n.ID] = cid
		nodeCIDs = append(nodeCIDs, cid)
		if n.Refs.ResultCID == "" {
			e.setResultCID(n.ID, cid)
		}
	}

	data, err := json.Marshal(GraphRecord{
		GraphID:    graphID,
		RootNodeID: rootID,
		NodeCIDs:   nodeCIDs,
	})
	if err != nil {
		return "", fmt.Errorf("encoding graph %s: %w", graphID, err)
	}
	graphCID, err := e.store.AddNode(ctx, data, nodeCIDs)
	if err != nil {
		return "", fmt.Errorf("persisting graph %s: %w", graphID, err)
	}

	e.emitter.Emit(Event{Type: EventGraphPersisted, GraphID: graphID, Message: graphCID, Timestamp: time.Now()})
	e.logger.Log("persisted graph %s as %s (%d nodes)", graphID, graphCID, len(ordered))
	return graphCID, nil
}

// FetchGraphRecord reads a persisted graph block back from a store.
func FetchGraphRecord(ctx context.Context, store contentstore.Store, cid string) (*GraphRecord, error) {
	block, err := store.GetNode(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("fetching graph block %s: %w", cid, err)
	}
	record := &GraphRecord{}
	if err := json.Unmarshal(block.Data, record); err != nil {
		return nil, fmt.Errorf("decoding graph block %s: %w", cid, err)
	}
	return record, nil
}

// FetchNodeRecord reads a persisted node block back from a store.
func FetchNodeRecord(ctx context.Context, store contentstore.Store, cid string) (*NodeRecord, error) {
	block, err := store.GetNode(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("fetching node block %s: %w", cid, err)
	}
	record := &NodeRecord{}
	if err := json.Unmarshal(block.Data, record); err != nil {
		return nil, fmt.Errorf("decoding node block %s: %w", cid, err)
	}
	return record, nil
}

func (e *Engine) setResultCID(nodeID, cid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if node, ok := e.nodes[nodeID]; ok {
		node.Refs.ResultCID = cid
	}
}

// topoOrder sorts nodes parents-first. Creation order is almost always
// already topological; the sort only matters when edges were added between
// existing nodes.
func topoOrder(nodes []*models.GoTNode) ([]*models.GoTNode, error) {
	inGraph := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inGraph[n.ID] = true
	}

	remaining := make(map[string]int, len(nodes))
	for _, n := range nodes {
		count := 0
		for _, pid := range n.ParentIDs {
			if inGraph[pid] {
				count++
			}
		}
		remaining[n.ID] = count
	}

	ordered := make([]*models.GoTNode, 0, len(nodes))
	queue := make([]*models.GoTNode, 0, len(nodes))
	for _, n := range nodes {
		if remaining[n.ID] == 0 {
			queue = append(queue, n)
		}
	}

	children := make(map[string][]*models.GoTNode, len(nodes))
	for _, n := range nodes {
		for _, pid := range n.ParentIDs {
			if inGraph[pid] {
				children[pid] = append(children[pid], n)
			}
		}
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		ordered = append(ordered, n)
		for _, c := range children[n.ID] {
			remaining[c.ID]--
			if remaining[c.ID] == 0 {
				queue = append(queue, c)
			}
		}
	}
	if len(ordered) != len(nodes) {
		return nil, fmt.Errorf("graph contains a dependency cycle")
	}
	return ordered, nil
}

// Package contentstore provides content-addressed block storage for
// persisted reasoning graphs.
package contentstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
)

// ErrNotConnected indicates the store was used before Connect succeeded.
var ErrNotConnected = errors.New("content store is not connected")

// ErrNotFound indicates no block exists for a CID.
var ErrNotFound = errors.New("block not found")

// Block is a stored payload addressed by its CID, with outgoing links to
// other blocks.
type Block struct {
	// CID is the content identifier of the block.
	CID string `json:"cid"`
	// Data is the serialized payload.
	Data []byte `json:"data"`
	// Links are CIDs of blocks this block references.
	Links []string `json:"links,omitempty"`
}

// Store is a content-addressed block store. The engine's PersistGraph is the
// only writer; readers may be anything that understands the graph payload
// shape.
type Store interface {
	// Connect establishes the connection. Idempotent.
	Connect(ctx context.Context) error
	// IsConnectedToServer reports whether the store is usable.
	IsConnectedToServer() bool
	// AddNode stores a payload with links and returns its CID.
	// Storing identical content returns the same CID.
	AddNode(ctx context.Context, data []byte, links []string) (string, error)
	// GetNode retrieves a block by CID. Returns ErrNotFound if absent.
	GetNode(ctx context.Context, cid string) (*Block, error)
}

// ComputeCID derives the deterministic content identifier for a payload and
// its links. Identical content always yields the same CID.
func ComputeCID(data []byte, links []string) string {
	h := sha256.New()
	h.Write(data)
	for _, link := range links {
		h.Write([]byte{0}) // separate data from links and links from each other
		h.Write([]byte(link))
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}

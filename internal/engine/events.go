package engine

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies the kind of engine event.
type EventType string

const (
	// EventGraphCreated fires when a new reasoning graph is created.
	EventGraphCreated EventType = "graph_created"
	// EventNodeCreated fires when a node is added to a graph.
	EventNodeCreated EventType = "node_created"
	// EventNodeQueued fires when a node enters the scheduler.
	EventNodeQueued EventType = "node_queued"
	// EventNodeStarted fires when a node begins processing.
	EventNodeStarted EventType = "node_started"
	// EventNodeCompleted fires when a node completes successfully.
	EventNodeCompleted EventType = "node_completed"
	// EventNodeFailed fires when a node's processing fails.
	EventNodeFailed EventType = "node_failed"
	// EventStalled fires when the scheduler drains while unresolved nodes remain.
	EventStalled EventType = "stalled"
	// EventSynthesisDone fires when the final answer has been synthesized.
	EventSynthesisDone EventType = "synthesis_done"
	// EventGraphPersisted fires when a graph has been written to the content store.
	EventGraphPersisted EventType = "graph_persisted"
)

// Event is a notification emitted during a reasoning session.
type Event struct {
	Type      EventType
	GraphID   string
	NodeID    string
	Message   string
	Timestamp time.Time
}

// EventEmitter handles event emission for the engine.
// It provides a simple, thread-safe way to emit events to subscribers.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	closeOnce    sync.Once
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the events channel.
// If the channel is full, it tries with a timeout before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
		// Channel full, try with timeout.
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam.
			log.Printf("[engine] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events for subscribers.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel, ending subscriber range loops.
// Safe to call more than once. Emitting after Close panics, so close only
// when the session is finished.
func (e *EventEmitter) Close() {
	e.closeOnce.Do(func() { close(e.events) })
}

package models

import "time"

// WorkerStatus represents the availability of a worker.
type WorkerStatus string

const (
	// WorkerStatusIdle indicates the worker can accept tasks.
	WorkerStatusIdle WorkerStatus = "idle"
	// WorkerStatusBusy indicates the worker is executing at capacity.
	WorkerStatusBusy WorkerStatus = "busy"
	// WorkerStatusOffline indicates the worker is unavailable.
	WorkerStatusOffline WorkerStatus = "offline"
)

// Valid returns true if the status is a known value.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStatusIdle, WorkerStatusBusy, WorkerStatusOffline:
		return true
	default:
		return false
	}
}

// Worker is an execution unit that can run tasks matching its capabilities.
type Worker struct {
	// ID is the unique identifier for this worker.
	ID string `json:"id"`
	// Capabilities is the set of capability strings this worker provides.
	Capabilities map[string]bool `json:"capabilities"`
	// Load is the number of tasks currently assigned.
	Load int `json:"load"`
	// Status is the worker's availability.
	Status WorkerStatus `json:"status"`
}

// HasCapability returns true if the worker provides the named capability.
func (w *Worker) HasCapability(cap string) bool {
	return w.Capabilities[cap]
}

// TaskAssignment records a task handed to a worker.
type TaskAssignment struct {
	// TaskID is the node being executed.
	TaskID string `json:"task_id"`
	// WorkerID is the worker executing it.
	WorkerID string `json:"worker_id"`
	// AssignedAt is when the assignment was made.
	AssignedAt time.Time `json:"assigned_at"`
	// ReleasedAt is when the assignment was released, if it has been.
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

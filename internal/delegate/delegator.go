// Package delegate matches tasks to capability-qualified workers and
// tracks assignments and load.
package delegate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kestrel-ai/noesis/pkg/models"
)

// ErrNoWorker indicates no registered worker can take the task.
// Retry and backoff policy belong to the caller.
var ErrNoWorker = errors.New("no capable worker available")

// Delegator owns the worker registry and load counters.
// It decides which worker runs a task; it does not execute anything itself.
type Delegator struct {
	mu sync.RWMutex
	// workers maps worker ID to its registration.
	workers map[string]*models.Worker
	// order preserves registration order for deterministic tie breaking.
	order []string
	// assignments maps task ID to its active assignment.
	assignments map[string]*models.TaskAssignment
}

// New creates an empty Delegator.
func New() *Delegator {
	return &Delegator{
		workers:     make(map[string]*models.Worker),
		assignments: make(map[string]*models.TaskAssignment),
	}
}

// RegisterWorker adds a worker to the registry.
// Re-registering an ID replaces capabilities but keeps the original
// registration order and load.
func (d *Delegator) RegisterWorker(w *models.Worker) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.workers[w.ID]; ok {
		existing.Capabilities = w.Capabilities
		existing.Status = w.Status
		return
	}
	if w.Status == "" {
		w.Status = models.WorkerStatusIdle
	}
	d.workers[w.ID] = w
	d.order = append(d.order, w.ID)
}

// UpdateWorkerStatus changes a worker's availability.
// Returns false if the worker is unknown.
func (d *Delegator) UpdateWorkerStatus(workerID string, status models.WorkerStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.workers[workerID]
	if !ok {
		return false
	}
	w.Status = status
	return true
}

// Worker returns the registered worker for an ID, or nil.
func (d *Delegator) Worker(workerID string) *models.Worker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.workers[workerID]
}

// Workers returns all registered workers in registration order.
func (d *Delegator) Workers() []*models.Worker {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*models.Worker, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.workers[id])
	}
	return out
}

// HasRequiredCapabilities returns true if every capability the task requires
// is present in the worker's capability set.
func HasRequiredCapabilities(task *models.GoTNode, caps map[string]bool) bool {
	for _, required := range task.Requires {
		if !caps[required] {
			return false
		}
	}
	return true
}

// FindWorkerForTask returns the least-loaded non-offline worker whose
// capabilities cover the task's requirements. Ties go to the worker
// registered first. Returns nil if no worker qualifies.
func (d *Delegator) FindWorkerForTask(task *models.GoTNode) *models.Worker {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var best *models.Worker
	for _, id := range d.order {
		w := d.workers[id]
		if w.Status == models.WorkerStatusOffline {
			continue
		}
		if !HasRequiredCapabilities(task, w.Capabilities) {
			continue
		}
		if best == nil || w.Load < best.Load {
			best = w
		}
	}
	return best
}

// AssignTask records an assignment and increments the worker's load.
// Returns an error if the task already has an active assignment.
func (d *Delegator) AssignTask(task *models.GoTNode, worker *models.Worker) (*models.TaskAssignment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.assignments[task.ID]; exists {
		return nil, fmt.Errorf("task %s already assigned", task.ID)
	}
	w, ok := d.workers[worker.ID]
	if !ok {
		return nil, fmt.Errorf("worker %s not registered", worker.ID)
	}

	w.Load++
	assignment := &models.TaskAssignment{
		TaskID:     task.ID,
		WorkerID:   w.ID,
		AssignedAt: time.Now(),
	}
	d.assignments[task.ID] = assignment
	return assignment, nil
}

// ReleaseAssignment removes a task's assignment and decrements the matched
// worker's load. Returns false if no assignment exists for the task.
func (d *Delegator) ReleaseAssignment(taskID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	assignment, ok := d.assignments[taskID]
	if !ok {
		return false
	}
	if w, ok := d.workers[assignment.WorkerID]; ok && w.Load > 0 {
		w.Load--
	}
	now := time.Now()
	assignment.ReleasedAt = &now
	delete(d.assignments, taskID)
	return true
}

// Assignment returns the active assignment for a task, or nil.
func (d *Delegator) Assignment(taskID string) *models.TaskAssignment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.assignments[taskID]
}

// ActiveAssignments returns the number of tasks currently assigned.
func (d *Delegator) ActiveAssignments() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.assignments)
}

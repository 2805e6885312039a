package delegate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-ai/noesis/pkg/models"
)

// TaskFunc executes the work a task node represents. Cancellation is
// cooperative: the function should honor ctx, but nothing interrupts work
// that ignores it.
type TaskFunc func(ctx context.Context) (string, error)

// Result is the outcome of one task execution.
type Result struct {
	TaskID   string
	WorkerID string
	Output   string
	Err      error
	Duration time.Duration
}

// PoolConfig configures a local worker Pool.
type PoolConfig struct {
	// MaxWorkers caps concurrent workers. Defaults to 4.
	MaxWorkers int
	// IdleTimeout is how long a worker waits for a job before terminating
	// itself. Defaults to 30s.
	IdleTimeout time.Duration
	// TaskTimeout bounds a single task execution. On expiry the pool
	// synthesizes a failure result and frees the worker; the task function
	// itself is only cancelled cooperatively. Defaults to 2m.
	TaskTimeout time.Duration
	// Capabilities are advertised by every worker this pool spawns.
	Capabilities []string
	// Delegator, if set, mirrors pool workers into the registry so
	// FindWorkerForTask can see their load.
	Delegator *Delegator
}

// Pool runs tasks on a bounded set of local workers. Each worker processes
// one task at a time and terminates itself after sitting idle. Results are
// returned on per-task channels so the caller's coordinator stays the single
// writer for any shared state.
type Pool struct {
	cfg PoolConfig

	jobs chan poolJob

	mu      sync.Mutex
	workers int
	pending int
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type poolJob struct {
	task     *models.GoTNode
	fn       TaskFunc
	resultCh chan Result
}

// NewPool creates a Pool with the given configuration.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:    cfg,
		jobs:   make(chan poolJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit queues a task for execution and returns the channel its result
// will arrive on. A new worker is spawned if all existing workers are busy
// and the cap allows it. Blocks until a worker accepts the job, the caller's
// context ends, or the pool shuts down.
func (p *Pool) Submit(ctx context.Context, task *models.GoTNode, fn TaskFunc) (<-chan Result, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool is shut down")
	}
	// pending keeps idle workers alive until the handoff below completes, so
	// the spawn check and the send cannot be split by an idle self-termination.
	p.pending++
	if p.workers < p.cfg.MaxWorkers {
		p.spawnWorkerLocked()
	}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
	}()

	resultCh := make(chan Result, 1)
	select {
	case p.jobs <- poolJob{task: task, fn: fn, resultCh: resultCh}:
		return resultCh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, p.ctx.Err()
	}
}

// spawnWorkerLocked starts a worker goroutine. Assumes p.mu is held.
func (p *Pool) spawnWorkerLocked() {
	workerID := "worker-" + uuid.New().String()[:8]
	p.workers++

	caps := make(map[string]bool, len(p.cfg.Capabilities))
	for _, c := range p.cfg.Capabilities {
		caps[c] = true
	}
	worker := &models.Worker{
		ID:           workerID,
		Capabilities: caps,
		Status:       models.WorkerStatusIdle,
	}
	if p.cfg.Delegator != nil {
		p.cfg.Delegator.RegisterWorker(worker)
	}

	p.wg.Add(1)
	go p.workerLoop(worker)
}

// workerLoop processes jobs one at a time until the idle timeout fires or
// the pool shuts down.
func (p *Pool) workerLoop(worker *models.Worker) {
	defer p.wg.Done()
	defer func() {
		if p.cfg.Delegator != nil {
			p.cfg.Delegator.UpdateWorkerStatus(worker.ID, models.WorkerStatusOffline)
		}
	}()

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.mu.Lock()
			p.workers--
			p.mu.Unlock()
			return
		case <-idle.C:
			// Idle self-termination. The worker count drops in the same
			// critical section as the pending check, so a blocked Submit
			// either holds this worker alive or sees the count fall and
			// spawns a replacement.
			p.mu.Lock()
			if p.pending > 0 {
				p.mu.Unlock()
				idle.Reset(p.cfg.IdleTimeout)
				continue
			}
			p.workers--
			p.mu.Unlock()
			return
		case job := <-p.jobs:
			if p.cfg.Delegator != nil {
				p.cfg.Delegator.UpdateWorkerStatus(worker.ID, models.WorkerStatusBusy)
			}
			job.resultCh <- p.runJob(worker.ID, job)
			if p.cfg.Delegator != nil {
				p.cfg.Delegator.UpdateWorkerStatus(worker.ID, models.WorkerStatusIdle)
			}

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.cfg.IdleTimeout)
		}
	}
}

// runJob executes one task under the per-task timeout.
func (p *Pool) runJob(workerID string, job poolJob) Result {
	start := time.Now()

	taskCtx, cancel := context.WithTimeout(p.ctx, p.cfg.TaskTimeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		output, err := job.fn(taskCtx)
		done <- Result{
			TaskID:   job.task.ID,
			WorkerID: workerID,
			Output:   output,
			Err:      err,
			Duration: time.Since(start),
		}
	}()

	select {
	case res := <-done:
		return res
	case <-taskCtx.Done():
		// Synthesize a failure and free the worker. The task goroutine may
		// still be running; cancellation is best effort only.
		err := taskCtx.Err()
		if err == context.DeadlineExceeded {
			err = fmt.Errorf("task %s timed out after %s", job.task.ID, p.cfg.TaskTimeout)
		}
		return Result{
			TaskID:   job.task.ID,
			WorkerID: workerID,
			Err:      err,
			Duration: time.Since(start),
		}
	}
}

// CanServe reports whether the pool's advertised capabilities cover a
// task's requirements. Workers are spawned lazily, so this is the check to
// make before the first Submit registers anyone with the delegator.
func (p *Pool) CanServe(task *models.GoTNode) bool {
	caps := make(map[string]bool, len(p.cfg.Capabilities))
	for _, c := range p.cfg.Capabilities {
		caps[c] = true
	}
	return HasRequiredCapabilities(task, caps)
}

// WorkerCount returns the number of live workers.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Shutdown stops accepting work, cancels in-flight task contexts, and waits
// for workers to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

package delegate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kestrel-ai/noesis/pkg/models"
)

func poolTask(id string) *models.GoTNode {
	return &models.GoTNode{ID: id, Type: models.NodeTypeTask, Status: models.NodeStatusPending}
}

func TestPoolExecutesTask(t *testing.T) {
	p := NewPool(PoolConfig{MaxWorkers: 2, IdleTimeout: time.Second, TaskTimeout: time.Second})
	defer p.Shutdown()

	resultCh, err := p.Submit(context.Background(), poolTask("t1"), func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	res := <-resultCh
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Output != "done" {
		t.Errorf("output = %q, want done", res.Output)
	}
	if res.TaskID != "t1" {
		t.Errorf("task id = %q, want t1", res.TaskID)
	}
}

func TestPoolTaskTimeoutSynthesizesFailure(t *testing.T) {
	p := NewPool(PoolConfig{MaxWorkers: 1, IdleTimeout: time.Second, TaskTimeout: 50 * time.Millisecond})
	defer p.Shutdown()

	resultCh, err := p.Submit(context.Background(), poolTask("slow"), func(ctx context.Context) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	res := <-resultCh
	if res.Err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(res.Err.Error(), "timed out") {
		t.Errorf("error = %v, want timeout", res.Err)
	}

	// The worker is freed and accepts the next task.
	resultCh, err = p.Submit(context.Background(), poolTask("fast"), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Submit after timeout: %v", err)
	}
	if res := <-resultCh; res.Err != nil || res.Output != "ok" {
		t.Errorf("after timeout: output=%q err=%v", res.Output, res.Err)
	}
}

func TestPoolIdleWorkerTerminates(t *testing.T) {
	p := NewPool(PoolConfig{MaxWorkers: 1, IdleTimeout: 30 * time.Millisecond, TaskTimeout: time.Second})
	defer p.Shutdown()

	resultCh, err := p.Submit(context.Background(), poolTask("t1"), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-resultCh

	deadline := time.Now().Add(2 * time.Second)
	for p.WorkerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("worker did not self-terminate, count = %d", p.WorkerCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPoolMirrorsWorkersIntoDelegator(t *testing.T) {
	d := New()
	p := NewPool(PoolConfig{
		MaxWorkers:   1,
		IdleTimeout:  20 * time.Millisecond,
		TaskTimeout:  time.Second,
		Capabilities: []string{"text"},
		Delegator:    d,
	})
	defer p.Shutdown()

	resultCh, err := p.Submit(context.Background(), poolTask("t1"), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-resultCh

	workers := d.Workers()
	if len(workers) != 1 {
		t.Fatalf("registry has %d workers, want 1", len(workers))
	}
	if !workers[0].HasCapability("text") {
		t.Error("pool worker missing advertised capability")
	}

	// After idle termination the registry shows the worker offline.
	deadline := time.Now().Add(2 * time.Second)
	for d.Workers()[0].Status != models.WorkerStatusOffline {
		if time.Now().After(deadline) {
			t.Fatalf("worker never went offline, status = %s", d.Workers()[0].Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPoolSubmitRespawnsAfterIdleExit(t *testing.T) {
	p := NewPool(PoolConfig{MaxWorkers: 1, IdleTimeout: time.Millisecond, TaskTimeout: time.Second})
	defer p.Shutdown()

	// Repeatedly land submissions on the idle-timeout boundary. A submission
	// that races a worker's self-termination must still be picked up by a
	// replacement worker instead of blocking forever.
	for i := 0; i < 20; i++ {
		resultCh, err := p.Submit(context.Background(), poolTask("t"), func(ctx context.Context) (string, error) {
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		select {
		case res := <-resultCh:
			if res.Err != nil {
				t.Fatalf("task %d: %v", i, res.Err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Submit %d wedged against an idle worker exit", i)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPoolSubmitHonorsCallerContext(t *testing.T) {
	p := NewPool(PoolConfig{MaxWorkers: 1, IdleTimeout: time.Second, TaskTimeout: time.Second})
	defer p.Shutdown()

	block := make(chan struct{})
	resultCh, err := p.Submit(context.Background(), poolTask("t1"), func(ctx context.Context) (string, error) {
		<-block
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// The only worker is busy, so this handoff cannot complete.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Submit(ctx, poolTask("t2"), func(ctx context.Context) (string, error) {
		return "", nil
	}); err != context.Canceled {
		t.Errorf("Submit with cancelled context err = %v, want context.Canceled", err)
	}

	close(block)
	if res := <-resultCh; res.Err != nil {
		t.Errorf("first task: %v", res.Err)
	}
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := NewPool(PoolConfig{MaxWorkers: 1})
	p.Shutdown()

	if _, err := p.Submit(context.Background(), poolTask("t1"), func(ctx context.Context) (string, error) {
		return "", nil
	}); err == nil {
		t.Error("Submit after Shutdown should fail")
	}
}

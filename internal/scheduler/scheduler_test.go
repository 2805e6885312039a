package scheduler

import (
	"testing"

	"github.com/kestrel-ai/noesis/pkg/models"
)

func node(id string, priority float64) *models.GoTNode {
	return &models.GoTNode{
		ID:       id,
		Status:   models.NodeStatusPending,
		Priority: priority,
	}
}

func TestAddTaskReadyGoesToHeap(t *testing.T) {
	s := New(nil)

	if !s.AddTask(node("a", 2)) {
		t.Fatal("ready node should be queued")
	}
	if s.Size() != 1 || s.BufferedCount() != 0 {
		t.Errorf("size=%d buffered=%d, want 1/0", s.Size(), s.BufferedCount())
	}
}

func TestAddTaskNotReadyIsBuffered(t *testing.T) {
	readySet := map[string]bool{}
	s := New(func(n *models.GoTNode) bool { return readySet[n.ID] })

	if s.AddTask(node("a", 2)) {
		t.Fatal("unready node should be buffered")
	}
	if s.Size() != 0 || s.BufferedCount() != 1 {
		t.Errorf("size=%d buffered=%d, want 0/1", s.Size(), s.BufferedCount())
	}
	if _, ok := s.NextTask(); ok {
		t.Error("buffered node must not be extractable")
	}
}

func TestAddTaskDuplicateIgnored(t *testing.T) {
	s := New(nil)
	n := node("a", 1)

	s.AddTask(n)
	if s.AddTask(n) {
		t.Error("duplicate AddTask should be ignored")
	}
	if s.Size() != 1 {
		t.Errorf("size = %d, want 1", s.Size())
	}
}

func TestNextTaskPriorityOrder(t *testing.T) {
	s := New(nil)
	s.AddTask(node("low", 5))
	s.AddTask(node("high", 1))
	s.AddTask(node("mid", 3))

	want := []string{"high", "mid", "low"}
	for _, id := range want {
		n, ok := s.NextTask()
		if !ok {
			t.Fatalf("expected node %s, scheduler empty", id)
		}
		if n.ID != id {
			t.Errorf("got %s, want %s", n.ID, id)
		}
	}
	if _, ok := s.NextTask(); ok {
		t.Error("scheduler should be empty")
	}
}

func TestReschedulePendingPromotes(t *testing.T) {
	readySet := map[string]bool{}
	s := New(func(n *models.GoTNode) bool { return readySet[n.ID] })

	s.AddTask(node("a", 2))
	s.AddTask(node("b", 1))

	// Nothing ready yet.
	if promoted := s.ReschedulePending(); len(promoted) != 0 {
		t.Fatalf("promoted %v, want none", promoted)
	}

	readySet["b"] = true
	promoted := s.ReschedulePending()
	if len(promoted) != 1 || promoted[0] != "b" {
		t.Fatalf("promoted %v, want [b]", promoted)
	}
	if s.BufferedCount() != 1 {
		t.Errorf("buffered = %d, want 1", s.BufferedCount())
	}

	n, ok := s.NextTask()
	if !ok || n.ID != "b" {
		t.Errorf("NextTask = %v, want b", n)
	}
}

func TestPrioritizeQueuedNode(t *testing.T) {
	s := New(nil)
	s.AddTask(node("a", 5))
	s.AddTask(node("b", 3))

	// Lower a's priority value so it becomes most urgent.
	if !s.Prioritize("a", 1) {
		t.Fatal("Prioritize should find queued node")
	}
	n, _ := s.NextTask()
	if n.ID != "a" {
		t.Errorf("got %s, want a", n.ID)
	}
}

func TestPrioritizeRaiseReinserts(t *testing.T) {
	s := New(nil)
	s.AddTask(node("a", 1))
	s.AddTask(node("b", 3))

	// Raise a's value above b; b should now come out first.
	if !s.Prioritize("a", 10) {
		t.Fatal("Prioritize should succeed")
	}
	n, _ := s.NextTask()
	if n.ID != "b" {
		t.Errorf("got %s, want b", n.ID)
	}
	n, _ = s.NextTask()
	if n.ID != "a" || n.Priority != 10 {
		t.Errorf("got %s prio %v, want a prio 10", n.ID, n.Priority)
	}
}

func TestPrioritizeBufferedAndUnknown(t *testing.T) {
	s := New(func(*models.GoTNode) bool { return false })
	s.AddTask(node("a", 4))

	if !s.Prioritize("a", 2) {
		t.Error("buffered node should accept new priority")
	}
	if s.Prioritize("ghost", 1) {
		t.Error("unknown node should return false")
	}
}

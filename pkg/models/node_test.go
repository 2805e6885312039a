package models

import "testing"

func TestNodeStatusValid(t *testing.T) {
	valid := []NodeStatus{
		NodeStatusPending,
		NodeStatusScheduled,
		NodeStatusInProgress,
		NodeStatusCompletedSuccess,
		NodeStatusCompletedFailure,
		NodeStatusCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if NodeStatus("unknown").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestNodeTypeValid(t *testing.T) {
	if !NodeTypeQuestion.Valid() {
		t.Error("expected question type to be valid")
	}
	if NodeType("riddle").Valid() {
		t.Error("expected unknown type to be invalid")
	}
}

func TestNodeStatusCanTransition(t *testing.T) {
	tests := []struct {
		from NodeStatus
		to   NodeStatus
		want bool
	}{
		{NodeStatusPending, NodeStatusScheduled, true},
		{NodeStatusScheduled, NodeStatusInProgress, true},
		{NodeStatusInProgress, NodeStatusCompletedSuccess, true},
		{NodeStatusInProgress, NodeStatusCompletedFailure, true},
		{NodeStatusPending, NodeStatusCompletedSuccess, true},
		{NodeStatusScheduled, NodeStatusPending, false},
		{NodeStatusInProgress, NodeStatusScheduled, false},
		{NodeStatusCompletedSuccess, NodeStatusInProgress, false},
		// Retry reset: terminal states may return to pending.
		{NodeStatusCompletedFailure, NodeStatusPending, true},
		{NodeStatusCompletedSuccess, NodeStatusPending, true},
		{NodeStatusCancelled, NodeStatusPending, true},
		// No self transitions.
		{NodeStatusPending, NodeStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNodeStatusTerminal(t *testing.T) {
	if NodeStatusInProgress.Terminal() {
		t.Error("in_progress should not be terminal")
	}
	if !NodeStatusCompletedFailure.Terminal() {
		t.Error("completed_failure should be terminal")
	}
}

func TestGoTNodeUnresolved(t *testing.T) {
	n := &GoTNode{Status: NodeStatusPending}
	if !n.Unresolved() {
		t.Error("pending node should be unresolved")
	}
	n.Status = NodeStatusCompletedSuccess
	if n.Unresolved() {
		t.Error("completed node should be resolved")
	}
}

func TestGoTNodeParentChildSets(t *testing.T) {
	n := &GoTNode{
		ParentIDs: []string{"a", "b"},
		ChildIDs:  []string{"c"},
	}
	if !n.HasParent("a") || n.HasParent("c") {
		t.Error("parent set lookup incorrect")
	}
	if !n.HasChild("c") || n.HasChild("a") {
		t.Error("child set lookup incorrect")
	}
}

func TestWorkerHasCapability(t *testing.T) {
	w := &Worker{
		ID:           "w1",
		Capabilities: map[string]bool{"text": true},
		Status:       WorkerStatusIdle,
	}
	if !w.HasCapability("text") {
		t.Error("expected worker to have text capability")
	}
	if w.HasCapability("vision") {
		t.Error("expected worker to lack vision capability")
	}
}

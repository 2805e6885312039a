package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kestrel-ai/noesis/internal/delegate"
	"github.com/kestrel-ai/noesis/pkg/models"
)

const threeStepPlan = `Here is the breakdown:
[
  {"title": "Step one", "description": "examine the first aspect"},
  {"title": "Step two", "description": "examine the second aspect"},
  {"title": "Step three", "description": "examine the third aspect"}
]`

func TestProcessQueryBuildsAndDrainsGraph(t *testing.T) {
	r := &scriptedReasoner{responses: []string{
		threeStepPlan,
		"result one",
		"result two",
		"result three",
		"Final answer combining everything. Confidence: 0.9",
	}}
	e := New(r)

	res, err := e.ProcessQuery(context.Background(), "how does it all fit together?")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if !strings.Contains(res.Answer, "Final answer") {
		t.Errorf("answer = %q, want the synthesized text", res.Answer)
	}
	if res.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", res.Confidence)
	}
	if res.NodesProcessed != 3 {
		t.Errorf("NodesProcessed = %d, want 3", res.NodesProcessed)
	}
	if res.NodesFailed != 0 {
		t.Errorf("NodesFailed = %d, want 0", res.NodesFailed)
	}

	// Root question + 3 subproblems + synthesis + answer.
	nodes, err := e.GraphNodes(res.GraphID)
	if err != nil {
		t.Fatalf("GraphNodes: %v", err)
	}
	if len(nodes) != 6 {
		t.Errorf("graph has %d nodes, want 6", len(nodes))
	}
	for _, n := range nodes {
		if !n.Status.Terminal() {
			t.Errorf("node %s (%s) left in %s after run", n.ID, n.Type, n.Status)
		}
	}

	answers, err := e.NodesByType(res.GraphID, models.NodeTypeAnswer)
	if err != nil {
		t.Fatalf("NodesByType: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("answer nodes = %d, want 1", len(answers))
	}
	if answers[0].Metadata.Confidence == nil || *answers[0].Metadata.Confidence != 0.9 {
		t.Errorf("answer confidence = %v, want 0.9", answers[0].Metadata.Confidence)
	}

	// Subproblems run in priority order.
	if !strings.Contains(r.prompts[1], "Step one") {
		t.Errorf("first processed step prompt = %q, want Step one", firstLine(r.prompts[1]))
	}
	if !strings.Contains(r.prompts[3], "Step three") {
		t.Errorf("last processed step prompt = %q, want Step three", firstLine(r.prompts[3]))
	}

	seen := map[EventType]bool{}
drain:
	for {
		select {
		case ev := <-e.Events():
			seen[ev.Type] = true
		default:
			break drain
		}
	}
	for _, want := range []EventType{EventGraphCreated, EventNodeQueued, EventNodeCompleted, EventSynthesisDone} {
		if !seen[want] {
			t.Errorf("event %s never emitted", want)
		}
	}
}

func TestProcessQueryFallsBackOnDecompositionFailure(t *testing.T) {
	r := &scriptedReasoner{responses: []string{
		"ERR:model unavailable",
		"step result. Confidence: 0.8",
	}}
	e := New(r)

	res, err := e.ProcessQuery(context.Background(), "what now?")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	// Fallback plan is exactly two steps.
	if res.NodesProcessed != 2 {
		t.Errorf("NodesProcessed = %d, want 2 fallback steps", res.NodesProcessed)
	}
	nodes, _ := e.GraphNodes(res.GraphID)
	if len(nodes) != 5 {
		t.Errorf("graph has %d nodes, want root + 2 fallback + synthesis + answer", len(nodes))
	}
}

func TestProcessQueryRetriesFlakyNode(t *testing.T) {
	r := &scriptedReasoner{responses: []string{
		`[{"title": "Only step", "description": "do the thing"}]`,
		"ERR:transient failure",
		"recovered result",
		"Done. Confidence: 0.5",
	}}
	e := New(r, WithMaxRetries(1))

	res, err := e.ProcessQuery(context.Background(), "q")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if res.NodesProcessed != 1 || res.NodesFailed != 0 {
		t.Errorf("processed=%d failed=%d, want 1/0 after retry", res.NodesProcessed, res.NodesFailed)
	}

	steps, _ := e.NodesByType(res.GraphID, models.NodeTypeAnalysis)
	if len(steps) != 1 {
		t.Fatalf("analysis nodes = %d, want 1", len(steps))
	}
	if steps[0].Metadata.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", steps[0].Metadata.RetryCount)
	}
	if steps[0].Result != "recovered result" {
		t.Errorf("result = %q, want the retry's output", steps[0].Result)
	}
}

func TestProcessQueryRecordsPermanentFailure(t *testing.T) {
	r := &scriptedReasoner{responses: []string{
		`[{"title": "Flaky", "description": "always fails"}, {"title": "Solid", "description": "works"}]`,
		"ERR:broken",
		"ERR:still broken",
		"solid result",
		"Partial answer. Confidence: 7",
	}}
	e := New(r, WithMaxRetries(1))

	res, err := e.ProcessQuery(context.Background(), "q")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if res.NodesProcessed != 1 {
		t.Errorf("NodesProcessed = %d, want 1", res.NodesProcessed)
	}
	if res.NodesFailed != 1 {
		t.Errorf("NodesFailed = %d, want 1", res.NodesFailed)
	}
	if res.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 7 normalized to 0.7", res.Confidence)
	}

	steps, _ := e.NodesByType(res.GraphID, models.NodeTypeAnalysis)
	var failed *models.GoTNode
	for _, n := range steps {
		if n.Status == models.NodeStatusCompletedFailure {
			failed = n
		}
	}
	if failed == nil {
		t.Fatal("expected one node in completed_failure")
	}
	if failed.Error == "" {
		t.Error("failed node should carry the error message")
	}
}

func TestProcessQueryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(&scriptedReasoner{responses: []string{threeStepPlan}})
	if _, err := e.ProcessQuery(ctx, "q"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ProcessQuery error = %v, want context.Canceled", err)
	}
}

func TestRunStallCancelsUnreachableNodes(t *testing.T) {
	e := newTestEngine(t, nil)
	g := e.CreateGraph()

	// p never enters the scheduler, so c's dependency can never complete.
	p := mustCreateNode(t, e, g.ID, NodeSpec{Type: models.NodeTypeAnalysis, Content: "p"})
	c := mustCreateNode(t, e, g.ID, NodeSpec{Type: models.NodeTypeAnalysis, Content: "c", ParentIDs: []string{p.ID}})
	e.sched.AddTask(c)

	processed, failed, err := e.run(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if processed != 0 || failed != 0 {
		t.Errorf("processed=%d failed=%d, want 0/0", processed, failed)
	}
	if p.Status != models.NodeStatusCancelled {
		t.Errorf("p status = %s, want cancelled", p.Status)
	}
	if c.Status != models.NodeStatusCancelled {
		t.Errorf("c status = %s, want cancelled", c.Status)
	}
}

func TestDelegatedTaskRunsOnPool(t *testing.T) {
	r := &scriptedReasoner{responses: []string{
		`[{"title": "Fetch data", "description": "query the index", "requires": ["search"]}]`,
		"delegated result",
		"Answer from delegation. Confidence: 0.6",
	}}

	d := delegate.New()
	pool := delegate.NewPool(delegate.PoolConfig{
		MaxWorkers:   1,
		IdleTimeout:  200 * time.Millisecond,
		Capabilities: []string{"search"},
		Delegator:    d,
	})
	defer pool.Shutdown()

	e := New(r, WithDelegator(d), WithPool(pool))
	res, err := e.ProcessQuery(context.Background(), "q")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if res.NodesProcessed != 1 {
		t.Errorf("NodesProcessed = %d, want 1", res.NodesProcessed)
	}

	tasks, _ := e.NodesByType(res.GraphID, models.NodeTypeTask)
	if len(tasks) != 1 {
		t.Fatalf("task nodes = %d, want 1", len(tasks))
	}
	if tasks[0].Result != "delegated result" {
		t.Errorf("task result = %q, want the pool's output", tasks[0].Result)
	}
	if d.ActiveAssignments() != 0 {
		t.Errorf("active assignments = %d, want 0 after release", d.ActiveAssignments())
	}
}

func TestDelegatedTaskFailsWhenNoWorkerQualifies(t *testing.T) {
	r := &scriptedReasoner{responses: []string{
		`[{"title": "Heavy compute", "description": "needs gpu", "requires": ["gpu"]}]`,
	}}

	d := delegate.New()
	pool := delegate.NewPool(delegate.PoolConfig{
		MaxWorkers:   1,
		IdleTimeout:  200 * time.Millisecond,
		Capabilities: []string{"search"},
		Delegator:    d,
	})
	defer pool.Shutdown()

	e := New(r, WithDelegator(d), WithPool(pool))
	_, err := e.ProcessQuery(context.Background(), "q")
	if err == nil {
		t.Fatal("expected synthesis to fail with no usable results")
	}

	graphs := e.graphs
	if len(graphs) != 1 {
		t.Fatalf("graphs = %d, want 1", len(graphs))
	}
	for id := range graphs {
		tasks, _ := e.NodesByType(id, models.NodeTypeTask)
		if len(tasks) != 1 {
			t.Fatalf("task nodes = %d, want 1", len(tasks))
		}
		if tasks[0].Status != models.NodeStatusCompletedFailure {
			t.Errorf("task status = %s, want completed_failure", tasks[0].Status)
		}
		if !strings.Contains(tasks[0].Error, delegate.ErrNoWorker.Error()) {
			t.Errorf("task error = %q, want it to mention no capable worker", tasks[0].Error)
		}
	}
}

func TestSpawnFollowUpsExpandsDecompositionResults(t *testing.T) {
	e := newTestEngine(t, nil)
	g := e.CreateGraph()

	node := mustCreateNode(t, e, g.ID, NodeSpec{Type: models.NodeTypeDecomposition, Content: "split the work"})
	e.UpdateNodeStatus(node.ID, models.NodeStatusInProgress)
	e.setResult(node.ID, `[{"title": "Part A", "description": "first half"}, {"title": "Part B", "description": "second half", "requires": ["search"]}]`, "")
	e.UpdateNodeStatus(node.ID, models.NodeStatusCompletedSuccess)

	e.spawnFollowUps(g.ID, node)

	children, err := e.ChildNodes(node.ID)
	if err != nil {
		t.Fatalf("ChildNodes: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("follow-up children = %d, want 2", len(children))
	}
	if children[0].Type != models.NodeTypeAnalysis {
		t.Errorf("first follow-up type = %s, want analysis", children[0].Type)
	}
	if children[1].Type != models.NodeTypeTask {
		t.Errorf("capability-tagged follow-up type = %s, want task", children[1].Type)
	}
	if children[0].Priority <= node.Priority {
		t.Errorf("follow-up priority %v should be less urgent than parent %v", children[0].Priority, node.Priority)
	}

	// Non-decomposition nodes never expand.
	plain := mustCreateNode(t, e, g.ID, NodeSpec{Type: models.NodeTypeAnalysis, Content: "leaf"})
	e.setResult(plain.ID, `[{"title": "X", "description": "y"}]`, "")
	e.spawnFollowUps(g.ID, plain)
	if kids, _ := e.ChildNodes(plain.ID); len(kids) != 0 {
		t.Errorf("analysis node spawned %d follow-ups, want 0", len(kids))
	}
}

func TestExtractConfidence(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{"decimal", "The answer.\nConfidence: 0.85", 0.85},
		{"ten scale", "The answer. confidence 9", 0.9},
		{"exactly one", "Confidence: 1", 1.0},
		{"missing", "No statement at all.", defaultConfidence},
		{"out of range", "Confidence: 15", defaultConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractConfidence(tt.answer); got != tt.want {
				t.Errorf("extractConfidence(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

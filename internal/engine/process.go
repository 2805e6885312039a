package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kestrel-ai/noesis/internal/decompose"
	"github.com/kestrel-ai/noesis/internal/delegate"
	"github.com/kestrel-ai/noesis/internal/reasoner"
	"github.com/kestrel-ai/noesis/pkg/models"
)

// Processor turns one node into a result. The dependency context is the
// concatenated results of the node's completed parents.
type Processor interface {
	Process(ctx context.Context, node *models.GoTNode, deps string) (string, error)
}

// reasonerProcessor processes nodes by prompting the reasoner with the
// node's content plus the results of its dependencies.
type reasonerProcessor struct {
	reasoner reasoner.Reasoner
}

func (p *reasonerProcessor) Process(ctx context.Context, node *models.GoTNode, deps string) (string, error) {
	var b strings.Builder
	b.WriteString("You are solving one step of a larger problem.\n\n")
	b.WriteString("Step: ")
	b.WriteString(node.Content)
	b.WriteString("\n")
	if deps != "" {
		b.WriteString("\nResults from steps this one depends on:\n")
		b.WriteString(deps)
	}
	b.WriteString("\nProvide a focused, complete answer for this step only.")
	return p.reasoner.Generate(ctx, b.String())
}

// QueryResult summarizes a completed reasoning session.
type QueryResult struct {
	// GraphID identifies the reasoning graph the session built.
	GraphID string
	// Answer is the synthesized final answer.
	Answer string
	// Confidence is the answer's self-reported confidence in [0, 1].
	Confidence float64
	// NodesProcessed counts nodes that completed successfully.
	NodesProcessed int
	// NodesFailed counts nodes whose failure stuck after retries.
	NodesFailed int
	// Duration is wall time for the whole session.
	Duration time.Duration
}

// ProcessQuery runs a full reasoning session: decompose the query into a
// graph, execute nodes in dependency order, and synthesize a final answer.
// All graph mutation happens on this goroutine; delegated work returns on
// channels and is applied here.
func (e *Engine) ProcessQuery(ctx context.Context, query string) (*QueryResult, error) {
	start := time.Now()

	g := e.CreateGraph()
	e.logger.Log("processing query in graph %s: %s", g.ID, query)

	rootPriority := 0.0
	root, err := e.CreateNode(g.ID, NodeSpec{
		Type:     models.NodeTypeQuestion,
		Content:  query,
		Priority: &rootPriority,
	})
	if err != nil {
		return nil, fmt.Errorf("creating root node: %w", err)
	}

	if err := e.decomposeRoot(ctx, g.ID, root); err != nil {
		return nil, err
	}

	processed, failed, err := e.run(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	answer, confidence, err := e.Synthesize(ctx, g.ID, root)
	if err != nil {
		return nil, err
	}

	return &QueryResult{
		GraphID:        g.ID,
		Answer:         answer,
		Confidence:     confidence,
		NodesProcessed: processed,
		NodesFailed:    failed,
		Duration:       time.Since(start),
	}, nil
}

// decomposeRoot asks the reasoner to split the root question into
// subproblems, creates a child node per subproblem, and marks the root
// completed so the children become ready. A reasoner or parse failure falls
// back to a fixed two-step plan rather than aborting the session.
func (e *Engine) decomposeRoot(ctx context.Context, graphID string, root *models.GoTNode) error {
	e.UpdateNodeStatus(root.ID, models.NodeStatusInProgress)

	var subs []decompose.Subproblem
	response, err := e.reasoner.Generate(ctx, decompose.BuildPrompt(root.Content))
	if err != nil {
		e.logger.Log("decomposition generate failed for graph %s: %v", graphID, err)
	} else {
		subs, err = e.strategy.Parse(response)
		if err != nil {
			e.logger.Log("decomposition parse failed for graph %s: %v", graphID, err)
		}
	}
	if len(subs) == 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		subs = decompose.FallbackPlan(root.Content)
		e.logger.Log("using fallback plan for graph %s", graphID)
	}

	e.setResult(root.ID, response, "")
	e.UpdateNodeStatus(root.ID, models.NodeStatusCompletedSuccess)

	for i, sub := range subs {
		nodeType := models.NodeTypeAnalysis
		if len(sub.Requires) > 0 {
			nodeType = models.NodeTypeTask
		}
		priority := float64(i + 1)
		child, err := e.CreateNode(graphID, NodeSpec{
			Type:      nodeType,
			Content:   sub.Describe(),
			ParentIDs: []string{root.ID},
			Priority:  &priority,
			Requires:  sub.Requires,
		})
		if err != nil {
			return fmt.Errorf("creating subproblem node: %w", err)
		}
		e.scheduleNode(graphID, child)
	}
	return nil
}

// run drains the scheduler, executing the most urgent ready node until the
// graph is fully resolved or no progress is possible.
func (e *Engine) run(ctx context.Context, graphID string) (processed, failed int, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return processed, failed, err
		}

		for _, id := range e.sched.ReschedulePending() {
			e.UpdateNodeStatus(id, models.NodeStatusScheduled)
			e.emitter.Emit(Event{Type: EventNodeQueued, GraphID: graphID, NodeID: id, Timestamp: time.Now()})
		}

		node, ok := e.sched.NextTask()
		if !ok {
			unresolved, uerr := e.UnresolvedCount(graphID)
			if uerr != nil {
				return processed, failed, uerr
			}
			if unresolved == 0 {
				return processed, failed, nil
			}
			// No ready node and nothing in flight: the remaining nodes wait
			// on dependencies that can never complete.
			e.stall(graphID)
			return processed, failed, nil
		}

		e.UpdateNodeStatus(node.ID, models.NodeStatusInProgress)
		e.emitter.Emit(Event{Type: EventNodeStarted, GraphID: graphID, NodeID: node.ID, Timestamp: time.Now()})
		e.logger.Log("processing node %s (%s): %s", node.ID, node.Type, firstLine(node.Content))

		output, perr := e.executeNode(ctx, node)
		if perr != nil {
			if ctx.Err() != nil {
				return processed, failed, ctx.Err()
			}
			perr = &ProcessingError{NodeID: node.ID, Err: perr}
			e.logger.Log("node %s failed: %v", node.ID, perr)
			e.setResult(node.ID, "", perr.Error())
			e.UpdateNodeStatus(node.ID, models.NodeStatusCompletedFailure)
			e.emitter.Emit(Event{Type: EventNodeFailed, GraphID: graphID, NodeID: node.ID, Message: perr.Error(), Timestamp: time.Now()})

			if node.Metadata.RetryCount < e.maxRetries {
				// Reset to pending and requeue for one more attempt.
				e.UpdateNodeStatus(node.ID, models.NodeStatusPending)
				e.scheduleNode(graphID, node)
				continue
			}
			failed++
			continue
		}

		e.setResult(node.ID, output, "")
		e.UpdateNodeStatus(node.ID, models.NodeStatusCompletedSuccess)
		processed++
		e.emitter.Emit(Event{Type: EventNodeCompleted, GraphID: graphID, NodeID: node.ID, Timestamp: time.Now()})

		e.spawnFollowUps(graphID, node)
	}
}

// executeNode runs one node, delegating task nodes to the worker pool when
// one is wired and processing everything else through the reasoner.
func (e *Engine) executeNode(ctx context.Context, node *models.GoTNode) (string, error) {
	deps, err := e.dependencyContext(node.ID)
	if err != nil {
		return "", err
	}

	if node.Type == models.NodeTypeTask && e.pool != nil && e.delegator != nil {
		return e.executeDelegated(ctx, node, deps)
	}
	return e.processor.Process(ctx, node, deps)
}

// executeDelegated hands a task node to the worker pool and blocks on its
// result channel so graph state is only ever touched from the run loop.
func (e *Engine) executeDelegated(ctx context.Context, node *models.GoTNode, deps string) (string, error) {
	worker := e.delegator.FindWorkerForTask(node)
	if worker == nil && !e.pool.CanServe(node) {
		return "", fmt.Errorf("delegating task %s: %w", node.ID, delegate.ErrNoWorker)
	}
	if worker != nil {
		if _, err := e.delegator.AssignTask(node, worker); err != nil {
			return "", err
		}
		defer e.delegator.ReleaseAssignment(node.ID)
	}

	resultCh, err := e.pool.Submit(ctx, node, func(taskCtx context.Context) (string, error) {
		return e.processor.Process(taskCtx, node, deps)
	})
	if err != nil {
		return "", err
	}

	select {
	case res := <-resultCh:
		return res.Output, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// dependencyContext concatenates the results of a node's completed parents.
func (e *Engine) dependencyContext(nodeID string) (string, error) {
	parents, err := e.ParentNodes(nodeID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range parents {
		if p.Status != models.NodeStatusCompletedSuccess || p.Result == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", firstLine(p.Content), p.Result)
	}
	return b.String(), nil
}

// spawnFollowUps expands a completed decomposition node's result into child
// nodes. Other node types produce no follow-ups.
func (e *Engine) spawnFollowUps(graphID string, node *models.GoTNode) {
	if node.Type != models.NodeTypeDecomposition {
		return
	}
	subs, err := e.strategy.Parse(node.Result)
	if err != nil {
		e.logger.Log("node %s produced no parseable follow-ups: %v", node.ID, err)
		return
	}

	for i, sub := range subs {
		nodeType := models.NodeTypeAnalysis
		if len(sub.Requires) > 0 {
			nodeType = models.NodeTypeTask
		}
		priority := node.Priority + float64(i+1)
		child, err := e.CreateNode(graphID, NodeSpec{
			Type:      nodeType,
			Content:   sub.Describe(),
			ParentIDs: []string{node.ID},
			Priority:  &priority,
			Requires:  sub.Requires,
		})
		if err != nil {
			e.logger.Log("creating follow-up for node %s: %v", node.ID, err)
			continue
		}
		e.scheduleNode(graphID, child)
	}
}

// scheduleNode queues a node, marking it scheduled if it entered the heap.
// Buffered nodes stay pending until ReschedulePending promotes them.
func (e *Engine) scheduleNode(graphID string, node *models.GoTNode) {
	if e.sched.AddTask(node) {
		e.UpdateNodeStatus(node.ID, models.NodeStatusScheduled)
		e.emitter.Emit(Event{Type: EventNodeQueued, GraphID: graphID, NodeID: node.ID, Timestamp: time.Now()})
	}
}

// stall cancels every unresolved node and reports the wedged graph.
func (e *Engine) stall(graphID string) {
	e.logger.Log("graph %s stalled with unresolved nodes", graphID)
	e.emitter.Emit(Event{Type: EventStalled, GraphID: graphID, Message: "no ready nodes remain", Timestamp: time.Now()})

	nodes, err := e.GraphNodes(graphID)
	if err != nil {
		return
	}
	for _, n := range nodes {
		if n.Unresolved() {
			e.UpdateNodeStatus(n.ID, models.NodeStatusCancelled)
		}
	}
}

// setResult records a node's result or error under the engine lock.
func (e *Engine) setResult(nodeID, result, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if node, ok := e.nodes[nodeID]; ok {
		node.Result = result
		node.Error = errMsg
	}
}

// firstLine truncates content to its first line for log output.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

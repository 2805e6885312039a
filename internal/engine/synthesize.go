package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kestrel-ai/noesis/pkg/models"
)

// defaultConfidence is reported when the reasoner's answer carries no
// parseable confidence statement.
const defaultConfidence = 0.7

var confidencePattern = regexp.MustCompile(`(?i)confidence[:\s]*([0-9]*\.?[0-9]+)`)

// Synthesize combines the graph's leaf results into a final answer. It
// creates a synthesis node over the contributing leaves and an answer node
// beneath it, so the finished graph records how the answer was produced.
func (e *Engine) Synthesize(ctx context.Context, graphID string, root *models.GoTNode) (string, float64, error) {
	leaves, err := e.LeafNodes(graphID)
	if err != nil {
		return "", 0, err
	}

	contributing := make([]*models.GoTNode, 0, len(leaves))
	for _, n := range leaves {
		if n.Status == models.NodeStatusCompletedSuccess && n.Result != "" {
			contributing = append(contributing, n)
		}
	}
	if len(contributing) == 0 {
		return "", 0, fmt.Errorf("graph %s produced no results to synthesize", graphID)
	}

	// Most recent results first; later steps refine earlier ones.
	sort.SliceStable(contributing, func(i, j int) bool {
		ci, cj := contributing[i].Metadata.CompletedAt, contributing[j].Metadata.CompletedAt
		if ci == nil || cj == nil {
			return cj == nil && ci != nil
		}
		return ci.After(*cj)
	})

	prompt := buildSynthesisPrompt(root.Content, contributing)
	answer, err := e.reasoner.Generate(ctx, prompt)
	if err != nil {
		return "", 0, fmt.Errorf("synthesizing answer: %w", err)
	}
	confidence := extractConfidence(answer)

	parentIDs := make([]string, len(contributing))
	for i, n := range contributing {
		parentIDs[i] = n.ID
	}
	zero := 0.0
	synthesis, err := e.CreateNode(graphID, NodeSpec{
		Type:      models.NodeTypeSynthesis,
		Content:   "Synthesize final answer from completed steps",
		ParentIDs: parentIDs,
		Priority:  &zero,
	})
	if err != nil {
		return "", 0, err
	}
	e.UpdateNodeStatus(synthesis.ID, models.NodeStatusInProgress)
	e.setResult(synthesis.ID, answer, "")
	e.UpdateNodeStatus(synthesis.ID, models.NodeStatusCompletedSuccess)

	final, err := e.CreateNode(graphID, NodeSpec{
		Type:      models.NodeTypeAnswer,
		Content:   root.Content,
		ParentIDs: []string{synthesis.ID},
		Priority:  &zero,
	})
	if err != nil {
		return "", 0, err
	}
	e.UpdateNodeStatus(final.ID, models.NodeStatusInProgress)
	e.setResult(final.ID, answer, "")
	e.setConfidence(final.ID, confidence)
	e.UpdateNodeStatus(final.ID, models.NodeStatusCompletedSuccess)

	e.emitter.Emit(Event{Type: EventSynthesisDone, GraphID: graphID, NodeID: final.ID, Timestamp: time.Now()})
	e.logger.Log("synthesized answer for graph %s with confidence %.2f", graphID, confidence)
	return answer, confidence, nil
}

func (e *Engine) setConfidence(nodeID string, confidence float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if node, ok := e.nodes[nodeID]; ok {
		node.Metadata.Confidence = &confidence
	}
}

func buildSynthesisPrompt(question string, leaves []*models.GoTNode) string {
	var b strings.Builder
	b.WriteString("Synthesize a final answer to the original question from the step results below.\n\n")
	b.WriteString("Original question: ")
	b.WriteString(question)
	b.WriteString("\n\nStep results (most recent first):\n\n")
	for _, n := range leaves {
		fmt.Fprintf(&b, "## %s\n%s\n\n", firstLine(n.Content), n.Result)
	}
	b.WriteString("Give a direct, complete answer. End with a line of the form \"Confidence: 0.N\".")
	return b.String()
}

// extractConfidence pulls a self-reported confidence from the answer text.
// Values above 1 are treated as a 0-10 scale and normalized; anything
// unparseable yields the default.
func extractConfidence(answer string) float64 {
	m := confidencePattern.FindStringSubmatch(answer)
	if m == nil {
		return defaultConfidence
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return defaultConfidence
	}
	if v > 1 {
		v = v / 10
	}
	if v < 0 || v > 1 {
		return defaultConfidence
	}
	return v
}

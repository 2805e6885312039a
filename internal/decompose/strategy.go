// Package decompose breaks a problem statement into sub-problems by parsing
// loosely structured reasoner output.
package decompose

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoSubproblems indicates a response yielded nothing usable.
var ErrNoSubproblems = errors.New("no subproblems found in response")

// Subproblem is one structured sub-problem extracted from a response.
type Subproblem struct {
	// Title is the short name of the sub-problem.
	Title string `json:"title"`
	// Description elaborates on what needs to be answered or done.
	Description string `json:"description"`
	// Requires lists worker capabilities if the sub-problem is concrete work.
	Requires []string `json:"requires,omitempty"`
}

// Describe renders the sub-problem as node content, joining title and
// description when both are present.
func (s Subproblem) Describe() string {
	switch {
	case s.Title == "":
		return s.Description
	case s.Description == "":
		return s.Title
	default:
		return s.Title + ": " + s.Description
	}
}

// Strategy parses a reasoner response into sub-problems.
// Implementations are best-effort; the engine guarantees forward progress
// with a fixed fallback plan when every strategy fails.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Parse extracts sub-problems from a free-text response.
	Parse(response string) ([]Subproblem, error)
}

// JSONStrategy extracts a bracketed JSON array of sub-problems.
// Reasoners are prompted to answer with pure JSON but routinely wrap it in
// prose, so the parser scans for the outermost brackets first.
type JSONStrategy struct{}

// Name implements Strategy.
func (JSONStrategy) Name() string { return "json" }

// Parse implements Strategy.
func (JSONStrategy) Parse(response string) ([]Subproblem, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response (%d chars)", len(response))
	}

	var subs []Subproblem
	if err := json.Unmarshal([]byte(response[start:end+1]), &subs); err != nil {
		return nil, fmt.Errorf("unmarshal subproblems: %w", err)
	}

	var valid []Subproblem
	for _, s := range subs {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil, ErrNoSubproblems
	}
	return valid, nil
}

// linePattern matches numbered or bulleted lines: "1. foo", "2) foo", "- foo", "* foo".
var linePattern = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.+)$`)

// LineStrategy extracts sub-problems from numbered or bulleted lines.
// Used when the reasoner answers in prose instead of JSON. A line of the
// form "Title: description" splits on the first colon.
type LineStrategy struct{}

// Name implements Strategy.
func (LineStrategy) Name() string { return "line" }

// Parse implements Strategy.
func (LineStrategy) Parse(response string) ([]Subproblem, error) {
	var subs []Subproblem
	for _, line := range strings.Split(response, "\n") {
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}

		title, description := text, text
		if idx := strings.Index(text, ":"); idx > 0 && idx < len(text)-1 {
			title = strings.TrimSpace(text[:idx])
			description = strings.TrimSpace(text[idx+1:])
		}
		subs = append(subs, Subproblem{Title: title, Description: description})
	}

	if len(subs) == 0 {
		return nil, ErrNoSubproblems
	}
	return subs, nil
}

// Chain tries strategies in order and returns the first success.
type Chain []Strategy

// Name implements Strategy.
func (c Chain) Name() string { return "chain" }

// Parse implements Strategy.
func (c Chain) Parse(response string) ([]Subproblem, error) {
	var firstErr error
	for _, s := range c {
		subs, err := s.Parse(response)
		if err == nil {
			return subs, nil
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	if firstErr == nil {
		firstErr = ErrNoSubproblems
	}
	return nil, firstErr
}

// Default returns the standard strategy chain: JSON extraction first,
// line heuristics second.
func Default() Strategy {
	return Chain{JSONStrategy{}, LineStrategy{}}
}

// FallbackPlan returns the fixed two-step decomposition used when the
// reasoner fails or its response cannot be parsed. It guarantees the graph
// always has forward progress.
func FallbackPlan(problem string) []Subproblem {
	return []Subproblem{
		{
			Title:       "Analyze the problem",
			Description: fmt.Sprintf("Identify the key components, constraints, and unknowns in: %s", problem),
		},
		{
			Title:       "Generate a solution",
			Description: fmt.Sprintf("Propose and justify a solution to: %s", problem),
		},
	}
}

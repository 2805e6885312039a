// Package reasoner provides the text-generation interface the engine
// consumes, plus the Anthropic-backed implementation.
package reasoner

import (
	"context"
	"sync"
)

// Reasoner produces free-text responses to prompts. Implementations must
// tolerate being asked for structured output and answering in prose; callers
// parse responses best-effort.
type Reasoner interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu     sync.Mutex
	input  int64
	output int64
	calls  int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records usage from one API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input += input
	t.output += output
	t.calls++
}

// Total returns cumulative input and output token counts.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input, t.output
}

// Calls returns the number of API calls recorded.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Reset clears all counters.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input = 0
	t.output = 0
	t.calls = 0
}

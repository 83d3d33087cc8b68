// Package audit defines the decision ledger boundary. Sinks are
// injected into the engine and invoked after every decision; retry and
// at-least-once delivery stay with the caller.
package audit

import (
	"context"
	"sync"

	"github.com/ethicore/arbiter/internal/types"
)

// Sink receives every decision the engine produces.
type Sink interface {
	Append(ctx context.Context, d types.Decision) error
}

// MemorySink is an in-process ledger, mainly for tests and local runs.
type MemorySink struct {
	mu        sync.RWMutex
	decisions []types.Decision
}

// NewMemorySink creates an empty in-memory ledger.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append records a decision.
func (s *MemorySink) Append(_ context.Context, d types.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

// Decisions returns a snapshot copy of the ledger.
func (s *MemorySink) Decisions() []types.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Decision, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// Len returns the ledger length.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}

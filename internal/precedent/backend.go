// Package precedent retrieves historical decision cases by similarity
// and turns their outcomes into a weighted recommendation.
package precedent

import (
	"context"
	"sync"

	"github.com/ethicore/arbiter/internal/types"
)

// Backend is the narrow persistence interface the store runs on. It may
// be in-memory or durable; the store never assumes anything beyond
// append and snapshot-read.
type Backend interface {
	// AddCase appends a case. Called only from the store's single
	// writer goroutine.
	AddCase(ctx context.Context, c types.PrecedentCase) error

	// Query returns a consistent snapshot of all stored cases.
	Query(ctx context.Context) ([]types.PrecedentCase, error)

	// Len returns the number of stored cases.
	Len(ctx context.Context) (int, error)

	// Evict removes the oldest cases until at most keep remain.
	Evict(ctx context.Context, keep int) error
}

// MemoryBackend is the default in-process backend. Cases are held
// append-only; Query returns a copy so readers never observe a torn
// write.
type MemoryBackend struct {
	mu    sync.RWMutex
	cases []types.PrecedentCase
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// AddCase appends a case.
func (b *MemoryBackend) AddCase(_ context.Context, c types.PrecedentCase) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cases = append(b.cases, c)
	return nil
}

// Query returns a snapshot copy of all cases.
func (b *MemoryBackend) Query(_ context.Context) ([]types.PrecedentCase, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.PrecedentCase, len(b.cases))
	copy(out, b.cases)
	return out, nil
}

// Len returns the case count.
func (b *MemoryBackend) Len(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.cases), nil
}

// Evict drops the oldest cases until at most keep remain.
func (b *MemoryBackend) Evict(_ context.Context, keep int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	if len(b.cases) > keep {
		b.cases = append([]types.PrecedentCase{}, b.cases[len(b.cases)-keep:]...)
	}
	return nil
}

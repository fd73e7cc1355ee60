package store

import (
	"context"
	"errors"
	"sync"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
)

// ErrNoSummary is returned before the first summary has been stored.
var ErrNoSummary = errors.New("no summary available yet")

// MemoryStore holds the latest summary for query endpoints. It is safe for
// concurrent use and implements pipeline.Loader.
type MemoryStore struct {
	mu      sync.RWMutex
	summary domain.Summary
	ok      bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load replaces the stored summary.
func (s *MemoryStore) Load(_ context.Context, summary domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
	s.ok = true
	return nil
}

// Latest returns the most recently stored summary. Summaries are never
// mutated after they are built, so the value is shared without copying.
func (s *MemoryStore) Latest() (domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ok {
		return domain.Summary{}, ErrNoSummary
	}
	return s.summary, nil
}

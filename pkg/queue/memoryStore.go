package queue

import (
	"context"
	"sync"

	"github.com/pulsefit/checkin-sync/schema"
)

// MemoryStore is an in-process Store, safe for concurrent use. Used by tests
// and by deployments that accept losing the queue on restart.
type MemoryStore struct {
	mu    sync.Mutex
	items []*schema.QueueItem
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]*schema.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*schema.QueueItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, items []*schema.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]*schema.QueueItem, len(items))
	copy(s.items, items)
	s.saves++
	return nil
}

// SaveCount returns how many times Save has been called.
func (s *MemoryStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

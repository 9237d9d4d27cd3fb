package cache

import (
	"context"
	"sync"

	"github.com/Yemba/vistatv-live-dashboard/internal/stats"
)

// MemoryStore is the in-process Store for single-instance deployments.
// Records are treated as immutable once stored, so handing out the map
// value under a read lock gives readers a consistent snapshot: they see
// the old record or the new one, never a partial write.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]stats.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]stats.Record)}
}

func (s *MemoryStore) Put(_ context.Context, scope string, rec stats.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[scope] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, scope string) (stats.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.snapshots[scope]
	return rec, ok, nil
}

func (s *MemoryStore) Scopes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scopes := make([]string, 0, len(s.snapshots))
	for scope := range s.snapshots {
		scopes = append(scopes, scope)
	}
	return scopes, nil
}

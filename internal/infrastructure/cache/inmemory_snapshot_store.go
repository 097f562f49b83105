package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
)

type snapshotEntry struct {
	payload   []byte
	expiresAt time.Time // zero never expires
}

// InMemorySnapshotStore implements tenancy.SnapshotStore in process memory.
// Snapshots are stored encoded so callers never share slices with the store.
type InMemorySnapshotStore struct {
	mu      sync.RWMutex
	entries map[string]snapshotEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemorySnapshotStore creates an in-memory store. A zero ttl keeps
// snapshots until they are cleared.
func NewInMemorySnapshotStore(ttl time.Duration) *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		entries: make(map[string]snapshotEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Load returns the snapshot of uid, or nil when none is stored
func (s *InMemorySnapshotStore) Load(_ context.Context, uid string) (*tenancy.Snapshot, error) {
	s.mu.RLock()
	e, ok := s.entries[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, uid)
		s.mu.Unlock()
		return nil, nil
	}

	var snapshot tenancy.Snapshot
	if err := json.Unmarshal(e.payload, &snapshot); err != nil {
		return nil, nil
	}
	return &snapshot, nil
}

// Save overwrites the snapshot of uid
func (s *InMemorySnapshotStore) Save(_ context.Context, uid string, snapshot *tenancy.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	e := snapshotEntry{payload: payload}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[uid] = e
	s.mu.Unlock()
	return nil
}

// Clear removes the snapshot of uid
func (s *InMemorySnapshotStore) Clear(_ context.Context, uid string) error {
	s.mu.Lock()
	delete(s.entries, uid)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored snapshots, expired ones included
func (s *InMemorySnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

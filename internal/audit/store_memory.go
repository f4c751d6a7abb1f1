package audit

import (
	"context"
	"sort"
	"sync"

	id "bazaar/pkg/domain"
)

// InMemoryStore keeps ledger entries in process memory. Used in tests and
// dev mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.ApplicationID][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.ApplicationID][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ApplicationID] = append(s.entries[entry.ApplicationID], entry)
	return nil
}

func (s *InMemoryStore) ListByApplication(_ context.Context, appID id.ApplicationID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Entry{}, s.entries[appID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CountByAction(_ context.Context, appID id.ApplicationID, action Action) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries[appID] {
		if e.Action == action {
			n++
		}
	}
	return n, nil
}

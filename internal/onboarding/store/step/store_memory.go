// Package step persists checklist steps. Steps are created in bulk when an
// application is initialized and are unique per (application, number).
package step

import (
	"context"
	"sort"
	"sync"

	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/sentinel"
)

// InMemory is the map-backed store used by unit tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	steps map[id.StepID]*models.Step
}

func NewInMemory() *InMemory {
	return &InMemory{steps: make(map[id.StepID]*models.Step)}
}

// CreateBatch inserts the seeded checklist for one application.
func (s *InMemory) CreateBatch(ctx context.Context, steps []*models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range steps {
		for _, existing := range s.steps {
			if existing.ApplicationID == st.ApplicationID && existing.Number == st.Number {
				return sentinel.ErrConflict
			}
		}
	}
	for _, st := range steps {
		s.steps[st.ID] = cloneStep(st)
	}
	return nil
}

// FindByNumber returns one step of an application's checklist.
func (s *InMemory) FindByNumber(ctx context.Context, appID id.ApplicationID, number int) (*models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.steps {
		if st.ApplicationID == appID && st.Number == number {
			return cloneStep(st), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListByApplication returns the full checklist ordered by step number.
func (s *InMemory) ListByApplication(ctx context.Context, appID id.ApplicationID) ([]*models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Step
	for _, st := range s.steps {
		if st.ApplicationID == appID {
			out = append(out, cloneStep(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Update persists one step row.
func (s *InMemory) Update(ctx context.Context, st *models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.steps[st.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.steps[st.ID] = cloneStep(st)
	return nil
}

func cloneStep(st *models.Step) *models.Step {
	c := *st
	if st.Files != nil {
		c.Files = append([]models.FileRef{}, st.Files...)
	}
	return &c
}

// Package verification persists identity verification records, one row per
// application.
package verification

import (
	"context"
	"encoding/json"
	"sync"

	"bazaar/internal/persona/models"
	id "bazaar/pkg/domain"
	"bazaar/pkg/platform/sentinel"
)

// InMemory is the map-backed store used by unit tests and local development.
type InMemory struct {
	mu   sync.RWMutex
	rows map[id.ApplicationID]*models.Verification
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[id.ApplicationID]*models.Verification)}
}

// Create inserts the application's verification record. A second create for
// the same application is a conflict.
func (s *InMemory) Create(ctx context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[v.ApplicationID]; ok {
		return sentinel.ErrConflict
	}
	s.rows[v.ApplicationID] = cloneVerification(v)
	return nil
}

// FindByApplication returns the application's verification record.
func (s *InMemory) FindByApplication(ctx context.Context, appID id.ApplicationID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.rows[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneVerification(v), nil
}

// FindByInquiry resolves a provider inquiry reference back to its record.
// Only the current inquiry is resolvable; superseded references miss.
func (s *InMemory) FindByInquiry(ctx context.Context, inquiryID string) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.rows {
		if v.InquiryID == inquiryID {
			return cloneVerification(v), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update overwrites the application's verification record.
func (s *InMemory) Update(ctx context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[v.ApplicationID]; !ok {
		return sentinel.ErrNotFound
	}
	s.rows[v.ApplicationID] = cloneVerification(v)
	return nil
}

func cloneVerification(v *models.Verification) *models.Verification {
	c := *v
	if v.RawPayload != nil {
		c.RawPayload = append(json.RawMessage(nil), v.RawPayload...)
	}
	return &c
}

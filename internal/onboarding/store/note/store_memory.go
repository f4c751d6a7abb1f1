// Package note persists application notes. Notes are append-only; there is
// no update or delete path.
package note

import (
	"context"
	"sort"
	"sync"

	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
)

// InMemory is the map-backed store used by unit tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	notes map[id.NoteID]*models.Note
}

func NewInMemory() *InMemory {
	return &InMemory{notes: make(map[id.NoteID]*models.Note)}
}

// Append inserts one note.
func (s *InMemory) Append(ctx context.Context, n *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *n
	s.notes[n.ID] = &c
	return nil
}

// ListByApplication returns an application's notes oldest first. When
// applicantView is set, only USER_FACING notes are returned.
func (s *InMemory) ListByApplication(ctx context.Context, appID id.ApplicationID, applicantView bool) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Note
	for _, n := range s.notes {
		if n.ApplicationID != appID {
			continue
		}
		if applicantView && !n.Classification.VisibleToApplicant() {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

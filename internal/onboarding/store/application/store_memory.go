// Package application persists onboarding applications. One active
// (non-soft-deleted) application per vendor; rows are never physically
// deleted.
package application

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
	mu   sync.RWMutex
	apps map[id.ApplicationID]*models.Application
}

func NewInMemory() *InMemory {
	return &InMemory{apps: make(map[id.ApplicationID]*models.Application)}
}

// Create inserts a new application, enforcing one active application per
// vendor.
func (s *InMemory) Create(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.apps {
		if existing.VendorID == app.VendorID && !existing.IsDeleted() {
			return sentinel.ErrConflict
		}
	}
	s.apps[app.ID] = cloneApp(app)
	return nil
}

// FindByID returns the application, soft-deleted rows included; callers that
// must not see deleted rows check IsDeleted themselves.
func (s *InMemory) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneApp(app), nil
}

// FindActiveByVendor returns the vendor's single non-deleted application.
func (s *InMemory) FindActiveByVendor(ctx context.Context, vendorID id.VendorID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, app := range s.apps {
		if app.VendorID == vendorID && !app.IsDeleted() {
			return cloneApp(app), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update persists the whole aggregate row.
func (s *InMemory) Update(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[app.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.apps[app.ID] = cloneApp(app)
	return nil
}

// List returns non-deleted applications, optionally filtered by status,
// newest submission first.
func (s *InMemory) List(ctx context.Context, filter ListFilter) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Application
	for _, app := range s.apps {
		if app.IsDeleted() {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, cloneApp(app))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return applyPage(out, filter), nil
}

// CountByStatus returns non-deleted application counts keyed by status.
func (s *InMemory) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Status]int)
	for _, app := range s.apps {
		if !app.IsDeleted() {
			counts[app.Status]++
		}
	}
	return counts, nil
}

func applyPage(apps []*models.Application, filter ListFilter) []*models.Application {
	if filter.Offset >= len(apps) {
		return nil
	}
	if filter.Offset > 0 {
		apps = apps[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(apps) {
		apps = apps[:filter.Limit]
	}
	return apps
}

func cloneApp(app *models.Application) *models.Application {
	c := *app
	return &c
}

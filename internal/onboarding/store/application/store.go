package application

import "bazaar/internal/onboarding/models"

// ListFilter narrows and pages List results. A zero filter returns everything
// non-deleted.
type ListFilter struct {
	Status models.Status
	Limit  int
	Offset int
}

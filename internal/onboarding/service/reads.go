package service

import (
	"context"
	"errors"

	"bazaar/internal/audit"
	"bazaar/internal/onboarding/models"
	"bazaar/internal/onboarding/store/application"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/sentinel"
	"bazaar/pkg/requestcontext"
)

// ApplicationDetail is the full review-screen view: the aggregate, its
// checklist, and the UI guard booleans.
type ApplicationDetail struct {
	Application *models.Application
	Steps       []*models.Step
	Guards      models.Guards
}

// GetApplication returns the detail view for one application.
func (s *Service) GetApplication(ctx context.Context, appID id.ApplicationID) (*ApplicationDetail, error) {
	app, err := s.loadForReview(ctx, appID)
	if err != nil {
		return nil, err
	}
	steps, err := s.steps.ListByApplication(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list steps")
	}
	return &ApplicationDetail{
		Application: app,
		Steps:       steps,
		Guards:      app.Guards(),
	}, nil
}

// GetVendorApplication returns the vendor's active application detail, the
// applicant-surface read.
func (s *Service) GetVendorApplication(ctx context.Context, vendorID id.VendorID) (*ApplicationDetail, error) {
	app, err := s.apps.FindActiveByVendor(ctx, vendorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active application for vendor")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load application")
	}
	return s.GetApplication(ctx, app.ID)
}

// ListApplications returns the admin queue, newest submission first.
func (s *Service) ListApplications(ctx context.Context, filter application.ListFilter) ([]*models.Application, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid status filter %q", filter.Status)
	}
	apps, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list applications")
	}
	return apps, nil
}

// CountByStatus returns queue sizes for the admin dashboard.
func (s *Service) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	counts, err := s.apps.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count applications")
	}
	return counts, nil
}

// AuditTrail returns the full ledger for an application, oldest first.
func (s *Service) AuditTrail(ctx context.Context, appID id.ApplicationID) ([]audit.Entry, error) {
	if _, err := s.loadForReview(ctx, appID); err != nil {
		return nil, err
	}
	return s.recorder.Trail(ctx, appID)
}

// SoftDelete marks an application deleted without destroying history. The
// vendor may then submit a fresh application.
func (s *Service) SoftDelete(ctx context.Context, appID id.ApplicationID) error {
	return s.mutate(ctx, "soft_delete", appID, func(ctx context.Context) error {
		actor, err := requireActor(ctx)
		if err != nil {
			return err
		}
		app, err := s.loadForReview(ctx, appID)
		if err != nil {
			return err
		}

		app.SoftDelete(requestcontext.Now(ctx))
		if err := s.storeUpdate(ctx, app); err != nil {
			return err
		}

		return s.recorder.Record(ctx, audit.Entry{
			ApplicationID: app.ID,
			Action:        audit.ActionStatusChanged,
			ActorID:       audit.ActorRef(actor),
			ActorName:     actor.Name,
			Metadata:      transitionMetadata(app.Status, app.Status, "soft-deleted"),
		})
	})
}

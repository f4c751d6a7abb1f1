package service

import (
	"context"
	"errors"

	"bazaar/internal/audit"
	"bazaar/internal/notify"
	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/sentinel"
	"bazaar/pkg/requestcontext"
	"bazaar/pkg/structured"
)

// CreateApplication registers a vendor's submission: the application row in
// PENDING, its seeded checklist, and the CREATED and SUBMITTED ledger
// entries, atomically.
//
// Errors: CodeConflict when the vendor already has an active application;
// CodeInvalidInput for an unknown application type.
func (s *Service) CreateApplication(ctx context.Context, vendorID id.VendorID, appType models.ApplicationType) (*models.Application, error) {
	var created *models.Application

	appID := id.NewApplicationID()
	err := s.mutate(ctx, "create_application", appID, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		app, err := models.NewApplication(appID, vendorID, appType, now)
		if err != nil {
			return err
		}

		prov := requestcontext.RequestProvenance(ctx)
		app.SubmittedIP = prov.IP
		app.SubmittedUserAgent = prov.UserAgent
		app.SubmittedCountry = prov.Country

		if err := s.apps.Create(ctx, app); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "vendor already has an active application")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create application")
		}
		if err := s.steps.CreateBatch(ctx, models.SeedSteps(app.ID, appType, now)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "seed checklist")
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: app.ID,
			Action:        audit.ActionCreated,
			Metadata: structured.Map(map[string]structured.Value{
				"type":        structured.String(string(appType)),
				"total_steps": structured.Int(int64(app.TotalSteps)),
			}),
		}); err != nil {
			return err
		}
		// Applications arrive pre-filled, so creation and submission are one
		// moment; the ledger records both.
		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: app.ID,
			Action:        audit.ActionSubmitted,
		}); err != nil {
			return err
		}

		created = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:          notify.EventApplicationCreated,
		ApplicationID: created.ID,
		VendorID:      created.VendorID,
		Status:        created.Status.String(),
	})
	return created, nil
}

package service

import (
	"context"
	"errors"

	"bazaar/internal/audit"
	"bazaar/internal/persona/models"
	"bazaar/internal/persona/provider"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/sentinel"
	"bazaar/pkg/requestcontext"
	"bazaar/pkg/structured"
)

// Initiate mints the application's first verification inquiry. The provider
// is called before the transaction opens; if it fails, nothing local changes.
//
// Errors: CodeNotFound for an unknown application, CodeInvalidTransition when a
// verification already exists (retry instead), CodeInvalidTransition when the
// application is terminal, CodeProviderUnavailable when the provider cannot
// mint an inquiry.
func (s *Service) Initiate(ctx context.Context, appID id.ApplicationID) (*models.Verification, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := app.CanMutateSubState(); err != nil {
		return nil, err
	}
	if _, err := s.verifications.FindByApplication(ctx, appID); err == nil {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "verification already initiated; retry it instead")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load verification")
	}

	inquiry, err := s.createInquiry(ctx, appID, app.VendorID)
	if err != nil {
		return nil, err
	}

	var created *models.Verification
	err = s.mutate(ctx, "initiate", appID, func(ctx context.Context) error {
		app, err := s.loadApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := app.CanMutateSubState(); err != nil {
			return err
		}

		v, err := models.NewVerification(appID, inquiry.ID, inquiry.VerificationURL, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.verifications.Create(ctx, v); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeInvalidTransition, "verification already initiated; retry it instead")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create verification")
		}
		if err := s.syncApplication(ctx, app, v); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: appID,
			Action:        audit.ActionPersonaInitiated,
			Metadata:      inquiryMetadata(inquiry.ID, false),
		}); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Retry supersedes the current inquiry with a fresh one. Late results for the
// superseded inquiry are dropped by the webhook path.
func (s *Service) Retry(ctx context.Context, appID id.ApplicationID) (*models.Verification, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := app.CanMutateSubState(); err != nil {
		return nil, err
	}
	current, err := s.loadVerification(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := current.CanRetry(); err != nil {
		return nil, err
	}

	inquiry, err := s.createInquiry(ctx, appID, app.VendorID)
	if err != nil {
		return nil, err
	}

	var updated *models.Verification
	err = s.mutate(ctx, "retry", appID, func(ctx context.Context) error {
		app, err := s.loadApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := app.CanMutateSubState(); err != nil {
			return err
		}
		v, err := s.loadVerification(ctx, appID)
		if err != nil {
			return err
		}
		if err := v.CanRetry(); err != nil {
			return err
		}

		v.ApplyRetry(inquiry.ID, inquiry.VerificationURL, requestcontext.Now(ctx))
		if err := s.verifications.Update(ctx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update verification")
		}
		if err := s.syncApplication(ctx, app, v); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: appID,
			Action:        audit.ActionPersonaInitiated,
			Metadata:      inquiryMetadata(inquiry.ID, true),
		}); err != nil {
			return err
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// createInquiry calls the provider and translates its outcome into metrics.
func (s *Service) createInquiry(ctx context.Context, appID id.ApplicationID, vendorID id.VendorID) (*provider.Inquiry, error) {
	inquiry, err := s.provider.CreateInquiry(ctx, provider.InquiryRequest{
		ApplicationID: appID,
		VendorID:      vendorID,
	})
	if err != nil {
		s.metrics.RecordInquiry("error")
		s.logger.ErrorContext(ctx, "inquiry creation failed",
			"application_id", appID.String(),
			"error", err,
		)
		if dErrors.HasCode(err, dErrors.CodeProviderUnavailable) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeProviderUnavailable, "inquiry creation failed")
	}
	s.metrics.RecordInquiry("ok")
	return inquiry, nil
}

func inquiryMetadata(inquiryID string, retry bool) structured.Value {
	m := map[string]structured.Value{
		"inquiry_id": structured.String(inquiryID),
	}
	if retry {
		m["retry"] = structured.Bool(true)
	}
	return structured.Map(m)
}

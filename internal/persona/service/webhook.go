package service

import (
	"context"
	"encoding/json"
	"errors"

	"bazaar/internal/audit"
	"bazaar/internal/notify"
	"bazaar/internal/persona/models"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/sentinel"
	"bazaar/pkg/requestcontext"
	"bazaar/pkg/structured"
)

// ProviderResult is one webhook delivery from the verification vendor.
type ProviderResult struct {
	// DeliveryID identifies this delivery attempt; redeliveries reuse it.
	DeliveryID string
	InquiryID  string
	Outcome    models.Status
	// FailureReason accompanies FAILED outcomes.
	FailureReason string
	// Payload is the vendor's raw body, stored verbatim.
	Payload json.RawMessage
}

// ApplyProviderResult applies one asynchronous verification result. The
// operation is idempotent under at-least-once delivery: duplicates, results
// already applied, and results for superseded inquiries are all acknowledged
// without writing anything.
func (s *Service) ApplyProviderResult(ctx context.Context, result ProviderResult) error {
	if result.InquiryID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "inquiry reference is required")
	}

	if s.deduper != nil {
		seen, err := s.deduper.Seen(ctx, result.DeliveryID)
		if err != nil {
			// Dedupe is an optimization; the sub-machine's guards still hold.
			s.logger.WarnContext(ctx, "delivery dedupe unavailable", "error", err)
		} else if seen {
			s.metrics.RecordDeduped()
			s.logger.DebugContext(ctx, "duplicate delivery dropped",
				"delivery_id", result.DeliveryID,
				"inquiry_id", result.InquiryID,
			)
			return nil
		}
	}

	v, err := s.verifications.FindByInquiry(ctx, result.InquiryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// A retry superseded the inquiry, or it was never ours.
			s.logger.WarnContext(ctx, "result for unknown inquiry dropped",
				"inquiry_id", result.InquiryID,
			)
			s.markDelivery(ctx, result.DeliveryID)
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "resolve inquiry")
	}
	appID := v.ApplicationID

	var (
		applied bool
		updated *models.Verification
	)
	err = s.mutate(ctx, "apply_result", appID, func(ctx context.Context) error {
		v, err := s.loadVerification(ctx, appID)
		if err != nil {
			return err
		}
		if err := v.CanApplyResult(result.InquiryID, result.Outcome); err != nil {
			if errors.Is(err, models.ErrAlreadyApplied) || errors.Is(err, models.ErrStaleInquiry) {
				s.logger.InfoContext(ctx, "redelivered result dropped",
					"application_id", appID.String(),
					"inquiry_id", result.InquiryID,
				)
				return nil
			}
			return err
		}

		app, err := s.loadApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := app.CanMutateSubState(); err != nil {
			// The application settled while the result was in flight; the
			// delivery is acknowledged, not retried.
			s.logger.WarnContext(ctx, "result for settled application dropped",
				"application_id", appID.String(),
				"status", app.Status.String(),
			)
			return nil
		}

		v.ApplyResult(result.Outcome, result.Payload, result.FailureReason, requestcontext.Now(ctx))
		if err := s.verifications.Update(ctx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update verification")
		}
		if err := s.syncApplication(ctx, app, v); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: appID,
			Action:        resultAction(result.Outcome),
			Metadata:      resultMetadata(result),
		}); err != nil {
			return err
		}

		applied = true
		updated = v
		return nil
	})
	if err != nil {
		return err
	}
	// Only a handled delivery is marked; a failed apply stays unmarked so the
	// provider's redelivery gets processed.
	s.markDelivery(ctx, result.DeliveryID)
	if !applied {
		return nil
	}

	s.metrics.RecordResult(updated.Status.String())
	switch updated.Status {
	case models.StatusVerified:
		s.publish(ctx, notify.Event{
			Type:          notify.EventPersonaVerified,
			ApplicationID: appID,
		})
	case models.StatusFailed:
		s.publish(ctx, notify.Event{
			Type:          notify.EventPersonaFailed,
			ApplicationID: appID,
			Reason:        updated.FailureReason,
		})
	}
	return nil
}

func (s *Service) markDelivery(ctx context.Context, deliveryID string) {
	if s.deduper == nil || deliveryID == "" {
		return
	}
	if err := s.deduper.Mark(ctx, deliveryID); err != nil {
		s.logger.WarnContext(ctx, "delivery dedupe mark failed",
			"delivery_id", deliveryID,
			"error", err,
		)
	}
}

func resultAction(outcome models.Status) audit.Action {
	if outcome == models.StatusFailed {
		return audit.ActionPersonaFailed
	}
	return audit.ActionPersonaCompleted
}

func resultMetadata(result ProviderResult) structured.Value {
	m := map[string]structured.Value{
		"inquiry_id": structured.String(result.InquiryID),
		"outcome":    structured.String(result.Outcome.String()),
	}
	if result.FailureReason != "" {
		m["failure_reason"] = structured.String(result.FailureReason)
	}
	return structured.Map(m)
}

package service

import (
	"context"
	"strings"

	"bazaar/internal/audit"
	"bazaar/internal/notify"
	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/requestcontext"
	"bazaar/pkg/structured"
)

// BeginReview moves a PENDING application to UNDER_REVIEW, claiming it for
// the acting admin.
func (s *Service) BeginReview(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	return s.transition(ctx, "begin_review", appID, transitionSpec{
		action: audit.ActionStatusChanged,
		guard: func(app *models.Application, _ requestcontext.AdminActor) error {
			return app.CanBeginReview()
		},
		apply: func(app *models.Application, actor requestcontext.AdminActor, ctx context.Context) {
			app.ApplyBeginReview(actor.ID, requestcontext.Now(ctx))
		},
	})
}

// Approve transitions to APPROVED and, after commit, grants the seller
// capability and notifies the vendor. A grant failure is logged for
// reconciliation; the approval stands.
func (s *Service) Approve(ctx context.Context, appID id.ApplicationID, note string) (*models.Application, error) {
	app, err := s.transition(ctx, "approve", appID, transitionSpec{
		action: audit.ActionApproved,
		guard: func(app *models.Application, _ requestcontext.AdminActor) error {
			return app.CanApprove(s.policy.RequireVerifiedPersona)
		},
		apply: func(app *models.Application, actor requestcontext.AdminActor, ctx context.Context) {
			app.ApplyApproval(actor.ID, requestcontext.Now(ctx))
		},
		event:              notify.EventApplicationApproved,
		noteClassification: models.NoteAdminInternal,
		noteContent:        strings.TrimSpace(note),
	})
	if err != nil {
		return nil, err
	}

	if err := s.granter.GrantSeller(ctx, app.VendorID); err != nil {
		s.logger.ErrorContext(ctx, "seller capability grant failed; approval stands, reconciliation will retry",
			"application_id", app.ID.String(),
			"vendor_id", app.VendorID.String(),
			"error", err,
		)
	}
	return app, nil
}

// Reject transitions to REJECTED with a mandatory reason. When notifyUser is
// set the reason is also written as a USER_FACING note, so the applicant sees
// it alongside the rejection notification.
func (s *Service) Reject(ctx context.Context, appID id.ApplicationID, reason string, notifyUser bool) (*models.Application, error) {
	spec := transitionSpec{
		action: audit.ActionRejected,
		reason: reason,
		guard: func(app *models.Application, _ requestcontext.AdminActor) error {
			return app.CanReject(reason)
		},
		apply: func(app *models.Application, actor requestcontext.AdminActor, ctx context.Context) {
			app.ApplyRejection(reason, actor.ID, requestcontext.Now(ctx))
		},
		event: notify.EventApplicationRejected,
	}
	if notifyUser {
		spec.noteClassification = models.NoteUserFacing
		spec.noteContent = strings.TrimSpace(reason)
	}
	return s.transition(ctx, "reject", appID, spec)
}

// RequestRevision transitions to NEEDS_REVISION with a mandatory reason.
func (s *Service) RequestRevision(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error) {
	return s.transition(ctx, "request_revision", appID, transitionSpec{
		action: audit.ActionRevisionRequested,
		reason: reason,
		guard: func(app *models.Application, _ requestcontext.AdminActor) error {
			return app.CanRequestRevision(reason)
		},
		apply: func(app *models.Application, actor requestcontext.AdminActor, ctx context.Context) {
			app.ApplyRevisionRequest(reason, actor.ID, requestcontext.Now(ctx))
		},
		event: notify.EventRevisionRequested,
	})
}

// CompleteRevision is the applicant-side resubmission: NEEDS_REVISION back to
// UNDER_REVIEW. No admin actor is required.
func (s *Service) CompleteRevision(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	var updated *models.Application

	err := s.mutate(ctx, "complete_revision", appID, func(ctx context.Context) error {
		app, err := s.loadForReview(ctx, appID)
		if err != nil {
			return err
		}
		if err := app.CanCompleteRevision(); err != nil {
			return err
		}

		from := app.Status
		app.ApplyRevisionCompletion(requestcontext.Now(ctx))
		if err := s.storeUpdate(ctx, app); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: app.ID,
			Action:        audit.ActionRevisionCompleted,
			Metadata:      transitionMetadata(from, app.Status, ""),
		}); err != nil {
			return err
		}

		s.metrics.RecordTransition(from.String(), app.Status.String())
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:          notify.EventRevisionCompleted,
		ApplicationID: updated.ID,
		VendorID:      updated.VendorID,
		Status:        updated.Status.String(),
	})
	return updated, nil
}

// Reopen returns a REJECTED or CLOSED application to UNDER_REVIEW. Reopening
// a CLOSED application requires the actor's override capability.
func (s *Service) Reopen(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error) {
	return s.transition(ctx, "reopen", appID, transitionSpec{
		action: audit.ActionReopened,
		reason: reason,
		guard: func(app *models.Application, actor requestcontext.AdminActor) error {
			return app.CanReopen(reason, actor.CanOverride)
		},
		apply: func(app *models.Application, actor requestcontext.AdminActor, ctx context.Context) {
			app.ApplyReopen(reason, actor.ID, requestcontext.Now(ctx))
		},
		event: notify.EventApplicationReopened,
	})
}

// Close permanently closes an application with a mandatory reason.
func (s *Service) Close(ctx context.Context, appID id.ApplicationID, reason string) (*models.Application, error) {
	return s.transition(ctx, "close", appID, transitionSpec{
		action: audit.ActionClosed,
		reason: reason,
		guard: func(app *models.Application, _ requestcontext.AdminActor) error {
			return app.CanClose(reason)
		},
		apply: func(app *models.Application, actor requestcontext.AdminActor, ctx context.Context) {
			app.ApplyClosure(reason, actor.ID, requestcontext.Now(ctx))
		},
		event: notify.EventApplicationClosed,
	})
}

// transitionSpec describes one admin lifecycle transition: its guard, its
// mutation, the ledger action, an optional note written in the same
// transaction, and the optional post-commit event.
type transitionSpec struct {
	action audit.Action
	reason string
	guard  func(app *models.Application, actor requestcontext.AdminActor) error
	apply  func(app *models.Application, actor requestcontext.AdminActor, ctx context.Context)
	event  notify.EventType

	// noteContent, when non-empty, is appended as a note of
	// noteClassification alongside the transition. It shares the
	// transition's audit row rather than adding a NOTE_ADDED one.
	noteClassification models.NoteClassification
	noteContent        string
}

// transition runs the shared admin-transition shape: authenticate, load,
// guard, apply, persist, record, then publish after commit. A guard failure
// aborts before any write.
func (s *Service) transition(ctx context.Context, operation string, appID id.ApplicationID, spec transitionSpec) (*models.Application, error) {
	var updated *models.Application

	err := s.mutate(ctx, operation, appID, func(ctx context.Context) error {
		actor, err := requireActor(ctx)
		if err != nil {
			return err
		}
		app, err := s.loadForReview(ctx, appID)
		if err != nil {
			return err
		}
		if err := spec.guard(app, actor); err != nil {
			return err
		}

		from := app.Status
		spec.apply(app, actor, ctx)
		if err := s.storeUpdate(ctx, app); err != nil {
			return err
		}

		if spec.noteContent != "" {
			note, err := models.NewNote(app.ID, spec.noteClassification, spec.noteContent, &actor.ID, actor.Name, requestcontext.Now(ctx))
			if err != nil {
				return err
			}
			if err := s.notes.Append(ctx, note); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "persist note")
			}
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: app.ID,
			Action:        spec.action,
			ActorID:       audit.ActorRef(actor),
			ActorName:     actor.Name,
			Metadata:      transitionMetadata(from, app.Status, spec.reason),
		}); err != nil {
			return err
		}

		s.metrics.RecordTransition(from.String(), app.Status.String())
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	if spec.event != "" {
		s.publish(ctx, notify.Event{
			Type:          spec.event,
			ApplicationID: updated.ID,
			VendorID:      updated.VendorID,
			Status:        updated.Status.String(),
			Reason:        strings.TrimSpace(spec.reason),
		})
	}
	return updated, nil
}

func (s *Service) storeUpdate(ctx context.Context, app *models.Application) error {
	if err := s.apps.Update(ctx, app); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist application")
	}
	return nil
}

func transitionMetadata(from, to models.Status, reason string) structured.Value {
	fields := map[string]structured.Value{
		"from": structured.String(from.String()),
		"to":   structured.String(to.String()),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		fields["reason"] = structured.String(reason)
	}
	return structured.Map(fields)
}

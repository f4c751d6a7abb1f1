package service

import (
	"context"
	"errors"
	"time"

	"bazaar/internal/audit"
	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/platform/sentinel"
	"bazaar/pkg/requestcontext"
	"bazaar/pkg/structured"
)

// CompleteStep stores the submitted data and files for one checklist step,
// marks it done, and recomputes the application's step pointer. Completing a
// NEEDS_REVISION step clears its revision demand; completing a SKIPPED step
// un-skips it.
func (s *Service) CompleteStep(ctx context.Context, appID id.ApplicationID, number int, data structured.Value, files []models.FileRef) (*models.Step, error) {
	var completed *models.Step

	err := s.mutate(ctx, "complete_step", appID, func(ctx context.Context) error {
		app, step, err := s.loadStep(ctx, appID, number)
		if err != nil {
			return err
		}
		if err := step.CanComplete(); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		step.ApplyCompletion(data, files, now)
		if err := s.persistStep(ctx, app, step, now); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: appID,
			Action:        audit.ActionStepCompleted,
			Metadata:      stepMetadata(step),
		}); err != nil {
			return err
		}

		s.metrics.RecordStepCompletion(step.Slug)
		completed = step
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// SaveStepDraft stores partial data without completing the step.
func (s *Service) SaveStepDraft(ctx context.Context, appID id.ApplicationID, number int, data structured.Value) (*models.Step, error) {
	var saved *models.Step

	err := s.mutate(ctx, "save_step_draft", appID, func(ctx context.Context) error {
		_, step, err := s.loadStep(ctx, appID, number)
		if err != nil {
			return err
		}
		if step.Status == models.StepStatusCompleted {
			return dErrors.Newf(dErrors.CodeInvalidTransition, "step %d is already completed", number)
		}

		step.ApplyDraft(data, requestcontext.Now(ctx))
		if err := s.stepUpdate(ctx, step); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: appID,
			Action:        audit.ActionStepDraftSaved,
			Metadata:      stepMetadata(step),
		}); err != nil {
			return err
		}

		saved = step
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SkipStep skips an optional, still-pending step and advances the pointer.
func (s *Service) SkipStep(ctx context.Context, appID id.ApplicationID, number int) (*models.Step, error) {
	var skipped *models.Step

	err := s.mutate(ctx, "skip_step", appID, func(ctx context.Context) error {
		app, step, err := s.loadStep(ctx, appID, number)
		if err != nil {
			return err
		}
		if err := step.CanSkip(); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		step.ApplySkip(now)
		if err := s.persistStep(ctx, app, step, now); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: appID,
			Action:        audit.ActionStepSkipped,
			Metadata:      stepMetadata(step),
		}); err != nil {
			return err
		}

		skipped = step
		return nil
	})
	if err != nil {
		return nil, err
	}
	return skipped, nil
}

// RequestStepRevision flags one step for rework with mandatory notes. The
// application's top-level status is untouched; pair with RequestRevision to
// send the whole application back.
func (s *Service) RequestStepRevision(ctx context.Context, appID id.ApplicationID, number int, notes string) (*models.Step, error) {
	var flagged *models.Step

	err := s.mutate(ctx, "request_step_revision", appID, func(ctx context.Context) error {
		actor, err := requireActor(ctx)
		if err != nil {
			return err
		}
		app, step, err := s.loadStep(ctx, appID, number)
		if err != nil {
			return err
		}
		if err := step.CanRequestRevision(notes); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		step.ApplyRevisionRequest(notes, now)
		if err := s.persistStep(ctx, app, step, now); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: appID,
			Action:        audit.ActionStepRevisionRequested,
			ActorID:       audit.ActorRef(actor),
			ActorName:     actor.Name,
			Metadata:      stepMetadata(step),
		}); err != nil {
			return err
		}

		flagged = step
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flagged, nil
}

// loadStep fetches the application and one of its steps, enforcing the
// terminal-status freeze on all step mutation.
func (s *Service) loadStep(ctx context.Context, appID id.ApplicationID, number int) (*models.Application, *models.Step, error) {
	app, err := s.loadForReview(ctx, appID)
	if err != nil {
		return nil, nil, err
	}
	if err := app.CanMutateSubState(); err != nil {
		return nil, nil, err
	}

	step, err := s.steps.FindByNumber(ctx, appID, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.Newf(dErrors.CodeNotFound, "step %d not found", number)
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load step")
	}
	return app, step, nil
}

// persistStep writes the step and recomputes the parent's step pointer from
// the full checklist.
func (s *Service) persistStep(ctx context.Context, app *models.Application, step *models.Step, now time.Time) error {
	if err := s.stepUpdate(ctx, step); err != nil {
		return err
	}

	steps, err := s.steps.ListByApplication(ctx, app.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list steps")
	}
	app.AdvanceStep(steps, now)
	return s.storeUpdate(ctx, app)
}

func (s *Service) stepUpdate(ctx context.Context, step *models.Step) error {
	if err := s.steps.Update(ctx, step); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist step")
	}
	return nil
}

func stepMetadata(step *models.Step) structured.Value {
	fields := map[string]structured.Value{
		"step":   structured.Int(int64(step.Number)),
		"slug":   structured.String(step.Slug),
		"status": structured.String(string(step.Status)),
	}
	if step.RevisionNotes != "" {
		fields["notes"] = structured.String(step.RevisionNotes)
	}
	return structured.Map(fields)
}

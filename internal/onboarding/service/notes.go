package service

import (
	"context"

	"bazaar/internal/audit"
	"bazaar/internal/notify"
	"bazaar/internal/onboarding/models"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/requestcontext"
	"bazaar/pkg/structured"
)

// AddNote appends a note to an application. Notes are the one mutation
// terminal statuses still allow. A USER_FACING note owes the applicant a
// notification, published after commit.
func (s *Service) AddNote(ctx context.Context, appID id.ApplicationID, classification models.NoteClassification, content string) (*models.Note, error) {
	var (
		added    *models.Note
		vendorID id.VendorID
		status   models.Status
	)

	err := s.mutate(ctx, "add_note", appID, func(ctx context.Context) error {
		actor, err := requireActor(ctx)
		if err != nil {
			return err
		}
		app, err := s.loadForReview(ctx, appID)
		if err != nil {
			return err
		}
		vendorID = app.VendorID
		status = app.Status

		note, err := models.NewNote(app.ID, classification, content, &actor.ID, actor.Name, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.notes.Append(ctx, note); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "persist note")
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: app.ID,
			Action:        audit.ActionNoteAdded,
			ActorID:       audit.ActorRef(actor),
			ActorName:     actor.Name,
			Metadata: structured.Map(map[string]structured.Value{
				"classification": structured.String(string(classification)),
				"note_id":        structured.String(note.ID.String()),
			}),
		}); err != nil {
			return err
		}

		added = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	if classification == models.NoteUserFacing {
		s.publish(ctx, notify.Event{
			Type:          notify.EventNotePublished,
			ApplicationID: appID,
			VendorID:      vendorID,
			Status:        status.String(),
			Attributes:    map[string]string{"note_id": added.ID.String()},
		})
	}
	return added, nil
}

// AddSystemNote appends a SYSTEM note with no author, used by the workflow
// itself (for example when identity verification settles).
func (s *Service) AddSystemNote(ctx context.Context, appID id.ApplicationID, content string) (*models.Note, error) {
	var added *models.Note

	err := s.mutate(ctx, "add_system_note", appID, func(ctx context.Context) error {
		app, err := s.loadForReview(ctx, appID)
		if err != nil {
			return err
		}

		note, err := models.NewNote(app.ID, models.NoteSystem, content, nil, "", requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.notes.Append(ctx, note); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "persist note")
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: app.ID,
			Action:        audit.ActionNoteAdded,
			Metadata: structured.Map(map[string]structured.Value{
				"classification": structured.String(string(models.NoteSystem)),
				"note_id":        structured.String(note.ID.String()),
			}),
		}); err != nil {
			return err
		}

		added = note
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// ListNotes returns an application's notes oldest first. Applicant view
// restricts the listing to USER_FACING notes.
func (s *Service) ListNotes(ctx context.Context, appID id.ApplicationID, applicantView bool) ([]*models.Note, error) {
	if _, err := s.loadForReview(ctx, appID); err != nil {
		return nil, err
	}
	notes, err := s.notes.ListByApplication(ctx, appID, applicantView)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list notes")
	}
	return notes, nil
}

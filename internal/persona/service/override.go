package service

import (
	"context"
	"strings"

	"bazaar/internal/audit"
	"bazaar/internal/persona/models"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/requestcontext"
	"bazaar/pkg/structured"
)

// Override settles verification manually, bypassing the provider. The
// override capability is required and the reason lands in both the record and
// the ledger.
//
// Errors: CodeUnauthorized without an admin identity, CodeForbidden without
// the override capability, CodeNotFound when verification was never
// initiated, CodeValidation for an empty reason.
func (s *Service) Override(ctx context.Context, appID id.ApplicationID, reason string) (*models.Verification, error) {
	reason = strings.TrimSpace(reason)

	var updated *models.Verification
	err := s.mutate(ctx, "override", appID, func(ctx context.Context) error {
		actor, err := requireActor(ctx)
		if err != nil {
			return err
		}
		if !actor.CanOverride {
			return dErrors.New(dErrors.CodeForbidden, "overriding verification requires the override capability")
		}

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
		if err := v.CanOverride(reason); err != nil {
			return err
		}

		v.ApplyOverride(reason, actor.ID, requestcontext.Now(ctx))
		if err := s.verifications.Update(ctx, v); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update verification")
		}
		if err := s.syncApplication(ctx, app, v); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, audit.Entry{
			ApplicationID: appID,
			Action:        audit.ActionPersonaOverridden,
			ActorID:       audit.ActorRef(actor),
			ActorName:     actor.Name,
			Metadata: structured.Map(map[string]structured.Value{
				"reason": structured.String(reason),
			}),
		}); err != nil {
			return err
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOverride()
	return updated, nil
}

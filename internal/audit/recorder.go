package audit

import (
	"context"
	"log/slog"

	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/requestcontext"
)

// Recorder writes ledger entries with fail-closed semantics: if the entry
// cannot be persisted, the error propagates and the enclosing transaction
// rolls the business mutation back with it.
//
// Record accepts any action from the closed enum and never validates payload
// shape; the guarantee it gives is atomicity with the triggering mutation,
// which is why it must only be called inside tx.Runner.RunInTx.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder builds a Recorder. The logger may be nil.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one entry, stamping ID, request time, and request provenance
// when the caller left them empty.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if !entry.Action.IsValid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown audit action %q", entry.Action)
	}
	if entry.ID.IsNil() {
		entry.ID = id.NewAuditEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	entry = entry.WithProvenance(requestcontext.RequestProvenance(ctx))

	if err := r.store.Append(ctx, entry); err != nil {
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "audit append failed; rolling back mutation",
				"action", entry.Action.String(),
				"application_id", entry.ApplicationID.String(),
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit append failed")
	}
	return nil
}

// Trail returns the full ledger for an application, oldest first.
func (r *Recorder) Trail(ctx context.Context, appID id.ApplicationID) ([]Entry, error) {
	entries, err := r.store.ListByApplication(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit trail")
	}
	return entries, nil
}

// ActorRef converts an admin actor to the nullable reference stored on rows.
// A zero actor (system-generated entry) yields nil.
func ActorRef(actor requestcontext.AdminActor) *id.AdminID {
	if actor.ID.IsNil() {
		return nil
	}
	a := actor.ID
	return &a
}

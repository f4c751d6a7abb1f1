// Package audit is the append-only ledger of every state-changing action on a
// vendor application. No component mutates application state without writing
// one entry here, inside the same transaction as the mutation; the ledger is
// the legally authoritative history for compliance and dispute resolution.
package audit

import (
	"time"

	id "bazaar/pkg/domain"
	"bazaar/pkg/requestcontext"
	"bazaar/pkg/structured"
)

// Action is the closed vocabulary of auditable actions.
type Action string

const (
	ActionCreated               Action = "CREATED"
	ActionSubmitted             Action = "SUBMITTED"
	ActionApproved              Action = "APPROVED"
	ActionRejected              Action = "REJECTED"
	ActionRevisionRequested     Action = "REVISION_REQUESTED"
	ActionRevisionCompleted     Action = "REVISION_COMPLETED"
	ActionReopened              Action = "REOPENED"
	ActionClosed                Action = "CLOSED"
	ActionPersonaInitiated      Action = "PERSONA_INITIATED"
	ActionPersonaCompleted      Action = "PERSONA_COMPLETED"
	ActionPersonaFailed         Action = "PERSONA_FAILED"
	ActionPersonaOverridden     Action = "PERSONA_OVERRIDDEN"
	ActionStepCompleted         Action = "STEP_COMPLETED"
	ActionStepDraftSaved        Action = "STEP_DRAFT_SAVED"
	ActionStepSkipped           Action = "STEP_SKIPPED"
	ActionStepRevisionRequested Action = "STEP_REVISION_REQUESTED"
	ActionNoteAdded             Action = "NOTE_ADDED"
	ActionStatusChanged         Action = "STATUS_CHANGED"
)

// validActions is the single source of truth for the closed enum.
var validActions = map[Action]bool{
	ActionCreated:               true,
	ActionSubmitted:             true,
	ActionApproved:              true,
	ActionRejected:              true,
	ActionRevisionRequested:     true,
	ActionRevisionCompleted:     true,
	ActionReopened:              true,
	ActionClosed:                true,
	ActionPersonaInitiated:      true,
	ActionPersonaCompleted:      true,
	ActionPersonaFailed:         true,
	ActionPersonaOverridden:     true,
	ActionStepCompleted:         true,
	ActionStepDraftSaved:        true,
	ActionStepSkipped:           true,
	ActionStepRevisionRequested: true,
	ActionNoteAdded:             true,
	ActionStatusChanged:         true,
}

// IsValid reports whether the action belongs to the closed enum.
func (a Action) IsValid() bool { return validActions[a] }

func (a Action) String() string { return string(a) }

// Entry is one immutable ledger row. Entries are ordered by CreatedAt and are
// never updated or deleted once written.
type Entry struct {
	ID            id.AuditEntryID
	ApplicationID id.ApplicationID
	Action        Action
	// ActorID is nil for system-generated entries (webhook results).
	ActorID   *id.AdminID
	ActorName string
	Metadata  structured.Value
	IP        string
	UserAgent string
	Country   string
	CreatedAt time.Time
}

// WithProvenance copies request provenance onto the entry when it has none.
func (e Entry) WithProvenance(p requestcontext.Provenance) Entry {
	if e.IP == "" {
		e.IP = p.IP
	}
	if e.UserAgent == "" {
		e.UserAgent = p.UserAgent
	}
	if e.Country == "" {
		e.Country = p.Country
	}
	return e
}

package models

import (
	"strings"
	"time"

	personamodels "bazaar/internal/persona/models"
	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
)

// Application is the aggregate root for one vendor's onboarding application.
//
// Invariants:
//   - At most one active (non-soft-deleted) application exists per vendor;
//     the store's uniqueness constraint enforces it.
//   - Status moves only along the lifecycle transition table in status.go.
//   - APPROVED and CLOSED permit no further mutation of lifecycle, steps, or
//     verification; note-adding remains allowed.
//   - RevisionRequested implies a non-empty RevisionReason and
//     Status == NEEDS_REVISION.
//   - PersonaOverridden implies a non-empty PersonaOverrideReason and
//     PersonaStatus == OVERRIDDEN.
//   - Rows are never physically deleted; DeletedAt soft-deletes.
//
// All mutation goes through the Can*/Apply* pairs below, called by the
// lifecycle service inside one transaction together with the audit entry.
type Application struct {
	ID       id.ApplicationID
	VendorID id.VendorID
	Type     ApplicationType
	Status   Status

	CurrentStep int
	TotalSteps  int

	SubmittedAt time.Time
	ReviewedBy  *id.AdminID
	ReviewedAt  *time.Time
	ApprovedAt  *time.Time

	RejectedAt      *time.Time
	RejectionReason string

	RevisionRequested   bool
	RevisionRequestedAt *time.Time
	RevisionRequestedBy *id.AdminID
	RevisionReason      string
	RevisionCompletedAt *time.Time

	ClosedAt     *time.Time
	CloseReason  string
	ReopenReason string

	// LegacyNotes predates the note store; kept read-only for old rows.
	LegacyNotes string

	// Persona mirror fields summarize the verification sub-machine for list
	// screens without joining the verification table.
	PersonaInquiryID      string
	PersonaStatus         personamodels.Status
	PersonaVerifiedAt     *time.Time
	PersonaOverridden     bool
	PersonaOverrideReason string
	PersonaOverriddenBy   *id.AdminID
	PersonaOverriddenAt   *time.Time

	// Provenance of the original submission.
	SubmittedIP        string
	SubmittedUserAgent string
	SubmittedCountry   string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NewApplication builds a freshly submitted application in PENDING.
func NewApplication(appID id.ApplicationID, vendorID id.VendorID, appType ApplicationType, now time.Time) (*Application, error) {
	if vendorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "vendor id is required")
	}
	if !appType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown application type %q", appType)
	}
	return &Application{
		ID:            appID,
		VendorID:      vendorID,
		Type:          appType,
		Status:        StatusPending,
		CurrentStep:   1,
		TotalSteps:    len(StepTemplate(appType)),
		PersonaStatus: personamodels.StatusNotStarted,
		SubmittedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsDeleted reports whether the row is soft-deleted.
func (a *Application) IsDeleted() bool { return a.DeletedAt != nil }

// Guards mirrors the admin UI affordances for the current status. These are
// role-independent business rules; the reopen-from-CLOSED privilege check
// sits on top of them.
type Guards struct {
	CanApprove         bool `json:"can_approve"`
	CanReject          bool `json:"can_reject"`
	CanRequestRevision bool `json:"can_request_revision"`
	CanReopen          bool `json:"can_reopen"`
	CanClose           bool `json:"can_close"`
}

// Guards evaluates the guard booleans for the current status.
func (a *Application) Guards() Guards {
	terminal := a.Status.IsTerminal()
	return Guards{
		CanApprove:         !terminal,
		CanReject:          !terminal,
		CanRequestRevision: !terminal,
		CanReopen:          a.Status == StatusRejected || a.Status == StatusClosed,
		CanClose:           a.Status != StatusApproved && a.Status != StatusClosed,
	}
}

// CanApprove checks the approval guard. The verified-persona precondition is
// policy, supplied by the caller.
func (a *Application) CanApprove(requireSettledPersona bool) error {
	if a.Status.IsTerminal() {
		return a.terminalErr("approved")
	}
	if requireSettledPersona && !a.PersonaStatus.Settled() {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"identity verification is %s; it must be VERIFIED or OVERRIDDEN before approval", a.PersonaStatus)
	}
	return nil
}

// ApplyApproval transitions to APPROVED. Call CanApprove first.
func (a *Application) ApplyApproval(by id.AdminID, now time.Time) {
	a.Status = StatusApproved
	a.ApprovedAt = &now
	a.markReviewed(by, now)
}

// CanReject checks the rejection guard, including the mandatory reason.
func (a *Application) CanReject(reason string) error {
	if err := requireReason(reason, "rejection reason"); err != nil {
		return err
	}
	if a.Status.IsTerminal() {
		return a.terminalErr("rejected")
	}
	return nil
}

// ApplyRejection transitions to REJECTED. Call CanReject first.
func (a *Application) ApplyRejection(reason string, by id.AdminID, now time.Time) {
	a.Status = StatusRejected
	a.RejectedAt = &now
	a.RejectionReason = strings.TrimSpace(reason)
	a.markReviewed(by, now)
}

// CanRequestRevision checks the revision-request guard.
func (a *Application) CanRequestRevision(reason string) error {
	if err := requireReason(reason, "revision reason"); err != nil {
		return err
	}
	if a.Status.IsTerminal() {
		return a.terminalErr("sent back for revision")
	}
	return nil
}

// ApplyRevisionRequest transitions to NEEDS_REVISION. Call CanRequestRevision
// first.
func (a *Application) ApplyRevisionRequest(reason string, by id.AdminID, now time.Time) {
	a.Status = StatusNeedsRevision
	a.RevisionRequested = true
	a.RevisionRequestedAt = &now
	a.RevisionRequestedBy = &by
	a.RevisionReason = strings.TrimSpace(reason)
	a.RevisionCompletedAt = nil
	a.UpdatedAt = now
}

// CanCompleteRevision checks the applicant-resubmission guard.
func (a *Application) CanCompleteRevision() error {
	if a.Status != StatusNeedsRevision {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"application is %s; only NEEDS_REVISION applications can be resubmitted", a.Status)
	}
	return nil
}

// ApplyRevisionCompletion returns the application to UNDER_REVIEW after the
// applicant resubmits. Call CanCompleteRevision first.
func (a *Application) ApplyRevisionCompletion(now time.Time) {
	a.Status = StatusUnderReview
	a.RevisionRequested = false
	a.RevisionCompletedAt = &now
	a.UpdatedAt = now
}

// CanReopen checks the reopen guard. Reopening a permanently closed
// application needs the override capability; a rejected one does not.
func (a *Application) CanReopen(reason string, canOverride bool) error {
	if err := requireReason(reason, "reopen reason"); err != nil {
		return err
	}
	if a.Status != StatusRejected && a.Status != StatusClosed {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"application is %s; only REJECTED or CLOSED applications can be reopened", a.Status)
	}
	if a.Status == StatusClosed && !canOverride {
		return dErrors.New(dErrors.CodeForbidden,
			"reopening a permanently closed application requires the override capability")
	}
	return nil
}

// ApplyReopen returns the application to UNDER_REVIEW. Terminal markers are
// cleared; the rejection/closure history stays on the row for the record.
func (a *Application) ApplyReopen(reason string, by id.AdminID, now time.Time) {
	a.Status = StatusUnderReview
	a.ReopenReason = strings.TrimSpace(reason)
	a.markReviewed(by, now)
}

// CanClose checks the permanent-closure guard.
func (a *Application) CanClose(reason string) error {
	if err := requireReason(reason, "close reason"); err != nil {
		return err
	}
	if a.Status == StatusApproved {
		return dErrors.New(dErrors.CodeInvalidTransition, "an approved application cannot be closed")
	}
	if a.Status == StatusClosed {
		return dErrors.New(dErrors.CodeInvalidTransition, "application is already closed")
	}
	return nil
}

// ApplyClosure transitions to CLOSED. Call CanClose first.
func (a *Application) ApplyClosure(reason string, by id.AdminID, now time.Time) {
	a.Status = StatusClosed
	a.ClosedAt = &now
	a.CloseReason = strings.TrimSpace(reason)
	a.markReviewed(by, now)
}

// CanBeginReview checks the PENDING -> UNDER_REVIEW guard.
func (a *Application) CanBeginReview() error {
	if a.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"application is %s; only PENDING applications can enter review", a.Status)
	}
	return nil
}

// ApplyBeginReview transitions to UNDER_REVIEW. Call CanBeginReview first.
func (a *Application) ApplyBeginReview(by id.AdminID, now time.Time) {
	a.Status = StatusUnderReview
	a.markReviewed(by, now)
}

// CanMutateSubState reports whether steps and verification may still change.
// Shared guard for the step tracker and the persona sub-machine.
func (a *Application) CanMutateSubState() error {
	if a.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"application is %s and accepts no further changes", a.Status)
	}
	return nil
}

// SyncPersona copies the verification summary onto the mirror fields.
func (a *Application) SyncPersona(v *personamodels.Verification, now time.Time) {
	a.PersonaInquiryID = v.InquiryID
	a.PersonaStatus = v.Status
	a.PersonaVerifiedAt = v.VerifiedAt
	a.PersonaOverridden = v.Overridden
	a.PersonaOverrideReason = v.OverrideReason
	a.PersonaOverriddenBy = v.OverriddenBy
	a.PersonaOverriddenAt = v.OverriddenAt
	a.UpdatedAt = now
}

// AdvanceStep recomputes CurrentStep from the checklist: the lowest-numbered
// step that is neither COMPLETED nor SKIPPED, or TotalSteps when everything
// is done.
func (a *Application) AdvanceStep(steps []*Step, now time.Time) {
	current := a.TotalSteps
	for _, s := range sortedByNumber(steps) {
		if s.Status != StepStatusCompleted && s.Status != StepStatusSkipped {
			current = s.Number
			break
		}
	}
	a.CurrentStep = current
	a.UpdatedAt = now
}

// SoftDelete stamps the deletion timestamp.
func (a *Application) SoftDelete(now time.Time) {
	a.DeletedAt = &now
	a.UpdatedAt = now
}

// markReviewed stamps the reviewing admin and closes any open revision
// request; every admin transition out of NEEDS_REVISION ends the request.
// RevisionReason stays on the row for the record.
func (a *Application) markReviewed(by id.AdminID, now time.Time) {
	a.ReviewedBy = &by
	a.ReviewedAt = &now
	a.RevisionRequested = false
	a.UpdatedAt = now
}

func (a *Application) terminalErr(verb string) error {
	return dErrors.Newf(dErrors.CodeInvalidTransition,
		"application is %s and cannot be %s", a.Status, verb)
}

func requireReason(reason, what string) error {
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeValidation, what+" is required")
	}
	return nil
}

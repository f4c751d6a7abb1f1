// Package models holds the identity verification sub-machine: the state of
// one external verification inquiry, independent of the parent application's
// lifecycle status.
package models

import (
	"encoding/json"
	"time"

	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
)

// Status is the verification sub-status. NOT_STARTED is the absence of a
// verification record, mirrored on the application; a Verification row exists
// only from PENDING onward.
type Status string

const (
	StatusNotStarted  Status = "NOT_STARTED"
	StatusPending     Status = "PENDING"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusVerified    Status = "VERIFIED"
	StatusFailed      Status = "FAILED"
	StatusOverridden  Status = "OVERRIDDEN"
)

// transitions is the sub-machine's legal-transition table. OVERRIDDEN is
// reachable from every non-terminal, started state via the admin override
// path and is handled by CanOverride rather than listed per-state.
var transitions = map[Status]map[Status]bool{
	StatusNotStarted: {
		StatusPending: true,
	},
	StatusPending: {
		StatusPending:     true, // retry mints a fresh inquiry
		StatusUnderReview: true,
		StatusVerified:    true,
		StatusFailed:      true,
	},
	StatusUnderReview: {
		StatusVerified: true,
		StatusFailed:   true,
	},
	StatusFailed: {
		StatusPending: true, // retry
	},
	StatusVerified:   {},
	StatusOverridden: {},
}

// IsTerminal reports whether the sub-machine accepts no further provider
// results.
func (s Status) IsTerminal() bool { return s == StatusVerified || s == StatusOverridden }

// Settled reports whether identity verification no longer blocks approval
// under the verified-persona policy.
func (s Status) Settled() bool { return s == StatusVerified || s == StatusOverridden }

// CanTransitionTo consults the transition table.
func (s Status) CanTransitionTo(next Status) bool { return transitions[s][next] }

func (s Status) String() string { return string(s) }

// Verification tracks one application's external identity inquiry. At most
// one row exists per application; retries reuse the row with a fresh inquiry
// reference, preserving history in the audit ledger instead.
type Verification struct {
	ApplicationID id.ApplicationID
	// InquiryID is the provider's unique inquiry reference.
	InquiryID string
	Status    Status
	// RawPayload is the provider's last delivered payload, kept verbatim for
	// dispute resolution.
	RawPayload json.RawMessage
	// VerificationURL is the hosted flow the applicant completes.
	VerificationURL string
	LastCheckedAt   *time.Time
	FailureReason   string

	Overridden     bool
	OverrideReason string
	OverriddenBy   *id.AdminID
	OverriddenAt   *time.Time

	VerifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewVerification builds the PENDING record created by initiate.
func NewVerification(appID id.ApplicationID, inquiryID, verificationURL string, now time.Time) (*Verification, error) {
	if inquiryID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "inquiry reference cannot be empty")
	}
	return &Verification{
		ApplicationID:   appID,
		InquiryID:       inquiryID,
		Status:          StatusPending,
		VerificationURL: verificationURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanRetry checks the retry guard: a fresh inquiry may be requested only
// while the current one is PENDING or FAILED.
func (v *Verification) CanRetry() error {
	if v.Status != StatusPending && v.Status != StatusFailed {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"verification cannot be retried from %s", v.Status)
	}
	return nil
}

// ApplyRetry swaps in the fresh inquiry. Call CanRetry first.
func (v *Verification) ApplyRetry(inquiryID, verificationURL string, now time.Time) {
	v.InquiryID = inquiryID
	v.VerificationURL = verificationURL
	v.Status = StatusPending
	v.FailureReason = ""
	v.UpdatedAt = now
}

// CanApplyResult checks whether a provider result for the given inquiry may
// be applied. Redelivery of a result to an already-terminal sub-status is
// reported via ErrAlreadyApplied so callers can treat it as a no-op.
func (v *Verification) CanApplyResult(inquiryID string, outcome Status) error {
	if outcome != StatusVerified && outcome != StatusFailed && outcome != StatusUnderReview {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "provider outcome %s is not applicable", outcome)
	}
	if v.InquiryID == inquiryID && (v.Status.IsTerminal() || v.Status == outcome) {
		return ErrAlreadyApplied
	}
	if v.InquiryID != inquiryID {
		// A retry superseded this inquiry; the late result is ignorable.
		return ErrStaleInquiry
	}
	if !v.Status.CanTransitionTo(outcome) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"verification cannot move from %s to %s", v.Status, outcome)
	}
	return nil
}

// ApplyResult records the provider outcome. Call CanApplyResult first.
func (v *Verification) ApplyResult(outcome Status, payload json.RawMessage, failureReason string, now time.Time) {
	v.Status = outcome
	v.RawPayload = payload
	v.LastCheckedAt = &now
	v.UpdatedAt = now
	switch outcome {
	case StatusVerified:
		v.VerifiedAt = &now
		v.FailureReason = ""
	case StatusFailed:
		v.FailureReason = failureReason
	}
}

// CanOverride checks the override guard: any started, non-overridden
// sub-status may be overridden; the reason is mandatory.
func (v *Verification) CanOverride(reason string) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "override reason is required")
	}
	if v.Status == StatusOverridden {
		return dErrors.New(dErrors.CodeInvalidTransition, "verification is already overridden")
	}
	return nil
}

// ApplyOverride records the manual override. Call CanOverride first.
func (v *Verification) ApplyOverride(reason string, by id.AdminID, now time.Time) {
	v.Status = StatusOverridden
	v.Overridden = true
	v.OverrideReason = reason
	v.OverriddenBy = &by
	v.OverriddenAt = &now
	v.UpdatedAt = now
}

// ErrAlreadyApplied signals an idempotent redelivery; callers treat it as
// success without writing anything.
var ErrAlreadyApplied = dErrors.New(dErrors.CodeConflict, "provider result already applied")

// ErrStaleInquiry signals a result for an inquiry a retry has superseded;
// callers drop it without writing anything.
var ErrStaleInquiry = dErrors.New(dErrors.CodeConflict, "provider result references a superseded inquiry")

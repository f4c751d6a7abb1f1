package models

import dErrors "bazaar/pkg/domain-errors"

// Status is the top-level disposition of a vendor application.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusUnderReview   Status = "UNDER_REVIEW"
	StatusNeedsRevision Status = "NEEDS_REVISION"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusClosed        Status = "CLOSED"
)

// lifecycleTransitions is the exhaustive legal-transition table. Everything
// not listed here is illegal; guards consult this table rather than scattered
// boolean checks.
//
// APPROVED has no outgoing edges: it is fully terminal. CLOSED is absorbing
// for ordinary admins; the single CLOSED -> UNDER_REVIEW edge exists but is
// gated on the override capability at the service layer.
var lifecycleTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusUnderReview:   true,
		StatusApproved:      true,
		StatusRejected:      true,
		StatusNeedsRevision: true,
		StatusClosed:        true,
	},
	StatusUnderReview: {
		StatusApproved:      true,
		StatusRejected:      true,
		StatusNeedsRevision: true,
		StatusClosed:        true,
	},
	StatusNeedsRevision: {
		StatusUnderReview: true,
		StatusApproved:    true,
		StatusRejected:    true,
		StatusClosed:      true,
	},
	StatusRejected: {
		StatusUnderReview: true,
		StatusClosed:      true,
	},
	StatusClosed: {
		StatusUnderReview: true, // override capability required
	},
	StatusApproved: {},
}

var validStatuses = map[Status]bool{
	StatusPending:       true,
	StatusUnderReview:   true,
	StatusNeedsRevision: true,
	StatusApproved:      true,
	StatusRejected:      true,
	StatusClosed:        true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid application status %q", s)
	}
	return st, nil
}

// IsValid reports membership in the closed enum.
func (s Status) IsValid() bool { return validStatuses[s] }

// IsTerminal reports whether the status permits no further lifecycle, step,
// or verification mutation (note-adding stays allowed).
func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusClosed }

// CanTransitionTo consults the transition table.
func (s Status) CanTransitionTo(next Status) bool { return lifecycleTransitions[s][next] }

func (s Status) String() string { return string(s) }

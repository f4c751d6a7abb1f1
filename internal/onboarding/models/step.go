package models

import (
	"sort"
	"strings"
	"time"

	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/structured"
)

// StepStatus is the micro-status of one checklist step, independent of the
// parent application's lifecycle status.
type StepStatus string

const (
	StepStatusPending       StepStatus = "PENDING"
	StepStatusInProgress    StepStatus = "IN_PROGRESS"
	StepStatusCompleted     StepStatus = "COMPLETED"
	StepStatusNeedsRevision StepStatus = "NEEDS_REVISION"
	StepStatusSkipped       StepStatus = "SKIPPED"
)

// FileRef describes an uploaded document attached to a step. Storage
// mechanics live elsewhere; the engine only records descriptors.
type FileRef struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StorageKey  string `json:"storage_key"`
}

// Step is one unit of the fixed onboarding checklist. Unique per
// (application, number); created in bulk when the application is initialized
// and never deleted.
type Step struct {
	ID            id.StepID
	ApplicationID id.ApplicationID
	Number        int
	Name          string
	Slug          string
	Optional      bool
	Status        StepStatus
	Data          structured.Value
	Files         []FileRef
	CompletedAt   *time.Time

	RevisionRequired bool
	RevisionNotes    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanComplete checks the completion guard: a COMPLETED step stays completed.
func (s *Step) CanComplete() error {
	if s.Status == StepStatusCompleted {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "step %d is already completed", s.Number)
	}
	return nil
}

// ApplyCompletion stores the submitted data and files and marks the step
// done, clearing any outstanding revision demand. Call CanComplete first.
func (s *Step) ApplyCompletion(data structured.Value, files []FileRef, now time.Time) {
	s.Data = data
	if len(files) > 0 {
		s.Files = files
	}
	s.Status = StepStatusCompleted
	s.CompletedAt = &now
	s.RevisionRequired = false
	s.RevisionNotes = ""
	s.UpdatedAt = now
}

// ApplyDraft stores partial data without completing, moving a PENDING step to
// IN_PROGRESS.
func (s *Step) ApplyDraft(data structured.Value, now time.Time) {
	s.Data = data
	if s.Status == StepStatusPending {
		s.Status = StepStatusInProgress
	}
	s.UpdatedAt = now
}

// CanSkip checks the skip guard: only optional steps still PENDING.
func (s *Step) CanSkip() error {
	if !s.Optional {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "step %d is mandatory and cannot be skipped", s.Number)
	}
	if s.Status != StepStatusPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "step %d is %s and can no longer be skipped", s.Number, s.Status)
	}
	return nil
}

// ApplySkip marks an optional step skipped. Call CanSkip first.
func (s *Step) ApplySkip(now time.Time) {
	s.Status = StepStatusSkipped
	s.UpdatedAt = now
}

// CanRequestRevision checks the step revision guard; notes are mandatory.
func (s *Step) CanRequestRevision(notes string) error {
	if strings.TrimSpace(notes) == "" {
		return dErrors.New(dErrors.CodeValidation, "revision notes are required")
	}
	if s.Status == StepStatusSkipped {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "step %d was skipped; unskip it by completing it instead", s.Number)
	}
	return nil
}

// ApplyRevisionRequest flags the step for rework. Call CanRequestRevision
// first. The parent application's top-level status is deliberately untouched;
// the calling workflow decides whether to also send the whole application
// back for revision.
func (s *Step) ApplyRevisionRequest(notes string, now time.Time) {
	s.Status = StepStatusNeedsRevision
	s.RevisionRequired = true
	s.RevisionNotes = strings.TrimSpace(notes)
	s.CompletedAt = nil
	s.UpdatedAt = now
}

func sortedByNumber(steps []*Step) []*Step {
	out := append([]*Step{}, steps...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

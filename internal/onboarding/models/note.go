package models

import (
	"strings"
	"time"

	id "bazaar/pkg/domain"
	dErrors "bazaar/pkg/domain-errors"
	"bazaar/pkg/structured"
)

// NoteClassification controls who may see a note. Applicant visibility is
// determined solely by the classification: only USER_FACING notes are shown
// to the vendor; ADMIN_INTERNAL and SYSTEM stay admin-side.
type NoteClassification string

const (
	NoteAdminInternal NoteClassification = "ADMIN_INTERNAL"
	NoteUserFacing    NoteClassification = "USER_FACING"
	NoteSystem        NoteClassification = "SYSTEM"
)

// IsValid reports membership in the closed enum.
func (c NoteClassification) IsValid() bool {
	return c == NoteAdminInternal || c == NoteUserFacing || c == NoteSystem
}

// VisibleToApplicant reports whether the vendor may read notes of this
// classification.
func (c NoteClassification) VisibleToApplicant() bool { return c == NoteUserFacing }

// Note is one append-only piece of commentary on an application. AuthorID is
// nil for system-generated notes.
type Note struct {
	ID             id.NoteID
	ApplicationID  id.ApplicationID
	Classification NoteClassification
	Content        string
	Metadata       structured.Value
	AuthorID       *id.AdminID
	AuthorName     string
	CreatedAt      time.Time
}

// NewNote validates and builds a note. Empty content is a validation error.
func NewNote(appID id.ApplicationID, classification NoteClassification, content string, author *id.AdminID, authorName string, now time.Time) (*Note, error) {
	if !classification.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown note classification %q", classification)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "note content is required")
	}
	return &Note{
		ID:             id.NewNoteID(),
		ApplicationID:  appID,
		Classification: classification,
		Content:        content,
		AuthorID:       author,
		AuthorName:     authorName,
		CreatedAt:      now,
	}, nil
}

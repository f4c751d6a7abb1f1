// Package domain holds the typed identifiers shared across the onboarding
// engine. IDs are distinct types over uuid.UUID so an application ID can never
// be passed where a vendor ID is expected.
//
// Construct IDs from external input via the Parse* functions; direct casting
// bypasses validation and is reserved for trusted code paths (stores, tests).
package domain

import (
	"github.com/google/uuid"

	dErrors "bazaar/pkg/domain-errors"
)

// ApplicationID identifies a vendor onboarding application.
type ApplicationID uuid.UUID

// VendorID identifies the vendor account that submitted an application.
type VendorID uuid.UUID

// AdminID identifies the admin actor performing a review action.
type AdminID uuid.UUID

// StepID identifies one checklist step row.
type StepID uuid.UUID

// NoteID identifies one application note.
type NoteID uuid.UUID

// AuditEntryID identifies one audit ledger entry.
type AuditEntryID uuid.UUID

func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VendorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AdminID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id StepID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id NoteID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id VendorID) String() string { return uuid.UUID(id).String() }
func (id AdminID) String() string { return uuid.UUID(id).String() }
func (id StepID) String() string { return uuid.UUID(id).String() }
func (id NoteID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string { return uuid.UUID(id).String() }

// MarshalText renders IDs as canonical UUID strings in JSON and text
// encodings; defined types do not inherit uuid.UUID's methods.
func (id ApplicationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id VendorID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id AdminID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id StepID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id NoteID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id AuditEntryID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ApplicationID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ApplicationID(u)
	return err
}

func (id *VendorID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = VendorID(u)
	return err
}

func (id *AdminID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = AdminID(u)
	return err
}

func (id *StepID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = StepID(u)
	return err
}

func (id *NoteID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = NoteID(u)
	return err
}

func (id *AuditEntryID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = AuditEntryID(u)
	return err
}

// NewApplicationID mints a fresh application ID.
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }

// NewStepID mints a fresh step ID.
func NewStepID() StepID { return StepID(uuid.New()) }

// NewNoteID mints a fresh note ID.
func NewNoteID() NoteID { return NoteID(uuid.New()) }

// NewAuditEntryID mints a fresh audit entry ID.
func NewAuditEntryID() AuditEntryID { return AuditEntryID(uuid.New()) }

// ParseApplicationID parses an application ID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application id")
	return ApplicationID(u), err
}

// ParseVendorID parses a vendor ID from external input.
func ParseVendorID(s string) (VendorID, error) {
	u, err := parseUUID(s, "vendor id")
	return VendorID(u), err
}

// ParseAdminID parses an admin ID from external input.
func ParseAdminID(s string) (AdminID, error) {
	u, err := parseUUID(s, "admin id")
	return AdminID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil UUID")
	}
	return u, nil
}

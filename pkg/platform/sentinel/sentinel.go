package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors without
// knowing which backend produced them.
//
// These describe factual states about stored records, not validation failures;
// validation belongs to pkg/domain-errors.
var (
	// ErrNotFound: the record does not exist (or is soft-deleted).
	ErrNotFound = errors.New("not found")
	// ErrConflict: a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the record exists but is in the wrong state for the
	// requested mutation.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: the backing service cannot be reached.
	ErrUnavailable = errors.New("unavailable")
)

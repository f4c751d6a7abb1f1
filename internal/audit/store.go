package audit

import (
	"context"

	id "bazaar/pkg/domain"
)

// Store persists ledger entries. Implementations must honor an open context
// transaction so an entry commits atomically with its triggering mutation.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByApplication(ctx context.Context, appID id.ApplicationID) ([]Entry, error)
	// CountByAction supports the exactly-once-per-mutation property in tests
	// and reconciliation jobs.
	CountByAction(ctx context.Context, appID id.ApplicationID, action Action) (int, error)
}

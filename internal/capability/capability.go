// Package capability grants marketplace capabilities to vendor accounts.
// Granting happens after the approval transaction commits; a grant failure
// is logged and retried by reconciliation, never unwound into the decision.
package capability

import (
	"context"
	"log/slog"

	id "bazaar/pkg/domain"
)

// Granter provisions capabilities on the vendor account system.
type Granter interface {
	// GrantSeller enables selling for an approved vendor.
	GrantSeller(ctx context.Context, vendorID id.VendorID) error
}

// Noop logs grants without calling any account system. Used until the
// account service integration is configured, and in local development.
type Noop struct {
	Logger *slog.Logger
}

func (n Noop) GrantSeller(ctx context.Context, vendorID id.VendorID) error {
	if n.Logger != nil {
		n.Logger.InfoContext(ctx, "seller capability grant skipped (no granter configured)",
			"vendor_id", vendorID.String())
	}
	return nil
}

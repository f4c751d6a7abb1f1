// Package dedupe suppresses duplicate webhook deliveries. The provider
// retries deliveries at-least-once; the sub-machine's guards already make
// redelivery a no-op, but deduplication short-circuits the common case before
// it takes a transaction.
package dedupe

import "context"

// Deduper records webhook delivery IDs for a bounded window. Checking and
// marking are separate so a delivery is marked only after it has been fully
// handled; a redelivery after a transient failure is processed, not dropped.
type Deduper interface {
	// Seen reports whether deliveryID has already been handled.
	Seen(ctx context.Context, deliveryID string) (bool, error)
	// Mark records deliveryID as handled for the window.
	Mark(ctx context.Context, deliveryID string) error
}

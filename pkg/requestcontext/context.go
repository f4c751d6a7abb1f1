// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free
// of net/http lets services and workers share the accessors without pulling
// transport code in.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, testAdmin)
package requestcontext

import (
	"context"
	"time"

	id "bazaar/pkg/domain"
)

// AdminActor identifies who performs a review action and whether they hold
// the override capability (reopening closed applications, persona overrides
// are still allowed for any admin; the capability gates reopen-from-CLOSED).
type AdminActor struct {
	ID          id.AdminID
	Name        string
	CanOverride bool
}

// Provenance captures where a request came from, recorded on applications and
// audit entries for dispute resolution.
type Provenance struct {
	IP        string
	UserAgent string
	Country   string
}

type (
	actorKey       struct{}
	provenanceKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Actor retrieves the authenticated admin actor, zero-valued when unset.
func Actor(ctx context.Context) AdminActor {
	if a, ok := ctx.Value(actorKey{}).(AdminActor); ok {
		return a
	}
	return AdminActor{}
}

// WithActor injects the admin actor into the context.
func WithActor(ctx context.Context, actor AdminActor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequestProvenance retrieves client IP / user agent / country from context.
func RequestProvenance(ctx context.Context) Provenance {
	if p, ok := ctx.Value(provenanceKey{}).(Provenance); ok {
		return p
	}
	return Provenance{}
}

// WithProvenance injects request provenance into the context.
func WithProvenance(ctx context.Context, p Provenance) context.Context {
	return context.WithValue(ctx, provenanceKey{}, p)
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context, falling back to
// time.Now for non-HTTP contexts (workers, tests that don't pin it).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins a specific time in the context. Middleware sets it once per
// request so every timestamp inside one mutation agrees; tests use it to make
// time deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

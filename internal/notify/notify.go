// Package notify emits workflow events for downstream consumers (vendor
// email, admin dashboards). Delivery is best-effort and post-commit: a lost
// event never unwinds a committed decision, and consumers must tolerate
// duplicates.
package notify

import (
	"context"
	"time"

	id "bazaar/pkg/domain"
)

// EventType enumerates the published workflow events.
type EventType string

const (
	EventApplicationCreated  EventType = "application.created"
	EventApplicationApproved EventType = "application.approved"
	EventApplicationRejected EventType = "application.rejected"
	EventRevisionRequested   EventType = "application.revision_requested"
	EventRevisionCompleted   EventType = "application.revision_completed"
	EventApplicationReopened EventType = "application.reopened"
	EventApplicationClosed   EventType = "application.closed"
	EventNotePublished       EventType = "application.note_published"
	EventPersonaVerified     EventType = "persona.verified"
	EventPersonaFailed       EventType = "persona.failed"
)

// Event is one workflow notification. Partitioned by application so each
// application's events stay ordered.
type Event struct {
	Type          EventType         `json:"type"`
	ApplicationID id.ApplicationID  `json:"application_id"`
	VendorID      id.VendorID       `json:"vendor_id"`
	Status        string            `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers events. Implementations must be safe for concurrent
// use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

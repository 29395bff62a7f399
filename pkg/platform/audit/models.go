package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryModeration covers punishment lifecycle transitions. These are the
	// records players appeal against and are kept long term.
	CategoryModeration EventCategory = "moderation"

	// CategorySecurity covers gate decisions: throttled or denied connections.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Subject is the punished identity (player UUID string).
	Subject string `json:"subject"`
	// ResourceID is the punishment internal id when the event concerns one.
	ResourceID string `json:"resource_id,omitempty"`
	Type       string `json:"type,omitempty"`
	Reason     string `json:"reason,omitempty"`
	// ActorID is the moderator or "System".
	ActorID   string `json:"actor_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// SubjectIPHash carries the correlation token, never the raw address.
	SubjectIPHash string     `json:"subject_ip_hash,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type AuditEvent string

const (
	EventPunishmentCreated   AuditEvent = "punishment_created"
	EventPunishmentRemoved   AuditEvent = "punishment_removed"
	EventConnectionDenied    AuditEvent = "connection_denied"
	EventConnectionThrottled AuditEvent = "connection_throttled"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventPunishmentCreated:   CategoryModeration,
	EventPunishmentRemoved:   CategoryModeration,
	EventConnectionDenied:    CategorySecurity,
	EventConnectionThrottled: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events for later review.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Package ports defines the interfaces the punishment engine consumes and
// exposes. Storage backends and notification sinks implement these.
package ports

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
	"warden/pkg/attrs"
	"warden/pkg/platform/audit"
	"warden/pkg/requestcontext"
)

// Store is the durable side of the engine. Implementations only filter on
// the active flag; expiry is the engine's job.
type Store interface {
	// AddPunishment inserts rec and appends its CREATE history entry.
	AddPunishment(ctx context.Context, rec models.Record) error

	// Deactivate clears the active flag and appends one history entry tagged
	// action. Unknown ids update nothing and write no history. ActionExpire
	// only applies to a record that is still active, so concurrent expiries
	// of one record leave a single EXPIRE entry.
	Deactivate(ctx context.Context, internalID, actor, reason string, action models.Action) error

	FindActiveByUUID(ctx context.Context, id uuid.UUID) ([]models.Record, error)
	FindActiveByIP(ctx context.Context, ip string) ([]models.Record, error)
	FindActiveByIPHash(ctx context.Context, hash string) ([]models.Record, error)

	// FindByInternalID returns (nil, nil) when no record has that id.
	FindByInternalID(ctx context.Context, internalID string) (*models.Record, error)

	// FindHistory returns the identity's history, most recent action first.
	FindHistory(ctx context.Context, id uuid.UUID) ([]models.HistoryRecord, error)

	// CountActiveWarns counts active WARN records for the identity.
	CountActiveWarns(ctx context.Context, id uuid.UUID) (int, error)
}

// CreateEvent is delivered after a punishment became active.
type CreateEvent struct {
	Record models.Record
}

// RemoveEvent is delivered after a punishment stopped being active.
type RemoveEvent struct {
	Record models.Record
	Reason string
}

// Listener receives lifecycle notifications. Delivery is at-least-once and
// runs on the engine's goroutine; listeners that need another execution
// context must hand off themselves.
type Listener interface {
	OnCreate(ctx context.Context, ev CreateEvent)
	OnRemove(ctx context.Context, ev RemoveEvent)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Create func(ctx context.Context, ev CreateEvent)
	Remove func(ctx context.Context, ev RemoveEvent)
}

func (f ListenerFuncs) OnCreate(ctx context.Context, ev CreateEvent) {
	if f.Create != nil {
		f.Create(ctx, ev)
	}
}

func (f ListenerFuncs) OnRemove(ctx context.Context, ev RemoveEvent) {
	if f.Remove != nil {
		f.Remove(ctx, ev)
	}
}

// AuditPublisher emits audit events for moderation and gate decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit is a shared helper for logging audit events across punishment services.
// It logs to both the structured logger and the audit publisher if available.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	args := append(attrList, "event", string(event), "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, string(event), args...)
	}

	if publisher == nil {
		return
	}
	ev := audit.Event{
		Category:      event.Category(),
		Timestamp:     requestcontext.Now(ctx),
		Action:        string(event),
		Subject:       attrs.ExtractString(attrList, "uuid"),
		ResourceID:    attrs.ExtractString(attrList, "internal_id"),
		Type:          attrs.ExtractString(attrList, "type"),
		Reason:        attrs.ExtractString(attrList, "reason"),
		ActorID:       attrs.ExtractString(attrList, "actor"),
		RequestID:     requestID,
		SubjectIPHash: attrs.ExtractString(attrList, "ip_hash"),
	}
	if err := publisher.Emit(ctx, ev); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

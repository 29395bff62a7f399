// Package observability turns lifecycle notifications into audit records.
package observability

import (
	"context"
	"errors"
	"log/slog"

	"warden/internal/punishment/ports"
	"warden/pkg/platform/audit"
)

// AuditListener logs every lifecycle notification as an audit line and
// forwards it to the configured audit publisher.
type AuditListener struct {
	logger    *slog.Logger
	publisher ports.AuditPublisher
}

func NewAuditListener(logger *slog.Logger, publisher ports.AuditPublisher) *AuditListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditListener{logger: logger, publisher: publisher}
}

var _ ports.Listener = (*AuditListener)(nil)

func (l *AuditListener) OnCreate(ctx context.Context, ev ports.CreateEvent) {
	rec := ev.Record
	attrs := []any{
		"internal_id", rec.InternalID,
		"uuid", rec.UUID.String(),
		"type", rec.Type.String(),
		"reason", rec.Reason,
		"actor", rec.Actor,
		"ip_hash", rec.IPHash,
		"silent", rec.Silent,
	}
	if rec.EndTime != nil {
		attrs = append(attrs, "end_time", rec.EndTime.UTC())
	}
	ports.LogAudit(ctx, l.logger, l.publisher, audit.EventPunishmentCreated, attrs...)
}

func (l *AuditListener) OnRemove(ctx context.Context, ev ports.RemoveEvent) {
	rec := ev.Record
	ports.LogAudit(ctx, l.logger, l.publisher, audit.EventPunishmentRemoved,
		"internal_id", rec.InternalID,
		"uuid", rec.UUID.String(),
		"type", rec.Type.String(),
		"reason", ev.Reason,
		"actor", rec.Actor,
		"ip_hash", rec.IPHash,
	)
}

// StorePublisher appends audit events to an audit.Store.
type StorePublisher struct {
	store audit.Store
}

func NewStorePublisher(store audit.Store) StorePublisher {
	return StorePublisher{store: store}
}

func (p StorePublisher) Emit(ctx context.Context, event audit.Event) error {
	return p.store.Append(ctx, event)
}

// FanOut emits to every publisher and joins their errors.
type FanOut []ports.AuditPublisher

func (f FanOut) Emit(ctx context.Context, event audit.Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"warden/internal/punishment/models"
)

const (
	originDirect = "direct"
	originSweep  = "sweep"
)

// CreatePunishment persists rec, refreshes the identity's snapshot and then
// notifies listeners. On a store failure nothing else happens.
func (s *Service) CreatePunishment(ctx context.Context, rec models.Record) (models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "punishment.create", trace.WithAttributes(
		attribute.String("punishment.internal_id", rec.InternalID),
		attribute.String("punishment.type", rec.Type.String()),
	))
	defer span.End()

	if err := s.store.AddPunishment(ctx, rec); err != nil {
		err = storageFailure("add punishment", err)
		markFailed(span, err)
		return models.Record{}, err
	}
	s.metrics.IncrementCreated(rec.Type.String())

	s.refreshCache(ctx, rec)
	s.notifyCreate(ctx, rec, originDirect)
	return rec, nil
}

// RemovePunishment deactivates the punishment with internalID. An unknown id
// is a no-op. The active flag is not re-checked, so removing an inactive
// record appends another history entry.
func (s *Service) RemovePunishment(ctx context.Context, internalID, actor, reason string, action models.Action) error {
	ctx, span := s.tracer.Start(ctx, "punishment.remove", trace.WithAttributes(
		attribute.String("punishment.internal_id", internalID),
		attribute.String("punishment.action", string(action)),
	))
	defer span.End()

	rec, err := s.store.FindByInternalID(ctx, internalID)
	if err != nil {
		err = storageFailure("find by internal id", err)
		markFailed(span, err)
		return err
	}
	if rec == nil {
		span.SetAttributes(attribute.Bool("punishment.found", false))
		return nil
	}

	if err := s.store.Deactivate(ctx, internalID, actor, reason, action); err != nil {
		err = storageFailure("deactivate", err)
		markFailed(span, err)
		return err
	}
	s.metrics.IncrementRemoved(rec.Type.String(), string(action))

	removed := *rec
	removed.Active = false
	s.refreshCache(ctx, removed)
	s.notifyRemove(ctx, removed, reason, originDirect)
	return nil
}

// refreshCache re-reads the snapshot of rec's identity after a write. The
// write already succeeded, so a failed read only drops the stale entry.
func (s *Service) refreshCache(ctx context.Context, rec models.Record) {
	records, err := s.fetchLive(ctx, rec.UUID)
	if err != nil {
		s.cache.Delete(rec.UUID)
		s.logger.WarnContext(ctx, "failed to refresh punishment cache",
			"uuid", rec.UUID.String(),
			"internal_id", rec.InternalID,
			"error", err,
		)
		return
	}
	s.cache.Store(rec.UUID, models.NewActiveSet(records))
}

func markFailed(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

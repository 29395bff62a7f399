package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"warden/internal/punishment/iphash"
	"warden/internal/punishment/models"
	"warden/pkg/requestcontext"
)

// GetActiveByUUID reads the identity's active punishments, expires the ones
// past their end time and caches the resulting snapshot. Concurrent calls for
// one identity share a single store round trip.
func (s *Service) GetActiveByUUID(ctx context.Context, id uuid.UUID) (models.ActiveSet, error) {
	ctx, span := s.tracer.Start(ctx, "punishment.active_by_uuid", trace.WithAttributes(
		attribute.String("punishment.uuid", id.String()),
	))
	defer span.End()

	records, err := s.loadShared(ctx, id)
	if err != nil {
		markFailed(span, err)
		return models.ActiveSet{}, err
	}
	set := models.NewActiveSet(records)
	s.cache.Store(id, set)
	return set, nil
}

// loadShared runs fetchLive for id once for all concurrent callers, the sweep
// included. The shared read is detached from the caller that started it and
// bounded by the sweep timeout; each caller still stops waiting when its own
// ctx ends.
func (s *Service) loadShared(ctx context.Context, id uuid.UUID) ([]models.Record, error) {
	ch := s.fetches.DoChan(id.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sweepTimeout)
		defer cancel()
		return s.fetchLive(fetchCtx, id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.Record), nil
	case <-ctx.Done():
		return nil, storageFailure("find active by uuid", ctx.Err())
	}
}

// GetActiveByIP applies the same expiry as GetActiveByUUID. Address lookups
// are not cached.
func (s *Service) GetActiveByIP(ctx context.Context, ip string) ([]models.Record, error) {
	records, err := s.store.FindActiveByIP(ctx, ip)
	if err != nil {
		return nil, storageFailure("find active by ip", err)
	}
	return s.expire(ctx, records)
}

func (s *Service) GetActiveByIPHash(ctx context.Context, hash string) ([]models.Record, error) {
	records, err := s.store.FindActiveByIPHash(ctx, hash)
	if err != nil {
		return nil, storageFailure("find active by ip hash", err)
	}
	return s.expire(ctx, records)
}

// GetActiveForConnection merges the identity's punishments with those matched
// by the raw and hashed address. Each internal id appears once; the identity
// match wins. uuid.Nil skips the identity lookup and a blank ip skips both
// address lookups.
func (s *Service) GetActiveForConnection(ctx context.Context, id uuid.UUID, ip string) ([]models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "punishment.active_for_connection")
	defer span.End()

	var byUUID, byIP, byHash []models.Record
	g, gctx := errgroup.WithContext(ctx)

	if id != uuid.Nil {
		g.Go(func() error {
			set, err := s.GetActiveByUUID(gctx, id)
			if err != nil {
				return err
			}
			byUUID = set.All()
			return nil
		})
	}
	if !isBlank(ip) {
		g.Go(func() error {
			records, err := s.GetActiveByIP(gctx, ip)
			byIP = records
			return err
		})
		g.Go(func() error {
			records, err := s.GetActiveByIPHash(gctx, iphash.Of(ip))
			byHash = records
			return err
		})
	}

	if err := g.Wait(); err != nil {
		markFailed(span, err)
		return nil, err
	}
	merged := mergeByInternalID(byUUID, byIP, byHash)
	span.SetAttributes(attribute.Int("punishment.matches", len(merged)))
	return merged, nil
}

// mergeByInternalID keeps the first occurrence of every internal id, in
// argument order.
func mergeByInternalID(groups ...[]models.Record) []models.Record {
	seen := make(map[string]struct{})
	var out []models.Record
	for _, group := range groups {
		for _, rec := range group {
			if _, dup := seen[rec.InternalID]; dup {
				continue
			}
			seen[rec.InternalID] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

func (s *Service) fetchLive(ctx context.Context, id uuid.UUID) ([]models.Record, error) {
	records, err := s.store.FindActiveByUUID(ctx, id)
	if err != nil {
		return nil, storageFailure("find active by uuid", err)
	}
	return s.expire(ctx, records)
}

// expire deactivates every record past its end time and returns the rest.
// Concurrent expiries of one internal id collapse into one store call.
func (s *Service) expire(ctx context.Context, records []models.Record) ([]models.Record, error) {
	now := requestcontext.Now(ctx)
	live := make([]models.Record, 0, len(records))
	g, gctx := errgroup.WithContext(ctx)

	for _, rec := range records {
		if !rec.IsExpired(now) {
			live = append(live, rec)
			continue
		}
		g.Go(func() error {
			_, err, shared := s.expiries.Do(rec.InternalID, func() (any, error) {
				return nil, s.store.Deactivate(gctx, rec.InternalID, models.SystemActor, expiredReason, models.ActionExpire)
			})
			if err != nil {
				return storageFailure("expire", err)
			}
			if !shared {
				s.metrics.IncrementExpired(rec.Type.String())
				s.logger.DebugContext(ctx, "punishment expired",
					"internal_id", rec.InternalID,
					"uuid", rec.UUID.String(),
					"type", rec.Type.String(),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return live, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

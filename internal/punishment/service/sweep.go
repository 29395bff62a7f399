package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"warden/internal/punishment/models"
	"warden/pkg/requestcontext"
)

var errClosed = errors.New("punishment service is closed")

// Start launches the reconciliation loop. The first sweep runs one poll
// interval after Start. Calling Start again is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.closed {
		return errClosed
	}
	if s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)

	s.logger.InfoContext(ctx, "punishment sweep started",
		"poll_interval", s.pollInterval.String(),
		"sweep_timeout", s.sweepTimeout.String(),
	)
	return nil
}

// Close stops the loop and waits for an in-flight sweep to return. No sweep
// starts after Close has been called.
func (s *Service) Close() error {
	s.lifecycleMu.Lock()
	s.closed = true
	cancel := s.cancel
	s.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.sweep(ctx)
		}
	}
}

// sweep refreshes every tracked identity and turns snapshot differences into
// notifications. One identity failing does not stop the others.
func (s *Service) sweep(ctx context.Context) {
	start := time.Now()
	ids := s.tracked.IDs()

	ctx, span := s.tracer.Start(ctx, "punishment.sweep", trace.WithAttributes(
		attribute.Int("punishment.tracked", len(ids)),
	))
	defer span.End()

	ctx = requestcontext.WithTime(ctx, s.clock())
	failures := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := s.reconcile(ctx, id); err != nil {
			failures++
			s.metrics.IncrementSweepFailures()
			s.logger.WarnContext(ctx, "sweep refresh failed",
				"uuid", id.String(),
				"error", err,
			)
		}
	}

	// Lookups of identities that are not connected leave entries behind;
	// they live until the next pass.
	evicted := s.cache.Retain(func(id uuid.UUID) bool {
		_, ok := s.tracked.Load(id)
		return ok
	})

	span.SetAttributes(
		attribute.Int("punishment.failures", failures),
		attribute.Int("punishment.evicted", evicted),
	)
	s.metrics.SetTracked(len(ids))
	s.metrics.ObserveSweepDuration(time.Since(start).Seconds())
}

func (s *Service) reconcile(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.sweepTimeout)
	defer cancel()

	records, err := s.loadShared(ctx, id)
	if err != nil {
		return err
	}

	current := models.NewActiveSet(records)
	previous, hadPrevious := s.cache.Swap(id, current)

	if _, stillTracked := s.tracked.Load(id); !stillTracked {
		// Untracked while the fetch was in flight.
		s.cache.Delete(id)
		return nil
	}
	if !hadPrevious {
		return nil
	}
	s.detectChanges(ctx, previous, current)
	return nil
}

func (s *Service) detectChanges(ctx context.Context, previous, current models.ActiveSet) {
	previousIDs := previous.IDs()
	currentIDs := current.IDs()

	for _, rec := range current.All() {
		if _, ok := previousIDs[rec.InternalID]; !ok {
			s.notifyCreate(ctx, rec, originSweep)
		}
	}
	for _, rec := range previous.All() {
		if _, ok := currentIDs[rec.InternalID]; !ok {
			rec.Active = false
			s.notifyRemove(ctx, rec, externalReason, originSweep)
		}
	}
}

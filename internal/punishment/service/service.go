// Package service implements the punishment lifecycle engine: the per-process
// view of which identities are currently punished, kept in step with the
// store through lazy expiry and a polling sweep over connected identities.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"warden/internal/punishment/metrics"
	"warden/internal/punishment/models"
	"warden/internal/punishment/ports"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultSweepTimeout = 10 * time.Second

	expiredReason  = "Expired"
	externalReason = "removed externally"

	tracerName = "warden/punishment"
)

// ErrStorageFailure wraps every store error returned by the engine. The
// original cause stays reachable through errors.Is and errors.As.
var ErrStorageFailure = errors.New("punishment storage failure")

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// Store is an alias to the shared storage contract.
type Store = ports.Store

type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time

	pollInterval time.Duration
	sweepTimeout time.Duration

	cache    snapshotCache
	tracked  trackedRegistry
	fetches  singleflight.Group
	expiries singleflight.Group

	listenersMu sync.RWMutex
	listeners   []ports.Listener

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	closed      bool
	wg          sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPollInterval sets the sweep period. Non-positive values keep the default.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithSweepTimeout bounds each shared per-identity store read, inside a sweep
// or not.
func WithSweepTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepTimeout = d
		}
	}
}

// WithClock overrides the time source used by the sweep. Direct calls read
// the time from their context via requestcontext.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("punishment store is required")
	}

	svc := &Service{
		store:        store,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		clock:        time.Now,
		pollInterval: DefaultPollInterval,
		sweepTimeout: DefaultSweepTimeout,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// Track marks id as connected so the sweep polls it. A blank ip is ignored.
func (s *Service) Track(id uuid.UUID, ip string) {
	if id == uuid.Nil || isBlank(ip) {
		return
	}
	s.tracked.Store(id, ip)
	s.metrics.SetTracked(s.tracked.Len())
}

// Untrack stops polling id and drops its cached snapshot.
func (s *Service) Untrack(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	s.tracked.Delete(id)
	s.cache.Delete(id)
	s.metrics.SetTracked(s.tracked.Len())
}

// TrackedIP returns the address id was tracked with.
func (s *Service) TrackedIP(id uuid.UUID) (string, bool) {
	return s.tracked.Load(id)
}

// Cached returns the last snapshot for id without touching the store.
func (s *Service) Cached(id uuid.UUID) (models.ActiveSet, bool) {
	return s.cache.Load(id)
}

// CacheSnapshot copies the whole cache.
func (s *Service) CacheSnapshot() map[uuid.UUID]models.ActiveSet {
	return s.cache.Snapshot()
}

// History returns the identity's history, most recent action first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]models.HistoryRecord, error) {
	history, err := s.store.FindHistory(ctx, id)
	if err != nil {
		return nil, storageFailure("find history", err)
	}
	return history, nil
}

// FindByInternalID returns nil without error when the id is unknown.
func (s *Service) FindByInternalID(ctx context.Context, internalID string) (*models.Record, error) {
	rec, err := s.store.FindByInternalID(ctx, internalID)
	if err != nil {
		return nil, storageFailure("find by internal id", err)
	}
	return rec, nil
}

// CountActiveWarns passes through to the store.
func (s *Service) CountActiveWarns(ctx context.Context, id uuid.UUID) (int, error) {
	n, err := s.store.CountActiveWarns(ctx, id)
	if err != nil {
		return 0, storageFailure("count active warns", err)
	}
	return n, nil
}

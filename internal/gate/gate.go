// Package gate decides whether an incoming connection may join the network.
// It throttles by address, then consults the lifecycle engine for any active
// punishment that blocks login.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"warden/internal/punishment/idgen"
	"warden/internal/punishment/iphash"
	"warden/internal/punishment/metrics"
	"warden/internal/punishment/models"
	"warden/internal/punishment/ports"
	"warden/pkg/platform/audit"
	"warden/pkg/requestcontext"
)

const DefaultHiddenReason = "Hidden"

// Engine is the slice of the lifecycle engine the gate needs.
type Engine interface {
	GetActiveForConnection(ctx context.Context, id uuid.UUID, ip string) ([]models.Record, error)
	Track(id uuid.UUID, ip string)
	Untrack(id uuid.UUID)
}

// Denial describes why a connection was refused.
type Denial struct {
	InternalID string      `json:"internal_id"`
	Type       models.Type `json:"type"`
	Reason     string      `json:"reason"`
	Actor      string      `json:"actor"`
	Permanent  bool        `json:"permanent"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	// Duration is the full punishment length, formatted.
	Duration string `json:"duration"`
	// Remaining is the time left at check time, formatted.
	Remaining string `json:"remaining"`
}

// Decision is the gate's verdict for one connection attempt.
type Decision struct {
	Allowed   bool    `json:"allowed"`
	Throttled bool    `json:"throttled"`
	Denial    *Denial `json:"denial,omitempty"`
}

type Gate struct {
	engine       Engine
	throttle     *Throttle
	hiddenReason string
	logger       *slog.Logger
	metrics      *metrics.Metrics
	auditor      ports.AuditPublisher
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithThrottle enables per-address throttling. Nil disables it.
func WithThrottle(t *Throttle) Option {
	return func(g *Gate) {
		g.throttle = t
	}
}

// WithHiddenReason replaces the reason shown for punishments issued without one.
func WithHiddenReason(reason string) Option {
	return func(g *Gate) {
		if strings.TrimSpace(reason) != "" {
			g.hiddenReason = reason
		}
	}
}

func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(g *Gate) {
		g.auditor = p
	}
}

func New(engine Engine, opts ...Option) (*Gate, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	g := &Gate{
		engine:       engine,
		hiddenReason: DefaultHiddenReason,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Check throttles, then looks up active punishments for the identity and
// address. Allowed connections are tracked so the sweep keeps their cache
// fresh. Lookup failures are returned without a decision.
func (g *Gate) Check(ctx context.Context, id uuid.UUID, ip string) (Decision, error) {
	ip = strings.TrimSpace(ip)
	now := requestcontext.Now(ctx)

	if g.throttle != nil && ip != "" && !g.throttle.Allow(ip, now) {
		g.metrics.IncrementThrottled()
		ports.LogAudit(ctx, g.logger, g.auditor, audit.EventConnectionThrottled,
			"uuid", id.String(),
			"ip_hash", iphash.Of(ip),
			"reason", "too many connections",
		)
		return Decision{Throttled: true}, nil
	}

	records, err := g.engine.GetActiveForConnection(ctx, id, ip)
	if err != nil {
		return Decision{}, err
	}

	for _, rec := range records {
		if !rec.Type.BlocksLogin() {
			continue
		}
		denial := g.denialFor(rec, now)
		g.metrics.IncrementDenied(rec.Type.String())
		ports.LogAudit(ctx, g.logger, g.auditor, audit.EventConnectionDenied,
			"uuid", id.String(),
			"internal_id", rec.InternalID,
			"type", rec.Type.String(),
			"reason", rec.Reason,
			"actor", rec.Actor,
			"ip_hash", iphash.Of(ip),
		)
		return Decision{Denial: &denial}, nil
	}

	if id != uuid.Nil {
		g.engine.Track(id, ip)
	}
	return Decision{Allowed: true}, nil
}

// Disconnect stops refreshing the identity's cached punishments.
func (g *Gate) Disconnect(id uuid.UUID) {
	g.engine.Untrack(id)
}

func (g *Gate) denialFor(rec models.Record, now time.Time) Denial {
	reason := rec.Reason
	if idgen.TagOf(rec.InternalID) == idgen.TagNoReason {
		reason = g.hiddenReason
	}
	d := Denial{
		InternalID: rec.InternalID,
		Type:       rec.Type,
		Reason:     reason,
		Actor:      rec.Actor,
		Permanent:  rec.IsPermanent(),
		EndTime:    rec.EndTime,
	}
	if rec.IsPermanent() {
		d.Duration = models.FormatDuration(0)
		d.Remaining = models.FormatDuration(0)
	} else {
		d.Duration = models.FormatDuration(time.Duration(rec.DurationSeconds()) * time.Second)
		d.Remaining = models.FormatDuration(rec.Remaining(now))
	}
	return d
}

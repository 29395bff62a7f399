package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"warden/internal/punishment/idgen"
	"warden/internal/punishment/iphash"
	"warden/internal/punishment/models"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

const (
	DefaultWarnLimit       = 3
	DefaultAutoIPBanReason = "Too many warnings"
)

// IssueRequest is what a moderator asks for. Duration 0 means permanent.
type IssueRequest struct {
	UUID     uuid.UUID
	Type     models.Type
	Reason   string
	Duration time.Duration
	Actor    string
	IP       string
	Silent   bool
	// NoReason hides the reason from the punished player.
	NoReason bool
}

// IssueResult carries the created record and, when the request tipped the
// identity over the warn limit, the automatic address ban that followed.
type IssueResult struct {
	Record     models.Record
	Escalation *models.Record
}

// Issuer turns moderator requests into records and hands them to the engine.
type Issuer struct {
	engine          *Service
	logger          *slog.Logger
	warnLimit       int
	autoIPBanReason string
}

type IssuerOption func(*Issuer)

func WithIssuerLogger(logger *slog.Logger) IssuerOption {
	return func(i *Issuer) {
		i.logger = logger
	}
}

// WithWarnEscalation sets how many active warns trigger a permanent address
// ban. A limit of 0 disables escalation.
func WithWarnEscalation(limit int, reason string) IssuerOption {
	return func(i *Issuer) {
		i.warnLimit = limit
		if strings.TrimSpace(reason) != "" {
			i.autoIPBanReason = reason
		}
	}
}

func NewIssuer(engine *Service, opts ...IssuerOption) (*Issuer, error) {
	if engine == nil {
		return nil, errors.New("punishment engine is required")
	}
	i := &Issuer{
		engine:          engine,
		logger:          engine.logger,
		warnLimit:       DefaultWarnLimit,
		autoIPBanReason: DefaultAutoIPBanReason,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue validates req, rejects a second active punishment of the same type
// and creates the record. Warns stack, and may additionally produce an IPBAN.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	rec, err := i.buildRecord(ctx, req)
	if err != nil {
		return nil, err
	}

	active, err := i.engine.GetActiveByUUID(ctx, rec.UUID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read active punishments")
	}
	if rec.Type != models.TypeWarn && active.Has(rec.Type) {
		return nil, dErrors.New(dErrors.CodeConflict, "player already has an active "+rec.Type.String())
	}

	created, err := i.engine.CreatePunishment(ctx, rec)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create punishment")
	}
	i.logger.InfoContext(ctx, "punishment issued",
		"internal_id", created.InternalID,
		"uuid", created.UUID.String(),
		"type", created.Type.String(),
		"actor", created.Actor,
		"duration", models.FormatDuration(time.Duration(created.DurationSeconds())*time.Second),
		"silent", created.Silent,
	)

	result := &IssueResult{Record: created}
	if created.Type == models.TypeWarn {
		result.Escalation = i.escalate(ctx, created)
	}
	return result, nil
}

// escalate issues a permanent IPBAN once the identity holds warnLimit active
// warns. Failures are logged; the warn itself already succeeded.
func (i *Issuer) escalate(ctx context.Context, warn models.Record) *models.Record {
	if i.warnLimit <= 0 || warn.IP == "" {
		return nil
	}
	count, err := i.engine.CountActiveWarns(ctx, warn.UUID)
	if err != nil {
		i.logger.WarnContext(ctx, "failed to count active warns", "uuid", warn.UUID.String(), "error", err)
		return nil
	}
	if count < i.warnLimit {
		return nil
	}

	res, err := i.Issue(ctx, IssueRequest{
		UUID:   warn.UUID,
		Type:   models.TypeIPBan,
		Reason: i.autoIPBanReason,
		Actor:  models.SystemActor,
		IP:     warn.IP,
	})
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			i.logger.WarnContext(ctx, "warn escalation failed", "uuid", warn.UUID.String(), "error", err)
		}
		return nil
	}
	return &res.Record
}

func (i *Issuer) buildRecord(ctx context.Context, req IssueRequest) (models.Record, error) {
	if req.UUID == uuid.Nil {
		return models.Record{}, dErrors.New(dErrors.CodeInvalidInput, "uuid is required")
	}
	t, err := models.ParseType(req.Type.String())
	if err != nil {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown punishment type")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return models.Record{}, dErrors.New(dErrors.CodeInvalidInput, "reason is required")
	}
	if req.Duration < 0 {
		return models.Record{}, dErrors.New(dErrors.CodeInvalidInput, "duration must not be negative")
	}
	if t == models.TypeBan && req.Duration > 0 {
		t = models.TypeTempBan
	}
	if t == models.TypeTempBan && req.Duration == 0 {
		return models.Record{}, dErrors.New(dErrors.CodeInvalidInput, "TEMPBAN requires a duration")
	}
	ip := strings.TrimSpace(req.IP)
	if t == models.TypeIPBan && ip == "" {
		return models.Record{}, dErrors.New(dErrors.CodeInvalidInput, "IPBAN requires an ip")
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor = models.SystemActor
	}

	// Stores keep millisecond precision; aligning here keeps the returned
	// record equal to what a later read yields.
	start := requestcontext.Now(ctx).UTC().Truncate(time.Millisecond)
	var end *time.Time
	if req.Duration > 0 {
		e := start.Add(req.Duration).Truncate(time.Millisecond)
		end = &e
	}

	return models.Record{
		InternalID: idgen.Generate(idgen.TagFor(req.NoReason, end == nil)),
		UUID:       req.UUID,
		IP:         ip,
		IPHash:     iphash.Of(ip),
		Type:       t,
		Reason:     reason,
		Actor:      actor,
		StartTime:  start,
		EndTime:    end,
		Active:     true,
		Silent:     req.Silent,
	}, nil
}

// Package handler exposes the punishment engine over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"warden/internal/gate"
	"warden/internal/punishment/models"
	"warden/internal/punishment/service"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

const (
	defaultRevokeReason = "Revoked via API"
	defaultAuditLimit   = 100
	maxAuditLimit       = 1000
)

// Engine is the read and removal surface of the lifecycle engine.
type Engine interface {
	GetActiveByUUID(ctx context.Context, id uuid.UUID) (models.ActiveSet, error)
	History(ctx context.Context, id uuid.UUID) ([]models.HistoryRecord, error)
	FindByInternalID(ctx context.Context, internalID string) (*models.Record, error)
	RemovePunishment(ctx context.Context, internalID, actor, reason string, action models.Action) error
	CacheSnapshot() map[uuid.UUID]models.ActiveSet
}

type Issuer interface {
	Issue(ctx context.Context, req service.IssueRequest) (*service.IssueResult, error)
}

type Gate interface {
	Check(ctx context.Context, id uuid.UUID, ip string) (gate.Decision, error)
	Disconnect(id uuid.UUID)
}

// AuditLog is the read side of the audit trail. Optional.
type AuditLog interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
	ListBySubject(ctx context.Context, subject string) ([]audit.Event, error)
}

type Handler struct {
	engine   Engine
	issuer   Issuer
	gate     Gate
	auditLog AuditLog
	logger   *slog.Logger
}

func New(engine Engine, issuer Issuer, gate Gate, auditLog AuditLog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:   engine,
		issuer:   issuer,
		gate:     gate,
		auditLog: auditLog,
		logger:   logger,
	}
}

// Register mounts the versioned API on r. Authentication is the caller's
// concern.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/players/{uuid}/active", h.HandleActive)
	r.Get("/v1/players/{uuid}/history", h.HandleHistory)
	r.Post("/v1/punishments", h.HandleIssue)
	r.Get("/v1/punishments/{id}", h.HandleGet)
	r.Delete("/v1/punishments/{id}", h.HandleRevoke)
	r.Post("/v1/punishments/{id}/revoke", h.HandleRevoke)
	r.Get("/v1/connections/check", h.HandleCheck)
	r.Post("/v1/connections/disconnect", h.HandleDisconnect)
	r.Get("/v1/export/cache", h.HandleExport)
	if h.auditLog != nil {
		r.Get("/v1/audit", h.HandleAudit)
	}
}

func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathUUID(w, r)
	if !ok {
		return
	}
	set, err := h.engine.GetActiveByUUID(ctx, id)
	if err != nil {
		h.fail(ctx, w, "active lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(set.All()))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathUUID(w, r)
	if !ok {
		return
	}
	entries, err := h.engine.History(ctx, id)
	if err != nil {
		h.fail(ctx, w, "history lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistory(entries))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.engine.FindByInternalID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "punishment lookup failed", err)
		return
	}
	if rec == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "punishment not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(*rec))
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := httputil.DecodeJSON[IssueRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := body.toService(requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.issuer.Issue(ctx, req)
	if err != nil {
		h.fail(ctx, w, "issue failed", err)
		return
	}

	resp := IssueResponse{Punishment: toResponse(res.Record)}
	if res.Escalation != nil {
		esc := toResponse(*res.Escalation)
		resp.Escalation = &esc
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleRevoke deactivates a punishment. Revoking an inactive punishment
// succeeds and appends another history entry.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	internalID := chi.URLParam(r, "id")

	reason := strings.TrimSpace(r.URL.Query().Get("reason"))
	if r.ContentLength > 0 {
		body, err := httputil.DecodeJSON[RevokeRequest](r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if b := strings.TrimSpace(body.Reason); b != "" {
			reason = b
		}
	}
	if reason == "" {
		reason = defaultRevokeReason
	}

	rec, err := h.engine.FindByInternalID(ctx, internalID)
	if err != nil {
		h.fail(ctx, w, "punishment lookup failed", err)
		return
	}
	if rec == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "punishment not found"))
		return
	}

	actor := requestcontext.Actor(ctx)
	if actor == "" {
		actor = models.SystemActor
	}
	if err := h.engine.RemovePunishment(ctx, internalID, actor, reason, models.ActionManualRemove); err != nil {
		h.fail(ctx, w, "revoke failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	id := uuid.Nil
	if raw := strings.TrimSpace(q.Get("uuid")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "uuid must be a valid UUID"))
			return
		}
		id = parsed
	}
	ip := strings.TrimSpace(q.Get("ip"))
	if id == uuid.Nil && ip == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "uuid or ip is required"))
		return
	}

	decision, err := h.gate.Check(ctx, id, ip)
	if err != nil {
		h.fail(ctx, w, "connection check failed", err)
		return
	}
	status := http.StatusOK
	if decision.Throttled {
		status = http.StatusTooManyRequests
	}
	httputil.WriteJSON(w, status, decision)
}

func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("uuid")))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "uuid must be a valid UUID"))
		return
	}
	h.gate.Disconnect(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.CacheSnapshot()
	players := make(map[string][]PunishmentResponse, len(snapshot))
	for id, set := range snapshot {
		players[id.String()] = toResponses(set.All())
	}
	httputil.WriteJSON(w, http.StatusOK, ExportResponse{
		GeneratedAt: requestcontext.Now(r.Context()),
		Players:     players,
	})
}

func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if subject := strings.TrimSpace(q.Get("subject")); subject != "" {
		events, err := h.auditLog.ListBySubject(ctx, subject)
		if err != nil {
			h.fail(ctx, w, "audit lookup failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, events)
		return
	}

	limit := defaultAuditLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxAuditLimit)
	}
	events, err := h.auditLog.ListRecent(ctx, limit)
	if err != nil {
		h.fail(ctx, w, "audit lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "uuid must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// fail logs and writes err. Storage failures from the engine surface as 503.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, service.ErrStorageFailure) && dErrors.CodeOf(err) == dErrors.CodeInternal {
		err = dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

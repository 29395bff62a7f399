package handler

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
	"warden/internal/punishment/service"
	dErrors "warden/pkg/domain-errors"
)

// IssueRequest is the body of POST /v1/punishments. Duration uses the
// "1d2h30m" notation; blank or "perm" means permanent.
type IssueRequest struct {
	UUID     string `json:"uuid"`
	Type     string `json:"type"`
	Reason   string `json:"reason"`
	Duration string `json:"duration"`
	IP       string `json:"ip"`
	Silent   bool   `json:"silent"`
	NoReason bool   `json:"no_reason"`
}

func (r IssueRequest) toService(actor string) (service.IssueRequest, error) {
	id, err := uuid.Parse(strings.TrimSpace(r.UUID))
	if err != nil {
		return service.IssueRequest{}, dErrors.New(dErrors.CodeInvalidInput, "uuid must be a valid UUID")
	}
	t, err := models.ParseType(r.Type)
	if err != nil {
		return service.IssueRequest{}, dErrors.New(dErrors.CodeInvalidInput, "unknown punishment type")
	}
	var d time.Duration
	if strings.TrimSpace(r.Duration) != "" {
		d, err = models.ParseDuration(r.Duration)
		if err != nil {
			return service.IssueRequest{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid duration")
		}
	}
	return service.IssueRequest{
		UUID:     id,
		Type:     t,
		Reason:   r.Reason,
		Duration: d,
		Actor:    actor,
		IP:       r.IP,
		Silent:   r.Silent,
		NoReason: r.NoReason,
	}, nil
}

// RevokeRequest is the optional body of a revoke call.
type RevokeRequest struct {
	Reason string `json:"reason"`
}

// PunishmentResponse omits the raw address; only the correlation hash leaves
// the service.
type PunishmentResponse struct {
	InternalID string      `json:"internal_id"`
	UUID       uuid.UUID   `json:"uuid"`
	IPHash     string      `json:"ip_hash,omitempty"`
	Type       models.Type `json:"type"`
	Reason     string      `json:"reason"`
	Actor      string      `json:"actor"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	Active     bool        `json:"active"`
	Silent     bool        `json:"silent"`
	Duration   string      `json:"duration"`
}

func toResponse(r models.Record) PunishmentResponse {
	return PunishmentResponse{
		InternalID: r.InternalID,
		UUID:       r.UUID,
		IPHash:     r.IPHash,
		Type:       r.Type,
		Reason:     r.Reason,
		Actor:      r.Actor,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Active:     r.Active,
		Silent:     r.Silent,
		Duration:   models.FormatDuration(time.Duration(r.DurationSeconds()) * time.Second),
	}
}

func toResponses(records []models.Record) []PunishmentResponse {
	out := make([]PunishmentResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toResponse(r))
	}
	return out
}

type HistoryResponse struct {
	ID         string        `json:"id"`
	InternalID string        `json:"internal_id"`
	Type       models.Type   `json:"type"`
	Reason     string        `json:"reason"`
	Actor      string        `json:"actor"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	Action     models.Action `json:"action"`
	ActionTime time.Time     `json:"action_time"`
}

func toHistory(entries []models.HistoryRecord) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			ID:         h.ID,
			InternalID: h.InternalID,
			Type:       h.Type,
			Reason:     h.Reason,
			Actor:      h.Actor,
			StartTime:  h.StartTime,
			EndTime:    h.EndTime,
			Action:     h.Action,
			ActionTime: h.ActionTime,
		})
	}
	return out
}

type IssueResponse struct {
	Punishment PunishmentResponse  `json:"punishment"`
	Escalation *PunishmentResponse `json:"escalation,omitempty"`
}

// ExportResponse is the cache dump served by GET /v1/export/cache.
type ExportResponse struct {
	GeneratedAt time.Time                       `json:"generated_at"`
	Players     map[string][]PunishmentResponse `json:"players"`
}

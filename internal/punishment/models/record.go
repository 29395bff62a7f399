package models

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record is one punishment instance. Only Active ever changes, and only from
// true to false.
type Record struct {
	InternalID string     `json:"internal_id"`
	UUID       uuid.UUID  `json:"uuid"`
	IP         string     `json:"ip,omitempty"`
	IPHash     string     `json:"ip_hash,omitempty"`
	Type       Type       `json:"type"`
	Reason     string     `json:"reason"`
	Actor      string     `json:"actor"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"` // nil = permanent
	Active     bool       `json:"active"`
	Silent     bool       `json:"silent"`
}

// IsPermanent reports whether the punishment has no end time.
func (r Record) IsPermanent() bool {
	return r.EndTime == nil
}

// IsExpired reports whether the end time has been reached at now.
func (r Record) IsExpired(now time.Time) bool {
	return r.EndTime != nil && !r.EndTime.After(now)
}

// DurationSeconds is EndTime-StartTime, or 0 for permanent punishments.
func (r Record) DurationSeconds() int64 {
	if r.EndTime == nil {
		return 0
	}
	return int64(r.EndTime.Sub(r.StartTime) / time.Second)
}

// Remaining is the time left at now, 0 when permanent or already past.
func (r Record) Remaining(now time.Time) time.Duration {
	if r.EndTime == nil || !r.EndTime.After(now) {
		return 0
	}
	return r.EndTime.Sub(now)
}

// HistoryRecord is an append-only audit entry for one lifecycle transition.
type HistoryRecord struct {
	ID         string     `json:"id"`
	InternalID string     `json:"internal_id"`
	UUID       uuid.UUID  `json:"uuid"`
	IP         string     `json:"ip,omitempty"`
	IPHash     string     `json:"ip_hash,omitempty"`
	Type       Type       `json:"type"`
	Reason     string     `json:"reason"`
	Actor      string     `json:"actor"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Action     Action     `json:"action"`
	ActionTime time.Time  `json:"action_time"`
}

// NewHistory denormalizes rec into a history entry. Reason and actor are the
// ones of the transition, which for removals differ from the record's own.
func NewHistory(rec Record, action Action, actor, reason string, at time.Time) HistoryRecord {
	return HistoryRecord{
		ID:         historyID(rec.InternalID, at),
		InternalID: rec.InternalID,
		UUID:       rec.UUID,
		IP:         rec.IP,
		IPHash:     rec.IPHash,
		Type:       rec.Type,
		Reason:     reason,
		Actor:      actor,
		StartTime:  rec.StartTime,
		EndTime:    rec.EndTime,
		Action:     action,
		ActionTime: at,
	}
}

// historyID keeps ids unique when two actions on one punishment land in the
// same millisecond.
func historyID(internalID string, at time.Time) string {
	var suffix [3]byte
	_, _ = rand.Read(suffix[:])
	return internalID + "-" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + hex.EncodeToString(suffix[:])
}

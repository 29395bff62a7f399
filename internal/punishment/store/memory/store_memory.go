// Package memory is an in-process punishment store for tests and
// single-node deployments without persistence.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

type InMemoryPunishmentStore struct {
	mu          sync.RWMutex
	punishments map[string]models.Record
	order       []string
	history     []models.HistoryRecord
}

func New() *InMemoryPunishmentStore {
	return &InMemoryPunishmentStore{
		punishments: make(map[string]models.Record),
	}
}

func (s *InMemoryPunishmentStore) AddPunishment(ctx context.Context, rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.punishments[rec.InternalID]; exists {
		return fmt.Errorf("punishment %s: %w", rec.InternalID, sentinel.ErrConflict)
	}
	s.punishments[rec.InternalID] = rec
	s.order = append(s.order, rec.InternalID)
	s.history = append(s.history, models.NewHistory(rec, models.ActionCreate, rec.Actor, rec.Reason, requestcontext.Now(ctx)))
	return nil
}

func (s *InMemoryPunishmentStore) Deactivate(ctx context.Context, internalID, actor, reason string, action models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.punishments[internalID]
	if !exists || (action == models.ActionExpire && !rec.Active) {
		return nil
	}
	rec.Active = false
	s.punishments[internalID] = rec
	s.history = append(s.history, models.NewHistory(rec, action, actor, reason, requestcontext.Now(ctx)))
	return nil
}

func (s *InMemoryPunishmentStore) FindActiveByUUID(_ context.Context, id uuid.UUID) ([]models.Record, error) {
	return s.findActive(func(r models.Record) bool { return r.UUID == id }), nil
}

func (s *InMemoryPunishmentStore) FindActiveByIP(_ context.Context, ip string) ([]models.Record, error) {
	if ip == "" {
		return nil, nil
	}
	return s.findActive(func(r models.Record) bool { return r.IP == ip }), nil
}

func (s *InMemoryPunishmentStore) FindActiveByIPHash(_ context.Context, hash string) ([]models.Record, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findActive(func(r models.Record) bool { return r.IPHash == hash }), nil
}

func (s *InMemoryPunishmentStore) FindByInternalID(_ context.Context, internalID string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.punishments[internalID]
	if !exists {
		return nil, nil
	}
	return &rec, nil
}

// FindHistory returns entries newest first. Entries with equal action times
// keep reverse insertion order.
func (s *InMemoryPunishmentStore) FindHistory(_ context.Context, id uuid.UUID) ([]models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.HistoryRecord
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].UUID == id {
			out = append(out, s.history[i])
		}
	}
	slices.SortStableFunc(out, func(a, b models.HistoryRecord) int {
		return b.ActionTime.Compare(a.ActionTime)
	})
	return out, nil
}

func (s *InMemoryPunishmentStore) CountActiveWarns(_ context.Context, id uuid.UUID) (int, error) {
	return len(s.findActive(func(r models.Record) bool {
		return r.UUID == id && r.Type == models.TypeWarn
	})), nil
}

// findActive returns matching active records in insertion order.
func (s *InMemoryPunishmentStore) findActive(match func(models.Record) bool) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Record
	for _, internalID := range s.order {
		rec := s.punishments[internalID]
		if rec.Active && match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

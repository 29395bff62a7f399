// Package redis stores punishments in Redis so several engine instances can
// share one punishment set without a SQL database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"warden/internal/punishment/models"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

const (
	recordKeyPrefix      = "warden:p:"
	activeUUIDKeyPrefix  = "warden:active:uuid:"
	activeIPKeyPrefix    = "warden:active:ip:"
	activeHashKeyPrefix  = "warden:active:iphash:"
	historyKeyPrefix     = "warden:hist:"
	maxOptimisticRetries = 5
)

// Store keeps each record as a JSON string, active ids in one set per lookup
// key, and history in an append-only list per identity.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func recordKey(id string) string { return recordKeyPrefix + id }

func historyKey(id uuid.UUID) string { return historyKeyPrefix + id.String() }

func activeKeys(rec models.Record) []string {
	keys := []string{activeUUIDKeyPrefix + rec.UUID.String()}
	if rec.IP != "" {
		keys = append(keys, activeIPKeyPrefix+rec.IP)
	}
	if rec.IPHash != "" {
		keys = append(keys, activeHashKeyPrefix+rec.IPHash)
	}
	return keys
}

// AddPunishment inserts rec and appends its CREATE history entry in one
// MULTI block. The record key is watched so a concurrent insert of the same
// id surfaces as a conflict.
func (s *Store) AddPunishment(ctx context.Context, rec models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode punishment: %w", err)
	}
	entry, err := json.Marshal(models.NewHistory(rec, models.ActionCreate, rec.Actor, rec.Reason, requestcontext.Now(ctx)))
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	key := recordKey(rec.InternalID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("punishment %s: %w", rec.InternalID, sentinel.ErrConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if rec.Active {
				for _, k := range activeKeys(rec) {
					pipe.SAdd(ctx, k, rec.InternalID)
				}
			}
			pipe.RPush(ctx, historyKey(rec.UUID), entry)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		if errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("punishment %s: %w", rec.InternalID, sentinel.ErrConflict)
		}
		return fmt.Errorf("add punishment: %w", err)
	}
	return nil
}

// Deactivate clears the active flag and appends one history entry. Unknown
// ids write nothing. Concurrent writers retry a bounded number of times.
func (s *Store) Deactivate(ctx context.Context, internalID, actor, reason string, action models.Action) error {
	key := recordKey(internalID)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var rec models.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode punishment: %w", err)
		}
		if action == models.ActionExpire && !rec.Active {
			return nil
		}
		rec.Active = false
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode punishment: %w", err)
		}
		now := requestcontext.Now(ctx)
		entry, err := json.Marshal(models.NewHistory(rec, action, actor, reason, now))
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			for _, k := range activeKeys(rec) {
				pipe.SRem(ctx, k, internalID)
			}
			pipe.RPush(ctx, historyKey(rec.UUID), entry)
			return nil
		})
		return err
	}

	for range maxOptimisticRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("deactivate punishment: %w", err)
		}
		return nil
	}
	return fmt.Errorf("deactivate punishment %s: %w", internalID, redis.TxFailedErr)
}

func (s *Store) FindActiveByUUID(ctx context.Context, id uuid.UUID) ([]models.Record, error) {
	return s.findActive(ctx, activeUUIDKeyPrefix+id.String())
}

func (s *Store) FindActiveByIP(ctx context.Context, ip string) ([]models.Record, error) {
	if ip == "" {
		return nil, nil
	}
	return s.findActive(ctx, activeIPKeyPrefix+ip)
}

func (s *Store) FindActiveByIPHash(ctx context.Context, hash string) ([]models.Record, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findActive(ctx, activeHashKeyPrefix+hash)
}

func (s *Store) FindByInternalID(ctx context.Context, internalID string) (*models.Record, error) {
	raw, err := s.client.Get(ctx, recordKey(internalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find punishment: %w", err)
	}
	var rec models.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode punishment: %w", err)
	}
	return &rec, nil
}

func (s *Store) FindHistory(ctx context.Context, id uuid.UUID) ([]models.HistoryRecord, error) {
	members, err := s.client.LRange(ctx, historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("find history: %w", err)
	}
	out := make([]models.HistoryRecord, 0, len(members))
	for i := len(members) - 1; i >= 0; i-- {
		var h models.HistoryRecord
		if err := json.Unmarshal([]byte(members[i]), &h); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		out = append(out, h)
	}
	// Entries sharing a millisecond keep reverse insertion order.
	slices.SortStableFunc(out, func(a, b models.HistoryRecord) int {
		return b.ActionTime.Compare(a.ActionTime)
	})
	return out, nil
}

func (s *Store) CountActiveWarns(ctx context.Context, id uuid.UUID) (int, error) {
	records, err := s.FindActiveByUUID(ctx, id)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range records {
		if r.Type == models.TypeWarn {
			n++
		}
	}
	return n, nil
}

func (s *Store) findActive(ctx context.Context, setKey string) ([]models.Record, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("find active punishments: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load active punishments: %w", err)
	}

	out := make([]models.Record, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec models.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode punishment: %w", err)
		}
		if rec.Active {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b models.Record) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.InternalID, b.InternalID)
	})
	return out, nil
}

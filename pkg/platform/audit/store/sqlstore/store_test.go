package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warden/internal/platform/database"
	audit "warden/pkg/platform/audit"
	txcontext "warden/pkg/platform/tx"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	t0    time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(s.T().TempDir(), "audit.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	s.store = New(db, nil)
	s.Require().NoError(s.store.EnsureSchema(ctx))
	s.Require().NoError(s.store.EnsureSchema(ctx))
	s.t0 = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) event(subject, action string, offset time.Duration) audit.Event {
	return audit.Event{
		Timestamp:     s.t0.Add(offset),
		Action:        action,
		Subject:       subject,
		ResourceID:    "PBRB-NV-AU001",
		Type:          "BAN",
		Reason:        "griefing",
		ActorID:       "Admin",
		SubjectIPHash: "c0ffee",
	}
}

func (s *StoreSuite) TestAppendAndList() {
	ctx := context.Background()
	expires := s.t0.Add(time.Hour)
	created := s.event("player-a", string(audit.EventPunishmentCreated), 0)
	created.ExpiresAt = &expires

	s.Require().NoError(s.store.Append(ctx, created))
	s.Require().NoError(s.store.Append(ctx, s.event("player-b", string(audit.EventConnectionDenied), time.Second)))
	s.Require().NoError(s.store.Append(ctx, s.event("player-a", string(audit.EventPunishmentRemoved), 2*time.Second)))

	s.Run("by subject oldest first with derived category", func() {
		got, err := s.store.ListBySubject(ctx, "player-a")
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(string(audit.EventPunishmentCreated), got[0].Action)
		s.Equal(audit.CategoryModeration, got[0].Category)
		s.Require().NotNil(got[0].ExpiresAt)
		s.True(expires.Equal(*got[0].ExpiresAt))
		s.Nil(got[1].ExpiresAt)
		s.True(s.t0.Equal(got[0].Timestamp))
	})

	s.Run("recent newest first", func() {
		got, err := s.store.ListRecent(ctx, 2)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(string(audit.EventPunishmentRemoved), got[0].Action)
		s.Equal(audit.CategorySecurity, got[1].Category)

		all, err := s.store.ListRecent(ctx, 0)
		s.Require().NoError(err)
		s.Len(all, 3)
	})
}

func (s *StoreSuite) TestAppendJoinsContextTransaction() {
	ctx := context.Background()
	outer, err := s.store.db.BeginTx(ctx, nil)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Append(txcontext.WithTx(ctx, outer), s.event("player-c", string(audit.EventPunishmentCreated), 0)))
	s.Require().NoError(outer.Rollback())

	got, err := s.store.ListBySubject(ctx, "player-c")
	s.Require().NoError(err)
	s.Empty(got)
}

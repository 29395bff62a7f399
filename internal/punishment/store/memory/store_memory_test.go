package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"warden/internal/punishment/models"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

type InMemoryPunishmentStoreSuite struct {
	suite.Suite
	store *InMemoryPunishmentStore
	start time.Time
}

func TestInMemoryPunishmentStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryPunishmentStoreSuite))
}

func (s *InMemoryPunishmentStoreSuite) SetupTest() {
	s.store = New()
	s.start = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryPunishmentStoreSuite) record(id string, player uuid.UUID, t models.Type) models.Record {
	return models.Record{
		InternalID: id,
		UUID:       player,
		IP:         "10.0.0.1",
		IPHash:     "hash-10.0.0.1",
		Type:       t,
		Reason:     "griefing",
		Actor:      "Admin",
		StartTime:  s.start,
		Active:     true,
	}
}

func (s *InMemoryPunishmentStoreSuite) TestAddPunishment() {
	ctx := requestcontext.WithTime(context.Background(), s.start)
	player := uuid.New()

	s.Run("stores record and appends CREATE history", func() {
		s.Require().NoError(s.store.AddPunishment(ctx, s.record("PBRB-NV-AAAAA", player, models.TypeBan)))

		got, err := s.store.FindByInternalID(ctx, "PBRB-NV-AAAAA")
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Nil(got.EndTime)

		history, err := s.store.FindHistory(ctx, player)
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.Equal(models.ActionCreate, history[0].Action)
		s.Equal(s.start, history[0].ActionTime)
	})

	s.Run("duplicate internal id conflicts", func() {
		err := s.store.AddPunishment(ctx, s.record("PBRB-NV-AAAAA", player, models.TypeBan))
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *InMemoryPunishmentStoreSuite) TestDeactivate() {
	ctx := requestcontext.WithTime(context.Background(), s.start)
	player := uuid.New()
	s.Require().NoError(s.store.AddPunishment(ctx, s.record("PBRB-TM-BBBBB", player, models.TypeMute)))

	s.Run("unknown id writes nothing", func() {
		s.NoError(s.store.Deactivate(ctx, "BAD-ID", "Admin", "test", models.ActionManualRemove))
		history, err := s.store.FindHistory(ctx, player)
		s.Require().NoError(err)
		s.Len(history, 1)
	})

	s.Run("clears active flag and records action", func() {
		later := requestcontext.WithTime(context.Background(), s.start.Add(time.Minute))
		s.Require().NoError(s.store.Deactivate(later, "PBRB-TM-BBBBB", "Admin", "appeal", models.ActionManualRemove))

		active, err := s.store.FindActiveByUUID(ctx, player)
		s.Require().NoError(err)
		s.Empty(active)

		history, err := s.store.FindHistory(ctx, player)
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Equal(models.ActionManualRemove, history[0].Action)
		s.Equal("appeal", history[0].Reason)
		s.Equal(models.ActionCreate, history[1].Action)
	})

	s.Run("deactivating twice appends a second entry", func() {
		s.Require().NoError(s.store.Deactivate(ctx, "PBRB-TM-BBBBB", "Admin", "again", models.ActionManualRemove))
		history, err := s.store.FindHistory(ctx, player)
		s.Require().NoError(err)
		s.Len(history, 3)
	})
}

func (s *InMemoryPunishmentStoreSuite) TestExpireAppliesOnce() {
	ctx := requestcontext.WithTime(context.Background(), s.start)
	player := uuid.New()
	s.Require().NoError(s.store.AddPunishment(ctx, s.record("PBRB-TM-CCCCC", player, models.TypeMute)))

	s.Require().NoError(s.store.Deactivate(ctx, "PBRB-TM-CCCCC", "CONSOLE", "expired", models.ActionExpire))
	s.Require().NoError(s.store.Deactivate(ctx, "PBRB-TM-CCCCC", "CONSOLE", "expired", models.ActionExpire))

	history, err := s.store.FindHistory(ctx, player)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(models.ActionExpire, history[0].Action)
	s.Equal(models.ActionCreate, history[1].Action)
}

func (s *InMemoryPunishmentStoreSuite) TestFindActive() {
	ctx := requestcontext.WithTime(context.Background(), s.start)
	player := uuid.New()
	other := uuid.New()
	s.Require().NoError(s.store.AddPunishment(ctx, s.record("PBRB-NV-CCCCC", player, models.TypeBan)))
	s.Require().NoError(s.store.AddPunishment(ctx, s.record("PBRB-NV-DDDDD", other, models.TypeWarn)))
	s.Require().NoError(s.store.AddPunishment(ctx, s.record("PBRB-NV-EEEEE", other, models.TypeWarn)))

	s.Run("by uuid", func() {
		got, err := s.store.FindActiveByUUID(ctx, player)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("PBRB-NV-CCCCC", got[0].InternalID)
	})

	s.Run("by ip and hash span identities", func() {
		byIP, err := s.store.FindActiveByIP(ctx, "10.0.0.1")
		s.Require().NoError(err)
		s.Len(byIP, 3)

		byHash, err := s.store.FindActiveByIPHash(ctx, "hash-10.0.0.1")
		s.Require().NoError(err)
		s.Len(byHash, 3)
	})

	s.Run("blank address matches nothing", func() {
		byIP, err := s.store.FindActiveByIP(ctx, "")
		s.Require().NoError(err)
		s.Empty(byIP)
	})

	s.Run("counts active warns", func() {
		n, err := s.store.CountActiveWarns(ctx, other)
		s.Require().NoError(err)
		s.Equal(2, n)
	})
}

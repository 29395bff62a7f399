package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"warden/internal/punishment/iphash"
	"warden/internal/punishment/models"
	"warden/internal/punishment/ports"
	"warden/internal/punishment/store/memory"
	"warden/pkg/requestcontext"
)

// =============================================================================
// Engine Lifecycle Suite (in-memory store)
// =============================================================================
// End-to-end behavior of the engine over a working store: expiry, history,
// reconciliation between two engines sharing one store.

type EngineSuite struct {
	suite.Suite
	store  *memory.InMemoryPunishmentStore
	engine *Service
	events *eventLog
	t0     time.Time
	player uuid.UUID
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) listener() ports.Listener {
	return ports.ListenerFuncs{
		Create: func(_ context.Context, ev ports.CreateEvent) {
			l.add("create:" + ev.Record.InternalID)
		},
		Remove: func(_ context.Context, ev ports.RemoveEvent) {
			l.add("remove:" + ev.Record.InternalID + ":" + ev.Reason)
		},
	}
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *EngineSuite) SetupTest() {
	s.store = memory.New()
	s.engine, _ = New(s.store, WithLogger(discardLogger()))
	s.events = &eventLog{}
	s.engine.RegisterListener(s.events.listener())
	s.t0 = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s.player = uuid.New()
}

func (s *EngineSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(d))
}

func (s *EngineSuite) tempBan(id string, length time.Duration) models.Record {
	end := s.t0.Add(length)
	return models.Record{
		InternalID: id,
		UUID:       s.player,
		IP:         "10.0.0.1",
		IPHash:     iphash.Of("10.0.0.1"),
		Type:       models.TypeTempBan,
		Reason:     "xray",
		Actor:      "Admin",
		StartTime:  s.t0,
		EndTime:    &end,
		Active:     true,
	}
}

func (s *EngineSuite) TestTempBanExpiresLazily() {
	rec := s.tempBan("PBRB-TM-U1BAN", 60*time.Second)
	_, err := s.engine.CreatePunishment(s.at(0), rec)
	s.Require().NoError(err)

	set, err := s.engine.GetActiveByUUID(s.at(30*time.Second), s.player)
	s.Require().NoError(err)
	got, ok := set.Get(models.TypeTempBan)
	s.Require().True(ok)
	s.Equal(rec.InternalID, got.InternalID)

	set, err = s.engine.GetActiveByUUID(s.at(61*time.Second), s.player)
	s.Require().NoError(err)
	s.Zero(set.Len())

	history, err := s.engine.History(s.at(61*time.Second), s.player)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	// newest first
	s.Equal(models.ActionExpire, history[0].Action)
	s.Equal(models.SystemActor, history[0].Actor)
	s.Equal(models.ActionCreate, history[1].Action)
	s.Equal(rec.InternalID, history[0].InternalID)
	s.Equal(rec.InternalID, history[1].InternalID)
}

func (s *EngineSuite) TestExpiryWritesOneHistoryEntry() {
	rec := s.tempBan("PBRB-TM-ONCE1", time.Minute)
	s.Require().NoError(s.store.AddPunishment(s.at(0), rec))

	for range 3 {
		set, err := s.engine.GetActiveByUUID(s.at(2*time.Minute), s.player)
		s.Require().NoError(err)
		s.Zero(set.Len())
	}

	history, err := s.engine.History(s.at(2*time.Minute), s.player)
	s.Require().NoError(err)
	expires := 0
	for _, h := range history {
		if h.Action == models.ActionExpire {
			expires++
		}
	}
	s.Equal(1, expires)
}

func (s *EngineSuite) TestRoundTripPermanent() {
	rec := s.tempBan("PBRB-NV-PERM1", 0)
	rec.Type = models.TypeBan
	rec.EndTime = nil
	rec.Silent = true

	_, err := s.engine.CreatePunishment(s.at(0), rec)
	s.Require().NoError(err)

	got, err := s.engine.FindByInternalID(s.at(0), rec.InternalID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(rec, *got)
	s.Nil(got.EndTime)
	s.True(got.IsPermanent())
}

func (s *EngineSuite) TestRemoveUnknownID() {
	err := s.engine.RemovePunishment(s.at(0), "BAD-ID", "Admin", "test", models.ActionManualRemove)
	s.Require().NoError(err)

	history, err := s.engine.History(s.at(0), s.player)
	s.Require().NoError(err)
	s.Empty(history)
	s.Empty(s.events.all())
}

func (s *EngineSuite) TestRemoveInactiveRecord() {
	rec := s.tempBan("PBRB-TM-TWICE", time.Hour)
	_, err := s.engine.CreatePunishment(s.at(0), rec)
	s.Require().NoError(err)

	s.Require().NoError(s.engine.RemovePunishment(s.at(time.Minute), rec.InternalID, "Admin", "appeal", models.ActionManualRemove))
	s.NotPanics(func() {
		err = s.engine.RemovePunishment(s.at(2*time.Minute), rec.InternalID, "Admin", "again", models.ActionManualRemove)
	})
	s.NoError(err)

	set, ok := s.engine.Cached(s.player)
	s.Require().True(ok)
	s.Zero(set.Len())
}

func (s *EngineSuite) TestConnectionMergeAcrossKeys() {
	rec := s.tempBan("PBRB-TM-MERGE", time.Hour)
	_, err := s.engine.CreatePunishment(s.at(0), rec)
	s.Require().NoError(err)

	got, err := s.engine.GetActiveForConnection(s.at(time.Minute), s.player, "10.0.0.1")
	s.Require().NoError(err)
	s.Len(got, 1)

	alt := uuid.New()
	got, err = s.engine.GetActiveForConnection(s.at(time.Minute), alt, "10.0.0.1")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(s.player, got[0].UUID)
}

func (s *EngineSuite) TestSweepReconcilesAcrossEngines() {
	other, _ := New(s.store, WithLogger(discardLogger()))
	clock := s.t0
	s.engine.clock = func() time.Time { return clock }
	s.engine.Track(s.player, "10.0.0.1")

	s.Run("first pass only caches", func() {
		s.Require().NoError(s.store.AddPunishment(s.at(0), s.tempBan("PBRB-TM-PRE01", time.Hour)))
		s.engine.sweep(context.Background())

		s.Empty(s.events.all())
		set, ok := s.engine.Cached(s.player)
		s.Require().True(ok)
		s.Equal(1, set.Len())
	})

	s.Run("punishment created elsewhere fires create", func() {
		rec := s.tempBan("PBRB-TM-EXT01", time.Hour)
		rec.Type = models.TypeMute
		_, err := other.CreatePunishment(s.at(time.Second), rec)
		s.Require().NoError(err)

		s.engine.sweep(context.Background())
		s.Equal([]string{"create:PBRB-TM-EXT01"}, s.events.all())
	})

	s.Run("punishment removed elsewhere fires remove", func() {
		s.Require().NoError(other.RemovePunishment(s.at(2*time.Second), "PBRB-TM-EXT01", "Mod", "appeal", models.ActionManualRemove))

		s.engine.sweep(context.Background())
		s.Equal([]string{
			"create:PBRB-TM-EXT01",
			"remove:PBRB-TM-EXT01:removed externally",
		}, s.events.all())
	})

	s.Run("expiry observed by the sweep is reported as a removal", func() {
		clock = s.t0.Add(2 * time.Hour)
		s.engine.sweep(context.Background())

		events := s.events.all()
		s.Require().Len(events, 3)
		s.Equal("remove:PBRB-TM-PRE01:removed externally", events[2])
	})

	s.Run("untracked identities are not polled", func() {
		s.engine.Untrack(s.player)
		rec := s.tempBan("PBRB-TM-EXT02", 3*time.Hour)
		_, err := other.CreatePunishment(s.at(2*time.Hour), rec)
		s.Require().NoError(err)

		s.engine.sweep(context.Background())
		s.Len(s.events.all(), 3)
	})
}

// countingStore counts identity reads so the loop can be observed.
type countingStore struct {
	*memory.InMemoryPunishmentStore
	reads atomic.Int64
}

func (c *countingStore) FindActiveByUUID(ctx context.Context, id uuid.UUID) ([]models.Record, error) {
	c.reads.Add(1)
	return c.InMemoryPunishmentStore.FindActiveByUUID(ctx, id)
}

func (s *EngineSuite) TestStartAndClose() {
	store := &countingStore{InMemoryPunishmentStore: memory.New()}
	engine, _ := New(store, WithLogger(discardLogger()), WithPollInterval(5*time.Millisecond))
	engine.Track(s.player, "10.0.0.1")

	s.Require().NoError(engine.Start(context.Background()))
	s.Require().NoError(engine.Start(context.Background()))
	s.Eventually(func() bool { return store.reads.Load() > 0 }, time.Second, time.Millisecond)

	s.Require().NoError(engine.Close())
	after := store.reads.Load()
	time.Sleep(30 * time.Millisecond)
	s.Equal(after, store.reads.Load())

	s.ErrorIs(engine.Start(context.Background()), errClosed)
	s.NoError(engine.Close())
}

// laggingStore delays each lookup key differently so the connection lookups
// finish one after another instead of overlapping.
type laggingStore struct {
	*memory.InMemoryPunishmentStore
	deactivations atomic.Int64
}

func (l *laggingStore) FindActiveByUUID(ctx context.Context, id uuid.UUID) ([]models.Record, error) {
	time.Sleep(2 * time.Millisecond)
	return l.InMemoryPunishmentStore.FindActiveByUUID(ctx, id)
}

func (l *laggingStore) FindActiveByIPHash(ctx context.Context, hash string) ([]models.Record, error) {
	time.Sleep(10 * time.Millisecond)
	return l.InMemoryPunishmentStore.FindActiveByIPHash(ctx, hash)
}

func (l *laggingStore) FindActiveByIP(ctx context.Context, ip string) ([]models.Record, error) {
	time.Sleep(20 * time.Millisecond)
	return l.InMemoryPunishmentStore.FindActiveByIP(ctx, ip)
}

func (l *laggingStore) Deactivate(ctx context.Context, internalID, actor, reason string, action models.Action) error {
	l.deactivations.Add(1)
	return l.InMemoryPunishmentStore.Deactivate(ctx, internalID, actor, reason, action)
}

func (s *EngineSuite) TestConnectionCheckExpiresOnceAcrossKeys() {
	store := &laggingStore{InMemoryPunishmentStore: memory.New()}
	engine, _ := New(store, WithLogger(discardLogger()))
	rec := s.tempBan("PBRB-TM-LAG01", time.Minute)
	s.Require().NoError(store.AddPunishment(s.at(0), rec))

	got, err := engine.GetActiveForConnection(s.at(2*time.Minute), s.player, "10.0.0.1")
	s.Require().NoError(err)
	s.Empty(got)

	history, err := engine.History(s.at(2*time.Minute), s.player)
	s.Require().NoError(err)
	actions := make([]models.Action, 0, len(history))
	for _, h := range history {
		actions = append(actions, h.Action)
	}
	s.Equal([]models.Action{models.ActionExpire, models.ActionCreate}, actions)

	found, err := engine.FindByInternalID(s.at(2*time.Minute), rec.InternalID)
	s.Require().NoError(err)
	s.False(found.Active)
}

func (s *EngineSuite) TestSweepSharesInFlightRead() {
	store := &laggingStore{InMemoryPunishmentStore: memory.New()}
	engine, _ := New(store, WithLogger(discardLogger()))
	engine.clock = func() time.Time { return s.t0.Add(2 * time.Minute) }
	engine.Track(s.player, "10.0.0.1")
	s.Require().NoError(store.AddPunishment(s.at(0), s.tempBan("PBRB-TM-LAG02", time.Minute)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = engine.GetActiveByUUID(s.at(2*time.Minute), s.player)
	}()
	engine.sweep(context.Background())
	wg.Wait()

	history, err := engine.History(s.at(2*time.Minute), s.player)
	s.Require().NoError(err)
	s.Len(history, 2, "one create and one expire")
}

func (s *EngineSuite) TestSweepEvictsUntrackedSnapshots() {
	stranger := uuid.New()
	_, err := s.engine.GetActiveByUUID(s.at(0), stranger)
	s.Require().NoError(err)
	_, cached := s.engine.Cached(stranger)
	s.Require().True(cached)

	s.engine.Track(s.player, "10.0.0.1")
	s.engine.sweep(context.Background())

	_, cached = s.engine.Cached(stranger)
	s.False(cached)
	_, cached = s.engine.Cached(s.player)
	s.True(cached)
}

// blockingStore holds identity reads until released.
type blockingStore struct {
	*memory.InMemoryPunishmentStore
	release chan struct{}
}

func (b *blockingStore) FindActiveByUUID(ctx context.Context, id uuid.UUID) ([]models.Record, error) {
	<-b.release
	return b.InMemoryPunishmentStore.FindActiveByUUID(ctx, id)
}

func (s *EngineSuite) TestSharedReadSurvivesFirstCallerCancel() {
	store := &blockingStore{InMemoryPunishmentStore: memory.New(), release: make(chan struct{})}
	engine, _ := New(store, WithLogger(discardLogger()))
	rec := s.tempBan("PBRB-TM-SHARE", time.Hour)
	s.Require().NoError(store.AddPunishment(s.at(0), rec))

	firstCtx, cancelFirst := context.WithCancel(s.at(time.Second))
	firstErr := make(chan error, 1)
	go func() {
		_, err := engine.GetActiveByUUID(firstCtx, s.player)
		firstErr <- err
	}()

	type result struct {
		set models.ActiveSet
		err error
	}
	second := make(chan result, 1)
	time.Sleep(5 * time.Millisecond)
	go func() {
		set, err := engine.GetActiveByUUID(s.at(time.Second), s.player)
		second <- result{set, err}
	}()

	time.Sleep(5 * time.Millisecond)
	cancelFirst()
	s.ErrorIs(<-firstErr, context.Canceled)

	close(store.release)
	res := <-second
	s.Require().NoError(res.err)
	s.True(res.set.Has(models.TypeTempBan))
}

package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streethustle/internal/catalog"
	"streethustle/internal/events"
	"streethustle/internal/game"
	"streethustle/internal/loop"
	"streethustle/internal/save"
	"streethustle/internal/telemetry"
)

var testStart = time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Definition{
		{ID: "stall", Name: "Stall", BaseIncome: 100, BaseCost: 0, CostMultiplier: 1.5,
			Automation: catalog.Automation{Timer: 1000, UnlockRequirement: 1}},
		{ID: "cart", Name: "Cart", BaseIncome: 1000, BaseCost: 5000, CostMultiplier: 1.5,
			Automation: catalog.Automation{Timer: 2000, UnlockRequirement: 2}},
	})
	require.NoError(t, err)
	return cat
}

type fixture struct {
	t       *testing.T
	clock   *game.FakeClock
	store   save.Store
	session *Session
	signals <-chan game.Signal
}

func newFixture(t *testing.T, store save.Store, eventsOn bool) *fixture {
	t.Helper()
	if store == nil {
		store = save.NewMemoryStore()
	}
	clock := game.NewFakeClock(testStart)
	cat := testCatalog(t)
	cfg := DefaultConfig()
	cfg.EventsEnabled = eventsOn
	cfg.Templates = []events.Template{
		{ID: "rain", HustleID: "stall", Title: "Rain", Text: "wet", Duration: 10 * time.Second, Multiplier: 0},
	}
	adapter := save.NewAdapter(store, cat, save.AdapterOptions{Clock: clock, StartingMoney: cfg.Rules.StartingMoney})
	s := New(cat, adapter, Options{Config: cfg, Clock: clock, Rand: rand.New(rand.NewPCG(7, 7))})
	signals, cancel := s.Bus().Subscribe(1024)
	t.Cleanup(cancel)
	return &fixture{t: t, clock: clock, store: store, session: s, signals: signals}
}

func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.session.Loop().RunDue()
}

func (f *fixture) notices() []game.Notice {
	var out []game.Notice
	for {
		select {
		case sig := <-f.signals:
			if sig.Notice != nil {
				out = append(out, *sig.Notice)
			}
		default:
			return out
		}
	}
}

func noticeKinds(ns []game.Notice) []game.NoticeKind {
	out := make([]game.NoticeKind, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Kind)
	}
	return out
}

func TestStart_FreshGameArmsTimers(t *testing.T) {
	f := newFixture(t, nil, true)
	require.NoError(t, f.session.Start(context.Background()))

	v, err := f.session.View()
	require.NoError(t, err)
	assert.Equal(t, 500.0, v.Money)
	require.Len(t, v.Hustles, 2)
	assert.True(t, v.Hustles[0].State.CanUnlock)
	assert.Equal(t, 5000.0, v.Hustles[1].Cost)
	assert.Equal(t, game.Millis(testStart), v.State.SessionStartTime)

	// tick, autosave, event warm-up
	assert.Equal(t, 3, f.session.Loop().Pending())
}

func TestIntents_BuyAutomatesAndTicksPay(t *testing.T) {
	f := newFixture(t, nil, false)
	require.NoError(t, f.session.Start(context.Background()))

	v, err := f.session.Buy("stall")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Hustles[0].State.Level)
	assert.True(t, v.Hustles[0].State.IsAutomated)
	assert.Equal(t, 100.0, v.IncomePerSecond)
	assert.ElementsMatch(t, []game.NoticeKind{game.NoticeUnlocked, game.NoticeAutomated}, noticeKinds(f.notices()))

	f.advance(time.Second)
	v, err = f.session.View()
	require.NoError(t, err)
	assert.Equal(t, 600.0, v.Money)

	earned, err := f.session.ManualHustle("stall")
	require.NoError(t, err)
	assert.Equal(t, 10.0, earned)

	earned, err = f.session.ManualHustle("cart")
	require.NoError(t, err)
	assert.Zero(t, earned)

	d, ok, err := f.session.Details("stall")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, game.AutomationActive, d.Automation)

	tip, err := f.session.Advice()
	require.NoError(t, err)
	assert.NotEmpty(t, tip)

	st, err := f.session.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Telemetry.Purchases)
	assert.Equal(t, 1, st.Telemetry.ManualHustles)
	assert.Equal(t, 1, st.Telemetry.Automations)
	assert.GreaterOrEqual(t, st.Telemetry.Ticks, 1)
	require.Len(t, st.Earnings.Hustles, 1)
}

func TestAutosaveAndStopPersist(t *testing.T) {
	store := save.NewMemoryStore()
	f := newFixture(t, store, false)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))
	_, err := f.session.Buy("stall")
	require.NoError(t, err)

	_, err = store.Get(ctx, save.DefaultKey)
	assert.ErrorIs(t, err, save.ErrNotFound)

	f.advance(30 * time.Second)
	blob, err := store.Get(ctx, save.DefaultKey)
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"stall"`)
	assert.NotContains(t, noticeKinds(f.notices()), game.NoticeSaved, "autosave is quiet")

	require.NoError(t, f.session.Stop(ctx))
	assert.Contains(t, noticeKinds(f.notices()), game.NoticeSaved)
	assert.Equal(t, 0, f.session.Loop().Pending())

	_, err = f.session.Buy("stall")
	assert.ErrorIs(t, err, loop.ErrStopped)
}

func TestStart_ResumesSavedGame(t *testing.T) {
	store := save.NewMemoryStore()
	cat := testCatalog(t)
	st := game.NewState(cat, testStart.Add(-24*time.Hour), 500)
	st.Money = 12345
	st.Hustles["stall"].IsUnlocked = true
	st.Hustles["stall"].Level = 3
	st.Hustles["stall"].IsAutomated = true
	blob, err := save.Encode(st)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), save.DefaultKey, blob))

	f := newFixture(t, store, false)
	require.NoError(t, f.session.Start(context.Background()))

	v, err := f.session.View()
	require.NoError(t, err)
	assert.Equal(t, 12345.0, v.Money)
	assert.Equal(t, 3, v.Hustles[0].State.Level)
	assert.Equal(t, game.Millis(testStart), v.State.LastUpdate, "offline time is not credited")
	assert.Equal(t, game.Millis(testStart.Add(-24*time.Hour)), v.State.GameStartTime)

	f.advance(time.Second)
	v, _ = f.session.View()
	assert.Equal(t, 12345.0+300, v.Money)
}

func TestEventsRunOnTheLoopAndSavesUseBaselineMultiplier(t *testing.T) {
	store := save.NewMemoryStore()
	f := newFixture(t, store, true)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))
	_, err := f.session.Buy("stall")
	require.NoError(t, err)
	f.notices()

	f.advance(30 * time.Second)
	active, err := f.session.ActiveEvents()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "rain", active[0].EventID)
	assert.Equal(t, game.NoticeEventStarted, f.notices()[0].Kind)

	v, _ := f.session.View()
	assert.Equal(t, 0.0, v.Hustles[0].State.EventMultiplier)
	assert.Zero(t, v.IncomePerSecond)

	require.NoError(t, f.session.Save(ctx))
	blob, err := store.Get(ctx, save.DefaultKey)
	require.NoError(t, err)
	saved, err := save.Decode(blob, testCatalog(t), testStart, 500)
	require.NoError(t, err)
	assert.Equal(t, 1.0, saved.Hustles["stall"].EventMultiplier)

	f.advance(10 * time.Second)
	active, _ = f.session.ActiveEvents()
	assert.Empty(t, active)
	v, _ = f.session.View()
	assert.Equal(t, 1.0, v.Hustles[0].State.EventMultiplier)
}

func TestReset_WipesSaveAndTimers(t *testing.T) {
	store := save.NewMemoryStore()
	f := newFixture(t, store, true)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))
	_, err := f.session.Buy("stall")
	require.NoError(t, err)
	f.advance(30 * time.Second)
	require.NoError(t, f.session.Save(ctx))
	f.notices()

	require.NoError(t, f.session.Reset(ctx))

	_, err = store.Get(ctx, save.DefaultKey)
	assert.ErrorIs(t, err, save.ErrNotFound)
	active, _ := f.session.ActiveEvents()
	assert.Empty(t, active)
	v, _ := f.session.View()
	assert.Equal(t, 500.0, v.Money)
	assert.False(t, v.Hustles[0].State.IsUnlocked)
	assert.Equal(t, 1.0, v.Hustles[0].State.EventMultiplier)
	assert.Equal(t, 3, f.session.Loop().Pending(), "timers re-armed for the new game")
	assert.Contains(t, noticeKinds(f.notices()), game.NoticeReset)
}

func TestLoad_ReplacesRunningGame(t *testing.T) {
	store := save.NewMemoryStore()
	f := newFixture(t, store, false)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))

	assert.ErrorIs(t, f.session.Load(ctx), save.ErrNotFound)

	_, _ = f.session.Buy("stall")
	require.NoError(t, f.session.Save(ctx))
	f.advance(3 * time.Second)
	_, _ = f.session.Buy("stall")
	v, _ := f.session.View()
	require.Equal(t, 2, v.Hustles[0].State.Level)

	require.NoError(t, f.session.Load(ctx))
	v, _ = f.session.View()
	assert.Equal(t, 1, v.Hustles[0].State.Level)
	assert.Equal(t, game.Millis(testStart.Add(3*time.Second)), v.State.SessionStartTime, "load starts a new session window")

	st, err := f.session.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.Telemetry.Ticks)
	assert.Zero(t, st.Earnings.SessionTime)
}

func TestStats_SurviveLongSessions(t *testing.T) {
	f := newFixture(t, nil, false)
	require.NoError(t, f.session.Start(context.Background()))
	_, err := f.session.Buy("stall")
	require.NoError(t, err)
	_, err = f.session.ManualHustle("stall")
	require.NoError(t, err)

	for i := 0; i < 12000; i++ {
		f.advance(100 * time.Millisecond)
	}

	st, err := f.session.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Telemetry.Purchases)
	assert.Equal(t, 1, st.Telemetry.ManualHustles)
	assert.Equal(t, 1, st.Telemetry.Unlocks)
	assert.Equal(t, 1, st.Telemetry.Automations)
	assert.Equal(t, 12000, st.Telemetry.Ticks)
	assert.Equal(t, int64(1_200_000), st.Telemetry.TickedMs)
	assert.Less(t, f.session.Telemetry().(*telemetry.MemoryRepository).Len(), 100)
}

type failingStore struct{ *save.MemoryStore }

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func TestSaveFailureRaisesErrorNotice(t *testing.T) {
	store := failingStore{MemoryStore: save.NewMemoryStore()}
	f := newFixture(t, store, false)
	ctx := context.Background()
	require.NoError(t, f.session.Start(ctx))
	f.notices()

	assert.Error(t, f.session.Save(ctx))
	ns := f.notices()
	require.Len(t, ns, 1)
	assert.Equal(t, game.NoticeSaveFailed, ns[0].Kind)
	assert.Equal(t, game.CategoryError, ns[0].Category)
}

func TestBus_DropsForSlowSubscribers(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe(1)
	b.Publish(game.Changed())
	b.Publish(game.Changed())
	assert.Len(t, ch, 1)
	assert.Equal(t, 1, b.Subscribers())
	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())
	_, open := <-ch
	assert.True(t, open, "buffered signal still readable")
	_, open = <-ch
	assert.False(t, open)
}

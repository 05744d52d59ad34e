package save

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streethustle/internal/catalog"
	"streethustle/internal/game"
)

var loadTime = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newAdapterForTest(t *testing.T, store Store) (*Adapter, *game.FakeClock) {
	t.Helper()
	clock := game.NewFakeClock(loadTime)
	return NewAdapter(store, catalog.Fallback(), AdapterOptions{Clock: clock, StartingMoney: 500}), clock
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cat := catalog.Fallback()
	s := game.NewState(cat, loadTime, 500)
	s.Money = 1234.5
	s.TotalEarnings = 9999
	s.Hustles["clothing"].IsUnlocked = true
	s.Hustles["clothing"].Level = 7
	s.Hustles["clothing"].CanUnlock = false
	s.Hustles["clothing"].AutomationProgress = 321
	s.Hustles["airtime"].CanUnlock = true

	blob, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(blob, cat, loadTime.Add(time.Hour), 500)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestDecode_FillsMissingFieldsWithDefaults(t *testing.T) {
	cat := catalog.Fallback()
	blob := []byte(`{
		"money": 42,
		"hustles": {
			"clothing": {"level": 3, "isUnlocked": true},
			"airtime": {"level": 0, "isUnlocked": false},
			"retired": {"level": 9, "isUnlocked": true}
		}
	}`)

	s, err := Decode(blob, cat, loadTime, 500)
	require.NoError(t, err)

	assert.Equal(t, 42.0, s.Money)
	assert.Equal(t, 0.0, s.TotalEarnings)
	assert.Equal(t, game.Millis(loadTime), s.GameStartTime)

	clothing := s.Hustles["clothing"]
	assert.Equal(t, 3, clothing.Level)
	assert.True(t, clothing.CanUnlock, "canUnlock re-derived from baseCost==0")
	assert.Equal(t, 1.0, clothing.EventMultiplier)

	assert.False(t, s.Hustles["airtime"].CanUnlock)
	assert.Equal(t, 1.0, s.Hustles["airtime"].EventMultiplier)

	require.Contains(t, s.Hustles, "charging", "catalog hustle absent from the save")
	assert.Equal(t, game.HustleState{EventMultiplier: 1}, *s.Hustles["charging"])

	require.Contains(t, s.Hustles, "retired")
	assert.Equal(t, 9, s.Hustles["retired"].Level)
}

func TestDecode_KeepsExplicitZeroMultiplier(t *testing.T) {
	blob := []byte(`{"hustles":{"charging":{"isUnlocked":true,"level":1,"eventMultiplier":0}}}`)
	s, err := Decode(blob, catalog.Fallback(), loadTime, 500)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Hustles["charging"].EventMultiplier)
	assert.Equal(t, 500.0, s.Money)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	cat := catalog.Fallback()
	for _, blob := range []string{"", "{", "[]", `{"hustles":{"clothing":"x"}}`} {
		_, err := Decode([]byte(blob), cat, loadTime, 500)
		assert.Error(t, err, "%q", blob)
	}
}

func TestAdapter_SaveLoadResetsLastUpdate(t *testing.T) {
	a, clock := newAdapterForTest(t, NewMemoryStore())
	ctx := context.Background()

	_, err := a.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err := a.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	s := game.NewState(catalog.Fallback(), loadTime, 500)
	s.Money = 77
	require.NoError(t, a.Save(ctx, s))

	clock.Advance(10 * time.Minute)
	got, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 77.0, got.Money)
	assert.Equal(t, game.Millis(clock.Now()), got.LastUpdate)

	ok, err = a.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, a.Delete(ctx))
	_, err = a.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdapter_CorruptSaveStartsFresh(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), DefaultKey, []byte("not json")))
	a, _ := newAdapterForTest(t, store)

	s, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500.0, s.Money)
	assert.Len(t, s.Hustles, 3)
	assert.True(t, s.Hustles["clothing"].CanUnlock)
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "k", []byte(`{"a":1}`)))
	b, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	require.NoError(t, store.Put(ctx, "k", []byte(`{"a":2}`)))
	b, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(b))

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saves")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	exerciseStore(t, store)

	require.NoError(t, store.Put(context.Background(), DefaultKey, []byte("{}")))
	_, err = os.Stat(filepath.Join(dir, DefaultKey+".json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	assert.Error(t, store.Put(context.Background(), "../escape", []byte("{}")))
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "hustle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("HUSTLE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HUSTLE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	store := NewRedisStore(client, "streethustle-test:")
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, "file", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, "sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "etcd", "")
	assert.Error(t, err)
}

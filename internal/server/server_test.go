package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streethustle/internal/catalog"
	"streethustle/internal/game"
	"streethustle/internal/save"
	"streethustle/internal/session"
)

type harness struct {
	session *session.Session
	store   *save.MemoryStore
	srv     *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := game.NewFakeClock(time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC))
	cat := catalog.Fallback()
	store := save.NewMemoryStore()
	cfg := session.DefaultConfig()
	cfg.EventsEnabled = false
	adapter := save.NewAdapter(store, cat, save.AdapterOptions{Clock: clock, StartingMoney: cfg.Rules.StartingMoney})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := session.New(cat, adapter, session.Options{Config: cfg, Clock: clock, Logger: logger})
	require.NoError(t, s.Start(context.Background()))

	h, err := NewHandler(Options{Game: s, Logger: logger})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &harness{session: s, store: store, srv: srv}
}

func (h *harness) do(t *testing.T, method, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, bytes.NewReader(nil))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestNewHandler_RequiresGame(t *testing.T) {
	_, err := NewHandler(Options{})
	assert.Error(t, err)
}

func TestHealthAndRoutes(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	resp, err := http.Get(h.srv.URL + "/api/routes")
	require.NoError(t, err)
	defer resp.Body.Close()
	var routes []RouteDoc
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&routes))
	assert.Contains(t, routes, RouteDoc{Method: "POST", Pattern: "/api/hustles/{id}/buy", Summary: "unlock or upgrade a hustle"})
}

func TestBuyThenManualHustle(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/api/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 500.0, body["money"])

	resp, body = h.do(t, http.MethodPost, "/api/hustles/clothing/buy")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hustles := body["hustles"].([]any)
	first := hustles[0].(map[string]any)
	assert.Equal(t, "clothing", first["id"])
	assert.Equal(t, 1.0, first["state"].(map[string]any)["level"])

	resp, body = h.do(t, http.MethodPost, "/api/hustles/clothing/manual")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 50.0, body["earned"])
	assert.True(t, strings.HasPrefix(body["text"].(string), "+"))
	assert.Equal(t, 550.0, body["state"].(map[string]any)["money"])
}

func TestBuyUnaffordableStillAnswersOK(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodPost, "/api/hustles/charging/buy")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 500.0, body["money"])
}

func TestDetails(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodGet, "/api/hustles/airtime")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Sell Airtime", body["name"])
	assert.Equal(t, string(game.AutomationLocked), body["automation"])

	resp, body = h.do(t, http.MethodGet, "/api/hustles/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown hustle", body["error"])
}

func TestStatsAndAdvice(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/hustles/clothing/buy")

	resp, body := h.do(t, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tel := body["stats"].(map[string]any)["telemetry"].(map[string]any)
	assert.Equal(t, 1.0, tel["purchases"])
	assert.NotEmpty(t, body["sessionTime"])

	resp, body = h.do(t, http.MethodGet, "/api/advice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["advice"])
}

func TestSaveLoadReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, _ := h.do(t, http.MethodPost, "/api/load")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	h.do(t, http.MethodPost, "/api/hustles/clothing/buy")
	resp, body := h.do(t, http.MethodPost, "/api/save")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	_, err := h.store.Get(ctx, save.DefaultKey)
	require.NoError(t, err)

	resp, body = h.do(t, http.MethodPost, "/api/load")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 500.0, body["money"])

	resp, body = h.do(t, http.MethodPost, "/api/reset")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := body["hustles"].([]any)[0].(map[string]any)
	assert.Equal(t, false, first["state"].(map[string]any)["isUnlocked"])
	_, err = h.store.Get(ctx, save.DefaultKey)
	assert.ErrorIs(t, err, save.ErrNotFound)
}

func TestStoppedSessionIsUnavailable(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Stop(context.Background()))
	resp, body := h.do(t, http.MethodGet, "/api/state")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestStream_PushesChangedAndCoinSignals(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/hustles/clothing/buy")

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() game.Signal {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var sig game.Signal
		require.NoError(t, conn.ReadJSON(&sig))
		return sig
	}
	assert.Equal(t, game.SignalChanged, read().Type)

	h.do(t, http.MethodPost, "/api/hustles/clothing/manual")
	var types []game.SignalType
	for len(types) < 2 {
		types = append(types, read().Type)
	}
	assert.Equal(t, []game.SignalType{game.SignalCoin, game.SignalChanged}, types)
}

func TestStreamed(t *testing.T) {
	assert.True(t, streamed(game.SignalNotice))
	assert.False(t, streamed(game.SignalPurchase))
}

// Package server exposes a running session over HTTP: JSON intents, state
// snapshots and a websocket signal stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"streethustle/internal/game"
	"streethustle/internal/httpmw"
	"streethustle/internal/loop"
	"streethustle/internal/save"
	"streethustle/internal/session"
)

// Game is the slice of a session the HTTP layer drives.
type Game interface {
	View() (session.View, error)
	ManualHustle(id string) (float64, error)
	Buy(id string) (session.View, error)
	Details(id string) (game.Details, bool, error)
	Stats() (session.StatsView, error)
	Advice() (string, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Reset(ctx context.Context) error
	Subscribe(buffer int) (<-chan game.Signal, func())
}

type Options struct {
	Game   Game
	Logger *slog.Logger

	// WriteTimeout bounds each websocket frame write.
	WriteTimeout time.Duration
}

type api struct {
	game         Game
	logger       *slog.Logger
	routes       *RouteRegistry
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Game == nil {
		return nil, errors.New("game is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	a := &api{
		game:   opts.Game,
		logger: opts.Logger,
		routes: &RouteRegistry{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: opts.WriteTimeout,
	}

	r := chi.NewRouter()
	Handle(r, a.routes, "GET /healthz", "liveness", a.health)
	Handle(r, a.routes, "GET /api/routes", "this list", a.listRoutes)
	Handle(r, a.routes, "GET /api/state", "full game snapshot", a.state)
	Handle(r, a.routes, "POST /api/hustles/{id}/manual", "work a hustle by hand", a.manual)
	Handle(r, a.routes, "POST /api/hustles/{id}/buy", "unlock or upgrade a hustle", a.buy)
	Handle(r, a.routes, "GET /api/hustles/{id}", "hustle details", a.details)
	Handle(r, a.routes, "GET /api/stats", "earnings and session stats", a.stats)
	Handle(r, a.routes, "GET /api/advice", "hustle tip", a.advice)
	Handle(r, a.routes, "POST /api/save", "save progress", a.save)
	Handle(r, a.routes, "POST /api/load", "reload saved progress", a.load)
	Handle(r, a.routes, "POST /api/reset", "wipe progress", a.reset)
	Handle(r, a.routes, "GET /api/ws", "signal stream", a.stream)

	return httpmw.Chain(r,
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
		httpmw.WithAccessLog(opts.Logger),
	), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// fail maps session errors onto status codes.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, loop.ErrStopped):
		writeErr(w, http.StatusServiceUnavailable, "game is shutting down")
	case errors.Is(err, save.ErrNotFound):
		writeErr(w, http.StatusNotFound, "no saved game")
	default:
		a.logger.Warn("request failed",
			"request_id", httpmw.RequestIDFromContext(r.Context()), "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "streethustle",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *api) listRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.routes.List())
}

func (a *api) state(w http.ResponseWriter, r *http.Request) {
	v, err := a.game.View()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type manualResponse struct {
	Earned float64      `json:"earned"`
	Text   string       `json:"text"`
	State  session.View `json:"state"`
}

func (a *api) manual(w http.ResponseWriter, r *http.Request) {
	earned, err := a.game.ManualHustle(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	v, err := a.game.View()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := manualResponse{Earned: earned, State: v}
	if earned > 0 {
		resp.Text = "+" + game.FormatMoney(earned)
	}
	writeJSON(w, http.StatusOK, resp)
}

// buy always answers 200; a refused purchase just leaves the state as it was.
func (a *api) buy(w http.ResponseWriter, r *http.Request) {
	v, err := a.game.Buy(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) details(w http.ResponseWriter, r *http.Request) {
	d, ok, err := a.game.Details(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "unknown hustle")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	st, err := a.game.Stats()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":         st,
		"sessionTime":   game.FormatDuration(st.Earnings.SessionTime),
		"totalGameTime": game.FormatDuration(st.Earnings.TotalGameTime),
	})
}

func (a *api) advice(w http.ResponseWriter, r *http.Request) {
	tip, err := a.game.Advice()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"advice": tip})
}

func (a *api) save(w http.ResponseWriter, r *http.Request) {
	if err := a.game.Save(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *api) load(w http.ResponseWriter, r *http.Request) {
	if err := a.game.Load(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	a.state(w, r)
}

func (a *api) reset(w http.ResponseWriter, r *http.Request) {
	if err := a.game.Reset(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	a.state(w, r)
}

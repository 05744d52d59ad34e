// Package session runs one single-player game: the engine, its tick, the
// street events, autosave and persistence, all on one loop.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"streethustle/internal/catalog"
	"streethustle/internal/events"
	"streethustle/internal/game"
	"streethustle/internal/loop"
	"streethustle/internal/save"
	"streethustle/internal/telemetry"
)

type Config struct {
	Rules            game.Rules
	TickInterval     time.Duration
	AutosaveInterval time.Duration
	EventsEnabled    bool
	Events           events.Config
	Templates        []events.Template
}

func DefaultConfig() Config {
	return Config{
		Rules:            game.DefaultRules(),
		TickInterval:     100 * time.Millisecond,
		AutosaveInterval: 30 * time.Second,
		EventsEnabled:    true,
		Events:           events.DefaultConfig(),
	}
}

type Options struct {
	Config    Config
	Clock     game.Clock
	Rand      *rand.Rand
	Telemetry *telemetry.MemoryRepository
	Logger    *slog.Logger
}

type Session struct {
	id        uuid.UUID
	cfg       Config
	clock     game.Clock
	logger    *slog.Logger
	loop      *loop.Loop
	engine    *game.Engine
	scheduler *events.Scheduler
	saves     *save.Adapter
	telemetry *telemetry.MemoryRepository
	bus       *Bus

	started bool
	// ticks and tickedMs count loop ticks since the session start; they are
	// kept out of the telemetry repository.
	ticks    int
	tickedMs int64
}

func New(cat *catalog.Catalog, saves *save.Adapter, opts Options) *Session {
	cfg := opts.Config
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = game.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.NewMemoryRepository(opts.Clock, 0)
	}

	id := uuid.New()
	s := &Session{
		id:        id,
		cfg:       cfg,
		clock:     opts.Clock,
		logger:    opts.Logger.With("session", id.String()),
		saves:     saves,
		telemetry: opts.Telemetry,
		bus:       NewBus(),
	}
	s.loop = loop.New(opts.Clock, s.logger)

	recorder := telemetry.NewSignalRecorder(s.telemetry, s.logger)
	publish := game.PublisherFunc(func(sig game.Signal) {
		s.bus.Publish(sig)
		recorder.Publish(sig)
	})
	s.engine = game.NewEngine(cat, nil, opts.Clock.Now(), game.Options{
		Rules:     cfg.Rules,
		Publisher: publish,
		Logger:    s.logger,
	})
	s.scheduler = events.NewScheduler(s.engine, s.loop, events.Options{
		Config:    cfg.Events,
		Templates: cfg.Templates,
		Clock:     opts.Clock,
		Rand:      opts.Rand,
		Publisher: s.engine,
		Logger:    s.logger,
	})
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Loop() *loop.Loop { return s.loop }

func (s *Session) Bus() *Bus { return s.bus }

// Subscribe streams every signal the session raises.
func (s *Session) Subscribe(buffer int) (<-chan game.Signal, func()) {
	return s.bus.Subscribe(buffer)
}

func (s *Session) Telemetry() telemetry.Repository { return s.telemetry }

// Start loads the saved game, if any, and arms the tick, autosave and event
// timers. It does not block; call Run to drive the loop.
func (s *Session) Start(ctx context.Context) error {
	return s.loop.Do(func() {
		if s.started {
			return
		}
		s.started = true
		s.replace(s.loadOrFresh(ctx))
		s.startTimers()
		s.logger.Info("session started",
			"events", s.cfg.EventsEnabled, "tick", s.cfg.TickInterval, "autosave", s.cfg.AutosaveInterval)
	})
}

func (s *Session) Run(ctx context.Context) error {
	err := s.loop.Run(ctx)
	if errors.Is(err, loop.ErrStopped) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop saves one last time and tears everything down. Later intents fail
// with loop.ErrStopped.
func (s *Session) Stop(ctx context.Context) error {
	var saveErr error
	err := s.loop.Do(func() {
		if s.started {
			saveErr = s.persist(ctx, false)
		}
		s.stopTimers()
		s.started = false
	})
	if err != nil {
		return err
	}
	s.loop.Stop()
	s.logger.Info("session stopped")
	return saveErr
}

func (s *Session) loadOrFresh(ctx context.Context) *game.State {
	st, err := s.saves.Load(ctx)
	switch {
	case err == nil:
		s.logger.Info("game loaded")
		return st
	case errors.Is(err, save.ErrNotFound):
		s.logger.Info("no saved game, starting fresh")
	default:
		s.logger.Warn("load failed, starting fresh", "err", err)
	}
	return game.NewState(s.engine.Catalog(), s.clock.Now(), s.engine.Rules().StartingMoney)
}

// replace swaps state wholesale and starts a new session window; events
// tied to the old state are dropped.
func (s *Session) replace(st *game.State) {
	s.scheduler.Forget()
	now := game.Millis(s.clock.Now())
	st.LastUpdate = now
	st.SessionStartTime = now
	s.ticks, s.tickedMs = 0, 0
	s.engine.Replace(st)
}

func (s *Session) startTimers() {
	s.loop.Every("tick", s.cfg.TickInterval, s.onTick)
	if s.cfg.AutosaveInterval > 0 {
		s.loop.Every("autosave", s.cfg.AutosaveInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.persist(ctx, true)
		})
	}
	if s.cfg.EventsEnabled {
		s.scheduler.Start()
	}
}

func (s *Session) stopTimers() {
	s.scheduler.Clear()
	s.loop.CancelAll()
}

func (s *Session) onTick() {
	before := s.engine.State().LastUpdate
	s.engine.Advance(s.clock.Now())
	s.ticks++
	s.tickedMs += s.engine.State().LastUpdate - before
}

// persist writes the current state with every event multiplier rolled back
// to its pre-event value. Quiet saves only report failures.
func (s *Session) persist(ctx context.Context, quiet bool) error {
	snap := s.engine.Snapshot()
	s.scheduler.Baseline(snap)
	if err := s.saves.Save(ctx, snap); err != nil {
		s.logger.Warn("save failed", "err", err)
		s.engine.Publish(game.NoticeSignal(game.Notice{
			Kind:     game.NoticeSaveFailed,
			Title:    "Error!",
			Message:  "Could not save progress.",
			Category: game.CategoryError,
		}))
		return err
	}
	s.logger.Debug("game saved", "quiet", quiet)
	if !quiet {
		s.engine.Publish(game.NoticeSignal(game.Notice{
			Kind:     game.NoticeSaved,
			Title:    "Progress Saved! 💾",
			Message:  "Your hustle empire is safe!",
			Category: game.CategorySuccess,
			Duration: 1500 * time.Millisecond,
		}))
	}
	return nil
}

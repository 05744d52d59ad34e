// Package events runs the random street events that temporarily change a
// hustle's income multiplier.
package events

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"

	"streethustle/internal/game"
	"streethustle/internal/loop"
)

// Target is the slice of the engine the scheduler touches.
type Target interface {
	Earning(hustleID string) bool
	EventMultiplier(hustleID string) (float64, bool)
	SetEventMultiplier(hustleID string, m float64) (float64, bool)
}

type Timers interface {
	After(name string, d time.Duration, fn func()) loop.TaskID
	Cancel(id loop.TaskID) bool
}

type Config struct {
	Warmup   time.Duration
	MinDelay time.Duration
	MaxDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Warmup:   30 * time.Second,
		MinDelay: 45 * time.Second,
		MaxDelay: 75 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Warmup < 0 {
		c.Warmup = d.Warmup
	}
	if c.MinDelay <= 0 {
		c.MinDelay = d.MinDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	return c
}

// Active is a running event. Times are Unix milliseconds.
type Active struct {
	EventID            string    `json:"eventId"`
	InstanceID         uuid.UUID `json:"instanceId"`
	HustleID           string    `json:"hustleId"`
	Title              string    `json:"title"`
	OriginalMultiplier float64   `json:"originalMultiplier"`
	Multiplier         float64   `json:"multiplier"`
	StartTime          int64     `json:"startTime"`
	EndTime            int64     `json:"endTime"`

	revert loop.TaskID
}

type Options struct {
	Config    Config
	Templates []Template
	Clock     game.Clock
	Rand      *rand.Rand
	Publisher game.Publisher
	Logger    *slog.Logger
}

// Scheduler holds at most one active event per hustle. All methods must run
// on the loop that owns Timers.
type Scheduler struct {
	cfg       Config
	templates []Template
	target    Target
	timers    Timers
	clock     game.Clock
	rng       *rand.Rand
	publisher game.Publisher
	logger    *slog.Logger

	active  map[string]*Active
	next    loop.TaskID
	running bool
}

func NewScheduler(target Target, timers Timers, opts Options) *Scheduler {
	if opts.Templates == nil {
		opts.Templates = DefaultTemplates()
	}
	if opts.Clock == nil {
		opts.Clock = game.RealClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if opts.Publisher == nil {
		opts.Publisher = game.NopPublisher()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	templates := make([]Template, len(opts.Templates))
	copy(templates, opts.Templates)
	return &Scheduler{
		cfg:       opts.Config.withDefaults(),
		templates: templates,
		target:    target,
		timers:    timers,
		clock:     opts.Clock,
		rng:       opts.Rand,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		active:    map[string]*Active{},
	}
}

func (s *Scheduler) Templates() []Template {
	out := make([]Template, len(s.templates))
	copy(out, s.templates)
	return out
}

// Start arms the first firing after the warm-up. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	s.next = s.timers.After("events.warmup", s.cfg.Warmup, s.fire)
}

func (s *Scheduler) Running() bool { return s.running }

func (s *Scheduler) fire() {
	s.next = 0
	s.Trigger()
	s.scheduleNext()
}

func (s *Scheduler) scheduleNext() {
	if !s.running {
		return
	}
	s.next = s.timers.After("events.next", s.NextDelay(), s.fire)
}

// NextDelay draws a delay uniformly from [MinDelay, MaxDelay).
func (s *Scheduler) NextDelay() time.Duration {
	span := s.cfg.MaxDelay - s.cfg.MinDelay
	if span <= 0 {
		return s.cfg.MinDelay
	}
	return s.cfg.MinDelay + time.Duration(s.rng.Int64N(int64(span)))
}

// Eligible lists templates whose hustle is earning and has no event running.
func (s *Scheduler) Eligible() []Template {
	var out []Template
	for _, t := range s.templates {
		if _, busy := s.active[t.HustleID]; busy {
			continue
		}
		if !s.target.Earning(t.HustleID) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Trigger fires one random eligible template. It reports false when none
// qualified.
func (s *Scheduler) Trigger() (Active, bool) {
	eligible := s.Eligible()
	if len(eligible) == 0 {
		s.logger.Debug("no eligible street event")
		return Active{}, false
	}
	return s.Apply(eligible[s.rng.IntN(len(eligible))])
}

// Apply starts t immediately. It refuses hustles that are not earning or
// already have an event running.
func (s *Scheduler) Apply(t Template) (Active, bool) {
	if _, busy := s.active[t.HustleID]; busy {
		return Active{}, false
	}
	if !s.target.Earning(t.HustleID) {
		s.logger.Debug("street event skipped: hustle not earning", "event", t.ID, "hustle", t.HustleID)
		return Active{}, false
	}
	prev, ok := s.target.SetEventMultiplier(t.HustleID, t.Multiplier)
	if !ok {
		return Active{}, false
	}

	now := s.clock.Now()
	a := &Active{
		EventID:            t.ID,
		InstanceID:         uuid.New(),
		HustleID:           t.HustleID,
		Title:              t.Title,
		OriginalMultiplier: prev,
		Multiplier:         t.Multiplier,
		StartTime:          game.Millis(now),
		EndTime:            game.Millis(now.Add(t.Duration)),
	}
	hustleID := t.HustleID
	a.revert = s.timers.After("events.revert."+hustleID, t.Duration, func() { s.Revert(hustleID) })
	s.active[hustleID] = a

	s.logger.Info("street event started",
		"event", t.ID, "hustle", hustleID, "multiplier", t.Multiplier,
		"duration", t.Duration, "instance", a.InstanceID)
	s.publisher.Publish(game.NoticeSignal(game.Notice{
		Kind:     game.NoticeEventStarted,
		Title:    t.Title,
		Message:  t.Text,
		Category: t.NoticeCategory(),
		HustleID: hustleID,
		EventID:  t.ID,
		Duration: t.Duration,
	}))
	s.publisher.Publish(game.Changed())
	return *a, true
}

// Revert ends the event on hustleID and restores the multiplier that was in
// effect before it started.
func (s *Scheduler) Revert(hustleID string) bool {
	a, ok := s.active[hustleID]
	if !ok {
		return false
	}
	delete(s.active, hustleID)
	s.timers.Cancel(a.revert)
	s.target.SetEventMultiplier(hustleID, a.OriginalMultiplier)

	s.logger.Info("street event ended", "event", a.EventID, "hustle", hustleID, "instance", a.InstanceID)
	s.publisher.Publish(game.NoticeSignal(game.Notice{
		Kind:     game.NoticeEventEnded,
		Title:    "Back to business",
		Message:  fmt.Sprintf("%s is over.", a.Title),
		Category: game.CategoryInfo,
		HustleID: hustleID,
		EventID:  a.EventID,
		Duration: 2 * time.Second,
	}))
	s.publisher.Publish(game.Changed())
	return true
}

// Active lists running events ordered by hustle id.
func (s *Scheduler) Active() []Active {
	out := make([]Active, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HustleID < out[j].HustleID })
	return out
}

func (s *Scheduler) ActiveFor(hustleID string) (Active, bool) {
	a, ok := s.active[hustleID]
	if !ok {
		return Active{}, false
	}
	return *a, true
}

// Baseline rewrites a state snapshot so every hustle under an event carries
// its pre-event multiplier. Saves use it so a reload never keeps an event
// whose revert timer is gone.
func (s *Scheduler) Baseline(st *game.State) {
	for id, a := range s.active {
		if hs, ok := st.Hustles[id]; ok && hs != nil {
			hs.EventMultiplier = a.OriginalMultiplier
		}
	}
}

// Clear stops scheduling, cancels every pending timer and restores the
// original multipliers. It emits no notices.
func (s *Scheduler) Clear() {
	s.running = false
	if s.next != 0 {
		s.timers.Cancel(s.next)
		s.next = 0
	}
	for id, a := range s.active {
		s.timers.Cancel(a.revert)
		s.target.SetEventMultiplier(id, a.OriginalMultiplier)
	}
	s.active = map[string]*Active{}
}

// Forget drops every event without touching multipliers. Used when the
// target's state has been replaced wholesale.
func (s *Scheduler) Forget() {
	for _, a := range s.active {
		s.timers.Cancel(a.revert)
	}
	s.active = map[string]*Active{}
}

package session

import (
	"context"
	"time"

	"streethustle/internal/catalog"
	"streethustle/internal/events"
	"streethustle/internal/game"
	"streethustle/internal/telemetry"
)

// HustleView is one catalog entry joined with its live progress.
type HustleView struct {
	catalog.Definition
	State  game.HustleState `json:"state"`
	Cost   float64          `json:"cost"`
	Income float64          `json:"income"`
}

// View is the full snapshot the UI re-pulls after every change.
type View struct {
	Money           float64         `json:"money"`
	MoneyText       string          `json:"moneyText"`
	TotalEarnings   float64         `json:"totalEarnings"`
	IncomePerSecond float64         `json:"incomePerSecond"`
	Hustles         []HustleView    `json:"hustles"`
	ActiveEvents    []events.Active `json:"activeEvents"`
	State           *game.State     `json:"state"`
}

type StatsView struct {
	Earnings  game.EarningsStats `json:"earnings"`
	Telemetry telemetry.Stats    `json:"telemetry"`
}

func (s *Session) view() View {
	st := s.engine.State()
	v := View{
		Money:           st.Money,
		MoneyText:       game.FormatMoney(st.Money),
		TotalEarnings:   st.TotalEarnings,
		IncomePerSecond: s.engine.IncomePerSecond(),
		ActiveEvents:    s.scheduler.Active(),
		State:           s.engine.Snapshot(),
	}
	for _, def := range s.engine.Catalog().All() {
		hv := HustleView{Definition: def, Cost: s.engine.Cost(def.ID), Income: s.engine.Income(def.ID)}
		if hs, ok := st.Hustles[def.ID]; ok && hs != nil {
			hv.State = *hs
		}
		v.Hustles = append(v.Hustles, hv)
	}
	return v
}

func (s *Session) View() (View, error) {
	var v View
	err := s.loop.Do(func() { v = s.view() })
	return v, err
}

// ManualHustle clicks a hustle and returns what the click paid.
func (s *Session) ManualHustle(id string) (float64, error) {
	var earned float64
	err := s.loop.Do(func() {
		before := s.engine.State().Money
		s.engine.ManualHustle(id)
		earned = s.engine.State().Money - before
	})
	return earned, err
}

func (s *Session) Buy(id string) (View, error) {
	var v View
	err := s.loop.Do(func() {
		s.engine.Buy(id)
		v = s.view()
	})
	return v, err
}

func (s *Session) Details(id string) (game.Details, bool, error) {
	var (
		d  game.Details
		ok bool
	)
	err := s.loop.Do(func() { d, ok = s.engine.Details(id) })
	return d, ok, err
}

func (s *Session) Stats() (StatsView, error) {
	var (
		out          StatsView
		sessionStart time.Time
		ticks        int
		tickedMs     int64
	)
	err := s.loop.Do(func() {
		out.Earnings = s.engine.Stats(s.clock.Now())
		sessionStart = game.FromMillis(s.engine.State().SessionStartTime)
		ticks, tickedMs = s.ticks, s.tickedMs
	})
	if err != nil {
		return out, err
	}
	evs, err := s.telemetry.GetEvents(sessionStart, nil)
	if err != nil {
		return out, err
	}
	out.Telemetry, err = telemetry.CalculateStats(evs, sessionStart)
	out.Telemetry.Ticks = ticks
	out.Telemetry.TickedMs = tickedMs
	return out, err
}

func (s *Session) Advice() (string, error) {
	var tip string
	err := s.loop.Do(func() { tip = game.Advise(s.engine) })
	return tip, err
}

func (s *Session) ActiveEvents() ([]events.Active, error) {
	var out []events.Active
	err := s.loop.Do(func() { out = s.scheduler.Active() })
	return out, err
}

// Save writes the game and raises a notice either way.
func (s *Session) Save(ctx context.Context) error {
	var saveErr error
	if err := s.loop.Do(func() { saveErr = s.persist(ctx, false) }); err != nil {
		return err
	}
	return saveErr
}

// Load replaces the running game with the stored one. With nothing stored
// the running game is kept and save.ErrNotFound is returned.
func (s *Session) Load(ctx context.Context) error {
	var loadErr error
	err := s.loop.Do(func() {
		st, err := s.saves.Load(ctx)
		if err != nil {
			loadErr = err
			return
		}
		s.replace(st)
		s.logger.Info("game loaded")
	})
	if err != nil {
		return err
	}
	return loadErr
}

// Reset deletes the stored game, cancels every pending timer and starts
// over from a fresh state.
func (s *Session) Reset(ctx context.Context) error {
	var delErr error
	err := s.loop.Do(func() {
		delErr = s.saves.Delete(ctx)
		s.stopTimers()
		s.replace(game.NewState(s.engine.Catalog(), s.clock.Now(), s.engine.Rules().StartingMoney))
		if s.started {
			s.startTimers()
		}
		s.logger.Info("game reset")
		s.engine.Publish(game.NoticeSignal(game.Notice{
			Kind:     game.NoticeReset,
			Title:    "Fresh start",
			Message:  "All progress wiped. Back to the streets!",
			Category: game.CategoryInfo,
			Duration: 2 * time.Second,
		}))
	})
	if err != nil {
		return err
	}
	return delErr
}

package game

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"streethustle/internal/catalog"
)

// Rules are the balance constants the formulas depend on.
type Rules struct {
	StartingMoney float64
	// UnlockLevel is the level the previous hustle must reach before the
	// next one can be bought.
	UnlockLevel int
	// FirstUpgradeBase replaces a zero baseCost when pricing upgrades.
	FirstUpgradeBase float64
	// ManualFraction is the share of one cycle's income paid per click.
	ManualFraction float64
}

func DefaultRules() Rules {
	return Rules{
		StartingMoney:    500,
		UnlockLevel:      5,
		FirstUpgradeBase: 500,
		ManualFraction:   0.1,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r == (Rules{}) {
		return d
	}
	if r.StartingMoney < 0 {
		r.StartingMoney = d.StartingMoney
	}
	if r.UnlockLevel <= 0 {
		r.UnlockLevel = d.UnlockLevel
	}
	if r.FirstUpgradeBase <= 0 {
		r.FirstUpgradeBase = d.FirstUpgradeBase
	}
	if r.ManualFraction <= 0 {
		r.ManualFraction = d.ManualFraction
	}
	return r
}

type Options struct {
	Rules     Rules
	Publisher Publisher
	Logger    *slog.Logger
}

// Engine owns the game state and every formula over it. It is not safe for
// concurrent use; callers serialize access (see internal/loop).
type Engine struct {
	catalog   *catalog.Catalog
	state     *State
	rules     Rules
	publisher Publisher
	logger    *slog.Logger
}

// NewEngine takes ownership of state. A nil state starts a fresh game at now.
func NewEngine(cat *catalog.Catalog, state *State, now time.Time, opts Options) *Engine {
	rules := opts.Rules.withDefaults()
	if state == nil {
		state = NewState(cat, now, rules.StartingMoney)
	}
	state.EnsureHustles(cat)
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		catalog:   cat,
		state:     state,
		rules:     rules,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}
}

func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

func (e *Engine) Rules() Rules { return e.rules }

// State exposes the live state for read access on the engine's goroutine.
func (e *Engine) State() *State { return e.state }

// Snapshot is a deep copy of the live state.
func (e *Engine) Snapshot() *State { return e.state.Clone() }

// Replace swaps in a new state, e.g. after load or reset.
func (e *Engine) Replace(s *State) {
	s.EnsureHustles(e.catalog)
	e.state = s
	e.publisher.Publish(Changed())
}

func (e *Engine) SetPublisher(p Publisher) {
	if p == nil {
		p = NopPublisher()
	}
	e.publisher = p
}

func (e *Engine) hustle(id string) (catalog.Definition, *HustleState, bool) {
	def, ok := e.catalog.Get(id)
	if !ok {
		return catalog.Definition{}, nil, false
	}
	hs, ok := e.state.Hustles[id]
	if !ok || hs == nil {
		return def, nil, false
	}
	return def, hs, true
}

// Cost is the price of the next buy: the unlock price while locked, the
// upgrade price afterwards.
func (e *Engine) Cost(id string) float64 {
	def, hs, ok := e.hustle(id)
	if !ok {
		return 0
	}
	if !hs.IsUnlocked {
		return float64(def.BaseCost)
	}
	base := float64(def.BaseCost)
	if def.BaseCost == 0 {
		base = e.rules.FirstUpgradeBase
	}
	return math.Ceil(base * math.Pow(def.CostMultiplier, float64(hs.Level)))
}

// Income is what one automation cycle pays right now.
func (e *Engine) Income(id string) float64 {
	def, hs, ok := e.hustle(id)
	if !ok || !hs.IsUnlocked || hs.Level == 0 {
		return 0
	}
	return float64(hs.Level) * float64(def.BaseIncome) * hs.EventMultiplier
}

// IncomePerSecond amortizes each automated hustle's cycle income over its
// timer.
func (e *Engine) IncomePerSecond() float64 {
	total := 0.0
	for _, def := range e.catalog.All() {
		hs, ok := e.state.Hustles[def.ID]
		if !ok || hs == nil || !hs.IsAutomated || hs.Level <= 0 {
			continue
		}
		total += e.Income(def.ID) / (float64(def.Automation.Timer) / 1000)
	}
	return total
}

func (e *Engine) earn(amount float64) {
	if amount <= 0 {
		return
	}
	e.state.Money += amount
	e.state.TotalEarnings += amount
}

// Tick advances automation by elapsedMs and then re-checks unlock gating.
// Large gaps are caught up in one pass.
func (e *Engine) Tick(elapsedMs int64) {
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	earned := 0.0
	for _, def := range e.catalog.All() {
		hs, ok := e.state.Hustles[def.ID]
		if !ok || hs == nil || !hs.IsAutomated || hs.Level <= 0 {
			continue
		}
		hs.AutomationProgress += elapsedMs
		timer := def.Automation.Timer
		if hs.AutomationProgress >= timer {
			cycles := hs.AutomationProgress / timer
			earned += float64(cycles) * e.Income(def.ID)
			hs.AutomationProgress %= timer
		}
	}
	e.earn(earned)
	e.CheckUnlocks()
	e.publisher.Publish(Changed())
}

// Advance ticks by the wall time since the last update.
func (e *Engine) Advance(now time.Time) {
	ms := Millis(now)
	elapsed := ms - e.state.LastUpdate
	e.state.LastUpdate = ms
	e.Tick(elapsed)
}

// CheckUnlocks opens hustle i for purchase once hustle i-1 reaches the
// unlock level. It only ever sets canUnlock.
func (e *Engine) CheckUnlocks() {
	for i := 1; i < e.catalog.Len(); i++ {
		def := e.catalog.At(i)
		hs, ok := e.state.Hustles[def.ID]
		if !ok || hs == nil || hs.IsUnlocked || hs.CanUnlock {
			continue
		}
		prev, ok := e.state.Hustles[e.catalog.At(i-1).ID]
		if !ok || prev == nil || prev.Level < e.rules.UnlockLevel {
			continue
		}
		hs.CanUnlock = true
		e.logger.Info("hustle can now be unlocked", "hustle", def.ID)
	}
}

// ManualHustle pays a fraction of one cycle for a click. When level > 0 the
// event multiplier is applied on top of Income, which already includes it.
func (e *Engine) ManualHustle(id string) {
	def, hs, ok := e.hustle(id)
	if !ok || !hs.IsUnlocked {
		e.logger.Debug("manual hustle ignored", "hustle", id)
		return
	}
	base := float64(def.BaseIncome) * e.rules.ManualFraction
	if hs.Level > 0 {
		base = e.Income(id) * e.rules.ManualFraction
	}
	amount := base * hs.EventMultiplier
	e.earn(amount)

	e.publisher.Publish(Signal{
		Type: SignalCoin,
		Coin: &CoinPopup{HustleID: id, Amount: amount, Text: "+" + FormatMoney(amount)},
	})
	e.publisher.Publish(Changed())
}

// Buy unlocks a hustle or raises its level by one. Anything the player
// cannot afford or is not yet allowed to buy is ignored.
func (e *Engine) Buy(id string) {
	def, hs, ok := e.hustle(id)
	if !ok {
		e.logger.Debug("buy ignored: unknown hustle", "hustle", id)
		return
	}
	if !hs.IsUnlocked && !hs.CanUnlock {
		e.logger.Debug("buy ignored: hustle still locked", "hustle", id)
		return
	}
	cost := e.Cost(id)
	if e.state.Money < cost {
		e.publisher.Publish(NoticeSignal(Notice{
			Kind:     NoticeInsufficientFunds,
			Title:    "Not enough cash",
			Message:  fmt.Sprintf("%s needs UGX %s.", def.Name, FormatMoney(cost)),
			Category: CategoryWarning,
			HustleID: id,
			Duration: 2 * time.Second,
		}))
		return
	}

	e.state.Money -= cost
	unlock := !hs.IsUnlocked
	if unlock {
		hs.IsUnlocked = true
		hs.Level = 1
		hs.CanUnlock = false
		e.logger.Info("hustle unlocked", "hustle", id)
		e.publisher.Publish(NoticeSignal(Notice{
			Kind:     NoticeUnlocked,
			Title:    "New Hustle Unlocked! 🎉",
			Message:  fmt.Sprintf("%s %s is now available!", def.Icon, def.Name),
			Category: CategorySuccess,
			HustleID: id,
			Duration: 2 * time.Second,
		}))
	} else {
		hs.Level++
	}

	if !hs.IsAutomated && hs.Level >= def.Automation.UnlockRequirement {
		hs.IsAutomated = true
		e.logger.Info("hustle automated", "hustle", id, "level", hs.Level)
		e.publisher.Publish(NoticeSignal(Notice{
			Kind:     NoticeAutomated,
			Title:    "Automation Unlocked! 🤖",
			Message:  fmt.Sprintf("%s is now automated!", def.Name),
			Category: CategorySuccess,
			HustleID: id,
			Duration: 2 * time.Second,
		}))
	}

	e.publisher.Publish(Signal{
		Type:     SignalPurchase,
		Purchase: &Purchase{HustleID: id, Cost: cost, Level: hs.Level, Unlock: unlock},
	})
	e.publisher.Publish(Changed())
}

// Earning reports whether id is unlocked with level > 0, which is what the
// event scheduler requires of a target.
func (e *Engine) Earning(id string) bool {
	_, hs, ok := e.hustle(id)
	return ok && hs.IsUnlocked && hs.Level > 0
}

func (e *Engine) EventMultiplier(id string) (float64, bool) {
	hs, ok := e.state.Hustles[id]
	if !ok || hs == nil {
		return 0, false
	}
	return hs.EventMultiplier, true
}

// SetEventMultiplier overrides the temporary income multiplier and returns
// the value it replaced.
func (e *Engine) SetEventMultiplier(id string, m float64) (float64, bool) {
	hs, ok := e.state.Hustles[id]
	if !ok || hs == nil {
		return 0, false
	}
	prev := hs.EventMultiplier
	hs.EventMultiplier = m
	return prev, true
}

// Publish forwards s to the engine's publisher so collaborators share one
// signal stream.
func (e *Engine) Publish(s Signal) { e.publisher.Publish(s) }

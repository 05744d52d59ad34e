package game

import (
	"time"

	"streethustle/internal/catalog"
)

// HustleState is the mutable progress of one catalog entry.
type HustleState struct {
	Level       int  `json:"level"`
	IsUnlocked  bool `json:"isUnlocked"`
	CanUnlock   bool `json:"canUnlock"`
	IsAutomated bool `json:"isAutomated"`
	// AutomationProgress is elapsed milliseconds toward the next payout.
	AutomationProgress int64   `json:"automationProgress"`
	EventMultiplier    float64 `json:"eventMultiplier"`
}

// State is the whole game, as persisted between sessions.
type State struct {
	Money            float64                 `json:"money"`
	Hustles          map[string]*HustleState `json:"hustles"`
	LastUpdate       int64                   `json:"lastUpdate"`
	TotalEarnings    float64                 `json:"totalEarnings"`
	GameStartTime    int64                   `json:"gameStartTime"`
	SessionStartTime int64                   `json:"sessionStartTime"`
}

// InitialHustleState is the locked starting point for def. Only a zero-cost
// hustle may be unlocked straight away.
func InitialHustleState(def catalog.Definition) HustleState {
	return HustleState{
		CanUnlock:       def.BaseCost == 0,
		EventMultiplier: 1,
	}
}

// NewState builds a fresh game with every catalog hustle present.
func NewState(cat *catalog.Catalog, now time.Time, startingMoney float64) *State {
	ms := Millis(now)
	s := &State{
		Money:            startingMoney,
		Hustles:          make(map[string]*HustleState, cat.Len()),
		LastUpdate:       ms,
		GameStartTime:    ms,
		SessionStartTime: ms,
	}
	s.EnsureHustles(cat)
	return s
}

// EnsureHustles adds default entries for catalog hustles missing from s.
func (s *State) EnsureHustles(cat *catalog.Catalog) {
	if s.Hustles == nil {
		s.Hustles = make(map[string]*HustleState, cat.Len())
	}
	for _, def := range cat.All() {
		if _, ok := s.Hustles[def.ID]; ok {
			continue
		}
		hs := InitialHustleState(def)
		s.Hustles[def.ID] = &hs
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Hustles = make(map[string]*HustleState, len(s.Hustles))
	for id, hs := range s.Hustles {
		if hs == nil {
			continue
		}
		cp := *hs
		out.Hustles[id] = &cp
	}
	return &out
}

package events

import (
	"errors"
	"fmt"
	"time"

	"streethustle/internal/game"
)

// Template is one kind of street event bound to a single hustle.
type Template struct {
	ID       string `yaml:"id" json:"id"`
	HustleID string `yaml:"hustle" json:"hustleId"`
	Title    string `yaml:"title" json:"title"`
	Text     string `yaml:"text" json:"text"`
	// Category is the notice style; empty derives it from the multiplier.
	Category   game.Category `yaml:"category" json:"category,omitempty"`
	Duration   time.Duration `yaml:"duration" json:"duration"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
}

type Kind string

const (
	KindOutage  Kind = "outage"
	KindPenalty Kind = "penalty"
	KindBoost   Kind = "boost"
	KindNeutral Kind = "neutral"
)

// Kind classifies the template; a zero multiplier is an outage, not a
// penalty.
func (t Template) Kind() Kind {
	switch {
	case t.Multiplier == 0:
		return KindOutage
	case t.Multiplier < 1:
		return KindPenalty
	case t.Multiplier > 1:
		return KindBoost
	}
	return KindNeutral
}

func (t Template) NoticeCategory() game.Category {
	if t.Category != "" {
		return t.Category
	}
	switch t.Kind() {
	case KindOutage:
		return game.CategoryError
	case KindPenalty:
		return game.CategoryWarning
	case KindBoost:
		return game.CategorySuccess
	}
	return game.CategoryInfo
}

var ErrInvalidTemplate = errors.New("events: invalid template")

func (t Template) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidTemplate)
	case t.HustleID == "":
		return fmt.Errorf("%w: %s: missing hustle", ErrInvalidTemplate, t.ID)
	case t.Duration <= 0:
		return fmt.Errorf("%w: %s: duration must be positive", ErrInvalidTemplate, t.ID)
	case t.Multiplier < 0:
		return fmt.Errorf("%w: %s: negative multiplier", ErrInvalidTemplate, t.ID)
	}
	return nil
}

func DefaultTemplates() []Template {
	return []Template{
		{
			ID:         "power-outage",
			HustleID:   "charging",
			Title:      "Power Outage!",
			Text:       "Your charging booth is offline for 15 seconds. No income!",
			Category:   game.CategoryError,
			Duration:   15 * time.Second,
			Multiplier: 0,
		},
		{
			ID:         "festival-crowd",
			HustleID:   "rolex",
			Title:      "Festival Crowd!",
			Text:       "Snack sales are booming! x2 income for 30 seconds!",
			Category:   game.CategorySuccess,
			Duration:   30 * time.Second,
			Multiplier: 2,
		},
		{
			ID:         "sudden-downpour",
			HustleID:   "boda",
			Title:      "Sudden Downpour!",
			Text:       "The rain is ruining your Boda Boda rides. -50% income for 20 seconds.",
			Category:   game.CategoryWarning,
			Duration:   20 * time.Second,
			Multiplier: 0.5,
		},
	}
}

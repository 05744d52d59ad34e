package game

import (
	"fmt"
	"time"
)

type AutomationStatus string

const (
	AutomationActive AutomationStatus = "automated"
	AutomationReady  AutomationStatus = "ready"
	AutomationLocked AutomationStatus = "locked"
)

// Details is what the view shows when the player asks about one hustle.
type Details struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	Icon             string           `json:"icon"`
	Level            int              `json:"level"`
	IsUnlocked       bool             `json:"isUnlocked"`
	CanUnlock        bool             `json:"canUnlock"`
	Income           float64          `json:"income"`
	NextLevelIncome  float64          `json:"nextLevelIncome"`
	Cost             float64          `json:"cost"`
	EventMultiplier  float64          `json:"eventMultiplier"`
	Automation       AutomationStatus `json:"automation"`
	AutomationLevel  int              `json:"automationLevel"`
	AutomationTimer  time.Duration    `json:"automationTimer"`
	UnlockHint       string           `json:"unlockHint,omitempty"`
	ManualIncomeHint string           `json:"manualIncomeHint"`
}

func (e *Engine) Details(id string) (Details, bool) {
	def, hs, ok := e.hustle(id)
	if !ok {
		return Details{}, false
	}

	status := AutomationLocked
	switch {
	case hs.IsAutomated:
		status = AutomationActive
	case hs.Level >= def.Automation.UnlockRequirement:
		status = AutomationReady
	}

	d := Details{
		ID:               def.ID,
		Name:             def.Name,
		Description:      def.Description,
		Icon:             def.Icon,
		Level:            hs.Level,
		IsUnlocked:       hs.IsUnlocked,
		CanUnlock:        hs.CanUnlock,
		Income:           e.Income(id),
		NextLevelIncome:  float64(hs.Level+1) * float64(def.BaseIncome) * hs.EventMultiplier,
		Cost:             e.Cost(id),
		EventMultiplier:  hs.EventMultiplier,
		Automation:       status,
		AutomationLevel:  def.Automation.UnlockRequirement,
		AutomationTimer:  time.Duration(def.Automation.Timer) * time.Millisecond,
		ManualIncomeHint: fmt.Sprintf("Manual clicks give you %.0f%% of one automated cycle!", e.rules.ManualFraction*100),
	}
	if !hs.IsUnlocked {
		if prev, ok := e.catalog.Previous(id); ok {
			d.UnlockHint = fmt.Sprintf("Get %s to level %d", prev.Name, e.rules.UnlockLevel)
		}
	}
	return d, true
}

type HustleStats struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Icon        string  `json:"icon"`
	Level       int     `json:"level"`
	Income      float64 `json:"income"`
	IsAutomated bool    `json:"isAutomated"`
}

type EarningsStats struct {
	Money           float64       `json:"money"`
	TotalEarnings   float64       `json:"totalEarnings"`
	IncomePerSecond float64       `json:"incomePerSecond"`
	SessionTime     time.Duration `json:"sessionTime"`
	TotalGameTime   time.Duration `json:"totalGameTime"`
	Hustles         []HustleStats `json:"hustles"`
}

// Stats summarizes earnings at now. Only unlocked hustles are listed.
func (e *Engine) Stats(now time.Time) EarningsStats {
	ms := Millis(now)
	out := EarningsStats{
		Money:           e.state.Money,
		TotalEarnings:   e.state.TotalEarnings,
		IncomePerSecond: e.IncomePerSecond(),
		SessionTime:     time.Duration(ms-e.state.SessionStartTime) * time.Millisecond,
		TotalGameTime:   time.Duration(ms-e.state.GameStartTime) * time.Millisecond,
		Hustles:         []HustleStats{},
	}
	for _, def := range e.catalog.All() {
		hs, ok := e.state.Hustles[def.ID]
		if !ok || hs == nil || !hs.IsUnlocked {
			continue
		}
		out.Hustles = append(out.Hustles, HustleStats{
			ID:          def.ID,
			Name:        def.Name,
			Icon:        def.Icon,
			Level:       hs.Level,
			Income:      e.Income(def.ID),
			IsAutomated: hs.IsAutomated,
		})
	}
	return out
}

// FormatDuration renders play time the way the stats panel does: "1h 5m",
// "4m 10s", "42s".
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}

package telemetry

import (
	"encoding/json"
	"time"
)

// Stats summarizes recorded events. Ticks and TickedMs are not derived from
// events; the session counts them and fills them in.
type Stats struct {
	Since             time.Time         `json:"since"`
	EventCounts       map[EventType]int `json:"event_counts"`
	ManualHustles     int               `json:"manual_hustles"`
	ManualIncome      float64           `json:"manual_income"`
	Purchases         int               `json:"purchases"`
	Spent             float64           `json:"spent"`
	Unlocks           int               `json:"unlocks"`
	Automations       int               `json:"automations"`
	EventsStarted     int               `json:"events_started"`
	EventsEnded       int               `json:"events_ended"`
	Ticks             int               `json:"ticks"`
	TickedMs          int64             `json:"ticked_ms"`
	PurchasesByHustle map[string]int    `json:"purchases_by_hustle"`
	ClicksByHustle    map[string]int    `json:"clicks_by_hustle"`
	EventsByID        map[string]int    `json:"events_by_id"`
}

// CalculateStats folds events into per-session gameplay counters.
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Since:             since,
		EventCounts:       make(map[EventType]int),
		PurchasesByHustle: make(map[string]int),
		ClicksByHustle:    make(map[string]int),
		EventsByID:        make(map[string]int),
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}
		hustle, _ := metadata["hustle"].(string)

		switch event.Type {
		case EventManualHustle:
			stats.ManualHustles++
			if amount, ok := metadata["amount"].(float64); ok {
				stats.ManualIncome += amount
			}
			if hustle != "" {
				stats.ClicksByHustle[hustle]++
			}
		case EventPurchase:
			stats.Purchases++
			if cost, ok := metadata["cost"].(float64); ok {
				stats.Spent += cost
			}
			if hustle != "" {
				stats.PurchasesByHustle[hustle]++
			}
		case EventUnlocked:
			stats.Unlocks++
		case EventAutomated:
			stats.Automations++
		case EventStarted:
			stats.EventsStarted++
			if id, ok := metadata["event"].(string); ok {
				stats.EventsByID[id]++
			}
		case EventEnded:
			stats.EventsEnded++
		}
	}
	return stats, nil
}

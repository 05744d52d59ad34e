package telemetry

import "time"

type EventType string

const (
	EventManualHustle EventType = "manual_hustle"
	EventPurchase     EventType = "purchase"
	EventUnlocked     EventType = "unlocked"
	EventAutomated    EventType = "automated"
	EventStarted      EventType = "event_started"
	EventEnded        EventType = "event_ended"
	EventSaved        EventType = "saved"
	EventReset        EventType = "reset"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}

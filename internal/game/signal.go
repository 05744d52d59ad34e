package game

import "time"

type SignalType string

const (
	// SignalChanged asks the view to re-pull state. It carries no payload.
	SignalChanged SignalType = "changed"
	SignalNotice  SignalType = "notice"
	SignalCoin    SignalType = "coin"
	// SignalPurchase reports a completed buy; the view does not need it but
	// telemetry does.
	SignalPurchase SignalType = "purchase"
)

type NoticeKind string

const (
	NoticeUnlocked          NoticeKind = "unlocked"
	NoticeAutomated         NoticeKind = "automated"
	NoticeInsufficientFunds NoticeKind = "insufficient_funds"
	NoticeEventStarted      NoticeKind = "event_started"
	NoticeEventEnded        NoticeKind = "event_ended"
	NoticeSaved             NoticeKind = "saved"
	NoticeSaveFailed        NoticeKind = "save_failed"
	NoticeReset             NoticeKind = "reset"
)

// Category mirrors the toast styles the view knows how to draw.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
	CategoryInfo    Category = "info"
)

type Notice struct {
	Kind     NoticeKind `json:"kind"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
	Category Category   `json:"category"`
	HustleID string     `json:"hustleId,omitempty"`
	EventID  string     `json:"eventId,omitempty"`
	// Duration is how long the view should keep the notice up; 0 means
	// until dismissed.
	Duration time.Duration `json:"duration,omitempty"`
}

// CoinPopup is the floating "+amount" shown where a manual hustle was clicked.
type CoinPopup struct {
	HustleID string  `json:"hustleId"`
	Amount   float64 `json:"amount"`
	Text     string  `json:"text"`
}

type Purchase struct {
	HustleID string  `json:"hustleId"`
	Cost     float64 `json:"cost"`
	Level    int     `json:"level"`
	Unlock   bool    `json:"unlock"`
}

type Signal struct {
	Type     SignalType `json:"type"`
	Notice   *Notice    `json:"notice,omitempty"`
	Coin     *CoinPopup `json:"coin,omitempty"`
	Purchase *Purchase  `json:"purchase,omitempty"`
}

func Changed() Signal { return Signal{Type: SignalChanged} }

func NoticeSignal(n Notice) Signal { return Signal{Type: SignalNotice, Notice: &n} }

type Publisher interface {
	Publish(Signal)
}

type PublisherFunc func(Signal)

func (f PublisherFunc) Publish(s Signal) {
	if f == nil {
		return
	}
	f(s)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Signal) {}

func NopPublisher() Publisher { return nopPublisher{} }

// Recorder keeps every published signal. Tests use it to assert on what the
// view would have seen.
type Recorder struct {
	Signals []Signal
}

func (r *Recorder) Publish(s Signal) { r.Signals = append(r.Signals, s) }

func (r *Recorder) Notices() []Notice {
	var out []Notice
	for _, s := range r.Signals {
		if s.Notice != nil {
			out = append(out, *s.Notice)
		}
	}
	return out
}

func (r *Recorder) Count(t SignalType) int {
	n := 0
	for _, s := range r.Signals {
		if s.Type == t {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() { r.Signals = nil }

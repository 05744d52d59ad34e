package telemetry

import (
	"log/slog"

	"streethustle/internal/game"
)

// SignalRecorder turns engine signals into telemetry events.
type SignalRecorder struct {
	repo   Repository
	logger *slog.Logger
}

func NewSignalRecorder(repo Repository, logger *slog.Logger) *SignalRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalRecorder{repo: repo, logger: logger}
}

func (r *SignalRecorder) Publish(s game.Signal) {
	typ, meta, ok := classify(s)
	if !ok {
		return
	}
	if err := r.repo.RecordEvent(typ, meta); err != nil {
		r.logger.Warn("telemetry record failed", "type", typ, "err", err)
	}
}

func classify(s game.Signal) (EventType, EventMetadata, bool) {
	switch {
	case s.Type == game.SignalCoin && s.Coin != nil:
		return EventManualHustle, EventMetadata{"hustle": s.Coin.HustleID, "amount": s.Coin.Amount}, true
	case s.Type == game.SignalPurchase && s.Purchase != nil:
		return EventPurchase, EventMetadata{
			"hustle": s.Purchase.HustleID,
			"cost":   s.Purchase.Cost,
			"level":  s.Purchase.Level,
			"unlock": s.Purchase.Unlock,
		}, true
	case s.Type == game.SignalNotice && s.Notice != nil:
		n := s.Notice
		meta := EventMetadata{"hustle": n.HustleID}
		switch n.Kind {
		case game.NoticeUnlocked:
			return EventUnlocked, meta, true
		case game.NoticeAutomated:
			return EventAutomated, meta, true
		case game.NoticeEventStarted:
			meta["event"] = n.EventID
			return EventStarted, meta, true
		case game.NoticeEventEnded:
			meta["event"] = n.EventID
			return EventEnded, meta, true
		case game.NoticeSaved:
			return EventSaved, EventMetadata{}, true
		case game.NoticeReset:
			return EventReset, EventMetadata{}, true
		}
	}
	return "", nil, false
}

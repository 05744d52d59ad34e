package save

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"streethustle/internal/catalog"
	"streethustle/internal/game"
)

// wireState mirrors game.State but keeps hustles raw so each one can be laid
// over its own defaults.
type wireState struct {
	Money            float64                    `json:"money"`
	Hustles          map[string]json.RawMessage `json:"hustles"`
	LastUpdate       int64                      `json:"lastUpdate"`
	TotalEarnings    float64                    `json:"totalEarnings"`
	GameStartTime    int64                      `json:"gameStartTime"`
	SessionStartTime int64                      `json:"sessionStartTime"`
}

func Encode(s *game.State) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("save: nil state")
	}
	return json.Marshal(s)
}

// Decode overlays the fields present in blob onto a fresh state built from
// cat at now. A hustle missing canUnlock gets baseCost==0; one missing
// eventMultiplier gets 1. Ids no longer in the catalog are kept as-is and
// catalog hustles absent from the blob get the standard defaults.
func Decode(blob []byte, cat *catalog.Catalog, now time.Time, startingMoney float64) (*game.State, error) {
	fresh := game.NewState(cat, now, startingMoney)
	w := wireState{
		Money:            fresh.Money,
		LastUpdate:       fresh.LastUpdate,
		TotalEarnings:    fresh.TotalEarnings,
		GameStartTime:    fresh.GameStartTime,
		SessionStartTime: fresh.SessionStartTime,
	}
	if len(bytes.TrimSpace(blob)) == 0 {
		return nil, fmt.Errorf("save: empty blob")
	}
	if err := json.Unmarshal(blob, &w); err != nil {
		return nil, fmt.Errorf("save: decode: %w", err)
	}

	out := &game.State{
		Money:            w.Money,
		Hustles:          fresh.Hustles,
		LastUpdate:       w.LastUpdate,
		TotalEarnings:    w.TotalEarnings,
		GameStartTime:    w.GameStartTime,
		SessionStartTime: w.SessionStartTime,
	}
	for id, raw := range w.Hustles {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		hs := game.HustleState{EventMultiplier: 1}
		if def, ok := cat.Get(id); ok {
			hs = game.InitialHustleState(def)
		}
		if err := json.Unmarshal(raw, &hs); err != nil {
			return nil, fmt.Errorf("save: decode hustle %s: %w", id, err)
		}
		out.Hustles[id] = &hs
	}
	return out, nil
}

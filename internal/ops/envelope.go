// Package ops moves saves in and out of a store: digest-checked export
// envelopes and tar.gz archives of a file store directory.
package ops

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"streethustle/internal/catalog"
	"streethustle/internal/game"
	"streethustle/internal/save"
)

var ErrDigestMismatch = errors.New("ops: digest mismatch")

// Envelope carries one stored blob with enough metadata to verify it later.
type Envelope struct {
	Key     string          `json:"key"`
	SavedAt time.Time       `json:"savedAt"`
	Digest  string          `json:"digest"`
	Blob    json.RawMessage `json:"blob"`
}

// Digest is the hex blake3-256 of blob.
func Digest(blob []byte) string {
	sum := blake3.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// compact is the form digests are taken over.
func compact(blob []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, blob); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Export(ctx context.Context, store save.Store, key string, now time.Time) (Envelope, error) {
	if strings.TrimSpace(key) == "" {
		key = save.DefaultKey
	}
	blob, err := store.Get(ctx, key)
	if err != nil {
		return Envelope{}, fmt.Errorf("export %q: %w", key, err)
	}
	blob, err = compact(blob)
	if err != nil {
		return Envelope{}, fmt.Errorf("export %q: stored blob is not JSON: %w", key, err)
	}
	return Envelope{
		Key:     key,
		SavedAt: now.UTC(),
		Digest:  Digest(blob),
		Blob:    json.RawMessage(blob),
	}, nil
}

// Verify checks the digest against the compacted blob.
func (e Envelope) Verify() error {
	blob, err := compact(e.Blob)
	if err != nil {
		return fmt.Errorf("%w: blob is not JSON: %v", ErrDigestMismatch, err)
	}
	if got := Digest(blob); got != e.Digest {
		return fmt.Errorf("%w: envelope says %s, blob hashes to %s", ErrDigestMismatch, e.Digest, got)
	}
	return nil
}

// Import verifies env and writes its blob. An empty key keeps env.Key.
func Import(ctx context.Context, store save.Store, env Envelope, key string) error {
	if err := env.Verify(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		key = env.Key
	}
	if key == "" {
		key = save.DefaultKey
	}
	blob, err := compact(env.Blob)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, key, blob); err != nil {
		return fmt.Errorf("import %q: %w", key, err)
	}
	return nil
}

func WriteEnvelope(w io.Writer, env Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

func ReadEnvelope(r io.Reader) (Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("read envelope: %w", err)
	}
	if len(env.Blob) == 0 {
		return Envelope{}, errors.New("read envelope: no blob")
	}
	return env, nil
}

type HustleSummary struct {
	ID         string  `json:"id"`
	Level      int     `json:"level"`
	Automated  bool    `json:"automated"`
	Multiplier float64 `json:"eventMultiplier"`
	InCatalog  bool    `json:"inCatalog"`
}

type Summary struct {
	Key           string          `json:"key"`
	SavedAt       time.Time       `json:"savedAt"`
	Digest        string          `json:"digest"`
	DigestOK      bool            `json:"digestOk"`
	Money         string          `json:"money"`
	TotalEarnings string          `json:"totalEarnings"`
	GameStarted   time.Time       `json:"gameStarted"`
	Hustles       []HustleSummary `json:"hustles"`
}

// Inspect decodes env against cat. A bad digest is reported, not fatal.
func Inspect(env Envelope, cat *catalog.Catalog, now time.Time) (Summary, error) {
	st, err := save.Decode(env.Blob, cat, now, game.DefaultRules().StartingMoney)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{
		Key:           env.Key,
		SavedAt:       env.SavedAt,
		Digest:        env.Digest,
		DigestOK:      env.Verify() == nil,
		Money:         game.FormatMoney(st.Money),
		TotalEarnings: game.FormatMoney(st.TotalEarnings),
		GameStarted:   game.FromMillis(st.GameStartTime).UTC(),
	}
	seen := map[string]bool{}
	for _, def := range cat.All() {
		seen[def.ID] = true
		if hs := st.Hustles[def.ID]; hs != nil {
			out.Hustles = append(out.Hustles, summarize(def.ID, hs, true))
		}
	}
	for id, hs := range st.Hustles {
		if !seen[id] && hs != nil {
			out.Hustles = append(out.Hustles, summarize(id, hs, false))
		}
	}
	return out, nil
}

func summarize(id string, hs *game.HustleState, known bool) HustleSummary {
	return HustleSummary{
		ID:         id,
		Level:      hs.Level,
		Automated:  hs.IsAutomated,
		Multiplier: hs.EventMultiplier,
		InCatalog:  known,
	}
}

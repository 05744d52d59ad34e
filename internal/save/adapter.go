package save

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"streethustle/internal/catalog"
	"streethustle/internal/game"
)

// Adapter binds a Store and key to the game's encoding. It never keeps a
// copy of the state between calls.
type Adapter struct {
	store         Store
	key           string
	catalog       *catalog.Catalog
	clock         game.Clock
	startingMoney float64
	logger        *slog.Logger
}

type AdapterOptions struct {
	Key           string
	Clock         game.Clock
	StartingMoney float64
	Logger        *slog.Logger
}

func NewAdapter(store Store, cat *catalog.Catalog, opts AdapterOptions) *Adapter {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Clock == nil {
		opts.Clock = game.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Adapter{
		store:         store,
		key:           opts.Key,
		catalog:       cat,
		clock:         opts.Clock,
		startingMoney: opts.StartingMoney,
		logger:        opts.Logger,
	}
}

func (a *Adapter) Key() string { return a.key }

func (a *Adapter) Store() Store { return a.store }

func (a *Adapter) Save(ctx context.Context, s *game.State) error {
	blob, err := Encode(s)
	if err != nil {
		return err
	}
	if err := a.store.Put(ctx, a.key, blob); err != nil {
		return fmt.Errorf("save: put %s: %w", a.key, err)
	}
	return nil
}

// Load returns ErrNotFound when nothing is stored. A blob that does not
// parse yields a fresh game instead of an error. lastUpdate is always reset
// to the current time.
func (a *Adapter) Load(ctx context.Context) (*game.State, error) {
	blob, err := a.store.Get(ctx, a.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("save: get %s: %w", a.key, err)
	}
	now := a.clock.Now()
	s, err := Decode(blob, a.catalog, now, a.startingMoney)
	if err != nil {
		a.logger.Warn("save file corrupted, starting fresh", "key", a.key, "err", err)
		return game.NewState(a.catalog, now, a.startingMoney), nil
	}
	s.LastUpdate = game.Millis(now)
	return s, nil
}

func (a *Adapter) Exists(ctx context.Context) (bool, error) {
	_, err := a.store.Get(ctx, a.key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

func (a *Adapter) Delete(ctx context.Context) error {
	return a.store.Delete(ctx, a.key)
}

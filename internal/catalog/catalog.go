package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

var (
	ErrEmpty   = errors.New("catalog: no hustles defined")
	ErrInvalid = errors.New("catalog: invalid hustle definition")
)

// Automation describes when a hustle starts paying out on its own.
type Automation struct {
	Timer             int64 `json:"timer" jsonschema:"required,minimum=1"`
	UnlockRequirement int   `json:"unlockRequirement" jsonschema:"required,minimum=1"`
}

// Definition is one immutable catalog entry.
type Definition struct {
	ID             string     `json:"id" jsonschema:"required,minLength=1"`
	Name           string     `json:"name" jsonschema:"required"`
	Description    string     `json:"description,omitempty"`
	Icon           string     `json:"icon,omitempty"`
	BaseIncome     int64      `json:"baseIncome" jsonschema:"required,minimum=0"`
	BaseCost       int64      `json:"baseCost" jsonschema:"required,minimum=0"`
	CostMultiplier float64    `json:"costMultiplier" jsonschema:"required"`
	Automation     Automation `json:"automation" jsonschema:"required"`
}

// Catalog is the ordered hustle list. Order is unlock order.
type Catalog struct {
	defs  []Definition
	index map[string]int
}

// New validates defs and builds a catalog over a private copy of them.
func New(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, ErrEmpty
	}
	c := &Catalog{
		defs:  make([]Definition, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)

	for i, d := range c.defs {
		if err := validate(i, d); err != nil {
			return nil, err
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalid, d.ID)
		}
		c.index[d.ID] = i
	}
	return c, nil
}

func validate(i int, d Definition) error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return fmt.Errorf("%w: entry %d has no id", ErrInvalid, i)
	case d.BaseIncome < 0:
		return fmt.Errorf("%w: %s baseIncome must be >= 0", ErrInvalid, d.ID)
	case d.BaseCost < 0:
		return fmt.Errorf("%w: %s baseCost must be >= 0", ErrInvalid, d.ID)
	case d.CostMultiplier <= 1:
		return fmt.Errorf("%w: %s costMultiplier must be > 1", ErrInvalid, d.ID)
	case d.Automation.Timer <= 0:
		return fmt.Errorf("%w: %s automation.timer must be > 0", ErrInvalid, d.ID)
	case d.Automation.UnlockRequirement <= 0:
		return fmt.Errorf("%w: %s automation.unlockRequirement must be > 0", ErrInvalid, d.ID)
	case i == 0 && d.BaseCost != 0:
		return fmt.Errorf("%w: first hustle %s must have baseCost 0", ErrInvalid, d.ID)
	case i > 0 && d.BaseCost == 0:
		return fmt.Errorf("%w: only the first hustle may have baseCost 0 (%s)", ErrInvalid, d.ID)
	}
	return nil
}

func (c *Catalog) Len() int { return len(c.defs) }

// All returns the definitions in unlock order. The slice is a copy.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) At(i int) Definition { return c.defs[i] }

func (c *Catalog) Get(id string) (Definition, bool) {
	i, ok := c.index[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Index returns the unlock position of id, or -1.
func (c *Catalog) Index(id string) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

// Previous returns the hustle that gates id, if any.
func (c *Catalog) Previous(id string) (Definition, bool) {
	i := c.Index(id)
	if i <= 0 {
		return Definition{}, false
	}
	return c.defs[i-1], true
}

// Parse decodes a catalog document: a JSON array of definitions.
func Parse(b []byte) (*Catalog, error) {
	var defs []Definition
	if err := json.Unmarshal(b, &defs); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(defs)
}

func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

func LoadFS(fsys fs.FS, name string) (*Catalog, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// LoadOrFallback never fails: any read or parse problem is logged and the
// built-in catalog is returned instead.
func LoadOrFallback(path string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := LoadFile(path)
	if err != nil {
		logger.Warn("hustle catalog unavailable, using built-in fallback", "path", path, "error", err)
		return Fallback()
	}
	logger.Info("hustle catalog loaded", "path", path, "hustles", c.Len())
	return c
}

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"streethustle/internal/events"
	"streethustle/internal/game"
	"streethustle/internal/save"
	"streethustle/internal/session"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`
	Game    GameConfig    `yaml:"game" json:"game"`
	Events  EventsConfig  `yaml:"events" json:"events"`
	Store   StoreConfig   `yaml:"store" json:"store"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type CatalogConfig struct {
	Path string `yaml:"path" json:"path"`
}

type GameConfig struct {
	// StartingMoney and AutosaveInterval use their defaults only when
	// omitted; an autosave interval of 0 turns autosave off.
	StartingMoney    *float64       `yaml:"starting_money" json:"starting_money"`
	TickInterval     time.Duration  `yaml:"tick_interval" json:"tick_interval"`
	UnlockLevel      int            `yaml:"unlock_level" json:"unlock_level"`
	FirstUpgradeBase float64        `yaml:"first_upgrade_base" json:"first_upgrade_base"`
	ManualFraction   float64        `yaml:"manual_fraction" json:"manual_fraction"`
	AutosaveInterval *time.Duration `yaml:"autosave_interval" json:"autosave_interval"`
}

type EventsConfig struct {
	// Enabled defaults to true when omitted.
	Enabled   *bool             `yaml:"enabled" json:"enabled"`
	Warmup    time.Duration     `yaml:"warmup" json:"warmup"`
	MinDelay  time.Duration     `yaml:"min_delay" json:"min_delay"`
	MaxDelay  time.Duration     `yaml:"max_delay" json:"max_delay"`
	Templates []events.Template `yaml:"templates" json:"templates"`
}

type StoreConfig struct {
	Driver    string `yaml:"driver" json:"driver"`
	Path      string `yaml:"path" json:"path"`
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	Key       string `yaml:"key" json:"key"`
}

func (b *GameConfig) ApplyDefaults() {
	if b.StartingMoney == nil {
		money := 500.0
		b.StartingMoney = &money
	}
	if b.TickInterval == 0 {
		b.TickInterval = 100 * time.Millisecond
	}
	if b.UnlockLevel == 0 {
		b.UnlockLevel = 5
	}
	if b.FirstUpgradeBase == 0 {
		b.FirstUpgradeBase = 500
	}
	if b.ManualFraction == 0 {
		b.ManualFraction = 0.1
	}
	if b.AutosaveInterval == nil {
		every := 30 * time.Second
		b.AutosaveInterval = &every
	}
}

func (e *EventsConfig) ApplyDefaults() {
	if e.Enabled == nil {
		on := true
		e.Enabled = &on
	}
	d := events.DefaultConfig()
	if e.Warmup == 0 {
		e.Warmup = d.Warmup
	}
	if e.MinDelay == 0 {
		e.MinDelay = d.MinDelay
	}
	if e.MaxDelay == 0 {
		e.MaxDelay = d.MaxDelay
	}
	if len(e.Templates) == 0 {
		e.Templates = events.DefaultTemplates()
	}
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":42069"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "hustles.json"
	}
	c.Game.ApplyDefaults()
	c.Events.ApplyDefaults()
	if c.Store.Driver == "" {
		c.Store.Driver = save.DriverFile
	}
	if c.Store.Path == "" {
		c.Store.Path = "data"
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "localhost:6379"
	}
	if c.Store.Key == "" {
		c.Store.Key = save.DefaultKey
	}
}

func Default() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case save.DriverFile, save.DriverSQLite, save.DriverRedis, save.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown %q", c.Store.Driver))
	}
	if c.Game.Money() < 0 {
		errs = append(errs, fmt.Errorf("game.starting_money: must not be negative"))
	}
	if c.Game.Autosave() < 0 {
		errs = append(errs, fmt.Errorf("game.autosave_interval: must not be negative"))
	}
	if c.Game.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("game.tick_interval: must be positive"))
	}
	if c.Events.MaxDelay < c.Events.MinDelay {
		errs = append(errs, fmt.Errorf("events: max_delay %s below min_delay %s", c.Events.MaxDelay, c.Events.MinDelay))
	}
	seen := map[string]bool{}
	for _, t := range c.Events.Templates {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("events: duplicate template %q", t.ID))
		}
		seen[t.ID] = true
	}
	return errors.Join(errs...)
}

// Load reads a YAML config. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var r Config
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	r.ApplyDefaults()
	return &r, nil
}

func (g GameConfig) Rules() game.Rules {
	return game.Rules{
		StartingMoney:    g.Money(),
		UnlockLevel:      g.UnlockLevel,
		FirstUpgradeBase: g.FirstUpgradeBase,
		ManualFraction:   g.ManualFraction,
	}
}

func (g GameConfig) Money() float64 {
	if g.StartingMoney == nil {
		return game.DefaultRules().StartingMoney
	}
	return *g.StartingMoney
}

// Autosave is the autosave period; 0 means disabled.
func (g GameConfig) Autosave() time.Duration {
	if g.AutosaveInterval == nil {
		return 30 * time.Second
	}
	return *g.AutosaveInterval
}

func (e EventsConfig) On() bool { return e.Enabled == nil || *e.Enabled }

func (c *Config) Session() session.Config {
	return session.Config{
		Rules:            c.Game.Rules(),
		TickInterval:     c.Game.TickInterval,
		AutosaveInterval: c.Game.Autosave(),
		EventsEnabled:    c.Events.On(),
		Events: events.Config{
			Warmup:   c.Events.Warmup,
			MinDelay: c.Events.MinDelay,
			MaxDelay: c.Events.MaxDelay,
		},
		Templates: c.Events.Templates,
	}
}

// StoreLocation is what save.Open expects for the configured driver.
func (s StoreConfig) StoreLocation() string {
	if s.Driver == save.DriverRedis {
		return s.RedisAddr
	}
	return s.Path
}

func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(l.Level)}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package config

import (
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every override, e.g. HUSTLE_SERVER_ADDR.
const EnvPrefix = "HUSTLE"

// ApplyEnv overlays HUSTLE_* environment variables onto c. Unset variables
// leave the file values alone.
func ApplyEnv(c *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	keys := []string{
		"server_addr",
		"log_level",
		"log_format",
		"catalog_path",
		"store_driver",
		"store_path",
		"store_key",
		"redis_addr",
		"events_enabled",
		"autosave_interval",
		"tick_interval",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if v.IsSet("server_addr") {
		c.Server.Addr = v.GetString("server_addr")
	}
	if v.IsSet("log_level") {
		c.Log.Level = v.GetString("log_level")
	}
	if v.IsSet("log_format") {
		c.Log.Format = v.GetString("log_format")
	}
	if v.IsSet("catalog_path") {
		c.Catalog.Path = v.GetString("catalog_path")
	}
	if v.IsSet("store_driver") {
		c.Store.Driver = v.GetString("store_driver")
	}
	if v.IsSet("store_path") {
		c.Store.Path = v.GetString("store_path")
	}
	if v.IsSet("store_key") {
		c.Store.Key = v.GetString("store_key")
	}
	if v.IsSet("redis_addr") {
		c.Store.RedisAddr = v.GetString("redis_addr")
	}
	if v.IsSet("events_enabled") {
		on := v.GetBool("events_enabled")
		c.Events.Enabled = &on
	}
	if v.IsSet("autosave_interval") {
		every := v.GetDuration("autosave_interval")
		c.Game.AutosaveInterval = &every
	}
	if v.IsSet("tick_interval") {
		if d := v.GetDuration("tick_interval"); d > 0 {
			c.Game.TickInterval = d
		}
	}
}

// LoadWithEnv is Load followed by ApplyEnv and Validate.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	ApplyEnv(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

/*
Package config loads the server configuration from a TOML file,
falling back to built-in defaults when no file is given.
*/
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	CORS      CORSConfig      `toml:"cors"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	// Path is the SQLite file; ":memory:" runs without persistence.
	Path string `toml:"path"`
}

type SchedulerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// duration lets TOML carry values like "24h" or "10m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "coinledger.db"},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: duration{24 * time.Hour},
		},
		CORS: CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// Load reads the TOML file at path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr must not be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path must not be empty")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval.Duration <= 0 {
		return fmt.Errorf("config: scheduler.interval must be positive when enabled")
	}
	return nil
}

// SchedulerInterval is the resolved tick interval.
func (c Config) SchedulerInterval() time.Duration {
	return c.Scheduler.Interval.Duration
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	DefaultPort        = 3000
	DefaultHostname    = "localhost"
	DefaultDatabaseURL = "feeds.db"
	DefaultFirehoseURL = "wss://bsky.network/xrpc/com.atproto.sync.subscribeRepos"
)

// Config holds all configuration for the application.
type Config struct {
	// Hostname is the public hostname where this service is reachable (used for did:web).
	Hostname string `mapstructure:"hostname"`

	// Port is the HTTP server port.
	Port int `mapstructure:"port"`

	// PublisherDID is the DID of the account that published the feed generator records.
	PublisherDID string `mapstructure:"publisher_did"`

	// DatabaseURL is a SQLite path or a postgres:// connection string.
	DatabaseURL string `mapstructure:"database_url"`

	// DatabaseMaxConns caps open database connections. Commit workers block
	// on the pool once it is exhausted.
	DatabaseMaxConns int `mapstructure:"database_max_conns"`

	// FirehoseURL is the relay's subscribeRepos WebSocket endpoint.
	FirehoseURL string `mapstructure:"firehose_url"`

	// Workers is the number of commit processing workers.
	Workers int `mapstructure:"workers"`

	// PostMaxAge and PostMaxRows bound the posts table.
	PostMaxAge  time.Duration `mapstructure:"post_max_age"`
	PostMaxRows int           `mapstructure:"post_max_rows"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`
}

// ServiceDID returns the did:web for this feed generator based on the hostname.
func (c *Config) ServiceDID() string {
	return "did:web:" + c.Hostname
}

// SlogLevel parses LogLevel, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// envKeys maps each config key to the environment variable it is read from.
var envKeys = map[string]string{
	"hostname":           "FEEDGEN_HOSTNAME",
	"port":               "PORT",
	"publisher_did":      "FEEDGEN_PUBLISHER_DID",
	"database_url":       "DATABASE_URL",
	"database_max_conns": "DATABASE_MAX_CONNS",
	"firehose_url":       "FEEDGEN_FIREHOSE_URL",
	"workers":            "FEEDGEN_WORKERS",
	"post_max_age":       "FEEDGEN_POST_MAX_AGE",
	"post_max_rows":      "FEEDGEN_POST_MAX_ROWS",
	"log_level":          "LOG_LEVEL",
}

// New returns a viper instance bound to the environment with defaults set.
// Callers may bind command-line flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.NewWithOptions(
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)
	v.AutomaticEnv()

	for key, env := range envKeys {
		_ = v.BindEnv(key, env)
	}

	v.SetDefault("hostname", DefaultHostname)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("publisher_did", "")
	v.SetDefault("database_url", DefaultDatabaseURL)
	v.SetDefault("database_max_conns", 5)
	v.SetDefault("firehose_url", DefaultFirehoseURL)
	v.SetDefault("workers", 8)
	v.SetDefault("post_max_age", 7*24*time.Hour)
	v.SetDefault("post_max_rows", 10000)
	v.SetDefault("log_level", "info")

	return v
}

// Load decodes v into a Config and validates it. requirePublisher is false
// for maintenance commands that never serve feeds.
func Load(v *viper.Viper, requirePublisher bool) (*Config, error) {
	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if requirePublisher && cfg.PublisherDID == "" {
		return nil, errors.New("FEEDGEN_PUBLISHER_DID is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("invalid FEEDGEN_WORKERS: %d", cfg.Workers)
	}
	if cfg.DatabaseMaxConns < 1 {
		return nil, fmt.Errorf("invalid DATABASE_MAX_CONNS: %d", cfg.DatabaseMaxConns)
	}
	if cfg.PostMaxAge <= 0 {
		return nil, fmt.Errorf("invalid FEEDGEN_POST_MAX_AGE: %s", cfg.PostMaxAge)
	}
	if cfg.PostMaxRows < 1 {
		return nil, fmt.Errorf("invalid FEEDGEN_POST_MAX_ROWS: %d", cfg.PostMaxRows)
	}

	return cfg, nil
}

// Package config loads and validates service configuration via Viper.
//
// Bootstrap configuration covers wiring: endpoints, credentials, the
// database DSN and fixed loop cadences. Operator-tunable parameters (rate
// quota, interval bounds, maintenance flags, working hours) live in the
// durable settings store instead and are read through settings.Manager.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all bootstrap configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	DB          DBConfig          `mapstructure:"db"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Poller      PollerConfig      `mapstructure:"poller"`
	Forwarder   ForwarderConfig   `mapstructure:"forwarder"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Enrichment  EnrichmentConfig  `mapstructure:"enrichment"`
	Sink        SinkConfig        `mapstructure:"sink"`
	Sources     []SourceConfig    `mapstructure:"sources"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
}

// SchedulerConfig governs the primary processing loop's fixed waits.
// The randomized working interval is a runtime setting, not listed here.
type SchedulerConfig struct {
	SettingsRefreshSeconds int `mapstructure:"settings_refresh_seconds"`
	PausedSeconds          int `mapstructure:"paused_seconds"`
	IdleSeconds            int `mapstructure:"idle_seconds"`
	RateLimitedSeconds     int `mapstructure:"rate_limited_seconds"`
	RetrySeconds           int `mapstructure:"retry_seconds"`
}

// PollerConfig governs the ingestion poller's cache behavior. The poll
// cadence itself is a runtime setting re-read every cycle.
type PollerConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// ForwarderConfig governs the delayed dispatch forwarder cadence and the
// pacing between consecutive sink calls within one batch.
type ForwarderConfig struct {
	IntervalSeconds  int `mapstructure:"interval_seconds"`
	CallGapSeconds   int `mapstructure:"call_gap_seconds"`
	DispatchBatchMax int `mapstructure:"dispatch_batch_max"`
}

// CredentialsConfig governs the token refresh loop and client.
type CredentialsConfig struct {
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	TokenURL        string `mapstructure:"token_url"`
	ClientID        string `mapstructure:"client_id"`
	ClientSecret    string `mapstructure:"client_secret"`
	Principal       string `mapstructure:"principal"`
}

// EnrichmentConfig points at the external lookup API.
type EnrichmentConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SinkConfig points at the downstream webhook.
type SinkConfig struct {
	URL            string `mapstructure:"url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SourceConfig describes one external job-listing source.
type SourceConfig struct {
	ID     string `mapstructure:"id"`
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("scheduler.settings_refresh_seconds", 60)
	v.SetDefault("scheduler.paused_seconds", 60)
	v.SetDefault("scheduler.idle_seconds", 30)
	v.SetDefault("scheduler.rate_limited_seconds", 300)
	v.SetDefault("scheduler.retry_seconds", 30)
	v.SetDefault("poller.cache_ttl_seconds", 60)
	v.SetDefault("forwarder.interval_seconds", 300)
	v.SetDefault("forwarder.call_gap_seconds", 2)
	v.SetDefault("forwarder.dispatch_batch_max", 10)
	v.SetDefault("credentials.interval_seconds", 300)
	v.SetDefault("enrichment.timeout_seconds", 30)
	v.SetDefault("sink.timeout_seconds", 30)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Storage.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when storage.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	if c.Scheduler.SettingsRefreshSeconds <= 0 {
		return fmt.Errorf("scheduler.settings_refresh_seconds must be > 0")
	}
	if c.Forwarder.IntervalSeconds <= 0 {
		return fmt.Errorf("forwarder.interval_seconds must be > 0")
	}
	if c.Forwarder.DispatchBatchMax <= 0 {
		return fmt.Errorf("forwarder.dispatch_batch_max must be > 0")
	}
	if c.Credentials.IntervalSeconds <= 0 {
		return fmt.Errorf("credentials.interval_seconds must be > 0")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == "" || s.URL == "" {
			return fmt.Errorf("every source needs an id and a url")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// SettingsRefreshEvery returns the snapshot staleness bound as a duration.
func (c Config) SettingsRefreshEvery() time.Duration {
	return time.Duration(c.Scheduler.SettingsRefreshSeconds) * time.Second
}

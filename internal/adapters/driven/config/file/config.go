package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// DefaultFileName is the config file name inside the sercha directory.
const DefaultFileName = "ingest.toml"

// Duration is a time.Duration written as a string in TOML (e.g. "30m").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the process configuration.
type Config struct {
	// DataDir holds the SQLite database. Defaults to ~/.sercha/data.
	DataDir string `toml:"data_dir"`

	// Verbose enables debug and info logging.
	Verbose bool `toml:"verbose"`

	Scheduler  SchedulerConfig   `toml:"scheduler"`
	Ingestions []IngestionConfig `toml:"ingestion"`
}

// SchedulerConfig configures the background scheduler.
type SchedulerConfig struct {
	// Enabled defaults to true when omitted.
	Enabled      *bool    `toml:"enabled"`
	TickInterval Duration `toml:"tick_interval"`
	CheckEvery   Duration `toml:"check_every"`
	HistoryLimit int      `toml:"history_limit"`
}

// IngestionConfig configures one provider.
type IngestionConfig struct {
	// Provider is the stable provider name.
	Provider string `toml:"provider"`

	// Type selects the source implementation (filesystem, github, gdrive).
	Type string `toml:"type"`

	RestLength     Duration          `toml:"rest_length"`
	Backoff        []Duration        `toml:"backoff"`
	BurstLease     Duration          `toml:"burst_lease"`
	BurstPageLimit int               `toml:"burst_page_limit"`
	Options        map[string]string `toml:"options"`
}

// DefaultPath returns ~/.sercha/ingest.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".sercha", DefaultFileName), nil
}

// Load reads and validates the config file at path.
// An empty path uses DefaultPath. A missing file yields an empty, valid config.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No config file yet - that's fine, start empty
			return Parse(nil)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the lifecycle cannot run.
func (c *Config) Validate() error {
	if c.Scheduler.TickInterval.Duration < 0 || c.Scheduler.CheckEvery.Duration < 0 {
		return fmt.Errorf("scheduler: durations must be positive: %w", domain.ErrInvalidInput)
	}
	if c.Scheduler.HistoryLimit < 0 {
		return fmt.Errorf("scheduler: history_limit must not be negative: %w", domain.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(c.Ingestions))
	for i, ing := range c.Ingestions {
		if ing.Provider == "" {
			return fmt.Errorf("ingestion[%d]: provider is required: %w", i, domain.ErrInvalidInput)
		}
		if ing.Type == "" {
			return fmt.Errorf("ingestion %s: type is required: %w", ing.Provider, domain.ErrInvalidInput)
		}
		if seen[ing.Provider] {
			return fmt.Errorf("ingestion %s: duplicate provider: %w", ing.Provider, domain.ErrInvalidInput)
		}
		seen[ing.Provider] = true

		if ing.RestLength.Duration < 0 || ing.BurstLease.Duration < 0 {
			return fmt.Errorf("ingestion %s: durations must be positive: %w", ing.Provider, domain.ErrInvalidInput)
		}
		for _, d := range ing.Backoff {
			if d.Duration <= 0 {
				return fmt.Errorf("ingestion %s: backoff entries must be positive: %w", ing.Provider, domain.ErrInvalidInput)
			}
		}
		if ing.BurstPageLimit < 0 {
			return fmt.Errorf("ingestion %s: burst_page_limit must not be negative: %w", ing.Provider, domain.ErrInvalidInput)
		}
	}
	return nil
}

// SchedulerDomain returns the scheduler settings with defaults applied.
func (c *Config) SchedulerDomain() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	if c.Scheduler.Enabled != nil {
		cfg.Enabled = *c.Scheduler.Enabled
	}
	if c.Scheduler.TickInterval.Duration > 0 {
		cfg.TickInterval = c.Scheduler.TickInterval.Duration
	}
	if c.Scheduler.CheckEvery.Duration > 0 {
		cfg.CheckEvery = c.Scheduler.CheckEvery.Duration
	}
	if c.Scheduler.HistoryLimit > 0 {
		cfg.HistoryLimit = c.Scheduler.HistoryLimit
	}
	return cfg
}

// Domain returns the lifecycle settings with defaults applied.
func (ic IngestionConfig) Domain() domain.IngestionConfig {
	cfg := domain.IngestionConfig{
		RestLength:     ic.RestLength.Duration,
		BurstLease:     ic.BurstLease.Duration,
		BurstPageLimit: ic.BurstPageLimit,
	}
	if len(ic.Backoff) > 0 {
		cfg.Backoff = make(domain.BackoffTable, len(ic.Backoff))
		for i, d := range ic.Backoff {
			cfg.Backoff[i] = d.Duration
		}
	}
	return cfg.WithDefaults()
}

// Ingestion returns the config for a provider.
func (c *Config) Ingestion(provider string) (IngestionConfig, bool) {
	for _, ing := range c.Ingestions {
		if ing.Provider == provider {
			return ing, true
		}
	}
	return IngestionConfig{}, false
}

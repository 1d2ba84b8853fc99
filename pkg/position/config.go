package position

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tradewind/pkg/confkit"
)

// Config controls exit placement and the execution retry policy. Percentages
// are fractions of entry price. A position freezes these at open; config
// changes only affect positions opened afterwards.
type Config struct {
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	TrailingStopPct float64 `yaml:"trailing_stop_pct"`

	MaxHoldRaw         string `yaml:"max_hold"`
	EntryTimeoutRaw    string `yaml:"entry_timeout"`
	ExitTimeoutRaw     string `yaml:"exit_timeout"`
	PollIntervalRaw    string `yaml:"poll_interval"`
	RetryBackoffRaw    string `yaml:"retry_backoff"`
	RetryBackoffMaxRaw string `yaml:"retry_backoff_max"`

	MaxHold         time.Duration `yaml:"-"`
	EntryTimeout    time.Duration `yaml:"-"`
	ExitTimeout     time.Duration `yaml:"-"`
	PollInterval    time.Duration `yaml:"-"`
	RetryBackoff    time.Duration `yaml:"-"`
	RetryBackoffMax time.Duration `yaml:"-"`

	// CheckpointPath is where confirmed position state is journaled so a
	// restart resumes without re-issuing orders. Empty disables it.
	CheckpointPath string `yaml:"checkpoint_path"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open position config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads position configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/position.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read position config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal position config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a ready-to-use configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.StopLossPct <= 0 {
		c.StopLossPct = 0.02
	}
	if c.TakeProfitPct <= 0 {
		c.TakeProfitPct = 0.04
	}
	if c.TrailingStopPct <= 0 {
		c.TrailingStopPct = 0.015
	}
	if c.MaxHoldRaw == "" {
		c.MaxHoldRaw = "24h"
	}
	if c.EntryTimeoutRaw == "" {
		c.EntryTimeoutRaw = "30s"
	}
	if c.ExitTimeoutRaw == "" {
		c.ExitTimeoutRaw = "30s"
	}
	if c.PollIntervalRaw == "" {
		c.PollIntervalRaw = "500ms"
	}
	if c.RetryBackoffRaw == "" {
		c.RetryBackoffRaw = "1s"
	}
	if c.RetryBackoffMaxRaw == "" {
		c.RetryBackoffMaxRaw = "30s"
	}
}

func (c *Config) parseDurations() error {
	var err error
	if c.MaxHold, err = time.ParseDuration(c.MaxHoldRaw); err != nil {
		return fmt.Errorf("position config: max_hold: %w", err)
	}
	if c.EntryTimeout, err = time.ParseDuration(c.EntryTimeoutRaw); err != nil {
		return fmt.Errorf("position config: entry_timeout: %w", err)
	}
	if c.ExitTimeout, err = time.ParseDuration(c.ExitTimeoutRaw); err != nil {
		return fmt.Errorf("position config: exit_timeout: %w", err)
	}
	if c.PollInterval, err = time.ParseDuration(c.PollIntervalRaw); err != nil {
		return fmt.Errorf("position config: poll_interval: %w", err)
	}
	if c.RetryBackoff, err = time.ParseDuration(c.RetryBackoffRaw); err != nil {
		return fmt.Errorf("position config: retry_backoff: %w", err)
	}
	if c.RetryBackoffMax, err = time.ParseDuration(c.RetryBackoffMaxRaw); err != nil {
		return fmt.Errorf("position config: retry_backoff_max: %w", err)
	}
	return nil
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.StopLossPct >= 1 || c.TakeProfitPct >= 1 || c.TrailingStopPct >= 1 {
		return errors.New("position config: exit percentages must stay below 1")
	}
	if c.MaxHold <= 0 || c.EntryTimeout <= 0 || c.ExitTimeout <= 0 {
		return errors.New("position config: timeouts must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("position config: poll_interval must be positive")
	}
	if c.RetryBackoff <= 0 || c.RetryBackoffMax < c.RetryBackoff {
		return errors.New("position config: retry_backoff_max must be at least retry_backoff")
	}
	return nil
}

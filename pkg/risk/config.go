package risk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tradewind/pkg/confkit"
)

// Config holds the account risk limits and circuit breaker thresholds.
// Limits are absolute account-currency amounts unless named Pct.
type Config struct {
	MinConfidence          float64 `yaml:"min_confidence"`
	MaxPositionPct         float64 `yaml:"max_position_pct"`
	MaxConcurrentPositions int     `yaml:"max_concurrent_positions"`
	DailyLossLimit         float64 `yaml:"daily_loss_limit"`
	// DefaultIncrement is the fallback minimum tradable increment when the
	// entry plan does not carry an instrument-specific one.
	DefaultIncrement float64 `yaml:"default_increment"`

	// Circuit breaker.
	ErrorWindowRaw     string  `yaml:"error_window"`
	ErrorRateThreshold float64 `yaml:"error_rate_threshold"`
	ErrorMinSamples    int     `yaml:"error_min_samples"`
	CooldownRaw        string  `yaml:"cooldown"`
	// ExecGraceRaw is how long the execution collaborator may stay
	// unreachable before the breaker trips.
	ExecGraceRaw string `yaml:"exec_grace"`

	ErrorWindow time.Duration `yaml:"-"`
	Cooldown    time.Duration `yaml:"-"`
	ExecGrace   time.Duration `yaml:"-"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open risk config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads risk configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/risk.yaml")
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
		return nil, fmt.Errorf("read risk config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal risk config: %w", err)
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
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.3
	}
	if c.MaxPositionPct <= 0 {
		c.MaxPositionPct = 0.1
	}
	if c.MaxConcurrentPositions <= 0 {
		c.MaxConcurrentPositions = 3
	}
	if c.DailyLossLimit <= 0 {
		c.DailyLossLimit = 1000
	}
	if c.DefaultIncrement <= 0 {
		c.DefaultIncrement = 0.001
	}
	if c.ErrorWindowRaw == "" {
		c.ErrorWindowRaw = "5m"
	}
	if c.ErrorRateThreshold <= 0 {
		c.ErrorRateThreshold = 0.5
	}
	if c.ErrorMinSamples <= 0 {
		c.ErrorMinSamples = 5
	}
	if c.CooldownRaw == "" {
		c.CooldownRaw = "30m"
	}
	if c.ExecGraceRaw == "" {
		c.ExecGraceRaw = "2m"
	}
}

func (c *Config) parseDurations() error {
	var err error
	if c.ErrorWindow, err = time.ParseDuration(c.ErrorWindowRaw); err != nil {
		return fmt.Errorf("risk config: error_window: %w", err)
	}
	if c.Cooldown, err = time.ParseDuration(c.CooldownRaw); err != nil {
		return fmt.Errorf("risk config: cooldown: %w", err)
	}
	if c.ExecGrace, err = time.ParseDuration(c.ExecGraceRaw); err != nil {
		return fmt.Errorf("risk config: exec_grace: %w", err)
	}
	return nil
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("risk config: min_confidence must sit inside [0,1]")
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		return errors.New("risk config: max_position_pct must sit inside (0,1]")
	}
	if c.ErrorRateThreshold <= 0 || c.ErrorRateThreshold > 1 {
		return errors.New("risk config: error_rate_threshold must sit inside (0,1]")
	}
	if c.ErrorWindow <= 0 || c.Cooldown <= 0 || c.ExecGrace <= 0 {
		return errors.New("risk config: durations must be positive")
	}
	return nil
}

package engine

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"tradewind/pkg/confkit"
	"tradewind/pkg/market"
)

// Config selects what the engine trades and which providers feed it.
type Config struct {
	Symbols     []string `yaml:"symbols"`
	IntervalRaw string   `yaml:"interval"`

	// Provider names resolved against the market/exchange registries.
	MarketProvider   string `yaml:"market_provider"`
	ExchangeProvider string `yaml:"exchange_provider"`

	// JournalPath is the JSON-lines event journal. Empty disables it.
	JournalPath string `yaml:"journal_path"`

	Interval market.Interval `yaml:"-"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open engine config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads engine configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/engine.yaml")
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
		return nil, fmt.Errorf("read engine config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal engine config: %w", err)
	}
	cfg.applyDefaults()
	iv, err := market.ParseInterval(cfg.IntervalRaw)
	if err != nil {
		return nil, fmt.Errorf("engine config: interval: %w", err)
	}
	cfg.Interval = iv
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.IntervalRaw == "" {
		c.IntervalRaw = "5m"
	}
	if c.MarketProvider == "" {
		c.MarketProvider = "replay"
	}
	if c.ExchangeProvider == "" {
		c.ExchangeProvider = "sim"
	}
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("engine config: at least one symbol is required")
	}
	seen := make(map[string]struct{}, len(c.Symbols))
	for _, s := range c.Symbols {
		if s == "" {
			return errors.New("engine config: empty symbol")
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("engine config: duplicate symbol %q", s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

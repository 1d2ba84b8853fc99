package strategy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"tradewind/pkg/confkit"
	"tradewind/pkg/market"
)

// Config controls the signal pipeline: oscillator periods, adaptive band
// geometry, volume confirmation, timeframe consensus and quality scoring.
type Config struct {
	RSIPeriod   int `yaml:"rsi_period"`
	StochPeriod int `yaml:"stoch_period"`
	ATRPeriod   int `yaml:"atr_period"`
	// ATRAvgPeriod is the rolling average the current ATR is compared
	// against to derive the volatility ratio.
	ATRAvgPeriod int `yaml:"atr_avg_period"`

	// Band geometry. Bands sit symmetrically around the oscillator midpoint
	// (50): lower = 50 - halfWidth, upper = 50 + halfWidth. The half width
	// stretches with the volatility ratio and is clipped to
	// [min_half_width, max_half_width].
	BaseHalfWidth float64 `yaml:"base_half_width"`
	BandScale     float64 `yaml:"band_scale"`
	MinHalfWidth  float64 `yaml:"min_half_width"`
	MaxHalfWidth  float64 `yaml:"max_half_width"`

	VolumePeriod    int     `yaml:"volume_period"`
	VolumeThreshold float64 `yaml:"volume_threshold"`
	// VolumeCapRatio bounds the volume sub-score normalization.
	VolumeCapRatio float64 `yaml:"volume_cap_ratio"`

	ConsensusIntervalsRaw []string          `yaml:"consensus_intervals"`
	ConsensusIntervals    []market.Interval `yaml:"-"`
	ConsensusQuorum       int               `yaml:"consensus_quorum"`

	Weights ScoreWeights `yaml:"weights"`
}

// ScoreWeights are the relative weights of the three confidence sub-scores.
type ScoreWeights struct {
	Oscillator float64 `yaml:"oscillator"`
	Volume     float64 `yaml:"volume"`
	Consensus  float64 `yaml:"consensus"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open strategy config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads strategy configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/strategy.yaml")
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
		return nil, fmt.Errorf("read strategy config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal strategy config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.parseIntervals(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a ready-to-use configuration with all defaults
// applied. Used by tests and the backtester.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.parseIntervals(); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.StochPeriod <= 0 {
		c.StochPeriod = 14
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.ATRAvgPeriod <= 0 {
		c.ATRAvgPeriod = 50
	}
	if c.BaseHalfWidth <= 0 {
		c.BaseHalfWidth = 30
	}
	if c.BandScale <= 0 {
		c.BandScale = 0.5
	}
	if c.MinHalfWidth <= 0 {
		c.MinHalfWidth = 15
	}
	if c.MaxHalfWidth <= 0 {
		c.MaxHalfWidth = 45
	}
	if c.VolumePeriod <= 0 {
		c.VolumePeriod = 20
	}
	if c.VolumeThreshold <= 0 {
		c.VolumeThreshold = 1.2
	}
	if c.VolumeCapRatio <= 0 {
		c.VolumeCapRatio = 3.0
	}
	if len(c.ConsensusIntervalsRaw) == 0 {
		c.ConsensusIntervalsRaw = []string{"15m", "1h"}
	}
	if c.ConsensusQuorum <= 0 {
		c.ConsensusQuorum = 2
	}
	if c.Weights == (ScoreWeights{}) {
		c.Weights = ScoreWeights{Oscillator: 0.4, Volume: 0.3, Consensus: 0.3}
	}
}

func (c *Config) parseIntervals() error {
	c.ConsensusIntervals = c.ConsensusIntervals[:0]
	seen := make(map[market.Interval]struct{}, len(c.ConsensusIntervalsRaw))
	for _, raw := range c.ConsensusIntervalsRaw {
		iv, err := market.ParseInterval(raw)
		if err != nil {
			return fmt.Errorf("strategy config: consensus interval: %w", err)
		}
		if _, dup := seen[iv]; dup {
			return fmt.Errorf("strategy config: duplicate consensus interval %q", raw)
		}
		seen[iv] = struct{}{}
		c.ConsensusIntervals = append(c.ConsensusIntervals, iv)
	}
	return nil
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.RSIPeriod < 2 {
		return errors.New("strategy config: rsi_period must be at least 2")
	}
	if c.StochPeriod < 2 {
		return errors.New("strategy config: stoch_period must be at least 2")
	}
	if c.ATRPeriod < 2 {
		return errors.New("strategy config: atr_period must be at least 2")
	}
	if c.ATRAvgPeriod < c.ATRPeriod {
		return errors.New("strategy config: atr_avg_period must be at least atr_period")
	}
	if c.MinHalfWidth >= c.MaxHalfWidth {
		return errors.New("strategy config: min_half_width must be below max_half_width")
	}
	if c.MaxHalfWidth >= 50 {
		return errors.New("strategy config: max_half_width must stay below 50 so bands remain inside [0,100]")
	}
	if c.BaseHalfWidth < c.MinHalfWidth || c.BaseHalfWidth > c.MaxHalfWidth {
		return errors.New("strategy config: base_half_width must sit inside [min_half_width, max_half_width]")
	}
	if c.VolumeThreshold < 1 {
		return errors.New("strategy config: volume_threshold must be at least 1")
	}
	if c.VolumeCapRatio <= c.VolumeThreshold {
		return errors.New("strategy config: volume_cap_ratio must exceed volume_threshold")
	}
	if c.ConsensusQuorum > len(c.ConsensusIntervals) {
		return fmt.Errorf("strategy config: consensus_quorum %d exceeds configured intervals (%d)",
			c.ConsensusQuorum, len(c.ConsensusIntervals))
	}
	w := c.Weights
	if w.Oscillator < 0 || w.Volume < 0 || w.Consensus < 0 {
		return errors.New("strategy config: weights must be non-negative")
	}
	if w.Oscillator+w.Volume+w.Consensus <= 0 {
		return errors.New("strategy config: weights must not all be zero")
	}
	return nil
}

// MinBars is the number of contiguous bars required before the indicator
// engine can produce a snapshot.
func (c *Config) MinBars() int {
	oscNeed := c.RSIPeriod + c.StochPeriod
	atrNeed := c.ATRPeriod + c.ATRAvgPeriod
	if atrNeed > oscNeed {
		return atrNeed + 1
	}
	return oscNeed + 1
}

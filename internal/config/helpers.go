package config

import (
	"tradewind/pkg/engine"
	"tradewind/pkg/exchange"
	"tradewind/pkg/market"
	"tradewind/pkg/position"
	"tradewind/pkg/risk"
	"tradewind/pkg/strategy"
)

// MustLoadEngine loads etc/engine.yaml from the project root and panics on error.
func MustLoadEngine() *engine.Config {
	return engine.MustLoad()
}

// MustLoadStrategy loads the default strategy configuration and panics on error.
func MustLoadStrategy() *strategy.Config {
	return strategy.MustLoad()
}

// MustLoadRisk loads the default risk configuration and panics on error.
func MustLoadRisk() *risk.Config {
	return risk.MustLoad()
}

// MustLoadPosition loads the default position configuration and panics on error.
func MustLoadPosition() *position.Config {
	return position.MustLoad()
}

// MustLoadExchange loads etc/exchange.yaml from the project root and panics on error.
// It isolates exchange config so tests that only need the broker providers do
// not have to assemble a full application config.
func MustLoadExchange() *exchange.Config {
	return exchange.MustLoad()
}

// MustBuildExchangeProviders loads exchange config from the default path
// and builds provider instances; returns the map and default provider name.
func MustBuildExchangeProviders() (map[string]exchange.Provider, string) {
	cfg := MustLoadExchange()
	providers, err := cfg.BuildProviders()
	if err != nil {
		panic(err)
	}
	return providers, cfg.Default
}

// MustLoadMarket loads the default market configuration and panics on error.
func MustLoadMarket() *market.Config {
	return market.MustLoad()
}

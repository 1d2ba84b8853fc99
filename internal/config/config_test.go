package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	_ "tradewind/pkg/exchange/sim"
	"tradewind/pkg/market"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadHydratesSections(t *testing.T) {
	dir := t.TempDir()
	dataDir := t.TempDir()

	writeFile(t, dir, "engine.yaml", "symbols: [BTC, ETH]\ninterval: 5m\n")
	writeFile(t, dir, "strategy.yaml", "rsi_period: 14\n")
	writeFile(t, dir, "risk.yaml", "daily_loss_limit: 2500\n")
	writeFile(t, dir, "position.yaml", "stop_loss_pct: 0.02\n")
	writeFile(t, dir, "exchange.yaml", `
default: paper
providers:
  paper:
    type: sim
    initial_equity: 50000
`)
	writeFile(t, dir, "market.yaml", `
default: replay
providers:
  replay:
    type: replay
    data_dir: `+dataDir+`
`)
	main := writeFile(t, dir, "tradewind.yaml", `
Name: tradewind
Env: test
Engine:
  File: engine.yaml
Strategy:
  File: strategy.yaml
Risk:
  File: risk.yaml
Position:
  File: position.yaml
Exchange:
  File: exchange.yaml
Market:
  File: market.yaml
`)

	cfg, err := Load(main)
	require.NoError(t, err)
	require.True(t, cfg.IsTestEnv())
	require.Equal(t, dir, cfg.BaseDir())

	require.NotNil(t, cfg.Engine.Value)
	require.Equal(t, []string{"BTC", "ETH"}, cfg.Engine.Value.Symbols)
	require.Equal(t, market.Interval5m, cfg.Engine.Value.Interval)

	require.NotNil(t, cfg.Strategy.Value)
	require.Equal(t, 14, cfg.Strategy.Value.RSIPeriod)

	require.NotNil(t, cfg.Risk.Value)
	require.Equal(t, 2500.0, cfg.Risk.Value.DailyLossLimit)

	require.NotNil(t, cfg.Position.Value)
	require.NotNil(t, cfg.Exchange.Value)
	require.Equal(t, "paper", cfg.Exchange.Value.Default)
	require.NotNil(t, cfg.Market.Value)
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "tradewind.yaml", "Env: staging\n")

	_, err := Load(main)
	require.Error(t, err)
}

func TestLoadLeavesEmptySectionsUntouched(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "tradewind.yaml", "Env: dev\n")

	cfg, err := Load(main)
	require.NoError(t, err)
	require.False(t, cfg.IsTestEnv())
	require.Nil(t, cfg.Engine.Value)
	require.Nil(t, cfg.Strategy.Value)
	require.Nil(t, cfg.Exchange.Value)
}

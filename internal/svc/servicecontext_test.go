package svc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tradewind/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	dataDir := t.TempDir()

	writeFile(t, dir, "engine.yaml", "symbols: [BTC]\ninterval: 5m\nmarket_provider: replay\nexchange_provider: sim\n")
	writeFile(t, dir, "exchange.yaml", `
default: sim
providers:
  sim:
    type: sim
    initial_equity: 25000
`)
	writeFile(t, dir, "market.yaml", `
default: replay
providers:
  replay:
    type: replay
    data_dir: `+dataDir+`
`)
	writeFile(t, dir, "tradewind.yaml", `
Env: test
Engine:
  File: engine.yaml
Exchange:
  File: exchange.yaml
Market:
  File: market.yaml
`)

	cfg, err := config.Load(filepath.Join(dir, "tradewind.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestNewServiceContextWiresProviders(t *testing.T) {
	cfg := loadTestConfig(t)
	svcCtx := NewServiceContext(*cfg)

	require.NotNil(t, svcCtx.EngineConfig)
	require.NotNil(t, svcCtx.DefaultExchange)
	require.NotNil(t, svcCtx.DefaultMarket)
	require.Contains(t, svcCtx.ExchangeProviders, "sim")
	require.Contains(t, svcCtx.MarketProviders, "replay")

	// Sections without files fall back to package defaults.
	require.NotNil(t, svcCtx.StrategyConfig)
	require.NotNil(t, svcCtx.RiskConfig)
	require.NotNil(t, svcCtx.PositionConfig)

	// No DSN, no DB layer.
	require.Nil(t, svcCtx.DBConn)
	require.Nil(t, svcCtx.Repo)
}

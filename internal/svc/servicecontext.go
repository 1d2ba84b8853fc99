package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradewind/internal/config"
	"tradewind/internal/repo"
	enginepkg "tradewind/pkg/engine"
	exchangepkg "tradewind/pkg/exchange"
	_ "tradewind/pkg/exchange/sim"
	marketpkg "tradewind/pkg/market"
	positionpkg "tradewind/pkg/position"
	riskpkg "tradewind/pkg/risk"
	strategypkg "tradewind/pkg/strategy"
)

type ServiceContext struct {
	Config config.Config

	EngineConfig   *enginepkg.Config
	StrategyConfig *strategypkg.Config
	RiskConfig     *riskpkg.Config
	PositionConfig *positionpkg.Config

	ExchangeConfig    *exchangepkg.Config
	ExchangeProviders map[string]exchangepkg.Provider
	DefaultExchange   exchangepkg.Provider
	MarketConfig      *marketpkg.Config
	MarketProviders   map[string]marketpkg.Provider
	DefaultMarket     marketpkg.Provider

	DBConn sqlx.SqlConn
	Repo   *repo.Set
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: c,
	}

	if c.Engine.Value == nil {
		log.Fatalf("engine config section is required")
	}
	svc.EngineConfig = c.Engine.Value

	svc.StrategyConfig = c.Strategy.Value
	if svc.StrategyConfig == nil {
		svc.StrategyConfig = strategypkg.DefaultConfig()
	}
	svc.RiskConfig = c.Risk.Value
	if svc.RiskConfig == nil {
		svc.RiskConfig = riskpkg.DefaultConfig()
	}
	svc.PositionConfig = c.Position.Value
	if svc.PositionConfig == nil {
		svc.PositionConfig = positionpkg.DefaultConfig()
	}

	svc.buildExchange(&c)
	svc.buildMarket(&c)

	// Only inject the DB layer when a DSN is provided; closed positions are
	// still checkpointed to disk without it.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		set, err := repo.New(repo.Dependencies{DBConn: conn})
		if err != nil {
			log.Fatalf("failed to build repositories: %v", err)
		}
		svc.Repo = set
	}
	return svc
}

func (s *ServiceContext) buildExchange(c *config.Config) {
	exchangeCfg := c.Exchange.Value
	if exchangeCfg == nil {
		// No exchange section: fall back to an inline paper broker so test
		// environments work out of the box.
		provider, err := exchangepkg.GetProvider("sim", nil)
		if err != nil {
			log.Fatalf("failed to build fallback paper broker: %v", err)
		}
		s.DefaultExchange = provider
		s.ExchangeProviders = map[string]exchangepkg.Provider{"sim": provider}
		return
	}

	// Test environments never touch live endpoints.
	if c.IsTestEnv() {
		for _, provider := range exchangeCfg.Providers {
			provider.Testnet = true
		}
	}
	providers, err := exchangeCfg.BuildProviders()
	if err != nil {
		log.Fatalf("failed to build exchange providers: %v", err)
	}
	s.ExchangeConfig = exchangeCfg
	s.ExchangeProviders = providers

	name := s.EngineConfig.ExchangeProvider
	if name == "" {
		name = exchangeCfg.Default
	}
	provider, ok := providers[name]
	if !ok {
		log.Fatalf("engine references unknown exchange provider %q", name)
	}
	s.DefaultExchange = provider
}

func (s *ServiceContext) buildMarket(c *config.Config) {
	marketCfg := c.Market.Value
	if marketCfg == nil {
		log.Fatalf("market config section is required")
	}
	providers, err := marketCfg.BuildProviders()
	if err != nil {
		log.Fatalf("failed to build market providers: %v", err)
	}
	s.MarketConfig = marketCfg
	s.MarketProviders = providers

	name := s.EngineConfig.MarketProvider
	if name == "" {
		name = marketCfg.Default
	}
	provider, ok := providers[name]
	if !ok {
		log.Fatalf("engine references unknown market provider %q", name)
	}
	s.DefaultMarket = provider
}

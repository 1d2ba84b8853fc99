package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tradewind/internal/cli"
	"tradewind/internal/config"
	"tradewind/internal/svc"
	enginepkg "tradewind/pkg/engine"
	"tradewind/pkg/events"
	"tradewind/pkg/position"
	"tradewind/pkg/risk"
)

var configFile = flag.String("f", "etc/tradewind.yaml", "the config file")

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", *configFile, err)
	}
	logx.MustSetup(appCfg.Log)
	defer logx.Close()

	cli.LogConfigSummary(appCfg)

	svcCtx := svc.NewServiceContext(*appCfg)

	riskCfg := svcCtx.RiskConfig
	budget := risk.NewBudget(riskCfg)
	breaker := risk.NewBreaker(riskCfg)
	riskMgr := risk.NewManager(riskCfg, budget, breaker)

	posMgr := position.NewManager(svcCtx.PositionConfig, svcCtx.DefaultExchange, budget, breaker)
	if path := svcCtx.PositionConfig.CheckpointPath; path != "" {
		store, err := position.NewCheckpointStore(path)
		if err != nil {
			log.Fatalf("failed to open checkpoint store %s: %v", path, err)
		}
		posMgr.SetCheckpoint(store)
	}
	if svcCtx.Repo != nil {
		posMgr.SetArchiver(svcCtx.Repo.Positions)
	}

	emitter, err := events.NewEmitter(svcCtx.EngineConfig.JournalPath)
	if err != nil {
		log.Fatalf("failed to open event journal: %v", err)
	}
	defer emitter.Close()
	posMgr.OnTransition(emitter.Transition)

	deps := enginepkg.Deps{
		Strategy:  svcCtx.StrategyConfig,
		Position:  svcCtx.PositionConfig,
		Risk:      riskMgr,
		Positions: posMgr,
		Market:    svcCtx.DefaultMarket,
		Broker:    svcCtx.DefaultExchange,
		Events:    emitter,
	}
	if svcCtx.Repo != nil {
		deps.Ledger = svcCtx.Repo.Positions
	}
	eng, err := enginepkg.New(svcCtx.EngineConfig, deps)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}

	<-ctx.Done()
	logx.Info("shutdown signal received, stopping engine")

	done := make(chan struct{})
	go func() {
		eng.Stop()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("engine stopped cleanly")
	case <-time.After(shutdownTimeout):
		logx.Error("shutdown timeout exceeded, forcing exit")
	}
}

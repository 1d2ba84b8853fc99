//go:build integration
// +build integration

package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	appconfig "tradewind/internal/config"
	"tradewind/internal/svc"
	"tradewind/pkg/exchange"
	"tradewind/pkg/position"
)

func newIntegrationServiceContext(t *testing.T) *svc.ServiceContext {
	t.Helper()
	cfg, err := appconfig.Load("../../etc/tradewind.yaml")
	require.NoError(t, err)
	return svc.NewServiceContext(*cfg)
}

func TestPostgresConnectivity(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	if svcCtx.DBConn == nil {
		t.Skip("Postgres not configured (DBConn nil)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := svcCtx.DBConn.RawDB()
	require.NoError(t, err)

	var one int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT 1").Scan(&one))
	require.Equal(t, 1, one)
}

func TestArchiveClosedRoundTrip(t *testing.T) {
	svcCtx := newIntegrationServiceContext(t)
	if svcCtx.Repo == nil {
		t.Skip("Postgres not configured (Repo nil)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)
	p := position.Position{
		ID:          uuid.NewString(),
		Symbol:      "ITEST",
		Side:        exchange.SideBuy,
		Quantity:    1.5,
		State:       position.StateClosed,
		EntryPrice:  100,
		StopPrice:   98,
		TargetPrice: 104,
		OpenedAt:    now.Add(-time.Hour),
		ClosedAt:    now,
		ExitPrice:   102,
		RealizedPnL: 3,
	}
	require.NoError(t, svcCtx.Repo.Positions.ArchiveClosed(ctx, p))

	records, err := svcCtx.Repo.Positions.RecentBySymbols(ctx, []string{"ITEST"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	require.Equal(t, p.ID, records[0].ID)
	require.Equal(t, p.RealizedPnL, records[0].RealizedPnl)
}

package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tradewind/pkg/position"
)

// PositionRecord mirrors the positions table while normalising nullable fields.
type PositionRecord struct {
	ID                string
	Symbol            string
	Side              string
	Quantity          float64
	State             string
	EntryPrice        float64
	StopPrice         float64
	TargetPrice       float64
	TrailingStopPrice *float64
	FavorableExtreme  *float64
	OpenedAt          time.Time
	ClosedAt          time.Time
	ExitPrice         *float64
	RealizedPnl       float64
	EntryOrderID      *string
	ExitOrderID       *string
}

// PositionsRepo persists completed position lifecycles and serves trade
// history queries. It satisfies position.Archiver so the lifecycle manager
// can hand off closed records directly.
type PositionsRepo interface {
	// ArchiveClosed upserts one terminal position record.
	ArchiveClosed(ctx context.Context, p position.Position) error
	// RecentBySymbols returns closed positions ordered by close time
	// descending. An empty symbol list matches all symbols.
	RecentBySymbols(ctx context.Context, symbols []string, limit int) ([]PositionRecord, error)
	// RealizedSince sums realized PnL over positions closed at or after the
	// cutoff. Used to rebuild the daily loss ledger after a restart.
	RealizedSince(ctx context.Context, cutoff time.Time) (float64, error)
}

type positionsRepo struct {
	conn sqlx.SqlConn
}

func newPositionsRepo(deps Dependencies) PositionsRepo {
	return &positionsRepo{
		conn: deps.DBConn,
	}
}

func (r *positionsRepo) ArchiveClosed(ctx context.Context, p position.Position) error {
	const query = `
INSERT INTO public.positions (
    id,
    symbol,
    side,
    quantity,
    state,
    entry_price,
    stop_price,
    target_price,
    trailing_stop_price,
    favorable_extreme,
    opened_at,
    closed_at,
    exit_price,
    realized_pnl,
    entry_order_id,
    exit_order_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO UPDATE SET
    state = EXCLUDED.state,
    closed_at = EXCLUDED.closed_at,
    exit_price = EXCLUDED.exit_price,
    realized_pnl = EXCLUDED.realized_pnl,
    exit_order_id = EXCLUDED.exit_order_id`

	_, err := r.conn.ExecCtx(ctx, query,
		p.ID,
		p.Symbol,
		string(p.Side),
		p.Quantity,
		string(p.State),
		p.EntryPrice,
		p.StopPrice,
		p.TargetPrice,
		nullableFloat(p.TrailingStopPrice),
		nullableFloat(p.FavorableExtreme),
		p.OpenedAt.UTC(),
		p.ClosedAt.UTC(),
		nullableFloat(p.ExitPrice),
		p.RealizedPnL,
		nullableString(p.EntryOrderID),
		nullableString(p.ExitOrderID),
	)
	if err != nil {
		return fmt.Errorf("positionsRepo.ArchiveClosed exec: %w", err)
	}
	return nil
}

func (r *positionsRepo) RecentBySymbols(ctx context.Context, symbols []string, limit int) ([]PositionRecord, error) {
	query := `
SELECT
    id,
    symbol,
    side,
    quantity,
    state,
    entry_price,
    stop_price,
    target_price,
    trailing_stop_price,
    favorable_extreme,
    opened_at,
    closed_at,
    exit_price,
    realized_pnl,
    entry_order_id,
    exit_order_id
FROM public.positions
WHERE state = 'CLOSED'
%s
ORDER BY closed_at DESC
LIMIT %d`

	if limit <= 0 {
		limit = 100
	}

	var (
		args   []any
		clause string
	)
	if len(symbols) > 0 {
		clause = "AND symbol = ANY($1)"
		args = append(args, pq.Array(symbols))
	}

	finalQuery := fmt.Sprintf(query, clause, limit)
	var rows []positionRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, finalQuery, args...); err != nil {
		return nil, fmt.Errorf("positionsRepo.RecentBySymbols query: %w", err)
	}

	records := make([]PositionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (r *positionsRepo) RealizedSince(ctx context.Context, cutoff time.Time) (float64, error) {
	const query = `
SELECT COALESCE(SUM(realized_pnl), 0)
FROM public.positions
WHERE state = 'CLOSED' AND closed_at >= $1`

	var total float64
	if err := r.conn.QueryRowCtx(ctx, &total, query, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("positionsRepo.RealizedSince query: %w", err)
	}
	return total, nil
}

type positionRow struct {
	ID                string          `db:"id"`
	Symbol            string          `db:"symbol"`
	Side              string          `db:"side"`
	Quantity          float64         `db:"quantity"`
	State             string          `db:"state"`
	EntryPrice        float64         `db:"entry_price"`
	StopPrice         float64         `db:"stop_price"`
	TargetPrice       float64         `db:"target_price"`
	TrailingStopPrice sql.NullFloat64 `db:"trailing_stop_price"`
	FavorableExtreme  sql.NullFloat64 `db:"favorable_extreme"`
	OpenedAt          time.Time       `db:"opened_at"`
	ClosedAt          time.Time       `db:"closed_at"`
	ExitPrice         sql.NullFloat64 `db:"exit_price"`
	RealizedPnl       float64         `db:"realized_pnl"`
	EntryOrderID      sql.NullString  `db:"entry_order_id"`
	ExitOrderID       sql.NullString  `db:"exit_order_id"`
}

func (row positionRow) record() PositionRecord {
	rec := PositionRecord{
		ID:          row.ID,
		Symbol:      row.Symbol,
		Side:        row.Side,
		Quantity:    row.Quantity,
		State:       row.State,
		EntryPrice:  row.EntryPrice,
		StopPrice:   row.StopPrice,
		TargetPrice: row.TargetPrice,
		OpenedAt:    row.OpenedAt,
		ClosedAt:    row.ClosedAt,
		RealizedPnl: row.RealizedPnl,
	}
	if row.TrailingStopPrice.Valid {
		value := row.TrailingStopPrice.Float64
		rec.TrailingStopPrice = &value
	}
	if row.FavorableExtreme.Valid {
		value := row.FavorableExtreme.Float64
		rec.FavorableExtreme = &value
	}
	if row.ExitPrice.Valid {
		value := row.ExitPrice.Float64
		rec.ExitPrice = &value
	}
	if row.EntryOrderID.Valid {
		value := row.EntryOrderID.String
		rec.EntryOrderID = &value
	}
	if row.ExitOrderID.Valid {
		value := row.ExitOrderID.String
		rec.ExitOrderID = &value
	}
	return rec
}

func nullableFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"PerpScout/internal/domain/models"
	domrepo "PerpScout/internal/domain/repository"
)

// PostgresSignalStore persists accepted recommendations and closed trades.
type PostgresSignalStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSignalStore(pool *pgxpool.Pool) *PostgresSignalStore {
	return &PostgresSignalStore{pool: pool}
}

// Init creates the signals and trades tables (idempotent).
func (s *PostgresSignalStore) Init(ctx context.Context) error {
	stmts := []string{
		`create table if not exists signals (
			id bigserial primary key,
			symbol text not null,
			side text not null,
			regime text not null,
			style text not null,
			score double precision not null,
			confidence double precision not null,
			reference_price double precision not null,
			atr double precision not null,
			entry double precision not null,
			take_profit double precision not null,
			stop_loss double precision not null,
			trailing_stop double precision not null,
			trail_activation double precision not null,
			position_size double precision not null,
			margin_required double precision not null,
			liquidation_price double precision not null,
			leverage double precision not null,
			bar_time timestamptz not null,
			created_at timestamptz not null default now()
		);`,
		`create index if not exists signals_symbol_created_idx on signals(symbol, created_at desc);`,
		`create table if not exists trades (
			id bigserial primary key,
			symbol text not null,
			side text not null,
			regime text not null,
			style text not null,
			entry_price double precision not null,
			exit_price double precision not null,
			qty double precision not null,
			pnl double precision not null,
			opened_at timestamptz not null,
			closed_at timestamptz not null
		);`,
		`create index if not exists trades_bucket_idx on trades(symbol, regime, style);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

const insertSignalSQL = `
	insert into signals(
		symbol, side, regime, style, score, confidence,
		reference_price, atr, entry, take_profit, stop_loss,
		trailing_stop, trail_activation, position_size,
		margin_required, liquidation_price, leverage, bar_time
	) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`

func (s *PostgresSignalStore) SaveRecommendations(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, rec := range recs {
		sig, st := rec.Signal, rec.Structure
		b.Queue(insertSignalSQL,
			sig.Symbol,
			string(sig.Side),
			string(sig.Regime),
			string(sig.Style),
			sig.Score,
			sig.Confidence,
			sig.ReferencePrice,
			sig.ATR,
			st.Entry,
			st.TakeProfit,
			st.StopLoss,
			st.TrailingStop,
			st.TrailActivation,
			st.PositionSize,
			st.MarginRequired,
			st.LiquidationPrice,
			st.Leverage,
			sig.BarTime.UTC(),
		)
	}
	br := s.pool.SendBatch(ctx, b)
	for range recs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert signal: %w", err)
		}
	}
	return br.Close()
}

// RecentSignals lists stored recommendations newest-first. Empty symbol or
// side matches everything.
func (s *PostgresSignalStore) RecentSignals(ctx context.Context, symbol, side string, limit int) ([]models.Recommendation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		select symbol, side, regime, style, score, confidence,
			reference_price, atr, entry, take_profit, stop_loss,
			trailing_stop, trail_activation, position_size,
			margin_required, liquidation_price, leverage, bar_time
		from signals
		where ($1 = '' or symbol = $1) and ($2 = '' or side = $2)
		order by created_at desc
		limit $3
	`, symbol, side, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Recommendation, 0, limit)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresSignalStore) SaveOutcome(ctx context.Context, o models.TradeOutcome) error {
	_, err := s.pool.Exec(ctx, `
		insert into trades(symbol, side, regime, style, entry_price, exit_price, qty, pnl, opened_at, closed_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		o.Symbol,
		string(o.Side),
		string(o.Regime),
		string(o.Style),
		o.EntryPrice,
		o.ExitPrice,
		o.Quantity,
		o.PnL,
		o.OpenedAt.UTC(),
		o.ClosedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *PostgresSignalStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresSignalStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecommendation(rows pgx.Rows) (models.Recommendation, error) {
	var rec models.Recommendation
	var side, regime, style string
	if err := rows.Scan(
		&rec.Signal.Symbol,
		&side,
		&regime,
		&style,
		&rec.Signal.Score,
		&rec.Signal.Confidence,
		&rec.Signal.ReferencePrice,
		&rec.Signal.ATR,
		&rec.Structure.Entry,
		&rec.Structure.TakeProfit,
		&rec.Structure.StopLoss,
		&rec.Structure.TrailingStop,
		&rec.Structure.TrailActivation,
		&rec.Structure.PositionSize,
		&rec.Structure.MarginRequired,
		&rec.Structure.LiquidationPrice,
		&rec.Structure.Leverage,
		&rec.Signal.BarTime,
	); err != nil {
		return rec, err
	}
	rec.Signal.Side = models.Side(side)
	rec.Signal.Regime = models.Regime(regime)
	rec.Signal.Style = models.Style(style)
	rec.Signal.BarTime = rec.Signal.BarTime.UTC()
	// Only unanimous candidates are ever stored; rebuild the trend set
	// from the side.
	trend := models.TrendUp
	if rec.Signal.Side == models.SideShort {
		trend = models.TrendDown
	}
	rec.Signal.Trends = models.TrendSet{Short: trend, Medium: trend, Long: trend}
	rec.Signal.Unanimous = true
	return rec, nil
}

var _ domrepo.SignalStore = (*PostgresSignalStore)(nil)

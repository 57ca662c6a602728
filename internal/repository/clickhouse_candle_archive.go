package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PerpScout/internal/domain/models"
	domrepo "PerpScout/internal/domain/repository"
	pkgch "PerpScout/pkg/clickhouse"
	applogger "PerpScout/pkg/logger"
)

// CHCandleArchive keeps a durable copy of fetched bars in ClickHouse and
// serves them back oldest-first. It also implements MarketData so archived
// history can stand in for the venue on offline runs.
type CHCandleArchive struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHCandleArchive(ch *pkgch.Client, database string) *CHCandleArchive {
	if database == "" {
		database = "perpscout"
	}
	return &CHCandleArchive{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHCandleArchive) SetLogger(l *applogger.Logger) { s.l = l }

// CandleSchema returns idempotent DDL for the archive tables.
func CandleSchema(database string) []string {
	if database == "" {
		database = "perpscout"
	}
	const tpl = "CREATE TABLE IF NOT EXISTS %s.candles_%s (symbol String, bucket DateTime, open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=ReplacingMergeTree ORDER BY (symbol, bucket)"
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, tf := range []domrepo.Timeframe{domrepo.TF15m, domrepo.TF1h, domrepo.TF4h} {
		stmts = append(stmts, fmt.Sprintf(tpl, database, tf))
	}
	return stmts
}

func (s *CHCandleArchive) Archive(ctx context.Context, symbol string, tf domrepo.Timeframe, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	table, err := s.table(tf)
	if err != nil {
		return err
	}

	// Chunked multi-row VALUES to reduce round-trips.
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, b := range bars[start:end] {
			if b.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, symbol, b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, bucket, open, high, low, close, vol) VALUES %s", table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse archive insert error",
					applogger.String("table", table),
					applogger.String("symbol", symbol),
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("archive bars: %w", err)
		}
	}
	return nil
}

func (s *CHCandleArchive) Candles(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Bar, error) {
	start := time.Now()
	table, err := s.table(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse candles query error",
				applogger.String("table", table),
				applogger.String("symbol", symbol),
				applogger.Int("limit", limit),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, limit)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse candles scan error",
					applogger.String("table", table),
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse candles rows error",
				applogger.String("table", table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse candles ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", limit),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

// TopSymbols ranks archived symbols by 24h quote turnover. Turnover is
// approximated from base volume and the bar close because raw quote
// turnover is not archived.
func (s *CHCandleArchive) TopSymbols(ctx context.Context, limit int) ([]models.Instrument, error) {
	table, err := s.table(domrepo.TF1h)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT symbol, argMax(close, bucket) AS last_price, sum(vol * close) AS turnover
        FROM %s FINAL
        WHERE bucket >= now() - INTERVAL 1 DAY
        GROUP BY symbol
        ORDER BY turnover DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse top_symbols query error",
				applogger.String("table", table),
				applogger.Int("limit", limit),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("top symbols: %w", err)
	}
	defer rows.Close()

	out := make([]models.Instrument, 0, limit)
	for rows.Next() {
		var in models.Instrument
		if err := rows.Scan(&in.Symbol, &in.LastPrice, &in.Turnover); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *CHCandleArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHCandleArchive) Close() error {
	return nil // Pool managed by pkg client
}

func (s *CHCandleArchive) table(tf domrepo.Timeframe) (string, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return fmt.Sprintf("%s.candles_%s", s.database, tf), nil
}

var (
	_ domrepo.CandleArchive = (*CHCandleArchive)(nil)
	_ domrepo.MarketData    = (*CHCandleArchive)(nil)
)

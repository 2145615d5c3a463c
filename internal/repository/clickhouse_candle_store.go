package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	pkgch "FeatPipe/pkg/clickhouse"
	applogger "FeatPipe/pkg/logger"
)

// CHCandleStore implements CandleStore backed by ClickHouse.
type CHCandleStore struct {
	db       *sql.DB
	database string
	loc      *time.Location
	l        *applogger.Logger
}

// NewCHCandleStore builds a store; calendar fields are derived in loc.
func NewCHCandleStore(ch *pkgch.Client, database string, loc *time.Location, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CHCandleStore{db: ch.DB(), database: database, loc: loc, l: l}
}

func (s *CHCandleStore) GetWindow(ctx context.Context, instID string, bar models.BarInterval, length int, before *int64) ([]models.Candle, error) {
	if length <= 0 {
		return nil, nil
	}
	if !domrepo.IsValidBar(bar) {
		return nil, fmt.Errorf("unsupported bar: %s", bar)
	}
	start := time.Now()

	q := fmt.Sprintf(`
        SELECT ts, open, high, low, close, volume
        FROM %s.candles FINAL
        WHERE inst_id = ? AND bar = ?`, s.database)
	args := []interface{}{instID, string(bar)}
	if before != nil {
		q += " AND ts < ?"
		args = append(args, *before)
	}
	q += " ORDER BY ts DESC LIMIT ?"
	args = append(args, length)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse get_window query error",
			applogger.String("inst_id", instID),
			applogger.String("bar", string(bar)),
			applogger.Int("length", length),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get candle window: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, length)
	for rows.Next() {
		var (
			ts                       int64
			open, high, low, cl, vol float64
		)
		if err := rows.Scan(&ts, &open, &high, &low, &cl, &vol); err != nil {
			s.l.Error("clickhouse get_window scan error",
				applogger.String("inst_id", instID),
				applogger.String("bar", string(bar)),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, models.NewCandle(instID, bar, ts, open, high, low, cl, vol, s.loc))
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse get_window rows error",
			applogger.String("inst_id", instID),
			applogger.String("bar", string(bar)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse get_window ok",
		applogger.String("inst_id", instID),
		applogger.String("bar", string(bar)),
		applogger.Int("length", length),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (s *CHCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.CandleStore = (*CHCandleStore)(nil)

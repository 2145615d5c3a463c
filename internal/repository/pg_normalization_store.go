package repository

import (
	"context"
	"fmt"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	applogger "FeatPipe/pkg/logger"
	"FeatPipe/pkg/postgres"
)

// PGNormalizationStore keeps fitted mean/std pairs in Postgres.
type PGNormalizationStore struct {
	pool *postgres.Pool
	l    *applogger.Logger
}

func NewPGNormalizationStore(pool *postgres.Pool, l *applogger.Logger) *PGNormalizationStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &PGNormalizationStore{pool: pool, l: l}
}

// Init creates the params table.
func (s *PGNormalizationStore) Init(ctx context.Context) error {
	return s.pool.InitSchema(ctx, PostgresSchema())
}

func (s *PGNormalizationStore) GetParams(ctx context.Context, instID string, bar models.BarInterval, column string) (models.NormalizationParams, error) {
	query := `
		SELECT mean, std, updated_at
		FROM normalization_params
		WHERE inst_id = $1 AND bar = $2 AND column_name = $3
	`
	p := models.NormalizationParams{InstID: instID, Bar: bar, Column: column}
	err := s.pool.QueryRow(ctx, query, instID, string(bar), column).Scan(&p.Mean, &p.Std, &p.UpdatedAt)
	if err != nil {
		if postgres.IsNotFound(err) {
			return p, domrepo.ErrNotFound
		}
		s.l.Error("postgres get_params error",
			applogger.String("inst_id", instID),
			applogger.String("bar", string(bar)),
			applogger.String("column", column),
			applogger.Error(err))
		return p, fmt.Errorf("get normalization params: %w", err)
	}
	return p, nil
}

// SaveParams upserts on (inst_id, bar, column_name).
func (s *PGNormalizationStore) SaveParams(ctx context.Context, p models.NormalizationParams) error {
	query := `
		INSERT INTO normalization_params (inst_id, bar, column_name, mean, std, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (inst_id, bar, column_name)
		DO UPDATE SET mean = EXCLUDED.mean, std = EXCLUDED.std, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, p.InstID, string(p.Bar), p.Column, p.Mean, p.Std, p.UpdatedAt); err != nil {
		s.l.Error("postgres save_params error",
			applogger.String("inst_id", p.InstID),
			applogger.String("bar", string(p.Bar)),
			applogger.String("column", p.Column),
			applogger.Error(err))
		return fmt.Errorf("save normalization params: %w", err)
	}
	return nil
}

func (s *PGNormalizationStore) Health(ctx context.Context) error {
	return s.pool.Health(ctx)
}

var _ domrepo.NormalizationStore = (*PGNormalizationStore)(nil)

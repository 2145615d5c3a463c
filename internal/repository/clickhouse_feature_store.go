package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FeatPipe/internal/domain/models"
	domrepo "FeatPipe/internal/domain/repository"
	pkgch "FeatPipe/pkg/clickhouse"
	applogger "FeatPipe/pkg/logger"
)

// CHFeatureStore implements FeatureStore backed by ClickHouse. Records and
// labels live in separate ReplacingMergeTree tables so a label update never
// rewrites the feature row.
type CHFeatureStore struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHFeatureStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHFeatureStore{client: ch, db: ch.DB(), database: database, l: l}
}

func (s *CHFeatureStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, ClickHouseSchema(s.database))
}

func (s *CHFeatureStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// PersistFeature upserts by (inst_id, bar, ts); the newest version wins on merge.
func (s *CHFeatureStore) PersistFeature(ctx context.Context, rec *models.FeatureRecord) error {
	start := time.Now()
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s.features (inst_id, bar, ts, fields, version) VALUES (?, ?, ?, ?, ?)", s.database)
	if _, err := s.db.ExecContext(ctx, q, rec.InstID, string(rec.Bar), rec.Timestamp, string(fields), uint64(time.Now().UnixNano())); err != nil {
		s.l.Error("clickhouse persist_feature error",
			applogger.String("inst_id", rec.InstID),
			applogger.Int64("ts", rec.Timestamp),
			applogger.Error(err),
		)
		return fmt.Errorf("insert feature: %w", err)
	}
	if rec.Label != nil {
		if err := s.UpdateLabel(ctx, rec.InstID, rec.Timestamp, *rec.Label); err != nil {
			return err
		}
	}
	s.l.Debug("clickhouse persist_feature ok",
		applogger.String("inst_id", rec.InstID),
		applogger.Int64("ts", rec.Timestamp),
		applogger.Int("fields", len(rec.Fields)),
		applogger.Duration("duration", time.Since(start)),
	)
	return nil
}

func (s *CHFeatureStore) UpdateLabel(ctx context.Context, instID string, ts int64, label int) error {
	q := fmt.Sprintf("INSERT INTO %s.feature_labels (inst_id, ts, label, version) VALUES (?, ?, ?, ?)", s.database)
	if _, err := s.db.ExecContext(ctx, q, instID, ts, int32(label), uint64(time.Now().UnixNano())); err != nil {
		s.l.Error("clickhouse update_label error",
			applogger.String("inst_id", instID),
			applogger.Int64("ts", ts),
			applogger.Int("label", label),
			applogger.Error(err),
		)
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

func (s *CHFeatureStore) GetFeature(ctx context.Context, instID string, bar models.BarInterval, ts int64) (*models.FeatureRecord, error) {
	q := fmt.Sprintf(`
        SELECT fields
        FROM %s.features FINAL
        WHERE inst_id = ? AND bar = ? AND ts = ?`, s.database)
	var raw string
	if err := s.db.QueryRowContext(ctx, q, instID, string(bar), ts).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrNotFound
		}
		s.l.Error("clickhouse get_feature error",
			applogger.String("inst_id", instID),
			applogger.Int64("ts", ts),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get feature: %w", err)
	}
	rec := &models.FeatureRecord{InstID: instID, Bar: bar, Timestamp: ts}
	if err := json.Unmarshal([]byte(raw), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}

	lq := fmt.Sprintf("SELECT label FROM %s.feature_labels FINAL WHERE inst_id = ? AND ts = ?", s.database)
	var label int32
	switch err := s.db.QueryRowContext(ctx, lq, instID, ts).Scan(&label); {
	case err == nil:
		v := int(label)
		rec.Label = &v
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("get label: %w", err)
	}
	return rec, nil
}

// ListFeatureKeys returns stored anchors ascending by ts, optionally only the
// ones without a label. limit <= 0 means no limit.
func (s *CHFeatureStore) ListFeatureKeys(ctx context.Context, instID string, bar models.BarInterval, onlyUnlabeled bool, limit int) ([]models.FeatureKey, error) {
	start := time.Now()
	var (
		q    string
		args []interface{}
	)
	if onlyUnlabeled {
		q = fmt.Sprintf(`
            SELECT ts, CAST(NULL AS Nullable(Int32)) AS label
            FROM %[1]s.features FINAL
            WHERE inst_id = ? AND bar = ?
              AND ts NOT IN (SELECT ts FROM %[1]s.feature_labels FINAL WHERE inst_id = ?)
            ORDER BY ts ASC`, s.database)
	} else {
		q = fmt.Sprintf(`
            SELECT f.ts, l.label
            FROM (SELECT ts FROM %[1]s.features FINAL WHERE inst_id = ? AND bar = ?) AS f
            LEFT JOIN (SELECT ts, toNullable(label) AS label FROM %[1]s.feature_labels FINAL WHERE inst_id = ?) AS l
            ON f.ts = l.ts
            ORDER BY f.ts ASC`, s.database)
	}
	args = append(args, instID, string(bar), instID)
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse list_feature_keys query error",
			applogger.String("inst_id", instID),
			applogger.Bool("only_unlabeled", onlyUnlabeled),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("list feature keys: %w", err)
	}
	defer rows.Close()

	var out []models.FeatureKey
	for rows.Next() {
		var (
			ts    int64
			label sql.NullInt32
		)
		if err := rows.Scan(&ts, &label); err != nil {
			return nil, fmt.Errorf("scan feature key: %w", err)
		}
		k := models.FeatureKey{InstID: instID, Bar: bar, Timestamp: ts}
		if label.Valid {
			v := int(label.Int32)
			k.Label = &v
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse list_feature_keys ok",
		applogger.String("inst_id", instID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

var _ domrepo.FeatureStore = (*CHFeatureStore)(nil)

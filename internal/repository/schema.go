package repository

import "fmt"

// ClickHouseSchema returns the idempotent DDL for candles, features and labels.
func ClickHouseSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.candles (
            inst_id LowCardinality(String),
            bar     LowCardinality(String),
            ts      Int64,
            open    Float64,
            high    Float64,
            low     Float64,
            close   Float64,
            volume  Float64
        ) ENGINE = ReplacingMergeTree ORDER BY (inst_id, bar, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.features (
            inst_id LowCardinality(String),
            bar     LowCardinality(String),
            ts      Int64,
            fields  String,
            version UInt64
        ) ENGINE = ReplacingMergeTree(version) ORDER BY (inst_id, bar, ts)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.feature_labels (
            inst_id LowCardinality(String),
            ts      Int64,
            label   Int32,
            version UInt64
        ) ENGINE = ReplacingMergeTree(version) ORDER BY (inst_id, ts)`, database),
	}
}

// PostgresSchema returns the DDL for normalization parameters.
func PostgresSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS normalization_params (
			inst_id    TEXT NOT NULL,
			bar        TEXT NOT NULL,
			column_name TEXT NOT NULL,
			mean       DOUBLE PRECISION NOT NULL,
			std        DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (inst_id, bar, column_name)
		)`,
	}
}

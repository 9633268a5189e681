package store

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		ticker TEXT PRIMARY KEY,
		name   TEXT NOT NULL,
		sector TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS financial_metrics (
		id          BIGSERIAL PRIMARY KEY,
		ticker      TEXT NOT NULL REFERENCES companies(ticker),
		metric      TEXT NOT NULL,
		period      TEXT NOT NULL,
		value       DOUBLE PRECISION NOT NULL,
		reported_at TIMESTAMPTZ NOT NULL,
		UNIQUE (ticker, metric, period)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_ticker_metric
		ON financial_metrics (ticker, metric, reported_at)`,
}

// RunMigrations executes the schema statements in order.
func (s *Store) RunMigrations(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration %d: %w", i, err)
		}
	}
	return nil
}

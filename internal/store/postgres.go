package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"financial-rag/internal/models"
)

// ErrNotFound marks lookups for unknown tickers or metrics.
var ErrNotFound = errors.New("not found")

// Store wraps pgxpool for Postgres persistence of companies and metrics.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertCompany inserts or refreshes a catalog entry.
func (s *Store) UpsertCompany(ctx context.Context, c models.Company) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO companies (ticker, name, sector)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker) DO UPDATE SET name = EXCLUDED.name, sector = EXCLUDED.sector
	`, c.Ticker, c.Name, c.Sector)
	if err != nil {
		return fmt.Errorf("upsert company %s: %w", c.Ticker, err)
	}
	return nil
}

// InsertMetrics writes a batch of metric observations.
func (s *Store) InsertMetrics(ctx context.Context, points []models.MetricPoint) error {
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO financial_metrics (ticker, metric, period, value, reported_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (ticker, metric, period) DO UPDATE SET value = EXCLUDED.value, reported_at = EXCLUDED.reported_at
		`, p.Ticker, p.Metric, p.Period, p.Value, p.Reported)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert metrics: %w", err)
		}
	}
	return nil
}

// MetricSeries returns the ordered observations for one ticker and metric.
func (s *Store) MetricSeries(ctx context.Context, ticker, metric string) ([]models.MetricPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticker, metric, period, value, reported_at
		FROM financial_metrics
		WHERE ticker = $1 AND metric = $2
		ORDER BY reported_at
	`, strings.ToUpper(ticker), metric)
	if err != nil {
		return nil, fmt.Errorf("query metric series: %w", err)
	}
	defer rows.Close()

	var out []models.MetricPoint
	for rows.Next() {
		var p models.MetricPoint
		if err := rows.Scan(&p.Ticker, &p.Metric, &p.Period, &p.Value, &p.Reported); err != nil {
			return nil, fmt.Errorf("scan metric point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metric series rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("series %s/%s: %w", ticker, metric, ErrNotFound)
	}
	return out, nil
}

// LatestMetric returns the most recent observation for ticker and metric.
func (s *Store) LatestMetric(ctx context.Context, ticker, metric string) (models.MetricPoint, error) {
	var p models.MetricPoint
	err := s.pool.QueryRow(ctx, `
		SELECT ticker, metric, period, value, reported_at
		FROM financial_metrics
		WHERE ticker = $1 AND metric = $2
		ORDER BY reported_at DESC
		LIMIT 1
	`, strings.ToUpper(ticker), metric).Scan(&p.Ticker, &p.Metric, &p.Period, &p.Value, &p.Reported)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MetricPoint{}, fmt.Errorf("metric %s/%s: %w", ticker, metric, ErrNotFound)
	}
	if err != nil {
		return models.MetricPoint{}, fmt.Errorf("query latest metric: %w", err)
	}
	return p, nil
}

// Company fetches one catalog entry.
func (s *Store) Company(ctx context.Context, ticker string) (models.Company, error) {
	var c models.Company
	err := s.pool.QueryRow(ctx, `
		SELECT ticker, name, sector FROM companies WHERE ticker = $1
	`, strings.ToUpper(ticker)).Scan(&c.Ticker, &c.Name, &c.Sector)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Company{}, fmt.Errorf("company %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return models.Company{}, fmt.Errorf("query company: %w", err)
	}
	return c, nil
}

// Companies lists the catalog, optionally filtered by a case-insensitive
// match on ticker or name.
func (s *Store) Companies(ctx context.Context, query string) ([]models.Company, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ticker, name, sector
		FROM companies
		WHERE $1 = '' OR ticker ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY ticker
	`, query)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.Ticker, &c.Name, &c.Sector); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Leader is one row of a ranked aggregation.
type Leader struct {
	Ticker string  `json:"ticker"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
}

// RevenueLeaders ranks companies by their latest reported revenue.
func (s *Store) RevenueLeaders(ctx context.Context, limit int) ([]Leader, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (m.ticker) m.ticker, c.name, m.value
		FROM financial_metrics m
		JOIN companies c ON c.ticker = m.ticker
		WHERE m.metric = 'revenue'
		ORDER BY m.ticker, m.reported_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query revenue leaders: %w", err)
	}
	defer rows.Close()

	var leaders []Leader
	for rows.Next() {
		var l Leader
		if err := rows.Scan(&l.Ticker, &l.Name, &l.Value); err != nil {
			return nil, fmt.Errorf("scan leader: %w", err)
		}
		leaders = append(leaders, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Rank in Go; DISTINCT ON already reduced to one row per ticker.
	sort.Slice(leaders, func(i, j int) bool { return leaders[i].Value > leaders[j].Value })
	if len(leaders) > limit {
		leaders = leaders[:limit]
	}
	return leaders, nil
}

// Margin is a profitability row: latest net income over latest revenue.
type Margin struct {
	Ticker    string  `json:"ticker"`
	Revenue   float64 `json:"revenue"`
	NetIncome float64 `json:"net_income"`
	Margin    float64 `json:"margin"`
}

// ProfitabilityMetrics computes net margins from the latest observations.
func (s *Store) ProfitabilityMetrics(ctx context.Context) ([]Margin, error) {
	rows, err := s.pool.Query(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (ticker, metric) ticker, metric, value
			FROM financial_metrics
			WHERE metric IN ('revenue', 'net_income')
			ORDER BY ticker, metric, reported_at DESC
		)
		SELECT r.ticker, r.value AS revenue, n.value AS net_income
		FROM latest r
		JOIN latest n ON n.ticker = r.ticker AND n.metric = 'net_income'
		WHERE r.metric = 'revenue' AND r.value <> 0
		ORDER BY r.ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("query profitability: %w", err)
	}
	defer rows.Close()

	var out []Margin
	for rows.Next() {
		var m Margin
		if err := rows.Scan(&m.Ticker, &m.Revenue, &m.NetIncome); err != nil {
			return nil, fmt.Errorf("scan margin: %w", err)
		}
		m.Margin = m.NetIncome / m.Revenue
		out = append(out, m)
	}
	return out, rows.Err()
}

// SectorStat aggregates latest revenue per sector.
type SectorStat struct {
	Sector     string  `json:"sector"`
	Companies  int     `json:"companies"`
	AvgRevenue float64 `json:"avg_revenue"`
}

// SectorComparison averages the latest revenue across each sector.
func (s *Store) SectorComparison(ctx context.Context) ([]SectorStat, error) {
	rows, err := s.pool.Query(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (ticker) ticker, value
			FROM financial_metrics
			WHERE metric = 'revenue'
			ORDER BY ticker, reported_at DESC
		)
		SELECT c.sector, COUNT(*), AVG(l.value)
		FROM latest l
		JOIN companies c ON c.ticker = l.ticker
		GROUP BY c.sector
		ORDER BY AVG(l.value) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sector comparison: %w", err)
	}
	defer rows.Close()

	var out []SectorStat
	for rows.Next() {
		var st SectorStat
		if err := rows.Scan(&st.Sector, &st.Companies, &st.AvgRevenue); err != nil {
			return nil, fmt.Errorf("scan sector stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Summary reports catalog and metric coverage counts.
type Summary struct {
	Companies   int        `json:"companies"`
	Metrics     int        `json:"metrics"`
	Earliest    *time.Time `json:"earliest,omitempty"`
	Latest      *time.Time `json:"latest,omitempty"`
	MetricNames []string   `json:"metric_names"`
}

// DatabaseSummary gathers coverage counts for the insights endpoints.
func (s *Store) DatabaseSummary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM companies),
			(SELECT COUNT(*) FROM financial_metrics),
			(SELECT MIN(reported_at) FROM financial_metrics),
			(SELECT MAX(reported_at) FROM financial_metrics)
	`).Scan(&sum.Companies, &sum.Metrics, &sum.Earliest, &sum.Latest)
	if err != nil {
		return Summary{}, fmt.Errorf("query summary: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT metric FROM financial_metrics ORDER BY metric`)
	if err != nil {
		return Summary{}, fmt.Errorf("query metric names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Summary{}, fmt.Errorf("scan metric name: %w", err)
		}
		sum.MetricNames = append(sum.MetricNames, name)
	}
	return sum, rows.Err()
}

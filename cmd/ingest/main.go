// Command ingest loads company rows and quarterly financial metrics from CSV
// files into Postgres.
//
// Companies CSV columns: ticker,name,sector
// Metrics CSV columns:   ticker,metric,period,value,reported_at (RFC3339 date)
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"financial-rag/internal/config"
	"financial-rag/internal/models"
	"financial-rag/internal/store"
)

func main() {
	companiesPath := flag.String("companies", "", "CSV of companies to upsert")
	metricsPath := flag.String("metrics", "", "CSV of financial metrics to insert")
	flag.Parse()

	if *companiesPath == "" && *metricsPath == "" {
		log.Fatal("nothing to do: pass -companies and/or -metrics")
	}

	cfg := config.Load()
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	if *companiesPath != "" {
		n, err := ingestCompanies(ctx, st, *companiesPath)
		if err != nil {
			log.Fatalf("ingest companies: %v", err)
		}
		log.Printf("upserted %d companies from %s", n, *companiesPath)
	}

	if *metricsPath != "" {
		n, err := ingestMetrics(ctx, st, *metricsPath)
		if err != nil {
			log.Fatalf("ingest metrics: %v", err)
		}
		log.Printf("inserted %d metric rows from %s", n, *metricsPath)
	}
}

func ingestCompanies(ctx context.Context, st *store.Store, path string) (int, error) {
	rows, err := readCSV(path, 3)
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		c := models.Company{Ticker: row[0], Name: row[1], Sector: row[2]}
		if c.Ticker == "" || c.Name == "" {
			return i, fmt.Errorf("row %d: ticker and name are required", i+2)
		}
		if err := st.UpsertCompany(ctx, c); err != nil {
			return i, fmt.Errorf("row %d (%s): %w", i+2, c.Ticker, err)
		}
	}
	return len(rows), nil
}

func ingestMetrics(ctx context.Context, st *store.Store, path string) (int, error) {
	rows, err := readCSV(path, 5)
	if err != nil {
		return 0, err
	}
	points := make([]models.MetricPoint, 0, len(rows))
	for i, row := range rows {
		value, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return 0, fmt.Errorf("row %d: bad value %q: %w", i+2, row[3], err)
		}
		reported, err := parseDate(row[4])
		if err != nil {
			return 0, fmt.Errorf("row %d: bad reported_at %q: %w", i+2, row[4], err)
		}
		points = append(points, models.MetricPoint{
			Ticker:   row[0],
			Metric:   row[1],
			Period:   row[2],
			Value:    value,
			Reported: reported,
		})
	}
	if err := st.InsertMetrics(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

// readCSV parses the file, skips the header row, and checks column count.
func readCSV(path string, columns int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = columns

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

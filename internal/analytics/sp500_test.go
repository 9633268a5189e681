package analytics

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"financial-rag/internal/models"
)

func monthly(start time.Time, levels []float64) []models.SP500Point {
	points := make([]models.SP500Point, len(levels))
	for i, lvl := range levels {
		points[i] = models.SP500Point{
			Date:     start.AddDate(0, i, 0),
			SP500:    lvl,
			Dividend: lvl / 50,
			Earnings: lvl / 20,
		}
	}
	return points
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sp500.csv")
	csv := "Date,SP500,Dividend,Earnings,Consumer Price Index,Long Interest Rate,Real Price,Real Dividend,Real Earnings,PE10\n" +
		"1990-01-01,330.45,11.1,21.3,127.4,8.2,700.1,23.5,45.1,17.1\n" +
		"1990-02-01 00:00:00,331.89,11.2,21.4,128.0,8.3,701.3,23.6,45.2,17.2\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	ds, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", ds.Len())
	}
	sum := ds.Summary()
	if sum.Latest != 331.89 {
		t.Fatalf("expected latest 331.89, got %v", sum.Latest)
	}
	if sum.Start.Year() != 1990 || sum.Start.Month() != time.January {
		t.Fatalf("unexpected start date %s", sum.Start)
	}
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(path, []byte("Date,Price\n1990-01-01,1\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing SP500 column")
	}
}

func TestPointsFiltersByDateRange(t *testing.T) {
	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	d := FromPoints(monthly(start, []float64{100, 110, 120, 130, 140, 150}))

	if got := len(d.Points(time.Time{}, time.Time{})); got != 6 {
		t.Fatalf("unbounded points = %d, want 6", got)
	}

	from := start.AddDate(0, 2, 0)
	to := start.AddDate(0, 4, 0)
	got := d.Points(from, to)
	if len(got) != 3 {
		t.Fatalf("bounded points = %d, want 3", len(got))
	}
	if !got[0].Date.Equal(from) || !got[len(got)-1].Date.Equal(to) {
		t.Fatalf("bounds not honored: first %v last %v", got[0].Date, got[len(got)-1].Date)
	}
}

func TestYearOverYearGrowth(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	levels := make([]float64, 24)
	for i := range levels {
		if i < 12 {
			levels[i] = 100
		} else {
			levels[i] = 110
		}
	}
	ds := FromPoints(monthly(start, levels))

	growth := ds.YearOverYearGrowth()
	if len(growth) != 2 {
		t.Fatalf("expected 2 years, got %d", len(growth))
	}
	if growth[0].Year != 2000 || growth[0].GrowthPct != 0 {
		t.Fatalf("first year should have no growth: %+v", growth[0])
	}
	if math.Abs(growth[1].GrowthPct-10) > 1e-9 {
		t.Fatalf("expected 10%% growth, got %v", growth[1].GrowthPct)
	}
}

func TestCorrelationMatrixDiagonalIsOne(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := FromPoints(monthly(start, []float64{100, 105, 103, 110, 115, 112}))

	matrix := ds.CorrelationMatrix()
	if got := matrix["sp500"]["sp500"]; math.Abs(got-1) > 1e-9 {
		t.Fatalf("self correlation should be 1, got %v", got)
	}
	// Dividend is a fixed multiple of the index, so correlation is exact.
	if got := matrix["sp500"]["dividend"]; math.Abs(got-1) > 1e-9 {
		t.Fatalf("proportional series should correlate at 1, got %v", got)
	}
}

func TestDecadePerformance(t *testing.T) {
	points := []models.SP500Point{
		{Date: time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC), SP500: 100},
		{Date: time.Date(1999, 12, 1, 0, 0, 0, 0, time.UTC), SP500: 150},
		{Date: time.Date(2003, 6, 1, 0, 0, 0, 0, time.UTC), SP500: 120},
		{Date: time.Date(2008, 6, 1, 0, 0, 0, 0, time.UTC), SP500: 180},
	}
	ds := FromPoints(points)

	decades := ds.DecadePerformance()
	if len(decades) != 2 {
		t.Fatalf("expected 2 decades, got %d", len(decades))
	}
	if decades[0].Decade != 1990 || decades[1].Decade != 2000 {
		t.Fatalf("unexpected decades: %+v", decades)
	}
	if math.Abs(decades[0].ChangePct-50) > 1e-9 {
		t.Fatalf("expected 50%% change in the 90s, got %v", decades[0].ChangePct)
	}
	if math.Abs(decades[1].ChangePct-50) > 1e-9 {
		t.Fatalf("expected 50%% change in the 2000s, got %v", decades[1].ChangePct)
	}
}

func TestVolatilityFlatSeriesIsZero(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	levels := make([]float64, 30)
	for i := range levels {
		levels[i] = 100
	}
	ds := FromPoints(monthly(start, levels))

	rep := ds.Volatility(12)
	if rep.Monthly != 0 || rep.Annualized != 0 {
		t.Fatalf("flat series should have zero volatility: %+v", rep)
	}
}

func TestVolatilityFindsPeakWindow(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	levels := make([]float64, 48)
	for i := range levels {
		levels[i] = 100
	}
	// A violent stretch late in the series.
	for i := 36; i < 48; i++ {
		if i%2 == 0 {
			levels[i] = 80
		} else {
			levels[i] = 120
		}
	}
	ds := FromPoints(monthly(start, levels))

	rep := ds.Volatility(6)
	if rep.PeakValue <= 0 {
		t.Fatal("expected a positive peak volatility")
	}
	if rep.PeakWindow.Before(start.AddDate(0, 30, 0)) {
		t.Fatalf("peak window should land in the volatile stretch, got %s", rep.PeakWindow)
	}
}

package charts

import (
	"context"
	"fmt"

	"financial-rag/internal/models"
)

// Point is one labeled observation in a chartable series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// SeriesSource supplies metric observations; *store.Store satisfies it.
type SeriesSource interface {
	MetricSeries(ctx context.Context, ticker, metric string) ([]models.MetricPoint, error)
}

// Demo series used when no database is configured or the lookup misses.
var sampleSeries = map[[2]string][]Point{
	{"AAPL", "revenue"}: {
		{"Q1 2023", 90000}, {"Q2 2023", 92000}, {"Q3 2023", 94000},
		{"Q4 2023", 96000}, {"Q1 2024", 94700},
	},
	{"MSFT", "net_income"}: {
		{"Q1 2023", 12000}, {"Q2 2023", 12500}, {"Q3 2023", 13000},
		{"Q4 2023", 13500}, {"Q1 2024", 13800},
	},
}

// resolveSeries fetches the series from the source, falling back to the
// bundled samples. The returned string names where the data came from.
func resolveSeries(ctx context.Context, src SeriesSource, company, metric string) ([]Point, string, error) {
	if src != nil {
		if series, err := src.MetricSeries(ctx, company, metric); err == nil && len(series) > 0 {
			points := make([]Point, len(series))
			for i, p := range series {
				points[i] = Point{Label: p.Period, Value: p.Value}
			}
			return points, "postgres", nil
		}
	}
	if points, ok := sampleSeries[[2]string{company, metric}]; ok {
		return points, "sample", nil
	}
	return nil, "", fmt.Errorf("no series available for %s/%s", company, metric)
}

// Package charts turns free-text answers into rendered metric charts:
// entity extraction picks the ticker and metric, the series comes from the
// metric store or bundled samples, and the PNG lands locally or in S3.
package charts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"financial-rag/internal/config"
	"financial-rag/internal/rag"
)

// ErrNoParams means no ticker/metric pair could be extracted from the text.
var ErrNoParams = errors.New("no chartable company and metric found in text")

// Result describes one generated chart.
type Result struct {
	Company string `json:"company"`
	Metric  string `json:"metric"`
	Trend   bool   `json:"is_trend"`
	Source  string `json:"source"`
	URL     string `json:"url"`
}

// Generator renders and stores charts.
type Generator struct {
	source SeriesSource
	local  Uploader
	s3     Uploader
}

// NewGenerator builds a generator; S3 upload is enabled only when a bucket
// is configured.
func NewGenerator(ctx context.Context, cfg config.Config, source SeriesSource) (*Generator, error) {
	g := &Generator{
		source: source,
		local:  &localUploader{baseDir: cfg.ChartOutputDir},
	}
	if cfg.ChartS3Bucket != "" {
		up, err := newS3Uploader(ctx, cfg.ChartS3Bucket, cfg.ChartS3Region, cfg.ChartS3Prefix)
		if err != nil {
			return nil, err
		}
		g.s3 = up
	}
	return g, nil
}

// Generate extracts chart parameters from text, renders the series, and
// uploads the PNG. The preferred destination is S3 when configured.
func (g *Generator) Generate(ctx context.Context, text string) (Result, error) {
	params, ok := rag.ExtractParams(text)
	if !ok {
		return Result{}, ErrNoParams
	}

	points, source, err := resolveSeries(ctx, g.source, params.Company, params.Metric)
	if err != nil {
		return Result{}, err
	}

	png, err := renderPNG(points)
	if err != nil {
		return Result{}, err
	}

	key := fmt.Sprintf("%s_%s_%d.png",
		strings.ToLower(params.Company), params.Metric, time.Now().UTC().Unix())
	uploader := g.local
	if g.s3 != nil {
		uploader = g.s3
	}
	url, err := uploader.Upload(ctx, key, png, "image/png")
	if err != nil {
		return Result{}, err
	}

	return Result{
		Company: params.Company,
		Metric:  params.Metric,
		Trend:   params.Trend,
		Source:  source,
		URL:     url,
	}, nil
}

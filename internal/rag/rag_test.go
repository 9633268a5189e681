package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"financial-rag/internal/llm"
	"financial-rag/internal/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"What was Apple's revenue last quarter?", models.QuerySQL},
		{"Explain Microsoft's cloud strategy", models.QueryDoc},
		{"Explain the revenue outlook for Tesla", models.QueryHybrid},
		{"Tell me about the market", models.QueryDoc},
	}
	for _, c := range cases {
		got := Classify(c.question)
		if got.QueryType != c.want {
			t.Fatalf("Classify(%q) = %s, want %s (reason: %s)", c.question, got.QueryType, c.want, got.Reason)
		}
	}
}

func TestExtractParams(t *testing.T) {
	p, ok := ExtractParams("Show me the revenue trend for Apple")
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if p.Company != "AAPL" || p.Metric != "revenue" || !p.Trend {
		t.Fatalf("unexpected params: %+v", p)
	}

	p, ok = ExtractParams("What is MSFT's net income?")
	if !ok || p.Company != "MSFT" || p.Metric != "net_income" || p.Trend {
		t.Fatalf("unexpected params: %+v ok=%v", p, ok)
	}

	if _, ok := ExtractParams("What is the weather like?"); ok {
		t.Fatal("expected extraction to fail without company and metric")
	}

	// "metal" must not match "meta".
	if _, ok := ExtractParams("heavy metal revenue"); ok {
		t.Fatal("partial name match should not extract a company")
	}
}

func TestRetrieverRanksByOverlap(t *testing.T) {
	r := NewRetriever(DefaultDocuments())

	docs := r.Retrieve("What did Apple report for revenue?", 2)
	if len(docs) == 0 {
		t.Fatal("expected at least one document")
	}
	if docs[0].ID != "aapl-q1" {
		t.Fatalf("expected the Apple summary first, got %s", docs[0].ID)
	}

	if got := r.Retrieve("zebra quantum basket weaving", 3); len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

type fakeMetrics struct {
	series []models.MetricPoint
	err    error
}

func (f fakeMetrics) LatestMetric(_ context.Context, _, _ string) (models.MetricPoint, error) {
	if f.err != nil {
		return models.MetricPoint{}, f.err
	}
	return f.series[len(f.series)-1], nil
}

func (f fakeMetrics) MetricSeries(_ context.Context, _, _ string) ([]models.MetricPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

func metricSeries() []models.MetricPoint {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.MetricPoint{
		{Ticker: "AAPL", Metric: "revenue", Period: "Q1 2023", Value: 90000, Reported: base},
		{Ticker: "AAPL", Metric: "revenue", Period: "Q2 2023", Value: 92000, Reported: base.AddDate(0, 3, 0)},
		{Ticker: "AAPL", Metric: "revenue", Period: "Q3 2023", Value: 94700, Reported: base.AddDate(0, 6, 0)},
	}
}

func TestSQLChainUsesStore(t *testing.T) {
	a := NewAnswerer(llm.New(llm.Options{Provider: "mock"}), fakeMetrics{series: metricSeries()}, nil)

	ans, err := a.Answer(context.Background(), "What is AAPL's revenue?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.QueryType != models.QuerySQL {
		t.Fatalf("expected SQL route, got %s", ans.QueryType)
	}
	if ans.Source != "postgres" {
		t.Fatalf("expected store-backed answer, got source %q", ans.Source)
	}
	if !strings.Contains(ans.Answer, "94700.0") {
		t.Fatalf("expected latest value in answer, got %q", ans.Answer)
	}
	if ans.Router["query_type"] != models.QuerySQL {
		t.Fatalf("router metadata missing: %+v", ans.Router)
	}
}

func TestSQLChainTrendUsesSeries(t *testing.T) {
	a := NewAnswerer(llm.New(llm.Options{Provider: "mock"}), fakeMetrics{series: metricSeries()}, nil)

	ans, err := a.Answer(context.Background(), "Show the revenue trend for AAPL")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.Contains(ans.Answer, "3 periods") {
		t.Fatalf("expected series summary, got %q", ans.Answer)
	}
}

func TestSQLChainFallsBackToDemo(t *testing.T) {
	a := NewAnswerer(llm.New(llm.Options{Provider: "mock"}), fakeMetrics{err: errors.New("no rows")}, nil)

	ans, err := a.Answer(context.Background(), "What is AAPL's revenue?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.Source != "demo" {
		t.Fatalf("expected demo fallback, got source %q", ans.Source)
	}

	// No store at all also lands on the demo responses.
	a = NewAnswerer(llm.New(llm.Options{Provider: "mock"}), nil, nil)
	ans, err = a.Answer(context.Background(), "How much profit this quarter?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.Contains(ans.Answer, "Operating profit") {
		t.Fatalf("expected demo profit answer, got %q", ans.Answer)
	}
}

func TestHybridChainCarriesParts(t *testing.T) {
	a := NewAnswerer(llm.New(llm.Options{Provider: "mock"}), fakeMetrics{series: metricSeries()}, nil)

	ans, err := a.Answer(context.Background(), "Explain the revenue outlook for AAPL")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if ans.QueryType != models.QueryHybrid {
		t.Fatalf("expected hybrid route, got %s", ans.QueryType)
	}
	if ans.Parts["sql"] == "" || ans.Parts["doc"] == "" {
		t.Fatalf("hybrid answer missing parts: %+v", ans.Parts)
	}
}

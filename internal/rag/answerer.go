package rag

import (
	"context"
	"fmt"
	"strings"

	"financial-rag/internal/llm"
	"financial-rag/internal/models"
	"financial-rag/internal/telemetry"
)

// MetricSource supplies the numeric side of the SQL chain. *store.Store
// satisfies it; a nil source switches the chain to demo responses.
type MetricSource interface {
	LatestMetric(ctx context.Context, ticker, metric string) (models.MetricPoint, error)
	MetricSeries(ctx context.Context, ticker, metric string) ([]models.MetricPoint, error)
}

// Answerer runs the question-answering chains: document retrieval, metric
// lookup, or a hybrid of both, routed by the classifier.
type Answerer struct {
	llm       llm.Client
	metrics   MetricSource
	retriever *Retriever
}

func NewAnswerer(client llm.Client, metrics MetricSource, retriever *Retriever) *Answerer {
	if retriever == nil {
		retriever = NewRetriever(DefaultDocuments())
	}
	return &Answerer{llm: client, metrics: metrics, retriever: retriever}
}

// Answer classifies the question and runs the matching chain. Chain
// failures surface as errors; the caller decides how to report them.
func (a *Answerer) Answer(ctx context.Context, question string) (models.Answer, error) {
	classification := Classify(question)
	telemetry.QueryClassifications.WithLabelValues(classification.QueryType).Inc()

	var (
		ans models.Answer
		err error
	)
	switch classification.QueryType {
	case models.QuerySQL:
		ans, err = a.runSQL(ctx, question)
	case models.QueryHybrid:
		ans, err = a.runHybrid(ctx, question)
	default:
		ans, err = a.runDoc(ctx, question)
	}
	if err != nil {
		return models.Answer{}, err
	}

	ans.Router = map[string]any{
		"query_type": classification.QueryType,
		"reason":     classification.Reason,
		"matched":    classification.Matched,
	}
	return ans, nil
}

const docSystemPrompt = "You are a financial assistant. Use ONLY the provided context to answer " +
	"the question. If the context does not clearly contain the answer, say you are not sure."

func (a *Answerer) runDoc(ctx context.Context, question string) (models.Answer, error) {
	docs := a.retriever.Retrieve(question, 3)

	var parts []string
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	context_ := strings.Join(parts, "\n\n---\n\n")
	if context_ == "" {
		context_ = "(no matching documents)"
	}

	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nProvide a precise, finance-professional answer.", context_, question)
	text, err := a.llm.Complete(ctx, docSystemPrompt, user)
	if err != nil {
		return models.Answer{}, fmt.Errorf("doc chain: %w", err)
	}

	return models.Answer{
		Answer:    text,
		QueryType: models.QueryDoc,
		Source:    fmt.Sprintf("documents (%d retrieved)", len(docs)),
	}, nil
}

// Demo responses used when no metric store is configured, keyed on question
// substrings.
var sqlDemoResponses = []struct {
	keyword string
	answer  string
}{
	{"apple", "Apple Q1 revenue: $94.7B (+5.2% YoY)."},
	{"revenue", "Total revenue: $125.3B (+3.8% YoY)."},
	{"profit", "Operating profit: $35.2B (28.1% margin)."},
	{"growth", "YoY growth: +4.8%."},
}

const sqlDemoDefault = "[demo] Simulated SQL result. Connect a financial database for real metrics."

func (a *Answerer) runSQL(ctx context.Context, question string) (models.Answer, error) {
	if a.metrics != nil {
		if params, ok := ExtractParams(question); ok {
			if ans, err := a.answerFromStore(ctx, params); err == nil {
				return ans, nil
			}
			// Lookup misses fall through to the demo responses.
		}
	}

	lower := strings.ToLower(question)
	for _, r := range sqlDemoResponses {
		if strings.Contains(lower, r.keyword) {
			return models.Answer{Answer: r.answer, QueryType: models.QuerySQL, Source: "demo"}, nil
		}
	}
	return models.Answer{Answer: sqlDemoDefault, QueryType: models.QuerySQL, Source: "demo"}, nil
}

func (a *Answerer) answerFromStore(ctx context.Context, params Params) (models.Answer, error) {
	if params.Trend {
		series, err := a.metrics.MetricSeries(ctx, params.Company, params.Metric)
		if err != nil {
			return models.Answer{}, err
		}
		first, last := series[0], series[len(series)-1]
		text := fmt.Sprintf("%s %s moved from %.1f (%s) to %.1f (%s) across %d periods.",
			params.Company, strings.ReplaceAll(params.Metric, "_", " "),
			first.Value, first.Period, last.Value, last.Period, len(series))
		if first.Value != 0 {
			text += fmt.Sprintf(" Overall change: %+.1f%%.", (last.Value-first.Value)/first.Value*100)
		}
		return models.Answer{Answer: text, QueryType: models.QuerySQL, Source: "postgres"}, nil
	}

	point, err := a.metrics.LatestMetric(ctx, params.Company, params.Metric)
	if err != nil {
		return models.Answer{}, err
	}
	text := fmt.Sprintf("%s %s for %s: %.1f.",
		params.Company, strings.ReplaceAll(params.Metric, "_", " "), point.Period, point.Value)
	return models.Answer{Answer: text, QueryType: models.QuerySQL, Source: "postgres"}, nil
}

const hybridSystemPrompt = "You are a senior financial analyst. Combine the numeric data and " +
	"document insights into a single, coherent answer. Highlight key metrics, trends, and context."

func (a *Answerer) runHybrid(ctx context.Context, question string) (models.Answer, error) {
	sqlAns, err := a.runSQL(ctx, question)
	if err != nil {
		return models.Answer{}, fmt.Errorf("hybrid sql side: %w", err)
	}
	docAns, err := a.runDoc(ctx, question)
	if err != nil {
		return models.Answer{}, fmt.Errorf("hybrid doc side: %w", err)
	}

	user := fmt.Sprintf(
		"User question: %s\n\nSQL numeric analysis:\n%s\n\nDocument/context explanation:\n%s\n\nProvide an integrated, expert-level response.",
		question, sqlAns.Answer, docAns.Answer)
	merged, err := a.llm.Complete(ctx, hybridSystemPrompt, user)
	if err != nil {
		return models.Answer{}, fmt.Errorf("hybrid merge: %w", err)
	}

	return models.Answer{
		Answer:    merged,
		QueryType: models.QueryHybrid,
		Parts: map[string]any{
			"sql": sqlAns.Answer,
			"doc": docAns.Answer,
		},
	}, nil
}

package rag

import (
	"strings"

	"financial-rag/internal/models"
)

// Classification is the router decision for one question.
type Classification struct {
	QueryType string   `json:"query_type"`
	Reason    string   `json:"reason"`
	Matched   []string `json:"matched,omitempty"`
}

var sqlKeywords = []string{
	"revenue", "net income", "profit", "eps", "margin", "earnings",
	"how much", "total", "average", "sum", "quarter", "fiscal",
	"growth", "yoy", "year over year",
}

var docKeywords = []string{
	"why", "explain", "describe", "summarize", "outlook", "strategy",
	"risk", "filing", "report", "guidance", "according to",
}

// Classify routes a question to the DOC, SQL, or HYBRID chain using a
// keyword heuristic. Numeric-only questions go to SQL, narrative-only to
// DOC, and questions needing both to HYBRID. DOC is the default.
func Classify(question string) Classification {
	lower := strings.ToLower(question)

	var sqlHits, docHits []string
	for _, kw := range sqlKeywords {
		if strings.Contains(lower, kw) {
			sqlHits = append(sqlHits, kw)
		}
	}
	for _, kw := range docKeywords {
		if strings.Contains(lower, kw) {
			docHits = append(docHits, kw)
		}
	}

	switch {
	case len(sqlHits) > 0 && len(docHits) > 0:
		return Classification{
			QueryType: models.QueryHybrid,
			Reason:    "question mixes numeric and narrative terms",
			Matched:   append(sqlHits, docHits...),
		}
	case len(sqlHits) > 0:
		return Classification{
			QueryType: models.QuerySQL,
			Reason:    "question asks for numeric metrics",
			Matched:   sqlHits,
		}
	case len(docHits) > 0:
		return Classification{
			QueryType: models.QueryDoc,
			Reason:    "question asks for narrative context",
			Matched:   docHits,
		}
	default:
		return Classification{
			QueryType: models.QueryDoc,
			Reason:    "no numeric terms detected, defaulting to document retrieval",
		}
	}
}

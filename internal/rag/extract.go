package rag

import (
	"regexp"
	"strings"
)

// Params are the chartable entities pulled out of a question or an answer.
type Params struct {
	Company string `json:"company"`
	Metric  string `json:"metric"`
	Trend   bool   `json:"is_trend"`
}

var companyTickers = []string{"AAPL", "MSFT", "GOOGL", "TSLA", "AMZN", "META", "NVDA"}

var companyNames = map[string]string{
	"apple":     "AAPL",
	"microsoft": "MSFT",
	"google":    "GOOGL",
	"tesla":     "TSLA",
	"amazon":    "AMZN",
	"meta":      "META",
	"nvidia":    "NVDA",
}

// Metrics the extraction recognizes, in priority order.
var financialMetrics = []string{
	"revenue",
	"net_income",
	"operating_income",
	"eps",
	"total_assets",
	"total_liabilities",
	"equity",
}

var trendKeywords = []string{"trend", "growth", "over time", "historical", "compare", "change"}

var wordBoundary = map[string]*regexp.Regexp{}

func init() {
	for name := range companyNames {
		wordBoundary[name] = regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	}
	// Tickers are matched word-bounded too, so "metal" never hits META.
	for _, ticker := range companyTickers {
		lower := strings.ToLower(ticker)
		wordBoundary[lower] = regexp.MustCompile(`\b` + regexp.QuoteMeta(lower) + `\b`)
	}
}

// ExtractParams pulls a ticker, a metric, and a trend preference out of free
// text. It reports false when either the company or the metric is missing.
func ExtractParams(text string) (Params, bool) {
	lower := strings.ToLower(text)

	var p Params
	for _, ticker := range companyTickers {
		if wordBoundary[strings.ToLower(ticker)].MatchString(lower) {
			p.Company = ticker
			break
		}
	}
	if p.Company == "" {
		for name, ticker := range companyNames {
			if wordBoundary[name].MatchString(lower) {
				p.Company = ticker
				break
			}
		}
	}

	for _, m := range financialMetrics {
		if strings.Contains(lower, m) || strings.Contains(lower, strings.ReplaceAll(m, "_", " ")) {
			p.Metric = m
			break
		}
	}

	for _, kw := range trendKeywords {
		if strings.Contains(lower, kw) {
			p.Trend = true
			break
		}
	}

	if p.Company == "" || p.Metric == "" {
		return Params{}, false
	}
	return p, true
}

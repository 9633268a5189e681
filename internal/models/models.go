package models

import (
	"time"
)

// Query classification types assigned by the question router.
const (
	QueryDoc    = "DOC"
	QuerySQL    = "SQL"
	QueryHybrid = "HYBRID"
)

// Company is a catalog entry for a tracked company.
type Company struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// MetricPoint is one observation of a financial metric for a company.
type MetricPoint struct {
	Ticker   string    `json:"ticker"`
	Metric   string    `json:"metric"`
	Period   string    `json:"period"`
	Value    float64   `json:"value"`
	Reported time.Time `json:"reported_at"`
}

// SP500Point is one monthly observation of the S&P 500 dataset.
type SP500Point struct {
	Date              time.Time `json:"date"`
	SP500             float64   `json:"sp500"`
	Dividend          float64   `json:"dividend"`
	Earnings          float64   `json:"earnings"`
	ConsumerPriceIdx  float64   `json:"consumer_price_index"`
	LongInterestRate  float64   `json:"long_interest_rate"`
	RealPrice         float64   `json:"real_price"`
	RealDividend      float64   `json:"real_dividend"`
	RealEarnings      float64   `json:"real_earnings"`
	PE10              float64   `json:"pe10"`
}

// Answer is the outcome of one question through the answering pipeline.
type Answer struct {
	Answer    string         `json:"answer"`
	QueryType string         `json:"query_type"`
	Router    map[string]any `json:"router"`
	Source    string         `json:"source,omitempty"`
	Parts     map[string]any `json:"parts,omitempty"`
}

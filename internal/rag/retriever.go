package rag

import (
	"sort"
	"strings"
)

// Document is one retrievable text unit.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Retriever ranks documents by term overlap with the question. It stands in
// for a vector store: small corpus, exact scoring, no external service.
type Retriever struct {
	docs []Document
}

func NewRetriever(docs []Document) *Retriever {
	return &Retriever{docs: docs}
}

// Retrieve returns the top k documents sharing at least one term with the
// question, best match first.
func (r *Retriever) Retrieve(question string, k int) []Document {
	if k <= 0 {
		k = 3
	}
	terms := tokenize(question)

	type scored struct {
		doc   Document
		score int
	}
	var matches []scored
	for _, doc := range r.docs {
		docTerms := tokenize(doc.Title + " " + doc.Content)
		score := 0
		for term := range terms {
			if docTerms[term] {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{doc, score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if len(matches) > k {
		matches = matches[:k]
	}
	out := make([]Document, len(matches))
	for i, m := range matches {
		out[i] = m.doc
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "was": true, "are": true,
	"what": true, "how": true, "of": true, "for": true, "in": true, "to": true,
	"and": true, "or": true, "it": true, "its": true,
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(tok) > 1 && !stopwords[tok] {
			out[tok] = true
		}
	}
	return out
}

// DefaultDocuments is the demo corpus served when no documents have been
// ingested.
func DefaultDocuments() []Document {
	return []Document{
		{
			ID:    "aapl-q1",
			Title: "Apple quarterly summary",
			Content: "Apple reported Q1 revenue of $94.7B, up 5.2% year over year, driven by " +
				"services growth and steady iPhone demand. Gross margin expanded to 45.9%.",
		},
		{
			ID:    "msft-cloud",
			Title: "Microsoft cloud commentary",
			Content: "Microsoft's intelligent cloud segment grew 19%, with Azure consumption " +
				"trends improving through the quarter. Management guided operating margin flat.",
		},
		{
			ID:    "macro-rates",
			Title: "Rates and equity valuations",
			Content: "Long interest rates remain the dominant driver of equity multiples. " +
				"Historically, a 100bp rise in the long rate compresses the index PE10 noticeably.",
		},
		{
			ID:    "sp500-history",
			Title: "S&P 500 historical behavior",
			Content: "Across decades the S&P 500 shows positive real returns with deep " +
				"drawdowns concentrated in recessions; dividends contribute roughly a third " +
				"of total return over long horizons.",
		},
	}
}

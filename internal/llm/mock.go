package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Mock is the demo-mode backend: deterministic canned answers keyed on
// simple question patterns, so the pipeline works without any LLM server.
type Mock struct{}

func (Mock) Provider() string { return "mock" }

var mockResponses = []struct {
	keyword string
	answer  string
}{
	{"revenue", "Based on the available data, revenue grew steadily over the period with the strongest quarter at the end of the range."},
	{"profit", "Operating profit held a healthy margin across the period; see the net income series for the exact figures."},
	{"growth", "Year-over-year growth was positive for most of the period, with a brief contraction mid-range."},
	{"compare", "Comparing the requested companies, the larger of the two leads on absolute revenue while the smaller shows faster growth."},
}

func (Mock) Complete(_ context.Context, _ string, user string) (string, error) {
	lower := strings.ToLower(user)
	for _, r := range mockResponses {
		if strings.Contains(lower, r.keyword) {
			return r.answer, nil
		}
	}
	return fmt.Sprintf("[demo] No live model is configured. Echoing the question context: %s", truncate(user, 160)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

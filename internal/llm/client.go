// Package llm selects and wraps the completion backend used by the answer
// chains. Preference order: Ollama when configured and reachable, otherwise
// a deterministic mock so the service keeps answering in demo mode.
package llm

import (
	"context"
	"log"
	"time"

	"financial-rag/internal/telemetry"
)

// Client produces one completion for a system/user prompt pair.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Provider() string
}

// Options configures backend selection.
type Options struct {
	Provider    string // "ollama" or "mock"
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// New picks a backend. An unreachable Ollama degrades to the mock rather
// than failing startup; the probe is a single cheap HTTP call.
func New(opts Options) Client {
	if opts.Provider == "ollama" {
		c := newOllama(opts)
		if c.healthy() {
			log.Printf("llm: using ollama model %s at %s", opts.Model, opts.BaseURL)
			return instrumented{c}
		}
		log.Printf("llm: ollama unreachable at %s, falling back to mock", opts.BaseURL)
	}
	return instrumented{Mock{}}
}

// instrumented records request counts and latency around any backend.
type instrumented struct {
	inner Client
}

func (c instrumented) Provider() string { return c.inner.Provider() }

func (c instrumented) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	out, err := c.inner.Complete(ctx, system, user)
	telemetry.LLMDuration.WithLabelValues(c.inner.Provider()).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	telemetry.LLMRequests.WithLabelValues(c.inner.Provider(), status).Inc()
	return out, err
}

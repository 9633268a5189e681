package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"financial-rag/internal/analytics"
	"financial-rag/internal/charts"
	"financial-rag/internal/config"
	"financial-rag/internal/rag"
	"financial-rag/internal/ratelimit"
	"financial-rag/internal/store"
	"financial-rag/internal/task"
	"financial-rag/internal/telemetry"
)

// Server wires HTTP handlers for the question-answering API. The Postgres
// store, dataset, and limiter are optional; their endpoints degrade when
// absent.
type Server struct {
	cfg      config.Config
	queue    *task.Queue
	answerer *rag.Answerer
	store    *store.Store
	dataset  *analytics.Dataset
	charts   *charts.Generator
	limiter  *ratelimit.Limiter
}

// New constructs the API server.
func New(cfg config.Config, queue *task.Queue, answerer *rag.Answerer, st *store.Store, dataset *analytics.Dataset, charts *charts.Generator, limiter *ratelimit.Limiter) *Server {
	return &Server{
		cfg:      cfg,
		queue:    queue,
		answerer: answerer,
		store:    st,
		dataset:  dataset,
		charts:   charts,
		limiter:  limiter,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/async", s.handleChatAsync)

		r.Get("/tasks", s.handleTaskList)
		r.Get("/tasks/{id}", s.handleTaskStatus)
		r.Get("/queue/stats", s.handleQueueStats)
		r.Post("/queue/clean", s.handleQueueClean)

		r.Get("/insights/summary", s.handleInsightsSummary)
		r.Get("/insights/revenue-leaders", s.handleRevenueLeaders)
		r.Get("/insights/profitability", s.handleProfitability)
		r.Get("/insights/sectors", s.handleSectors)

		r.Get("/sp500/summary", s.handleSP500Summary)
		r.Get("/sp500/timeseries", s.handleSP500Timeseries)
		r.Get("/sp500/growth", s.handleSP500Growth)
		r.Get("/sp500/correlation", s.handleSP500Correlation)
		r.Get("/sp500/decades", s.handleSP500Decades)
		r.Get("/sp500/volatility", s.handleSP500Volatility)

		r.Get("/companies", s.handleCompanies)
		r.Get("/companies/{ticker}", s.handleCompany)

		r.Post("/charts", s.handleChart)
		r.Post("/charts/async", s.handleChartAsync)
	})
	return r
}

type chatRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

type taskSubmitResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return req, false
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return req, false
	}
	if v := r.Header.Get("X-User-ID"); v != "" {
		req.UserID = v
	}
	if req.UserID == "" {
		req.UserID = "default"
	}
	if !s.allow(w, r, req.UserID) {
		return req, false
	}
	return req, true
}

// allow consults the rate limiter when configured. It writes the rejection
// itself and reports whether the request may proceed.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, userID string) bool {
	if s.limiter == nil {
		return true
	}
	allowed, _, err := s.limiter.Allow(r.Context(), userID, 1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "rate limit error")
		return false
	}
	if !allowed {
		telemetry.RateLimitRejects.Inc()
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return false
	}
	return true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	ans, err := s.answerer.Answer(r.Context(), req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("answer failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleChatAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	question := req.Question
	id := s.queue.Submit(func(ctx context.Context) (any, error) {
		return s.answerer.Answer(ctx, question)
	}, "chat")
	writeJSON(w, http.StatusAccepted, taskSubmitResponse{
		TaskID:    id,
		Status:    string(task.StatusPending),
		StatusURL: "/api/v1/tasks/" + id,
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.queue.Status(id)
	if errors.Is(err, task.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	status := task.Status(r.URL.Query().Get("status"))
	switch status {
	case "", task.StatusPending, task.StatusRunning, task.StatusCompleted, task.StatusFailed:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.queue.List(status)})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Stats())
}

func (s *Server) handleQueueClean(w http.ResponseWriter, r *http.Request) {
	maxAge := time.Hour
	if v := r.URL.Query().Get("max_age_seconds"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			writeError(w, http.StatusBadRequest, "max_age_seconds must be a non-negative integer")
			return
		}
		maxAge = time.Duration(secs) * time.Second
	}
	removed := s.queue.Clean(maxAge)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return false
	}
	return true
}

func (s *Server) handleInsightsSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sum, err := s.store.DatabaseSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRevenueLeaders(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	leaders, err := s.store.RevenueLeaders(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaders": leaders})
}

func (s *Server) handleProfitability(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	margins, err := s.store.ProfitabilityMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"margins": margins})
}

func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	sectors, err := s.store.SectorComparison(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sectors": sectors})
}

func (s *Server) requireDataset(w http.ResponseWriter) bool {
	if s.dataset == nil {
		writeError(w, http.StatusServiceUnavailable, "sp500 dataset not loaded")
		return false
	}
	return true
}

func (s *Server) handleSP500Summary(w http.ResponseWriter, _ *http.Request) {
	if !s.requireDataset(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.dataset.Summary())
}

func (s *Server) handleSP500Timeseries(w http.ResponseWriter, r *http.Request) {
	if !s.requireDataset(w) {
		return
	}
	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = t
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": s.dataset.Points(from, to)})
}

func (s *Server) handleSP500Growth(w http.ResponseWriter, _ *http.Request) {
	if !s.requireDataset(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"growth": s.dataset.YearOverYearGrowth()})
}

func (s *Server) handleSP500Correlation(w http.ResponseWriter, _ *http.Request) {
	if !s.requireDataset(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"correlation": s.dataset.CorrelationMatrix()})
}

func (s *Server) handleSP500Decades(w http.ResponseWriter, _ *http.Request) {
	if !s.requireDataset(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decades": s.dataset.DecadePerformance()})
}

func (s *Server) handleSP500Volatility(w http.ResponseWriter, r *http.Request) {
	if !s.requireDataset(w) {
		return
	}
	window := 12
	if v := r.URL.Query().Get("window"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			window = n
		}
	}
	writeJSON(w, http.StatusOK, s.dataset.Volatility(window))
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	companies, err := s.store.Companies(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	c, err := s.store.Company(r.Context(), chi.URLParam(r, "ticker"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type chartRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	var req chartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	res, err := s.charts.Generate(r.Context(), req.Text)
	if errors.Is(err, charts.ErrNoParams) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChartAsync(w http.ResponseWriter, r *http.Request) {
	var req chartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	text := req.Text
	id := s.queue.Submit(func(ctx context.Context) (any, error) {
		return s.charts.Generate(ctx, text)
	}, "chart")
	writeJSON(w, http.StatusAccepted, taskSubmitResponse{
		TaskID:    id,
		Status:    string(task.StatusPending),
		StatusURL: "/api/v1/tasks/" + id,
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

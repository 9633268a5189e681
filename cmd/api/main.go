package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"financial-rag/internal/analytics"
	"financial-rag/internal/api"
	"financial-rag/internal/charts"
	"financial-rag/internal/config"
	"financial-rag/internal/llm"
	"financial-rag/internal/rag"
	"financial-rag/internal/ratelimit"
	"financial-rag/internal/store"
	"financial-rag/internal/task"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	// Postgres is optional: without a DSN the API serves demo answers and
	// the insight endpoints report unavailable.
	var st *store.Store
	var metrics rag.MetricSource
	var series charts.SeriesSource
	if cfg.PostgresDSN != "" {
		var err error
		st, err = store.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer st.Close()
		if err := st.RunMigrations(ctx); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		metrics = st
		series = st
	} else {
		log.Printf("POSTGRES_DSN not set, running in demo mode")
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limiter = ratelimit.NewLimiter(client, cfg.RateLimitCapacity, cfg.RateLimitRefill)
	}

	var dataset *analytics.Dataset
	if cfg.SP500CSVPath != "" {
		var err error
		dataset, err = analytics.Load(cfg.SP500CSVPath)
		if err != nil {
			log.Printf("sp500 dataset unavailable: %v", err)
		} else {
			log.Printf("loaded %d sp500 observations from %s", dataset.Len(), cfg.SP500CSVPath)
		}
	}

	client := llm.New(llm.Options{
		Provider:    cfg.LLMProvider,
		BaseURL:     cfg.OllamaBaseURL,
		Model:       cfg.OllamaModel,
		Timeout:     cfg.LLMTimeout,
		Temperature: cfg.LLMTemperature,
	})
	log.Printf("llm provider: %s", client.Provider())

	answerer := rag.NewAnswerer(client, metrics, nil)

	generator, err := charts.NewGenerator(ctx, cfg, series)
	if err != nil {
		log.Fatalf("init chart generator: %v", err)
	}

	queue := task.New(task.Options{
		MaxConcurrent: cfg.TaskMaxConcurrent,
		SweepInterval: cfg.TaskSweepInterval,
		SweepMaxAge:   cfg.TaskMaxAge,
	})

	server := api.New(cfg, queue, answerer, st, dataset, generator, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	log.Printf("api listening on :%s", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	queue.Close()
}

package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration for the API service and tools.
type Config struct {
	Env         string
	HTTPPort    string
	MetricsAddr string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitEnabled  bool
	RateLimitCapacity int
	RateLimitRefill   float64

	LLMProvider    string
	OllamaBaseURL  string
	OllamaModel    string
	LLMTimeout     time.Duration
	LLMTemperature float64

	TaskMaxConcurrent int
	TaskSweepInterval time.Duration
	TaskMaxAge        time.Duration

	SP500CSVPath string

	ChartOutputDir string
	ChartS3Bucket  string
	ChartS3Region  string
	ChartS3Prefix  string
}

// Load reads configuration from environment variables with sane defaults for local development.
func Load() Config {
	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		HTTPPort:    getEnv("HTTP_PORT", "8000"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitEnabled:  getEnvBool("RATE_LIMIT_ENABLED", false),
		RateLimitCapacity: getEnvInt("RATE_LIMIT_CAPACITY", 100),
		RateLimitRefill:   getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 2),

		LLMProvider:    getEnv("LLM_PROVIDER", "mock"),
		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "mistral"),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.1),

		TaskMaxConcurrent: getEnvInt("TASK_MAX_CONCURRENT", 0),
		TaskSweepInterval: getEnvDuration("TASK_SWEEP_INTERVAL", 10*time.Minute),
		TaskMaxAge:        getEnvDuration("TASK_MAX_AGE", time.Hour),

		SP500CSVPath: getEnv("SP500_CSV_PATH", "data/sample_financial_data.csv"),

		ChartOutputDir: getEnv("CHART_OUTPUT_DIR", "./output"),
		ChartS3Bucket:  getEnv("CHART_S3_BUCKET", ""),
		ChartS3Region:  getEnv("CHART_S3_REGION", "us-east-1"),
		ChartS3Prefix:  getEnv("CHART_S3_PREFIX", "charts/"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string

	// HTTP
	ListenAddr  string
	MetricsAddr string

	// Job queue
	OrderStream   string
	ConsumerGroup string
	ConsumerName  string

	// Pipeline
	WorkerCount  int
	QuoteLatency time.Duration
	ExecLatency  time.Duration
	SettleDelay  time.Duration

	// Active-order cache
	OrderCacheTTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/orders.db"),

		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		OrderStream:   getEnv("ORDER_STREAM", "orders:jobs"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "execd"),
		ConsumerName:  getEnv("CONSUMER_NAME", hostnameOr("worker-1")),

		WorkerCount:  getEnvInt("WORKER_COUNT", 8),
		QuoteLatency: getEnvMillis("QUOTE_LATENCY_MS", 300),
		ExecLatency:  getEnvMillis("EXEC_LATENCY_MS", 1200),
		SettleDelay:  getEnvMillis("SETTLE_DELAY_MS", 500),

		OrderCacheTTL: time.Duration(getEnvInt("ORDER_CACHE_TTL_SEC", 3600)) * time.Second,
	}
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return fallback
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvMillis(key string, fallbackMs int) time.Duration {
	ms := getEnvInt(key, fallbackMs)
	if ms < 0 {
		log.Printf("[config] negative %s, using %dms", key, fallbackMs)
		ms = fallbackMs
	}
	return time.Duration(ms) * time.Millisecond
}

package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the execution service.
type Metrics struct {
	OrdersEnqueued  prometheus.Counter
	OrdersConfirmed prometheus.Counter
	OrdersFailed    prometheus.Counter
	OrdersSkipped   prometheus.Counter // redelivered jobs skipped by the idempotency guard

	NotifyDrops prometheus.Counter
	WSClients   prometheus.Gauge

	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter

	QuoteDur    prometheus.Histogram
	ExecuteDur  prometheus.Histogram
	PipelineDur prometheus.Histogram
	InFlight    prometheus.Gauge
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		OrdersEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execd_orders_enqueued_total",
			Help: "Orders accepted by intake and durably queued",
		}),
		OrdersConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execd_orders_confirmed_total",
			Help: "Orders that reached the confirmed terminal state",
		}),
		OrdersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execd_orders_failed_total",
			Help: "Orders that reached the failed terminal state",
		}),
		OrdersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execd_orders_skipped_total",
			Help: "Queue deliveries skipped because the order was no longer pending",
		}),
		NotifyDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execd_notifications_dropped_total",
			Help: "Notifications dropped (no sink bound or send failed)",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "execd_ws_clients",
			Help: "Currently bound WebSocket subscribers",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execd_order_cache_hits_total",
			Help: "Order reads served from the active-order cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execd_order_cache_misses_total",
			Help: "Order reads that fell through to SQLite",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "execd_cache_circuit_breaker_state",
			Help: "Cache circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "execd_cache_circuit_breaker_trips_total",
			Help: "Times the cache circuit breaker tripped open",
		}),
		QuoteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "execd_quote_duration_seconds",
			Help:    "Venue quote latency",
			Buckets: prometheus.DefBuckets,
		}),
		ExecuteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "execd_execute_duration_seconds",
			Help:    "Venue execution latency",
			Buckets: prometheus.DefBuckets,
		}),
		PipelineDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "execd_pipeline_duration_seconds",
			Help:    "Full per-order pipeline duration, dequeue to terminal state",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "execd_executions_in_flight",
			Help: "Order pipelines currently running",
		}),
	}

	prometheus.MustRegister(
		m.OrdersEnqueued,
		m.OrdersConfirmed,
		m.OrdersFailed,
		m.OrdersSkipped,
		m.NotifyDrops,
		m.WSClients,
		m.CacheHits,
		m.CacheMisses,
		m.BreakerState,
		m.BreakerTrips,
		m.QuoteDur,
		m.ExecuteDur,
		m.PipelineDur,
		m.InFlight,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool `json:"redis_connected"`
	SQLiteOK       bool `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swaprouter/config"
	"swaprouter/internal/engine"
	"swaprouter/internal/gateway"
	"swaprouter/internal/logger"
	"swaprouter/internal/metrics"
	"swaprouter/internal/queue"
	"swaprouter/internal/registry"
	redisstore "swaprouter/internal/store/redis"
	"swaprouter/internal/store/sqlite"
	"swaprouter/internal/venue"
)

func main() {
	logger.Init("execd", slog.LevelInfo)
	slog.Info("starting")

	cfg := config.Load()

	store, err := sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		slog.Error("sqlite open failed", "err", err)
		os.Exit(1)
	}

	cache, err := redisstore.NewCache(redisstore.CacheConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.OrderCacheTTL,
	})
	if err != nil {
		slog.Error("redis cache connect failed", "err", err)
		os.Exit(1)
	}

	q, err := queue.NewRedis(queue.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Stream:   cfg.OrderStream,
		Group:    cfg.ConsumerGroup,
		Consumer: cfg.ConsumerName,
	})
	if err != nil {
		slog.Error("redis queue connect failed", "err", err)
		os.Exit(1)
	}

	met := metrics.New()

	reg := registry.New()
	reg.OnDrop = func(string) { met.NotifyDrops.Inc() }

	cache.Breaker().OnStateChange = func(from, to redisstore.State) {
		met.BreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			met.BreakerTrips.Inc()
		}
		slog.Warn("cache circuit breaker transition", "from", from.String(), "to", to.String())
	}

	sim := venue.New(venue.Config{
		QuoteLatency: cfg.QuoteLatency,
		ExecLatency:  cfg.ExecLatency,
	})

	svc := engine.NewService(engine.Config{
		Workers:     cfg.WorkerCount,
		SettleDelay: cfg.SettleDelay,
	}, engine.Deps{
		Store:    store,
		Cache:    cache,
		Queue:    q,
		Registry: reg,
		Venues:   sim,
		Metrics:  met,
	})
	svc.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := metrics.NewHealthStatus()
	health.CheckRedis(ctx, cache.Client())
	health.CheckSQLite(ctx, store.DB())
	health.StartLivenessChecker(ctx, cache.Client(), store.DB(), 10*time.Second)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	gw := gateway.NewServer(cfg.ListenAddr, svc)
	gw.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	// Stop intake first, then drain in-flight pipelines, then release
	// infrastructure.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	gw.Stop(shutdownCtx)
	svc.Close()
	cancel()
	metricsSrv.Stop(shutdownCtx)

	q.Shutdown()
	cache.Close()
	store.Close()

	slog.Info("stopped")
}

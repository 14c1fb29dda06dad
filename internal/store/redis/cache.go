// Package redis holds the active-order cache. The cache is a
// convenience for the request layer; every failure must degrade to a
// store read, never fail a request, so all calls run through a circuit
// breaker.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"swaprouter/internal/model"
)

const orderKeyPrefix = "order:"

// CacheConfig configures the active-order cache.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // per-entry lifetime, e.g. 1h
}

// Cache implements model.OrderCache on Redis SET/GET with a TTL.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
	cb     *CircuitBreaker
}

// NewCache creates the cache and pings the server.
func NewCache(cfg CacheConfig) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("order cache connected", "addr", cfg.Addr, "ttl", cfg.TTL.String())
	return &Cache{
		client: client,
		ttl:    cfg.TTL,
		cb:     NewCircuitBreaker(5, 10*time.Second),
	}, nil
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// Breaker exposes the circuit breaker so the process entry point can
// attach metrics callbacks.
func (c *Cache) Breaker() *CircuitBreaker { return c.cb }

// Set stores the order snapshot under order:{id} with the configured TTL.
func (c *Cache) Set(ctx context.Context, o *model.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	return c.cb.Execute(func() error {
		return c.client.Set(ctx, orderKeyPrefix+o.ID, data, c.ttl).Err()
	})
}

// Get loads an order snapshot. Returns model.ErrOrderNotFound when the
// key is absent or the breaker is open.
func (c *Cache) Get(ctx context.Context, id string) (*model.Order, error) {
	var data string
	err := c.cb.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, orderKeyPrefix+id).Result()
		if err == goredis.Nil {
			// Absence is not a Redis failure; don't count it against
			// the breaker.
			data = ""
			return nil
		}
		return err
	})
	if err != nil {
		if err == ErrCircuitOpen {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if data == "" {
		return nil, model.ErrOrderNotFound
	}

	var o model.Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("unmarshal cached order: %w", err)
	}
	return &o, nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Package queue implements the durable order job queue on Redis
// Streams. Enqueue XADDs a work item; workers consume it through a
// consumer group and ack only after the pipeline finished, which gives
// at-least-once delivery across process crashes.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"swaprouter/internal/model"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

const (
	// Stream trimming: completed entries are acked, the stream itself is
	// capped to a generous backlog.
	streamMaxLen = 100000

	orderIDField = "order_id"
)

// RedisConfig configures the Redis-backed queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	Stream   string // stream key, e.g. "orders:jobs"
	Group    string // consumer group name, e.g. "execd"
	Consumer string // unique consumer name, e.g. hostname
}

// RedisQueue is a model.Queue backed by one Redis Stream and one
// consumer group.
type RedisQueue struct {
	client   *goredis.Client
	stream   string
	group    string
	consumer string
	closed   atomic.Bool
}

// NewRedis connects, pings the server and ensures the consumer group
// exists.
func NewRedis(cfg RedisConfig) (*RedisQueue, error) {
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

	q := &RedisQueue{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
	}
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}

	slog.Info("queue connected", "addr", cfg.Addr, "stream", cfg.Stream, "group", cfg.Group, "consumer", cfg.Consumer)
	return q, nil
}

// ensureGroup creates the consumer group if it doesn't exist. Uses "0"
// as start ID so entries enqueued before the first consumer attach are
// still delivered.
func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil {
		// Ignore "BUSYGROUP" error — group already exists
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create %s: %w", q.stream, err)
		}
	}
	return nil
}

// Enqueue appends a durable work item and returns once Redis accepted it.
func (q *RedisQueue) Enqueue(ctx context.Context, orderID string) error {
	if q.closed.Load() {
		return ErrClosed
	}
	err := q.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{orderIDField: orderID},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", q.stream, err)
	}
	return nil
}

// Consume blocks on XREADGROUP and sends parsed jobs to out until ctx is
// cancelled. Pending deliveries left unacked by a previous crash are
// claimed and replayed first.
func (q *RedisQueue) Consume(ctx context.Context, out chan<- model.Job) error {
	if err := q.recoverPending(ctx, out); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("pending recovery failed", "err", err)
	}

	args := []string{q.stream, ">"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := q.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  args,
			Count:    16,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			slog.Error("xreadgroup failed", "err", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				if !q.deliver(ctx, msg, out) {
					return ctx.Err()
				}
			}
		}
	}
}

// deliver forwards one stream entry as a Job. Malformed entries are
// acked immediately to avoid a poison pill. Returns false when ctx ended.
func (q *RedisQueue) deliver(ctx context.Context, msg goredis.XMessage, out chan<- model.Job) bool {
	orderID, ok := msg.Values[orderIDField].(string)
	if !ok || orderID == "" {
		slog.Warn("dropping malformed queue entry", "entry_id", msg.ID)
		q.client.XAck(ctx, q.stream, q.group, msg.ID)
		return true
	}

	select {
	case out <- model.Job{ID: msg.ID, OrderID: orderID}:
		return true
	case <-ctx.Done():
		return false
	}
}

// recoverPending claims this consumer group's unacked entries and
// replays them, preserving at-least-once semantics across restarts.
// The scan cursor advances strictly past each batch: entries handed to
// a worker slot stay unacked until the pipeline finishes, so rescanning
// from "-" would see them again and re-deliver mid-execution.
func (q *RedisQueue) recoverPending(ctx context.Context, out chan<- model.Job) error {
	const batch = 100
	start := "-"
	for {
		pending, err := q.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
			Stream: q.stream,
			Group:  q.group,
			Start:  start,
			End:    "+",
			Count:  batch,
		}).Result()
		if err != nil || len(pending) == 0 {
			return err
		}

		ids := make([]string, len(pending))
		for i, p := range pending {
			ids[i] = p.ID
		}
		// exclusive range, next scan starts after this batch
		start = "(" + ids[len(ids)-1]

		claimed, err := q.client.XClaim(ctx, &goredis.XClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  0,
			Messages: ids,
		}).Result()
		if err != nil {
			return fmt.Errorf("xclaim %s: %w", q.stream, err)
		}
		if len(claimed) > 0 {
			slog.Info("recovered pending jobs", "count", len(claimed))
		}

		for _, msg := range claimed {
			if !q.deliver(ctx, msg, out) {
				return ctx.Err()
			}
		}

		if len(pending) < batch {
			return nil
		}
	}
}

// Ack marks a delivered job as processed.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	return q.client.XAck(ctx, q.stream, q.group, jobID).Err()
}

// Depth returns the number of entries currently in the stream.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.XLen(ctx, q.stream).Result()
}

// Close stops accepting new work. The client stays open so in-flight
// jobs can still be acked; the process entry point closes it last.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}

// Shutdown releases the underlying Redis client. Call after the worker
// pool has drained.
func (q *RedisQueue) Shutdown() error {
	return q.client.Close()
}

package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the execution pipeline from concrete
// infrastructure (SQLite, Redis, WebSocket). Each implementation
// satisfies one or more of these.

// OrderStore is the durable persistence sink for orders.
type OrderStore interface {
	// CreateOrder inserts a new order.
	CreateOrder(ctx context.Context, o *Order) error

	// UpdateOrderStatus transitions an order and optionally writes result
	// fields. Returns ErrOrderFinal when the row is already terminal and
	// ErrOrderNotFound when no such order exists.
	UpdateOrderStatus(ctx context.Context, id string, status Status, fields *ResultFields) error

	// GetOrderByID loads a single order. Returns ErrOrderNotFound when absent.
	GetOrderByID(ctx context.Context, id string) (*Order, error)

	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context, limit, offset int) ([]*Order, error)

	// Close releases underlying resources.
	Close() error
}

// OrderCache holds recently active orders with a TTL. Best-effort:
// callers must treat every error as a cache miss, never as a failure.
type OrderCache interface {
	// Set stores the order snapshot under its ID.
	Set(ctx context.Context, o *Order) error

	// Get loads an order snapshot. Returns ErrOrderNotFound when absent.
	Get(ctx context.Context, id string) (*Order, error)
}

// Job is one unit of work delivered from the queue to a worker slot.
type Job struct {
	ID      string // queue-assigned delivery ID, used for the ack
	OrderID string
}

// Queue is the durable, asynchronous work queue decoupling intake from
// execution. Delivery is at-least-once; the pipeline guards against
// redelivery itself.
type Queue interface {
	// Enqueue appends a durable work item. Returns once durably queued.
	Enqueue(ctx context.Context, orderID string) error

	// Consume blocks, delivering jobs to out until ctx is cancelled.
	// Pending deliveries from a previous crash are replayed first.
	Consume(ctx context.Context, out chan<- Job) error

	// Ack marks a delivered job as processed. Called after the pipeline
	// finishes regardless of the business outcome.
	Ack(ctx context.Context, jobID string) error

	// Close stops accepting new work. In-flight jobs are unaffected.
	Close() error
}

// Sink is the live channel progress notifications for one order are
// pushed to. Send must not block; Close requests a graceful teardown.
// Both must tolerate being called after the peer disconnected.
type Sink interface {
	Send(payload []byte) error
	Close() error
}

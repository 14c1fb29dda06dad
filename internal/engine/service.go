// Package engine drives orders through their execution state machine.
// The Service is the single lifecycle object owning the queue consumer
// and the worker pool; the transport layer holds a reference to it and
// never reaches infrastructure directly.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"swaprouter/internal/logger"
	"swaprouter/internal/metrics"
	"swaprouter/internal/model"
	"swaprouter/internal/registry"
)

// Venues produces quotes and simulated fills. Satisfied by
// venue.Simulator; a real venue adapter would satisfy it too.
type Venues interface {
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (model.Quote, error)
	Execute(ctx context.Context, q model.Quote, tokenIn, tokenOut string, amountIn float64) (model.ExecutionResult, error)
}

// Config configures the execution service.
type Config struct {
	Workers     int           // concurrent worker slots
	SettleDelay time.Duration // wait between venue selection and building
}

// Deps are the collaborators the service drives.
type Deps struct {
	Store    model.OrderStore
	Cache    model.OrderCache // optional
	Queue    model.Queue
	Registry *registry.Registry
	Venues   Venues
	Metrics  *metrics.Metrics // optional
}

// Service accepts orders, runs the worker pool and exposes the
// subscriber bindings to the transport layer.
type Service struct {
	cfg   Config
	store model.OrderStore
	cache model.OrderCache
	queue model.Queue
	reg   *registry.Registry
	ven   Venues
	met   *metrics.Metrics

	jobs chan model.Job

	mu       sync.Mutex
	inflight map[string]struct{}

	stopConsume context.CancelFunc
	wg          sync.WaitGroup
}

// NewService wires a Service. Call Start to begin consuming.
func NewService(cfg Config, d Deps) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Service{
		cfg:      cfg,
		store:    d.Store,
		cache:    d.Cache,
		queue:    d.Queue,
		reg:      d.Registry,
		ven:      d.Venues,
		met:      d.Metrics,
		jobs:     make(chan model.Job, cfg.Workers),
		inflight: make(map[string]struct{}),
	}
}

// Start launches the queue consumer and the worker pool. The workers
// run pipelines on a background context so in-flight orders finish
// during shutdown.
func (s *Service) Start() {
	consumeCtx, cancel := context.WithCancel(context.Background())
	s.stopConsume = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.jobs)
		if err := s.queue.Consume(consumeCtx, s.jobs); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("queue consumer stopped", "err", err)
		}
	}()

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker()
		}()
	}

	slog.Info("execution service started", "workers", s.cfg.Workers)
}

// AddOrder durably records a pending order, writes it through the
// active-order cache, announces it to any bound subscriber and enqueues
// it. Fire-and-forget: execution happens later on a worker slot.
func (s *Service) AddOrder(ctx context.Context, o *model.Order) error {
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return err
	}

	s.cacheSet(ctx, o)

	s.reg.Notify(model.NotifyPending(o.ID))

	if err := s.queue.Enqueue(ctx, o.ID); err != nil {
		return err
	}
	if s.met != nil {
		s.met.OrdersEnqueued.Inc()
	}
	slog.Info("order enqueued", append(logger.Attrs(logger.WithOrderID(ctx, o.ID)),
		"token_in", o.TokenIn, "token_out", o.TokenOut, "amount_in", o.AmountIn)...)
	return nil
}

// RegisterWebSocket binds sink as the order's sole subscriber,
// replacing any prior binding.
func (s *Service) RegisterWebSocket(orderID string, sink model.Sink) {
	s.reg.Bind(orderID, sink)
	s.trackClients()
}

// UnregisterWebSocket removes the order's subscriber binding, provided
// sink is still the bound one. Called by the transport when a peer
// disconnects; a replacement bound in the meantime stays untouched and
// the pipeline keeps running either way.
func (s *Service) UnregisterWebSocket(orderID string, sink model.Sink) {
	s.reg.Unbind(orderID, sink)
	s.trackClients()
}

// GetOrder reads through the active-order cache, falling back to the
// store. Cache failures are treated as misses.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	if s.cache != nil {
		if o, err := s.cache.Get(ctx, id); err == nil {
			if s.met != nil {
				s.met.CacheHits.Inc()
			}
			return o, nil
		}
		if s.met != nil {
			s.met.CacheMisses.Inc()
		}
	}
	return s.store.GetOrderByID(ctx, id)
}

// ListOrders returns persisted orders, newest first.
func (s *Service) ListOrders(ctx context.Context, limit, offset int) ([]*model.Order, error) {
	return s.store.ListOrders(ctx, limit, offset)
}

// Close stops intake, lets in-flight pipelines reach a terminal state
// and returns once the pool has drained.
func (s *Service) Close() error {
	if err := s.queue.Close(); err != nil {
		slog.Warn("queue close failed", "err", err)
	}
	if s.stopConsume != nil {
		s.stopConsume()
	}
	s.wg.Wait()
	slog.Info("execution service drained")
	return nil
}

// cacheSet refreshes the active-order cache, best-effort.
func (s *Service) cacheSet(ctx context.Context, o *model.Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, o); err != nil {
		slog.Warn("order cache write failed", append(logger.Attrs(logger.WithOrderID(ctx, o.ID)), "err", err)...)
	}
}

func (s *Service) trackClients() {
	if s.met != nil {
		s.met.WSClients.Set(float64(s.reg.Len()))
	}
}

// begin claims the per-order execution slot. Returns false when another
// slot is already executing this order.
func (s *Service) begin(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[orderID]; busy {
		return false
	}
	s.inflight[orderID] = struct{}{}
	return true
}

func (s *Service) end(orderID string) {
	s.mu.Lock()
	delete(s.inflight, orderID)
	s.mu.Unlock()
}

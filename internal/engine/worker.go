package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"swaprouter/internal/logger"
	"swaprouter/internal/model"
)

// worker consumes jobs until the channel drains after shutdown.
func (s *Service) worker() {
	for job := range s.jobs {
		s.handle(job)
	}
}

// handle runs one queue delivery. A business failure is reported to
// the subscriber, never back to the queue, so a finished pipeline
// always acks; there is no redelivery-driven retry.
func (s *Service) handle(job model.Job) {
	ctx := logger.WithOrderID(context.Background(), job.OrderID)

	if !s.begin(job.OrderID) {
		// Another slot is executing this order right now and owns the
		// ack. Acking the duplicate here would drop its entry from the
		// pending list while the first delivery can still crash
		// mid-pipeline, so leave it unacked; a later delivery or the
		// next restart's recovery hits the terminal-status skip.
		slog.Warn("duplicate delivery for in-flight order", logger.Attrs(ctx)...)
		if s.met != nil {
			s.met.OrdersSkipped.Inc()
		}
		return
	}
	defer s.end(job.OrderID)

	defer func() {
		ackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.queue.Ack(ackCtx, job.ID); err != nil {
			slog.Warn("job ack failed", append(logger.Attrs(ctx), "job_id", job.ID, "err", err)...)
		}
	}()

	s.run(ctx, job.OrderID)
}

// run executes the order pipeline with failure containment: whatever
// goes wrong inside, including a panic, becomes a single failed
// notification and never crashes the worker or blocks other jobs.
func (s *Service) run(ctx context.Context, orderID string) {
	if s.met != nil {
		s.met.InFlight.Inc()
		start := time.Now()
		defer func() {
			s.met.InFlight.Dec()
			s.met.PipelineDur.Observe(time.Since(start).Seconds())
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, orderID, &model.PipelineError{OrderID: orderID, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, model.ErrOrderNotFound) {
		slog.Error("queued order missing from store", logger.Attrs(ctx)...)
		return
	}
	if err != nil {
		s.fail(ctx, orderID, err)
		return
	}
	ctx = logger.WithPair(ctx, order.TokenIn, order.TokenOut)

	if order.Status != model.StatusPending {
		// Redelivery of an order another consumer already picked up or
		// finished. Executing again would double-fill it; skip.
		slog.Info("skipping non-pending delivery", append(logger.Attrs(ctx), "status", string(order.Status))...)
		if s.met != nil {
			s.met.OrdersSkipped.Inc()
		}
		return
	}

	if err := s.execute(ctx, order); err != nil {
		s.fail(ctx, orderID, err)
		return
	}

	if s.met != nil {
		s.met.OrdersConfirmed.Inc()
	}
}

// execute drives one order through routing → building → confirmed.
// Every error return is handled by fail.
func (s *Service) execute(ctx context.Context, o *model.Order) error {
	if err := s.store.UpdateOrderStatus(ctx, o.ID, model.StatusRouting, nil); err != nil {
		return err
	}
	s.reg.Notify(model.NotifyRouting(o.ID))

	quoteStart := time.Now()
	q, err := s.ven.Quote(ctx, o.TokenIn, o.TokenOut, o.AmountIn)
	if err != nil {
		return &model.ExternalServiceError{Service: "quote", Err: err}
	}
	if s.met != nil {
		s.met.QuoteDur.Observe(time.Since(quoteStart).Seconds())
	}
	slog.Info("venue selected", append(logger.Attrs(ctx),
		"dex", q.Dex, "price", q.Price, "estimated_output", q.EstimatedOutput)...)
	s.reg.Notify(model.NotifyRouted(o.ID, q))

	// Settle delay models propagation before the transaction is built.
	if err := sleep(ctx, s.cfg.SettleDelay); err != nil {
		return err
	}

	if err := s.store.UpdateOrderStatus(ctx, o.ID, model.StatusBuilding, nil); err != nil {
		return err
	}
	s.reg.Notify(model.NotifyBuilding(o.ID))

	execStart := time.Now()
	res, err := s.ven.Execute(ctx, q, o.TokenIn, o.TokenOut, o.AmountIn)
	if err != nil {
		return &model.ExternalServiceError{Service: "execute", Err: err}
	}
	if s.met != nil {
		s.met.ExecuteDur.Observe(time.Since(execStart).Seconds())
	}

	fields := &model.ResultFields{
		SelectedDex:   res.Dex,
		AmountOut:     res.AmountOut,
		ExecutedPrice: res.ExecutedPrice,
		TxHash:        res.TxHash,
	}
	if err := s.store.UpdateOrderStatus(ctx, o.ID, model.StatusConfirmed, fields); err != nil {
		return err
	}

	s.reg.Notify(model.NotifyConfirmed(o.ID, res))
	s.reg.Release(o.ID)
	s.trackClients()

	o.Status = model.StatusConfirmed
	o.SelectedDex = res.Dex
	o.AmountOut = res.AmountOut
	o.ExecutedPrice = res.ExecutedPrice
	o.TxHash = res.TxHash
	o.UpdatedAt = time.Now().UTC()
	s.cacheSet(ctx, o)

	slog.Info("order confirmed", append(logger.Attrs(ctx),
		"dex", res.Dex, "amount_out", res.AmountOut, "tx", res.TxHash)...)
	return nil
}

// fail converts any pipeline error into a failed notification and a
// best-effort terminal write. The terminal-state guard in the store
// keeps an already-finished row intact.
func (s *Service) fail(ctx context.Context, orderID string, err error) {
	slog.Error("order failed", append(logger.Attrs(ctx), "err", err)...)

	s.reg.Notify(model.NotifyFailed(orderID, err.Error()))

	uerr := s.store.UpdateOrderStatus(ctx, orderID, model.StatusFailed, &model.ResultFields{ErrorText: err.Error()})
	if uerr != nil && !errors.Is(uerr, model.ErrOrderFinal) && !errors.Is(uerr, model.ErrOrderNotFound) {
		slog.Warn("failed-status write failed", append(logger.Attrs(ctx), "err", uerr)...)
	}

	s.reg.Release(orderID)
	s.trackClients()

	if s.met != nil {
		s.met.OrdersFailed.Inc()
	}
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package registry maps order IDs to their single live notification
// sink. It is the only state shared between worker slots and the
// transport layer, and all access goes through bind/unbind/notify.
package registry

import (
	"encoding/json"
	"log/slog"
	"sync"

	"swaprouter/internal/model"
)

// Registry is a concurrency-safe order-ID → sink mapping. At most one
// sink is bound per order at any time.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]model.Sink

	// OnDrop, if set, is called whenever a notification could not be
	// delivered (no binding, or the sink rejected the send).
	OnDrop func(orderID string)
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{sinks: make(map[string]model.Sink)}
}

// Bind registers sink as the sole notification target for orderID.
// Last writer wins: a prior binding for the same ID is displaced and
// its sink closed so the old connection tears down right away.
func (r *Registry) Bind(orderID string, sink model.Sink) {
	r.mu.Lock()
	prev := r.sinks[orderID]
	r.sinks[orderID] = sink
	r.mu.Unlock()

	if prev != nil && prev != sink {
		if err := prev.Close(); err != nil {
			slog.Debug("displaced sink close failed", "order_id", orderID, "err", err)
		}
	}
}

// Unbind removes the binding for orderID, but only while sink is still
// the bound one. The teardown of a displaced connection therefore
// cannot remove its replacement. No-op when absent or already replaced.
func (r *Registry) Unbind(orderID string, sink model.Sink) {
	r.mu.Lock()
	if cur, ok := r.sinks[orderID]; ok && cur == sink {
		delete(r.sinks, orderID)
	}
	r.mu.Unlock()
}

// Notify sends n to the sink bound to its order, best-effort. With no
// binding the message is silently dropped; a send failure is swallowed
// and logged. Notify never blocks a worker and never returns an error
// to the pipeline.
func (r *Registry) Notify(n model.Notification) {
	r.mu.RLock()
	sink, ok := r.sinks[n.OrderID]
	r.mu.RUnlock()
	if !ok {
		r.dropped(n.OrderID)
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		slog.Error("notification marshal failed", "order_id", n.OrderID, "err", err)
		r.dropped(n.OrderID)
		return
	}

	if err := sink.Send(payload); err != nil {
		slog.Warn("notification send failed", "order_id", n.OrderID, "status", string(n.Status), "err", err)
		r.dropped(n.OrderID)
	}
}

// Release tears down the binding after the pipeline reached a terminal
// state: the sink is asked to close and the mapping removed.
func (r *Registry) Release(orderID string) {
	r.mu.Lock()
	sink, ok := r.sinks[orderID]
	delete(r.sinks, orderID)
	r.mu.Unlock()

	if ok {
		if err := sink.Close(); err != nil {
			slog.Debug("sink close failed", "order_id", orderID, "err", err)
		}
	}
}

// Len returns the number of live bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

func (r *Registry) dropped(orderID string) {
	if r.OnDrop != nil {
		r.OnDrop(orderID)
	}
}

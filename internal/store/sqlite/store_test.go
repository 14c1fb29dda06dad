package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"swaprouter/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "orders.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := model.NewOrder("SOL", "USDC", 2.5)
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	got, err := s.GetOrderByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrderByID: %v", err)
	}
	if got.ID != o.ID || got.TokenIn != "SOL" || got.TokenOut != "USDC" || got.AmountIn != 2.5 {
		t.Errorf("got %+v, want the created order back", got)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.Kind != model.KindMarket {
		t.Errorf("Kind = %s, want market", got.Kind)
	}
	if !got.CreatedAt.Equal(o.CreatedAt.Truncate(time.Millisecond)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, o.CreatedAt.Truncate(time.Millisecond))
	}
}

func TestGetOrderByID_Missing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetOrderByID(context.Background(), "nope")
	if !errors.Is(err, model.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestUpdateOrderStatus_Progression(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := model.NewOrder("SOL", "USDC", 1)
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	for _, status := range []model.Status{model.StatusRouting, model.StatusBuilding} {
		if err := s.UpdateOrderStatus(ctx, o.ID, status, nil); err != nil {
			t.Fatalf("UpdateOrderStatus(%s): %v", status, err)
		}
		got, _ := s.GetOrderByID(ctx, o.ID)
		if got.Status != status {
			t.Errorf("Status = %s, want %s", got.Status, status)
		}
	}

	fields := &model.ResultFields{
		SelectedDex:   "raydium",
		AmountOut:     149.55,
		ExecutedPrice: 150.0,
		TxHash:        "abc123",
	}
	if err := s.UpdateOrderStatus(ctx, o.ID, model.StatusConfirmed, fields); err != nil {
		t.Fatalf("UpdateOrderStatus(confirmed): %v", err)
	}

	got, _ := s.GetOrderByID(ctx, o.ID)
	if got.Status != model.StatusConfirmed {
		t.Errorf("Status = %s, want confirmed", got.Status)
	}
	if got.SelectedDex != "raydium" || got.AmountOut != 149.55 || got.ExecutedPrice != 150.0 || got.TxHash != "abc123" {
		t.Errorf("result fields not persisted: %+v", got)
	}
}

func TestUpdateOrderStatus_TerminalIsImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := model.NewOrder("SOL", "USDC", 1)
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := s.UpdateOrderStatus(ctx, o.ID, model.StatusFailed, &model.ResultFields{ErrorText: "boom"}); err != nil {
		t.Fatalf("UpdateOrderStatus(failed): %v", err)
	}

	err := s.UpdateOrderStatus(ctx, o.ID, model.StatusConfirmed, &model.ResultFields{TxHash: "late"})
	if !errors.Is(err, model.ErrOrderFinal) {
		t.Fatalf("err = %v, want ErrOrderFinal", err)
	}

	got, _ := s.GetOrderByID(ctx, o.ID)
	if got.Status != model.StatusFailed || got.ErrorText != "boom" || got.TxHash != "" {
		t.Errorf("terminal row was mutated: %+v", got)
	}
}

func TestUpdateOrderStatus_Missing(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateOrderStatus(context.Background(), "nope", model.StatusRouting, nil)
	if !errors.Is(err, model.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestListOrders_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		o := model.NewOrder("SOL", "USDC", float64(i+1))
		o.CreatedAt = base.Add(time.Duration(i) * time.Second)
		o.UpdatedAt = o.CreatedAt
		if err := s.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		ids = append(ids, o.ID)
	}

	got, err := s.ListOrders(ctx, 3, 0)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != ids[4] || got[1].ID != ids[3] || got[2].ID != ids[2] {
		t.Errorf("not newest first: got %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}

	page2, err := s.ListOrders(ctx, 3, 3)
	if err != nil {
		t.Fatalf("ListOrders offset: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("page2 len = %d, want 2", len(page2))
	}
	if page2[0].ID != ids[1] || page2[1].ID != ids[0] {
		t.Errorf("offset page wrong: got %s, %s", page2[0].ID, page2[1].ID)
	}
}

func TestListOrders_LimitClamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := model.NewOrder("SOL", "USDC", 1)
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	for _, limit := range []int{0, -5, 100000} {
		got, err := s.ListOrders(ctx, limit, 0)
		if err != nil {
			t.Fatalf("ListOrders(%d): %v", limit, err)
		}
		if len(got) != 1 {
			t.Errorf("ListOrders(%d) len = %d, want 1", limit, len(got))
		}
	}
}

package model

import (
	"encoding/json"
	"testing"
	"time"
)

func unmarshalMap(t *testing.T, n Notification) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestNotifyPending_WireFormat(t *testing.T) {
	before := time.Now().UnixMilli()
	m := unmarshalMap(t, NotifyPending("abc"))
	after := time.Now().UnixMilli()

	if m["orderId"] != "abc" {
		t.Errorf("orderId = %v, want abc", m["orderId"])
	}
	if m["status"] != "pending" {
		t.Errorf("status = %v, want pending", m["status"])
	}
	if _, ok := m["data"]; ok {
		t.Error("pending must not carry a data object")
	}
	ts := int64(m["timestamp"].(float64))
	if ts < before || ts > after {
		t.Errorf("timestamp %d outside [%d, %d]", ts, before, after)
	}
}

func TestNotifyRouted_WireFormat(t *testing.T) {
	q := Quote{Dex: "raydium", Price: 150.2, FeeRate: 0.003, EstimatedOutput: 1497.0}
	m := unmarshalMap(t, NotifyRouted("abc", q))

	if m["status"] != "routing" {
		t.Errorf("status = %v, want routing", m["status"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("routed notification must carry a data object")
	}
	if data["selectedDex"] != "raydium" {
		t.Errorf("selectedDex = %v, want raydium", data["selectedDex"])
	}
	if data["estimatedOutput"] != 1497.0 {
		t.Errorf("estimatedOutput = %v, want 1497", data["estimatedOutput"])
	}
	if _, ok := data["txHash"]; ok {
		t.Error("routed data must not carry txHash")
	}
}

func TestNotifyConfirmed_WireFormat(t *testing.T) {
	res := ExecutionResult{Dex: "meteora", ExecutedPrice: 149.9, AmountOut: 1494.5, TxHash: "deadbeef"}
	m := unmarshalMap(t, NotifyConfirmed("abc", res))

	if m["status"] != "confirmed" {
		t.Errorf("status = %v, want confirmed", m["status"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("confirmed notification must carry a data object")
	}
	for k, want := range map[string]interface{}{
		"selectedDex":   "meteora",
		"txHash":        "deadbeef",
		"executedPrice": 149.9,
		"amountOut":     1494.5,
	} {
		if data[k] != want {
			t.Errorf("data[%s] = %v, want %v", k, data[k], want)
		}
	}
}

func TestNotifyFailed_WireFormat(t *testing.T) {
	m := unmarshalMap(t, NotifyFailed("abc", "quote: venue timeout"))

	if m["status"] != "failed" {
		t.Errorf("status = %v, want failed", m["status"])
	}
	if m["message"] != "quote: venue timeout" {
		t.Errorf("message = %v, want the failure reason", m["message"])
	}
	if _, ok := m["data"]; ok {
		t.Error("failed must not carry a data object")
	}
}

func TestStatus_Terminal(t *testing.T) {
	cases := []struct {
		s    Status
		want bool
	}{
		{StatusPending, false},
		{StatusRouting, false},
		{StatusBuilding, false},
		{StatusConfirmed, true},
		{StatusFailed, true},
	}
	for _, c := range cases {
		if got := c.s.Terminal(); got != c.want {
			t.Errorf("%s.Terminal() = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestNewOrder_Defaults(t *testing.T) {
	o := NewOrder("SOL", "USDC", 10)

	if o.ID == "" {
		t.Error("ID must be set")
	}
	if o.Status != StatusPending {
		t.Errorf("Status = %s, want pending", o.Status)
	}
	if o.Kind != KindMarket {
		t.Errorf("Kind = %s, want market", o.Kind)
	}
	if o.CreatedAt.IsZero() || !o.CreatedAt.Equal(o.UpdatedAt) {
		t.Error("CreatedAt and UpdatedAt must be set and equal at intake")
	}

	other := NewOrder("SOL", "USDC", 10)
	if other.ID == o.ID {
		t.Error("IDs must be unique")
	}
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the execution state of an order. Orders progress
// pending → routing → building → confirmed; failed is reachable from
// any non-terminal state. confirmed and failed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRouting   Status = "routing"
	StatusBuilding  Status = "building"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions may occur.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// OrderKind is the fill type requested. Only immediate market fills
// are supported.
type OrderKind string

const KindMarket OrderKind = "market"

// Order is a single requested token-for-token market fill and its
// execution state. Created by intake with status pending, mutated only
// by the execution worker, never deleted.
type Order struct {
	ID        string    `json:"order_id"`
	TokenIn   string    `json:"token_in"`
	TokenOut  string    `json:"token_out"`
	AmountIn  float64   `json:"amount_in"`
	Kind      OrderKind `json:"kind"`
	Status    Status    `json:"status"`

	// Result fields, set on the terminal write.
	SelectedDex   string  `json:"selected_dex,omitempty"`
	AmountOut     float64 `json:"amount_out,omitempty"`
	ExecutedPrice float64 `json:"executed_price,omitempty"`
	TxHash        string  `json:"tx_hash,omitempty"`
	ErrorText     string  `json:"error_text,omitempty"`

	// RetryCount is carried for forward compatibility; no retry policy
	// consumes it yet.
	RetryCount int `json:"retry_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrder builds a pending market order with a fresh globally unique ID.
func NewOrder(tokenIn, tokenOut string, amountIn float64) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:        uuid.NewString(),
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn,
		Kind:      KindMarket,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Quote is a venue's offered price for a given input amount, valid only
// for the instant it is produced. Quotes are never persisted.
type Quote struct {
	Dex             string  `json:"dex"`
	Price           float64 `json:"price"`
	FeeRate         float64 `json:"fee_rate"`
	EstimatedOutput float64 `json:"estimated_output"`
}

// ExecutionResult is the outcome of executing a quote.
type ExecutionResult struct {
	Dex           string  `json:"dex"`
	ExecutedPrice float64 `json:"executed_price"`
	AmountOut     float64 `json:"amount_out"`
	TxHash        string  `json:"tx_hash"`
}

// ResultFields carries the optional columns written alongside a status
// update. Nil fields on a store update mean "status only".
type ResultFields struct {
	SelectedDex   string
	AmountOut     float64
	ExecutedPrice float64
	TxHash        string
	ErrorText     string
}

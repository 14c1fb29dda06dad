package gateway

import "swaprouter/internal/model"

// CreateOrderRequest is the POST /api/orders body.
type CreateOrderRequest struct {
	TokenIn  string  `json:"tokenIn"`
	TokenOut string  `json:"tokenOut"`
	AmountIn float64 `json:"amountIn"`
}

// OrderResponse is the REST view of an order.
type OrderResponse struct {
	OrderID       string  `json:"orderId"`
	TokenIn       string  `json:"tokenIn"`
	TokenOut      string  `json:"tokenOut"`
	AmountIn      float64 `json:"amountIn"`
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
	SelectedDex   string  `json:"selectedDex,omitempty"`
	AmountOut     float64 `json:"amountOut,omitempty"`
	ExecutedPrice float64 `json:"executedPrice,omitempty"`
	TxHash        string  `json:"txHash,omitempty"`
	Error         string  `json:"error,omitempty"`
	CreatedAt     int64   `json:"createdAt"`
	UpdatedAt     int64   `json:"updatedAt"`
}

// ErrorResponse is the REST error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toOrderResponse(o *model.Order) OrderResponse {
	return OrderResponse{
		OrderID:       o.ID,
		TokenIn:       o.TokenIn,
		TokenOut:      o.TokenOut,
		AmountIn:      o.AmountIn,
		Kind:          string(o.Kind),
		Status:        string(o.Status),
		SelectedDex:   o.SelectedDex,
		AmountOut:     o.AmountOut,
		ExecutedPrice: o.ExecutedPrice,
		TxHash:        o.TxHash,
		Error:         o.ErrorText,
		CreatedAt:     o.CreatedAt.UnixMilli(),
		UpdatedAt:     o.UpdatedAt.UnixMilli(),
	}
}

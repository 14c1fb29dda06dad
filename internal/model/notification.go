package model

import "time"

// NotificationData is the status-dependent payload of a notification.
// routing (post-quote) sets SelectedDex and EstimatedOutput; confirmed
// sets SelectedDex, TxHash, ExecutedPrice and AmountOut. Other statuses
// carry no data object at all.
type NotificationData struct {
	SelectedDex     string  `json:"selectedDex,omitempty"`
	EstimatedOutput float64 `json:"estimatedOutput,omitempty"`
	TxHash          string  `json:"txHash,omitempty"`
	ExecutedPrice   float64 `json:"executedPrice,omitempty"`
	AmountOut       float64 `json:"amountOut,omitempty"`
}

// Notification is one progress message pushed to an order's subscriber.
// It is sent as a single UTF-8 JSON object per message. The constructors
// below are the only places a Notification is built, so the shape of
// data per status is checked at compile time rather than being an open
// JSON bag.
type Notification struct {
	OrderID   string            `json:"orderId"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Data      *NotificationData `json:"data,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func newNotification(orderID string, status Status, message string, data *NotificationData) Notification {
	return Notification{
		OrderID:   orderID,
		Status:    status,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NotifyPending announces intake of a new order.
func NotifyPending(orderID string) Notification {
	return newNotification(orderID, StatusPending, "order accepted", nil)
}

// NotifyRouting announces the start of venue comparison.
func NotifyRouting(orderID string) Notification {
	return newNotification(orderID, StatusRouting, "comparing venues", nil)
}

// NotifyRouted announces the selected venue and its estimated output.
func NotifyRouted(orderID string, q Quote) Notification {
	return newNotification(orderID, StatusRouting, "venue selected", &NotificationData{
		SelectedDex:     q.Dex,
		EstimatedOutput: q.EstimatedOutput,
	})
}

// NotifyBuilding announces transaction construction.
func NotifyBuilding(orderID string) Notification {
	return newNotification(orderID, StatusBuilding, "building transaction", nil)
}

// NotifyConfirmed announces the terminal success result.
func NotifyConfirmed(orderID string, res ExecutionResult) Notification {
	return newNotification(orderID, StatusConfirmed, "order confirmed", &NotificationData{
		SelectedDex:   res.Dex,
		TxHash:        res.TxHash,
		ExecutedPrice: res.ExecutedPrice,
		AmountOut:     res.AmountOut,
	})
}

// NotifyFailed announces the terminal failure with a human-readable reason.
func NotifyFailed(orderID, reason string) Notification {
	return newNotification(orderID, StatusFailed, reason, nil)
}

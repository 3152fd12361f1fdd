// Package queue carries order events over RabbitMQ.
package queue

import "time"

// OrdersQueue is the durable queue every order event is published to.
const OrdersQueue = "orders.events"

// Event types
const (
	EventOrderPlaced = "order.placed"
	EventOrderPaid   = "order.paid"
)

// OrderEvent has enough detail for the owner notification without a
// database read.
type OrderEvent struct {
	Type             string    `json:"type"`
	OrderID          string    `json:"order_id"`
	CustomerID       string    `json:"customer_id"`
	Phone            string    `json:"phone"`
	MenuID           string    `json:"menu_id"`
	Items            []string  `json:"items"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	PaymentURL       string    `json:"payment_url,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

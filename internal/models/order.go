package models

import (
	"time"

	"gorm.io/gorm"
)

// Order status values
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// Order is created when a customer confirms their selection by text.
// It stays pending until the payment gateway reports the checkout as paid.
type Order struct {
	gorm.Model

	OrderID    string      `json:"order_id" gorm:"uniqueIndex;size:64"`
	CustomerID string      `json:"customer_id" gorm:"index;size:64"`
	Phone      string      `json:"phone" gorm:"size:32"`
	MenuID     string      `json:"menu_id" gorm:"index;size:64"`
	Items      []OrderItem `json:"items" gorm:"foreignKey:OrderID;references:OrderID"`

	TotalAmountCents int64  `json:"total_amount_cents" gorm:"not null"`
	Status           string `json:"status" gorm:"index;size:16"`

	// Payment
	PaymentLinkURL   string     `json:"payment_link_url"`
	PaymentReference string     `json:"payment_reference" gorm:"size:128"` // checkout session id
	PaidAt           *time.Time `json:"paid_at"`
}

// OrderItem is a line of an order, priced at the time of ordering.
type OrderItem struct {
	gorm.Model

	OrderID        string `json:"order_id" gorm:"index;size:64"`
	MenuItemID     string `json:"menu_item_id" gorm:"size:64"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// BeforeCreate assigns the order ID and default status
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	o.AssignIDs()
	return nil
}

// AssignIDs fills in the order ID, status and item back-references.
func (o *Order) AssignIDs() {
	if o.OrderID == "" {
		o.OrderID = NewID("ORD")
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.OrderID
	}
}

// ComputeTotal sums the line items.
func (o *Order) ComputeTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}

// IsPaid checks if the order has been paid
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

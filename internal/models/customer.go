package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Customer categories, recomputed every time an order is placed.
const (
	CustomerCategoryNew     = "new"
	CustomerCategoryRegular = "regular"
	CustomerCategoryVIP     = "vip"
	CustomerCategoryDormant = "dormant"
)

// Reclassification thresholds.
const (
	vipOrderThreshold     = 10
	vipSpendThresholdCent = 50000
	regularOrderThreshold = 3
)

// Customer is someone who orders by text. Phone is the conversation key.
type Customer struct {
	gorm.Model

	CustomerID      string     `json:"customer_id" gorm:"uniqueIndex;size:64"`
	Phone           string     `json:"phone" gorm:"uniqueIndex;size:32"` // E.164
	Name            string     `json:"name"`
	Category        string     `json:"category" gorm:"size:16;default:new"`
	TotalOrders     int        `json:"total_orders" gorm:"default:0"`
	TotalSpentCents int64      `json:"total_spent_cents" gorm:"default:0"`
	LastOrderAt     *time.Time `json:"last_order_at"`
	OptedOut        bool       `json:"opted_out" gorm:"default:false"`
}

// CustomerStatsDelta is applied to a customer once an order is persisted.
type CustomerStatsDelta struct {
	Orders      int
	SpentCents  int64
	LastOrderAt time.Time
}

// BeforeCreate assigns the public ID and normalizes the phone number
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	c.AssignIDs()
	return nil
}

// AssignIDs fills in identifiers that are not set yet.
func (c *Customer) AssignIDs() {
	if c.CustomerID == "" {
		c.CustomerID = NewID("CUS")
	}
	c.Phone = NormalizePhone(c.Phone)
	if c.Category == "" {
		c.Category = CustomerCategoryNew
	}
}

// ApplyStats adds an order to the running totals and reclassifies the customer.
func (c *Customer) ApplyStats(delta CustomerStatsDelta) {
	c.TotalOrders += delta.Orders
	c.TotalSpentCents += delta.SpentCents
	if !delta.LastOrderAt.IsZero() {
		at := delta.LastOrderAt
		c.LastOrderAt = &at
	}
	c.Category = ClassifyCustomer(c.TotalOrders, c.TotalSpentCents)
}

// ClassifyCustomer maps order history to a category.
func ClassifyCustomer(totalOrders int, totalSpentCents int64) string {
	switch {
	case totalOrders >= vipOrderThreshold || totalSpentCents >= vipSpendThresholdCent:
		return CustomerCategoryVIP
	case totalOrders >= regularOrderThreshold:
		return CustomerCategoryRegular
	default:
		return CustomerCategoryNew
	}
}

// IsDormant reports whether the customer has not ordered since cutoff.
func (c *Customer) IsDormant(cutoff time.Time) bool {
	if c.LastOrderAt == nil {
		return false
	}
	return c.LastOrderAt.Before(cutoff)
}

// NormalizePhone strips channel prefixes and punctuation and returns an
// E.164-looking number. Ten digit numbers are assumed to be North American.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "whatsapp:")
	phone = strings.TrimPrefix(phone, "sms:")

	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || strings.HasPrefix(digits, "+") {
		return digits
	}
	if len(digits) == 10 {
		return "+1" + digits
	}
	return "+" + digits
}

package models

import "time"

// SessionState is where a customer is in the text ordering conversation.
type SessionState string

const (
	// StateNoSession is never stored; it stands for "no session exists".
	StateNoSession         SessionState = "no_session"
	StateAwaitingSelection SessionState = "awaiting_selection"
	StateConfirmingOrder   SessionState = "confirming_order"
)

// SessionMenuItem is one line of the menu exactly as it was shown to the
// customer. Selection numbers are 1-based positions in this list.
type SessionMenuItem struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// SessionItem is a selected line item.
type SessionItem struct {
	MenuItemID     string `json:"menu_item_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// OrderSession stores the ordering conversation for one phone number
type OrderSession struct {
	Phone        string            `json:"phone"`
	CustomerID   string            `json:"customer_id"`
	MenuID       string            `json:"menu_id"`
	MenuName     string            `json:"menu_name"`
	MenuSnapshot []SessionMenuItem `json:"menu_snapshot"`

	Items            []SessionItem `json:"items"`
	TotalAmountCents int64         `json:"total_amount_cents"`
	State            SessionState  `json:"state"`

	// Version is bumped by the session store on every successful save.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SetItems replaces the selection and recomputes the total.
func (s *OrderSession) SetItems(items []SessionItem) {
	s.Items = items
	s.TotalAmountCents = SumItems(items)
}

// SumItems adds up unit price times quantity.
func SumItems(items []SessionItem) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPriceCents * int64(item.Quantity)
	}
	return total
}

// Expired reports whether the session is past its expiry time.
func (s *OrderSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy so stored sessions are never shared.
func (s *OrderSession) Clone() *OrderSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.MenuSnapshot != nil {
		c.MenuSnapshot = append([]SessionMenuItem(nil), s.MenuSnapshot...)
	}
	if s.Items != nil {
		c.Items = append([]SessionItem(nil), s.Items...)
	}
	return &c
}

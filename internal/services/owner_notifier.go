package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/queue"
)

// OwnerNotifier texts the business owner about order events.
type OwnerNotifier struct {
	sms        SMSSender
	ownerPhone string
}

// NewOwnerNotifier creates a notifier. With no owner phone events are
// only logged.
func NewOwnerNotifier(sms SMSSender, ownerPhone string) *OwnerNotifier {
	return &OwnerNotifier{sms: sms, ownerPhone: ownerPhone}
}

// HandleEvent is a queue.Handler.
func (n *OwnerNotifier) HandleEvent(ctx context.Context, event queue.OrderEvent) error {
	body := FormatOwnerNotice(event)
	if n.ownerPhone == "" {
		log.Info().Str("type", event.Type).Str("order_id", event.OrderID).Msg("Order event (no owner phone set)")
		return nil
	}
	if _, err := n.sms.SendSMS(ctx, n.ownerPhone, body); err != nil {
		return fmt.Errorf("notify owner of %s: %w", event.OrderID, err)
	}
	return nil
}

// FormatOwnerNotice renders an event for the owner.
func FormatOwnerNotice(event queue.OrderEvent) string {
	items := strings.Join(event.Items, ", ")
	switch event.Type {
	case queue.EventOrderPaid:
		return fmt.Sprintf("PAID: order %s (%s) from %s - %s", event.OrderID, FormatCents(event.TotalAmountCents), event.Phone, items)
	case queue.EventOrderPlaced:
		return fmt.Sprintf("New order %s (%s) from %s - %s", event.OrderID, FormatCents(event.TotalAmountCents), event.Phone, items)
	default:
		return fmt.Sprintf("%s: order %s", event.Type, event.OrderID)
	}
}

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

// BroadcastService texts today's menu to subscribed customers and keeps
// customer categories current.
type BroadcastService struct {
	store   storage.Store
	menus   MenuSource
	sms     SMSSender
	timeout time.Duration
	now     func() time.Time
}

// BroadcastReport summarizes one broadcast run.
type BroadcastReport struct {
	MenuID string `json:"menu_id"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
}

// NewBroadcastService creates a broadcast service
func NewBroadcastService(store storage.Store, menus MenuSource, sms SMSSender, timeout time.Duration) *BroadcastService {
	return &BroadcastService{store: store, menus: menus, sms: sms, timeout: timeout, now: time.Now}
}

// SendDailyMenu texts today's menu to every customer that has not opted out.
// A single failed send does not stop the run.
func (b *BroadcastService) SendDailyMenu(ctx context.Context) (*BroadcastReport, error) {
	menu, err := b.menus.ActiveMenuForToday(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := b.store.GetSubscribedCustomers(ctx)
	if err != nil {
		return nil, newError(KindDependency, "list subscribers", err)
	}

	body := FormatMenu(menu) + "\nReply STOP to unsubscribe."
	report := &BroadcastReport{MenuID: menu.MenuID}
	for _, customer := range customers {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		sendCtx, cancel := context.WithTimeout(ctx, b.timeout)
		_, err := b.sms.SendSMS(sendCtx, customer.Phone, body)
		cancel()
		if err != nil {
			report.Failed++
			log.Warn().Err(err).Str("customer_id", customer.CustomerID).Msg("Failed to send daily menu")
			continue
		}
		report.Sent++
	}

	log.Info().Str("menu_id", menu.MenuID).Int("sent", report.Sent).Int("failed", report.Failed).Msg("Daily menu broadcast finished")
	return report, nil
}

// MarkDormantCustomers moves customers who have not ordered within
// inactiveFor to the dormant category.
func (b *BroadcastService) MarkDormantCustomers(ctx context.Context, inactiveFor time.Duration) (int64, error) {
	n, err := b.store.MarkDormantCustomers(ctx, b.now().Add(-inactiveFor))
	if err != nil {
		return 0, newError(KindDependency, "mark dormant customers", err)
	}
	if n > 0 {
		log.Info().Int64("customers", n).Msg("Marked customers dormant")
	}
	return n, nil
}

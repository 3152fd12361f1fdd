package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/queue"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

// Confirmation is the outcome of finalizing a session.
type Confirmation struct {
	Order *models.Order
	// PaymentErr is set when the order was saved but no payment link could
	// be created. The order stays pending.
	PaymentErr error
	Reply      string
}

// OrderFinalizer turns a confirmed session into a pending order with a
// payment link.
type OrderFinalizer struct {
	store     storage.Store
	gateway   PaymentGateway
	publisher queue.Publisher
	sms       SMSSender
	timeout   time.Duration
	now       func() time.Time
}

// NewOrderFinalizer creates a finalizer. timeout bounds each external call.
func NewOrderFinalizer(store storage.Store, gateway PaymentGateway, publisher queue.Publisher, sms SMSSender, timeout time.Duration) *OrderFinalizer {
	return &OrderFinalizer{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		sms:       sms,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (f *OrderFinalizer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// Finalize persists the order, then asks for a payment link. Only a failure
// to persist is returned as an error; everything after that point is
// recorded on the Confirmation or logged so the order is never lost.
func (f *OrderFinalizer) Finalize(ctx context.Context, session *models.OrderSession) (*Confirmation, error) {
	if len(session.Items) == 0 {
		return nil, newError(KindValidation, "finalize order", errors.New("session has no items"))
	}

	order := &models.Order{
		CustomerID:       session.CustomerID,
		Phone:            session.Phone,
		MenuID:           session.MenuID,
		Status:           models.OrderStatusPending,
		TotalAmountCents: models.SumItems(session.Items),
	}
	for _, item := range session.Items {
		order.Items = append(order.Items, models.OrderItem{
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}

	// 1. Persist
	opCtx, cancel := f.withTimeout(ctx)
	order, err := f.store.CreateOrder(opCtx, order)
	cancel()
	if err != nil {
		return nil, newError(KindDependency, "create order", err)
	}
	logger := log.With().Str("order_id", order.OrderID).Str("phone", session.Phone).Logger()
	logger.Info().Int64("total_cents", order.TotalAmountCents).Msg("Order created")

	conf := &Confirmation{Order: order}

	// 2. Payment link
	link, err := f.createPaymentLink(ctx, order)
	if err != nil {
		logger.Error().Err(err).Msg("Payment link failed, order left pending")
		conf.PaymentErr = err
		conf.Reply = formatPaymentPending(order.OrderID, order.TotalAmountCents)
	} else {
		conf.Reply = formatOrderPlaced(order.OrderID, order.TotalAmountCents, link.URL)
	}

	// 3. Customer statistics
	if session.CustomerID != "" {
		opCtx, cancel := f.withTimeout(ctx)
		_, err := f.store.UpdateCustomerStats(opCtx, session.CustomerID, models.CustomerStatsDelta{
			Orders:      1,
			SpentCents:  order.TotalAmountCents,
			LastOrderAt: f.now(),
		})
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("customer_id", session.CustomerID).Msg("Failed to update customer stats")
		}
	}

	// 4. Event
	opCtx, cancel = f.withTimeout(ctx)
	if err := f.publisher.Publish(opCtx, orderEvent(queue.EventOrderPlaced, order)); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish order.placed")
	}
	cancel()

	return conf, nil
}

// createPaymentLink asks the gateway for a link and stores it on the order.
func (f *OrderFinalizer) createPaymentLink(ctx context.Context, order *models.Order) (*PaymentLink, error) {
	opCtx, cancel := f.withTimeout(ctx)
	defer cancel()

	link, err := f.gateway.CreatePaymentLink(opCtx, order)
	if err != nil {
		return nil, err
	}
	if err := f.store.UpdateOrderPayment(opCtx, order.OrderID, link.URL, link.Reference); err != nil {
		// The customer can still pay with the link; the webhook finds the
		// order through the metadata.
		log.Warn().Err(err).Str("order_id", order.OrderID).Msg("Failed to store payment link")
	}
	order.PaymentLinkURL = link.URL
	order.PaymentReference = link.Reference
	return link, nil
}

// RetryPaymentLink creates a fresh link for a pending order and texts it to
// the customer.
func (f *OrderFinalizer) RetryPaymentLink(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := f.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError(KindNotFound, "retry payment link", err)
	}
	if err != nil {
		return nil, newError(KindDependency, "retry payment link", err)
	}
	if order.Status != models.OrderStatusPending {
		return nil, newError(KindState, "retry payment link", fmt.Errorf("order %s is %s", orderID, order.Status))
	}

	link, err := f.createPaymentLink(ctx, order)
	if err != nil {
		return nil, newError(KindDependency, "retry payment link", err)
	}

	opCtx, cancel := f.withTimeout(ctx)
	defer cancel()
	if _, err := f.sms.SendSMS(opCtx, order.Phone, formatPaymentLink(order.OrderID, order.TotalAmountCents, link.URL)); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to text payment link")
	}
	return order, nil
}

// RetryMissingPaymentLinks retries every pending order that was saved without
// a payment link at least olderThan ago. The age check keeps it away from
// orders whose Finalize is still running. It returns how many links were sent.
func (f *OrderFinalizer) RetryMissingPaymentLinks(ctx context.Context, olderThan time.Duration) (int, error) {
	opCtx, cancel := f.withTimeout(ctx)
	orders, err := f.store.GetOrdersByStatus(opCtx, models.OrderStatusPending)
	cancel()
	if err != nil {
		return 0, newError(KindDependency, "list pending orders", err)
	}

	cutoff := f.now().Add(-olderThan)
	sent := 0
	for _, order := range orders {
		if order.PaymentLinkURL != "" || order.CreatedAt.After(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if _, err := f.RetryPaymentLink(ctx, order.OrderID); err != nil {
			log.Warn().Err(err).Str("order_id", order.OrderID).Msg("Payment link retry failed")
			continue
		}
		sent++
	}
	if sent > 0 {
		log.Info().Int("sent", sent).Msg("Missing payment links sent")
	}
	return sent, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/queue"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

// PaymentLink is where the customer pays for an order.
type PaymentLink struct {
	URL       string
	Reference string // gateway-side id, e.g. the checkout session id
}

// PaymentGateway creates payment links for persisted orders.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, order *models.Order) (*PaymentLink, error)
}

// StripeGateway creates Stripe Checkout sessions.
type StripeGateway struct {
	api        *stripeclient.API
	currency   string
	successURL string
	cancelURL  string
}

// NewStripeGateway creates a gateway with its own API client
func NewStripeGateway(secretKey, currency, successURL, cancelURL string) *StripeGateway {
	api := &stripeclient.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:        api,
		currency:   currency,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (g *StripeGateway) CreatePaymentLink(ctx context.Context, order *models.Order) (*PaymentLink, error) {
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("order %s has no items", order.OrderID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(order.OrderID),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
	}
	for _, item := range order.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(item.UnitPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	params.AddMetadata("order_id", order.OrderID)
	params.AddMetadata("customer_id", order.CustomerID)
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session for %s: %w", order.OrderID, err)
	}
	return &PaymentLink{URL: session.URL, Reference: session.ID}, nil
}

// FakeGateway hands out local links. It is used when no Stripe key is set.
type FakeGateway struct {
	BaseURL string
}

func (g FakeGateway) CreatePaymentLink(ctx context.Context, order *models.Order) (*PaymentLink, error) {
	return &PaymentLink{
		URL:       fmt.Sprintf("%s/pay/%s", g.BaseURL, order.OrderID),
		Reference: "fake_" + order.OrderID,
	}, nil
}

// PaymentService handles payment gateway webhooks
type PaymentService struct {
	store     storage.Store
	sms       SMSSender
	publisher queue.Publisher
	now       func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(store storage.Store, sms SMSSender, publisher queue.Publisher) *PaymentService {
	return &PaymentService{
		store:     store,
		sms:       sms,
		publisher: publisher,
		now:       time.Now,
	}
}

// ProcessWebhook handles a verified Stripe event. Unknown events are ignored.
func (p *PaymentService) ProcessWebhook(ctx context.Context, payload []byte) error {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook: %w", err)
	}

	log.Info().Str("event", string(event.Type)).Str("id", event.ID).Msg("Processing payment webhook")

	switch event.Type {
	case "checkout.session.completed":
		session, err := decodeCheckoutSession(event)
		if err != nil {
			return err
		}
		return p.handleCheckoutCompleted(ctx, session)
	case "checkout.session.expired":
		session, err := decodeCheckoutSession(event)
		if err != nil {
			return err
		}
		log.Info().Str("order_id", checkoutOrderID(session)).Msg("Checkout session expired, order stays pending")
		return nil
	default:
		log.Debug().Str("event", string(event.Type)).Msg("Unhandled webhook event")
		return nil
	}
}

func decodeCheckoutSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	if event.Data == nil {
		return nil, errors.New("webhook event has no data")
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	return &session, nil
}

func checkoutOrderID(session *stripe.CheckoutSession) string {
	if id := session.Metadata["order_id"]; id != "" {
		return id
	}
	return session.ClientReferenceID
}

// handleCheckoutCompleted marks the order paid. Stripe retries webhooks, so
// an order that is already paid is acknowledged without side effects.
func (p *PaymentService) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	orderID := checkoutOrderID(session)
	if orderID == "" {
		return fmt.Errorf("checkout session %s has no order id", session.ID)
	}
	if session.PaymentStatus != "" && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		log.Info().Str("order_id", orderID).Str("payment_status", string(session.PaymentStatus)).
			Msg("Checkout completed without payment, waiting")
		return nil
	}

	existing, err := p.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order not found: %w", err)
	}
	if existing.IsPaid() {
		log.Info().Str("order_id", orderID).Msg("Order already paid, duplicate webhook ignored")
		return nil
	}

	order, err := p.store.MarkOrderPaid(ctx, orderID, session.ID, p.now())
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	// Don't fail the webhook on notification problems
	if _, err := p.sms.SendSMS(ctx, order.Phone, formatPaymentReceived(order.OrderID, order.TotalAmountCents)); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to send payment receipt")
	}
	if err := p.publisher.Publish(ctx, orderEvent(queue.EventOrderPaid, order)); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to publish order.paid")
	}

	log.Info().Str("order_id", orderID).Str("reference", session.ID).Msg("Payment processed")
	return nil
}

func orderEvent(eventType string, order *models.Order) queue.OrderEvent {
	names := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		names = append(names, item.Name)
	}
	return queue.OrderEvent{
		Type:             eventType,
		OrderID:          order.OrderID,
		CustomerID:       order.CustomerID,
		Phone:            order.Phone,
		MenuID:           order.MenuID,
		Items:            names,
		TotalAmountCents: order.TotalAmountCents,
		PaymentURL:       order.PaymentLinkURL,
		OccurredAt:       time.Now().UTC(),
	}
}

package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

func checkoutEvent(eventType, orderID, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": %q,
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"client_reference_id": %q,
				"metadata": {"order_id": %q},
				"payment_status": %q
			}
		}
	}`, eventType, orderID, orderID, paymentStatus))
}

func placeOrder(t *testing.T, store storage.Store) *models.Order {
	t.Helper()
	order, err := store.CreateOrder(context.Background(), &models.Order{
		Phone:            "+15551112222",
		TotalAmountCents: 1700,
		Items: []models.OrderItem{
			{Name: "Burger", UnitPriceCents: 1200, Quantity: 1},
			{Name: "Fries", UnitPriceCents: 500, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return order
}

func TestProcessWebhookMarksOrderPaid(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	sms := &fakeSMS{}
	publisher := &recordingPublisher{}
	svc := NewPaymentService(store, sms, publisher)
	order := placeOrder(t, store)

	require.NoError(t, svc.ProcessWebhook(ctx, checkoutEvent("checkout.session.completed", order.OrderID, "paid")))

	paid, err := store.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	assert.Equal(t, "cs_test_1", paid.PaymentReference)
	assert.NotNil(t, paid.PaidAt)

	msgs := sms.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+15551112222", msgs[0].To)
	assert.Contains(t, msgs[0].Body, "$17.00")
	assert.Equal(t, []string{"order.paid"}, publisher.types())

	// Stripe redelivers; the second delivery must not text again.
	require.NoError(t, svc.ProcessWebhook(ctx, checkoutEvent("checkout.session.completed", order.OrderID, "paid")))
	assert.Len(t, sms.messages(), 1)
	assert.Len(t, publisher.types(), 1)
}

func TestProcessWebhookUnpaidCheckoutWaits(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewPaymentService(store, &fakeSMS{}, &recordingPublisher{})
	order := placeOrder(t, store)

	require.NoError(t, svc.ProcessWebhook(ctx, checkoutEvent("checkout.session.completed", order.OrderID, "unpaid")))

	got, err := store.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestProcessWebhookExpiredAndUnknownEvents(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewPaymentService(store, &fakeSMS{}, &recordingPublisher{})
	order := placeOrder(t, store)

	assert.NoError(t, svc.ProcessWebhook(ctx, checkoutEvent("checkout.session.expired", order.OrderID, "unpaid")))
	assert.NoError(t, svc.ProcessWebhook(ctx, []byte(`{"id":"evt_2","type":"customer.created","data":{"object":{}}}`)))

	got, err := store.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestProcessWebhookErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewPaymentService(storage.NewMemoryStore(), &fakeSMS{}, &recordingPublisher{})

	assert.Error(t, svc.ProcessWebhook(ctx, []byte("{")))
	assert.ErrorIs(t, svc.ProcessWebhook(ctx, checkoutEvent("checkout.session.completed", "ORD-NOPE", "paid")), storage.ErrNotFound)
}

func TestFakeGateway(t *testing.T) {
	link, err := FakeGateway{BaseURL: "http://localhost:8080"}.CreatePaymentLink(context.Background(), &models.Order{OrderID: "ORD-1"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/pay/ORD-1", link.URL)
}

func TestStripeGatewayRejectsEmptyOrder(t *testing.T) {
	g := NewStripeGateway("sk_test_123", "usd", "https://eat.test/ok", "https://eat.test/cancel")
	_, err := g.CreatePaymentLink(context.Background(), &models.Order{OrderID: "ORD-1"})
	assert.Error(t, err)
}

func TestBroadcastSendsToSubscribers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seedTodayMenu(t, store, burgerMenuItems()...)
	_, err := store.GetOrCreateCustomer(ctx, "+15550000001")
	require.NoError(t, err)
	_, err = store.GetOrCreateCustomer(ctx, "+15550000002")
	require.NoError(t, err)
	require.NoError(t, store.SetCustomerOptOut(ctx, "+15550000002", true))

	sms := &fakeSMS{}
	svc := NewBroadcastService(store, NewMenuResolver(store, time.UTC, 0), sms, time.Second)

	report, err := svc.SendDailyMenu(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Zero(t, report.Failed)

	msgs := sms.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "+15550000001", msgs[0].To)
	assert.Contains(t, msgs[0].Body, "1. Burger - $12.00")
	assert.Contains(t, msgs[0].Body, "STOP")
}

func TestBroadcastWithoutMenu(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewBroadcastService(store, NewMenuResolver(store, time.UTC, 0), &fakeSMS{}, time.Second)

	_, err := svc.SendDailyMenu(context.Background())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestMarkDormantCustomers(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewBroadcastService(store, NewMenuResolver(store, time.UTC, 0), &fakeSMS{}, time.Second)

	old, err := store.GetOrCreateCustomer(ctx, "+15550000001")
	require.NoError(t, err)
	_, err = store.UpdateCustomerStats(ctx, old.CustomerID, models.CustomerStatsDelta{Orders: 1, SpentCents: 100, LastOrderAt: time.Now().Add(-40 * 24 * time.Hour)})
	require.NoError(t, err)

	recent, err := store.GetOrCreateCustomer(ctx, "+15550000002")
	require.NoError(t, err)
	_, err = store.UpdateCustomerStats(ctx, recent.CustomerID, models.CustomerStatsDelta{Orders: 1, SpentCents: 100, LastOrderAt: time.Now()})
	require.NoError(t, err)

	n, err := svc.MarkDormantCustomers(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetCustomer(ctx, old.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, models.CustomerCategoryDormant, got.Category)
}

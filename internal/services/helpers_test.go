package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/queue"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

type sentSMS struct {
	To   string
	Body string
}

// fakeSMS records messages instead of sending them.
type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentSMS{To: to, Body: body})
	return "SM" + models.NewID("TEST"), nil
}

func (f *fakeSMS) messages() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event queue.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type failingGateway struct{}

func (failingGateway) CreatePaymentLink(ctx context.Context, order *models.Order) (*PaymentLink, error) {
	return nil, errors.New("stripe: connection refused")
}

// brokenSessions fails every call.
type brokenSessions struct{}

func (brokenSessions) Get(ctx context.Context, phone string) (*models.OrderSession, error) {
	return nil, errors.New("redis: connection refused")
}

func (brokenSessions) Save(ctx context.Context, session *models.OrderSession) error {
	return errors.New("redis: connection refused")
}

func (brokenSessions) Delete(ctx context.Context, phone string) error {
	return errors.New("redis: connection refused")
}

func (brokenSessions) Count(ctx context.Context) (int, error) {
	return 0, errors.New("redis: connection refused")
}

// menuFunc adapts a function to MenuSource.
type menuFunc func(ctx context.Context) (*MenuSnapshot, error)

func (f menuFunc) ActiveMenuForToday(ctx context.Context) (*MenuSnapshot, error) { return f(ctx) }

// seedTodayMenu stores an active menu dated today (UTC).
func seedTodayMenu(t *testing.T, store storage.Store, items ...models.MenuItem) *models.Menu {
	t.Helper()
	menu, err := store.CreateMenu(context.Background(), &models.Menu{
		Name:     "Today's menu",
		MenuDate: models.MenuDateFor(time.Now().UTC()),
		Active:   true,
		Items:    items,
	})
	require.NoError(t, err)
	return menu
}

func burgerMenuItems() []models.MenuItem {
	return []models.MenuItem{
		{Name: "Burger", PriceCents: 1200},
		{Name: "Fries", PriceCents: 500},
		{Name: "Drink", PriceCents: 300},
	}
}

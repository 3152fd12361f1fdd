package storage

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ananth-NQI/eatcaterly-backend/database"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

// StoreSuite runs the same behaviour checks against every Store.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
	ctx      context.Context
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store { return NewMemoryStore() }})
}

func TestDatabaseStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: newSQLiteStore})
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// Shared-cache memory databases vanish with the last connection.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewDatabaseStore(db)
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *StoreSuite) createMenu(date string, active bool, items ...models.MenuItem) *models.Menu {
	menu, err := s.store.CreateMenu(s.ctx, &models.Menu{Name: "Lunch", MenuDate: date, Active: active, Items: items})
	s.Require().NoError(err)
	return menu
}

func (s *StoreSuite) TestGetOrCreateCustomerIsIdempotent() {
	first, err := s.store.GetOrCreateCustomer(s.ctx, "(555) 123-4567")
	s.Require().NoError(err)
	s.Equal("+15551234567", first.Phone)
	s.Equal(models.CustomerCategoryNew, first.Category)
	s.True(strings.HasPrefix(first.CustomerID, "CUS-"))

	second, err := s.store.GetOrCreateCustomer(s.ctx, "+15551234567")
	s.Require().NoError(err)
	s.Equal(first.CustomerID, second.CustomerID)

	all, err := s.store.GetAllCustomers(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *StoreSuite) TestGetCustomerNotFound() {
	_, err := s.store.GetCustomer(s.ctx, "CUS-NOPE")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.GetCustomerByPhone(s.ctx, "+15550000000")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestUpdateCustomerStatsReclassifies() {
	customer, err := s.store.GetOrCreateCustomer(s.ctx, "+15551234567")
	s.Require().NoError(err)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var updated *models.Customer
	for i := 0; i < 3; i++ {
		updated, err = s.store.UpdateCustomerStats(s.ctx, customer.CustomerID, models.CustomerStatsDelta{
			Orders: 1, SpentCents: 1500, LastOrderAt: at,
		})
		s.Require().NoError(err)
	}
	s.Equal(3, updated.TotalOrders)
	s.Equal(int64(4500), updated.TotalSpentCents)
	s.Equal(models.CustomerCategoryRegular, updated.Category)
	s.Require().NotNil(updated.LastOrderAt)
	s.True(at.Equal(*updated.LastOrderAt))

	updated, err = s.store.UpdateCustomerStats(s.ctx, customer.CustomerID, models.CustomerStatsDelta{Orders: 1, SpentCents: 50000})
	s.Require().NoError(err)
	s.Equal(models.CustomerCategoryVIP, updated.Category)

	_, err = s.store.UpdateCustomerStats(s.ctx, "CUS-NOPE", models.CustomerStatsDelta{Orders: 1})
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestOptOutAndSubscribers() {
	_, err := s.store.GetOrCreateCustomer(s.ctx, "+15550000001")
	s.Require().NoError(err)
	s.Require().NoError(s.store.SetCustomerOptOut(s.ctx, "+15550000002", true))

	subscribed, err := s.store.GetSubscribedCustomers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(subscribed, 1)
	s.Equal("+15550000001", subscribed[0].Phone)

	s.Require().NoError(s.store.SetCustomerOptOut(s.ctx, "+15550000002", false))
	subscribed, err = s.store.GetSubscribedCustomers(s.ctx)
	s.Require().NoError(err)
	s.Len(subscribed, 2)
}

func (s *StoreSuite) TestMarkDormantCustomers() {
	now := time.Now().UTC()
	old, err := s.store.GetOrCreateCustomer(s.ctx, "+15550000001")
	s.Require().NoError(err)
	_, err = s.store.UpdateCustomerStats(s.ctx, old.CustomerID, models.CustomerStatsDelta{Orders: 1, LastOrderAt: now.Add(-45 * 24 * time.Hour)})
	s.Require().NoError(err)

	fresh, err := s.store.GetOrCreateCustomer(s.ctx, "+15550000002")
	s.Require().NoError(err)
	_, err = s.store.UpdateCustomerStats(s.ctx, fresh.CustomerID, models.CustomerStatsDelta{Orders: 1, LastOrderAt: now})
	s.Require().NoError(err)

	// Never ordered: not dormant
	_, err = s.store.GetOrCreateCustomer(s.ctx, "+15550000003")
	s.Require().NoError(err)

	n, err := s.store.MarkDormantCustomers(s.ctx, now.Add(-30*24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = s.store.MarkDormantCustomers(s.ctx, now.Add(-30*24*time.Hour))
	s.Require().NoError(err)
	s.Zero(n)

	got, err := s.store.GetCustomer(s.ctx, old.CustomerID)
	s.Require().NoError(err)
	s.Equal(models.CustomerCategoryDormant, got.Category)
}

func (s *StoreSuite) TestMenuLifecycle() {
	first := s.createMenu("2026-06-01", true,
		models.MenuItem{Name: "Burger", PriceCents: 1200},
		models.MenuItem{Name: "Fries", PriceCents: 500},
	)
	s.True(strings.HasPrefix(first.MenuID, "MNU-"))
	for _, item := range first.Items {
		s.Equal(first.MenuID, item.MenuID)
		s.NotEmpty(item.MenuItemID)
	}

	got, err := s.store.GetMenu(s.ctx, first.MenuID)
	s.Require().NoError(err)
	s.Len(got.Items, 2)

	active, err := s.store.GetActiveMenuForDate(s.ctx, "2026-06-01")
	s.Require().NoError(err)
	s.Equal(first.MenuID, active.MenuID)
	s.Len(active.Items, 2)

	second := s.createMenu("2026-06-01", false, models.MenuItem{Name: "Soup", PriceCents: 700})
	s.Require().NoError(s.store.ActivateMenu(s.ctx, second.MenuID))

	active, err = s.store.GetActiveMenuForDate(s.ctx, "2026-06-01")
	s.Require().NoError(err)
	s.Equal(second.MenuID, active.MenuID)

	old, err := s.store.GetMenu(s.ctx, first.MenuID)
	s.Require().NoError(err)
	s.False(old.Active)

	_, err = s.store.GetActiveMenuForDate(s.ctx, "2026-06-02")
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.store.ActivateMenu(s.ctx, "MNU-NOPE"), ErrNotFound)
}

func (s *StoreSuite) TestOrderLifecycle() {
	order, err := s.store.CreateOrder(s.ctx, &models.Order{
		CustomerID:       "CUS-1",
		Phone:            "+15551234567",
		MenuID:           "MNU-1",
		TotalAmountCents: 1700,
		Items: []models.OrderItem{
			{MenuItemID: "ITM-1", Name: "Burger", UnitPriceCents: 1200, Quantity: 1},
			{MenuItemID: "ITM-2", Name: "Fries", UnitPriceCents: 500, Quantity: 1},
		},
	})
	s.Require().NoError(err)
	s.True(strings.HasPrefix(order.OrderID, "ORD-"))
	s.Equal(models.OrderStatusPending, order.Status)

	s.Require().NoError(s.store.UpdateOrderPayment(s.ctx, order.OrderID, "https://pay/1", "cs_1"))
	s.ErrorIs(s.store.UpdateOrderPayment(s.ctx, "ORD-NOPE", "x", "y"), ErrNotFound)

	got, err := s.store.GetOrder(s.ctx, order.OrderID)
	s.Require().NoError(err)
	s.Equal("https://pay/1", got.PaymentLinkURL)
	s.Equal("cs_1", got.PaymentReference)
	s.Len(got.Items, 2)
	s.Equal(int64(1700), got.ComputeTotal())

	paidAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	paid, err := s.store.MarkOrderPaid(s.ctx, order.OrderID, "", paidAt)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusPaid, paid.Status)
	s.Equal("cs_1", paid.PaymentReference)
	s.Require().NotNil(paid.PaidAt)
	s.True(paidAt.Equal(*paid.PaidAt))

	// Second call keeps the first payment time.
	again, err := s.store.MarkOrderPaid(s.ctx, order.OrderID, "cs_2", paidAt.Add(time.Hour))
	s.Require().NoError(err)
	s.True(paidAt.Equal(*again.PaidAt))
	s.Equal("cs_1", again.PaymentReference)

	pending, err := s.store.GetOrdersByStatus(s.ctx, models.OrderStatusPending)
	s.Require().NoError(err)
	s.Empty(pending)

	all, err := s.store.GetOrdersByStatus(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 1)

	_, err = s.store.GetOrder(s.ctx, "ORD-NOPE")
	s.ErrorIs(err, ErrNotFound)
	_, err = s.store.MarkOrderPaid(s.ctx, "ORD-NOPE", "", paidAt)
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestOrdersNewestFirst() {
	var ids []string
	for i := 0; i < 3; i++ {
		order, err := s.store.CreateOrder(s.ctx, &models.Order{Phone: "+15551234567", TotalAmountCents: 100})
		s.Require().NoError(err)
		ids = append(ids, order.OrderID)
	}

	orders, err := s.store.GetOrdersByStatus(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(orders, 3)
	s.Equal(ids[2], orders[0].OrderID)
	s.Equal(ids[0], orders[2].OrderID)
}

func (s *StoreSuite) TestRecordSMSRejectsDuplicateSID() {
	inbound := &models.SMSLog{MessageSID: "SM1", Direction: models.SMSDirectionInbound, Phone: "+15551234567", Body: "MENU", Status: models.SMSStatusReceived}
	s.Require().NoError(s.store.RecordSMS(s.ctx, inbound))

	dup := &models.SMSLog{MessageSID: "SM1", Direction: models.SMSDirectionInbound, Phone: "+15551234567", Body: "MENU", Status: models.SMSStatusReceived}
	s.ErrorIs(s.store.RecordSMS(s.ctx, dup), ErrDuplicate)

	// Outbound rows without a SID never collide.
	for i := 0; i < 2; i++ {
		s.Require().NoError(s.store.RecordSMS(s.ctx, &models.SMSLog{Direction: models.SMSDirectionOutbound, Phone: "+15551234567", Body: "hi", Status: models.SMSStatusSent}))
	}

	logs, err := s.store.GetRecentSMSLogs(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(models.SMSDirectionOutbound, logs[0].Direction)

	logs, err = s.store.GetRecentSMSLogs(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(logs, 3)
	s.Equal("SM1", logs[2].MessageSID)
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func TestMigrateCreatesMessageSIDIndex(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:sms_schema?mode=memory&cache=shared"), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !db.Migrator().HasColumn(&models.SMSLog{}, "message_sid") {
		t.Fatal("sms_logs has no message_sid column")
	}
	if !db.Migrator().HasIndex(&models.SMSLog{}, "idx_sms_logs_message_sid") {
		t.Fatal("sms_logs has no unique message_sid index")
	}
}

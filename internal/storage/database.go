package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

// DatabaseStore implements Store on top of GORM (PostgreSQL in production).
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new GORM-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Postgres (SQLSTATE 23505) and SQLite report it in the message when
	// TranslateError is not enabled on the dialector.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "23505") || strings.Contains(msg, "unique constraint")
}

// Customer operations
func (s *DatabaseStore) GetOrCreateCustomer(ctx context.Context, phone string) (*models.Customer, error) {
	phone = models.NormalizePhone(phone)
	if phone == "" {
		return nil, fmt.Errorf("phone is required")
	}

	var customer models.Customer
	err := s.db.WithContext(ctx).
		Where(models.Customer{Phone: phone}).
		FirstOrCreate(&customer).Error
	if err != nil {
		// Lost a create race with a concurrent message from the same phone
		if isUniqueViolation(err) {
			return s.GetCustomerByPhone(ctx, phone)
		}
		return nil, fmt.Errorf("get or create customer: %w", err)
	}
	return &customer, nil
}

func (s *DatabaseStore) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&customer).Error; err != nil {
		return nil, notFound(err, "customer "+customerID)
	}
	return &customer, nil
}

func (s *DatabaseStore) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).Where("phone = ?", models.NormalizePhone(phone)).First(&customer).Error
	if err != nil {
		return nil, notFound(err, "customer with phone "+phone)
	}
	return &customer, nil
}

func (s *DatabaseStore) GetAllCustomers(ctx context.Context) ([]*models.Customer, error) {
	var customers []*models.Customer
	if err := s.db.WithContext(ctx).Order("id").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

func (s *DatabaseStore) GetSubscribedCustomers(ctx context.Context) ([]*models.Customer, error) {
	var customers []*models.Customer
	err := s.db.WithContext(ctx).Where("opted_out = ?", false).Order("id").Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("list subscribed customers: %w", err)
	}
	return customers, nil
}

// UpdateCustomerStats increments the totals atomically in SQL, then
// reclassifies from the fresh row.
func (s *DatabaseStore) UpdateCustomerStats(ctx context.Context, customerID string, delta models.CustomerStatsDelta) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"total_orders":      gorm.Expr("total_orders + ?", delta.Orders),
			"total_spent_cents": gorm.Expr("total_spent_cents + ?", delta.SpentCents),
		}
		if !delta.LastOrderAt.IsZero() {
			updates["last_order_at"] = delta.LastOrderAt
		}

		res := tx.Model(&models.Customer{}).Where("customer_id = ?", customerID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("customer_id = ?", customerID).First(&customer).Error; err != nil {
			return err
		}
		category := models.ClassifyCustomer(customer.TotalOrders, customer.TotalSpentCents)
		if category == customer.Category {
			return nil
		}
		customer.Category = category
		return tx.Model(&customer).Update("category", category).Error
	})
	if err != nil {
		return nil, notFound(err, "update stats for customer "+customerID)
	}
	return &customer, nil
}

func (s *DatabaseStore) SetCustomerOptOut(ctx context.Context, phone string, optedOut bool) error {
	customer, err := s.GetOrCreateCustomer(ctx, phone)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(customer).Update("opted_out", optedOut).Error
}

func (s *DatabaseStore) MarkDormantCustomers(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("category <> ? AND last_order_at IS NOT NULL AND last_order_at < ?", models.CustomerCategoryDormant, cutoff).
		Update("category", models.CustomerCategoryDormant)
	if res.Error != nil {
		return 0, fmt.Errorf("mark dormant customers: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Menu operations
func (s *DatabaseStore) CreateMenu(ctx context.Context, menu *models.Menu) (*models.Menu, error) {
	menu.AssignIDs()
	if err := s.db.WithContext(ctx).Create(menu).Error; err != nil {
		return nil, fmt.Errorf("create menu: %w", err)
	}
	return menu, nil
}

func (s *DatabaseStore) GetMenu(ctx context.Context, menuID string) (*models.Menu, error) {
	var menu models.Menu
	err := s.db.WithContext(ctx).Preload("Items").Where("menu_id = ?", menuID).First(&menu).Error
	if err != nil {
		return nil, notFound(err, "menu "+menuID)
	}
	return &menu, nil
}

func (s *DatabaseStore) GetActiveMenuForDate(ctx context.Context, date string) (*models.Menu, error) {
	var menu models.Menu
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("menu_date = ? AND active = ?", date, true).
		Order("updated_at DESC").
		First(&menu).Error
	if err != nil {
		return nil, notFound(err, "active menu for "+date)
	}
	return &menu, nil
}

// ActivateMenu makes menuID the only active menu for its date.
func (s *DatabaseStore) ActivateMenu(ctx context.Context, menuID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var menu models.Menu
		if err := tx.Where("menu_id = ?", menuID).First(&menu).Error; err != nil {
			return notFound(err, "menu "+menuID)
		}
		if err := tx.Model(&models.Menu{}).
			Where("menu_date = ? AND menu_id <> ?", menu.MenuDate, menuID).
			Update("active", false).Error; err != nil {
			return fmt.Errorf("deactivate menus: %w", err)
		}
		return tx.Model(&menu).Update("active", true).Error
	})
}

// Order operations
func (s *DatabaseStore) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.AssignIDs()
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func (s *DatabaseStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, notFound(err, "order "+orderID)
	}
	return &order, nil
}

func (s *DatabaseStore) GetOrdersByStatus(ctx context.Context, status string) ([]*models.Order, error) {
	query := s.db.WithContext(ctx).Preload("Items").Order("id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []*models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *DatabaseStore) UpdateOrderPayment(ctx context.Context, orderID, linkURL, reference string) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_link_url":  linkURL,
			"payment_reference": reference,
		})
	if res.Error != nil {
		return fmt.Errorf("update order payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// MarkOrderPaid is idempotent: a second call for a paid order is a no-op.
func (s *DatabaseStore) MarkOrderPaid(ctx context.Context, orderID, reference string, paidAt time.Time) (*models.Order, error) {
	updates := map[string]interface{}{
		"status":  models.OrderStatusPaid,
		"paid_at": paidAt,
	}
	if reference != "" {
		updates["payment_reference"] = reference
	}

	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_id = ? AND status <> ?", orderID, models.OrderStatusPaid).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

// SMS log operations
func (s *DatabaseStore) RecordSMS(ctx context.Context, entry *models.SMSLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if entry.MessageSID != "" && isUniqueViolation(err) {
			return fmt.Errorf("message %s: %w", entry.MessageSID, ErrDuplicate)
		}
		return fmt.Errorf("record sms: %w", err)
	}
	return nil
}

func (s *DatabaseStore) GetRecentSMSLogs(ctx context.Context, limit int) ([]*models.SMSLog, error) {
	query := s.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var logs []*models.SMSLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list sms logs: %w", err)
	}
	return logs, nil
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

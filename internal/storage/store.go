package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken,
	// e.g. an inbound SMS delivered twice.
	ErrDuplicate = errors.New("duplicate")
)

// Store defines the interface for storage operations
type Store interface {
	// Customer operations
	GetOrCreateCustomer(ctx context.Context, phone string) (*models.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	GetAllCustomers(ctx context.Context) ([]*models.Customer, error)
	GetSubscribedCustomers(ctx context.Context) ([]*models.Customer, error)
	UpdateCustomerStats(ctx context.Context, customerID string, delta models.CustomerStatsDelta) (*models.Customer, error)
	SetCustomerOptOut(ctx context.Context, phone string, optedOut bool) error
	MarkDormantCustomers(ctx context.Context, cutoff time.Time) (int64, error)

	// Menu operations
	CreateMenu(ctx context.Context, menu *models.Menu) (*models.Menu, error)
	GetMenu(ctx context.Context, menuID string) (*models.Menu, error)
	GetActiveMenuForDate(ctx context.Context, date string) (*models.Menu, error)
	ActivateMenu(ctx context.Context, menuID string) error

	// Order operations
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrdersByStatus(ctx context.Context, status string) ([]*models.Order, error)
	UpdateOrderPayment(ctx context.Context, orderID, linkURL, reference string) error
	MarkOrderPaid(ctx context.Context, orderID, reference string, paidAt time.Time) (*models.Order, error)

	// SMS log operations
	RecordSMS(ctx context.Context, entry *models.SMSLog) error
	GetRecentSMSLogs(ctx context.Context, limit int) ([]*models.SMSLog, error)

	Ping(ctx context.Context) error
}

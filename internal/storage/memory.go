package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

// MemoryStore holds all data in memory (development and tests)
type MemoryStore struct {
	customers map[string]*models.Customer // by CustomerID
	phones    map[string]string           // phone -> CustomerID
	menus     map[string]*models.Menu
	orders    map[string]*models.Order
	smsLogs   []*models.SMSLog
	smsSIDs   map[string]struct{}

	// Mutexes for thread safety
	customerMu sync.RWMutex
	menuMu     sync.RWMutex
	orderMu    sync.RWMutex
	smsMu      sync.RWMutex

	// Counter for gorm-style numeric IDs, shared by all tables
	counter atomic.Uint64
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*models.Customer),
		phones:    make(map[string]string),
		menus:     make(map[string]*models.Menu),
		orders:    make(map[string]*models.Order),
		smsSIDs:   make(map[string]struct{}),
		now:       time.Now,
	}
}

func (m *MemoryStore) nextID() uint {
	return uint(m.counter.Add(1))
}

// Customer operations
func (m *MemoryStore) GetOrCreateCustomer(ctx context.Context, phone string) (*models.Customer, error) {
	phone = models.NormalizePhone(phone)
	if phone == "" {
		return nil, fmt.Errorf("phone is required")
	}

	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	if id, ok := m.phones[phone]; ok {
		c := *m.customers[id]
		return &c, nil
	}

	now := m.now()
	customer := &models.Customer{Phone: phone}
	customer.AssignIDs()
	customer.ID = m.nextID()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	m.customers[customer.CustomerID] = customer
	m.phones[phone] = customer.CustomerID
	c := *customer
	return &c, nil
}

func (m *MemoryStore) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	customer, exists := m.customers[customerID]
	if !exists {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	c := *customer
	return &c, nil
}

func (m *MemoryStore) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	id, exists := m.phones[models.NormalizePhone(phone)]
	if !exists {
		return nil, fmt.Errorf("customer with phone %s: %w", phone, ErrNotFound)
	}
	c := *m.customers[id]
	return &c, nil
}

func (m *MemoryStore) GetAllCustomers(ctx context.Context) ([]*models.Customer, error) {
	return m.filterCustomers(func(*models.Customer) bool { return true }), nil
}

func (m *MemoryStore) GetSubscribedCustomers(ctx context.Context) ([]*models.Customer, error) {
	return m.filterCustomers(func(c *models.Customer) bool { return !c.OptedOut }), nil
}

func (m *MemoryStore) filterCustomers(keep func(*models.Customer) bool) []*models.Customer {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	var result []*models.Customer
	for _, customer := range m.customers {
		if keep(customer) {
			c := *customer
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *MemoryStore) UpdateCustomerStats(ctx context.Context, customerID string, delta models.CustomerStatsDelta) (*models.Customer, error) {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	customer, exists := m.customers[customerID]
	if !exists {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	customer.ApplyStats(delta)
	customer.UpdatedAt = m.now()
	c := *customer
	return &c, nil
}

func (m *MemoryStore) SetCustomerOptOut(ctx context.Context, phone string, optedOut bool) error {
	customer, err := m.GetOrCreateCustomer(ctx, phone)
	if err != nil {
		return err
	}

	m.customerMu.Lock()
	defer m.customerMu.Unlock()
	m.customers[customer.CustomerID].OptedOut = optedOut
	return nil
}

func (m *MemoryStore) MarkDormantCustomers(ctx context.Context, cutoff time.Time) (int64, error) {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	var count int64
	for _, customer := range m.customers {
		if customer.Category != models.CustomerCategoryDormant && customer.IsDormant(cutoff) {
			customer.Category = models.CustomerCategoryDormant
			count++
		}
	}
	return count, nil
}

// Menu operations
func (m *MemoryStore) CreateMenu(ctx context.Context, menu *models.Menu) (*models.Menu, error) {
	m.menuMu.Lock()
	defer m.menuMu.Unlock()

	now := m.now()
	menu.AssignIDs()
	menu.ID = m.nextID()
	menu.CreatedAt = now
	menu.UpdatedAt = now
	for i := range menu.Items {
		menu.Items[i].ID = m.nextID()
		menu.Items[i].CreatedAt = now
		menu.Items[i].UpdatedAt = now
	}

	m.menus[menu.MenuID] = cloneMenu(menu)
	return menu, nil
}

func (m *MemoryStore) GetMenu(ctx context.Context, menuID string) (*models.Menu, error) {
	m.menuMu.RLock()
	defer m.menuMu.RUnlock()

	menu, exists := m.menus[menuID]
	if !exists {
		return nil, fmt.Errorf("menu %s: %w", menuID, ErrNotFound)
	}
	return cloneMenu(menu), nil
}

func (m *MemoryStore) GetActiveMenuForDate(ctx context.Context, date string) (*models.Menu, error) {
	m.menuMu.RLock()
	defer m.menuMu.RUnlock()

	var found *models.Menu
	for _, menu := range m.menus {
		if menu.MenuDate != date || !menu.Active {
			continue
		}
		if found == nil || menu.UpdatedAt.After(found.UpdatedAt) {
			found = menu
		}
	}
	if found == nil {
		return nil, fmt.Errorf("active menu for %s: %w", date, ErrNotFound)
	}
	return cloneMenu(found), nil
}

func (m *MemoryStore) ActivateMenu(ctx context.Context, menuID string) error {
	m.menuMu.Lock()
	defer m.menuMu.Unlock()

	target, exists := m.menus[menuID]
	if !exists {
		return fmt.Errorf("menu %s: %w", menuID, ErrNotFound)
	}
	for _, menu := range m.menus {
		if menu.MenuDate == target.MenuDate {
			menu.Active = false
		}
	}
	target.Active = true
	target.UpdatedAt = m.now()
	return nil
}

func cloneMenu(menu *models.Menu) *models.Menu {
	c := *menu
	c.Items = append([]models.MenuItem(nil), menu.Items...)
	return &c
}

// Order operations
func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	now := m.now()
	order.AssignIDs()
	order.ID = m.nextID()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		order.Items[i].ID = m.nextID()
	}

	m.orders[order.OrderID] = cloneOrder(order)
	return order, nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	order, exists := m.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return cloneOrder(order), nil
}

func (m *MemoryStore) GetOrdersByStatus(ctx context.Context, status string) ([]*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	var orders []*models.Order
	for _, order := range m.orders {
		if status == "" || order.Status == status {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (m *MemoryStore) UpdateOrderPayment(ctx context.Context, orderID, linkURL, reference string) error {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	order, exists := m.orders[orderID]
	if !exists {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	order.PaymentLinkURL = linkURL
	order.PaymentReference = reference
	order.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) MarkOrderPaid(ctx context.Context, orderID, reference string, paidAt time.Time) (*models.Order, error) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	order, exists := m.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if !order.IsPaid() {
		order.Status = models.OrderStatusPaid
		order.PaidAt = &paidAt
		if reference != "" {
			order.PaymentReference = reference
		}
		order.UpdatedAt = m.now()
	}
	return cloneOrder(order), nil
}

func cloneOrder(order *models.Order) *models.Order {
	c := *order
	c.Items = append([]models.OrderItem(nil), order.Items...)
	return &c
}

// SMS log operations
func (m *MemoryStore) RecordSMS(ctx context.Context, entry *models.SMSLog) error {
	m.smsMu.Lock()
	defer m.smsMu.Unlock()

	if entry.MessageSID != "" {
		if _, seen := m.smsSIDs[entry.MessageSID]; seen {
			return fmt.Errorf("message %s: %w", entry.MessageSID, ErrDuplicate)
		}
		m.smsSIDs[entry.MessageSID] = struct{}{}
	}
	entry.ID = uint(len(m.smsLogs) + 1)
	entry.CreatedAt = m.now()
	c := *entry
	m.smsLogs = append(m.smsLogs, &c)
	return nil
}

func (m *MemoryStore) GetRecentSMSLogs(ctx context.Context, limit int) ([]*models.SMSLog, error) {
	m.smsMu.RLock()
	defer m.smsMu.RUnlock()

	var logs []*models.SMSLog
	for i := len(m.smsLogs) - 1; i >= 0 && (limit <= 0 || len(logs) < limit); i-- {
		c := *m.smsLogs[i]
		logs = append(logs, &c)
	}
	return logs, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

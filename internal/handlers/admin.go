package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/services"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

const (
	defaultSMSLogLimit = 50
	maxSMSLogLimit     = 500
)

// MenuCache is told when the active menu changes.
type MenuCache interface {
	Invalidate()
}

// PaymentLinkRetrier re-issues a payment link for a pending order.
type PaymentLinkRetrier interface {
	RetryPaymentLink(ctx context.Context, orderID string) (*models.Order, error)
}

// AdminHandler handles admin operations
type AdminHandler struct {
	store    storage.Store
	menus    MenuCache
	payments PaymentLinkRetrier
	location *time.Location
	now      func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store, menus MenuCache, payments PaymentLinkRetrier, location *time.Location) *AdminHandler {
	if location == nil {
		location = time.UTC
	}
	return &AdminHandler{
		store:    store,
		menus:    menus,
		payments: payments,
		location: location,
		now:      time.Now,
	}
}

// CreateMenuRequest is the body of POST /admin/menus
type CreateMenuRequest struct {
	Name     string `json:"name"`
	MenuDate string `json:"menu_date"` // defaults to today
	Active   bool   `json:"active"`
	Items    []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		PriceCents  int64  `json:"price_cents"`
		SoldOut     bool   `json:"sold_out"`
	} `json:"items"`
}

func (r *CreateMenuRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.MenuDate != "" {
		if _, err := time.Parse(models.MenuDateLayout, r.MenuDate); err != nil {
			return errors.New("menu_date must be YYYY-MM-DD")
		}
	}
	if len(r.Items) == 0 {
		return errors.New("at least one item is required")
	}
	for _, item := range r.Items {
		if strings.TrimSpace(item.Name) == "" {
			return errors.New("every item needs a name")
		}
		if item.PriceCents < 0 {
			return errors.New("price_cents must not be negative")
		}
	}
	return nil
}

// CreateMenu stores a menu and optionally makes it the active one for its date
func (h *AdminHandler) CreateMenu(c *fiber.Ctx) error {
	var req CreateMenuRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := req.validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	menu := &models.Menu{
		Name:     strings.TrimSpace(req.Name),
		MenuDate: req.MenuDate,
	}
	if menu.MenuDate == "" {
		menu.MenuDate = h.today()
	}
	for _, item := range req.Items {
		menu.Items = append(menu.Items, models.MenuItem{
			Name:        strings.TrimSpace(item.Name),
			Description: item.Description,
			PriceCents:  item.PriceCents,
			SoldOut:     item.SoldOut,
		})
	}

	ctx := c.UserContext()
	created, err := h.store.CreateMenu(ctx, menu)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create menu")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create menu",
		})
	}

	if req.Active {
		if err := h.store.ActivateMenu(ctx, created.MenuID); err != nil {
			log.Error().Err(err).Str("menu_id", created.MenuID).Msg("Failed to activate menu")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Menu created but could not be activated",
			})
		}
		created.Active = true
		h.menus.Invalidate()
	}

	log.Info().Str("menu_id", created.MenuID).Str("date", created.MenuDate).Bool("active", created.Active).
		Str("admin_id", adminID(c)).Msg("Menu created")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"menu":    created,
	})
}

// GetTodayMenu returns the menu customers are ordering from right now
func (h *AdminHandler) GetTodayMenu(c *fiber.Ctx) error {
	menu, err := h.store.GetActiveMenuForDate(c.UserContext(), h.today())
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active menu for today",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch menu",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"menu":    menu,
	})
}

// ActivateMenu makes the menu the only active one for its date
func (h *AdminHandler) ActivateMenu(c *fiber.Ctx) error {
	menuID := c.Params("id")
	err := h.store.ActivateMenu(c.UserContext(), menuID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Menu not found",
		})
	}
	if err != nil {
		log.Error().Err(err).Str("menu_id", menuID).Msg("Failed to activate menu")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to activate menu",
		})
	}
	h.menus.Invalidate()

	log.Info().Str("menu_id", menuID).Str("admin_id", adminID(c)).Msg("Menu activated")
	return c.JSON(fiber.Map{
		"success": true,
		"menu_id": menuID,
	})
}

// ListOrders lists orders, optionally filtered by ?status=
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	status := c.Query("status")
	switch status {
	case "", models.OrderStatusPending, models.OrderStatusPaid, models.OrderStatusCancelled:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown order status",
		})
	}

	orders, err := h.store.GetOrdersByStatus(c.UserContext(), status)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch orders",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.store.GetOrder(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Order not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch order",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

// RetryPaymentLink issues and texts a fresh payment link for a pending order
func (h *AdminHandler) RetryPaymentLink(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.payments.RetryPaymentLink(c.UserContext(), orderID)
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Payment link retry failed")
		status := fiber.StatusInternalServerError
		switch services.KindOf(err) {
		case services.KindNotFound:
			status = fiber.StatusNotFound
		case services.KindState:
			status = fiber.StatusConflict
		case services.KindDependency:
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

func (h *AdminHandler) ListCustomers(c *fiber.Ctx) error {
	customers, err := h.store.GetAllCustomers(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch customers",
		})
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"customers": customers,
		"count":     len(customers),
	})
}

// ListSMSLogs returns the most recent texts, newest first (?limit=, max 500)
func (h *AdminHandler) ListSMSLogs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultSMSLogLimit)
	if limit <= 0 || limit > maxSMSLogLimit {
		limit = defaultSMSLogLimit
	}

	logs, err := h.store.GetRecentSMSLogs(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch SMS logs",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"logs":    logs,
		"count":   len(logs),
	})
}

func (h *AdminHandler) today() string {
	return models.MenuDateFor(h.now().In(h.location))
}

func adminID(c *fiber.Ctx) string {
	id, _ := c.Locals("admin_id").(string)
	return id
}

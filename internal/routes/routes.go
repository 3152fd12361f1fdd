package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/config"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/handlers"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health  *handlers.HealthHandler
	SMS     *handlers.SMSHandler
	Payment *handlers.PaymentHandler
	Admin   *handlers.AdminHandler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, h Handlers) {

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to EatCaterly Backend!",
			"version": h.Health.Version,
			"endpoints": fiber.Map{
				"health":   "/health",
				"sms":      "/webhook/sms",
				"payments": "/webhook/payments",
				"admin":    "/admin",
			},
		})
	})

	app.Get("/health", h.Health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// SMS webhook - ENVIRONMENT-AWARE VALIDATION
	if cfg.DisableWebhookValidation && !cfg.IsProduction() {
		// Development: skip validation so tunnels like ngrok work
		log.Warn().Msg("SMS webhook signature validation DISABLED")
		webhooks.Post("/sms", h.SMS.HandleWebhook)
	} else {
		webhooks.Post("/sms", middleware.ValidateTwilioSignature(cfg.TwilioAuthToken, cfg.PublicBaseURL), h.SMS.HandleWebhook)
	}

	if cfg.StripeWebhookSecret != "" {
		webhooks.Post("/payments", middleware.ValidatePaymentSignature(cfg.StripeWebhookSecret), h.Payment.HandleWebhook)
	} else {
		log.Warn().Msg("STRIPE_WEBHOOK_SECRET not set - payment webhook disabled")
	}

	// ========== TEST ROUTES (Development Only) ==========
	if !cfg.IsProduction() {
		app.Post("/test/sms", h.SMS.HandleTestWebhook)
	}

	// ========== ADMIN ROUTES ==========
	admin := app.Group("/admin", middleware.AdminAuth(cfg.AdminJWTSecret))

	admin.Post("/menus", h.Admin.CreateMenu)
	admin.Get("/menus/today", h.Admin.GetTodayMenu)
	admin.Put("/menus/:id/activate", h.Admin.ActivateMenu)

	admin.Get("/orders", h.Admin.ListOrders)
	admin.Get("/orders/:id", h.Admin.GetOrder)
	admin.Post("/orders/:id/payment-link", h.Admin.RetryPaymentLink)

	admin.Get("/customers", h.Admin.ListCustomers)
	admin.Get("/sms-logs", h.Admin.ListSMSLogs)
}

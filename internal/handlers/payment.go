package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// WebhookProcessor applies a verified payment gateway event.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte) error
}

type PaymentHandler struct {
	payments WebhookProcessor
}

func NewPaymentHandler(payments WebhookProcessor) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// HandleWebhook expects the signature to be checked by middleware already.
// A processing error answers 500 so the gateway retries the delivery.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Empty webhook payload",
		})
	}

	// fasthttp reuses the request buffer after the handler returns.
	payload := append([]byte(nil), body...)
	if err := h.payments.ProcessWebhook(c.UserContext(), payload); err != nil {
		log.Error().Err(err).Msg("Failed to process payment webhook")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process webhook",
		})
	}
	return c.JSON(fiber.Map{"received": true})
}

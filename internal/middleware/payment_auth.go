package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v79/webhook"
)

// ValidatePaymentSignature validates Stripe webhook signatures
func ValidatePaymentSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			log.Error().Msg("STRIPE_WEBHOOK_SECRET not set, cannot validate webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		header := c.Get("Stripe-Signature")
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Stripe signature",
			})
		}

		if err := webhook.ValidatePayload(c.Body(), header, secret); err != nil {
			log.Warn().Err(err).Msg("Rejected payment webhook")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}
		return c.Next()
	}
}

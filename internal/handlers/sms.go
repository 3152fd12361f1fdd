package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/services"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

// emptyTwiML acknowledges a webhook without asking Twilio to reply.
// Replies go out through the REST API instead.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

const (
	msgOptedOut = "You have been unsubscribed from EatCaterly menu texts. Reply START to subscribe again."
	msgOptedIn  = "You are subscribed to EatCaterly menu texts again. Reply MENU to order."
)

var (
	optOutKeywords = map[string]bool{"STOP": true, "STOPALL": true, "UNSUBSCRIBE": true, "END": true, "QUIT": true, "CANCEL ALL": true}
	optInKeywords  = map[string]bool{"START": true, "UNSTOP": true, "SUBSCRIBE": true}
)

// MessageHandler is the conversation entrypoint the SMS handler drives.
type MessageHandler interface {
	HandleInboundMessage(ctx context.Context, from, raw string) services.Result
}

// SMSHandler handles inbound SMS webhooks
type SMSHandler struct {
	store    storage.Store
	ordering MessageHandler
	sms      services.SMSSender
}

// NewSMSHandler creates a new SMS handler
func NewSMSHandler(store storage.Store, ordering MessageHandler, sms services.SMSSender) *SMSHandler {
	return &SMSHandler{
		store:    store,
		ordering: ordering,
		sms:      sms,
	}
}

// TwilioWebhookPayload represents an incoming SMS from Twilio
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"`
	To         string `form:"To"`
	Body       string `form:"Body"`
}

// TestWebhookPayload is the JSON body of the development endpoint
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleWebhook processes an incoming SMS. It always answers 200 with empty
// TwiML once the payload parses so Twilio does not retry a handled message.
func (h *SMSHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Warn().Err(err).Msg("Invalid SMS webhook payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	from := models.NormalizePhone(payload.From)
	if from == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "From is required",
		})
	}

	ctx := c.UserContext()
	logger := log.With().Str("phone", from).Str("message_sid", payload.MessageSid).Logger()

	err := h.store.RecordSMS(ctx, &models.SMSLog{
		MessageSID: payload.MessageSid,
		Direction:  models.SMSDirectionInbound,
		Phone:      from,
		Body:       payload.Body,
		Status:     models.SMSStatusReceived,
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		logger.Info().Msg("Duplicate SMS delivery ignored")
		return twiml(c)
	case err != nil:
		// Keep going; losing the log row is better than losing the order.
		logger.Warn().Err(err).Msg("Failed to record inbound SMS")
	}

	logger.Info().Str("body", payload.Body).Msg("SMS received")

	reply := h.process(ctx, from, payload.Body)
	if reply != "" {
		if _, err := h.sms.SendSMS(ctx, from, reply); err != nil {
			logger.Error().Err(err).Msg("Failed to send SMS reply")
		}
	}
	return twiml(c)
}

// HandleTestWebhook runs a message through the conversation and returns the
// reply instead of texting it (development only).
func (h *SMSHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	from := models.NormalizePhone(payload.From)
	if from == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from is required",
		})
	}

	log.Debug().Str("phone", from).Str("body", payload.Message).Msg("Test SMS received")
	return c.JSON(fiber.Map{
		"reply": h.process(c.UserContext(), from, payload.Message),
	})
}

func (h *SMSHandler) process(ctx context.Context, from, body string) string {
	keyword := strings.ToUpper(strings.TrimSpace(body))
	switch {
	case optOutKeywords[keyword]:
		if err := h.store.SetCustomerOptOut(ctx, from, true); err != nil {
			log.Error().Err(err).Str("phone", from).Msg("Failed to opt out customer")
		}
		return msgOptedOut
	case optInKeywords[keyword]:
		if err := h.store.SetCustomerOptOut(ctx, from, false); err != nil {
			log.Error().Err(err).Str("phone", from).Msg("Failed to opt in customer")
		}
		return msgOptedIn
	}

	res := h.ordering.HandleInboundMessage(ctx, from, body)
	if res.Err != nil {
		log.Warn().Err(res.Err).Str("phone", from).Str("kind", services.KindOf(res.Err).String()).Msg("Message not fully handled")
	}
	return res.Reply
}

func twiml(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/xml")
	return c.Status(fiber.StatusOK).SendString(emptyTwiML)
}

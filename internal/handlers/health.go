package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports how many ordering sessions are open.
type SessionCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	db       Pinger
	sessions SessionCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, db Pinger, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		db:       db,
		sessions: sessions,
	}
}

// Check returns the health status of the service. It answers 503 when the
// database or the session store is unreachable.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "OK"
	code := fiber.StatusOK

	database := "connected"
	if err := h.db.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Health check: database ping failed")
		database = "unreachable"
		status, code = "DEGRADED", fiber.StatusServiceUnavailable
	}

	sessions := fiber.Map{"status": "connected"}
	if n, err := h.sessions.Count(ctx); err != nil {
		log.Warn().Err(err).Msg("Health check: session store failed")
		sessions["status"] = "unreachable"
		status, code = "DEGRADED", fiber.StatusServiceUnavailable
	} else {
		sessions["active"] = n
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"service":  "EatCaterly Backend",
		"version":  h.Version,
		"database": database,
		"sessions": sessions,
	})
}

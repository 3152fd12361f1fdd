package storage

import (
	"context"
	"errors"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

var (
	// ErrSessionNotFound is returned when a phone has no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrVersionConflict is returned when a session changed since it was read.
	ErrVersionConflict = errors.New("session version conflict")
)

// SessionStore holds at most one ordering session per phone number.
//
// Save is a compare-and-swap on Version: the stored version (0 when no live
// session exists) must equal session.Version. On success the store bumps
// session.Version, refreshes the timestamps and extends the expiry by the
// store's TTL. Delete is idempotent.
type SessionStore interface {
	Get(ctx context.Context, phone string) (*models.OrderSession, error)
	Save(ctx context.Context, session *models.OrderSession) error
	Delete(ctx context.Context, phone string) error
	Count(ctx context.Context) (int, error)
}

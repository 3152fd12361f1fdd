package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a short, human-friendly identifier such as "ORD-3F9A1C02BE".
// Order IDs are read back to customers over SMS, so they stay short.
func NewID(prefix string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + "-" + raw[:10]
}

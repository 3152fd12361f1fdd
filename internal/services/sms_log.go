package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/storage"
)

// RecordingSender writes every outbound text to the SMS log.
type RecordingSender struct {
	next  SMSSender
	store storage.Store
}

// NewRecordingSender wraps next so its sends show up in the SMS log
func NewRecordingSender(next SMSSender, store storage.Store) *RecordingSender {
	return &RecordingSender{next: next, store: store}
}

func (r *RecordingSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	sid, err := r.next.SendSMS(ctx, to, body)

	entry := &models.SMSLog{
		MessageSID: sid,
		Direction:  models.SMSDirectionOutbound,
		Phone:      to,
		Body:       body,
		Status:     models.SMSStatusSent,
	}
	if err != nil {
		entry.Status = models.SMSStatusFailed
		entry.Error = err.Error()
	}
	// A failed log write must not turn a delivered message into an error.
	if logErr := r.store.RecordSMS(context.WithoutCancel(ctx), entry); logErr != nil {
		log.Warn().Err(logErr).Str("to", to).Msg("Failed to record outbound SMS")
	}
	return sid, err
}

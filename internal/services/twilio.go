package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender delivers a text message and returns the provider message ID.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// TwilioService sends SMS through the Twilio REST API
type TwilioService struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioService creates a new Twilio service instance. Without
// credentials it only logs outgoing messages, which keeps local
// development usable.
func NewTwilioService(accountSid, authToken, from string) *TwilioService {
	if accountSid == "" || authToken == "" || from == "" {
		log.Warn().Msg("Twilio credentials not found - outgoing SMS will only be logged")
		return &TwilioService{from: from}
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
	return &TwilioService{client: client, from: from}
}

// Enabled reports whether messages are really sent.
func (t *TwilioService) Enabled() bool {
	return t.client != nil
}

// SendSMS sends a text message via Twilio. The REST client has no context
// support, so the call runs in a goroutine and ctx bounds the wait.
func (t *TwilioService) SendSMS(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", errors.New("recipient is required")
	}
	if t.client == nil {
		log.Info().Str("to", to).Str("body", body).Msg("SMS (not sent, Twilio disabled)")
		return "", nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(body)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := t.client.Api.CreateMessage(params)
		if err != nil {
			done <- result{err: err}
			return
		}
		if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
			msg := ""
			if resp.ErrorMessage != nil {
				msg = *resp.ErrorMessage
			}
			done <- result{err: fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)}
			return
		}
		sid := ""
		if resp.Sid != nil {
			sid = *resp.Sid
		}
		done <- result{sid: sid}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("send sms to %s: %w", to, ctx.Err())
	case r := <-done:
		if r.err != nil {
			log.Error().Err(r.err).Str("to", to).Msg("Failed to send SMS")
			return "", fmt.Errorf("send sms to %s: %w", to, r.err)
		}
		log.Debug().Str("to", to).Str("sid", r.sid).Msg("SMS sent")
		return r.sid, nil
	}
}

// Package sms sends text messages through Twilio.
package sms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/logger"
	"github.com/troikatech/call-center/pkg/metrics"
	"github.com/troikatech/call-center/pkg/validation"
)

const serviceName = "twilio"

// ErrNotConfigured is returned by Send when no Twilio account is set.
var ErrNotConfigured = errors.New("sms sender not configured")

// messageAPI is the subset of the Twilio REST API used here.
type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSender sends SMS from a single Twilio number.
type TwilioSender struct {
	api    messageAPI
	from   string
	logger *zap.Logger
}

// NewTwilioSender creates a sender. With an empty account SID the sender is
// disabled and Send returns ErrNotConfigured.
func NewTwilioSender(accountSID, authToken, from string, logger *zap.Logger) *TwilioSender {
	s := &TwilioSender{from: from, logger: logger}
	if accountSID == "" || authToken == "" {
		return s
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	s.api = rest.Api
	return s
}

// IsConfigured reports whether an account and a sender number are set.
func (s *TwilioSender) IsConfigured() bool {
	return s.api != nil && s.from != ""
}

// Send sends body to the E.164 number to.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if err := validation.ValidateE164(to); err != nil {
		return err
	}
	// The Twilio client takes no context
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	start := time.Now()
	msg, err := s.api.CreateMessage(params)
	metrics.RecordServiceCall(serviceName, "send_sms", err == nil, time.Since(start))
	if err != nil {
		var restErr *client.TwilioRestError
		if errors.As(err, &restErr) {
			return fmt.Errorf("failed to send SMS: twilio error %d: %s", restErr.Code, restErr.Message)
		}
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	s.logger.Info("SMS sent", logger.MaskPhone("to", to), zap.String("sid", sid))
	return nil
}

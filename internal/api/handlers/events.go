package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/dispatcher"
	"github.com/troikatech/call-center/pkg/callautomation"
	"github.com/troikatech/call-center/pkg/errors"
	"github.com/troikatech/call-center/pkg/logger"
	"github.com/troikatech/call-center/pkg/validation"
)

// CommunicationServicesEvent receives the callbacks of one call. Once the
// batch parses, the answer is always 204: a rejected or failed event must
// not make the provider resend the batch.
func (h *Handler) CommunicationServicesEvent(c *gin.Context) {
	var events []callautomation.CloudEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		errors.BadRequest(c, "body must be a list of CloudEvents")
		return
	}

	callID, secret := c.Param("call_id"), c.Param("secret")
	envelopes := make([]dispatcher.Envelope, 0, len(events))
	for _, ev := range events {
		envelopes = append(envelopes, dispatcher.Envelope{CallID: callID, Secret: secret, Event: ev})
	}
	h.dispatcher.Dispatch(c.Request.Context(), envelopes)
	c.Status(http.StatusNoContent)
}

// EventGridEvent receives resource events: the subscription handshake and
// incoming calls.
func (h *Handler) EventGridEvent(c *gin.Context) {
	var events []callautomation.EventGridEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		errors.BadRequest(c, "body must be a list of Event Grid events")
		return
	}

	failed := false
	for _, ev := range events {
		log := h.logger.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.EventType))

		switch ev.EventType {
		case callautomation.EventSubscriptionValidation:
			var data callautomation.SubscriptionValidationData
			if err := json.Unmarshal(ev.Data, &data); err != nil || data.ValidationCode == "" {
				errors.BadRequest(c, "invalid subscription validation event")
				return
			}
			log.Info("Validating Event Grid subscription")
			c.JSON(http.StatusOK, gin.H{"validationResponse": data.ValidationCode})
			return

		case callautomation.EventIncomingCall:
			var data callautomation.IncomingCallData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				log.Warn("Invalid incoming call event", zap.Error(err))
				continue
			}
			phone, err := validation.NormalizeE164(callerNumber(data.From))
			if err != nil {
				log.Warn("Incoming call from an invalid number", zap.Error(err))
				continue
			}
			if err := h.orchestrator.OnIncomingCall(c.Request.Context(), phone, data.IncomingCallContext); err != nil {
				log.Error("Failed to answer incoming call", logger.MaskPhone("phone_number", phone), zap.Error(err))
				failed = true
			}

		default:
			log.Debug("Event type not supported")
		}
	}

	if failed {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

func callerNumber(id callautomation.CommunicationIdentifier) string {
	if id.Kind == "phoneNumber" && id.PhoneNumber != nil {
		return id.PhoneNumber.Value
	}
	return id.RawID
}

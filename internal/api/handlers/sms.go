package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/errors"
	"github.com/troikatech/call-center/pkg/logger"
	"github.com/troikatech/call-center/pkg/middleware"
	"github.com/troikatech/call-center/pkg/validation"
	"github.com/troikatech/call-center/pkg/webhook"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// TwilioSMS receives an inbound text message. The reply, if any, is sent
// later, so the TwiML answer is always empty.
func (h *Handler) TwilioSMS(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		errors.BadRequest(c, "invalid form body")
		return
	}
	form := c.Request.PostForm

	fullURL := h.publicURL + c.Request.URL.RequestURI()
	if err := webhook.VerifyTwilioSignature(h.twilioToken, fullURL, form, c.GetHeader(webhook.SignatureHeader)); err != nil {
		h.logger.Warn("Rejected Twilio webhook", zap.Error(err))
		errors.Forbidden(c, err.Error())
		return
	}

	phone, err := validation.NormalizeE164(form.Get("From"))
	if err != nil {
		errors.BadRequest(c, "From: "+err.Error())
		return
	}
	body := middleware.SanitizeString(form.Get("Body"))
	if body == "" {
		c.Data(http.StatusOK, "application/xml", []byte(emptyTwiML))
		return
	}

	if _, err := h.orchestrator.OnSMSReceived(c.Request.Context(), phone, body); err != nil && !isNotFound(err) {
		h.logger.Warn("Inbound SMS not handled", logger.MaskPhone("phone_number", phone))
		errors.InternalError(c, err, h.logger)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(emptyTwiML))
}

package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/dispatcher"
	"github.com/troikatech/call-center/pkg/audit"
	"github.com/troikatech/call-center/pkg/middleware"
)

// Orchestrator starts calls and reacts to what arrives outside a call
// callback.
type Orchestrator interface {
	CreateCall(ctx context.Context, initiate call.Initiate) (*call.State, error)
	OnIncomingCall(ctx context.Context, phone, incomingContext string) error
	OnSMSReceived(ctx context.Context, phone, message string) (*call.State, error)
}

// EventDispatcher processes a batch of call callbacks.
type EventDispatcher interface {
	Dispatch(ctx context.Context, envelopes []dispatcher.Envelope)
}

// Check is one readiness dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Config struct {
	Orchestrator Orchestrator
	Dispatcher   EventDispatcher
	Store        call.Store
	// Defaults fills the fields a POST /call request leaves empty.
	Defaults call.Initiate
	Checks   []Check
	Audit    audit.Recorder
	// TwilioAuthToken verifies inbound SMS webhooks. Empty disables the check.
	TwilioAuthToken string
	PublicURL       string
	Logger          *zap.Logger
}

type Handler struct {
	orchestrator Orchestrator
	dispatcher   EventDispatcher
	store        call.Store
	defaults     call.Initiate
	checks       []Check
	audit        audit.Recorder
	twilioToken  string
	publicURL    string
	logger       *zap.Logger
}

func NewHandler(cfg Config) *Handler {
	return &Handler{
		orchestrator: cfg.Orchestrator,
		dispatcher:   cfg.Dispatcher,
		store:        cfg.Store,
		defaults:     cfg.Defaults,
		checks:       cfg.Checks,
		audit:        cfg.Audit,
		twilioToken:  cfg.TwilioAuthToken,
		publicURL:    cfg.PublicURL,
		logger:       cfg.Logger,
	}
}

// Middleware is applied to the call API. Provider callbacks carry their own
// authentication and never go through it.
type Middleware struct {
	Read  []gin.HandlerFunc
	Write []gin.HandlerFunc
}

// Register mounts every route on router.
func (h *Handler) Register(router gin.IRouter, mw Middleware) {
	health := router.Group("/health")
	{
		health.GET("/liveness", h.Liveness)
		health.GET("/readiness", h.Readiness)
	}
	router.GET("/metrics", h.Metrics)

	write := router.Group("", mw.Write...)
	{
		write.POST("/call", h.CreateCall)
	}
	read := router.Group("", mw.Read...)
	{
		read.GET("/call", middleware.ValidatePhoneQuery("phone_number", true), h.SearchCall)
		read.GET("/call/:call_id", middleware.ValidateCallIDParam("call_id"), h.GetCall)
		read.GET("/report", middleware.ValidatePhoneQuery("phone_number", false), h.Report)
	}

	router.POST("/communicationservices/event/:call_id/:secret", h.CommunicationServicesEvent)
	router.POST("/eventgrid/event", h.EventGridEvent)
	router.POST("/twilio/sms", h.TwilioSMS)
}

package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/pkg/audit"
	"github.com/troikatech/call-center/pkg/errors"
	"github.com/troikatech/call-center/pkg/utils"
	"github.com/troikatech/call-center/pkg/validation"
)

const reportLimit = 100

// CreateCallRequest overrides the default initiate snapshot. Only the phone
// number is required.
type CreateCallRequest struct {
	PhoneNumber      string               `json:"phone_number" binding:"required"`
	AgentPhoneNumber string               `json:"agent_phone_number"`
	BotCompany       string               `json:"bot_company"`
	BotName          string               `json:"bot_name"`
	Task             string               `json:"task"`
	Lang             *call.LanguageConfig `json:"lang"`
}

// CallResponse is the public view of a call, without its callback secret.
type CallResponse struct {
	CallID      string            `json:"call_id"`
	PhoneNumber string            `json:"phone_number"`
	Lang        string            `json:"lang,omitempty"`
	InProgress  bool              `json:"in_progress"`
	Messages    []call.Message    `json:"messages"`
	Claim       map[string]string `json:"claim"`
	Synthesis   *call.Synthesis   `json:"synthesis,omitempty"`
	Next        *call.Next        `json:"next,omitempty"`
	Initiate    call.Initiate     `json:"initiate"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newCallResponse(state *call.State) CallResponse {
	return CallResponse{
		CallID:      state.CallID,
		PhoneNumber: state.Initiate.PhoneNumber,
		Lang:        state.Language().ShortCode,
		InProgress:  state.InProgress,
		Messages:    state.Messages,
		Claim:       state.Claim,
		Synthesis:   state.Synthesis,
		Next:        state.Next,
		Initiate:    state.Initiate,
		CreatedAt:   state.CreatedAt,
	}
}

// initiate merges the request over the defaults and validates the numbers.
func (r CreateCallRequest) initiate(defaults call.Initiate) (call.Initiate, []string) {
	var problems []string
	out := defaults

	phone, err := validation.NormalizeE164(r.PhoneNumber)
	if err != nil {
		problems = append(problems, "phone_number: "+err.Error())
	}
	out.PhoneNumber = phone

	if r.AgentPhoneNumber != "" {
		agent, err := validation.NormalizeE164(r.AgentPhoneNumber)
		if err != nil {
			problems = append(problems, "agent_phone_number: "+err.Error())
		}
		out.AgentPhoneNumber = agent
	}
	if r.BotCompany != "" {
		out.BotCompany = r.BotCompany
	}
	if r.BotName != "" {
		out.BotName = r.BotName
	}
	if r.Task != "" {
		out.Task = r.Task
	}
	if r.Lang != nil {
		if len(r.Lang.Availables) == 0 {
			problems = append(problems, "lang.availables: at least one language is required")
		} else if _, ok := r.Lang.Find(r.Lang.DefaultShortCode); !ok {
			problems = append(problems, "lang.default_short_code: must be one of the available languages")
		}
		out.Lang = *r.Lang
	}
	return out, problems
}

// CreateCall places an outbound call.
func (h *Handler) CreateCall(c *gin.Context) {
	var req CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, err.Error())
		return
	}
	initiate, problems := req.initiate(h.defaults)
	if len(problems) > 0 {
		errors.ValidationFailed(c, problems)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	state, err := h.orchestrator.CreateCall(ctx, initiate)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if h.audit != nil {
		h.audit.Record(ctx, audit.Entry{
			Subject:      c.GetString("subject"),
			Action:       audit.ActionCallCreate,
			ResourceType: "call",
			ResourceID:   state.CallID,
			Metadata:     map[string]string{"phone_number": utils.MaskPhoneNumber(initiate.PhoneNumber)},
		})
	}
	c.JSON(http.StatusCreated, newCallResponse(state))
}

// SearchCall returns the latest call of a phone number, in a list.
func (h *Handler) SearchCall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	calls, _, err := h.store.SearchAll(ctx, c.GetString("phone_number"), 1)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	out := make([]CallResponse, 0, len(calls))
	for i := range calls {
		out = append(out, newCallResponse(&calls[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	state, err := h.store.Get(ctx, c.GetString("call_id"))
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	if state == nil {
		errors.NotFound(c, "call "+c.GetString("call_id")+" not found")
		return
	}
	c.JSON(http.StatusOK, newCallResponse(state))
}

// Report lists the most recent calls, optionally for one phone number.
func (h *Handler) Report(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	limit := utils.ParseLimit(c, reportLimit, reportLimit)
	calls, total, err := h.store.SearchAll(ctx, c.GetString("phone_number"), limit)
	if err != nil {
		errors.InternalError(c, err, h.logger)
		return
	}
	out := make([]CallResponse, 0, len(calls))
	for i := range calls {
		out = append(out, newCallResponse(&calls[i]))
	}
	c.JSON(http.StatusOK, utils.ListResponse{Data: out, Total: total, Limit: limit})
}

func isNotFound(err error) bool {
	return stderrors.Is(err, call.ErrNotFound)
}

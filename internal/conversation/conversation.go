// Package conversation answers the caller with a language model, one
// recognized sentence at a time.
package conversation

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/callcontrol"
	"github.com/troikatech/call-center/internal/prompts"
	"github.com/troikatech/call-center/pkg/ai"
)

// Completer answers a chat.
type Completer interface {
	Complete(ctx context.Context, req *ai.CompletionRequest) (string, error)
}

// Knowledge returns the trainings pre-computed for a call.
type Knowledge interface {
	Cached(ctx context.Context, callID string) []string
}

// Trainer schedules a trainings refresh.
type Trainer interface {
	Trainings(ctx context.Context, state *call.State)
}

type Config struct {
	Controller callcontrol.Controller
	LLM        Completer
	Knowledge  Knowledge
	Trainer    Trainer
	Prompts    *prompts.Catalog
	// Timeout bounds one model answer.
	Timeout time.Duration
	Logger  *zap.Logger
}

type Conversation struct {
	controller callcontrol.Controller
	llm        Completer
	knowledge  Knowledge
	trainer    Trainer
	prompts    *prompts.Catalog
	timeout    time.Duration
	logger     *zap.Logger
}

func New(cfg Config) *Conversation {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Conversation{
		controller: cfg.Controller,
		llm:        cfg.LLM,
		knowledge:  cfg.Knowledge,
		trainer:    cfg.Trainer,
		prompts:    cfg.Prompts,
		timeout:    timeout,
		logger:     cfg.Logger,
	}
}

// OnSpeech records what the caller said and answers it.
func (c *Conversation) OnSpeech(ctx context.Context, state *call.State, text string) error {
	log := c.logger.With(zap.String("call_id", state.CallID))
	state.Append(call.PersonaHuman, call.ActionTalk, text, call.StyleNone)
	defer c.trainer.Trainings(ctx, state.Clone())

	reply, err := c.answer(ctx, state)
	if err != nil {
		log.Warn("Failed to answer the caller", zap.Error(err))
		return c.sayError(ctx, state)
	}

	content, action, style := prompts.ParseReply(reply)
	switch action {
	case prompts.ReplyHangup:
		log.Info("Model asked to end the call")
		return c.finish(ctx, state, content, style, prompts.Goodbye, call.ContextGoodbye)
	case prompts.ReplyConnectAgent:
		if state.Initiate.AgentPhoneNumber == "" {
			log.Warn("Model asked for an agent but none is configured")
			break
		}
		log.Info("Model asked to transfer to an agent")
		return c.finish(ctx, state, content, style, prompts.ConnectAgent, call.ContextConnectAgent)
	}

	if content == "" {
		log.Warn("Model answered without content")
		return c.sayError(ctx, state)
	}
	prompt := callcontrol.Prompt{Text: content, Style: style, Lang: state.Language()}
	if err := c.controller.RecognizeSpeech(ctx, state.VoiceID, state.Initiate.PhoneNumber, prompt, nil); err != nil {
		return err
	}
	state.Append(call.PersonaAssistant, call.ActionTalk, content, style)
	return nil
}

func (c *Conversation) answer(ctx context.Context, state *call.State) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &ai.CompletionRequest{
		System:      prompts.ChatSystem(state, c.knowledge.Cached(ctx, state.CallID)),
		Messages:    History(state.Messages),
		Temperature: 0.3,
	}
	return c.llm.Complete(ctx, req)
}

// finish speaks the last answer followed by a closing prompt tagged so that
// the end of the playback moves the call on.
func (c *Conversation) finish(ctx context.Context, state *call.State, content string, style call.Style, closing prompts.Name, tag call.Context) error {
	closingText, err := c.prompts.TTS(closing, state)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(content + " " + closingText)
	prompt := callcontrol.Prompt{Text: text, Style: style, Lang: state.Language()}
	if err := c.controller.Play(ctx, state.VoiceID, prompt, call.Contexts{tag}); err != nil {
		return err
	}
	if content != "" {
		state.Append(call.PersonaAssistant, call.ActionTalk, content, style)
	}
	return nil
}

// sayError asks the caller to repeat. The prompt is not added to the log.
func (c *Conversation) sayError(ctx context.Context, state *call.State) error {
	text, err := c.prompts.TTS(prompts.Error, state)
	if err != nil {
		return err
	}
	prompt := callcontrol.Prompt{Text: text, Style: call.StyleNone, Lang: state.Language()}
	return c.controller.RecognizeSpeech(ctx, state.VoiceID, state.Initiate.PhoneNumber, prompt, nil)
}

// History converts the spoken part of the log into chat turns.
func History(messages []call.Message) []ai.Message {
	out := make([]ai.Message, 0, len(messages))
	for _, m := range messages {
		if m.Action != call.ActionTalk || m.Content == "" {
			continue
		}
		switch m.Persona {
		case call.PersonaHuman:
			out = append(out, ai.Message{Role: ai.RoleUser, Content: m.Content})
		case call.PersonaAssistant:
			out = append(out, ai.Message{Role: ai.RoleAssistant, Content: m.Content})
		}
	}
	return out
}

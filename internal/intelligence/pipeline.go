// Package intelligence runs the post-call analysis: next action, customer
// SMS and synthesis.
package intelligence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/prompts"
	"github.com/troikatech/call-center/pkg/ai"
	"github.com/troikatech/call-center/pkg/logger"
	"github.com/troikatech/call-center/pkg/otel"
	"github.com/troikatech/call-center/pkg/retry"
	"github.com/troikatech/call-center/pkg/validation"
)

// ClaimPolicyholderPhone is the claim field holding a second SMS recipient.
const ClaimPolicyholderPhone = "policyholder_phone"

const answerTurn = "The call is over. Answer the task now."

// Completer answers a chat.
type Completer interface {
	Complete(ctx context.Context, req *ai.CompletionRequest) (string, error)
}

// Sender delivers a text message.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type Config struct {
	LLM    Completer
	SMS    Sender
	Store  call.Store
	Locker call.Locker
	// Retry bounds the attempts on invalid model answers.
	Retry  retry.Config
	Logger *zap.Logger
}

type Pipeline struct {
	llm    Completer
	sms    Sender
	store  call.Store
	locker call.Locker
	retry  retry.Config
	logger *zap.Logger
}

func New(cfg Config) *Pipeline {
	r := cfg.Retry
	if r.MaxAttempts <= 0 {
		r = retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		}
	}
	return &Pipeline{
		llm:    cfg.LLM,
		sms:    cfg.SMS,
		store:  cfg.Store,
		locker: cfg.Locker,
		retry:  r,
		logger: cfg.Logger,
	}
}

// Process is the post-call job. The three analyses run concurrently on the
// same snapshot, each persists its own result.
func (p *Pipeline) Process(ctx context.Context, state *call.State) error {
	log := p.logger.With(zap.String("call_id", state.CallID))
	if state.HasNoInteraction() {
		log.Info("Call ended without interaction, skipping analysis")
		return nil
	}

	ctx, span := otel.StartSpan(ctx, "intelligence.post_call", attribute.String("call.id", state.CallID))

	var g errgroup.Group
	g.Go(func() error { return p.next(ctx, state, log) })
	g.Go(func() error { return p.summarySMS(ctx, state, log) })
	g.Go(func() error { return p.synthesis(ctx, state, log) })
	err := g.Wait()

	otel.EndSpan(span, err)
	return err
}

// complete asks the model until check accepts the answer. Provider failures
// are not retried here, the manager already falls back between providers.
func (p *Pipeline) complete(ctx context.Context, system string, jsonMode bool, check func(answer string) error) error {
	req := &ai.CompletionRequest{
		System:      system,
		Messages:    []ai.Message{{Role: ai.RoleUser, Content: answerTurn}},
		Temperature: 0,
		JSON:        jsonMode,
	}
	return retry.Do(ctx, p.retry, func() error {
		answer, err := p.llm.Complete(ctx, req)
		if err != nil {
			return retry.Permanent(err)
		}
		return check(answer)
	})
}

func (p *Pipeline) next(ctx context.Context, state *call.State, log *zap.Logger) error {
	var next call.Next
	err := p.complete(ctx, prompts.NextSystem(state), true, func(answer string) error {
		return decodeValid(nextSchema, answer, &next)
	})
	if err != nil {
		log.Warn("Failed to compute next action", zap.Error(err))
		return nil
	}

	_, err = call.Mutate(ctx, p.locker, p.store, state.CallID, func(s *call.State) error {
		s.Next = &next
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save next action: %w", err)
	}
	log.Info("Next action saved", zap.String("action", string(next.Action)))
	return nil
}

func (p *Pipeline) synthesis(ctx context.Context, state *call.State, log *zap.Logger) error {
	var synthesis call.Synthesis
	err := p.complete(ctx, prompts.SynthesisSystem(state), true, func(answer string) error {
		return decodeValid(synthesisSchema, answer, &synthesis)
	})
	if err != nil {
		log.Warn("Failed to compute synthesis", zap.Error(err))
		return nil
	}

	_, err = call.Mutate(ctx, p.locker, p.store, state.CallID, func(s *call.State) error {
		s.Synthesis = &synthesis
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save synthesis: %w", err)
	}
	log.Info("Synthesis saved", zap.String("satisfaction", string(synthesis.Satisfaction)))
	return nil
}

func (p *Pipeline) summarySMS(ctx context.Context, state *call.State, log *zap.Logger) error {
	var content string
	err := p.complete(ctx, prompts.SMSSummarySystem(state), false, func(answer string) error {
		content, _, _ = prompts.ParseReply(answer)
		if content == "" {
			return errEmptyAnswer
		}
		return nil
	})
	if err != nil {
		log.Warn("Failed to compute SMS summary", zap.Error(err))
		return nil
	}

	sent := false
	for _, to := range Recipients(state, log) {
		if err := p.sms.Send(ctx, to, content); err != nil {
			log.Warn("Failed to send SMS summary", logger.MaskPhone("to", to), zap.Error(err))
			continue
		}
		sent = true
	}
	if !sent {
		return nil
	}

	_, err = call.Mutate(ctx, p.locker, p.store, state.CallID, func(s *call.State) error {
		s.Append(call.PersonaAssistant, call.ActionSMS, content, call.StyleNone)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save SMS summary: %w", err)
	}
	return nil
}

// Recipients returns the caller number and the policyholder number of the
// claim, normalized and without duplicates.
func Recipients(state *call.State, log *zap.Logger) []string {
	candidates := []string{state.Initiate.PhoneNumber}
	if phone := strings.TrimSpace(state.Claim[ClaimPolicyholderPhone]); phone != "" {
		candidates = append(candidates, phone)
	}

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, candidate := range candidates {
		phone, err := validation.NormalizeE164(candidate)
		if err != nil {
			log.Warn("Skipping invalid SMS recipient", logger.MaskPhone("to", candidate), zap.Error(err))
			continue
		}
		if seen[phone] {
			continue
		}
		seen[phone] = true
		out = append(out, phone)
	}
	return out
}

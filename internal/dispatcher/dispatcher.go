// Package dispatcher turns batches of provider callbacks into orchestrator
// events, one call at a time.
package dispatcher

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/orchestrator"
	"github.com/troikatech/call-center/pkg/callautomation"
	"github.com/troikatech/call-center/pkg/metrics"
)

// ErrMalformed marks an envelope rejected before reaching the orchestrator.
var ErrMalformed = errors.New("malformed event")

// Envelope is one provider event addressed to a call through its callback
// URL.
type Envelope struct {
	CallID string
	Secret string
	Event  callautomation.CloudEvent
}

// Handler applies an event to a call state.
type Handler interface {
	Handle(ctx context.Context, state *call.State, ev orchestrator.Event) error
}

type Config struct {
	Store   call.Store
	Locker  call.Locker
	Deduper Deduper
	Handler Handler
	// Timeout bounds the handling of one envelope, lock wait included.
	Timeout time.Duration
	Logger  *zap.Logger
}

type Dispatcher struct {
	store   call.Store
	locker  call.Locker
	dedup   Deduper
	handler Handler
	timeout time.Duration
	logger  *zap.Logger
}

func New(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Dispatcher{
		store:   cfg.Store,
		locker:  cfg.Locker,
		dedup:   cfg.Deduper,
		handler: cfg.Handler,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// Decode validates an envelope and extracts the orchestrator event.
func Decode(env Envelope) (orchestrator.Event, error) {
	if _, err := uuid.Parse(env.CallID); err != nil {
		return orchestrator.Event{}, fmt.Errorf("%w: invalid call id %q", ErrMalformed, env.CallID)
	}
	if env.Event.Type == "" {
		return orchestrator.Event{}, fmt.Errorf("%w: missing event type", ErrMalformed)
	}
	var data callautomation.EventData
	if len(env.Event.Data) == 0 {
		return orchestrator.Event{}, fmt.Errorf("%w: missing event data", ErrMalformed)
	}
	if err := json.Unmarshal(env.Event.Data, &data); err != nil {
		return orchestrator.Event{}, fmt.Errorf("%w: invalid event data: %v", ErrMalformed, err)
	}
	if data.CallConnectionID == "" {
		return orchestrator.Event{}, fmt.Errorf("%w: missing callConnectionId", ErrMalformed)
	}

	ev := orchestrator.Event{
		ID:              env.Event.ID,
		Type:            env.Event.Type,
		VoiceID:         data.CallConnectionID,
		ServerCallID:    data.ServerCallID,
		RecognitionType: data.RecognitionType,
		SubCode:         data.SubCode(),
	}
	if data.ResultInformation != nil {
		ev.ResultMessage = data.ResultInformation.Message
	}
	if data.SpeechResult != nil {
		ev.Speech = data.SpeechResult.Speech
	}
	if data.ChoiceResult != nil {
		ev.ChoiceLabel = data.ChoiceResult.Label
	}
	// A bad context is logged by the caller and treated as no context
	contexts, err := call.ParseContexts(data.OperationContext)
	ev.Contexts = contexts
	return ev, err
}

// Dispatch processes a batch. Envelopes of different calls run concurrently,
// those of the same call run in batch order. Failures are logged, never
// returned: the provider must not retry a batch because of them.
func (d *Dispatcher) Dispatch(ctx context.Context, envelopes []Envelope) {
	// Provider disconnects must not cancel work in flight
	ctx = context.WithoutCancel(ctx)

	var order []string
	groups := make(map[string][]Envelope)
	for _, env := range envelopes {
		if _, ok := groups[env.CallID]; !ok {
			order = append(order, env.CallID)
		}
		groups[env.CallID] = append(groups[env.CallID], env)
	}

	var g errgroup.Group
	for _, callID := range order {
		group := groups[callID]
		g.Go(func() error {
			for _, env := range group {
				d.process(ctx, env)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) process(ctx context.Context, env Envelope) {
	eventType := callautomation.ShortEventType(env.Event.Type)
	log := d.logger.With(zap.String("call_id", env.CallID), zap.String("event_id", env.Event.ID), zap.String("event_type", eventType))

	ev, err := Decode(env)
	if errors.Is(err, ErrMalformed) {
		log.Warn("Rejected malformed event", zap.Error(err))
		metrics.RecordEvent(eventType, "malformed")
		return
	}
	if err != nil {
		log.Warn("Invalid operation context, ignoring it", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	release, err := d.locker.Acquire(ctx, call.LockKey(env.CallID))
	if err != nil {
		log.Error("Failed to lock call", zap.Error(err))
		return
	}
	defer release()

	state, err := d.store.Get(ctx, env.CallID)
	if err != nil {
		log.Error("Failed to load call", zap.Error(err))
		return
	}
	if state == nil {
		log.Warn("Call not found")
		metrics.RecordEvent(eventType, "unknown_call")
		return
	}
	if subtle.ConstantTimeCompare([]byte(state.CallbackSecret), []byte(env.Secret)) != 1 {
		log.Warn("Secret for call does not match")
		metrics.RecordEvent(eventType, "bad_secret")
		return
	}

	if ev.ID != "" && d.dedup != nil {
		seen, err := d.dedup.Seen(ctx, ev.ID)
		if err != nil {
			log.Warn("Event dedup failed, processing anyway", zap.Error(err))
		}
		if seen {
			log.Debug("Duplicate event, skipping")
			metrics.RecordEvent(eventType, "duplicate")
			return
		}
	}

	// Handler errors are logged by the handler, the state is persisted anyway
	_ = d.handler.Handle(ctx, state, ev)

	if err := d.store.Set(ctx, state); err != nil {
		log.Error("Failed to persist call", zap.Error(err))
	}
}

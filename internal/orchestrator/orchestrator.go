// Package orchestrator decides, for every event of a live call, the next
// action to take and applies it to the call state.
package orchestrator

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/callcontrol"
	"github.com/troikatech/call-center/internal/prompts"
	"github.com/troikatech/call-center/pkg/callautomation"
	"github.com/troikatech/call-center/pkg/metrics"
	"github.com/troikatech/call-center/pkg/otel"
)

// Event is a decoded provider event for one call.
type Event struct {
	ID              string
	Type            string
	VoiceID         string
	ServerCallID    string
	Contexts        call.Contexts
	RecognitionType string
	Speech          string
	ChoiceLabel     string
	SubCode         int
	ResultMessage   string
}

// Features exposes the runtime-tunable values read on every decision.
type Features interface {
	RecognitionRetryMax(ctx context.Context) int
	RecordingEnabled(ctx context.Context) bool
}

// Conversation answers what the caller said. It mutates state in place.
type Conversation interface {
	OnSpeech(ctx context.Context, state *call.State, text string) error
}

// Trigger hands an ended call to the downstream jobs.
type Trigger interface {
	CallEnded(ctx context.Context, state *call.State)
}

type handlerFunc func(ctx context.Context, state *call.State, ev Event, log *zap.Logger) error

type transition struct {
	event  string
	name   string
	when   func(Event) bool
	handle handlerFunc
}

type Config struct {
	Controller   callcontrol.Controller
	Dialer       callcontrol.Dialer
	Conversation Conversation
	Trigger      Trigger
	Features     Features
	Prompts      *prompts.Catalog
	Store        call.Store
	Locker       call.Locker
	// Defaults is the initiate snapshot of calls started by the caller.
	Defaults call.Initiate
	// PublicURL is the base of the callback URLs given to the provider.
	PublicURL string
	Logger    *zap.Logger
}

type Orchestrator struct {
	controller   callcontrol.Controller
	dialer       callcontrol.Dialer
	conversation Conversation
	trigger      Trigger
	features     Features
	prompts      *prompts.Catalog
	store        call.Store
	locker       call.Locker
	defaults     call.Initiate
	publicURL    string
	logger       *zap.Logger
	transitions  []transition
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		controller:   cfg.Controller,
		dialer:       cfg.Dialer,
		conversation: cfg.Conversation,
		trigger:      cfg.Trigger,
		features:     cfg.Features,
		prompts:      cfg.Prompts,
		store:        cfg.Store,
		locker:       cfg.Locker,
		defaults:     cfg.Defaults,
		publicURL:    strings.TrimRight(cfg.PublicURL, "/"),
		logger:       cfg.Logger,
	}
	o.transitions = o.newTransitions()
	return o
}

// newTransitions returns the decision table. The first matching row wins.
func (o *Orchestrator) newTransitions() []transition {
	return []transition{
		{callautomation.EventCallConnected, "call_connected", nil, o.onCallConnected},
		{callautomation.EventCallDisconnected, "call_disconnected", nil, o.onCallDisconnected},
		{callautomation.EventRecognizeCompleted, "speech_recognized", recognitionIs(callautomation.RecognitionSpeech), o.onSpeechRecognized},
		{callautomation.EventRecognizeCompleted, "ivr_recognized", recognitionIs(callautomation.RecognitionChoices), o.onIVRRecognized},
		{callautomation.EventRecognizeFailed, "recognize_timeout", isRecognizeTimeout, o.onRecognizeTimeout},
		{callautomation.EventRecognizeFailed, "recognize_error", nil, o.onRecognizeError},
		{callautomation.EventPlayCompleted, "play_completed_end", hasAnyTag(call.ContextGoodbye, call.ContextTransferFailed), o.onPlayCompletedEnd},
		{callautomation.EventPlayCompleted, "play_completed_transfer", hasAnyTag(call.ContextConnectAgent), o.onPlayCompletedTransfer},
		{callautomation.EventPlayCompleted, "play_completed", nil, noop},
		{callautomation.EventPlayFailed, "play_failed", nil, o.onPlayFailed},
		{callautomation.EventCallTransferAccepted, "transfer_accepted", nil, o.onTransferAccepted},
		{callautomation.EventCallTransferFailed, "transfer_failed", nil, o.onTransferFailed},
	}
}

func recognitionIs(kind string) func(Event) bool {
	return func(ev Event) bool { return ev.RecognitionType == kind }
}

func hasAnyTag(tags ...call.Context) func(Event) bool {
	return func(ev Event) bool {
		for _, tag := range tags {
			if ev.Contexts.Has(tag) {
				return true
			}
		}
		return false
	}
}

// Route returns the name of the transition ev matches, false when the event
// is not handled.
func (o *Orchestrator) Route(ev Event) (string, bool) {
	t := o.match(ev)
	if t == nil {
		return "", false
	}
	return t.name, true
}

func (o *Orchestrator) match(ev Event) *transition {
	for i := range o.transitions {
		t := &o.transitions[i]
		if t.event == ev.Type && (t.when == nil || t.when(ev)) {
			return t
		}
	}
	return nil
}

// Handle applies ev to state. The caller persists state afterwards, whatever
// the outcome.
func (o *Orchestrator) Handle(ctx context.Context, state *call.State, ev Event) error {
	if ev.VoiceID != "" {
		state.VoiceID = ev.VoiceID
	}
	if ev.ServerCallID != "" {
		state.ServerCallID = ev.ServerCallID
	}

	eventType := callautomation.ShortEventType(ev.Type)
	log := o.logger.With(zap.String("call_id", state.CallID), zap.String("event_type", eventType))

	t := o.match(ev)
	if t == nil {
		log.Debug("Event not handled")
		metrics.RecordEvent(eventType, "ignored")
		return nil
	}

	ctx, span := otel.StartSpan(ctx, "orchestrator."+t.name,
		attribute.String("call.id", state.CallID),
		attribute.String("call.event_type", eventType),
	)
	err := t.handle(ctx, state, ev, log)
	otel.EndSpan(span, err)

	outcome := t.name
	if err != nil {
		outcome = "error"
		log.Error("Event handler failed", zap.String("transition", t.name), zap.Error(err))
	}
	metrics.RecordEvent(eventType, outcome)
	return err
}

func noop(context.Context, *call.State, Event, *zap.Logger) error {
	return nil
}

package orchestrator

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/callcontrol"
	"github.com/troikatech/call-center/internal/prompts"
	"github.com/troikatech/call-center/pkg/lock"
)

type action struct {
	op      string
	voiceID string
	target  string
	prompt  callcontrol.Prompt
	choices []callcontrol.Choice
	tags    call.Contexts
}

type fakeController struct {
	mu       sync.Mutex
	actions  []action
	playErr  error
	dialErr  error
	answered []string
}

func (f *fakeController) record(a action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
}

func (f *fakeController) ops(op string) []action {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []action
	for _, a := range f.actions {
		if a.op == op {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeController) Play(_ context.Context, voiceID string, prompt callcontrol.Prompt, tags call.Contexts) error {
	f.record(action{op: "play", voiceID: voiceID, prompt: prompt, tags: tags})
	return f.playErr
}

func (f *fakeController) RecognizeChoices(_ context.Context, voiceID, participant string, prompt callcontrol.Prompt, choices []callcontrol.Choice, tags call.Contexts) error {
	f.record(action{op: "recognize_choices", voiceID: voiceID, target: participant, prompt: prompt, choices: choices, tags: tags})
	return nil
}

func (f *fakeController) RecognizeSpeech(_ context.Context, voiceID, participant string, prompt callcontrol.Prompt, tags call.Contexts) error {
	f.record(action{op: "recognize_speech", voiceID: voiceID, target: participant, prompt: prompt, tags: tags})
	return nil
}

func (f *fakeController) Transfer(_ context.Context, voiceID, target string, tags call.Contexts) error {
	f.record(action{op: "transfer", voiceID: voiceID, target: target, tags: tags})
	return nil
}

func (f *fakeController) Hangup(_ context.Context, voiceID string) error {
	f.record(action{op: "hangup", voiceID: voiceID})
	return nil
}

func (f *fakeController) StartRecording(_ context.Context, serverCallID string) error {
	f.record(action{op: "recording", target: serverCallID})
	return nil
}

func (f *fakeController) StartMediaStreaming(_ context.Context, voiceID string) error {
	f.record(action{op: "streaming", voiceID: voiceID})
	return nil
}

func (f *fakeController) AnswerCall(_ context.Context, _, callbackURL string) (*callcontrol.Connection, error) {
	f.mu.Lock()
	f.answered = append(f.answered, callbackURL)
	f.mu.Unlock()
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return &callcontrol.Connection{VoiceID: "voice-1"}, nil
}

func (f *fakeController) CreateCall(_ context.Context, _, callbackURL string) (*callcontrol.Connection, error) {
	return f.AnswerCall(context.Background(), "", callbackURL)
}

type fakeFeatures struct {
	retryMax  int
	recording bool
}

func (f fakeFeatures) RecognitionRetryMax(context.Context) int { return f.retryMax }
func (f fakeFeatures) RecordingEnabled(context.Context) bool   { return f.recording }

type fakeTrigger struct {
	mu    sync.Mutex
	ended []*call.State
}

func (f *fakeTrigger) CallEnded(_ context.Context, state *call.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, state)
}

type fakeConversation struct {
	texts []string
}

func (f *fakeConversation) OnSpeech(_ context.Context, _ *call.State, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

var (
	french  = call.Language{ShortCode: "fr-FR", DisplayName: "Français", Pronunciations: []string{"French"}, Voice: "fr-FR-DeniseNeural"}
	english = call.Language{ShortCode: "en-US", DisplayName: "English", Pronunciations: []string{"English"}, Voice: "en-US-AvaNeural"}
)

type harness struct {
	orch         *Orchestrator
	controller   *fakeController
	trigger      *fakeTrigger
	conversation *fakeConversation
	store        *call.MemoryStore
}

func newHarness(t *testing.T, features fakeFeatures, languages ...call.Language) *harness {
	t.Helper()
	catalog, err := prompts.NewCatalog(nil)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	if len(languages) == 0 {
		languages = []call.Language{french, english}
	}
	h := &harness{
		controller:   &fakeController{},
		trigger:      &fakeTrigger{},
		conversation: &fakeConversation{},
		store:        call.NewMemoryStore(),
	}
	h.orch = New(Config{
		Controller:   h.controller,
		Dialer:       h.controller,
		Conversation: h.conversation,
		Trigger:      h.trigger,
		Features:     features,
		Prompts:      catalog,
		Store:        h.store,
		Locker:       lock.NewKeyedMutex(),
		Defaults: call.Initiate{
			AgentPhoneNumber: "+33100000000",
			BotCompany:       "Contoso",
			BotName:          "Amelie",
			Lang:             call.LanguageConfig{DefaultShortCode: languages[0].ShortCode, Availables: languages},
		},
		PublicURL: "https://calls.example.com/",
		Logger:    zap.NewNop(),
	})
	return h
}

// newCall returns a persisted call connected on voice-1.
func (h *harness) newCall(t *testing.T) *call.State {
	t.Helper()
	initiate := h.orch.defaults
	initiate.PhoneNumber = "+33612345678"
	state, err := call.New(initiate)
	if err != nil {
		t.Fatalf("call.New() error = %v", err)
	}
	state.VoiceID = "voice-1"
	if err := h.store.Set(context.Background(), state); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	return state
}

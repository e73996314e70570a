package intelligence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/pkg/ai"
	"github.com/troikatech/call-center/pkg/lock"
	"github.com/troikatech/call-center/pkg/retry"
)

const (
	validNext      = `{"action":"requires_expertise","justification":"Damage above 5000 euros"}`
	validSynthesis = "```json\n{\"long_summary\":\"Car hit in a parking lot\",\"short_summary\":\"Parking damage\",\"satisfaction\":\"high\",\"improvement_suggestions\":\"\"}\n```"
)

// scriptedLLM answers each task with its own queue of answers. The last
// answer repeats once the queue is exhausted.
type scriptedLLM struct {
	mu      sync.Mutex
	answers map[string][]string
	calls   map[string]int
}

func newScriptedLLM(next, synthesis, sms []string) *scriptedLLM {
	return &scriptedLLM{
		answers: map[string][]string{"next": next, "synthesis": synthesis, "sms": sms},
		calls:   map[string]int{},
	}
}

func task(system string) string {
	switch {
	case strings.Contains(system, "Decide the next action"):
		return "next"
	case strings.Contains(system, "Synthesize the call"):
		return "synthesis"
	default:
		return "sms"
	}
}

func (s *scriptedLLM) Complete(_ context.Context, req *ai.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := task(req.System)
	answers := s.answers[kind]
	i := s.calls[kind]
	s.calls[kind]++
	if len(answers) == 0 {
		return "", errors.New("provider down")
	}
	if i >= len(answers) {
		i = len(answers) - 1
	}
	return answers[i], nil
}

func (s *scriptedLLM) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

type fakeSender struct {
	mu   sync.Mutex
	sent map[string]string
	fail map[string]bool
}

func (f *fakeSender) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return errors.New("undeliverable")
	}
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[to] = body
	return nil
}

type pipelineHarness struct {
	pipeline *Pipeline
	store    *call.MemoryStore
	state    *call.State
}

func newPipelineHarness(t *testing.T, llm Completer, sender Sender, policyholder string) *pipelineHarness {
	t.Helper()
	store := call.NewMemoryStore()
	state, err := call.New(call.Initiate{PhoneNumber: "+33612345678", BotName: "Amelie", BotCompany: "Contoso"})
	if err != nil {
		t.Fatalf("call.New() error = %v", err)
	}
	state.Append(call.PersonaHuman, call.ActionCall, "", call.StyleNone)
	state.Append(call.PersonaAssistant, call.ActionTalk, "Hello, how can I help?", call.StyleNone)
	state.Append(call.PersonaHuman, call.ActionTalk, "My car was hit", call.StyleNone)
	state.Append(call.PersonaHuman, call.ActionHangup, "", call.StyleNone)
	if policyholder != "" {
		state.Claim[ClaimPolicyholderPhone] = policyholder
	}
	if err := store.Set(context.Background(), state); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	p := New(Config{
		LLM:    llm,
		SMS:    sender,
		Store:  store,
		Locker: lock.NewKeyedMutex(),
		Retry:  retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		Logger: zap.NewNop(),
	})
	return &pipelineHarness{pipeline: p, store: store, state: state}
}

func (h *pipelineHarness) stored(t *testing.T) *call.State {
	t.Helper()
	state, err := h.store.Get(context.Background(), h.state.CallID)
	if err != nil || state == nil {
		t.Fatalf("Get() = %v, %v", state, err)
	}
	return state
}

func TestPipeline_Process(t *testing.T) {
	llm := newScriptedLLM([]string{validNext}, []string{validSynthesis}, []string{"[action=talk][style=cheerful] Your claim is registered."})
	sender := &fakeSender{}
	h := newPipelineHarness(t, llm, sender, "+33 7 00 00 00 01")

	if err := h.pipeline.Process(context.Background(), h.state); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got := h.stored(t)
	if got.Next == nil || got.Next.Action != call.NextRequiresExpertise {
		t.Errorf("Next = %+v, want requires_expertise", got.Next)
	}
	if got.Synthesis == nil || got.Synthesis.Satisfaction != call.SatisfactionHigh || got.Synthesis.ShortSummary != "Parking damage" {
		t.Errorf("Synthesis = %+v", got.Synthesis)
	}
	last := got.LastMessage()
	if last.Persona != call.PersonaAssistant || last.Action != call.ActionSMS || last.Content != "Your claim is registered." {
		t.Errorf("last message = %+v, want SMS without markers", last)
	}
	if len(sender.sent) != 2 || sender.sent["+33612345678"] == "" || sender.sent["+33700000001"] == "" {
		t.Errorf("sent = %v, want caller and policyholder", sender.sent)
	}
}

func TestPipeline_SkipsCallsWithoutInteraction(t *testing.T) {
	llm := newScriptedLLM([]string{validNext}, []string{validSynthesis}, []string{"hi"})
	h := newPipelineHarness(t, llm, &fakeSender{}, "")
	state := h.state.Clone()
	state.Messages = []call.Message{
		{Persona: call.PersonaHuman, Action: call.ActionCall},
		{Persona: call.PersonaAssistant, Action: call.ActionTalk, Content: "Hello"},
		{Persona: call.PersonaHuman, Action: call.ActionHangup},
	}

	if err := h.pipeline.Process(context.Background(), state); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for _, kind := range []string{"next", "synthesis", "sms"} {
		if n := llm.count(kind); n != 0 {
			t.Errorf("%s completions = %d, want 0", kind, n)
		}
	}
}

func TestPipeline_SynthesisValidation(t *testing.T) {
	invalid := `{"long_summary":"x","short_summary":"y","satisfaction":"great","improvement_suggestions":""}`

	tests := []struct {
		name      string
		answers   []string
		wantSaved bool
		wantCalls int
	}{
		{name: "valid at once", answers: []string{validSynthesis}, wantSaved: true, wantCalls: 1},
		{name: "valid after retry", answers: []string{invalid, "not json", validSynthesis}, wantSaved: true, wantCalls: 3},
		{name: "never valid", answers: []string{invalid}, wantSaved: false, wantCalls: 3},
		{name: "empty", answers: []string{""}, wantSaved: false, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newScriptedLLM([]string{validNext}, tt.answers, []string{"ok"})
			h := newPipelineHarness(t, llm, &fakeSender{}, "")

			if err := h.pipeline.Process(context.Background(), h.state); err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got := h.stored(t).Synthesis != nil; got != tt.wantSaved {
				t.Errorf("synthesis saved = %v, want %v", got, tt.wantSaved)
			}
			if got := llm.count("synthesis"); got != tt.wantCalls {
				t.Errorf("synthesis completions = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestPipeline_NextRejectsUnknownAction(t *testing.T) {
	llm := newScriptedLLM([]string{`{"action":"send_flowers","justification":"nice"}`}, []string{validSynthesis}, []string{"ok"})
	h := newPipelineHarness(t, llm, &fakeSender{}, "")

	if err := h.pipeline.Process(context.Background(), h.state); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := h.stored(t); got.Next != nil {
		t.Errorf("Next = %+v, want nil", got.Next)
	}
}

func TestPipeline_ProviderFailureIsNotRetried(t *testing.T) {
	llm := newScriptedLLM(nil, []string{validSynthesis}, []string{"ok"})
	h := newPipelineHarness(t, llm, &fakeSender{}, "")

	if err := h.pipeline.Process(context.Background(), h.state); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := llm.count("next"); got != 1 {
		t.Errorf("next completions = %d, want 1", got)
	}
	if got := h.stored(t); got.Next != nil || got.Synthesis == nil {
		t.Errorf("stored = next %+v synthesis %+v", got.Next, got.Synthesis)
	}
}

func TestPipeline_SMSDelivery(t *testing.T) {
	tests := []struct {
		name         string
		policyholder string
		fail         map[string]bool
		wantSent     int
		wantLogged   bool
	}{
		{name: "same number once", policyholder: "0033612345678", wantSent: 1, wantLogged: true},
		{name: "one recipient fails", policyholder: "+33700000001", fail: map[string]bool{"+33612345678": true}, wantSent: 1, wantLogged: true},
		{name: "every recipient fails", policyholder: "+33700000001", fail: map[string]bool{"+33612345678": true, "+33700000001": true}, wantSent: 0, wantLogged: false},
		{name: "invalid policyholder skipped", policyholder: "call me", wantSent: 1, wantLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newScriptedLLM([]string{validNext}, []string{validSynthesis}, []string{"Claim registered."})
			sender := &fakeSender{fail: tt.fail}
			h := newPipelineHarness(t, llm, sender, tt.policyholder)

			if err := h.pipeline.Process(context.Background(), h.state); err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(sender.sent) != tt.wantSent {
				t.Errorf("sent = %v, want %d", sender.sent, tt.wantSent)
			}
			last := h.stored(t).LastMessage()
			if got := last.Action == call.ActionSMS; got != tt.wantLogged {
				t.Errorf("SMS logged = %v, want %v", got, tt.wantLogged)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "```\n{\"a\":1}```", want: `{"a":1}`},
		{in: "  ", want: ""},
	}

	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

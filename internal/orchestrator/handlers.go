package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/internal/callcontrol"
	"github.com/troikatech/call-center/internal/prompts"
)

func (o *Orchestrator) onCallConnected(ctx context.Context, state *call.State, _ Event, log *zap.Logger) error {
	log.Info("Call connected, asking for language")
	state.ResetRetry()
	state.Append(call.PersonaHuman, call.ActionCall, "", call.StyleNone)
	state.InProgress = true

	snapshot := state.Clone()
	serverCallID := state.ServerCallID

	var g errgroup.Group
	g.Go(func() error { return o.startLanguageSelection(ctx, state, log) })
	g.Go(func() error { return o.store.Set(ctx, snapshot) })
	g.Go(func() error { return o.startRecording(ctx, serverCallID, log) })
	return g.Wait()
}

func (o *Orchestrator) onCallDisconnected(ctx context.Context, state *call.State, _ Event, log *zap.Logger) error {
	log.Info("Call disconnected")
	o.endCall(ctx, state, log)
	return nil
}

func (o *Orchestrator) onSpeechRecognized(ctx context.Context, state *call.State, ev Event, log *zap.Logger) error {
	if ev.Speech == "" {
		log.Debug("Empty speech recognized, ignoring")
		return nil
	}
	log.Info("Speech recognized", zap.Int("length", len(ev.Speech)))
	state.ResetRetry()
	return o.conversation.OnSpeech(ctx, state, ev.Speech)
}

func (o *Orchestrator) onRecognizeError(ctx context.Context, state *call.State, ev Event, log *zap.Logger) error {
	if ev.SubCode == subCodePromptPlayFailed {
		log.Warn("Failed to play prompt")
	} else {
		log.Warn("Recognition failed with unknown error code, answering with default error",
			zap.Int("sub_code", ev.SubCode),
			zap.String("message", ev.ResultMessage),
		)
	}

	// The error prompt never enters the history
	text, err := o.prompts.TTS(prompts.Error, state)
	if err != nil {
		return err
	}
	return o.recognizeSpeech(ctx, state, text)
}

func (o *Orchestrator) onPlayCompletedEnd(ctx context.Context, state *call.State, _ Event, log *zap.Logger) error {
	log.Info("Ending call")
	return o.hangup(ctx, state, log)
}

func (o *Orchestrator) onPlayCompletedTransfer(ctx context.Context, state *call.State, _ Event, log *zap.Logger) error {
	target := state.Initiate.AgentPhoneNumber
	if target == "" {
		return fmt.Errorf("no agent phone number configured for transfer")
	}
	log.Info("Initiating call transfer")
	return o.controller.Transfer(ctx, state.VoiceID, target, nil)
}

func (o *Orchestrator) onPlayFailed(_ context.Context, _ *call.State, ev Event, log *zap.Logger) error {
	f := classifyPlayFailure(ev.SubCode)
	log.Check(f.level, f.message).Write(zap.Int("sub_code", ev.SubCode))
	return nil
}

func (o *Orchestrator) onTransferAccepted(_ context.Context, _ *call.State, _ Event, log *zap.Logger) error {
	log.Info("Call transfer accepted event")
	return nil
}

func (o *Orchestrator) onTransferFailed(ctx context.Context, state *call.State, ev Event, log *zap.Logger) error {
	log.Info("Error during call transfer", zap.Int("sub_code", ev.SubCode))
	text, err := o.prompts.TTS(prompts.TransferFailure, state)
	if err != nil {
		return err
	}
	return o.play(ctx, state, text, call.StyleNone, call.Contexts{call.ContextTransferFailed}, true)
}

// hangup terminates the connection then ends the call.
func (o *Orchestrator) hangup(ctx context.Context, state *call.State, log *zap.Logger) error {
	err := o.controller.Hangup(ctx, state.VoiceID)
	o.endCall(ctx, state, log)
	return err
}

// endCall records the hangup and hands the call to the downstream jobs once.
// A call whose log already ends with the hangup is left untouched.
func (o *Orchestrator) endCall(ctx context.Context, state *call.State, log *zap.Logger) {
	state.InProgress = false
	if state.Ended() {
		log.Debug("Call already ended, skipping")
		return
	}
	state.Append(call.PersonaHuman, call.ActionHangup, "", call.StyleNone)
	o.trigger.CallEnded(ctx, state.Clone())
}

func (o *Orchestrator) goodbye(ctx context.Context, state *call.State) error {
	text, err := o.prompts.TTS(prompts.Goodbye, state)
	if err != nil {
		return err
	}
	return o.play(ctx, state, text, call.StyleNone, call.Contexts{call.ContextGoodbye}, false)
}

// play speaks text. When store is set and the provider accepted the request
// the text is appended to the log as an assistant message.
func (o *Orchestrator) play(ctx context.Context, state *call.State, text string, style call.Style, tags call.Contexts, store bool) error {
	prompt := callcontrol.Prompt{Text: text, Style: style, Lang: state.Language()}
	if err := o.controller.Play(ctx, state.VoiceID, prompt, tags); err != nil {
		return err
	}
	if store {
		state.Append(call.PersonaAssistant, call.ActionTalk, text, style)
	}
	return nil
}

// recognizeSpeech speaks text then listens with an open microphone. The text
// is not added to the log.
func (o *Orchestrator) recognizeSpeech(ctx context.Context, state *call.State, text string) error {
	prompt := callcontrol.Prompt{Text: text, Style: call.StyleNone, Lang: state.Language()}
	return o.controller.RecognizeSpeech(ctx, state.VoiceID, state.Initiate.PhoneNumber, prompt, nil)
}

func (o *Orchestrator) startRecording(ctx context.Context, serverCallID string, log *zap.Logger) error {
	if !o.features.RecordingEnabled(ctx) {
		return nil
	}
	if serverCallID == "" {
		log.Warn("Recording enabled but the server call id is unknown")
		return nil
	}
	return o.controller.StartRecording(ctx, serverCallID)
}

// Package callcontrol defines the actions the call engine can take on a live
// call and implements them on top of the call automation API.
package callcontrol

import (
	"context"

	"github.com/troikatech/call-center/internal/call"
)

// Prompt is a sentence spoken to the caller.
type Prompt struct {
	Text  string
	Style call.Style
	Lang  call.Language
}

// Choice is one entry of a choices recognition. Tone is the DTMF digit, 1..9.
type Choice struct {
	Label   string
	Phrases []string
	Tone    int
}

// Controller acts on a live call connection.
type Controller interface {
	Play(ctx context.Context, voiceID string, prompt Prompt, tags call.Contexts) error
	RecognizeChoices(ctx context.Context, voiceID, participant string, prompt Prompt, choices []Choice, tags call.Contexts) error
	// RecognizeSpeech plays prompt then listens to the caller with an open
	// microphone.
	RecognizeSpeech(ctx context.Context, voiceID, participant string, prompt Prompt, tags call.Contexts) error
	Transfer(ctx context.Context, voiceID, target string, tags call.Contexts) error
	Hangup(ctx context.Context, voiceID string) error
	StartRecording(ctx context.Context, serverCallID string) error
	StartMediaStreaming(ctx context.Context, voiceID string) error
}

// Connection identifies a call connection created or answered by a Dialer.
type Connection struct {
	VoiceID      string
	ServerCallID string
}

// Dialer establishes call connections.
type Dialer interface {
	AnswerCall(ctx context.Context, incomingContext, callbackURL string) (*Connection, error)
	CreateCall(ctx context.Context, target, callbackURL string) (*Connection, error)
}

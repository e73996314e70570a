package callcontrol

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/pkg/callautomation"
	"github.com/troikatech/call-center/pkg/logger"
)

// maxPromptChars is the longest text sent in a single play source.
const maxPromptChars = 400

var toneNames = []string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// Automation is the subset of the call automation client used here.
type Automation interface {
	Play(ctx context.Context, callConnectionID string, req callautomation.PlayRequest) error
	Recognize(ctx context.Context, callConnectionID string, req callautomation.RecognizeRequest) error
	TransferToParticipant(ctx context.Context, callConnectionID string, req callautomation.TransferRequest) error
	Terminate(ctx context.Context, callConnectionID string) error
	StartMediaStreaming(ctx context.Context, callConnectionID string, req callautomation.MediaStreamingRequest) error
	StartRecording(ctx context.Context, req callautomation.StartRecordingRequest) (*callautomation.RecordingState, error)
	AnswerCall(ctx context.Context, req callautomation.AnswerRequest) (*callautomation.CallConnection, error)
	CreateCall(ctx context.Context, req callautomation.CreateCallRequest) (*callautomation.CallConnection, error)
}

// SilenceTimeouts supplies the initial silence timeout of recognitions.
type SilenceTimeouts interface {
	SilenceTimeoutSec(ctx context.Context) int
}

type ACSConfig struct {
	SourceNumber              string
	CognitiveServicesEndpoint string
	RecordingContainerURL     string
	MediaStreamingURL         string
}

// ACS implements Controller and Dialer with Azure Communication Services.
type ACS struct {
	client   Automation
	config   ACSConfig
	timeouts SilenceTimeouts
	logger   *zap.Logger
}

func NewACS(client Automation, config ACSConfig, timeouts SilenceTimeouts, logger *zap.Logger) *ACS {
	return &ACS{client: client, config: config, timeouts: timeouts, logger: logger}
}

func (a *ACS) Play(ctx context.Context, voiceID string, prompt Prompt, tags call.Contexts) error {
	if strings.TrimSpace(prompt.Text) == "" {
		return fmt.Errorf("empty prompt")
	}
	chunks := splitText(prompt.Text, maxPromptChars)
	sources := make([]callautomation.PlaySource, len(chunks))
	for i, chunk := range chunks {
		sources[i] = playSource(Prompt{Text: chunk, Style: prompt.Style, Lang: prompt.Lang})
	}
	err := a.client.Play(ctx, voiceID, callautomation.PlayRequest{
		PlaySources:      sources,
		OperationContext: tags.Encode(),
	})
	return a.check("play", voiceID, err)
}

func (a *ACS) RecognizeChoices(ctx context.Context, voiceID, participant string, prompt Prompt, choices []Choice, tags call.Contexts) error {
	acsChoices := make([]callautomation.Choice, len(choices))
	for i, c := range choices {
		acsChoices[i] = callautomation.Choice{Label: c.Label, Phrases: c.Phrases, Tone: toneName(c.Tone)}
	}
	req := a.recognizeRequest(ctx, callautomation.RecognizeInputChoices, participant, prompt, tags)
	req.RecognizeOptions.Choices = acsChoices
	return a.check("recognize", voiceID, a.client.Recognize(ctx, voiceID, req))
}

func (a *ACS) RecognizeSpeech(ctx context.Context, voiceID, participant string, prompt Prompt, tags call.Contexts) error {
	req := a.recognizeRequest(ctx, callautomation.RecognizeInputSpeech, participant, prompt, tags)
	req.RecognizeOptions.SpeechOptions = &callautomation.SpeechOptions{EndSilenceTimeoutInMs: 1000}
	return a.check("recognize", voiceID, a.client.Recognize(ctx, voiceID, req))
}

func (a *ACS) recognizeRequest(ctx context.Context, input, participant string, prompt Prompt, tags call.Contexts) callautomation.RecognizeRequest {
	req := callautomation.RecognizeRequest{
		RecognizeInputType:          input,
		InterruptCallMediaOperation: true,
		RecognizeOptions: callautomation.RecognizeOptions{
			InterruptPrompt:   true,
			TargetParticipant: callautomation.PhoneIdentifier(participant),
			SpeechLanguage:    prompt.Lang.ShortCode,
		},
		OperationContext: tags.Encode(),
	}
	if a.timeouts != nil {
		req.RecognizeOptions.InitialSilenceTimeoutInSeconds = a.timeouts.SilenceTimeoutSec(ctx)
	}
	if prompt.Text != "" {
		// A recognition carries a single prompt, longer texts are cut at a
		// sentence boundary
		text := splitText(prompt.Text, maxPromptChars)[0]
		source := playSource(Prompt{Text: text, Style: prompt.Style, Lang: prompt.Lang})
		req.PlayPrompt = &source
	}
	return req
}

func (a *ACS) Transfer(ctx context.Context, voiceID, target string, tags call.Contexts) error {
	err := a.client.TransferToParticipant(ctx, voiceID, callautomation.TransferRequest{
		TargetParticipant: callautomation.PhoneIdentifier(target),
		OperationContext:  tags.Encode(),
	})
	return a.check("transfer", voiceID, err)
}

func (a *ACS) Hangup(ctx context.Context, voiceID string) error {
	err := a.client.Terminate(ctx, voiceID)
	if callautomation.IsNotFound(err) {
		a.logger.Debug("Call already hung up", zap.String("voice_id", voiceID))
		return nil
	}
	return a.check("hangup", voiceID, err)
}

func (a *ACS) StartRecording(ctx context.Context, serverCallID string) error {
	req := callautomation.StartRecordingRequest{
		CallLocator:          callautomation.CallLocator{Kind: "serverCallLocator", ServerCallID: serverCallID},
		RecordingContentType: "audio",
		RecordingChannelType: "unmixed",
		RecordingFormatType:  "wav",
	}
	if a.config.RecordingContainerURL != "" {
		req.RecordingStorage = &callautomation.RecordingStorage{
			Kind:         "azureBlobStorage",
			ContainerURL: a.config.RecordingContainerURL,
		}
	}
	state, err := a.client.StartRecording(ctx, req)
	if err := a.check("start_recording", serverCallID, err); err != nil {
		return err
	}
	a.logger.Info("Recording started",
		zap.String("server_call_id", serverCallID),
		zap.String("recording_id", state.RecordingID),
	)
	return nil
}

func (a *ACS) StartMediaStreaming(ctx context.Context, voiceID string) error {
	if a.config.MediaStreamingURL == "" {
		return nil
	}
	err := a.client.StartMediaStreaming(ctx, voiceID, callautomation.MediaStreamingRequest{})
	return a.check("start_media_streaming", voiceID, err)
}

func (a *ACS) AnswerCall(ctx context.Context, incomingContext, callbackURL string) (*Connection, error) {
	req := callautomation.AnswerRequest{
		IncomingCallContext: incomingContext,
		CallbackURI:         callbackURL,
	}
	a.bootstrapOptions(&req.CallIntelligenceOptions, &req.MediaStreamingOptions)
	conn, err := a.client.AnswerCall(ctx, req)
	if err := a.check("answer", "", err); err != nil {
		return nil, err
	}
	return &Connection{VoiceID: conn.CallConnectionID, ServerCallID: conn.ServerCallID}, nil
}

func (a *ACS) CreateCall(ctx context.Context, target, callbackURL string) (*Connection, error) {
	req := callautomation.CreateCallRequest{
		Targets:     []callautomation.Identifier{callautomation.PhoneIdentifier(target)},
		CallbackURI: callbackURL,
	}
	if a.config.SourceNumber != "" {
		req.SourceCallerIDNumber = &callautomation.PhoneNumber{Value: a.config.SourceNumber}
	}
	a.bootstrapOptions(&req.CallIntelligenceOptions, &req.MediaStreamingOptions)
	conn, err := a.client.CreateCall(ctx, req)
	if err := a.check("create_call", "", err); err != nil {
		return nil, err
	}
	a.logger.Info("Created call", zap.String("voice_id", conn.CallConnectionID), logger.MaskPhone("target", target))
	return &Connection{VoiceID: conn.CallConnectionID, ServerCallID: conn.ServerCallID}, nil
}

func (a *ACS) bootstrapOptions(intelligence **callautomation.CallIntelligenceOptions, streaming **callautomation.MediaStreamingOptions) {
	if a.config.CognitiveServicesEndpoint != "" {
		*intelligence = &callautomation.CallIntelligenceOptions{CognitiveServicesEndpoint: a.config.CognitiveServicesEndpoint}
	}
	if a.config.MediaStreamingURL != "" {
		*streaming = callautomation.UnmixedAudioStreaming(a.config.MediaStreamingURL)
	}
}

// check logs a failed action by kind and returns err unchanged.
func (a *ACS) check(operation, voiceID string, err error) error {
	if err == nil {
		return nil
	}
	fields := []zap.Field{zap.String("operation", operation), zap.String("voice_id", voiceID), zap.Error(err)}
	switch {
	case callautomation.IsStaleEvent(err):
		a.logger.Debug("Old call event received, ignoring", fields...)
	case callautomation.IsAuthError(err):
		a.logger.Error("Authentication error with Communication Services, check the credentials", fields...)
	default:
		a.logger.Error("Call automation action failed", fields...)
	}
	return err
}

func toneName(tone int) string {
	if tone < 0 || tone >= len(toneNames) {
		return ""
	}
	return toneNames[tone]
}

func playSource(prompt Prompt) callautomation.PlaySource {
	if prompt.Style == "" || prompt.Style == call.StyleNone {
		return callautomation.TextPlaySource(prompt.Text, prompt.Lang.ShortCode, prompt.Lang.Voice)
	}
	return callautomation.SSMLPlaySource(ssml(prompt))
}

// ssml wraps the text in an express-as element carrying the speaking style.
func ssml(prompt Prompt) string {
	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="%s"><voice name="%s"><mstts:express-as style="%s" styledegree="0.5">%s</mstts:express-as></voice></speak>`,
		escapeXML(prompt.Lang.ShortCode),
		escapeXML(prompt.Lang.Voice),
		escapeXML(string(prompt.Style)),
		escapeXML(prompt.Text),
	)
}

// escapeXML escapes s for element text and double-quoted attribute values.
func escapeXML(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// splitText cuts text into chunks of at most max bytes, preferring sentence
// then word boundaries.
func splitText(text string, max int) []string {
	text = strings.TrimSpace(text)
	var chunks []string
	for len(text) > max {
		cut := strings.LastIndexAny(text[:max], ".!?")
		if cut <= 0 {
			cut = strings.LastIndex(text[:max], " ")
		}
		if cut <= 0 {
			cut = max - 1
			for cut > 0 && !utf8.RuneStart(text[cut+1]) {
				cut--
			}
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut+1]))
		text = strings.TrimSpace(text[cut+1:])
	}
	if text != "" || len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

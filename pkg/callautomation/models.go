package callautomation

// PhoneNumber is a PSTN participant identifier.
type PhoneNumber struct {
	Value string `json:"value"`
}

// Identifier designates a call participant.
type Identifier struct {
	Kind        string       `json:"kind"`
	PhoneNumber *PhoneNumber `json:"phoneNumber,omitempty"`
	RawID       string       `json:"rawId,omitempty"`
}

// PhoneIdentifier builds the identifier of a phone number participant.
func PhoneIdentifier(number string) Identifier {
	return Identifier{Kind: "phoneNumber", PhoneNumber: &PhoneNumber{Value: number}}
}

type TextSource struct {
	Text         string `json:"text"`
	SourceLocale string `json:"sourceLocale,omitempty"`
	VoiceName    string `json:"voiceName,omitempty"`
}

type SSMLSource struct {
	SSMLText string `json:"ssmlText"`
}

// PlaySource is a text or SSML prompt rendered by the service.
type PlaySource struct {
	Kind string      `json:"kind"`
	Text *TextSource `json:"text,omitempty"`
	SSML *SSMLSource `json:"ssml,omitempty"`
}

func TextPlaySource(text, locale, voice string) PlaySource {
	return PlaySource{Kind: "text", Text: &TextSource{Text: text, SourceLocale: locale, VoiceName: voice}}
}

func SSMLPlaySource(ssml string) PlaySource {
	return PlaySource{Kind: "ssml", SSML: &SSMLSource{SSMLText: ssml}}
}

type PlayOptions struct {
	Loop bool `json:"loop"`
}

type PlayRequest struct {
	PlaySources      []PlaySource `json:"playSources"`
	PlayTo           []Identifier `json:"playTo,omitempty"`
	PlayOptions      *PlayOptions `json:"playOptions,omitempty"`
	OperationContext string       `json:"operationContext,omitempty"`
}

// Choice is one selectable option of a choices recognition.
type Choice struct {
	Label   string   `json:"label"`
	Phrases []string `json:"phrases"`
	Tone    string   `json:"tone,omitempty"`
}

type SpeechOptions struct {
	EndSilenceTimeoutInMs int `json:"endSilenceTimeoutInMs,omitempty"`
}

type RecognizeOptions struct {
	InterruptPrompt                bool           `json:"interruptPrompt"`
	InitialSilenceTimeoutInSeconds int            `json:"initialSilenceTimeoutInSeconds,omitempty"`
	TargetParticipant              Identifier     `json:"targetParticipant"`
	SpeechLanguage                 string         `json:"speechLanguage,omitempty"`
	Choices                        []Choice       `json:"choices,omitempty"`
	SpeechOptions                  *SpeechOptions `json:"speechOptions,omitempty"`
}

const (
	RecognizeInputChoices = "choices"
	RecognizeInputSpeech  = "speech"
)

type RecognizeRequest struct {
	RecognizeInputType          string           `json:"recognizeInputType"`
	PlayPrompt                  *PlaySource      `json:"playPrompt,omitempty"`
	InterruptCallMediaOperation bool             `json:"interruptCallMediaOperation"`
	RecognizeOptions            RecognizeOptions `json:"recognizeOptions"`
	OperationContext            string           `json:"operationContext,omitempty"`
}

type TransferRequest struct {
	TargetParticipant Identifier `json:"targetParticipant"`
	OperationContext  string     `json:"operationContext,omitempty"`
}

type MediaStreamingRequest struct {
	OperationContext string `json:"operationContext,omitempty"`
}

type CallLocator struct {
	Kind         string `json:"kind"`
	ServerCallID string `json:"serverCallId"`
}

type RecordingStorage struct {
	Kind         string `json:"recordingStorageKind"`
	ContainerURL string `json:"recordingDestinationContainerUrl"`
}

type StartRecordingRequest struct {
	CallLocator          CallLocator       `json:"callLocator"`
	RecordingContentType string            `json:"recordingContentType"`
	RecordingChannelType string            `json:"recordingChannelType"`
	RecordingFormatType  string            `json:"recordingFormatType"`
	RecordingStorage     *RecordingStorage `json:"recordingStorage,omitempty"`
}

type RecordingState struct {
	RecordingID    string `json:"recordingId"`
	RecordingState string `json:"recordingState"`
}

type CallIntelligenceOptions struct {
	CognitiveServicesEndpoint string `json:"cognitiveServicesEndpoint,omitempty"`
}

// MediaStreamingOptions configures the audio stream sent to an external
// websocket when streaming is started on the connection.
type MediaStreamingOptions struct {
	TransportURL        string `json:"transportUrl"`
	TransportType       string `json:"transportType"`
	ContentType         string `json:"contentType"`
	AudioChannelType    string `json:"audioChannelType"`
	StartMediaStreaming bool   `json:"startMediaStreaming"`
}

// UnmixedAudioStreaming streams each participant separately to url, started
// on demand.
func UnmixedAudioStreaming(url string) *MediaStreamingOptions {
	return &MediaStreamingOptions{
		TransportURL:     url,
		TransportType:    "websocket",
		ContentType:      "audio",
		AudioChannelType: "unmixed",
	}
}

type AnswerRequest struct {
	IncomingCallContext     string                   `json:"incomingCallContext"`
	CallbackURI             string                   `json:"callbackUri"`
	CallIntelligenceOptions *CallIntelligenceOptions `json:"callIntelligenceOptions,omitempty"`
	MediaStreamingOptions   *MediaStreamingOptions   `json:"mediaStreamingOptions,omitempty"`
}

type CreateCallRequest struct {
	Targets                 []Identifier             `json:"targets"`
	SourceCallerIDNumber    *PhoneNumber             `json:"sourceCallerIdNumber,omitempty"`
	CallbackURI             string                   `json:"callbackUri"`
	CallIntelligenceOptions *CallIntelligenceOptions `json:"callIntelligenceOptions,omitempty"`
	MediaStreamingOptions   *MediaStreamingOptions   `json:"mediaStreamingOptions,omitempty"`
}

// CallConnection describes a connection returned by answer and create.
type CallConnection struct {
	CallConnectionID    string `json:"callConnectionId"`
	ServerCallID        string `json:"serverCallId"`
	CallConnectionState string `json:"callConnectionState"`
	CorrelationID       string `json:"correlationId"`
}

package callautomation

import (
	"encoding/json"
	"strings"
	"time"
)

// Event types delivered to the call callback URL.
const (
	EventCallConnected          = "Microsoft.Communication.CallConnected"
	EventCallDisconnected       = "Microsoft.Communication.CallDisconnected"
	EventRecognizeCompleted     = "Microsoft.Communication.RecognizeCompleted"
	EventRecognizeFailed        = "Microsoft.Communication.RecognizeFailed"
	EventPlayCompleted          = "Microsoft.Communication.PlayCompleted"
	EventPlayFailed             = "Microsoft.Communication.PlayFailed"
	EventCallTransferAccepted   = "Microsoft.Communication.CallTransferAccepted"
	EventCallTransferFailed     = "Microsoft.Communication.CallTransferFailed"
	EventParticipantsUpdated    = "Microsoft.Communication.ParticipantsUpdated"
	EventRecordingStateChanged  = "Microsoft.Communication.RecordingStateChanged"
	EventMediaStreamingStarted  = "Microsoft.Communication.MediaStreamingStarted"
	EventMediaStreamingStopped  = "Microsoft.Communication.MediaStreamingStopped"
	EventMediaStreamingFailed   = "Microsoft.Communication.MediaStreamingFailed"
	EventIncomingCall           = "Microsoft.Communication.IncomingCall"
	EventSubscriptionValidation = "Microsoft.EventGrid.SubscriptionValidationEvent"
)

// ShortEventType strips the namespace of an event type:
// Microsoft.Communication.CallConnected becomes CallConnected.
func ShortEventType(eventType string) string {
	if i := strings.LastIndex(eventType, "."); i >= 0 {
		return eventType[i+1:]
	}
	return eventType
}

// Recognition types reported by RecognizeCompleted.
const (
	RecognitionSpeech  = "speech"
	RecognitionChoices = "choices"
	RecognitionDTMF    = "dtmf"
)

// CloudEvent is the CloudEvents 1.0 envelope used for callbacks.
type CloudEvent struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	SpecVersion string          `json:"specversion"`
	Type        string          `json:"type"`
	Subject     string          `json:"subject"`
	Time        time.Time       `json:"time"`
	Data        json.RawMessage `json:"data"`
}

// ResultInformation carries the outcome code of an operation.
type ResultInformation struct {
	Code    int    `json:"code"`
	SubCode int    `json:"subCode"`
	Message string `json:"message"`
}

type SpeechResult struct {
	Speech     string  `json:"speech"`
	Confidence float64 `json:"confidence"`
}

type ChoiceResult struct {
	Label            string `json:"label"`
	RecognizedPhrase string `json:"recognizedPhrase"`
}

// EventData is the union of the callback payload fields used here.
type EventData struct {
	CallConnectionID  string             `json:"callConnectionId"`
	ServerCallID      string             `json:"serverCallId"`
	CorrelationID     string             `json:"correlationId"`
	OperationContext  string             `json:"operationContext"`
	ResultInformation *ResultInformation `json:"resultInformation,omitempty"`
	RecognitionType   string             `json:"recognitionType"`
	SpeechResult      *SpeechResult      `json:"speechResult,omitempty"`
	ChoiceResult      *ChoiceResult      `json:"choiceResult,omitempty"`
}

// SubCode returns the result subcode, 0 when absent.
func (d EventData) SubCode() int {
	if d.ResultInformation == nil {
		return 0
	}
	return d.ResultInformation.SubCode
}

// EventGridEvent is the Event Grid schema envelope used for resource events
// such as incoming calls.
type EventGridEvent struct {
	ID          string          `json:"id"`
	EventType   string          `json:"eventType"`
	Subject     string          `json:"subject"`
	EventTime   time.Time       `json:"eventTime"`
	Data        json.RawMessage `json:"data"`
	DataVersion string          `json:"dataVersion"`
}

type CommunicationIdentifier struct {
	RawID       string       `json:"rawId"`
	Kind        string       `json:"kind"`
	PhoneNumber *PhoneNumber `json:"phoneNumber,omitempty"`
}

// IncomingCallData is the payload of an IncomingCall event.
type IncomingCallData struct {
	From                CommunicationIdentifier `json:"from"`
	To                  CommunicationIdentifier `json:"to"`
	IncomingCallContext string                  `json:"incomingCallContext"`
	CorrelationID       string                  `json:"correlationId"`
	ServerCallID        string                  `json:"serverCallId"`
}

// SubscriptionValidationData is the payload of the Event Grid handshake.
type SubscriptionValidationData struct {
	ValidationCode string `json:"validationCode"`
	ValidationURL  string `json:"validationUrl"`
}

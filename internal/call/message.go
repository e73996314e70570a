package call

import "time"

type Persona string

const (
	PersonaHuman     Persona = "human"
	PersonaAssistant Persona = "assistant"
	PersonaSystem    Persona = "system"
)

type Action string

const (
	ActionCall   Action = "call"
	ActionHangup Action = "hangup"
	ActionSMS    Action = "sms"
	ActionTalk   Action = "talk"
)

// Style is the speaking style applied when a message is played.
type Style string

const (
	StyleNone     Style = "none"
	StyleCheerful Style = "cheerful"
	StyleSad      Style = "sad"
)

// Message is one entry of the call log. Its position in the log is its order.
type Message struct {
	Persona   Persona   `json:"persona" bson:"persona"`
	Action    Action    `json:"action" bson:"action"`
	Content   string    `json:"content" bson:"content"`
	Style     Style     `json:"style" bson:"style"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Satisfaction string

const (
	SatisfactionHigh    Satisfaction = "high"
	SatisfactionLow     Satisfaction = "low"
	SatisfactionUnknown Satisfaction = "unknown"
)

// Synthesis is the post-call summary of a conversation.
type Synthesis struct {
	LongSummary            string       `json:"long_summary" bson:"long_summary"`
	ShortSummary           string       `json:"short_summary" bson:"short_summary"`
	Satisfaction           Satisfaction `json:"satisfaction" bson:"satisfaction"`
	ImprovementSuggestions string       `json:"improvement_suggestions" bson:"improvement_suggestions"`
}

type NextAction string

const (
	NextCaseClosed              NextAction = "case_closed"
	NextCommercialOffer         NextAction = "commercial_offer"
	NextCustomerWillSendInfo    NextAction = "customer_will_send_info"
	NextRequiresCustomerService NextAction = "requires_customer_service"
	NextRequiresExpertise       NextAction = "requires_expertise"
	NextUnknown                 NextAction = "unknown"
)

// NextActions lists every next action accepted from the model.
var NextActions = []NextAction{
	NextCaseClosed,
	NextCommercialOffer,
	NextCustomerWillSendInfo,
	NextRequiresCustomerService,
	NextRequiresExpertise,
	NextUnknown,
}

// Next is the follow-up decided for the call after it ended.
type Next struct {
	Action        NextAction `json:"action" bson:"action"`
	Justification string     `json:"justification" bson:"justification"`
}

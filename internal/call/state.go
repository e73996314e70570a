package call

import (
	"crypto/rand"
	"math/big"
	"reflect"
	"time"

	"github.com/google/uuid"
)

const secretLength = 16

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Language is one language the bot can speak on a call.
type Language struct {
	ShortCode      string   `json:"short_code" bson:"short_code" yaml:"short_code"`
	DisplayName    string   `json:"display_name" bson:"display_name" yaml:"display_name"`
	Pronunciations []string `json:"pronunciations" bson:"pronunciations" yaml:"pronunciations"`
	Voice          string   `json:"voice" bson:"voice" yaml:"voice"`
}

// LanguageConfig lists the languages available on a call and the default one.
type LanguageConfig struct {
	DefaultShortCode string     `json:"default_short_code" bson:"default_short_code" yaml:"default_short_code"`
	Availables       []Language `json:"availables" bson:"availables" yaml:"availables"`
}

// Default returns the default language, or the first available one when the
// default short code does not match.
func (l LanguageConfig) Default() Language {
	for _, lang := range l.Availables {
		if lang.ShortCode == l.DefaultShortCode {
			return lang
		}
	}
	if len(l.Availables) > 0 {
		return l.Availables[0]
	}
	return Language{ShortCode: l.DefaultShortCode}
}

// Find looks a language up by short code. The boolean is false when the
// label is unknown and the default language was returned instead.
func (l LanguageConfig) Find(shortCode string) (Language, bool) {
	for _, lang := range l.Availables {
		if lang.ShortCode == shortCode {
			return lang, true
		}
	}
	return l.Default(), false
}

// Initiate is the configuration snapshot a call was started with.
type Initiate struct {
	PhoneNumber      string         `json:"phone_number" bson:"phone_number"`
	AgentPhoneNumber string         `json:"agent_phone_number" bson:"agent_phone_number"`
	BotCompany       string         `json:"bot_company" bson:"bot_company"`
	BotName          string         `json:"bot_name" bson:"bot_name"`
	Task             string         `json:"task" bson:"task"`
	Lang             LanguageConfig `json:"lang" bson:"lang"`
}

// Equal reports whether two snapshots describe the same initiation.
func (i Initiate) Equal(other Initiate) bool {
	return reflect.DeepEqual(i, other)
}

// State is the persisted aggregate for one call.
type State struct {
	CallID           string            `json:"call_id" bson:"_id"`
	CallbackSecret   string            `json:"callback_secret" bson:"callback_secret"`
	VoiceID          string            `json:"voice_id,omitempty" bson:"voice_id,omitempty"`
	ServerCallID     string            `json:"server_call_id,omitempty" bson:"server_call_id,omitempty"`
	Lang             string            `json:"lang,omitempty" bson:"lang,omitempty"`
	RecognitionRetry int               `json:"recognition_retry" bson:"recognition_retry"`
	Messages         []Message         `json:"messages" bson:"messages"`
	Claim            map[string]string `json:"claim" bson:"claim"`
	Synthesis        *Synthesis        `json:"synthesis,omitempty" bson:"synthesis,omitempty"`
	Next             *Next             `json:"next,omitempty" bson:"next,omitempty"`
	Initiate         Initiate          `json:"initiate" bson:"initiate"`
	InProgress       bool              `json:"in_progress" bson:"in_progress"`
	CreatedAt        time.Time         `json:"created_at" bson:"created_at"`
}

// New creates a call with a fresh id and callback secret.
func New(initiate Initiate) (*State, error) {
	secret, err := randomSecret(secretLength)
	if err != nil {
		return nil, err
	}
	return &State{
		CallID:         uuid.NewString(),
		CallbackSecret: secret,
		Messages:       []Message{},
		Claim:          map[string]string{},
		Initiate:       initiate,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Language resolves the language currently used on the call.
func (s *State) Language() Language {
	if s.Lang == "" {
		return s.Initiate.Lang.Default()
	}
	lang, _ := s.Initiate.Lang.Find(s.Lang)
	return lang
}

// Append adds an entry to the end of the message log.
func (s *State) Append(persona Persona, action Action, content string, style Style) {
	s.Messages = append(s.Messages, Message{
		Persona:   persona,
		Action:    action,
		Content:   content,
		Style:     style,
		CreatedAt: time.Now().UTC(),
	})
}

// LastMessage returns the most recent log entry, or nil when the log is empty.
func (s *State) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// Ended reports whether the call log already ends with the caller hanging up.
func (s *State) Ended() bool {
	last := s.LastMessage()
	return last != nil && last.Persona == PersonaHuman && last.Action == ActionHangup
}

// HasNoInteraction reports whether the caller never said anything: the log is
// exactly the connection, one assistant entry and the hangup.
func (s *State) HasNoInteraction() bool {
	if len(s.Messages) != 3 {
		return false
	}
	first, second, third := s.Messages[0], s.Messages[1], s.Messages[2]
	return first.Persona == PersonaHuman && first.Action == ActionCall &&
		second.Persona == PersonaAssistant &&
		third.Persona == PersonaHuman && third.Action == ActionHangup
}

// ResetRetry zeroes the recognition retry counter.
func (s *State) ResetRetry() {
	s.RecognitionRetry = 0
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *State) Clone() *State {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	c.Claim = make(map[string]string, len(s.Claim))
	for k, v := range s.Claim {
		c.Claim[k] = v
	}
	if s.Synthesis != nil {
		syn := *s.Synthesis
		c.Synthesis = &syn
	}
	if s.Next != nil {
		next := *s.Next
		c.Next = &next
	}
	if s.Initiate.Lang.Availables != nil {
		c.Initiate.Lang.Availables = make([]Language, len(s.Initiate.Lang.Availables))
		for i, lang := range s.Initiate.Lang.Availables {
			if lang.Pronunciations != nil {
				lang.Pronunciations = append([]string{}, lang.Pronunciations...)
			}
			c.Initiate.Lang.Availables[i] = lang
		}
	}
	return &c
}

func randomSecret(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = secretAlphabet[idx.Int64()]
	}
	return string(out), nil
}

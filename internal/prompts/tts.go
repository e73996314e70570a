// Package prompts renders the sentences spoken to callers and the system
// prompts sent to language models.
package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/troikatech/call-center/internal/call"
)

// Name identifies a spoken prompt.
type Name string

const (
	Hello           Name = "hello"
	WelcomeBack     Name = "welcome_back"
	Goodbye         Name = "goodbye"
	Error           Name = "error"
	IVRLanguage     Name = "ivr_language"
	TransferFailure Name = "calltransfer_failure"
	ConnectAgent    Name = "connect_agent"
)

// MaxIVRLanguages is the number of DTMF tones available for language
// selection.
const MaxIVRLanguages = 9

var defaultTTS = map[string]map[Name]string{
	"en-US": {
		Hello:           "Hello, I'm {{.BotName}}, the virtual assistant of {{.BotCompany}}. I'm here to help you. How can I help you today?",
		WelcomeBack:     "Welcome back! I'm {{.BotName}} from {{.BotCompany}}. Let's continue where we left off.",
		Goodbye:         "Thank you for calling, I hope I've been able to help. You can call back, I've got it all memorized. {{.BotCompany}} wishes you a wonderful day!",
		Error:           "I'm sorry, I didn't understand. Can you rephrase?",
		IVRLanguage:     "{{range .Languages}}For {{.DisplayName}}, press {{.Tone}}. {{end}}",
		TransferFailure: "It seems I can't connect you with an agent at the moment, but the next available agent will call you back as soon as possible.",
		ConnectAgent:    "I'm sorry, I wasn't able to respond to your request. Please allow me to transfer you to an agent who can assist you further. Please hold the line and I will get back to you shortly.",
	},
	"fr-FR": {
		Hello:           "Bonjour, je suis {{.BotName}}, l'assistant virtuel de {{.BotCompany}}. Je suis là pour vous aider. Comment puis-je vous aider aujourd'hui ?",
		WelcomeBack:     "Bon retour ! Je suis {{.BotName}} de {{.BotCompany}}. Reprenons là où nous nous étions arrêtés.",
		Goodbye:         "Merci de votre appel, j'espère avoir pu vous aider. Vous pouvez rappeler, j'ai tout mémorisé. {{.BotCompany}} vous souhaite une excellente journée !",
		Error:           "Je suis désolé, je n'ai pas compris. Pouvez-vous reformuler ?",
		IVRLanguage:     "{{range .Languages}}Pour {{.DisplayName}}, tapez {{.Tone}}. {{end}}",
		TransferFailure: "Il semble que je ne puisse pas vous mettre en relation avec un conseiller pour le moment, mais le prochain conseiller disponible vous rappellera dès que possible.",
		ConnectAgent:    "Je suis désolé, je n'ai pas pu répondre à votre demande. Je vous transfère à un conseiller qui pourra vous aider. Merci de patienter.",
	},
}

// IVRChoice is one language offered by the language menu.
type IVRChoice struct {
	Tone        int
	DisplayName string
	ShortCode   string
}

type ttsData struct {
	BotName     string
	BotCompany  string
	PhoneNumber string
	Languages   []IVRChoice
}

// Catalog holds the parsed prompt templates of every language.
type Catalog struct {
	tts map[string]map[Name]*template.Template
}

// NewCatalog parses the built-in prompts merged with overrides, keyed by
// language short code then prompt name. Languages missing from both fall back
// to en-US at render time.
func NewCatalog(overrides map[string]map[string]string) (*Catalog, error) {
	sources := make(map[string]map[Name]string, len(defaultTTS))
	for lang, prompts := range defaultTTS {
		sources[lang] = make(map[Name]string, len(prompts))
		for name, text := range prompts {
			sources[lang][name] = text
		}
	}
	for lang, prompts := range overrides {
		if sources[lang] == nil {
			sources[lang] = make(map[Name]string, len(prompts))
		}
		for name, text := range prompts {
			sources[lang][Name(name)] = text
		}
	}

	c := &Catalog{tts: make(map[string]map[Name]*template.Template, len(sources))}
	for lang, prompts := range sources {
		c.tts[lang] = make(map[Name]*template.Template, len(prompts))
		for name, text := range prompts {
			tpl, err := template.New(lang + "/" + string(name)).Parse(text)
			if err != nil {
				return nil, fmt.Errorf("invalid prompt %s for %s: %w", name, lang, err)
			}
			c.tts[lang][name] = tpl
		}
	}
	return c, nil
}

// TTS renders a spoken prompt in the current language of the call.
func (c *Catalog) TTS(name Name, state *call.State) (string, error) {
	tpl := c.lookup(state.Language().ShortCode, name)
	if tpl == nil {
		return "", fmt.Errorf("unknown prompt %s", name)
	}
	data := ttsData{
		BotName:     state.Initiate.BotName,
		BotCompany:  state.Initiate.BotCompany,
		PhoneNumber: state.Initiate.PhoneNumber,
		Languages:   IVRChoices(state.Initiate.Lang.Availables),
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (c *Catalog) lookup(lang string, name Name) *template.Template {
	if tpl := c.tts[lang][name]; tpl != nil {
		return tpl
	}
	return c.tts["en-US"][name]
}

// IVRChoices numbers languages from tone one in configuration order. Only the
// first MaxIVRLanguages get a tone.
func IVRChoices(languages []call.Language) []IVRChoice {
	n := len(languages)
	if n > MaxIVRLanguages {
		n = MaxIVRLanguages
	}
	choices := make([]IVRChoice, n)
	for i := 0; i < n; i++ {
		choices[i] = IVRChoice{
			Tone:        i + 1,
			DisplayName: languages[i].DisplayName,
			ShortCode:   languages[i].ShortCode,
		}
	}
	return choices
}

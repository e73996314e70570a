package prompts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/troikatech/call-center/internal/call"
)

// Reply actions the model may prefix a conversation answer with.
const (
	ReplyTalk         = "talk"
	ReplyHangup       = "hangup"
	ReplyConnectAgent = "connect_agent"
)

var markerRegex = regexp.MustCompile(`^\s*\[(action|style)=([a-z_]+)\]`)

// ParseReply strips the leading [action=...] and [style=...] markers from a
// model answer. Missing markers default to talk and no style.
func ParseReply(text string) (content, action string, style call.Style) {
	action = ReplyTalk
	style = call.StyleNone
	for {
		m := markerRegex.FindStringSubmatchIndex(text)
		if m == nil {
			break
		}
		key, value := text[m[2]:m[3]], text[m[4]:m[5]]
		switch key {
		case "action":
			action = value
		case "style":
			switch call.Style(value) {
			case call.StyleCheerful, call.StyleSad:
				style = call.Style(value)
			}
		}
		text = text[m[1]:]
	}
	return strings.TrimSpace(text), action, style
}

// Transcript renders the call log, one entry per line.
func Transcript(messages []call.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s (%s): %s\n", m.Persona, m.Action, m.Content)
	}
	return b.String()
}

func persona(state *call.State) string {
	lang := state.Language()
	return fmt.Sprintf(`Assistant is called %s and is working in a call center for the company %s as an expert with 20 years of experience.
Today is %s. Customer is calling from %s. Conversation language is %s (%s).`,
		state.Initiate.BotName,
		state.Initiate.BotCompany,
		state.CreatedAt.Format("Monday 2 January 2006"),
		state.Initiate.PhoneNumber,
		lang.DisplayName,
		lang.ShortCode,
	)
}

func claim(state *call.State) string {
	if len(state.Claim) == 0 {
		return "(empty)"
	}
	keys := make([]string, 0, len(state.Claim))
	for k := range state.Claim {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, state.Claim[k])
	}
	return b.String()
}

// ChatSystem is the system prompt of a conversation turn.
func ChatSystem(state *call.State, trainings []string) string {
	var b strings.Builder
	b.WriteString(persona(state))
	b.WriteString("\n\nTask:\n")
	b.WriteString(state.Initiate.Task)
	b.WriteString(`

Rules:
- Answers in the conversation language, with short sentences, because they are read aloud on the phone
- Never invents information that is not in the conversation or the claim
- Starts the answer with [action=hangup] when the customer wants to end the call
- Starts the answer with [action=connect_agent] when the customer asks for a human agent
- Optionally adds [style=cheerful] or [style=sad] after the action to set the tone of the voice

Claim:
`)
	b.WriteString(claim(state))
	if len(trainings) > 0 {
		b.WriteString("\nUseful knowledge:\n")
		for _, t := range trainings {
			b.WriteString("- ")
			b.WriteString(t)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// SMSSummarySystem asks for the text message sent to the customer after the
// call.
func SMSSummarySystem(state *call.State) string {
	return persona(state) + `

Task:
Summarize the call in a short text message for the customer. The message is sent by SMS, so it must be concise, polite and in the conversation language.
Include the next steps if any. Do not include any marker, greeting placeholder or signature other than the company name.

Claim:
` + claim(state) + `
Conversation:
` + Transcript(state.Messages)
}

// SynthesisSystem asks for the JSON synthesis of the call.
func SynthesisSystem(state *call.State) string {
	return persona(state) + `

Task:
Synthesize the call for the claim handler. Answer only with a JSON object with the fields:
- long_summary: detailed summary of the call, in English
- short_summary: one sentence summary, in English
- satisfaction: one of "high", "low", "unknown"
- improvement_suggestions: what the assistant could have done better

Claim:
` + claim(state) + `
Conversation:
` + Transcript(state.Messages)
}

// NextSystem asks for the next action the company should take.
func NextSystem(state *call.State) string {
	actions := make([]string, len(call.NextActions))
	for i, a := range call.NextActions {
		actions[i] = fmt.Sprintf("%q", a)
	}
	return persona(state) + `

Task:
Decide the next action the company should take after this call. Answer only with a JSON object with the fields:
- action: one of ` + strings.Join(actions, ", ") + `
- justification: why this action, in English

Claim:
` + claim(state) + `
Conversation:
` + Transcript(state.Messages)
}

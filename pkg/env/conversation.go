package env

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Language is one entry of the languages block of the conversation file.
type Language struct {
	ShortCode      string   `yaml:"short_code"`
	DisplayName    string   `yaml:"display_name"`
	Pronunciations []string `yaml:"pronunciations"`
	Voice          string   `yaml:"voice"`
}

// Conversation holds the bot identity and the defaults applied to calls that
// are not created through the API.
type Conversation struct {
	BotCompany       string `yaml:"bot_company"`
	BotName          string `yaml:"bot_name"`
	AgentPhoneNumber string `yaml:"agent_phone_number"`
	Task             string `yaml:"task"`
	Lang             struct {
		DefaultShortCode string     `yaml:"default_short_code"`
		Availables       []Language `yaml:"availables"`
	} `yaml:"lang"`
	// Prompts overrides TTS prompt templates, keyed by language short code
	// then prompt name.
	Prompts map[string]map[string]string `yaml:"prompts"`
}

// DefaultConversation is used when no conversation file is configured.
func DefaultConversation() *Conversation {
	c := &Conversation{
		BotCompany: "Contoso",
		BotName:    "Amelie",
		Task:       "Help the customer with their insurance claim. Collect the details of the incident and the contact information of the policyholder.",
	}
	c.Lang.DefaultShortCode = "fr-FR"
	c.Lang.Availables = []Language{
		{ShortCode: "fr-FR", DisplayName: "Francais", Pronunciations: []string{"French", "Francais"}, Voice: "fr-FR-DeniseNeural"},
		{ShortCode: "en-US", DisplayName: "English", Pronunciations: []string{"English", "Anglais"}, Voice: "en-US-AvaMultilingualNeural"},
	}
	return c
}

// LoadConversation reads a YAML conversation file. An empty path returns the
// defaults.
func LoadConversation(path string) (*Conversation, error) {
	if path == "" {
		return DefaultConversation(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation config: %w", err)
	}
	return ParseConversation(raw)
}

func ParseConversation(raw []byte) (*Conversation, error) {
	c := DefaultConversation()
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("failed to parse conversation config: %w", err)
	}
	if len(c.Lang.Availables) == 0 {
		return nil, fmt.Errorf("conversation config: at least one language is required")
	}
	found := false
	for _, lang := range c.Lang.Availables {
		if lang.ShortCode == "" {
			return nil, fmt.Errorf("conversation config: language without short_code")
		}
		if lang.ShortCode == c.Lang.DefaultShortCode {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("conversation config: default language %q is not available", c.Lang.DefaultShortCode)
	}
	return c, nil
}

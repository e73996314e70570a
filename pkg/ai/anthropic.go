package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/client"
)

const (
	anthropicVersion  = "2023-06-01"
	conversationStart = "(the conversation starts)"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude
type AnthropicProvider struct {
	apiKey    string
	model     string
	maxTokens int
	logger    *zap.Logger
	baseURL   string
	http      *client.HTTPClient
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, model string, maxTokens int, timeout time.Duration, logger *zap.Logger) *AnthropicProvider {
	if apiKey == "" {
		return &AnthropicProvider{logger: logger}
	}

	return &AnthropicProvider{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
		baseURL:   "https://api.anthropic.com/v1",
		http:      client.NewHTTPClient("anthropic", timeout, logger),
	}
}

func (p *AnthropicProvider) WithBaseURL(baseURL string) *AnthropicProvider {
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is available
func (p *AnthropicProvider) IsAvailable() bool {
	return p.apiKey != ""
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"content"`
}

// Complete sends the chat to the messages API. The API has no JSON mode, the
// system prompt carries the format instructions instead.
func (p *AnthropicProvider) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	if !p.IsAvailable() {
		return "", errors.New("Anthropic provider not available")
	}

	if len(req.Messages) == 0 {
		return "", errors.New("Anthropic requires at least one message")
	}
	messages := make([]anthropicMessage, 0, len(req.Messages)+1)
	// The messages API rejects a chat opened by the assistant
	if req.Messages[0].Role != RoleUser {
		messages = append(messages, anthropicMessage{Role: string(RoleUser), Content: conversationStart})
	}
	for _, m := range req.Messages {
		messages = append(messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	body := anthropicRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      req.System,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var resp anthropicResponse
	if err := p.http.PostJSON(ctx, "messages", p.baseURL+"/messages", headers, body, &resp); err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("no content in response")
	}
	return strings.TrimSpace(text.String()), nil
}

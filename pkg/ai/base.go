package ai

import (
	"context"
)

// Provider is the base interface for all AI providers
type Provider interface {
	// Complete returns the model answer to a chat.
	Complete(ctx context.Context, req *CompletionRequest) (string, error)

	// IsAvailable checks if the provider is available/configured
	IsAvailable() bool

	// Name returns the provider name
	Name() string
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest represents a chat completion request
type CompletionRequest struct {
	System   string
	Messages []Message
	// MaxTokens overrides the provider default when positive.
	MaxTokens   int
	Temperature float64
	// JSON asks for a single JSON object as the answer.
	JSON bool
}

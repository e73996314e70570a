package ai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Manager manages AI providers with fallback logic
type Manager struct {
	providers []Provider
	logger    *zap.Logger
}

// NewManager creates a new AI provider manager
func NewManager(providers []Provider, logger *zap.Logger) *Manager {
	return &Manager{
		providers: providers,
		logger:    logger,
	}
}

// GetAvailableProvider returns the first available provider
func (m *Manager) GetAvailableProvider() Provider {
	for _, provider := range m.providers {
		if provider.IsAvailable() {
			return provider
		}
	}
	return nil
}

// IsAvailable reports whether at least one provider is configured.
func (m *Manager) IsAvailable() bool {
	return m.GetAvailableProvider() != nil
}

// ExecuteWithFallback executes a method on providers with fallback logic
func (m *Manager) ExecuteWithFallback(
	ctx context.Context,
	method func(Provider, context.Context) (string, error),
) (string, error) {
	var lastErr error
	for _, provider := range m.providers {
		if !provider.IsAvailable() {
			continue
		}

		result, err := method(provider, ctx)
		if err == nil {
			m.logger.Debug("Successfully used AI provider",
				zap.String("provider", provider.Name()),
			)
			return result, nil
		}

		lastErr = err
		m.logger.Warn("AI provider failed, trying next",
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		return "", errors.New("no AI providers available")
	}
	return "", fmt.Errorf("all AI providers failed. Last error: %w", lastErr)
}

// Complete runs a chat completion with fallback
func (m *Manager) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	return m.ExecuteWithFallback(ctx, func(provider Provider, ctx context.Context) (string, error) {
		return provider.Complete(ctx, req)
	})
}

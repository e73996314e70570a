// Package trainings pre-computes the knowledge snippets used during a call.
package trainings

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
)

const (
	// queryMessages is how many of the latest caller sentences build the query.
	queryMessages = 5
	searchLimit   = 5
)

// Training is a knowledge base entry.
type Training struct {
	ID      string `json:"id" bson:"_id"`
	Title   string `json:"title" bson:"title"`
	Content string `json:"content" bson:"content"`
}

// Retriever finds trainings relevant to a free text query.
type Retriever interface {
	Search(ctx context.Context, query string, limit int64) ([]Training, error)
}

// Cache holds the retrieved snippets of each call.
type Cache interface {
	Get(ctx context.Context, callID string) ([]string, error)
	Set(ctx context.Context, callID string, trainings []string) error
}

type Service struct {
	retriever Retriever
	cache     Cache
	logger    *zap.Logger
}

// NewService creates the pre-warm service. A nil retriever disables the
// search, the cache then stays empty.
func NewService(retriever Retriever, cache Cache, logger *zap.Logger) *Service {
	return &Service{retriever: retriever, cache: cache, logger: logger}
}

// Query builds the search query from the latest things the caller said.
func Query(state *call.State) string {
	var parts []string
	for i := len(state.Messages) - 1; i >= 0 && len(parts) < queryMessages; i-- {
		m := state.Messages[i]
		if m.Persona != call.PersonaHuman || m.Action != call.ActionTalk || strings.TrimSpace(m.Content) == "" {
			continue
		}
		parts = append(parts, m.Content)
	}
	// Back to chronological order
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " ")
}

// Process is the trainings job: search and cache the result for the call.
func (s *Service) Process(ctx context.Context, state *call.State) error {
	if s.retriever == nil {
		return nil
	}
	query := Query(state)
	if query == "" {
		s.logger.Debug("No caller sentence yet, skipping trainings", zap.String("call_id", state.CallID))
		return nil
	}

	found, err := s.retriever.Search(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("failed to search trainings: %w", err)
	}
	snippets := make([]string, 0, len(found))
	for _, t := range found {
		snippets = append(snippets, t.Title+": "+t.Content)
	}
	if err := s.cache.Set(ctx, state.CallID, snippets); err != nil {
		return fmt.Errorf("failed to cache trainings: %w", err)
	}
	s.logger.Debug("Trainings cached", zap.String("call_id", state.CallID), zap.Int("count", len(snippets)))
	return nil
}

// Cached returns the snippets computed for a call. Cache failures are logged
// and read as no snippet.
func (s *Service) Cached(ctx context.Context, callID string) []string {
	snippets, err := s.cache.Get(ctx, callID)
	if err != nil {
		s.logger.Warn("Failed to read trainings cache", zap.String("call_id", callID), zap.Error(err))
		return nil
	}
	return snippets
}

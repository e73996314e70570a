package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
)

// onRecognizeTimeout handles a caller who stayed silent. The retry counter
// is shared by the language menu and the conversation.
func (o *Orchestrator) onRecognizeTimeout(ctx context.Context, state *call.State, ev Event, log *zap.Logger) error {
	retryMax := o.features.RecognitionRetryMax(ctx)

	if ev.Contexts.Has(call.ContextIVRLangSelect) {
		if state.RecognitionRetry < retryMax {
			state.RecognitionRetry++
			log.Info("Timeout, retrying language selection",
				zap.Int("retry", state.RecognitionRetry),
				zap.Int("max", retryMax),
			)
			return o.startLanguageSelection(ctx, state, log)
		}
		log.Info("Timeout, ending call")
		return o.goodbye(ctx, state)
	}

	if state.RecognitionRetry >= retryMax {
		log.Info("Timeout, ending call")
		return o.goodbye(ctx, state)
	}

	// The counter is only incremented by the language menu, so a silent
	// caller in the conversation gets no corrective action below the limit
	log.Info("Timeout during conversation, waiting for the caller",
		zap.Int("retry", state.RecognitionRetry),
		zap.Int("max", retryMax),
	)
	return nil
}

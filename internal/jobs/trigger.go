package jobs

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/pkg/metrics"
)

// Trigger enqueues call snapshots for the downstream workers.
type Trigger struct {
	trainings Queue
	post      Queue
	logger    *zap.Logger
}

func NewTrigger(trainings, post Queue, logger *zap.Logger) *Trigger {
	return &Trigger{trainings: trainings, post: post, logger: logger}
}

// CallEnded enqueues the trainings job and, unless the caller never
// interacted, the post-call job. Enqueue failures are logged.
func (t *Trigger) CallEnded(ctx context.Context, state *call.State) {
	t.Trainings(ctx, state)
	if state.HasNoInteraction() {
		t.logger.Info("Call ended without interaction, skipping post-call job",
			zap.String("call_id", state.CallID))
		return
	}
	t.enqueue(ctx, t.post, state)
}

// Trainings enqueues a retrieval pre-warm for the call.
func (t *Trigger) Trainings(ctx context.Context, state *call.State) {
	t.enqueue(ctx, t.trainings, state)
}

func (t *Trigger) enqueue(ctx context.Context, queue Queue, state *call.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		t.logger.Error("Failed to serialize call", zap.String("call_id", state.CallID), zap.Error(err))
		return
	}
	if err := queue.Push(ctx, payload); err != nil {
		t.logger.Error("Failed to enqueue job",
			zap.String("call_id", state.CallID),
			zap.String("queue", queue.Name()),
			zap.Error(err),
		)
		metrics.RecordJob(queue.Name(), "enqueue_error")
		return
	}
	metrics.RecordJob(queue.Name(), "enqueued")
}

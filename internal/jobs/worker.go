package jobs

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/pkg/metrics"
)

// Processor handles one dequeued call.
type Processor interface {
	Process(ctx context.Context, state *call.State) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, state *call.State) error

func (f ProcessorFunc) Process(ctx context.Context, state *call.State) error {
	return f(ctx, state)
}

type WorkerConfig struct {
	Queue     Queue
	Processor Processor
	// Wait is the longest a single Pop blocks.
	Wait time.Duration
	// Backoff is the pause after a queue error.
	Backoff time.Duration
	Logger  *zap.Logger
}

// Worker consumes one queue until its context is cancelled.
type Worker struct {
	queue     Queue
	processor Processor
	wait      time.Duration
	backoff   time.Duration
	logger    *zap.Logger
}

func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		queue:     cfg.Queue,
		processor: cfg.Processor,
		wait:      cfg.Wait,
		backoff:   cfg.Backoff,
		logger:    cfg.Logger.With(zap.String("queue", cfg.Queue.Name())),
	}
	if w.wait <= 0 {
		w.wait = 5 * time.Second
	}
	if w.backoff <= 0 {
		w.backoff = time.Second
	}
	return w
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Queue worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Queue worker stopped")
			return
		default:
		}

		payload, ok, err := w.queue.Pop(ctx, w.wait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to read queue", zap.Error(err))
			select {
			case <-time.After(w.backoff):
			case <-ctx.Done():
			}
			continue
		}
		if ok {
			w.handle(ctx, payload)
		}
	}
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	var state call.State
	if err := json.Unmarshal(payload, &state); err != nil || state.CallID == "" {
		w.logger.Warn("Dropping invalid job payload", zap.Error(err))
		metrics.RecordJob(w.queue.Name(), "invalid")
		return
	}

	start := time.Now()
	if err := w.processor.Process(ctx, &state); err != nil {
		w.logger.Error("Job failed",
			zap.String("call_id", state.CallID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		metrics.RecordJob(w.queue.Name(), "error")
		return
	}
	w.logger.Debug("Job done", zap.String("call_id", state.CallID), zap.Duration("duration", time.Since(start)))
	metrics.RecordJob(w.queue.Name(), "success")
}

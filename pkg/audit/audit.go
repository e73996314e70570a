package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/mongo"
	"github.com/troikatech/call-center/pkg/otel"
)

const collection = "audit_log"

// Action represents an audit action
type Action string

const (
	ActionCallCreate Action = "call.create"
)

// Entry is one audited operation made through the API.
type Entry struct {
	Subject      string            `json:"subject" bson:"subject"`
	Action       Action            `json:"action" bson:"action"`
	ResourceType string            `json:"resource_type" bson:"resource_type"`
	ResourceID   string            `json:"resource_id" bson:"resource_id"`
	Metadata     map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}

// Recorder keeps audit entries. Failures are logged, never returned: an
// audit outage must not fail the audited operation.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type MongoRecorder struct {
	client *mongo.Client
	logger *zap.Logger
}

func NewMongoRecorder(client *mongo.Client, logger *zap.Logger) *MongoRecorder {
	return &MongoRecorder{client: client, logger: logger}
}

func (r *MongoRecorder) Record(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := otel.WithDBSpan(ctx, collection, "insert", func(ctx context.Context) error {
		_, err := r.client.NewQuery(collection).Insert(ctx, entry)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to log audit event",
			zap.Error(err),
			zap.String("action", string(entry.Action)),
			zap.String("resource_type", entry.ResourceType),
		)
	}
}

// LogRecorder writes entries to the application log only.
type LogRecorder struct {
	logger *zap.Logger
}

func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, entry Entry) {
	fields := []zap.Field{
		zap.String("subject", entry.Subject),
		zap.String("action", string(entry.Action)),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
	}
	for k, v := range entry.Metadata {
		fields = append(fields, zap.String(k, v))
	}
	r.logger.Info("Audit event", fields...)
}

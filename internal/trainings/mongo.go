package trainings

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/troikatech/call-center/pkg/mongo"
	"github.com/troikatech/call-center/pkg/otel"
)

const trainingsCollection = "trainings"

// MongoRetriever runs full-text searches on the trainings collection.
type MongoRetriever struct {
	client *mongo.Client
}

func NewMongoRetriever(client *mongo.Client) *MongoRetriever {
	return &MongoRetriever{client: client}
}

// EnsureIndexes creates the text index the search relies on.
func (r *MongoRetriever) EnsureIndexes(ctx context.Context) error {
	return r.client.EnsureIndex(ctx, trainingsCollection, bson.D{
		{Key: "title", Value: "text"},
		{Key: "content", Value: "text"},
	})
}

func (r *MongoRetriever) Search(ctx context.Context, query string, limit int64) ([]Training, error) {
	var found []Training
	err := otel.WithDBSpan(ctx, trainingsCollection, "find", func(ctx context.Context) error {
		return r.client.NewQuery(trainingsCollection).
			Text(query).
			Select("title", "content").
			Limit(limit).
			FindInto(ctx, &found)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query trainings: %w", err)
	}
	return found, nil
}

package call

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/troikatech/call-center/pkg/mongo"
	"github.com/troikatech/call-center/pkg/otel"
)

const callsCollection = "calls"

// MongoStore persists calls in the calls collection, keyed by call id.
type MongoStore struct {
	client *mongo.Client
}

func NewMongoStore(client *mongo.Client) *MongoStore {
	return &MongoStore{client: client}
}

// EnsureIndexes creates the phone number lookup index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	return s.client.EnsureIndex(ctx, callsCollection, bson.D{
		{Key: "initiate.phone_number", Value: 1},
		{Key: "created_at", Value: -1},
	})
}

func (s *MongoStore) Get(ctx context.Context, callID string) (*State, error) {
	var state State
	var found bool
	err := otel.WithDBSpan(ctx, callsCollection, "find", func(ctx context.Context) error {
		var err error
		found, err = s.client.NewQuery(callsCollection).Eq("_id", callID).FindOneInto(ctx, &state)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &state, nil
}

func (s *MongoStore) Set(ctx context.Context, state *State) error {
	err := otel.WithDBSpan(ctx, callsCollection, "replace", func(ctx context.Context) error {
		_, err := s.client.NewQuery(callsCollection).Eq("_id", state.CallID).Replace(ctx, state)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save call: %w", err)
	}
	return nil
}

func (s *MongoStore) SearchOne(ctx context.Context, phoneNumber string) (*State, error) {
	var state State
	var found bool
	err := otel.WithDBSpan(ctx, callsCollection, "find", func(ctx context.Context) error {
		var err error
		found, err = s.client.NewQuery(callsCollection).
			Eq("initiate.phone_number", phoneNumber).
			Sort("created_at", false).
			FindOneInto(ctx, &state)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search call: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &state, nil
}

func (s *MongoStore) SearchAll(ctx context.Context, phoneNumber string, limit int64) ([]State, int64, error) {
	var calls []State
	var total int64
	err := otel.WithDBSpan(ctx, callsCollection, "find", func(ctx context.Context) error {
		query := s.client.NewQuery(callsCollection)
		if phoneNumber != "" {
			query = query.Eq("initiate.phone_number", phoneNumber)
		}
		var err error
		total, err = query.Count(ctx)
		if err != nil {
			return err
		}
		return query.Sort("created_at", false).Limit(limit).FindInto(ctx, &calls)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search calls: %w", err)
	}
	if calls == nil {
		calls = []State{}
	}
	return calls, total, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

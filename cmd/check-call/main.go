package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/troikatech/call-center/internal/call"
	"github.com/troikatech/call-center/pkg/env"
	"github.com/troikatech/call-center/pkg/logger"
	"github.com/troikatech/call-center/pkg/mongo"
	"github.com/troikatech/call-center/pkg/utils"
	"github.com/troikatech/call-center/pkg/validation"
)

// Prints stored calls as JSON, looked up by call id or by phone number.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: go run cmd/check-call/main.go <call_id | phone_number> [limit]")
	}
	target := os.Args[1]

	var limit int64 = 1
	if len(os.Args) > 2 {
		n, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil || n < 1 {
			log.Fatalf("Invalid limit %q", os.Args[2])
		}
		limit = n
	}

	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.StoreDriver != "mongo" {
		log.Fatalf("STORE_DRIVER=%s keeps calls in the server process, nothing to read", cfg.StoreDriver)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv, "check-call"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.DBName, logger.Log)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	store := call.NewMongoStore(mongoClient)

	var calls []call.State
	if _, err := uuid.Parse(target); err == nil {
		state, err := store.Get(ctx, target)
		if err != nil {
			log.Fatalf("Failed to get call: %v", err)
		}
		if state != nil {
			calls = append(calls, *state)
		}
	} else {
		phone, err := validation.NormalizeE164(target)
		if err != nil {
			log.Fatalf("%q is neither a call id nor a phone number: %v", target, err)
		}
		var total int64
		calls, total, err = store.SearchAll(ctx, phone, limit)
		if err != nil {
			log.Fatalf("Failed to search calls: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%d of %d calls for %s\n", len(calls), total, utils.MaskPhoneNumber(phone))
	}

	if len(calls) == 0 {
		fmt.Fprintln(os.Stderr, "No call found")
		os.Exit(1)
	}

	out, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode calls: %v", err)
	}
	fmt.Println(string(out))
}

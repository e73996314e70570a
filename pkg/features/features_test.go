package features

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestFlags(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defaults := Defaults{RecognitionRetryMax: 3, RecordingEnabled: false, SilenceTimeoutSec: 20}
	flags := New(client, defaults, zap.NewNop())
	ctx := context.Background()

	if got := flags.RecognitionRetryMax(ctx); got != 3 {
		t.Errorf("RecognitionRetryMax() = %v, want 3", got)
	}

	mr.Set("features:recognition_retry_max", "5")
	mr.Set("features:recording_enabled", "true")
	mr.Set("features:phone_silence_timeout_sec", "oops")

	if got := flags.RecognitionRetryMax(ctx); got != 5 {
		t.Errorf("RecognitionRetryMax() = %v, want 5", got)
	}
	if got := flags.RecordingEnabled(ctx); !got {
		t.Errorf("RecordingEnabled() = %v, want true", got)
	}
	if got := flags.SilenceTimeoutSec(ctx); got != 20 {
		t.Errorf("SilenceTimeoutSec() = %v, want 20", got)
	}

	mr.Set("features:recognition_retry_max", "-2")
	if got := flags.RecognitionRetryMax(ctx); got != 0 {
		t.Errorf("RecognitionRetryMax() = %v, want 0", got)
	}
}

func TestFlags_FallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	flags := New(client, Defaults{RecognitionRetryMax: 2}, zap.NewNop())
	mr.Close()

	if got := flags.RecognitionRetryMax(context.Background()); got != 2 {
		t.Errorf("RecognitionRetryMax() = %v, want 2", got)
	}
}

func TestFlags_NilClient(t *testing.T) {
	flags := New(nil, Defaults{RecordingEnabled: true}, zap.NewNop())
	if got := flags.RecordingEnabled(context.Background()); !got {
		t.Errorf("RecordingEnabled() = %v, want true", got)
	}
}

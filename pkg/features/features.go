// Package features resolves runtime-tunable values. Redis holds the current
// value of each flag; when a key is missing or Redis is unavailable the
// configured default applies.
package features

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "features:"

const (
	KeyRecognitionRetryMax = "recognition_retry_max"
	KeyRecordingEnabled    = "recording_enabled"
	KeySilenceTimeoutSec   = "phone_silence_timeout_sec"
)

// Defaults are the fallback values of every flag.
type Defaults struct {
	RecognitionRetryMax int
	RecordingEnabled    bool
	SilenceTimeoutSec   int
}

type Flags struct {
	redis    *redis.Client
	defaults Defaults
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates flags backed by client. A nil client always yields defaults.
func New(client *redis.Client, defaults Defaults, logger *zap.Logger) *Flags {
	return &Flags{
		redis:    client,
		defaults: defaults,
		timeout:  500 * time.Millisecond,
		logger:   logger,
	}
}

func (f *Flags) RecognitionRetryMax(ctx context.Context) int {
	v := f.getInt(ctx, KeyRecognitionRetryMax, f.defaults.RecognitionRetryMax)
	if v < 0 {
		return 0
	}
	return v
}

func (f *Flags) RecordingEnabled(ctx context.Context) bool {
	raw, ok := f.get(ctx, KeyRecordingEnabled)
	if !ok {
		return f.defaults.RecordingEnabled
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		f.logger.Warn("Invalid feature value", zap.String("key", KeyRecordingEnabled), zap.String("value", raw))
		return f.defaults.RecordingEnabled
	}
	return v
}

func (f *Flags) SilenceTimeoutSec(ctx context.Context) int {
	return f.getInt(ctx, KeySilenceTimeoutSec, f.defaults.SilenceTimeoutSec)
}

func (f *Flags) getInt(ctx context.Context, key string, def int) int {
	raw, ok := f.get(ctx, key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		f.logger.Warn("Invalid feature value", zap.String("key", key), zap.String("value", raw))
		return def
	}
	return v
}

func (f *Flags) get(ctx context.Context, key string) (string, bool) {
	if f.redis == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	raw, err := f.redis.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		f.logger.Debug("Feature lookup failed, using default", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return raw, true
}

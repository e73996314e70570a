package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDo(t *testing.T) {
	errTransient := errors.New("transient")

	tests := []struct {
		name      string
		failures  int
		permanent bool
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{name: "succeeds first time", failures: 0, attempts: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, attempts: 3, wantCalls: 3},
		{name: "gives up after max attempts", failures: 5, attempts: 3, wantCalls: 3, wantErr: true},
		{name: "stops on permanent error", failures: 5, permanent: true, attempts: 3, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastConfig(tt.attempts), func() error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errTransient)
					}
					return errTransient
				}
				return nil
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errTransient) {
				t.Errorf("Do() error = %v, want wrapping %v", err, errTransient)
			}
			if calls != tt.wantCalls {
				t.Errorf("Do() calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(3), func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

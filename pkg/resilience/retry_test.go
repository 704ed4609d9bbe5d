package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func fastConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 4, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "save-digest", fastConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v, calls = %d; want nil, 3", err, calls)
	}
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "save-digest", fastConfig(), func(ctx context.Context) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 4 {
		t.Errorf("err = %v, calls = %d; want errFlaky, 4", err, calls)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "save-digest", fastConfig(), func(ctx context.Context) error {
		calls++
		return Permanent(errFlaky)
	})
	if !errors.Is(err, errFlaky) || calls != 1 {
		t.Errorf("err = %v, calls = %d; want errFlaky, 1", err, calls)
	}
}

func TestRetry_RetryablePredicate(t *testing.T) {
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return !errors.Is(err, context.Canceled) }
	calls := 0
	Retry(context.Background(), "publish", cfg, func(ctx context.Context) error {
		calls++
		return context.Canceled
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestComputeDelay_Capped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	if d := computeDelay(5, cfg); d > 2*time.Second {
		t.Errorf("delay %v exceeds max", d)
	}
}

func TestDo_ReturnsResult(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), "load-digest", fastConfig(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errFlaky
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Errorf("Do = %d, %v; want 42, nil", got, err)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	_, err := Do(ctx, "load-digest", cfg, func(ctx context.Context) (string, error) {
		calls++
		cancel()
		return "", errFlaky
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("err = %v, calls = %d; want context.Canceled, 1", err, calls)
	}
}

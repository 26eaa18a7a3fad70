package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultPacerConfig(t *testing.T) {
	cfg := DefaultPacerConfig()

	if cfg.CallDelay != 200*time.Millisecond {
		t.Errorf("CallDelay = %v, want 200ms", cfg.CallDelay)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %v, want 5", cfg.MaxAttempts)
	}
}

func TestNewPacer_NilConfigUsesDefaults(t *testing.T) {
	p := NewPacer(nil)
	if p == nil {
		t.Fatal("NewPacer(nil) returned nil")
	}
	if p.config.CallDelay != 200*time.Millisecond {
		t.Errorf("CallDelay = %v, want 200ms", p.config.CallDelay)
	}
}

func TestPacer_HandleError(t *testing.T) {
	p := NewPacer(&PacerConfig{
		CallDelay:         10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          1 * time.Second,
		MaxAttempts:       3,
	})

	// Quota errors back off with increasing delays.
	retry, wait1 := p.HandleError(errors.New("googleapi: Error 429: rate limit exceeded"))
	if !retry {
		t.Error("first quota error should retry")
	}
	retry, wait2 := p.HandleError(errors.New("quota exceeded"))
	if !retry {
		t.Error("second quota error should retry")
	}
	if wait2 <= wait1 {
		t.Errorf("backoff did not grow: %v then %v", wait1, wait2)
	}

	// Third consecutive error exhausts MaxAttempts.
	retry, _ = p.HandleError(errors.New("rate limit"))
	if retry {
		t.Error("should stop retrying at MaxAttempts")
	}
}

func TestPacer_HandleError_NonQuota(t *testing.T) {
	p := NewPacer(nil)

	retry, wait := p.HandleError(errors.New("connection refused"))
	if retry || wait != 0 {
		t.Errorf("non-quota error: retry=%v wait=%v, want false, 0", retry, wait)
	}
}

func TestPacer_SuccessResetsBackoff(t *testing.T) {
	p := NewPacer(&PacerConfig{
		CallDelay:         10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          1 * time.Second,
		MaxAttempts:       5,
	})

	p.HandleError(errors.New("429"))
	p.HandleError(errors.New("429"))
	p.Success()

	if p.consecutiveErrors != 0 {
		t.Errorf("consecutiveErrors = %d after Success, want 0", p.consecutiveErrors)
	}
	if p.currentDelay != 10*time.Millisecond {
		t.Errorf("currentDelay = %v after Success, want 10ms", p.currentDelay)
	}
}

func TestPacer_ExecuteWithRetry(t *testing.T) {
	p := NewPacer(&PacerConfig{
		CallDelay:         time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxDelay:          5 * time.Millisecond,
		MaxAttempts:       3,
	})

	calls := 0
	err := p.ExecuteWithRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("429 too many requests")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithRetry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPacer_ExecuteWithRetry_FatalError(t *testing.T) {
	p := NewPacer(&PacerConfig{
		CallDelay:         time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxDelay:          5 * time.Millisecond,
		MaxAttempts:       3,
	})

	fatal := errors.New("permission denied")
	calls := 0
	err := p.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("err = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on fatal errors)", calls)
	}
}

func TestPacer_ExecuteWithRetry_ContextCancel(t *testing.T) {
	p := NewPacer(&PacerConfig{
		CallDelay:         time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          time.Minute,
		MaxAttempts:       5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.ExecuteWithRetry(ctx, func() error {
		return errors.New("429")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// Package ratelimit paces outbound API calls and throttles repeated
// inbound requests.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces calls to an upstream API and retries throttled ones with
// exponential backoff. Google's Sheets quotas return 429s under burst
// load; the pacer slows down when it sees them and recovers after a
// successful call.
type Pacer struct {
	limiter           *rate.Limiter
	mu                sync.Mutex
	consecutiveErrors int
	currentDelay      time.Duration
	config            *PacerConfig
}

// PacerConfig holds pacing and retry parameters.
type PacerConfig struct {
	CallDelay         time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	MaxAttempts       int
}

// DefaultPacerConfig returns the pacing used for Sheets API reads.
func DefaultPacerConfig() *PacerConfig {
	return &PacerConfig{
		CallDelay:         200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       5,
	}
}

// NewPacer creates a pacer. A nil config uses DefaultPacerConfig.
func NewPacer(cfg *PacerConfig) *Pacer {
	if cfg == nil {
		cfg = DefaultPacerConfig()
	}

	rps := float64(time.Second) / float64(cfg.CallDelay)

	return &Pacer{
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		currentDelay: cfg.CallDelay,
		config:       cfg,
	}
}

// Wait blocks until the next call is allowed.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// HandleError inspects a call error and reports whether to retry and how
// long to back off first. Only quota errors trigger retries.
func (p *Pacer) HandleError(err error) (shouldRetry bool, waitTime time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	errStr := strings.ToLower(err.Error())
	if !strings.Contains(errStr, "429") && !strings.Contains(errStr, "rate limit") &&
		!strings.Contains(errStr, "quota") {
		return false, 0
	}

	p.consecutiveErrors++

	waitTime = time.Duration(math.Min(
		float64(p.currentDelay)*math.Pow(p.config.BackoffMultiplier, float64(p.consecutiveErrors-1)),
		float64(p.config.MaxDelay),
	))

	if waitTime > p.currentDelay {
		p.currentDelay = waitTime
		rps := float64(time.Second) / float64(waitTime)
		p.limiter.SetLimit(rate.Limit(rps))
	}

	return p.consecutiveErrors < p.config.MaxAttempts, waitTime
}

// Success resets the backoff state after a clean call.
func (p *Pacer) Success() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.consecutiveErrors > 0 {
		p.consecutiveErrors = 0
		p.currentDelay = p.config.CallDelay
		rps := float64(time.Second) / float64(p.config.CallDelay)
		p.limiter.SetLimit(rate.Limit(rps))
	}
}

// ExecuteWithRetry runs fn under the pacer, retrying throttled calls with
// backoff. Non-quota errors return immediately.
func (p *Pacer) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt < p.config.MaxAttempts; attempt++ {
		if err := p.Wait(ctx); err != nil {
			return fmt.Errorf("pacer wait: %w", err)
		}

		err := fn()
		if err == nil {
			p.Success()
			return nil
		}

		shouldRetry, waitTime := p.HandleError(err)
		if !shouldRetry {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded", p.config.MaxAttempts)
}

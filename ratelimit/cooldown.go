package ratelimit

import (
	"sync"
	"time"
)

// CooldownConfig limits how many times an action may run per key within a
// rolling window.
type CooldownConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// Result reports a cooldown check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter gates repeated actions by key. Implementations decide where the
// counters live; handlers only depend on this interface.
type Limiter interface {
	Check(key string, cfg CooldownConfig) Result
}

// cooldownEntry tracks one key's window.
type cooldownEntry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is an in-process Limiter. Counters are per instance, so a
// multi-instance deployment would need a shared store behind the Limiter
// interface instead.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*cooldownEntry
	now     func() time.Time
}

// NewMemoryLimiter creates an empty in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*cooldownEntry),
		now:     time.Now,
	}
}

// Check consumes one attempt for key if the window allows it. The first
// attempt opens a new window; once MaxAttempts are used, further checks
// are denied until ResetAt.
func (m *MemoryLimiter) Check(key string, cfg CooldownConfig) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	entry, ok := m.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &cooldownEntry{resetAt: now.Add(cfg.Window)}
		m.entries[key] = entry
	}

	if entry.count >= cfg.MaxAttempts {
		return Result{Allowed: false, Remaining: 0, ResetAt: entry.resetAt}
	}

	entry.count++
	return Result{
		Allowed:   true,
		Remaining: cfg.MaxAttempts - entry.count,
		ResetAt:   entry.resetAt,
	}
}

// sweep drops expired windows. Called under the lock; the map stays small
// (one entry per active key) so a full scan is fine.
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, entry := range m.entries {
		if !now.Before(entry.resetAt) {
			delete(m.entries, key)
		}
	}
}

package resolve

import (
	"sync"
	"time"
)

// Breaker is a sliding-window circuit breaker. Once the failure count
// inside the window crosses the threshold, Allow reports false until the
// cooldown elapses. A success clears the window.
type Breaker struct {
	threshold int
	window    time.Duration
	cooldown  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	failures  []time.Time
	openUntil time.Time
}

type BreakerConfig struct {
	FailureThreshold int
	Window           time.Duration
	Cooldown         time.Duration
	Now              func() time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Breaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       now,
	}
}

// Allow reports whether an upstream attempt may proceed.
func (b *Breaker) Allow() bool {
	if b == nil {
		return true
	}
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Before(b.openUntil) {
		return false
	}
	return true
}

// RecordFailure notes one terminal or retry-exhausted failure. Crossing
// the threshold inside the window opens the breaker for the cooldown.
func (b *Breaker) RecordFailure() {
	if b == nil {
		return
	}
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = append(b.failures, now)
	b.trimLocked(now)
	if len(b.failures) >= b.threshold {
		b.openUntil = now.Add(b.cooldown)
		b.failures = b.failures[:0]
	}
}

// RecordSuccess clears accumulated failures and closes the breaker.
func (b *Breaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = b.failures[:0]
	b.openUntil = time.Time{}
}

func (b *Breaker) trimLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, failedAt := range b.failures {
		if failedAt.After(cutoff) {
			kept = append(kept, failedAt)
		}
	}
	b.failures = kept
}

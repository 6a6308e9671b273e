package resolve

import (
	"context"
	"time"
)

// BackoffPolicy maps a zero-based retry attempt to a delay. Delays are
// strictly increasing so exhausted retries never hammer the upstream.
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func NewBackoffPolicy(initial time.Duration) BackoffPolicy {
	if initial <= 0 {
		initial = time.Second
	}
	return BackoffPolicy{Initial: initial, Max: time.Minute}
}

// Delay returns the wait before retry attempt n (0 → Initial, 1 → 2x,
// 2 → 4x, capped at Max).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.Initial
	if delay <= 0 {
		delay = time.Second
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.Max > 0 && delay >= p.Max {
			return p.Max
		}
	}
	return delay
}

// Sleeper waits out a backoff delay. Tests inject a recording fake.
type Sleeper func(ctx context.Context, d time.Duration) error

func ContextSleeper(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

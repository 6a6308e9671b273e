// Package ratelimit enforces the shared outbound request budget and
// tracks per-provider throttle state learned from API responses.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-reconcile/core"
)

// ThrottledError is returned when the budget is exhausted or the
// provider told us to back off. RetryAfter is how long to wait.
type ThrottledError struct {
	ProviderID string
	BucketKey  string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: provider %q bucket %q throttled for %s",
		strings.TrimSpace(e.ProviderID),
		strings.TrimSpace(e.BucketKey),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToReconError() *goerrors.Error {
	metadata := map[string]any{
		"provider_id": strings.TrimSpace(e.ProviderID),
		"bucket_key":  strings.TrimSpace(e.BucketKey),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ReconErrorRateLimited).
		WithMetadata(metadata)
}

// Limiter is a fixed-window budget shared by every consumer of one
// provider. Reserve blocks until a slot frees or the context ends, so
// concurrent workers queue instead of failing.
type Limiter struct {
	providerID string
	budget     int
	window     time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	windowStart time.Time
	used        int
}

type LimiterConfig struct {
	ProviderID        string
	RequestsPerWindow int
	Window            time.Duration
	Now               func() time.Time
	// Sleep is injected by tests; the default honors ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewLimiter(cfg LimiterConfig) *Limiter {
	budget := cfg.RequestsPerWindow
	if budget <= 0 {
		budget = 30
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = core.SystemClock
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Limiter{
		providerID: strings.TrimSpace(strings.ToLower(cfg.ProviderID)),
		budget:     budget,
		window:     window,
		now:        now,
		sleep:      sleep,
	}
}

// Reserve takes one slot from the current window, waiting for the next
// window when the budget is spent.
func (l *Limiter) Reserve(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		wait, ok := l.tryReserve()
		if ok {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryReserve takes a slot without waiting. When the budget is spent it
// returns a ThrottledError carrying the time until the window resets.
func (l *Limiter) TryReserve() error {
	if l == nil {
		return nil
	}
	wait, ok := l.tryReserve()
	if ok {
		return nil
	}
	return ThrottledError{
		ProviderID: l.providerID,
		BucketKey:  "window",
		RetryAfter: wait,
	}
}

func (l *Limiter) tryReserve() (time.Duration, bool) {
	now := l.now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.used = 0
	}
	if l.used < l.budget {
		l.used++
		return 0, true
	}
	return l.windowStart.Add(l.window).Sub(now), false
}

// Remaining reports the unused budget in the current window.
func (l *Limiter) Remaining() int {
	if l == nil {
		return 0
	}
	now := l.now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		return l.budget
	}
	return l.budget - l.used
}

func sleepContext(ctx context.Context, d time.Duration) error {
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

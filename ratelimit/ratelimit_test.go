package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-reconcile/core"
)

func TestLimiter_SharedWindowBudget(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	limiter := NewLimiter(LimiterConfig{
		ProviderID:        "ozon",
		RequestsPerWindow: 3,
		Window:            time.Minute,
		Now:               func() time.Time { return now },
	})

	for i := 0; i < 3; i++ {
		if err := limiter.TryReserve(); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}
	err := limiter.TryReserve()
	if err == nil {
		t.Fatalf("expected budget exhaustion")
	}
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected ThrottledError, got %T", err)
	}
	if throttled.RetryAfter != time.Minute {
		t.Fatalf("expected full window retry hint, got %s", throttled.RetryAfter)
	}

	// Next window replenishes the budget.
	now = now.Add(time.Minute)
	if err := limiter.TryReserve(); err != nil {
		t.Fatalf("reserve after window rollover: %v", err)
	}
	if remaining := limiter.Remaining(); remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", remaining)
	}
}

func TestLimiter_ReserveWaitsForNextWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	var slept []time.Duration
	limiter := NewLimiter(LimiterConfig{
		ProviderID:        "ozon",
		RequestsPerWindow: 1,
		Window:            time.Minute,
		Now:               func() time.Time { return now },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			now = now.Add(d)
			return nil
		},
	})

	if err := limiter.Reserve(context.Background()); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := limiter.Reserve(context.Background()); err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if len(slept) != 1 || slept[0] != time.Minute {
		t.Fatalf("expected one full-window sleep, got %v", slept)
	}
}

func TestLimiter_ReserveHonorsCancellation(t *testing.T) {
	limiter := NewLimiter(LimiterConfig{
		ProviderID:        "ozon",
		RequestsPerWindow: 1,
		Window:            time.Minute,
	})
	if err := limiter.TryReserve(); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Reserve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAdaptivePolicy_BeforeCallAllowsWhenNoState(t *testing.T) {
	policy := NewAdaptivePolicy(NewMemoryStateStore())

	key := core.RateLimitKey{ProviderID: "ozon", BucketKey: "stocks"}
	if err := policy.BeforeCall(context.Background(), key); err != nil {
		t.Fatalf("expected no error when no state exists, got %v", err)
	}
}

func TestAdaptivePolicy_AfterCallParsesHeadersAndPersistsState(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }

	key := core.RateLimitKey{ProviderID: "ozon", BucketKey: "stocks"}
	resetAt := now.Add(45 * time.Second)
	err := policy.AfterCall(context.Background(), key, ResponseMeta{
		StatusCode: 200,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "30",
			"X-RateLimit-Remaining": "29",
			"X-RateLimit-Reset":     "1700000045",
		},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	state, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Limit != 30 || state.Remaining != 29 {
		t.Fatalf("unexpected parsed state: %+v", state)
	}
	if state.ResetAt == nil || !state.ResetAt.Equal(resetAt) {
		t.Fatalf("expected reset at %s, got %+v", resetAt, state.ResetAt)
	}
}

func TestAdaptivePolicy_429OpensThrottleWindow(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }

	key := core.RateLimitKey{ProviderID: "ozon", BucketKey: "stocks"}
	err := policy.AfterCall(context.Background(), key, ResponseMeta{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "30"},
	})
	if err != nil {
		t.Fatalf("after call: %v", err)
	}

	blockErr := policy.BeforeCall(context.Background(), key)
	var throttled ThrottledError
	if !errors.As(blockErr, &throttled) {
		t.Fatalf("expected ThrottledError, got %v", blockErr)
	}
	if throttled.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s retry hint, got %s", throttled.RetryAfter)
	}

	// A clean response closes the window.
	if err := policy.AfterCall(context.Background(), key, ResponseMeta{StatusCode: 200}); err != nil {
		t.Fatalf("after clean call: %v", err)
	}
	if err := policy.BeforeCall(context.Background(), key); err != nil {
		t.Fatalf("expected window to close, got %v", err)
	}
}

func TestAdaptivePolicy_BackoffDoublesPerConsecutiveThrottle(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAdaptivePolicy(store)
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }

	key := core.RateLimitKey{ProviderID: "ozon", BucketKey: "stocks"}
	wantDelays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, want := range wantDelays {
		if err := policy.AfterCall(context.Background(), key, ResponseMeta{StatusCode: 429}); err != nil {
			t.Fatalf("after call %d: %v", i, err)
		}
		state, err := store.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("get state %d: %v", i, err)
		}
		if state.ThrottledUntil == nil {
			t.Fatalf("expected throttle window after call %d", i)
		}
		if got := state.ThrottledUntil.Sub(now); got != want {
			t.Fatalf("attempt %d: expected backoff %s, got %s", i+1, want, got)
		}
	}
}

func TestThrottledError_ReconEnvelope(t *testing.T) {
	err := ThrottledError{ProviderID: "ozon", BucketKey: "stocks", RetryAfter: 15 * time.Second}
	rich := err.ToReconError()
	if rich.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %v", rich.Category)
	}
	if rich.TextCode != core.ReconErrorRateLimited {
		t.Fatalf("expected %s, got %s", core.ReconErrorRateLimited, rich.TextCode)
	}
	if rich.Metadata["retry_after_ms"] != int64(15000) {
		t.Fatalf("expected retry_after_ms metadata, got %v", rich.Metadata["retry_after_ms"])
	}
}

// Package resolve implements the fallback-aware catalog lookup: fresh
// cache first, then the live API with bounded retries behind a circuit
// breaker, then stale data or a synthesized placeholder.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/marketplace"
)

// Source tells the caller where the resolved value came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceAPI      Source = "api"
	SourceFallback Source = "fallback"
)

const (
	confidenceLive     = 1.0
	confidenceStale    = 0.5
	confidenceFallback = 0.0

	defaultCacheTTL  = 24 * time.Hour
	defaultCacheSize = 4096
	defaultRetries   = 3
)

// Resolution is the explicit outcome of a lookup. Callers branch on
// Source and Stale instead of catching errors.
type Resolution struct {
	CanonicalID string
	DisplayName string
	Brand       string
	Source      Source
	Confidence  float64
	Stale       bool
}

type cacheEntry struct {
	displayName string
	brand       string
}

type Config struct {
	Client         core.MarketplaceClient
	Refs           core.CrossReferenceStore
	CacheTTL       time.Duration
	CacheSize      int
	MaxRetries     int
	InitialBackoff time.Duration
	Breaker        *Breaker
	Sleeper        Sleeper
	Logger         core.Logger
	Now            func() time.Time
}

// Resolver resolves canonical ids to display metadata.
type Resolver struct {
	client   core.MarketplaceClient
	refs     core.CrossReferenceStore
	cache    *expirable.LRU[string, cacheEntry]
	cacheTTL time.Duration
	retries  int
	backoff  BackoffPolicy
	breaker  *Breaker
	sleep    Sleeper
	logger   core.Logger
	now      func() time.Time
}

func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("resolve: marketplace client is required")
	}
	if cfg.Refs == nil {
		return nil, fmt.Errorf("resolve: cross reference store is required")
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultRetries
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = NewBreaker(BreakerConfig{Now: cfg.Now})
	}
	sleep := cfg.Sleeper
	if sleep == nil {
		sleep = ContextSleeper
	}
	now := cfg.Now
	if now == nil {
		now = core.SystemClock
	}

	return &Resolver{
		client:   cfg.Client,
		refs:     cfg.Refs,
		cache:    expirable.NewLRU[string, cacheEntry](cacheSize, nil, cacheTTL),
		cacheTTL: cacheTTL,
		retries:  retries,
		backoff:  NewBackoffPolicy(cfg.InitialBackoff),
		breaker:  breaker,
		sleep:    sleep,
		logger:   glog.Ensure(cfg.Logger),
		now:      now,
	}, nil
}

// Resolve looks up display metadata for a canonical id following the
// cache → api → stale → placeholder ladder.
func (r *Resolver) Resolve(ctx context.Context, canonicalID string) (Resolution, error) {
	if r == nil {
		return Resolution{}, fmt.Errorf("resolve: resolver is nil")
	}
	canonicalID = strings.TrimSpace(canonicalID)
	if canonicalID == "" {
		return Resolution{}, fmt.Errorf("resolve: canonical id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if entry, ok := r.cache.Get(canonicalID); ok {
		return Resolution{
			CanonicalID: canonicalID,
			DisplayName: entry.displayName,
			Brand:       entry.brand,
			Source:      SourceCache,
			Confidence:  confidenceLive,
		}, nil
	}

	ref, refErr := r.refs.Get(ctx, canonicalID)
	if refErr != nil && !errors.Is(refErr, core.ErrCrossReferenceNotFound) {
		return Resolution{}, fmt.Errorf("resolve: load cross reference: %w", refErr)
	}
	hasRef := refErr == nil

	now := r.now().UTC()
	if hasRef && ref.LastResolvedAt != nil && now.Sub(*ref.LastResolvedAt) < r.cacheTTL &&
		strings.TrimSpace(ref.CachedDisplayName) != "" {
		r.cache.Add(canonicalID, cacheEntry{displayName: ref.CachedDisplayName, brand: ref.CachedBrand})
		return Resolution{
			CanonicalID: canonicalID,
			DisplayName: ref.CachedDisplayName,
			Brand:       ref.CachedBrand,
			Source:      SourceCache,
			Confidence:  confidenceLive,
		}, nil
	}

	var fetchErr error
	if r.breaker.Allow() {
		detail, err := r.fetchWithRetry(ctx, canonicalID)
		if err == nil {
			r.breaker.RecordSuccess()
			return r.storeLive(ctx, canonicalID, ref, hasRef, detail)
		}
		fetchErr = err
		r.breaker.RecordFailure()
	} else {
		fetchErr = fmt.Errorf("resolve: circuit breaker open for upstream")
	}

	if hasRef && strings.TrimSpace(ref.CachedDisplayName) != "" {
		// Stale data beats a placeholder; a later retry sweep refreshes it.
		if ref.SyncStatus == core.SyncStatusFailed {
			if err := ref.MarkSyncStatus(core.SyncStatusPending, fetchErr.Error(), r.now().UTC()); err == nil {
				if _, err := r.refs.Upsert(ctx, ref); err != nil {
					r.logger.Warn("stale cross reference update failed", "canonical_id", canonicalID, "error", err)
				}
			}
		}
		return Resolution{
			CanonicalID: canonicalID,
			DisplayName: ref.CachedDisplayName,
			Brand:       ref.CachedBrand,
			Source:      SourceCache,
			Confidence:  confidenceStale,
			Stale:       true,
		}, nil
	}

	return r.storePlaceholder(ctx, canonicalID, ref, hasRef, fetchErr)
}

// Invalidate drops the in-memory entry so the next lookup goes through
// the persistent store again.
func (r *Resolver) Invalidate(canonicalID string) {
	if r == nil {
		return
	}
	r.cache.Remove(strings.TrimSpace(canonicalID))
}

func (r *Resolver) fetchWithRetry(ctx context.Context, canonicalID string) (core.ItemDetail, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		detail, err := r.client.FetchItem(ctx, canonicalID)
		if err == nil {
			return detail, nil
		}
		lastErr = err
		if !marketplace.Retryable(err) {
			return core.ItemDetail{}, err
		}
		if attempt >= r.retries {
			break
		}
		if sleepErr := r.sleep(ctx, r.backoff.Delay(attempt)); sleepErr != nil {
			return core.ItemDetail{}, sleepErr
		}
	}
	return core.ItemDetail{}, fmt.Errorf("resolve: retries exhausted for %s: %w", canonicalID, lastErr)
}

func (r *Resolver) storeLive(
	ctx context.Context,
	canonicalID string,
	ref core.CrossReference,
	hasRef bool,
	detail core.ItemDetail,
) (Resolution, error) {
	now := r.now().UTC()
	if !hasRef {
		ref = core.CrossReference{
			ID:          uuid.NewString(),
			CanonicalID: canonicalID,
			SyncStatus:  core.SyncStatusPending,
			CreatedAt:   now,
		}
	}
	ref.CachedDisplayName = detail.DisplayName
	ref.CachedBrand = detail.Brand
	resolvedAt := now
	ref.LastResolvedAt = &resolvedAt
	if err := ref.MarkSyncStatus(core.SyncStatusSynced, "", now); err != nil &&
		!errors.Is(err, core.ErrInvalidSyncStatusTransition) {
		return Resolution{}, err
	}
	if _, err := r.refs.Upsert(ctx, ref); err != nil {
		return Resolution{}, fmt.Errorf("resolve: persist cross reference: %w", err)
	}
	r.cache.Add(canonicalID, cacheEntry{displayName: detail.DisplayName, brand: detail.Brand})
	return Resolution{
		CanonicalID: canonicalID,
		DisplayName: detail.DisplayName,
		Brand:       detail.Brand,
		Source:      SourceAPI,
		Confidence:  confidenceLive,
	}, nil
}

func (r *Resolver) storePlaceholder(
	ctx context.Context,
	canonicalID string,
	ref core.CrossReference,
	hasRef bool,
	cause error,
) (Resolution, error) {
	now := r.now().UTC()
	if !hasRef {
		ref = core.CrossReference{
			ID:          uuid.NewString(),
			CanonicalID: canonicalID,
			SyncStatus:  core.SyncStatusPending,
			CreatedAt:   now,
		}
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if err := ref.MarkSyncStatus(core.SyncStatusFailed, reason, now); err != nil {
		r.logger.Warn("placeholder sync status update skipped",
			"canonical_id", canonicalID, "error", err)
	}
	if _, err := r.refs.Upsert(ctx, ref); err != nil {
		return Resolution{}, fmt.Errorf("resolve: persist cross reference: %w", err)
	}
	return Resolution{
		CanonicalID: canonicalID,
		DisplayName: PlaceholderName(canonicalID),
		Source:      SourceFallback,
		Confidence:  confidenceFallback,
	}, nil
}

// PlaceholderName synthesizes a display value when no data exists.
func PlaceholderName(canonicalID string) string {
	return "Товар " + strings.TrimSpace(canonicalID)
}

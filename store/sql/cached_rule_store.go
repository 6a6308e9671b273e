package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-reconcile/core"
)

const ruleCacheKeyPrefix = "go-reconcile::normalization_rule::v1"

// CachedRuleStore fronts the SQL rule dictionary with a read-through
// cache. Lookup is the hot path of the transform phase; every other
// operation writes through and invalidates.
type CachedRuleStore struct {
	base  core.RuleStore
	cache repositorycache.CacheService
}

func NewCachedRuleStore(base core.RuleStore, cacheService repositorycache.CacheService) (*CachedRuleStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base rule store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: rule cache service is required")
	}
	return &CachedRuleStore{base: base, cache: cacheService}, nil
}

// RuleCacheKey returns the deterministic cache key for a rule lookup:
// go-reconcile::normalization_rule::v1::<source_type>::<original_name>
// with each segment URL-path escaped.
func RuleCacheKey(originalName string, sourceType string) string {
	segments := []string{
		strings.TrimSpace(strings.ToLower(sourceType)),
		strings.TrimSpace(originalName),
	}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{ruleCacheKeyPrefix}, segments...), "::")
}

func (s *CachedRuleStore) Lookup(ctx context.Context, originalName string, sourceType string) (core.NormalizationRule, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.NormalizationRule{}, fmt.Errorf("sqlstore: cached rule store is not configured")
	}
	cacheKey := RuleCacheKey(originalName, sourceType)
	rule, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.NormalizationRule, error) {
		return s.base.Lookup(ctx, originalName, sourceType)
	})
	if err != nil {
		return core.NormalizationRule{}, err
	}
	return rule, nil
}

func (s *CachedRuleStore) Upsert(ctx context.Context, rule core.NormalizationRule) (core.NormalizationRule, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.NormalizationRule{}, fmt.Errorf("sqlstore: cached rule store is not configured")
	}
	updated, err := s.base.Upsert(ctx, rule)
	if err != nil {
		return core.NormalizationRule{}, err
	}
	if err := s.cache.Delete(ctx, RuleCacheKey(updated.OriginalName, updated.SourceType)); err != nil {
		return core.NormalizationRule{}, err
	}
	return updated, nil
}

func (s *CachedRuleStore) ListCanonicalNames(ctx context.Context, sourceType string) ([]string, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached rule store is not configured")
	}
	return s.base.ListCanonicalNames(ctx, sourceType)
}

func (s *CachedRuleStore) ListUnrecognized(ctx context.Context, limit int) ([]core.NormalizationRule, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached rule store is not configured")
	}
	return s.base.ListUnrecognized(ctx, limit)
}

func (s *CachedRuleStore) Deactivate(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached rule store is not configured")
	}
	// The key holds the (name, source) pair, not the id; fetch first so
	// the stale entry can be dropped.
	var cacheKey string
	if byID, ok := s.base.(interface {
		GetByID(ctx context.Context, id string) (core.NormalizationRule, error)
	}); ok {
		if rule, err := byID.GetByID(ctx, id); err == nil {
			cacheKey = RuleCacheKey(rule.OriginalName, rule.SourceType)
		}
	}
	if err := s.base.Deactivate(ctx, id); err != nil {
		return err
	}
	if cacheKey != "" {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return err
		}
	}
	return nil
}

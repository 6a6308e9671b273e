package names

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-reconcile/core"
	"github.com/google/uuid"
)

// RuleStore is the persisted, continuously learned rule dictionary. The
// SQL implementation lives in store/sql; MemoryRuleStore backs tests and
// single-process tooling.
type RuleStore = core.RuleStore

type MemoryRuleStore struct {
	mu    sync.RWMutex
	items map[string]core.NormalizationRule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{items: map[string]core.NormalizationRule{}}
}

func ruleKey(originalName string, sourceType string) string {
	return strings.TrimSpace(originalName) + "|" + strings.TrimSpace(strings.ToLower(sourceType))
}

func (s *MemoryRuleStore) Lookup(_ context.Context, originalName string, sourceType string) (core.NormalizationRule, error) {
	if s == nil {
		return core.NormalizationRule{}, fmt.Errorf("names: rule store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.items[ruleKey(originalName, sourceType)]
	if !ok || !rule.Active {
		return core.NormalizationRule{}, fmt.Errorf("%w: %q (%s)", core.ErrRuleNotFound, originalName, sourceType)
	}
	return rule, nil
}

func (s *MemoryRuleStore) Upsert(_ context.Context, rule core.NormalizationRule) (core.NormalizationRule, error) {
	if s == nil {
		return core.NormalizationRule{}, fmt.Errorf("names: rule store is nil")
	}
	if err := rule.Validate(); err != nil {
		return core.NormalizationRule{}, err
	}
	now := time.Now().UTC()
	key := ruleKey(rule.OriginalName, rule.SourceType)

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[key]
	if ok && existing.Active {
		// Confidence and match type are creation-time facts; reuse only
		// bumps the usage counter.
		existing.UsageCount++
		existing.LastUsedAt = now
		existing.UpdatedAt = now
		s.items[key] = existing
		return existing, nil
	}

	if strings.TrimSpace(rule.ID) == "" {
		rule.ID = uuid.NewString()
	}
	rule.UsageCount = 1
	rule.LastUsedAt = now
	rule.Active = true
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.items[key] = rule
	return rule, nil
}

func (s *MemoryRuleStore) ListCanonicalNames(_ context.Context, sourceType string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("names: rule store is nil")
	}
	sourceType = strings.TrimSpace(strings.ToLower(sourceType))
	seen := map[string]struct{}{}
	s.mu.RLock()
	for _, rule := range s.items {
		if !rule.Active {
			continue
		}
		if sourceType != "" && strings.ToLower(rule.SourceType) != sourceType {
			continue
		}
		seen[rule.CanonicalName] = struct{}{}
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryRuleStore) ListUnrecognized(_ context.Context, limit int) ([]core.NormalizationRule, error) {
	if s == nil {
		return nil, fmt.Errorf("names: rule store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make([]core.NormalizationRule, 0)
	for _, rule := range s.items {
		if rule.Active && rule.NeedsReview {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].UsageCount > rules[j].UsageCount
	})
	if limit > 0 && len(rules) > limit {
		rules = rules[:limit]
	}
	return rules, nil
}

func (s *MemoryRuleStore) Deactivate(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("names: rule store is nil")
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rule := range s.items {
		if rule.ID == id {
			rule.Active = false
			rule.UpdatedAt = time.Now().UTC()
			s.items[key] = rule
			return nil
		}
	}
	return fmt.Errorf("%w: id %q", core.ErrRuleNotFound, id)
}

var _ RuleStore = (*MemoryRuleStore)(nil)

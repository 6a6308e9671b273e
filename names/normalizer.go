// Package names maps free-text facility names to canonical warehouse keys
// with a confidence score, learning new rules as it resolves.
package names

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-reconcile/core"
)

const defaultFuzzyThreshold = 0.75

var ErrEmptyName = errors.New("names: facility name is required")

// Match is the outcome of one name resolution.
type Match struct {
	CanonicalKey string
	MatchType    core.MatchType
	Confidence   float64
	NeedsReview  bool
}

type Config struct {
	Rules          RuleStore
	FuzzyThreshold float64
	Logger         core.Logger
	Now            func() time.Time
}

type Normalizer struct {
	rules          RuleStore
	fuzzyThreshold float64
	logger         core.Logger
	now            func() time.Time
}

func NewNormalizer(cfg Config) (*Normalizer, error) {
	if cfg.Rules == nil {
		return nil, fmt.Errorf("names: rule store is required")
	}
	threshold := cfg.FuzzyThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultFuzzyThreshold
	}
	now := cfg.Now
	if now == nil {
		now = core.SystemClock
	}
	return &Normalizer{
		rules:          cfg.Rules,
		fuzzyThreshold: threshold,
		logger:         cfg.Logger,
		now:            now,
	}, nil
}

// Normalize resolves rawName through the ordered rule chain: exact store
// hit, pattern templates, fuzzy match against known canonical keys, then
// the fallback slug. First match wins; every resolution feeds the rule
// store so the dictionary keeps learning.
func (n *Normalizer) Normalize(ctx context.Context, rawName string, sourceType string) (Match, error) {
	if n == nil || n.rules == nil {
		return Match{}, fmt.Errorf("names: normalizer is not configured")
	}
	rawName = strings.TrimSpace(rawName)
	if rawName == "" {
		return Match{}, ErrEmptyName
	}
	sourceType = strings.TrimSpace(strings.ToLower(sourceType))
	if sourceType == "" {
		return Match{}, fmt.Errorf("names: source type is required")
	}

	if rule, err := n.rules.Lookup(ctx, rawName, sourceType); err == nil {
		if _, upsertErr := n.rules.Upsert(ctx, rule); upsertErr != nil {
			return Match{}, upsertErr
		}
		return Match{
			CanonicalKey: rule.CanonicalName,
			MatchType:    core.MatchTypeExact,
			Confidence:   core.MatchTypeExact.Confidence(),
			NeedsReview:  rule.NeedsReview,
		}, nil
	} else if !errors.Is(err, core.ErrRuleNotFound) {
		return Match{}, err
	}

	if canonical, ok := applyTemplates(rawName); ok {
		return n.learn(ctx, rawName, sourceType, canonical, core.MatchTypeRuleBased, false)
	}

	if canonical, ok, err := n.fuzzyMatch(ctx, rawName, sourceType); err != nil {
		return Match{}, err
	} else if ok {
		return n.learn(ctx, rawName, sourceType, canonical, core.MatchTypeFuzzy, false)
	}

	return n.learn(ctx, rawName, sourceType, Slugify(rawName), core.MatchTypeAutoDetected, true)
}

func (n *Normalizer) fuzzyMatch(ctx context.Context, rawName string, sourceType string) (string, bool, error) {
	known, err := n.rules.ListCanonicalNames(ctx, sourceType)
	if err != nil {
		return "", false, err
	}
	best := ""
	bestScore := 0.0
	for _, candidate := range known {
		score := combinedSimilarity(rawName, candidate)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	if bestScore < n.fuzzyThreshold {
		return "", false, nil
	}
	return best, true, nil
}

func (n *Normalizer) learn(
	ctx context.Context,
	rawName string,
	sourceType string,
	canonical string,
	matchType core.MatchType,
	needsReview bool,
) (Match, error) {
	rule := core.NormalizationRule{
		OriginalName:  rawName,
		CanonicalName: canonical,
		SourceType:    sourceType,
		MatchType:     matchType,
		Confidence:    matchType.Confidence(),
		NeedsReview:   needsReview,
		Active:        true,
	}
	stored, err := n.rules.Upsert(ctx, rule)
	if err != nil {
		return Match{}, err
	}
	if needsReview && n.logger != nil {
		n.logger.Info("facility name needs review",
			"original_name", rawName,
			"canonical_key", stored.CanonicalName,
			"source_type", sourceType,
		)
	}
	return Match{
		CanonicalKey: stored.CanonicalName,
		MatchType:    matchType,
		Confidence:   matchType.Confidence(),
		NeedsReview:  needsReview,
	}, nil
}

// Promote replaces a learned rule with a curated manual mapping. The
// original rule row is deactivated rather than edited, so its recorded
// confidence stays untouched.
func (n *Normalizer) Promote(ctx context.Context, originalName string, sourceType string, canonical string) (core.NormalizationRule, error) {
	if n == nil || n.rules == nil {
		return core.NormalizationRule{}, fmt.Errorf("names: normalizer is not configured")
	}
	canonical = strings.TrimSpace(canonical)
	if canonical == "" {
		return core.NormalizationRule{}, fmt.Errorf("names: canonical name is required")
	}
	sourceType = strings.TrimSpace(strings.ToLower(sourceType))

	existing, err := n.rules.Lookup(ctx, originalName, sourceType)
	if err != nil && !errors.Is(err, core.ErrRuleNotFound) {
		return core.NormalizationRule{}, err
	}
	if err == nil {
		if deactivateErr := n.rules.Deactivate(ctx, existing.ID); deactivateErr != nil {
			return core.NormalizationRule{}, deactivateErr
		}
	}

	return n.rules.Upsert(ctx, core.NormalizationRule{
		OriginalName:  strings.TrimSpace(originalName),
		CanonicalName: canonical,
		SourceType:    sourceType,
		MatchType:     core.MatchTypeManual,
		Confidence:    core.MatchTypeManual.Confidence(),
		Active:        true,
	})
}

// Unrecognized lists fallback-slug rules waiting for manual curation.
func (n *Normalizer) Unrecognized(ctx context.Context, limit int) ([]core.NormalizationRule, error) {
	if n == nil || n.rules == nil {
		return nil, fmt.Errorf("names: normalizer is not configured")
	}
	return n.rules.ListUnrecognized(ctx, limit)
}

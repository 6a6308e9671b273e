package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-reconcile/core"
)

type RuleStore struct {
	db   *bun.DB
	repo repository.Repository[*ruleRecord]
}

func NewRuleStore(db *bun.DB) (*RuleStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*ruleRecord](db, ruleHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid rule repository wiring: %w", err)
		}
	}
	return &RuleStore{db: db, repo: repo}, nil
}

func (s *RuleStore) Lookup(ctx context.Context, originalName string, sourceType string) (core.NormalizationRule, error) {
	if s == nil || s.db == nil {
		return core.NormalizationRule{}, fmt.Errorf("sqlstore: rule store is not configured")
	}
	originalName = strings.TrimSpace(originalName)
	sourceType = strings.TrimSpace(sourceType)
	if originalName == "" {
		return core.NormalizationRule{}, fmt.Errorf("sqlstore: original name is required")
	}

	record, err := s.repo.Get(ctx,
		repository.SelectBy("original_name", "=", originalName),
		repository.SelectBy("source_type", "=", sourceType),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.active = ?", true)
		}),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.NormalizationRule{}, fmt.Errorf("%w: %s", core.ErrRuleNotFound, originalName)
		}
		return core.NormalizationRule{}, err
	}
	return record.toDomain(), nil
}

// Upsert inserts the rule or, on the (original_name, source_type)
// conflict with an active rule, bumps the usage counter and refreshes
// last_used_at inside a transaction. Confidence and match type are
// creation-time facts; an inactive rule is replaced outright.
func (s *RuleStore) Upsert(ctx context.Context, rule core.NormalizationRule) (core.NormalizationRule, error) {
	if s == nil || s.db == nil {
		return core.NormalizationRule{}, fmt.Errorf("sqlstore: rule store is not configured")
	}
	if err := rule.Validate(); err != nil {
		return core.NormalizationRule{}, err
	}
	rule.OriginalName = strings.TrimSpace(rule.OriginalName)
	rule.SourceType = strings.TrimSpace(rule.SourceType)

	now := time.Now().UTC()
	var out core.NormalizationRule
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findRuleTx(ctx, tx, rule.OriginalName, rule.SourceType)
		if err != nil {
			return err
		}

		if existing != nil && existing.Active {
			existing.UsageCount++
			existing.LastUsedAt = now
			existing.UpdatedAt = now
			if _, updateErr := tx.NewUpdate().Model(existing).Where("id = ?", existing.ID).Exec(ctx); updateErr != nil {
				return updateErr
			}
			out = existing.toDomain()
			return nil
		}

		record := newRuleRecord(rule)
		if existing != nil {
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
		}
		if strings.TrimSpace(record.ID) == "" {
			record.ID = uuid.NewString()
		}
		record.UsageCount = 1
		record.LastUsedAt = now
		record.Active = true
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now

		if existing != nil {
			if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
				return updateErr
			}
			out = record.toDomain()
			return nil
		}

		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			if !isUniqueViolation(insertErr) {
				return insertErr
			}
			raced, racedErr := findRuleTx(ctx, tx, rule.OriginalName, rule.SourceType)
			if racedErr != nil {
				return racedErr
			}
			if raced == nil {
				return insertErr
			}
			raced.UsageCount++
			raced.LastUsedAt = now
			raced.UpdatedAt = now
			if _, updateErr := tx.NewUpdate().Model(raced).Where("id = ?", raced.ID).Exec(ctx); updateErr != nil {
				return updateErr
			}
			out = raced.toDomain()
			return nil
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.NormalizationRule{}, err
	}
	return out, nil
}

func (s *RuleStore) GetByID(ctx context.Context, id string) (core.NormalizationRule, error) {
	if s == nil || s.db == nil {
		return core.NormalizationRule{}, fmt.Errorf("sqlstore: rule store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NormalizationRule{}, fmt.Errorf("sqlstore: rule id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.NormalizationRule{}, fmt.Errorf("%w: %s", core.ErrRuleNotFound, id)
		}
		return core.NormalizationRule{}, err
	}
	return record.toDomain(), nil
}

func (s *RuleStore) ListCanonicalNames(ctx context.Context, sourceType string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: rule store is not configured")
	}
	var names []string
	err := s.db.NewSelect().
		Model((*ruleRecord)(nil)).
		ColumnExpr("DISTINCT ?TableAlias.canonical_name").
		Where("?TableAlias.source_type = ?", strings.TrimSpace(sourceType)).
		Where("?TableAlias.active = ?", true).
		Where("?TableAlias.canonical_name <> ''").
		OrderExpr("canonical_name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *RuleStore) ListUnrecognized(ctx context.Context, limit int) ([]core.NormalizationRule, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: rule store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.needs_review = ?", true).
				Where("?TableAlias.active = ?", true)
		}),
		repository.OrderBy("usage_count DESC", "created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.NormalizationRule, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *RuleStore) Deactivate(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rule store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: rule id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return fmt.Errorf("%w: %s", core.ErrRuleNotFound, id)
		}
		return err
	}
	record.Active = false
	record.UpdatedAt = time.Now().UTC()
	if _, err := s.repo.Update(ctx, record, repository.UpdateByID(id)); err != nil {
		return err
	}
	return nil
}

func findRuleTx(ctx context.Context, tx bun.Tx, originalName string, sourceType string) (*ruleRecord, error) {
	record := &ruleRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.original_name = ?", originalName).
		Where("?TableAlias.source_type = ?", sourceType).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

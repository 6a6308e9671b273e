package sqlstore

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-reconcile/core"
)

type RunStore struct {
	db   *bun.DB
	repo repository.Repository[*runRecordRow]
}

func NewRunStore(db *bun.DB) (*RunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*runRecordRow](db, runHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid run repository wiring: %w", err)
		}
	}
	return &RunStore{db: db, repo: repo}, nil
}

// Create inserts directly rather than through the repository: batch ids
// are caller-supplied and must never be regenerated on write.
func (s *RunStore) Create(ctx context.Context, run core.RunRecord) (core.RunRecord, error) {
	if s == nil || s.db == nil {
		return core.RunRecord{}, fmt.Errorf("sqlstore: run store is not configured")
	}
	run.BatchID = strings.TrimSpace(run.BatchID)
	if run.BatchID == "" {
		return core.RunRecord{}, fmt.Errorf("sqlstore: batch id is required")
	}

	record := newRunRecordRow(run)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.RunRecord{}, fmt.Errorf("sqlstore: run %s already exists", run.BatchID)
		}
		return core.RunRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *RunStore) Get(ctx context.Context, batchID string) (core.RunRecord, error) {
	if s == nil || s.db == nil {
		return core.RunRecord{}, fmt.Errorf("sqlstore: run store is not configured")
	}
	batchID = strings.TrimSpace(batchID)

	record, err := s.repo.Get(ctx, repository.SelectBy("batch_id", "=", batchID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.RunRecord{}, fmt.Errorf("%w: %s", core.ErrRunNotFound, batchID)
		}
		return core.RunRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *RunStore) Update(ctx context.Context, run core.RunRecord) (core.RunRecord, error) {
	if s == nil || s.db == nil {
		return core.RunRecord{}, fmt.Errorf("sqlstore: run store is not configured")
	}
	run.BatchID = strings.TrimSpace(run.BatchID)
	if run.BatchID == "" {
		return core.RunRecord{}, fmt.Errorf("sqlstore: batch id is required")
	}

	record := newRunRecordRow(run)
	updated, err := s.repo.Update(ctx, record)
	if err != nil {
		if repository.IsSQLExpectedCountViolation(err) || repository.IsRecordNotFound(err) {
			return core.RunRecord{}, fmt.Errorf("%w: %s", core.ErrRunNotFound, run.BatchID)
		}
		return core.RunRecord{}, err
	}
	return updated.toDomain(), nil
}

func (s *RunStore) ActiveForTarget(ctx context.Context, target string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: run store is not configured")
	}
	count, err := s.repo.Count(ctx,
		repository.SelectBy("target", "=", strings.TrimSpace(target)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.status IN (?)", bun.In(activeRunStatuses()))
		}),
	)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *RunStore) ListRecent(ctx context.Context, target string, limit int) ([]core.RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: run store is not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	target = strings.TrimSpace(target)

	criteria := []repository.SelectCriteria{
		repository.OrderBy("started_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if target != "" {
		criteria = append(criteria, repository.SelectBy("target", "=", target))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.RunRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func activeRunStatuses() []string {
	statuses := make([]string, 0, 4)
	for _, status := range []core.RunStatus{
		core.RunStatusQueued,
		core.RunStatusExtracting,
		core.RunStatusTransforming,
		core.RunStatusLoading,
	} {
		statuses = append(statuses, string(status))
	}
	return statuses
}

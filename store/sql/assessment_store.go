package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-reconcile/core"
)

type AssessmentStore struct {
	db   *bun.DB
	repo repository.Repository[*assessmentRecord]
}

func NewAssessmentStore(db *bun.DB) (*AssessmentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*assessmentRecord](db, assessmentHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid assessment repository wiring: %w", err)
		}
	}
	return &AssessmentStore{db: db, repo: repo}, nil
}

func (s *AssessmentStore) Create(ctx context.Context, assessment core.QualityAssessment) (core.QualityAssessment, error) {
	if s == nil || s.db == nil {
		return core.QualityAssessment{}, fmt.Errorf("sqlstore: assessment store is not configured")
	}
	assessment.BatchID = strings.TrimSpace(assessment.BatchID)
	if assessment.BatchID == "" {
		return core.QualityAssessment{}, fmt.Errorf("sqlstore: batch id is required")
	}

	record := newAssessmentRecord(assessment)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.QualityAssessment{}, err
	}
	return created.toDomain(), nil
}

func (s *AssessmentStore) GetByBatch(ctx context.Context, batchID string) (core.QualityAssessment, error) {
	if s == nil || s.db == nil {
		return core.QualityAssessment{}, fmt.Errorf("sqlstore: assessment store is not configured")
	}
	batchID = strings.TrimSpace(batchID)

	record, err := s.repo.Get(ctx,
		repository.SelectBy("batch_id", "=", batchID),
		repository.OrderBy("created_at DESC"),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.QualityAssessment{}, fmt.Errorf("%w: %s", core.ErrAssessmentNotFound, batchID)
		}
		return core.QualityAssessment{}, err
	}
	return record.toDomain(), nil
}

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

type CrossReferenceStore struct {
	db   *bun.DB
	repo repository.Repository[*crossReferenceRecord]
}

func NewCrossReferenceStore(db *bun.DB) (*CrossReferenceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*crossReferenceRecord](db, crossReferenceHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid cross reference repository wiring: %w", err)
		}
	}
	return &CrossReferenceStore{db: db, repo: repo}, nil
}

func (s *CrossReferenceStore) Get(ctx context.Context, canonicalID string) (core.CrossReference, error) {
	if s == nil || s.db == nil {
		return core.CrossReference{}, fmt.Errorf("sqlstore: cross reference store is not configured")
	}
	canonicalID = strings.TrimSpace(canonicalID)
	if canonicalID == "" {
		return core.CrossReference{}, fmt.Errorf("sqlstore: canonical id is required")
	}

	record, err := s.repo.Get(ctx, repository.SelectBy("canonical_id", "=", canonicalID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.CrossReference{}, fmt.Errorf("%w: %s", core.ErrCrossReferenceNotFound, canonicalID)
		}
		return core.CrossReference{}, err
	}
	return record.toDomain(), nil
}

func (s *CrossReferenceStore) Upsert(ctx context.Context, ref core.CrossReference) (core.CrossReference, error) {
	if s == nil || s.db == nil {
		return core.CrossReference{}, fmt.Errorf("sqlstore: cross reference store is not configured")
	}
	ref.CanonicalID = strings.TrimSpace(ref.CanonicalID)
	if ref.CanonicalID == "" {
		return core.CrossReference{}, fmt.Errorf("sqlstore: canonical id is required")
	}

	now := time.Now().UTC()
	var out core.CrossReference
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &crossReferenceRecord{}
		findErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.canonical_id = ?", ref.CanonicalID).
			Limit(1).
			Scan(ctx)
		if findErr != nil && findErr != sql.ErrNoRows {
			return findErr
		}

		record := newCrossReferenceRecord(ref)
		if findErr == nil {
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			record.UpdatedAt = now
			if _, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx); updateErr != nil {
				return updateErr
			}
			out = record.toDomain()
			return nil
		}

		if strings.TrimSpace(record.ID) == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now
		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			return insertErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.CrossReference{}, err
	}
	return out, nil
}

func (s *CrossReferenceStore) ListBySyncStatus(ctx context.Context, status core.SyncStatus, limit int) ([]core.CrossReference, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: cross reference store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("sync_status", "=", string(status)),
		repository.OrderBy("canonical_id ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.CrossReference, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

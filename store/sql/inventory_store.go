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

type InventoryStore struct {
	db   *bun.DB
	repo repository.Repository[*inventoryRecord]
}

func NewInventoryStore(db *bun.DB) (*InventoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*inventoryRecord](db, inventoryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid inventory repository wiring: %w", err)
		}
	}
	return &InventoryStore{db: db, repo: repo}, nil
}

// UpsertBatch writes the sub-batch in a single transaction keyed by
// (canonical_id, warehouse_key). The transaction is all-or-nothing so a
// failed sub-batch leaves no partial rows behind. A concurrent sub-batch
// can win the insert between our select and insert; that collision is
// recovered as an update instead of failing the whole sub-batch.
func (s *InventoryStore) UpsertBatch(ctx context.Context, records []core.NormalizedRecord) (core.LoadResult, error) {
	if s == nil || s.db == nil {
		return core.LoadResult{}, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	if len(records) == 0 {
		return core.LoadResult{}, nil
	}

	now := time.Now().UTC()
	var result core.LoadResult
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, record := range records {
			canonicalID := strings.TrimSpace(record.CanonicalID)
			warehouseKey := strings.TrimSpace(record.WarehouseKey)
			if canonicalID == "" || warehouseKey == "" {
				return fmt.Errorf("sqlstore: canonical id and warehouse key are required")
			}

			existing, findErr := s.findLevelTx(ctx, tx, canonicalID, warehouseKey)
			if findErr != nil {
				return findErr
			}

			if existing != nil {
				existing.applyNormalized(record, now)
				if _, updateErr := s.repo.UpdateTx(ctx, tx, existing); updateErr != nil {
					return updateErr
				}
				result.Updated++
				continue
			}

			row := newInventoryRecord(record, now)
			row.ID = uuid.NewString()
			row.CanonicalID = canonicalID
			row.WarehouseKey = warehouseKey
			if _, insertErr := s.repo.CreateTx(ctx, tx, row); insertErr != nil {
				if !isUniqueViolation(insertErr) {
					return insertErr
				}
				raced, racedErr := s.findLevelTx(ctx, tx, canonicalID, warehouseKey)
				if racedErr != nil {
					return racedErr
				}
				if raced == nil {
					return insertErr
				}
				raced.applyNormalized(record, now)
				if _, updateErr := s.repo.UpdateTx(ctx, tx, raced); updateErr != nil {
					return updateErr
				}
				result.Updated++
				continue
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return core.LoadResult{}, err
	}
	return result, nil
}

func (s *InventoryStore) findLevelTx(ctx context.Context, tx bun.Tx, canonicalID string, warehouseKey string) (*inventoryRecord, error) {
	record, err := s.repo.GetTx(ctx, tx,
		repository.SelectBy("canonical_id", "=", canonicalID),
		repository.SelectBy("warehouse_key", "=", warehouseKey),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (s *InventoryStore) CountByTarget(ctx context.Context, sourceTag string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: inventory store is not configured")
	}
	sourceTag = strings.TrimSpace(sourceTag)
	if sourceTag == "" {
		return s.repo.Count(ctx)
	}
	return s.repo.Count(ctx, repository.SelectBy("source_tag", "=", sourceTag))
}

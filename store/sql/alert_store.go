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

type AlertStore struct {
	db   *bun.DB
	repo repository.Repository[*alertRecord]
}

func NewAlertStore(db *bun.DB) (*AlertStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*alertRecord](db, alertHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid alert repository wiring: %w", err)
		}
	}
	return &AlertStore{db: db, repo: repo}, nil
}

func (s *AlertStore) Create(ctx context.Context, alert core.Alert) (core.Alert, error) {
	if s == nil || s.db == nil {
		return core.Alert{}, fmt.Errorf("sqlstore: alert store is not configured")
	}
	record := newAlertRecord(alert)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Alert{}, err
	}
	return created.toDomain(), nil
}

func (s *AlertStore) LastByThrottleKey(ctx context.Context, throttleKey string) (core.Alert, error) {
	if s == nil || s.db == nil {
		return core.Alert{}, fmt.Errorf("sqlstore: alert store is not configured")
	}
	throttleKey = strings.TrimSpace(throttleKey)

	record, err := s.repo.Get(ctx,
		repository.SelectBy("throttle_key", "=", throttleKey),
		repository.OrderBy("created_at DESC"),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.Alert{}, fmt.Errorf("%w: %s", core.ErrAlertNotFound, throttleKey)
		}
		return core.Alert{}, err
	}
	return record.toDomain(), nil
}

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
	"github.com/goliatone/go-reconcile/ratelimit"
)

// RateLimitStateStore persists adaptive throttle state so backoff
// windows survive process restarts.
type RateLimitStateStore struct {
	db *bun.DB
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &RateLimitStateStore{db: db}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate limit state store is not configured")
	}
	providerID := strings.TrimSpace(strings.ToLower(key.ProviderID))
	bucketKey := strings.TrimSpace(strings.ToLower(key.BucketKey))

	record := &rateLimitStateRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.bucket_key = ?", bucketKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return ratelimit.State{}, fmt.Errorf("%w: %s/%s", ratelimit.ErrStateNotFound, providerID, bucketKey)
		}
		return ratelimit.State{}, err
	}
	return record.toState(), nil
}

func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate limit state store is not configured")
	}
	providerID := strings.TrimSpace(strings.ToLower(state.Key.ProviderID))
	bucketKey := strings.TrimSpace(strings.ToLower(state.Key.BucketKey))
	if providerID == "" {
		return fmt.Errorf("sqlstore: provider id is required")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &rateLimitStateRecord{}
		findErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.provider_id = ?", providerID).
			Where("?TableAlias.bucket_key = ?", bucketKey).
			Limit(1).
			Scan(ctx)
		if findErr != nil && findErr != sql.ErrNoRows {
			return findErr
		}

		record := newRateLimitStateRecord(state, providerID, bucketKey)
		if findErr == nil {
			record.ID = existing.ID
			_, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx)
			return updateErr
		}
		record.ID = uuid.NewString()
		_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
		return insertErr
	})
}

func (r *rateLimitStateRecord) toState() ratelimit.State {
	if r == nil {
		return ratelimit.State{}
	}
	state := ratelimit.State{
		Key: core.RateLimitKey{
			ProviderID: r.ProviderID,
			BucketKey:  r.BucketKey,
		},
		Limit:      r.LimitValue,
		Remaining:  r.Remaining,
		LastStatus: r.LastStatus,
		Attempts:   r.Attempts,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.ResetAt != nil {
		value := *r.ResetAt
		state.ResetAt = &value
	}
	if r.RetryAfterMs > 0 {
		wait := time.Duration(r.RetryAfterMs) * time.Millisecond
		state.RetryAfter = &wait
	}
	if r.ThrottledUntil != nil {
		value := *r.ThrottledUntil
		state.ThrottledUntil = &value
	}
	return state
}

func newRateLimitStateRecord(state ratelimit.State, providerID string, bucketKey string) *rateLimitStateRecord {
	record := &rateLimitStateRecord{
		ProviderID: providerID,
		BucketKey:  bucketKey,
		LimitValue: state.Limit,
		Remaining:  state.Remaining,
		LastStatus: state.LastStatus,
		Attempts:   state.Attempts,
		UpdatedAt:  state.UpdatedAt,
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	if state.ResetAt != nil {
		value := *state.ResetAt
		record.ResetAt = &value
	}
	if state.RetryAfter != nil {
		record.RetryAfterMs = state.RetryAfter.Milliseconds()
	}
	if state.ThrottledUntil != nil {
		value := *state.ThrottledUntil
		record.ThrottledUntil = &value
	}
	return record
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsDuplicatedKey(err) {
		return true
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

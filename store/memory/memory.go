// Package memory provides in-process store implementations. They back
// tests and the zero-configuration facade; production deployments use
// the SQL stores instead.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-reconcile/core"
)

type CrossReferenceStore struct {
	mu    sync.RWMutex
	items map[string]core.CrossReference
}

func NewCrossReferenceStore() *CrossReferenceStore {
	return &CrossReferenceStore{items: map[string]core.CrossReference{}}
}

func (s *CrossReferenceStore) Get(_ context.Context, canonicalID string) (core.CrossReference, error) {
	if s == nil {
		return core.CrossReference{}, fmt.Errorf("memory: cross reference store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.items[strings.TrimSpace(canonicalID)]
	if !ok {
		return core.CrossReference{}, core.ErrCrossReferenceNotFound
	}
	return ref, nil
}

func (s *CrossReferenceStore) Upsert(_ context.Context, ref core.CrossReference) (core.CrossReference, error) {
	if s == nil {
		return core.CrossReference{}, fmt.Errorf("memory: cross reference store is nil")
	}
	ref.CanonicalID = strings.TrimSpace(ref.CanonicalID)
	if ref.CanonicalID == "" {
		return core.CrossReference{}, fmt.Errorf("memory: canonical id is required")
	}
	if strings.TrimSpace(ref.ID) == "" {
		ref.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[ref.CanonicalID] = ref
	return ref, nil
}

func (s *CrossReferenceStore) ListBySyncStatus(_ context.Context, status core.SyncStatus, limit int) ([]core.CrossReference, error) {
	if s == nil {
		return nil, fmt.Errorf("memory: cross reference store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]core.CrossReference, 0)
	for _, ref := range s.items {
		if ref.SyncStatus == status {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].CanonicalID < refs[j].CanonicalID })
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

type RunStore struct {
	mu   sync.RWMutex
	runs map[string]core.RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{runs: map[string]core.RunRecord{}}
}

func (s *RunStore) Create(_ context.Context, run core.RunRecord) (core.RunRecord, error) {
	if s == nil {
		return core.RunRecord{}, fmt.Errorf("memory: run store is nil")
	}
	run.BatchID = strings.TrimSpace(run.BatchID)
	if run.BatchID == "" {
		return core.RunRecord{}, fmt.Errorf("memory: batch id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.BatchID]; exists {
		return core.RunRecord{}, fmt.Errorf("memory: run %s already exists", run.BatchID)
	}
	s.runs[run.BatchID] = run
	return run, nil
}

func (s *RunStore) Get(_ context.Context, batchID string) (core.RunRecord, error) {
	if s == nil {
		return core.RunRecord{}, fmt.Errorf("memory: run store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[strings.TrimSpace(batchID)]
	if !ok {
		return core.RunRecord{}, core.ErrRunNotFound
	}
	return run, nil
}

func (s *RunStore) Update(_ context.Context, run core.RunRecord) (core.RunRecord, error) {
	if s == nil {
		return core.RunRecord{}, fmt.Errorf("memory: run store is nil")
	}
	run.BatchID = strings.TrimSpace(run.BatchID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.BatchID]; !ok {
		return core.RunRecord{}, core.ErrRunNotFound
	}
	s.runs[run.BatchID] = run
	return run, nil
}

func (s *RunStore) ActiveForTarget(_ context.Context, target string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("memory: run store is nil")
	}
	target = strings.TrimSpace(target)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, run := range s.runs {
		if run.Target == target && run.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *RunStore) ListRecent(_ context.Context, target string, limit int) ([]core.RunRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("memory: run store is nil")
	}
	target = strings.TrimSpace(target)
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]core.RunRecord, 0)
	for _, run := range s.runs {
		if target == "" || run.Target == target {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

type AssessmentStore struct {
	mu    sync.RWMutex
	items map[string]core.QualityAssessment
}

func NewAssessmentStore() *AssessmentStore {
	return &AssessmentStore{items: map[string]core.QualityAssessment{}}
}

func (s *AssessmentStore) Create(_ context.Context, assessment core.QualityAssessment) (core.QualityAssessment, error) {
	if s == nil {
		return core.QualityAssessment{}, fmt.Errorf("memory: assessment store is nil")
	}
	if strings.TrimSpace(assessment.ID) == "" {
		assessment.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[assessment.BatchID] = assessment
	return assessment, nil
}

func (s *AssessmentStore) GetByBatch(_ context.Context, batchID string) (core.QualityAssessment, error) {
	if s == nil {
		return core.QualityAssessment{}, fmt.Errorf("memory: assessment store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	assessment, ok := s.items[strings.TrimSpace(batchID)]
	if !ok {
		return core.QualityAssessment{}, core.ErrAssessmentNotFound
	}
	return assessment, nil
}

type inventoryKey struct {
	canonicalID  string
	warehouseKey string
}

type inventoryRow struct {
	record    core.NormalizedRecord
	updatedAt time.Time
}

type InventoryStore struct {
	mu   sync.RWMutex
	rows map[inventoryKey]inventoryRow
	// FailKeys makes UpsertBatch fail when it sees one of these
	// canonical ids; tests use it to simulate sub-batch errors.
	FailKeys map[string]bool
}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{rows: map[inventoryKey]inventoryRow{}}
}

func (s *InventoryStore) UpsertBatch(_ context.Context, records []core.NormalizedRecord) (core.LoadResult, error) {
	if s == nil {
		return core.LoadResult{}, fmt.Errorf("memory: inventory store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if s.FailKeys[record.CanonicalID] {
			return core.LoadResult{}, fmt.Errorf("memory: simulated failure for %s", record.CanonicalID)
		}
	}

	result := core.LoadResult{}
	now := time.Now().UTC()
	for _, record := range records {
		key := inventoryKey{canonicalID: record.CanonicalID, warehouseKey: record.WarehouseKey}
		if _, exists := s.rows[key]; exists {
			result.Updated++
		} else {
			result.Inserted++
		}
		s.rows[key] = inventoryRow{record: record, updatedAt: now}
	}
	return result, nil
}

func (s *InventoryStore) CountByTarget(_ context.Context, sourceTag string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("memory: inventory store is nil")
	}
	sourceTag = strings.TrimSpace(sourceTag)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sourceTag == "" {
		return len(s.rows), nil
	}
	count := 0
	for _, row := range s.rows {
		if row.record.SourceTag == sourceTag {
			count++
		}
	}
	return count, nil
}

// Count reports the number of distinct (canonical id, warehouse) rows.
func (s *InventoryStore) Count() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

type AlertStore struct {
	mu     sync.RWMutex
	alerts []core.Alert
}

func NewAlertStore() *AlertStore {
	return &AlertStore{}
}

func (s *AlertStore) Create(_ context.Context, alert core.Alert) (core.Alert, error) {
	if s == nil {
		return core.Alert{}, fmt.Errorf("memory: alert store is nil")
	}
	if strings.TrimSpace(alert.ID) == "" {
		alert.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return alert, nil
}

func (s *AlertStore) LastByThrottleKey(_ context.Context, throttleKey string) (core.Alert, error) {
	if s == nil {
		return core.Alert{}, fmt.Errorf("memory: alert store is nil")
	}
	throttleKey = strings.TrimSpace(throttleKey)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].ThrottleKey == throttleKey {
			return s.alerts[i], nil
		}
	}
	return core.Alert{}, core.ErrAlertNotFound
}

// All returns a snapshot of every stored alert, oldest first.
func (s *AlertStore) All() []core.Alert {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

var (
	_ core.CrossReferenceStore = (*CrossReferenceStore)(nil)
	_ core.RunStore            = (*RunStore)(nil)
	_ core.AssessmentStore     = (*AssessmentStore)(nil)
	_ core.InventoryStore      = (*InventoryStore)(nil)
	_ core.AlertStore          = (*AlertStore)(nil)
)

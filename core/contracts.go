package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger contract shared across packages.
type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Page is one slice of a paginated marketplace pull.
type Page struct {
	Records []SourceRecord
	HasMore bool
}

// MarketplaceClient is the external API collaborator. Implementations must
// surface classified errors (retryable vs terminal) so callers can apply
// the correct retry policy; see the marketplace package.
type MarketplaceClient interface {
	FetchPage(ctx context.Context, offset int, limit int, filters map[string]string) (Page, error)
	FetchItem(ctx context.Context, canonicalID string) (ItemDetail, error)
}

type ItemDetail struct {
	CanonicalID string
	DisplayName string
	Brand       string
}

type RuleStore interface {
	// Lookup resolves the unique (originalName, sourceType) rule, active only.
	Lookup(ctx context.Context, originalName string, sourceType string) (NormalizationRule, error)
	// Upsert inserts the rule or, on conflict, atomically increments the
	// usage counter and refreshes last_used_at. Confidence is written only
	// on insert.
	Upsert(ctx context.Context, rule NormalizationRule) (NormalizationRule, error)
	ListCanonicalNames(ctx context.Context, sourceType string) ([]string, error)
	ListUnrecognized(ctx context.Context, limit int) ([]NormalizationRule, error)
	Deactivate(ctx context.Context, id string) error
}

type CrossReferenceStore interface {
	Get(ctx context.Context, canonicalID string) (CrossReference, error)
	Upsert(ctx context.Context, ref CrossReference) (CrossReference, error)
	ListBySyncStatus(ctx context.Context, status SyncStatus, limit int) ([]CrossReference, error)
}

type RunStore interface {
	Create(ctx context.Context, run RunRecord) (RunRecord, error)
	Get(ctx context.Context, batchID string) (RunRecord, error)
	Update(ctx context.Context, run RunRecord) (RunRecord, error)
	// ActiveForTarget reports whether a non-terminal run exists for target.
	ActiveForTarget(ctx context.Context, target string) (bool, error)
	ListRecent(ctx context.Context, target string, limit int) ([]RunRecord, error)
}

type AssessmentStore interface {
	Create(ctx context.Context, assessment QualityAssessment) (QualityAssessment, error)
	GetByBatch(ctx context.Context, batchID string) (QualityAssessment, error)
}

// InventoryStore is the quality-gated load target. Upsert semantics are
// keyed by (canonical_id, warehouse_key) so re-delivery is idempotent.
type InventoryStore interface {
	UpsertBatch(ctx context.Context, records []NormalizedRecord) (LoadResult, error)
	CountByTarget(ctx context.Context, sourceTag string) (int, error)
}

type LoadResult struct {
	Inserted int
	Updated  int
}

type AlertStore interface {
	Create(ctx context.Context, alert Alert) (Alert, error)
	// LastByThrottleKey returns the newest alert for the key, ErrAlertNotFound
	// style sentinel when none exists.
	LastByThrottleKey(ctx context.Context, throttleKey string) (Alert, error)
}

// Notifier delivers alerts to an external channel. Transport is out of
// scope; the nop implementation is the default.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Alert) error { return nil }

var _ Notifier = NopNotifier{}

// StoreProvider hands out the persistence surface as a unit so the
// facade can swap the memory and SQL implementations wholesale.
type StoreProvider interface {
	RuleStore() RuleStore
	CrossReferenceStore() CrossReferenceStore
	RunStore() RunStore
	AssessmentStore() AssessmentStore
	InventoryStore() InventoryStore
	AlertStore() AlertStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// Clock is injected wherever tests need deterministic time.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

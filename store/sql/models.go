package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type ruleRecord struct {
	bun.BaseModel `bun:"table:recon_normalization_rules,alias:rnr"`

	ID            string    `bun:"id,pk"`
	OriginalName  string    `bun:"original_name,notnull"`
	CanonicalName string    `bun:"canonical_name,notnull"`
	SourceType    string    `bun:"source_type,notnull"`
	MatchType     string    `bun:"match_type,notnull"`
	Confidence    float64   `bun:"confidence,notnull"`
	UsageCount    int64     `bun:"usage_count,notnull"`
	LastUsedAt    time.Time `bun:"last_used_at,nullzero,notnull"`
	NeedsReview   bool      `bun:"needs_review,notnull"`
	Active        bool      `bun:"active,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type crossReferenceRecord struct {
	bun.BaseModel `bun:"table:recon_cross_references,alias:rcr"`

	ID                  string            `bun:"id,pk"`
	CanonicalID         string            `bun:"canonical_id,notnull"`
	ExternalIDsBySource map[string]string `bun:"external_ids_by_source,type:jsonb,notnull"`
	CachedDisplayName   string            `bun:"cached_display_name"`
	CachedBrand         string            `bun:"cached_brand"`
	LastResolvedAt      *time.Time        `bun:"last_resolved_at,nullzero"`
	SyncStatus          string            `bun:"sync_status,notnull"`
	LastError           string            `bun:"last_error"`
	CreatedAt           time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type runRecordRow struct {
	bun.BaseModel `bun:"table:recon_runs,alias:rr"`

	BatchID          string         `bun:"batch_id,pk"`
	Target           string         `bun:"target,notnull"`
	RunType          string         `bun:"run_type,notnull"`
	Status           string         `bun:"status,notnull"`
	RecordsExtracted int            `bun:"records_extracted,notnull"`
	RecordsInserted  int            `bun:"records_inserted,notnull"`
	RecordsUpdated   int            `bun:"records_updated,notnull"`
	RecordsErrors    int            `bun:"records_errors,notnull"`
	SubBatchesFailed int            `bun:"sub_batches_failed,notnull"`
	ExtractMs        int64          `bun:"extract_ms,notnull"`
	TransformMs      int64          `bun:"transform_ms,notnull"`
	LoadMs           int64          `bun:"load_ms,notnull"`
	QualityScore     float64        `bun:"quality_score,notnull"`
	ErrorMessage     string         `bun:"error_message"`
	Metadata         map[string]any `bun:"metadata,type:jsonb,notnull"`
	StartedAt        time.Time      `bun:"started_at,nullzero,notnull"`
	CompletedAt      *time.Time     `bun:"completed_at,nullzero"`
}

type assessmentRecord struct {
	bun.BaseModel `bun:"table:recon_quality_assessments,alias:rqa"`

	ID           string         `bun:"id,pk"`
	BatchID      string         `bun:"batch_id,notnull"`
	Completeness float64        `bun:"completeness,notnull"`
	Accuracy     float64        `bun:"accuracy,notnull"`
	Consistency  float64        `bun:"consistency,notnull"`
	Freshness    float64        `bun:"freshness,notnull"`
	Validity     float64        `bun:"validity,notnull"`
	OverallScore float64        `bun:"overall_score,notnull"`
	RecordCount  int            `bun:"record_count,notnull"`
	Anomalies    []anomalyEntry `bun:"anomalies,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type anomalyEntry struct {
	Field      string  `json:"field"`
	Value      float64 `json:"value"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Severity   string  `json:"severity"`
	Message    string  `json:"message"`
}

type inventoryRecord struct {
	bun.BaseModel `bun:"table:recon_inventory_levels,alias:ril"`

	ID                      string    `bun:"id,pk"`
	CanonicalID             string    `bun:"canonical_id,notnull"`
	WarehouseKey            string    `bun:"warehouse_key,notnull"`
	AvailableQty            int64     `bun:"available_qty,notnull"`
	ReservedQty             int64     `bun:"reserved_qty,notnull"`
	TotalQty                int64     `bun:"total_qty,notnull"`
	Price                   float64   `bun:"price,notnull"`
	ProductName             string    `bun:"product_name,notnull"`
	SourceTag               string    `bun:"source_tag,notnull"`
	ObservedAt              time.Time `bun:"observed_at,nullzero,notnull"`
	NormalizationConfidence float64   `bun:"normalization_confidence,notnull"`
	CreatedAt               time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt               time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type alertRecord struct {
	bun.BaseModel `bun:"table:recon_alerts,alias:ra"`

	ID          string         `bun:"id,pk"`
	AlertType   string         `bun:"alert_type,notnull"`
	Severity    string         `bun:"severity,notnull"`
	Message     string         `bun:"message,notnull"`
	Context     map[string]any `bun:"context,type:jsonb,notnull"`
	ThrottleKey string         `bun:"throttle_key,notnull"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	SentAt      *time.Time     `bun:"sent_at,nullzero"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:recon_rate_limit_states,alias:rls"`

	ID             string     `bun:"id,pk"`
	ProviderID     string     `bun:"provider_id,notnull"`
	BucketKey      string     `bun:"bucket_key,notnull"`
	LimitValue     int        `bun:"limit_value,notnull"`
	Remaining      int        `bun:"remaining,notnull"`
	ResetAt        *time.Time `bun:"reset_at,nullzero"`
	RetryAfterMs   int64      `bun:"retry_after_ms,notnull"`
	ThrottledUntil *time.Time `bun:"throttled_until,nullzero"`
	LastStatus     int        `bun:"last_status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

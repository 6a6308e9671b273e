package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidRunType              = errors.New("core: invalid run type")
	ErrInvalidRunStatusTransition  = errors.New("core: invalid run status transition")
	ErrInvalidSyncStatusTransition = errors.New("core: invalid sync status transition")
	ErrInvalidMatchType            = errors.New("core: invalid match type")
	ErrInvalidSeverity             = errors.New("core: invalid alert severity")
	ErrRunNotFound                 = errors.New("core: run not found")
	ErrRuleNotFound                = errors.New("core: normalization rule not found")
	ErrCrossReferenceNotFound      = errors.New("core: cross reference not found")
	ErrAssessmentNotFound          = errors.New("core: quality assessment not found")
	ErrAlertNotFound               = errors.New("core: alert not found")
	ErrRunAlreadyActive            = errors.New("core: a run is already active for target")
)

type RunType string

const (
	RunTypeFullSync        RunType = "full_sync"
	RunTypeIncrementalSync RunType = "incremental_sync"
	RunTypeManualSync      RunType = "manual_sync"
	RunTypeValidationOnly  RunType = "validation_only"
)

func (t RunType) Validate() error {
	switch t {
	case RunTypeFullSync, RunTypeIncrementalSync, RunTypeManualSync, RunTypeValidationOnly:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidRunType, string(t))
}

type RunStatus string

const (
	RunStatusQueued           RunStatus = "queued"
	RunStatusExtracting       RunStatus = "extracting"
	RunStatusTransforming     RunStatus = "transforming"
	RunStatusLoading          RunStatus = "loading"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusPartialSuccess   RunStatus = "partial_success"
	RunStatusFailed           RunStatus = "failed"
	RunStatusValidationFailed RunStatus = "validation_failed"
)

func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartialSuccess, RunStatusFailed, RunStatusValidationFailed:
		return true
	}
	return false
}

// Active reports whether the run still holds its target's run lock.
func (s RunStatus) Active() bool {
	return !s.Terminal()
}

func runTransitionAllowed(from RunStatus, to RunStatus) bool {
	if to == RunStatusFailed {
		return !from.Terminal()
	}
	switch from {
	case RunStatusQueued:
		return to == RunStatusExtracting
	case RunStatusExtracting:
		return to == RunStatusTransforming
	case RunStatusTransforming:
		return to == RunStatusLoading || to == RunStatusValidationFailed || to == RunStatusCompleted
	case RunStatusLoading:
		return to == RunStatusCompleted || to == RunStatusPartialSuccess
	}
	return false
}

type MatchType string

const (
	MatchTypeExact        MatchType = "exact"
	MatchTypeRuleBased    MatchType = "rule_based"
	MatchTypeFuzzy        MatchType = "fuzzy"
	MatchTypeManual       MatchType = "manual"
	MatchTypeAutoDetected MatchType = "auto_detected"
)

func (t MatchType) Validate() error {
	switch t {
	case MatchTypeExact, MatchTypeRuleBased, MatchTypeFuzzy, MatchTypeManual, MatchTypeAutoDetected:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMatchType, string(t))
}

// Confidence returns the fixed confidence assigned at rule creation.
// Values are a creation-time contract and never drift afterwards.
func (t MatchType) Confidence() float64 {
	switch t {
	case MatchTypeExact, MatchTypeManual:
		return 1.0
	case MatchTypeRuleBased:
		return 0.9
	case MatchTypeFuzzy:
		return 0.8
	case MatchTypeAutoDetected:
		return 0.7
	}
	return 0
}

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

func syncTransitionAllowed(from SyncStatus, to SyncStatus) bool {
	switch from {
	case SyncStatusPending:
		return to == SyncStatusSynced || to == SyncStatusFailed
	case SyncStatusFailed:
		return to == SyncStatusPending || to == SyncStatusSynced
	}
	return false
}

type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
	SeverityCritical AlertSeverity = "critical"
)

func (s AlertSeverity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidSeverity, string(s))
}

// SourceRecord is the raw tuple extracted from the marketplace API. It is
// parsed and validated at the client boundary and discarded after transform.
type SourceRecord struct {
	ExternalID       any
	WarehouseNameRaw string
	AvailableQty     int64
	ReservedQty      int64
	TotalQty         int64
	Price            float64
	ProductName      string
	SourceTag        string
	ObservedAt       time.Time
}

// NormalizedRecord is the canonical form produced by the transform phase.
type NormalizedRecord struct {
	CanonicalID             string
	WarehouseKey            string
	AvailableQty            int64
	ReservedQty             int64
	TotalQty                int64
	Price                   float64
	ProductName             string
	SourceTag               string
	ObservedAt              time.Time
	NormalizationConfidence float64
}

type NormalizationRule struct {
	ID            string
	OriginalName  string
	CanonicalName string
	SourceType    string
	MatchType     MatchType
	Confidence    float64
	UsageCount    int64
	LastUsedAt    time.Time
	NeedsReview   bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r NormalizationRule) Validate() error {
	if strings.TrimSpace(r.OriginalName) == "" {
		return fmt.Errorf("core: rule original name is required")
	}
	if strings.TrimSpace(r.CanonicalName) == "" {
		return fmt.Errorf("core: rule canonical name is required")
	}
	if err := r.MatchType.Validate(); err != nil {
		return err
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("core: rule confidence %v out of range", r.Confidence)
	}
	return nil
}

type CrossReference struct {
	ID                  string
	CanonicalID         string
	ExternalIDsBySource map[string]string
	CachedDisplayName   string
	CachedBrand         string
	LastResolvedAt      *time.Time
	SyncStatus          SyncStatus
	LastError           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (c *CrossReference) MarkSyncStatus(status SyncStatus, reason string, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.SyncStatus == status {
		c.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			c.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !syncTransitionAllowed(c.SyncStatus, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidSyncStatusTransition, c.SyncStatus, status)
	}
	c.SyncStatus = status
	c.LastError = strings.TrimSpace(reason)
	c.UpdatedAt = now
	return nil
}

type AnomalySeverity = AlertSeverity

type Anomaly struct {
	Field      string
	Value      float64
	LowerBound float64
	UpperBound float64
	Severity   AnomalySeverity
	Message    string
}

// QualityAssessment is the per-batch score sheet. Scores are 0-100 per
// dimension; it is persisted for audit and never mutated after creation.
type QualityAssessment struct {
	ID           string
	BatchID      string
	Completeness float64
	Accuracy     float64
	Consistency  float64
	Freshness    float64
	Validity     float64
	OverallScore float64
	RecordCount  int
	Anomalies    []Anomaly
	CreatedAt    time.Time
}

func (a QualityAssessment) Passes(minScore float64) bool {
	return a.OverallScore >= minScore
}

type PhaseMetrics struct {
	RecordsExtracted int
	RecordsInserted  int
	RecordsUpdated   int
	RecordsErrors    int
	SubBatchesFailed int
	ExtractDuration  time.Duration
	TransformDur     time.Duration
	LoadDuration     time.Duration
}

type RunRecord struct {
	BatchID      string
	Target       string
	Type         RunType
	Status       RunStatus
	Metrics      PhaseMetrics
	QualityScore float64
	ErrorMessage string
	Metadata     map[string]any
	StartedAt    time.Time
	CompletedAt  *time.Time
}

func (r *RunRecord) TransitionTo(status RunStatus, now time.Time) error {
	if r == nil {
		return nil
	}
	if r.Status == status {
		return nil
	}
	if !runTransitionAllowed(r.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRunStatusTransition, r.Status, status)
	}
	r.Status = status
	if status.Terminal() {
		completed := now.UTC()
		r.CompletedAt = &completed
	}
	return nil
}

type Alert struct {
	ID          string
	Type        string
	Severity    AlertSeverity
	Message     string
	Context     map[string]any
	ThrottleKey string
	CreatedAt   time.Time
	SentAt      *time.Time
}

// ThrottleKeyFor builds the dedupe key used by the alert cooldown window.
func ThrottleKeyFor(alertType string, severity AlertSeverity, target string) string {
	return strings.Join([]string{
		strings.TrimSpace(strings.ToLower(alertType)),
		strings.TrimSpace(strings.ToLower(string(severity))),
		strings.TrimSpace(strings.ToLower(target)),
	}, "|")
}

type RateLimitKey struct {
	ProviderID string
	BucketKey  string
}

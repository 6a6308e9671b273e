package sqlstore

import (
	"time"

	"github.com/goliatone/go-reconcile/core"
)

func (r *ruleRecord) toDomain() core.NormalizationRule {
	if r == nil {
		return core.NormalizationRule{}
	}
	return core.NormalizationRule{
		ID:            r.ID,
		OriginalName:  r.OriginalName,
		CanonicalName: r.CanonicalName,
		SourceType:    r.SourceType,
		MatchType:     core.MatchType(r.MatchType),
		Confidence:    r.Confidence,
		UsageCount:    r.UsageCount,
		LastUsedAt:    r.LastUsedAt,
		NeedsReview:   r.NeedsReview,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func newRuleRecord(rule core.NormalizationRule) *ruleRecord {
	return &ruleRecord{
		ID:            rule.ID,
		OriginalName:  rule.OriginalName,
		CanonicalName: rule.CanonicalName,
		SourceType:    rule.SourceType,
		MatchType:     string(rule.MatchType),
		Confidence:    rule.Confidence,
		UsageCount:    rule.UsageCount,
		LastUsedAt:    rule.LastUsedAt,
		NeedsReview:   rule.NeedsReview,
		Active:        rule.Active,
		CreatedAt:     rule.CreatedAt,
		UpdatedAt:     rule.UpdatedAt,
	}
}

func (r *crossReferenceRecord) toDomain() core.CrossReference {
	if r == nil {
		return core.CrossReference{}
	}
	out := core.CrossReference{
		ID:                  r.ID,
		CanonicalID:         r.CanonicalID,
		ExternalIDsBySource: copyStringMap(r.ExternalIDsBySource),
		CachedDisplayName:   r.CachedDisplayName,
		CachedBrand:         r.CachedBrand,
		SyncStatus:          core.SyncStatus(r.SyncStatus),
		LastError:           r.LastError,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.LastResolvedAt != nil {
		value := *r.LastResolvedAt
		out.LastResolvedAt = &value
	}
	return out
}

func newCrossReferenceRecord(ref core.CrossReference) *crossReferenceRecord {
	record := &crossReferenceRecord{
		ID:                  ref.ID,
		CanonicalID:         ref.CanonicalID,
		ExternalIDsBySource: copyStringMap(ref.ExternalIDsBySource),
		CachedDisplayName:   ref.CachedDisplayName,
		CachedBrand:         ref.CachedBrand,
		SyncStatus:          string(ref.SyncStatus),
		LastError:           ref.LastError,
		CreatedAt:           ref.CreatedAt,
		UpdatedAt:           ref.UpdatedAt,
	}
	if ref.LastResolvedAt != nil {
		value := *ref.LastResolvedAt
		record.LastResolvedAt = &value
	}
	return record
}

func (r *runRecordRow) toDomain() core.RunRecord {
	if r == nil {
		return core.RunRecord{}
	}
	out := core.RunRecord{
		BatchID: r.BatchID,
		Target:  r.Target,
		Type:    core.RunType(r.RunType),
		Status:  core.RunStatus(r.Status),
		Metrics: core.PhaseMetrics{
			RecordsExtracted: r.RecordsExtracted,
			RecordsInserted:  r.RecordsInserted,
			RecordsUpdated:   r.RecordsUpdated,
			RecordsErrors:    r.RecordsErrors,
			SubBatchesFailed: r.SubBatchesFailed,
			ExtractDuration:  time.Duration(r.ExtractMs) * time.Millisecond,
			TransformDur:     time.Duration(r.TransformMs) * time.Millisecond,
			LoadDuration:     time.Duration(r.LoadMs) * time.Millisecond,
		},
		QualityScore: r.QualityScore,
		ErrorMessage: r.ErrorMessage,
		Metadata:     copyAnyMap(r.Metadata),
		StartedAt:    r.StartedAt,
	}
	if r.CompletedAt != nil {
		value := *r.CompletedAt
		out.CompletedAt = &value
	}
	return out
}

func newRunRecordRow(run core.RunRecord) *runRecordRow {
	record := &runRecordRow{
		BatchID:          run.BatchID,
		Target:           run.Target,
		RunType:          string(run.Type),
		Status:           string(run.Status),
		RecordsExtracted: run.Metrics.RecordsExtracted,
		RecordsInserted:  run.Metrics.RecordsInserted,
		RecordsUpdated:   run.Metrics.RecordsUpdated,
		RecordsErrors:    run.Metrics.RecordsErrors,
		SubBatchesFailed: run.Metrics.SubBatchesFailed,
		ExtractMs:        run.Metrics.ExtractDuration.Milliseconds(),
		TransformMs:      run.Metrics.TransformDur.Milliseconds(),
		LoadMs:           run.Metrics.LoadDuration.Milliseconds(),
		QualityScore:     run.QualityScore,
		ErrorMessage:     run.ErrorMessage,
		Metadata:         copyAnyMap(run.Metadata),
		StartedAt:        run.StartedAt,
	}
	if run.CompletedAt != nil {
		value := *run.CompletedAt
		record.CompletedAt = &value
	}
	return record
}

func (r *assessmentRecord) toDomain() core.QualityAssessment {
	if r == nil {
		return core.QualityAssessment{}
	}
	anomalies := make([]core.Anomaly, 0, len(r.Anomalies))
	for _, entry := range r.Anomalies {
		anomalies = append(anomalies, core.Anomaly{
			Field:      entry.Field,
			Value:      entry.Value,
			LowerBound: entry.LowerBound,
			UpperBound: entry.UpperBound,
			Severity:   core.AnomalySeverity(entry.Severity),
			Message:    entry.Message,
		})
	}
	return core.QualityAssessment{
		ID:           r.ID,
		BatchID:      r.BatchID,
		Completeness: r.Completeness,
		Accuracy:     r.Accuracy,
		Consistency:  r.Consistency,
		Freshness:    r.Freshness,
		Validity:     r.Validity,
		OverallScore: r.OverallScore,
		RecordCount:  r.RecordCount,
		Anomalies:    anomalies,
		CreatedAt:    r.CreatedAt,
	}
}

func newAssessmentRecord(assessment core.QualityAssessment) *assessmentRecord {
	entries := make([]anomalyEntry, 0, len(assessment.Anomalies))
	for _, anomaly := range assessment.Anomalies {
		entries = append(entries, anomalyEntry{
			Field:      anomaly.Field,
			Value:      anomaly.Value,
			LowerBound: anomaly.LowerBound,
			UpperBound: anomaly.UpperBound,
			Severity:   string(anomaly.Severity),
			Message:    anomaly.Message,
		})
	}
	return &assessmentRecord{
		ID:           assessment.ID,
		BatchID:      assessment.BatchID,
		Completeness: assessment.Completeness,
		Accuracy:     assessment.Accuracy,
		Consistency:  assessment.Consistency,
		Freshness:    assessment.Freshness,
		Validity:     assessment.Validity,
		OverallScore: assessment.OverallScore,
		RecordCount:  assessment.RecordCount,
		Anomalies:    entries,
		CreatedAt:    assessment.CreatedAt,
	}
}

func (r *inventoryRecord) applyNormalized(record core.NormalizedRecord, now time.Time) {
	if r == nil {
		return
	}
	r.AvailableQty = record.AvailableQty
	r.ReservedQty = record.ReservedQty
	r.TotalQty = record.TotalQty
	r.Price = record.Price
	r.ProductName = record.ProductName
	r.SourceTag = record.SourceTag
	r.ObservedAt = record.ObservedAt
	r.NormalizationConfidence = record.NormalizationConfidence
	r.UpdatedAt = now
}

func newInventoryRecord(record core.NormalizedRecord, now time.Time) *inventoryRecord {
	return &inventoryRecord{
		CanonicalID:             record.CanonicalID,
		WarehouseKey:            record.WarehouseKey,
		AvailableQty:            record.AvailableQty,
		ReservedQty:             record.ReservedQty,
		TotalQty:                record.TotalQty,
		Price:                   record.Price,
		ProductName:             record.ProductName,
		SourceTag:               record.SourceTag,
		ObservedAt:              record.ObservedAt,
		NormalizationConfidence: record.NormalizationConfidence,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

func (r *alertRecord) toDomain() core.Alert {
	if r == nil {
		return core.Alert{}
	}
	out := core.Alert{
		ID:          r.ID,
		Type:        r.AlertType,
		Severity:    core.AlertSeverity(r.Severity),
		Message:     r.Message,
		Context:     copyAnyMap(r.Context),
		ThrottleKey: r.ThrottleKey,
		CreatedAt:   r.CreatedAt,
	}
	if r.SentAt != nil {
		value := *r.SentAt
		out.SentAt = &value
	}
	return out
}

func newAlertRecord(alert core.Alert) *alertRecord {
	record := &alertRecord{
		ID:          alert.ID,
		AlertType:   alert.Type,
		Severity:    string(alert.Severity),
		Message:     alert.Message,
		Context:     copyAnyMap(alert.Context),
		ThrottleKey: alert.ThrottleKey,
		CreatedAt:   alert.CreatedAt,
	}
	if alert.SentAt != nil {
		value := *alert.SentAt
		record.SentAt = &value
	}
	return record
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

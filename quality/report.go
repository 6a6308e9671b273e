package quality

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-reconcile/core"
	"github.com/google/uuid"
)

const (
	weightCompleteness = 0.25
	weightAccuracy     = 0.30
	weightConsistency  = 0.20
	weightFreshness    = 0.15
	weightValidity     = 0.10

	requiredFieldShare = 0.7
	optionalFieldShare = 0.3

	// Accuracy floor for non-authoritative records with no cross-source
	// partner in the batch to agree or disagree with.
	accuracyNoPartner = 70.0

	DefaultMinQualityScore = 80.0
)

type ValidatorConfig struct {
	// AuthoritativeSource is the sourceTag of records pulled straight from
	// the authoritative marketplace API; those score 100 on accuracy.
	AuthoritativeSource string
	MinQualityScore     float64
	Now                 func() time.Time
}

type Validator struct {
	authoritativeSource string
	minQualityScore     float64
	now                 func() time.Time
}

func NewValidator(cfg ValidatorConfig) *Validator {
	minScore := cfg.MinQualityScore
	if minScore <= 0 {
		minScore = DefaultMinQualityScore
	}
	now := cfg.Now
	if now == nil {
		now = core.SystemClock
	}
	return &Validator{
		authoritativeSource: strings.TrimSpace(strings.ToLower(cfg.AuthoritativeSource)),
		minQualityScore:     minScore,
		now:                 now,
	}
}

func (v *Validator) MinQualityScore() float64 {
	if v == nil {
		return DefaultMinQualityScore
	}
	return v.minQualityScore
}

// Assess computes the batch quality assessment: five 0-100 dimensions,
// the weighted overall score, and statistical anomalies over the stock
// and price distributions.
func (v *Validator) Assess(batchID string, records []core.NormalizedRecord) core.QualityAssessment {
	now := v.nowUTC()
	assessment := core.QualityAssessment{
		ID:          uuid.NewString(),
		BatchID:     strings.TrimSpace(batchID),
		RecordCount: len(records),
		CreatedAt:   now,
	}
	if len(records) == 0 {
		return assessment
	}

	checks := make([]RecordCheck, len(records))
	for i, record := range records {
		checks[i] = CheckRecord(record)
	}

	assessment.Completeness = v.completeness(records)
	assessment.Accuracy = v.accuracy(records)
	assessment.Consistency = consistency(checks)
	assessment.Freshness = v.freshness(records, now)
	assessment.Validity = validity(checks)
	assessment.OverallScore = weightCompleteness*assessment.Completeness +
		weightAccuracy*assessment.Accuracy +
		weightConsistency*assessment.Consistency +
		weightFreshness*assessment.Freshness +
		weightValidity*assessment.Validity

	assessment.Anomalies = append(assessment.Anomalies,
		DetectOutliers("total_qty", floatValues(records, func(r core.NormalizedRecord) float64 {
			return float64(r.TotalQty)
		}))...)
	assessment.Anomalies = append(assessment.Anomalies,
		DetectOutliers("price", floatValues(records, func(r core.NormalizedRecord) float64 {
			return r.Price
		}))...)
	for _, check := range checks {
		for _, flag := range check.SuspicionFlags {
			assessment.Anomalies = append(assessment.Anomalies, core.Anomaly{
				Field:    "record",
				Severity: core.SeverityWarning,
				Message:  flag,
			})
		}
	}
	return assessment
}

// Gate rejects the whole batch when the overall score is below the
// configured minimum. Gating is batch-level on purpose: loading only the
// valid subset of a degraded batch hides systematic upstream problems.
func (v *Validator) Gate(assessment core.QualityAssessment) error {
	// An empty batch has nothing to hold back. Routine for incremental
	// runs that find no changes upstream.
	if assessment.RecordCount == 0 {
		return nil
	}
	if assessment.Passes(v.MinQualityScore()) {
		return nil
	}
	return fmt.Errorf(
		"quality: batch %s quality gate failed, score %.1f below threshold %.1f",
		assessment.BatchID, assessment.OverallScore, v.MinQualityScore(),
	)
}

func (v *Validator) completeness(records []core.NormalizedRecord) float64 {
	total := 0.0
	for _, record := range records {
		required := 0.0
		if strings.TrimSpace(record.CanonicalID) != "" {
			required++
		}
		if strings.TrimSpace(record.WarehouseKey) != "" {
			required++
		}
		optional := 0.0
		if strings.TrimSpace(record.ProductName) != "" {
			optional++
		}
		if record.Price > 0 {
			optional++
		}
		if strings.TrimSpace(record.SourceTag) != "" {
			optional++
		}
		total += requiredFieldShare*(required/2) + optionalFieldShare*(optional/3)
	}
	return 100 * total / float64(len(records))
}

func (v *Validator) accuracy(records []core.NormalizedRecord) float64 {
	type observation struct {
		totals    map[int64]struct{}
		recordIdx []int
	}
	groups := map[string]*observation{}
	for i, record := range records {
		key := record.CanonicalID + "|" + record.WarehouseKey
		group, ok := groups[key]
		if !ok {
			group = &observation{totals: map[int64]struct{}{}}
			groups[key] = group
		}
		group.totals[record.TotalQty] = struct{}{}
		group.recordIdx = append(group.recordIdx, i)
	}

	total := 0.0
	for _, group := range groups {
		for _, idx := range group.recordIdx {
			record := records[idx]
			if v.authoritativeSource != "" &&
				strings.EqualFold(record.SourceTag, v.authoritativeSource) {
				total += 100
				continue
			}
			if len(group.recordIdx) < 2 {
				total += accuracyNoPartner
				continue
			}
			// Cross-source agreement: all observations of the same
			// (canonical id, warehouse) converge on one total.
			if len(group.totals) == 1 {
				total += 100
			} else {
				total += 100 / float64(len(group.totals))
			}
		}
	}
	return total / float64(len(records))
}

func consistency(checks []RecordCheck) float64 {
	passed := 0
	for _, check := range checks {
		if check.ConsistencyOK() {
			passed++
		}
	}
	return 100 * float64(passed) / float64(len(checks))
}

func validity(checks []RecordCheck) float64 {
	passed := 0
	for _, check := range checks {
		if check.Valid {
			passed++
		}
	}
	return 100 * float64(passed) / float64(len(checks))
}

func (v *Validator) freshness(records []core.NormalizedRecord, now time.Time) float64 {
	total := 0.0
	for _, record := range records {
		total += freshnessBucket(now.Sub(record.ObservedAt))
	}
	return total / float64(len(records))
}

func freshnessBucket(age time.Duration) float64 {
	switch {
	case age <= time.Hour:
		return 100
	case age <= 6*time.Hour:
		return 90
	case age <= 24*time.Hour:
		return 80
	case age <= 72*time.Hour:
		return 60
	default:
		return 30
	}
}

func (v *Validator) nowUTC() time.Time {
	if v != nil && v.now != nil {
		return v.now().UTC()
	}
	return time.Now().UTC()
}

func floatValues(records []core.NormalizedRecord, pick func(core.NormalizedRecord) float64) []float64 {
	values := make([]float64, 0, len(records))
	for _, record := range records {
		values = append(values, pick(record))
	}
	return values
}

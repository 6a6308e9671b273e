package quality

import (
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-reconcile/core"
)

func TestDetectOutliers_FlagsExtremeValue(t *testing.T) {
	anomalies := DetectOutliers("stock", []float64{1, 2, 2, 3, 3, 3, 4, 4, 5, 100})
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly one outlier, got %d", len(anomalies))
	}
	if anomalies[0].Value != 100 {
		t.Fatalf("expected 100 to be flagged, got %v", anomalies[0].Value)
	}
	if anomalies[0].Severity != core.SeverityCritical {
		t.Fatalf("expected critical severity for extreme outlier, got %s", anomalies[0].Severity)
	}

	if anomalies := DetectOutliers("stock", []float64{10, 11, 9, 10, 12, 11}); len(anomalies) != 0 {
		t.Fatalf("expected no outliers in tight distribution, got %d", len(anomalies))
	}
}

func TestDetectOutliers_WarningSeverityNearFence(t *testing.T) {
	// Q1=10, Q3=11, IQR=1: 13 is past the 1.5x fence but inside 3x.
	anomalies := DetectOutliers("stock", []float64{10, 10, 10, 11, 11, 11, 13})
	if len(anomalies) != 1 {
		t.Fatalf("expected one outlier, got %d", len(anomalies))
	}
	if anomalies[0].Severity != core.SeverityWarning {
		t.Fatalf("expected warning severity, got %s", anomalies[0].Severity)
	}
}

func TestDetectOutliers_SmallSamplesSkipped(t *testing.T) {
	if anomalies := DetectOutliers("stock", []float64{1, 100, 1000}); anomalies != nil {
		t.Fatalf("expected small sample to be skipped")
	}
}

func TestCheckRecord_FormatAndBusinessRules(t *testing.T) {
	valid := CheckRecord(core.NormalizedRecord{
		CanonicalID:  "12345",
		WarehouseKey: "МОСКВА_РФЦ",
		AvailableQty: 5,
		ReservedQty:  2,
		TotalQty:     10,
		Price:        199.90,
		ProductName:  "Winter Jacket",
	})
	if !valid.Valid || !valid.ConsistencyOK() || len(valid.SuspicionFlags) != 0 {
		t.Fatalf("expected clean record, got %+v", valid)
	}

	invalid := CheckRecord(core.NormalizedRecord{
		CanonicalID:  "",
		WarehouseKey: "МОСКВА_РФЦ",
		AvailableQty: -1,
		Price:        2_000_000,
		ProductName:  "Widget",
		TotalQty:     1,
	})
	if invalid.Valid {
		t.Fatalf("expected invalid record")
	}
	if len(invalid.FormatViolations) != 3 {
		t.Fatalf("expected 3 format violations, got %v", invalid.FormatViolations)
	}

	flagged := CheckRecord(core.NormalizedRecord{
		CanonicalID:  "12345",
		WarehouseKey: "МОСКВА_РФЦ",
		AvailableQty: 0,
		ReservedQty:  3,
		TotalQty:     3,
		Price:        10,
		ProductName:  "12345",
	})
	if !flagged.Valid {
		t.Fatalf("suspicious records stay valid, got %+v", flagged)
	}
	if len(flagged.SuspicionFlags) != 2 {
		t.Fatalf("expected 2 suspicion flags, got %v", flagged.SuspicionFlags)
	}

	overbooked := CheckRecord(core.NormalizedRecord{
		CanonicalID:  "12345",
		WarehouseKey: "МОСКВА_РФЦ",
		AvailableQty: 8,
		ReservedQty:  5,
		TotalQty:     10,
		Price:        10,
		ProductName:  "Widget",
	})
	if overbooked.ConsistencyOK() {
		t.Fatalf("expected stock equation violation")
	}
	if !overbooked.Valid {
		t.Fatalf("business violations must not hard-reject the record")
	}
}

func TestFreshnessBuckets(t *testing.T) {
	cases := map[time.Duration]float64{
		30 * time.Minute: 100,
		3 * time.Hour:    90,
		12 * time.Hour:   80,
		48 * time.Hour:   60,
		96 * time.Hour:   30,
	}
	for age, want := range cases {
		if got := freshnessBucket(age); got != want {
			t.Fatalf("freshness for %s: got %v want %v", age, got, want)
		}
	}
}

func TestAssess_CleanAuthoritativeBatchScoresFull(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	validator := NewValidator(ValidatorConfig{
		AuthoritativeSource: "ozon",
		Now:                 func() time.Time { return now },
	})

	records := make([]core.NormalizedRecord, 0, 6)
	for i := 0; i < 6; i++ {
		records = append(records, core.NormalizedRecord{
			CanonicalID:  "1000" + string(rune('0'+i)),
			WarehouseKey: "МОСКВА_РФЦ",
			AvailableQty: int64(10 + i),
			ReservedQty:  2,
			TotalQty:     int64(14 + i),
			Price:        100 + float64(i),
			ProductName:  "Product " + strings.Repeat("x", i+1),
			SourceTag:    "ozon",
			ObservedAt:   now.Add(-10 * time.Minute),
		})
	}

	assessment := validator.Assess("batch-1", records)
	if assessment.OverallScore < 99.99 {
		t.Fatalf("expected perfect score, got %v", assessment.OverallScore)
	}
	if err := validator.Gate(assessment); err != nil {
		t.Fatalf("expected gate to pass: %v", err)
	}
	if len(assessment.Anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %d", len(assessment.Anomalies))
	}
}

func TestAssess_DegradedBatchFailsGate(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	validator := NewValidator(ValidatorConfig{
		AuthoritativeSource: "ozon",
		MinQualityScore:     80,
		Now:                 func() time.Time { return now },
	})

	records := make([]core.NormalizedRecord, 0, 5)
	for i := 0; i < 5; i++ {
		records = append(records, core.NormalizedRecord{
			CanonicalID:  "2000" + string(rune('0'+i)),
			WarehouseKey: "МОСКВА_РФЦ",
			AvailableQty: 5,
			ReservedQty:  5,
			TotalQty:     2,
			Price:        0,
			ProductName:  "",
			SourceTag:    "",
			ObservedAt:   now.Add(-100 * time.Hour),
		})
	}

	assessment := validator.Assess("batch-2", records)
	if assessment.OverallScore >= 80 {
		t.Fatalf("expected degraded score below threshold, got %v", assessment.OverallScore)
	}
	if err := validator.Gate(assessment); err == nil {
		t.Fatalf("expected quality gate rejection")
	}
}

func TestGate_EmptyBatchPasses(t *testing.T) {
	validator := NewValidator(ValidatorConfig{MinQualityScore: 80})
	assessment := validator.Assess("batch-empty", nil)
	if assessment.OverallScore != 0 || assessment.RecordCount != 0 {
		t.Fatalf("unexpected empty assessment: %#v", assessment)
	}
	if err := validator.Gate(assessment); err != nil {
		t.Fatalf("empty batch must not fail the gate: %v", err)
	}
}

func TestAssess_CrossSourceDisagreementLowersAccuracy(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	validator := NewValidator(ValidatorConfig{
		AuthoritativeSource: "ozon",
		Now:                 func() time.Time { return now },
	})

	base := core.NormalizedRecord{
		CanonicalID:  "31337",
		WarehouseKey: "МОСКВА_РФЦ",
		AvailableQty: 5,
		ReservedQty:  1,
		TotalQty:     10,
		Price:        50,
		ProductName:  "Gadget",
		ObservedAt:   now.Add(-5 * time.Minute),
	}
	agreeing := base
	agreeing.SourceTag = "warehouse_db"
	disagreeing := base
	disagreeing.SourceTag = "partner_feed"
	disagreeing.TotalQty = 99

	assessment := validator.Assess("batch-3", []core.NormalizedRecord{agreeing, disagreeing})
	if assessment.Accuracy >= 100 {
		t.Fatalf("expected disagreement to lower accuracy, got %v", assessment.Accuracy)
	}
}

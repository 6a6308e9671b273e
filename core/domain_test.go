package core

import (
	"testing"
	"time"
)

func TestRunRecord_TransitionGuards(t *testing.T) {
	now := time.Now().UTC()
	run := &RunRecord{BatchID: "b1", Status: RunStatusQueued}

	for _, status := range []RunStatus{
		RunStatusExtracting,
		RunStatusTransforming,
		RunStatusLoading,
		RunStatusPartialSuccess,
	} {
		if err := run.TransitionTo(status, now); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
	if run.CompletedAt == nil {
		t.Fatalf("expected completion timestamp on terminal status")
	}
	if err := run.TransitionTo(RunStatusExtracting, now); err == nil {
		t.Fatalf("expected terminal run to reject further transitions")
	}
}

func TestRunRecord_ValidationFailureAfterTransform(t *testing.T) {
	now := time.Now().UTC()
	run := &RunRecord{BatchID: "b2", Status: RunStatusTransforming}
	if err := run.TransitionTo(RunStatusValidationFailed, now); err != nil {
		t.Fatalf("transition to validation_failed: %v", err)
	}
	if !run.Status.Terminal() {
		t.Fatalf("expected validation_failed to be terminal")
	}
}

func TestRunRecord_AnyActiveStatusMayFail(t *testing.T) {
	now := time.Now().UTC()
	for _, from := range []RunStatus{RunStatusQueued, RunStatusExtracting, RunStatusTransforming, RunStatusLoading} {
		run := &RunRecord{BatchID: "b3", Status: from}
		if err := run.TransitionTo(RunStatusFailed, now); err != nil {
			t.Fatalf("transition %s -> failed: %v", from, err)
		}
	}
}

func TestCrossReference_SyncStatusTransitions(t *testing.T) {
	now := time.Now().UTC()

	ref := &CrossReference{CanonicalID: "12345", SyncStatus: SyncStatusPending}
	if err := ref.MarkSyncStatus(SyncStatusSynced, "", now); err != nil {
		t.Fatalf("pending -> synced: %v", err)
	}
	if err := ref.MarkSyncStatus(SyncStatusFailed, "boom", now); err == nil {
		t.Fatalf("expected synced -> failed to be rejected")
	}

	ref = &CrossReference{CanonicalID: "12345", SyncStatus: SyncStatusFailed}
	if err := ref.MarkSyncStatus(SyncStatusPending, "manual reset", now); err != nil {
		t.Fatalf("failed -> pending: %v", err)
	}
	if ref.LastError != "manual reset" {
		t.Fatalf("expected reset reason to persist, got %q", ref.LastError)
	}
}

func TestMatchType_ConfidenceContract(t *testing.T) {
	cases := map[MatchType]float64{
		MatchTypeExact:        1.0,
		MatchTypeManual:       1.0,
		MatchTypeRuleBased:    0.9,
		MatchTypeFuzzy:        0.8,
		MatchTypeAutoDetected: 0.7,
	}
	for matchType, want := range cases {
		if got := matchType.Confidence(); got != want {
			t.Fatalf("confidence for %s: got %v want %v", matchType, got, want)
		}
	}
}

func TestThrottleKeyFor_NormalizesSegments(t *testing.T) {
	key := ThrottleKeyFor(" API_Success ", SeverityWarning, "Default")
	if key != "api_success|warning|default" {
		t.Fatalf("unexpected throttle key %q", key)
	}
}

package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/store/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []core.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, alert core.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func seedRun(t *testing.T, runs *memory.RunStore, batchID string, status core.RunStatus, quality float64, startedAt time.Time, duration time.Duration) {
	t.Helper()
	run := core.RunRecord{
		BatchID:      batchID,
		Target:       "ozon",
		Type:         core.RunTypeFullSync,
		Status:       status,
		QualityScore: quality,
		StartedAt:    startedAt,
		Metrics: core.PhaseMetrics{
			RecordsExtracted: 100,
		},
	}
	if status.Terminal() {
		completed := startedAt.Add(duration)
		run.CompletedAt = &completed
	}
	if _, err := runs.Create(context.Background(), run); err != nil {
		t.Fatalf("seed run %s: %v", batchID, err)
	}
}

func newMonitor(t *testing.T, runs *memory.RunStore, alerts *memory.AlertStore, notifier core.Notifier, now time.Time) *Monitor {
	t.Helper()
	monitor, err := NewMonitor(Config{
		Runs:                runs,
		Alerts:              alerts,
		Notifier:            notifier,
		MinAPISuccessRate:   95,
		MinQualityScore:     90,
		MaxConsecutiveFails: 3,
		MaxHoursSinceOK:     4,
		AlertCooldown:       time.Hour,
		Now:                 func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return monitor
}

func TestMonitor_HealthyHistoryRaisesNoAlerts(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	runs := memory.NewRunStore()
	for i := 0; i < 5; i++ {
		seedRun(t, runs, batchID(i), core.RunStatusCompleted, 96,
			now.Add(-time.Duration(i+1)*time.Hour), 2*time.Minute)
	}

	notifier := &recordingNotifier{}
	monitor := newMonitor(t, runs, memory.NewAlertStore(), notifier, now)

	report, alerts, err := monitor.Evaluate(context.Background(), "ozon")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 0 || notifier.count() != 0 {
		t.Fatalf("expected no alerts for healthy history, got %d", len(alerts))
	}
	if report.Score < 95 {
		t.Fatalf("expected high health score, got %.1f", report.Score)
	}
	if report.Availability != 100 {
		t.Fatalf("expected full availability, got %.1f", report.Availability)
	}
}

func TestMonitor_ConsecutiveFailuresRaiseCriticalAlert(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	runs := memory.NewRunStore()
	// Newest three runs failed; an older one succeeded recently enough.
	seedRun(t, runs, "ok-1", core.RunStatusCompleted, 95, now.Add(-3*time.Hour), 2*time.Minute)
	for i := 0; i < 3; i++ {
		seedRun(t, runs, batchID(i), core.RunStatusFailed, 0,
			now.Add(-time.Duration(30-i*10)*time.Minute), time.Minute)
	}

	notifier := &recordingNotifier{}
	alertStore := memory.NewAlertStore()
	monitor := newMonitor(t, runs, alertStore, notifier, now)

	report, alerts, err := monitor.Evaluate(context.Background(), "ozon")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if report.ConsecutiveFailures != 3 {
		t.Fatalf("expected 3 consecutive failures, got %d", report.ConsecutiveFailures)
	}

	found := false
	for _, alert := range alerts {
		if alert.Type == AlertTypeConsecutiveFailures {
			found = true
			if alert.Severity != core.SeverityCritical {
				t.Fatalf("expected critical severity, got %s", alert.Severity)
			}
			if alert.ThrottleKey != "consecutive_failures|critical|ozon" {
				t.Fatalf("unexpected throttle key %q", alert.ThrottleKey)
			}
		}
	}
	if !found {
		t.Fatalf("expected consecutive failures alert, got %+v", alerts)
	}
}

func TestMonitor_CooldownSuppressesDuplicateAlerts(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	runs := memory.NewRunStore()
	seedRun(t, runs, "low-q", core.RunStatusCompleted, 70, now.Add(-time.Hour), 2*time.Minute)

	notifier := &recordingNotifier{}
	alertStore := memory.NewAlertStore()
	monitor := newMonitor(t, runs, alertStore, notifier, now)

	_, first, err := monitor.Evaluate(context.Background(), "ozon")
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	if len(first) != 1 || first[0].Type != AlertTypeQuality {
		t.Fatalf("expected one quality alert, got %+v", first)
	}

	// Same breach inside the cooldown window: suppressed.
	_, second, err := monitor.Evaluate(context.Background(), "ozon")
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected duplicate suppression, got %+v", second)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one delivery, got %d", notifier.count())
	}
}

func TestMonitor_StaleSuccessAlert(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	runs := memory.NewRunStore()
	seedRun(t, runs, "old-ok", core.RunStatusCompleted, 95, now.Add(-6*time.Hour), 2*time.Minute)

	notifier := &recordingNotifier{}
	monitor := newMonitor(t, runs, memory.NewAlertStore(), notifier, now)

	report, alerts, err := monitor.Evaluate(context.Background(), "ozon")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if report.HoursSinceLastOK < 5 {
		t.Fatalf("expected stale success hours, got %.1f", report.HoursSinceLastOK)
	}

	found := false
	for _, alert := range alerts {
		if alert.Type == AlertTypeStaleSuccess {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stale success alert, got %+v", alerts)
	}
}

func TestMonitor_EmptyHistoryIsQuiet(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	monitor := newMonitor(t, memory.NewRunStore(), memory.NewAlertStore(), &recordingNotifier{}, now)

	report, alerts, err := monitor.Evaluate(context.Background(), "ozon")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if report.RunsSampled != 0 || len(alerts) != 0 {
		t.Fatalf("expected quiet report with no history, got %+v", report)
	}
}

func batchID(i int) string {
	return string(rune('a'+i)) + "-run"
}

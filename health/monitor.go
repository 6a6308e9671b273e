// Package health scores recent pipeline activity against SLA
// thresholds and emits deduplicated alerts when they are breached.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-reconcile/core"
)

const (
	weightAPISuccess   = 0.25
	weightQuality      = 0.25
	weightAvailability = 0.30
	weightPerformance  = 0.20

	defaultSampleSize     = 20
	defaultTargetDuration = 5 * time.Minute
	defaultAlertCooldown  = time.Hour

	AlertTypeAPISuccess          = "api_success_rate"
	AlertTypeQuality             = "quality_score"
	AlertTypeConsecutiveFailures = "consecutive_failures"
	AlertTypeStaleSuccess        = "hours_since_success"
)

// Report is one health evaluation over the recent run history.
type Report struct {
	Target              string
	Score               float64
	APISuccessRate      float64
	AvgQualityScore     float64
	Availability        float64
	Performance         float64
	ConsecutiveFailures int
	HoursSinceLastOK    float64
	RunsSampled         int
	EvaluatedAt         time.Time
}

type Config struct {
	Runs     core.RunStore
	Alerts   core.AlertStore
	Notifier core.Notifier

	MinAPISuccessRate   float64
	MinQualityScore     float64
	MaxConsecutiveFails int
	MaxHoursSinceOK     float64
	AlertCooldown       time.Duration
	SampleSize          int
	TargetRunDuration   time.Duration

	Logger core.Logger
	Now    func() time.Time
}

// Monitor evaluates pipeline health for a sync target.
type Monitor struct {
	runs     core.RunStore
	alerts   core.AlertStore
	notifier core.Notifier

	minAPISuccessRate   float64
	minQualityScore     float64
	maxConsecutiveFails int
	maxHoursSinceOK     float64
	cooldown            time.Duration
	sampleSize          int
	targetRunDuration   time.Duration

	logger core.Logger
	now    func() time.Time
}

func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.Runs == nil {
		return nil, fmt.Errorf("health: run store is required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = core.NopNotifier{}
	}
	minAPISuccessRate := cfg.MinAPISuccessRate
	if minAPISuccessRate <= 0 {
		minAPISuccessRate = 95
	}
	minQualityScore := cfg.MinQualityScore
	if minQualityScore <= 0 {
		minQualityScore = 90
	}
	maxConsecutiveFails := cfg.MaxConsecutiveFails
	if maxConsecutiveFails <= 0 {
		maxConsecutiveFails = 3
	}
	maxHoursSinceOK := cfg.MaxHoursSinceOK
	if maxHoursSinceOK <= 0 {
		maxHoursSinceOK = 4
	}
	cooldown := cfg.AlertCooldown
	if cooldown <= 0 {
		cooldown = defaultAlertCooldown
	}
	sampleSize := cfg.SampleSize
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}
	targetRunDuration := cfg.TargetRunDuration
	if targetRunDuration <= 0 {
		targetRunDuration = defaultTargetDuration
	}
	now := cfg.Now
	if now == nil {
		now = core.SystemClock
	}

	return &Monitor{
		runs:                cfg.Runs,
		alerts:              cfg.Alerts,
		notifier:            notifier,
		minAPISuccessRate:   minAPISuccessRate,
		minQualityScore:     minQualityScore,
		maxConsecutiveFails: maxConsecutiveFails,
		maxHoursSinceOK:     maxHoursSinceOK,
		cooldown:            cooldown,
		sampleSize:          sampleSize,
		targetRunDuration:   targetRunDuration,
		logger:              glog.Ensure(cfg.Logger),
		now:                 now,
	}, nil
}

// Evaluate scores the target's recent runs and raises alerts for every
// breached threshold. Returned alerts are the ones actually emitted;
// suppressed duplicates are not included.
func (m *Monitor) Evaluate(ctx context.Context, target string) (Report, []core.Alert, error) {
	if m == nil {
		return Report{}, nil, fmt.Errorf("health: monitor is nil")
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return Report{}, nil, fmt.Errorf("health: target is required")
	}

	runs, err := m.runs.ListRecent(ctx, target, m.sampleSize)
	if err != nil {
		return Report{}, nil, fmt.Errorf("health: list recent runs: %w", err)
	}

	now := m.now().UTC()
	report := m.buildReport(target, runs, now)
	if report.RunsSampled == 0 {
		return report, nil, nil
	}

	alerts := m.raiseAlerts(ctx, report, now)
	return report, alerts, nil
}

func (m *Monitor) buildReport(target string, runs []core.RunRecord, now time.Time) Report {
	report := Report{Target: target, RunsSampled: len(runs), EvaluatedAt: now}
	if len(runs) == 0 {
		return report
	}

	extracted := 0
	recordErrors := 0
	okRuns := 0
	qualityTotal := 0.0
	qualityRuns := 0
	durationTotal := time.Duration(0)
	durationRuns := 0
	var lastOK *time.Time

	for _, run := range runs {
		extracted += run.Metrics.RecordsExtracted
		recordErrors += run.Metrics.RecordsErrors
		if run.Status == core.RunStatusCompleted || run.Status == core.RunStatusPartialSuccess {
			okRuns++
			if run.CompletedAt != nil && (lastOK == nil || run.CompletedAt.After(*lastOK)) {
				lastOK = run.CompletedAt
			}
		}
		if run.QualityScore > 0 {
			qualityTotal += run.QualityScore
			qualityRuns++
		}
		if run.CompletedAt != nil {
			durationTotal += run.CompletedAt.Sub(run.StartedAt)
			durationRuns++
		}
	}

	report.APISuccessRate = 100
	if extracted > 0 {
		report.APISuccessRate = 100 * float64(extracted-recordErrors) / float64(extracted)
	}
	if qualityRuns > 0 {
		report.AvgQualityScore = qualityTotal / float64(qualityRuns)
	}
	report.Availability = 100 * float64(okRuns) / float64(len(runs))
	report.Performance = 100.0
	if durationRuns > 0 {
		avg := durationTotal / time.Duration(durationRuns)
		if avg > m.targetRunDuration {
			report.Performance = 100 * float64(m.targetRunDuration) / float64(avg)
		}
	}

	// Runs arrive newest first.
	for _, run := range runs {
		if run.Status == core.RunStatusFailed {
			report.ConsecutiveFailures++
			continue
		}
		break
	}
	if lastOK != nil {
		report.HoursSinceLastOK = now.Sub(*lastOK).Hours()
	} else {
		report.HoursSinceLastOK = now.Sub(runs[len(runs)-1].StartedAt).Hours()
	}

	report.Score = weightAPISuccess*report.APISuccessRate +
		weightQuality*report.AvgQualityScore +
		weightAvailability*report.Availability +
		weightPerformance*report.Performance
	return report
}

func (m *Monitor) raiseAlerts(ctx context.Context, report Report, now time.Time) []core.Alert {
	candidates := make([]core.Alert, 0, 4)

	if report.APISuccessRate < m.minAPISuccessRate {
		candidates = append(candidates, core.Alert{
			Type:     AlertTypeAPISuccess,
			Severity: core.SeverityWarning,
			Message: fmt.Sprintf("API success rate %.1f%% below SLA %.1f%%",
				report.APISuccessRate, m.minAPISuccessRate),
		})
	}
	if report.AvgQualityScore > 0 && report.AvgQualityScore < m.minQualityScore {
		candidates = append(candidates, core.Alert{
			Type:     AlertTypeQuality,
			Severity: core.SeverityWarning,
			Message: fmt.Sprintf("average quality score %.1f below SLA %.1f",
				report.AvgQualityScore, m.minQualityScore),
		})
	}
	if report.ConsecutiveFailures >= m.maxConsecutiveFails {
		candidates = append(candidates, core.Alert{
			Type:     AlertTypeConsecutiveFailures,
			Severity: core.SeverityCritical,
			Message: fmt.Sprintf("%d consecutive failed runs (threshold %d)",
				report.ConsecutiveFailures, m.maxConsecutiveFails),
		})
	}
	if report.HoursSinceLastOK > m.maxHoursSinceOK {
		candidates = append(candidates, core.Alert{
			Type:     AlertTypeStaleSuccess,
			Severity: core.SeverityCritical,
			Message: fmt.Sprintf("%.1f hours since last successful run (threshold %.1f)",
				report.HoursSinceLastOK, m.maxHoursSinceOK),
		})
	}

	emitted := make([]core.Alert, 0, len(candidates))
	for _, alert := range candidates {
		alert.ID = uuid.NewString()
		alert.ThrottleKey = core.ThrottleKeyFor(alert.Type, alert.Severity, report.Target)
		alert.CreatedAt = now
		alert.Context = map[string]any{
			"target":       report.Target,
			"health_score": report.Score,
		}

		if m.suppressed(ctx, alert.ThrottleKey, now) {
			m.logger.Debug("alert suppressed by cooldown", "throttle_key", alert.ThrottleKey)
			continue
		}

		if err := m.notifier.Notify(ctx, alert); err != nil {
			m.logger.Error("alert delivery failed",
				"throttle_key", alert.ThrottleKey,
				"error", err.Error(),
			)
		} else {
			sentAt := now
			alert.SentAt = &sentAt
		}

		if m.alerts != nil {
			stored, err := m.alerts.Create(ctx, alert)
			if err != nil {
				m.logger.Error("alert persistence failed",
					"throttle_key", alert.ThrottleKey,
					"error", err.Error(),
				)
			} else {
				alert = stored
			}
		}
		emitted = append(emitted, alert)
	}
	return emitted
}

func (m *Monitor) suppressed(ctx context.Context, throttleKey string, now time.Time) bool {
	if m.alerts == nil {
		return false
	}
	last, err := m.alerts.LastByThrottleKey(ctx, throttleKey)
	if err != nil {
		return false
	}
	return now.Sub(last.CreatedAt) < m.cooldown
}

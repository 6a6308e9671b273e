package pipeline

import (
	"context"
	"time"

	"github.com/goliatone/go-reconcile/core"
)

func (p *Pipeline) observeRun(ctx context.Context, startedAt time.Time, run core.RunRecord) {
	if p == nil {
		return
	}
	status := string(run.Status)
	tags := map[string]string{
		"target": run.Target,
		"type":   string(run.Type),
		"status": status,
	}
	duration := p.now().Sub(startedAt)

	p.metrics.IncCounter(ctx, "reconcile.run.total", 1, tags)
	p.metrics.IncCounter(ctx, "reconcile.run.records_extracted", int64(run.Metrics.RecordsExtracted), tags)
	p.metrics.IncCounter(ctx, "reconcile.run.records_errors", int64(run.Metrics.RecordsErrors), tags)
	p.metrics.ObserveHistogram(ctx, "reconcile.run.duration_ms", float64(duration.Milliseconds()), tags)
	p.metrics.ObserveHistogram(ctx, "reconcile.run.quality_score", run.QualityScore, tags)

	fields := []any{
		"batch_id", run.BatchID,
		"target", run.Target,
		"type", string(run.Type),
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"records_extracted", run.Metrics.RecordsExtracted,
		"records_inserted", run.Metrics.RecordsInserted,
		"records_updated", run.Metrics.RecordsUpdated,
		"records_errors", run.Metrics.RecordsErrors,
		"sub_batches_failed", run.Metrics.SubBatchesFailed,
		"quality_score", run.QualityScore,
	}
	switch run.Status {
	case core.RunStatusCompleted:
		p.logger.Info("run completed", fields...)
	case core.RunStatusPartialSuccess:
		p.logger.Warn("run completed with errors", fields...)
	default:
		p.logger.Error("run did not complete", append(fields, "error", run.ErrorMessage)...)
	}
}

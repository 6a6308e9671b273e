// Package pipeline orchestrates a reconciliation run through the
// extract, transform, and quality-gated load phases, persisting one
// audit RunRecord per run.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/identifier"
	"github.com/goliatone/go-reconcile/names"
	"github.com/goliatone/go-reconcile/quality"
)

const (
	defaultPageSize     = 100
	defaultSubBatchSize = 20
	defaultWorkers      = 4
)

type Config struct {
	Target       string
	PageSize     int
	SubBatchSize int
	Workers      int

	Client      core.MarketplaceClient
	Names       *names.Normalizer
	Quality     *quality.Validator
	Runs        core.RunStore
	Assessments core.AssessmentStore
	Inventory   core.InventoryStore

	Logger  core.Logger
	Metrics core.MetricsRecorder
	Now     func() time.Time
}

// RunOptions parameterizes one run.
type RunOptions struct {
	Type     core.RunType
	Target   string
	Filters  map[string]string
	Metadata map[string]any
}

// Pipeline is the run orchestrator. One Pipeline serves many runs; the
// per-target run lock serializes runs against the same target.
type Pipeline struct {
	target       string
	pageSize     int
	subBatchSize int
	workers      int

	client      core.MarketplaceClient
	names       *names.Normalizer
	quality     *quality.Validator
	runs        core.RunStore
	assessments core.AssessmentStore
	inventory   core.InventoryStore

	locks   *runLocks
	logger  core.Logger
	metrics core.MetricsRecorder
	now     func() time.Time
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("pipeline: marketplace client is required")
	}
	if cfg.Names == nil {
		return nil, fmt.Errorf("pipeline: name normalizer is required")
	}
	if cfg.Quality == nil {
		return nil, fmt.Errorf("pipeline: quality validator is required")
	}
	if cfg.Runs == nil {
		return nil, fmt.Errorf("pipeline: run store is required")
	}
	if cfg.Inventory == nil {
		return nil, fmt.Errorf("pipeline: inventory store is required")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	subBatchSize := cfg.SubBatchSize
	if subBatchSize <= 0 {
		subBatchSize = defaultSubBatchSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	now := cfg.Now
	if now == nil {
		now = core.SystemClock
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}

	return &Pipeline{
		target:       strings.TrimSpace(cfg.Target),
		pageSize:     pageSize,
		subBatchSize: subBatchSize,
		workers:      workers,
		client:       cfg.Client,
		names:        cfg.Names,
		quality:      cfg.Quality,
		runs:         cfg.Runs,
		assessments:  cfg.Assessments,
		inventory:    cfg.Inventory,
		locks:        newRunLocks(),
		logger:       glog.Ensure(cfg.Logger),
		metrics:      metrics,
		now:          now,
	}, nil
}

// Run executes one reconciliation run end to end and returns the final
// RunRecord. Transient record failures never abort the run; they are
// counted and reflected in the final status.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (core.RunRecord, error) {
	if p == nil {
		return core.RunRecord{}, fmt.Errorf("pipeline: pipeline is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runType := opts.Type
	if runType == "" {
		runType = core.RunTypeFullSync
	}
	if err := runType.Validate(); err != nil {
		return core.RunRecord{}, err
	}
	target := strings.TrimSpace(opts.Target)
	if target == "" {
		target = p.target
	}
	if target == "" {
		return core.RunRecord{}, fmt.Errorf("pipeline: sync target is required")
	}

	if !p.locks.acquire(target) {
		return core.RunRecord{}, fmt.Errorf("%w: %s", core.ErrRunAlreadyActive, target)
	}
	defer p.locks.release(target)

	active, err := p.runs.ActiveForTarget(ctx, target)
	if err != nil {
		return core.RunRecord{}, fmt.Errorf("pipeline: run lock check: %w", err)
	}
	if active {
		return core.RunRecord{}, fmt.Errorf("%w: %s", core.ErrRunAlreadyActive, target)
	}

	startedAt := p.now().UTC()
	run := core.RunRecord{
		BatchID:   uuid.NewString(),
		Target:    target,
		Type:      runType,
		Status:    core.RunStatusQueued,
		Metadata:  opts.Metadata,
		StartedAt: startedAt,
	}
	run, err = p.runs.Create(ctx, run)
	if err != nil {
		return core.RunRecord{}, fmt.Errorf("pipeline: create run record: %w", err)
	}

	run = p.execute(ctx, run, opts)
	p.observeRun(ctx, startedAt, run)
	return run, nil
}

// Status returns the audit record for a run.
func (p *Pipeline) Status(ctx context.Context, batchID string) (core.RunRecord, error) {
	if p == nil || p.runs == nil {
		return core.RunRecord{}, fmt.Errorf("pipeline: run store is not configured")
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return core.RunRecord{}, fmt.Errorf("pipeline: batch id is required")
	}
	return p.runs.Get(ctx, batchID)
}

func (p *Pipeline) execute(ctx context.Context, run core.RunRecord, opts RunOptions) core.RunRecord {
	// Extract and per-page transform. Raw source records are
	// normalized page by page and never held past their page.
	if run = p.transition(ctx, run, core.RunStatusExtracting); run.Status == core.RunStatusFailed {
		return run
	}
	ingested, err := p.ingest(ctx, opts.Filters)
	run.Metrics.ExtractDuration = ingested.extractDur
	run.Metrics.RecordsExtracted = ingested.extracted
	run.Metrics.TransformDur = ingested.transformDur
	run.Metrics.RecordsErrors = ingested.recordErrors
	if err != nil {
		return p.fail(ctx, run, fmt.Errorf("extract: %w", err))
	}

	// Batch-level normalization review.
	if run = p.transition(ctx, run, core.RunStatusTransforming); run.Status == core.RunStatusFailed {
		return run
	}
	normalized := ingested.normalized
	recordErrors := ingested.recordErrors

	assessment := p.quality.Assess(run.BatchID, normalized)
	run.QualityScore = assessment.OverallScore
	if p.assessments != nil {
		if _, err := p.assessments.Create(ctx, assessment); err != nil {
			return p.fail(ctx, run, fmt.Errorf("persist assessment: %w", err))
		}
	}

	if run.Type == core.RunTypeValidationOnly {
		return p.finish(ctx, run, core.RunStatusCompleted, "")
	}

	if err := p.quality.Gate(assessment); err != nil {
		p.logger.Warn("quality gate rejected batch",
			"batch_id", run.BatchID,
			"score", assessment.OverallScore,
		)
		return p.finish(ctx, run, core.RunStatusValidationFailed, err.Error())
	}

	// Load.
	if run = p.transition(ctx, run, core.RunStatusLoading); run.Status == core.RunStatusFailed {
		return run
	}
	loadStart := p.now()
	loaded := p.load(ctx, normalized)
	run.Metrics.LoadDuration = p.now().Sub(loadStart)
	run.Metrics.RecordsInserted = loaded.inserted
	run.Metrics.RecordsUpdated = loaded.updated
	run.Metrics.SubBatchesFailed = loaded.failedSubBatches

	switch {
	case loaded.canceled:
		return p.fail(ctx, run, loaded.cancelCause)
	case loaded.totalSubBatches > 0 && loaded.failedSubBatches == loaded.totalSubBatches:
		return p.fail(ctx, run, fmt.Errorf("load: every sub-batch failed"))
	case loaded.failedSubBatches > 0 || recordErrors > 0:
		return p.finish(ctx, run, core.RunStatusPartialSuccess, loaded.summary())
	default:
		return p.finish(ctx, run, core.RunStatusCompleted, "")
	}
}

type ingestResult struct {
	normalized   []core.NormalizedRecord
	extracted    int
	recordErrors int
	extractDur   time.Duration
	transformDur time.Duration
}

// ingest pages through the source and normalizes each page as it
// arrives, so peak memory tracks the normalized set, not both sets.
func (p *Pipeline) ingest(ctx context.Context, filters map[string]string) (ingestResult, error) {
	result := ingestResult{normalized: make([]core.NormalizedRecord, 0, p.pageSize)}
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		fetchStart := p.now()
		page, err := p.client.FetchPage(ctx, offset, p.pageSize, filters)
		result.extractDur += p.now().Sub(fetchStart)
		if err != nil {
			return result, err
		}
		result.extracted += len(page.Records)

		transformStart := p.now()
		dropped := p.transformPage(ctx, page.Records, &result.normalized)
		result.transformDur += p.now().Sub(transformStart)
		result.recordErrors += dropped

		if !page.HasMore {
			return result, nil
		}
		offset += p.pageSize
	}
}

// transformPage appends the usable records of one page to out and
// returns how many were dropped.
func (p *Pipeline) transformPage(ctx context.Context, raw []core.SourceRecord, out *[]core.NormalizedRecord) int {
	recordErrors := 0
	for _, record := range raw {
		canonicalID, err := identifier.Normalize(record.ExternalID)
		if err != nil || canonicalID == identifier.Absent {
			recordErrors++
			p.logger.Debug("record dropped: unusable identifier",
				"external_id", fmt.Sprint(record.ExternalID),
			)
			continue
		}

		match, err := p.names.Normalize(ctx, record.WarehouseNameRaw, record.SourceTag)
		if err != nil {
			recordErrors++
			p.logger.Debug("record dropped: warehouse name rejected",
				"canonical_id", canonicalID,
				"warehouse_name", record.WarehouseNameRaw,
			)
			continue
		}

		*out = append(*out, core.NormalizedRecord{
			CanonicalID:             canonicalID,
			WarehouseKey:            match.CanonicalKey,
			AvailableQty:            record.AvailableQty,
			ReservedQty:             record.ReservedQty,
			TotalQty:                record.TotalQty,
			Price:                   record.Price,
			ProductName:             record.ProductName,
			SourceTag:               record.SourceTag,
			ObservedAt:              record.ObservedAt,
			NormalizationConfidence: match.Confidence,
		})
	}
	return recordErrors
}

type loadOutcome struct {
	inserted         int
	updated          int
	totalSubBatches  int
	failedSubBatches int
	canceled         bool
	cancelCause      error
}

func (o loadOutcome) summary() string {
	return fmt.Sprintf(
		"loaded %d inserted, %d updated; %d of %d sub-batches failed",
		o.inserted, o.updated, o.failedSubBatches, o.totalSubBatches,
	)
}

// load writes normalized records in independent sub-batch transactions.
// A failed sub-batch is counted and skipped; the rest proceed.
// Cancellation is honored between sub-batches, never inside one.
func (p *Pipeline) load(ctx context.Context, records []core.NormalizedRecord) loadOutcome {
	outcome := loadOutcome{}
	if len(records) == 0 {
		return outcome
	}

	var mu sync.Mutex
	group := &errgroup.Group{}
	group.SetLimit(p.workers)

	for start := 0; start < len(records); start += p.subBatchSize {
		if err := ctx.Err(); err != nil {
			outcome.canceled = true
			outcome.cancelCause = err
			break
		}
		end := start + p.subBatchSize
		if end > len(records) {
			end = len(records)
		}
		subBatch := records[start:end]
		outcome.totalSubBatches++

		group.Go(func() error {
			result, err := p.inventory.UpsertBatch(ctx, subBatch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.failedSubBatches++
				p.logger.Error("sub-batch load failed",
					"size", len(subBatch),
					"error", err.Error(),
				)
				return nil
			}
			outcome.inserted += result.Inserted
			outcome.updated += result.Updated
			return nil
		})
	}

	_ = group.Wait()
	return outcome
}

func (p *Pipeline) transition(ctx context.Context, run core.RunRecord, status core.RunStatus) core.RunRecord {
	if err := run.TransitionTo(status, p.now().UTC()); err != nil {
		return p.fail(ctx, run, err)
	}
	updated, err := p.runs.Update(ctx, run)
	if err != nil {
		return p.fail(ctx, run, fmt.Errorf("persist run status: %w", err))
	}
	return updated
}

func (p *Pipeline) finish(ctx context.Context, run core.RunRecord, status core.RunStatus, message string) core.RunRecord {
	if err := run.TransitionTo(status, p.now().UTC()); err != nil {
		return p.fail(ctx, run, err)
	}
	run.ErrorMessage = message
	updated, err := p.runs.Update(ctx, run)
	if err != nil {
		p.logger.Error("final run update failed", "batch_id", run.BatchID, "error", err.Error())
		return run
	}
	return updated
}

func (p *Pipeline) fail(ctx context.Context, run core.RunRecord, cause error) core.RunRecord {
	if transitionErr := run.TransitionTo(core.RunStatusFailed, p.now().UTC()); transitionErr != nil {
		p.logger.Error("failed-state transition rejected",
			"batch_id", run.BatchID,
			"error", transitionErr.Error(),
		)
	}
	if cause != nil {
		run.ErrorMessage = cause.Error()
	}
	updated, err := p.runs.Update(ctx, run)
	if err != nil {
		p.logger.Error("failure update lost", "batch_id", run.BatchID, "error", err.Error())
		return run
	}
	return updated
}

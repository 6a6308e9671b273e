// Package query exposes the read side of the reconciliation service as
// go-command query handlers.
package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-reconcile/core"
)

type UnrecognizedNamesReader interface {
	Unrecognized(ctx context.Context, limit int) ([]core.NormalizationRule, error)
}

type RunStatusQuery struct {
	runs core.RunStore
}

func NewRunStatusQuery(runs core.RunStore) *RunStatusQuery {
	return &RunStatusQuery{runs: runs}
}

func (q *RunStatusQuery) Query(ctx context.Context, msg RunStatusMessage) (core.RunRecord, error) {
	if q == nil || q.runs == nil {
		return core.RunRecord{}, queryDependencyError("query: run store is required")
	}
	if err := msg.Validate(); err != nil {
		return core.RunRecord{}, queryInvalidInputError(err.Error())
	}
	run, err := q.runs.Get(ctx, strings.TrimSpace(msg.BatchID))
	if err != nil {
		return core.RunRecord{}, core.ReconErrorMapper(err)
	}
	return run, nil
}

type RecentRunsQuery struct {
	runs core.RunStore
}

func NewRecentRunsQuery(runs core.RunStore) *RecentRunsQuery {
	return &RecentRunsQuery{runs: runs}
}

func (q *RecentRunsQuery) Query(ctx context.Context, msg RecentRunsMessage) ([]core.RunRecord, error) {
	if q == nil || q.runs == nil {
		return nil, queryDependencyError("query: run store is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, queryInvalidInputError(err.Error())
	}
	limit := msg.Limit
	if limit == 0 {
		limit = 20
	}
	runs, err := q.runs.ListRecent(ctx, strings.TrimSpace(msg.Target), limit)
	if err != nil {
		return nil, core.ReconErrorMapper(err)
	}
	return runs, nil
}

type QualityReportQuery struct {
	assessments core.AssessmentStore
}

func NewQualityReportQuery(assessments core.AssessmentStore) *QualityReportQuery {
	return &QualityReportQuery{assessments: assessments}
}

func (q *QualityReportQuery) Query(ctx context.Context, msg QualityReportMessage) (core.QualityAssessment, error) {
	if q == nil || q.assessments == nil {
		return core.QualityAssessment{}, queryDependencyError("query: assessment store is required")
	}
	if err := msg.Validate(); err != nil {
		return core.QualityAssessment{}, queryInvalidInputError(err.Error())
	}
	assessment, err := q.assessments.GetByBatch(ctx, strings.TrimSpace(msg.BatchID))
	if err != nil {
		return core.QualityAssessment{}, core.ReconErrorMapper(err)
	}
	return assessment, nil
}

type UnrecognizedNamesQuery struct {
	reader UnrecognizedNamesReader
}

func NewUnrecognizedNamesQuery(reader UnrecognizedNamesReader) *UnrecognizedNamesQuery {
	return &UnrecognizedNamesQuery{reader: reader}
}

func (q *UnrecognizedNamesQuery) Query(ctx context.Context, msg UnrecognizedNamesMessage) ([]core.NormalizationRule, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: unrecognized names reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, queryInvalidInputError(err.Error())
	}
	limit := msg.Limit
	if limit == 0 {
		limit = 50
	}
	rules, err := q.reader.Unrecognized(ctx, limit)
	if err != nil {
		return nil, core.ReconErrorMapper(err)
	}
	return rules, nil
}

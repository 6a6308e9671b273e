package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-reconcile/core"
)

var (
	_ gocmd.Querier[RunStatusMessage, core.RunRecord]                 = (*RunStatusQuery)(nil)
	_ gocmd.Querier[RecentRunsMessage, []core.RunRecord]              = (*RecentRunsQuery)(nil)
	_ gocmd.Querier[QualityReportMessage, core.QualityAssessment]     = (*QualityReportQuery)(nil)
	_ gocmd.Querier[UnrecognizedNamesMessage, []core.NormalizationRule] = (*UnrecognizedNamesQuery)(nil)
)

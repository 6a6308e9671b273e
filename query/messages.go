package query

import (
	"fmt"
	"strings"
)

const (
	TypeRunStatus         = "reconcile.query.run_status"
	TypeRecentRuns        = "reconcile.query.recent_runs"
	TypeQualityReport     = "reconcile.query.quality_report"
	TypeUnrecognizedNames = "reconcile.query.unrecognized_names"
)

type RunStatusMessage struct {
	BatchID string
}

func (RunStatusMessage) Type() string { return TypeRunStatus }

func (m RunStatusMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("query: batch id is required")
	}
	return nil
}

type RecentRunsMessage struct {
	Target string
	Limit  int
}

func (RecentRunsMessage) Type() string { return TypeRecentRuns }

func (m RecentRunsMessage) Validate() error {
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must not be negative")
	}
	return nil
}

type QualityReportMessage struct {
	BatchID string
}

func (QualityReportMessage) Type() string { return TypeQualityReport }

func (m QualityReportMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("query: batch id is required")
	}
	return nil
}

type UnrecognizedNamesMessage struct {
	Limit int
}

func (UnrecognizedNamesMessage) Type() string { return TypeUnrecognizedNames }

func (m UnrecognizedNamesMessage) Validate() error {
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must not be negative")
	}
	return nil
}

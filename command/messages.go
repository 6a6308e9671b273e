package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-reconcile/core"
)

const (
	TypeRunSync             = "reconcile.command.run_sync"
	TypeResumeRun           = "reconcile.command.resume_run"
	TypePromoteRule         = "reconcile.command.promote_rule"
	TypeResetCrossReference = "reconcile.command.reset_cross_reference"
)

type RunSyncMessage struct {
	RunType  core.RunType
	Target   string
	Filters  map[string]string
	Metadata map[string]any
}

func (RunSyncMessage) Type() string { return TypeRunSync }

func (m RunSyncMessage) Validate() error {
	if m.RunType != "" {
		if err := m.RunType.Validate(); err != nil {
			return fmt.Errorf("command: %w", err)
		}
	}
	return nil
}

type ResumeRunMessage struct {
	BatchID string
}

func (ResumeRunMessage) Type() string { return TypeResumeRun }

func (m ResumeRunMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("command: batch id is required")
	}
	return nil
}

type PromoteRuleMessage struct {
	OriginalName  string
	SourceType    string
	CanonicalName string
}

func (PromoteRuleMessage) Type() string { return TypePromoteRule }

func (m PromoteRuleMessage) Validate() error {
	if strings.TrimSpace(m.OriginalName) == "" {
		return fmt.Errorf("command: original name is required")
	}
	if strings.TrimSpace(m.CanonicalName) == "" {
		return fmt.Errorf("command: canonical name is required")
	}
	return nil
}

type ResetCrossReferenceMessage struct {
	CanonicalID string
}

func (ResetCrossReferenceMessage) Type() string { return TypeResetCrossReference }

func (m ResetCrossReferenceMessage) Validate() error {
	if strings.TrimSpace(m.CanonicalID) == "" {
		return fmt.Errorf("command: canonical id is required")
	}
	return nil
}

// Package command exposes the mutating trigger surface as go-command
// handlers. Each handler validates its message, delegates to the
// underlying service, and stores the result for the dispatcher.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/pipeline"
)

type RunService interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (core.RunRecord, error)
	Status(ctx context.Context, batchID string) (core.RunRecord, error)
}

type RulePromoter interface {
	Promote(ctx context.Context, originalName string, sourceType string, canonical string) (core.NormalizationRule, error)
}

type RunSyncCommand struct {
	service RunService
}

func NewRunSyncCommand(service RunService) *RunSyncCommand {
	return &RunSyncCommand{service: service}
}

func (c *RunSyncCommand) Execute(ctx context.Context, msg RunSyncMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: run service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandInvalidInputError(err.Error())
	}
	run, err := c.service.Run(ctx, pipeline.RunOptions{
		Type:     msg.RunType,
		Target:   msg.Target,
		Filters:  msg.Filters,
		Metadata: msg.Metadata,
	})
	if err != nil {
		return core.ReconErrorMapper(err)
	}
	storeResult(ctx, run)
	return nil
}

type ResumeRunCommand struct {
	service RunService
}

func NewResumeRunCommand(service RunService) *ResumeRunCommand {
	return &ResumeRunCommand{service: service}
}

// Execute re-runs the target of a finished run. Completed runs are a
// no-op; active runs are rejected so the run lock stays honest.
func (c *ResumeRunCommand) Execute(ctx context.Context, msg ResumeRunMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: run service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandInvalidInputError(err.Error())
	}

	previous, err := c.service.Status(ctx, strings.TrimSpace(msg.BatchID))
	if err != nil {
		return core.ReconErrorMapper(err)
	}
	if previous.Status.Active() {
		return core.ReconErrorMapper(
			fmt.Errorf("%w: %s", core.ErrRunAlreadyActive, previous.Target),
		)
	}
	if previous.Status == core.RunStatusCompleted {
		storeResult(ctx, previous)
		return nil
	}

	run, err := c.service.Run(ctx, pipeline.RunOptions{
		Type:   previous.Type,
		Target: previous.Target,
		Metadata: map[string]any{
			"resumed_from": previous.BatchID,
		},
	})
	if err != nil {
		return core.ReconErrorMapper(err)
	}
	storeResult(ctx, run)
	return nil
}

type PromoteRuleCommand struct {
	promoter RulePromoter
}

func NewPromoteRuleCommand(promoter RulePromoter) *PromoteRuleCommand {
	return &PromoteRuleCommand{promoter: promoter}
}

func (c *PromoteRuleCommand) Execute(ctx context.Context, msg PromoteRuleMessage) error {
	if c == nil || c.promoter == nil {
		return commandDependencyError("command: rule promoter is required")
	}
	if err := msg.Validate(); err != nil {
		return commandInvalidInputError(err.Error())
	}
	rule, err := c.promoter.Promote(ctx, msg.OriginalName, msg.SourceType, msg.CanonicalName)
	if err != nil {
		return core.ReconErrorMapper(err)
	}
	storeResult(ctx, rule)
	return nil
}

type ResetCrossReferenceCommand struct {
	refs core.CrossReferenceStore
	now  func() time.Time
}

func NewResetCrossReferenceCommand(refs core.CrossReferenceStore) *ResetCrossReferenceCommand {
	return &ResetCrossReferenceCommand{refs: refs, now: core.SystemClock}
}

// Execute requeues a failed cross reference for the next retry sweep.
func (c *ResetCrossReferenceCommand) Execute(ctx context.Context, msg ResetCrossReferenceMessage) error {
	if c == nil || c.refs == nil {
		return commandDependencyError("command: cross reference store is required")
	}
	if err := msg.Validate(); err != nil {
		return commandInvalidInputError(err.Error())
	}
	now := c.now
	if now == nil {
		now = core.SystemClock
	}

	ref, err := c.refs.Get(ctx, strings.TrimSpace(msg.CanonicalID))
	if err != nil {
		return core.ReconErrorMapper(err)
	}
	if err := ref.MarkSyncStatus(core.SyncStatusPending, "", now()); err != nil {
		return core.ReconErrorMapper(err)
	}
	updated, err := c.refs.Upsert(ctx, ref)
	if err != nil {
		return core.ReconErrorMapper(err)
	}
	storeResult(ctx, updated)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

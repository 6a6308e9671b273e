package reconcile

import (
	"fmt"

	"github.com/goliatone/go-reconcile/command"
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/query"
)

// CommandQueryService is the surface the dispatch handlers delegate to.
// *Service implements it; tests substitute stubs.
type CommandQueryService interface {
	command.RunService
	command.RulePromoter
	query.UnrecognizedNamesReader
}

type Commands struct {
	RunSync             *command.RunSyncCommand
	ResumeRun           *command.ResumeRunCommand
	PromoteRule         *command.PromoteRuleCommand
	ResetCrossReference *command.ResetCrossReferenceCommand
}

type Queries struct {
	RunStatus         *query.RunStatusQuery
	RecentRuns        *query.RecentRunsQuery
	QualityReport     *query.QualityReportQuery
	UnrecognizedNames *query.UnrecognizedNamesQuery
}

// Facade binds the command and query handlers to one service so hosts
// register them with a dispatcher in a single call.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	stores core.StoreProvider
}

// WithStores overrides the store provider backing the store-reading
// handlers; by default it is resolved from the service itself.
func WithStores(stores core.StoreProvider) FacadeOption {
	return func(options *facadeOptions) {
		options.stores = stores
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("reconcile: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	stores := cfg.stores
	if stores == nil {
		stores = resolveStoreProvider(service)
	}
	if stores == nil {
		return nil, fmt.Errorf("reconcile: store provider is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		RunSync:             command.NewRunSyncCommand(service),
		ResumeRun:           command.NewResumeRunCommand(service),
		PromoteRule:         command.NewPromoteRuleCommand(service),
		ResetCrossReference: command.NewResetCrossReferenceCommand(stores.CrossReferenceStore()),
	}
	facade.queries = Queries{
		RunStatus:         query.NewRunStatusQuery(stores.RunStore()),
		RecentRuns:        query.NewRecentRunsQuery(stores.RunStore()),
		QualityReport:     query.NewQualityReportQuery(stores.AssessmentStore()),
		UnrecognizedNames: query.NewUnrecognizedNamesQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveStoreProvider(service CommandQueryService) core.StoreProvider {
	if service == nil {
		return nil
	}
	if provider, ok := service.(core.StoreProvider); ok {
		return provider
	}
	holder, ok := service.(interface{ Stores() core.StoreProvider })
	if !ok {
		return nil
	}
	return holder.Stores()
}

var _ CommandQueryService = (*Service)(nil)

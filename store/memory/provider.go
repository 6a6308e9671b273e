package memory

import (
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/names"
	"github.com/goliatone/go-reconcile/ratelimit"
)

// Provider bundles the in-process stores behind core.StoreProvider so
// the facade can run without a database.
type Provider struct {
	rules       *names.MemoryRuleStore
	refs        *CrossReferenceStore
	runs        *RunStore
	assessments *AssessmentStore
	inventory   *InventoryStore
	alerts      *AlertStore
	rateLimits  *ratelimit.MemoryStateStore
}

func NewProvider() *Provider {
	return &Provider{
		rules:       names.NewMemoryRuleStore(),
		refs:        NewCrossReferenceStore(),
		runs:        NewRunStore(),
		assessments: NewAssessmentStore(),
		inventory:   NewInventoryStore(),
		alerts:      NewAlertStore(),
		rateLimits:  ratelimit.NewMemoryStateStore(),
	}
}

func (p *Provider) RuleStore() core.RuleStore {
	if p == nil {
		return nil
	}
	return p.rules
}

func (p *Provider) CrossReferenceStore() core.CrossReferenceStore {
	if p == nil {
		return nil
	}
	return p.refs
}

func (p *Provider) RunStore() core.RunStore {
	if p == nil {
		return nil
	}
	return p.runs
}

func (p *Provider) AssessmentStore() core.AssessmentStore {
	if p == nil {
		return nil
	}
	return p.assessments
}

func (p *Provider) InventoryStore() core.InventoryStore {
	if p == nil {
		return nil
	}
	return p.inventory
}

func (p *Provider) AlertStore() core.AlertStore {
	if p == nil {
		return nil
	}
	return p.alerts
}

func (p *Provider) RateLimitStateStore() ratelimit.StateStore {
	if p == nil {
		return nil
	}
	return p.rateLimits
}

var _ core.StoreProvider = (*Provider)(nil)

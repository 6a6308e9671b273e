package sqlstore

import (
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/ratelimit"
)

var (
	_ core.RuleStore              = (*RuleStore)(nil)
	_ core.RuleStore              = (*CachedRuleStore)(nil)
	_ core.CrossReferenceStore    = (*CrossReferenceStore)(nil)
	_ core.RunStore               = (*RunStore)(nil)
	_ core.AssessmentStore        = (*AssessmentStore)(nil)
	_ core.InventoryStore         = (*InventoryStore)(nil)
	_ core.AlertStore             = (*AlertStore)(nil)
	_ ratelimit.StateStore        = (*RateLimitStateStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)

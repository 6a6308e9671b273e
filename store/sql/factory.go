package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/ratelimit"
)

type RepositoryFactory struct {
	db *bun.DB

	ruleStore           *RuleStore
	crossReferenceStore *CrossReferenceStore
	runStore            *RunStore
	assessmentStore     *AssessmentStore
	inventoryStore      *InventoryStore
	alertStore          *AlertStore
	rateLimitStateStore *RateLimitStateStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.ruleStore != nil && f.runStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) RuleStore() core.RuleStore {
	if f == nil {
		return nil
	}
	return f.ruleStore
}

func (f *RepositoryFactory) CrossReferenceStore() core.CrossReferenceStore {
	if f == nil {
		return nil
	}
	return f.crossReferenceStore
}

func (f *RepositoryFactory) RunStore() core.RunStore {
	if f == nil {
		return nil
	}
	return f.runStore
}

func (f *RepositoryFactory) AssessmentStore() core.AssessmentStore {
	if f == nil {
		return nil
	}
	return f.assessmentStore
}

func (f *RepositoryFactory) InventoryStore() core.InventoryStore {
	if f == nil {
		return nil
	}
	return f.inventoryStore
}

func (f *RepositoryFactory) AlertStore() core.AlertStore {
	if f == nil {
		return nil
	}
	return f.alertStore
}

func (f *RepositoryFactory) RateLimitStateStore() ratelimit.StateStore {
	if f == nil || f.rateLimitStateStore == nil {
		return nil
	}
	return f.rateLimitStateStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	ruleStore, err := NewRuleStore(f.db)
	if err != nil {
		return err
	}
	f.ruleStore = ruleStore

	crossReferenceStore, err := NewCrossReferenceStore(f.db)
	if err != nil {
		return err
	}
	f.crossReferenceStore = crossReferenceStore

	runStore, err := NewRunStore(f.db)
	if err != nil {
		return err
	}
	f.runStore = runStore

	assessmentStore, err := NewAssessmentStore(f.db)
	if err != nil {
		return err
	}
	f.assessmentStore = assessmentStore

	inventoryStore, err := NewInventoryStore(f.db)
	if err != nil {
		return err
	}
	f.inventoryStore = inventoryStore

	alertStore, err := NewAlertStore(f.db)
	if err != nil {
		return err
	}
	f.alertStore = alertStore

	rateLimitStateStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.rateLimitStateStore = rateLimitStateStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

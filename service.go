// Package reconcile assembles the inventory reconciliation pipeline:
// marketplace extraction, name normalization, quality gating, and the
// health monitor, behind one service facade.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/health"
	"github.com/goliatone/go-reconcile/marketplace"
	"github.com/goliatone/go-reconcile/names"
	"github.com/goliatone/go-reconcile/pipeline"
	"github.com/goliatone/go-reconcile/quality"
	"github.com/goliatone/go-reconcile/ratelimit"
	"github.com/goliatone/go-reconcile/resolve"
	"github.com/goliatone/go-reconcile/store/memory"
)

type Config = core.Config

type PipelineConfig = core.PipelineConfig

type ResolverConfig = core.ResolverConfig

type HealthConfig = core.HealthConfig

type RateLimitConfig = core.RateLimitConfig

type MarketplaceConfig = marketplace.Config

type StoreProvider = core.StoreProvider

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Service owns the wired pipeline components. One Service serves many
// runs; construction resolves configuration through the layered
// defaults/file/runtime stack before anything touches a store.
type Service struct {
	config         core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	stores         core.StoreProvider
	client         core.MarketplaceClient
	gate           marketplace.Gate
	normalizer     *names.Normalizer
	validator      *quality.Validator
	resolver       *resolve.Resolver
	pipeline       *pipeline.Pipeline
	monitor        *health.Monitor
	notifier       core.Notifier
	clock          core.Clock
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("reconcile", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("reconcile"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}
	metrics := builder.metricsRecorder
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	notifier := builder.notifier
	if notifier == nil {
		notifier = core.NopNotifier{}
	}
	clock := builder.clock
	if clock == nil {
		clock = core.SystemClock
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, core.ReconErrorMapper(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, core.ReconErrorMapper(err)
	}

	stores := builder.stores
	if stores == nil && builder.repositoryFactory != nil {
		if factory, ok := builder.repositoryFactory.(core.RepositoryStoreFactory); ok {
			built, buildErr := factory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, core.ReconErrorMapper(buildErr)
			}
			stores = built
		} else if storeProvider, ok := builder.repositoryFactory.(core.StoreProvider); ok {
			stores = storeProvider
		}
	}
	if stores == nil {
		stores = memory.NewProvider()
	}

	client := builder.client
	gate := builder.gate
	if client == nil {
		mcfg := builder.marketplaceConfig
		if strings.TrimSpace(mcfg.BaseURL) == "" {
			return nil, fmt.Errorf("reconcile: marketplace client or base url is required")
		}
		if mcfg.Gate == nil {
			if gate == nil {
				gate = ratelimit.NewLimiter(ratelimit.LimiterConfig{
					ProviderID:        mcfg.SourceTag,
					RequestsPerWindow: finalConfig.RateLimit.RequestsPerWindow,
					Window:            finalConfig.RateLimit.Window,
					Now:               clock,
				})
			}
			mcfg.Gate = gate
		} else {
			gate = mcfg.Gate
		}
		if mcfg.Throttle == nil {
			policy := ratelimit.NewAdaptivePolicy(resolveThrottleStateStore(stores))
			policy.Now = clock
			mcfg.Throttle = policy
		}
		if mcfg.RequestTimeout <= 0 {
			mcfg.RequestTimeout = finalConfig.Pipeline.RequestTimeout
		}
		if mcfg.Logger == nil {
			mcfg.Logger = logger
		}
		if mcfg.Now == nil {
			mcfg.Now = clock
		}
		built, buildErr := marketplace.NewClient(mcfg)
		if buildErr != nil {
			return nil, core.ReconErrorMapper(buildErr)
		}
		client = built
	}

	normalizer, err := names.NewNormalizer(names.Config{
		Rules:  stores.RuleStore(),
		Logger: logger,
		Now:    clock,
	})
	if err != nil {
		return nil, core.ReconErrorMapper(err)
	}

	validator := quality.NewValidator(quality.ValidatorConfig{
		AuthoritativeSource: builder.marketplaceConfig.SourceTag,
		MinQualityScore:     finalConfig.Pipeline.MinQualityScore,
		Now:                 clock,
	})

	resolver, err := resolve.NewResolver(resolve.Config{
		Client:         client,
		Refs:           stores.CrossReferenceStore(),
		CacheTTL:       finalConfig.Resolver.CacheTTL,
		CacheSize:      finalConfig.Resolver.CacheSize,
		MaxRetries:     finalConfig.Resolver.MaxRetries,
		InitialBackoff: finalConfig.Resolver.InitialBackoff,
		Breaker: resolve.NewBreaker(resolve.BreakerConfig{
			FailureThreshold: finalConfig.Resolver.BreakerFailures,
			Window:           finalConfig.Resolver.BreakerWindow,
			Cooldown:         finalConfig.Resolver.BreakerCooldown,
			Now:              clock,
		}),
		Logger: logger,
		Now:    clock,
	})
	if err != nil {
		return nil, core.ReconErrorMapper(err)
	}

	pipe, err := pipeline.New(pipeline.Config{
		Target:       finalConfig.Pipeline.Target,
		PageSize:     finalConfig.Pipeline.PageSize,
		SubBatchSize: finalConfig.Pipeline.SubBatchSize,
		Workers:      finalConfig.Pipeline.Workers,
		Client:       client,
		Names:        normalizer,
		Quality:      validator,
		Runs:         stores.RunStore(),
		Assessments:  stores.AssessmentStore(),
		Inventory:    stores.InventoryStore(),
		Logger:       logger,
		Metrics:      metrics,
		Now:          clock,
	})
	if err != nil {
		return nil, core.ReconErrorMapper(err)
	}

	monitor, err := health.NewMonitor(health.Config{
		Runs:                stores.RunStore(),
		Alerts:              stores.AlertStore(),
		Notifier:            notifier,
		MinAPISuccessRate:   finalConfig.Health.MinAPISuccessRate,
		MinQualityScore:     finalConfig.Health.MinQualityScore,
		MaxConsecutiveFails: finalConfig.Health.MaxConsecutiveFails,
		MaxHoursSinceOK:     finalConfig.Health.MaxHoursSinceOK,
		AlertCooldown:       finalConfig.Health.AlertCooldown,
		Logger:              logger,
		Now:                 clock,
	})
	if err != nil {
		return nil, core.ReconErrorMapper(err)
	}

	return &Service{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		metrics:        metrics,
		stores:         stores,
		client:         client,
		gate:           gate,
		normalizer:     normalizer,
		validator:      validator,
		resolver:       resolver,
		pipeline:       pipe,
		monitor:        monitor,
		notifier:       notifier,
		clock:          clock,
	}, nil
}

// resolveThrottleStateStore reuses the store provider's persisted
// throttle state when it exposes one, so learned backoff windows share
// the same backend as everything else.
func resolveThrottleStateStore(stores core.StoreProvider) ratelimit.StateStore {
	type stateStoreProvider interface {
		RateLimitStateStore() ratelimit.StateStore
	}
	if provider, ok := stores.(stateStoreProvider); ok {
		if store := provider.RateLimitStateStore(); store != nil {
			return store
		}
	}
	return ratelimit.NewMemoryStateStore()
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Stores() core.StoreProvider {
	if s == nil {
		return nil
	}
	return s.stores
}

func (s *Service) Client() core.MarketplaceClient {
	if s == nil {
		return nil
	}
	return s.client
}

func (s *Service) Normalizer() *names.Normalizer {
	if s == nil {
		return nil
	}
	return s.normalizer
}

func (s *Service) Resolver() *resolve.Resolver {
	if s == nil {
		return nil
	}
	return s.resolver
}

func (s *Service) Monitor() *health.Monitor {
	if s == nil {
		return nil
	}
	return s.monitor
}

// Run starts a reconciliation run through the pipeline.
func (s *Service) Run(ctx context.Context, opts pipeline.RunOptions) (core.RunRecord, error) {
	if s == nil || s.pipeline == nil {
		return core.RunRecord{}, fmt.Errorf("reconcile: service is not configured")
	}
	return s.pipeline.Run(ctx, opts)
}

func (s *Service) Status(ctx context.Context, batchID string) (core.RunRecord, error) {
	if s == nil || s.pipeline == nil {
		return core.RunRecord{}, fmt.Errorf("reconcile: service is not configured")
	}
	return s.pipeline.Status(ctx, batchID)
}

// Promote records an operator-confirmed manual normalization rule.
func (s *Service) Promote(ctx context.Context, originalName string, sourceType string, canonical string) (core.NormalizationRule, error) {
	if s == nil || s.normalizer == nil {
		return core.NormalizationRule{}, fmt.Errorf("reconcile: service is not configured")
	}
	return s.normalizer.Promote(ctx, originalName, sourceType, canonical)
}

func (s *Service) Unrecognized(ctx context.Context, limit int) ([]core.NormalizationRule, error) {
	if s == nil || s.normalizer == nil {
		return nil, fmt.Errorf("reconcile: service is not configured")
	}
	return s.normalizer.Unrecognized(ctx, limit)
}

// Resolve looks up display metadata for a canonical id through the
// cache, cross reference, and live API chain.
func (s *Service) Resolve(ctx context.Context, canonicalID string) (resolve.Resolution, error) {
	if s == nil || s.resolver == nil {
		return resolve.Resolution{}, fmt.Errorf("reconcile: service is not configured")
	}
	return s.resolver.Resolve(ctx, canonicalID)
}

// CheckHealth evaluates the target's recent runs and raises alerts past
// the configured thresholds.
func (s *Service) CheckHealth(ctx context.Context, target string) (health.Report, []core.Alert, error) {
	if s == nil || s.monitor == nil {
		return health.Report{}, nil, fmt.Errorf("reconcile: service is not configured")
	}
	return s.monitor.Evaluate(ctx, target)
}

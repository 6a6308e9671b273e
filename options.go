package reconcile

import (
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/marketplace"
)

type serviceBuilder struct {
	runtimeConfig     core.Config
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metricsRecorder   core.MetricsRecorder
	configProvider    core.ConfigProvider
	optionsResolver   core.OptionsResolver
	persistenceClient any
	repositoryFactory any
	stores            core.StoreProvider
	client            core.MarketplaceClient
	marketplaceConfig marketplace.Config
	gate              marketplace.Gate
	notifier          core.Notifier
	clock             core.Clock
}

type Option func(*serviceBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithStoreProvider(stores core.StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.stores = stores
	}
}

// WithMarketplaceClient injects a ready client, bypassing the config
// driven constructor. Tests use it to substitute stub transports.
func WithMarketplaceClient(client core.MarketplaceClient) Option {
	return func(b *serviceBuilder) {
		b.client = client
	}
}

// WithMarketplaceConfig supplies the transport settings the service
// builds its own client from when none is injected.
func WithMarketplaceConfig(cfg marketplace.Config) Option {
	return func(b *serviceBuilder) {
		b.marketplaceConfig = cfg
	}
}

func WithRateLimitGate(gate marketplace.Gate) Option {
	return func(b *serviceBuilder) {
		b.gate = gate
	}
}

func WithNotifier(notifier core.Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

func WithClock(clock core.Clock) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime core.Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("reconcile", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: core.NopMetricsRecorder{},
		configProvider:  core.NewCfgxConfigProvider(nil),
		optionsResolver: core.GoOptionsResolver{},
		notifier:        core.NopNotifier{},
	}
}

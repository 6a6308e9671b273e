package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct{}

func (staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded file config, and runtime
// overrides through a go-options layer stack, highest priority last.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	pipeline := map[string]any{}
	putString(pipeline, "target", cfg.Pipeline.Target, includeZero)
	putInt(pipeline, "page_size", cfg.Pipeline.PageSize, includeZero)
	putInt(pipeline, "sub_batch_size", cfg.Pipeline.SubBatchSize, includeZero)
	putInt(pipeline, "workers", cfg.Pipeline.Workers, includeZero)
	putFloat(pipeline, "min_quality_score", cfg.Pipeline.MinQualityScore, includeZero)
	putDuration(pipeline, "request_timeout", cfg.Pipeline.RequestTimeout, includeZero)
	if len(pipeline) > 0 {
		layer["pipeline"] = pipeline
	}

	resolver := map[string]any{}
	putDuration(resolver, "cache_ttl", cfg.Resolver.CacheTTL, includeZero)
	putInt(resolver, "cache_size", cfg.Resolver.CacheSize, includeZero)
	putInt(resolver, "max_retries", cfg.Resolver.MaxRetries, includeZero)
	putDuration(resolver, "initial_backoff", cfg.Resolver.InitialBackoff, includeZero)
	putInt(resolver, "breaker_failures", cfg.Resolver.BreakerFailures, includeZero)
	putDuration(resolver, "breaker_window", cfg.Resolver.BreakerWindow, includeZero)
	putDuration(resolver, "breaker_cooldown", cfg.Resolver.BreakerCooldown, includeZero)
	if len(resolver) > 0 {
		layer["resolver"] = resolver
	}

	health := map[string]any{}
	putFloat(health, "min_api_success_rate", cfg.Health.MinAPISuccessRate, includeZero)
	putFloat(health, "min_quality_score", cfg.Health.MinQualityScore, includeZero)
	putInt(health, "max_consecutive_fails", cfg.Health.MaxConsecutiveFails, includeZero)
	putFloat(health, "max_hours_since_ok", cfg.Health.MaxHoursSinceOK, includeZero)
	putDuration(health, "alert_cooldown", cfg.Health.AlertCooldown, includeZero)
	if len(health) > 0 {
		layer["health"] = health
	}

	rateLimit := map[string]any{}
	putInt(rateLimit, "requests_per_window", cfg.RateLimit.RequestsPerWindow, includeZero)
	putDuration(rateLimit, "window", cfg.RateLimit.Window, includeZero)
	if len(rateLimit) > 0 {
		layer["rate_limit"] = rateLimit
	}

	return layer
}

func putString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}

func putInt(layer map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func putFloat(layer map[string]any, key string, value float64, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func putDuration(layer map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

package core

import (
	"fmt"
	"strings"
	"time"
)

type PipelineConfig struct {
	Target          string        `koanf:"target" mapstructure:"target"`
	PageSize        int           `koanf:"page_size" mapstructure:"page_size"`
	SubBatchSize    int           `koanf:"sub_batch_size" mapstructure:"sub_batch_size"`
	Workers         int           `koanf:"workers" mapstructure:"workers"`
	MinQualityScore float64       `koanf:"min_quality_score" mapstructure:"min_quality_score"`
	RequestTimeout  time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
}

type ResolverConfig struct {
	CacheTTL        time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
	CacheSize       int           `koanf:"cache_size" mapstructure:"cache_size"`
	MaxRetries      int           `koanf:"max_retries" mapstructure:"max_retries"`
	InitialBackoff  time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	BreakerFailures int           `koanf:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerWindow   time.Duration `koanf:"breaker_window" mapstructure:"breaker_window"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

type HealthConfig struct {
	MinAPISuccessRate   float64       `koanf:"min_api_success_rate" mapstructure:"min_api_success_rate"`
	MinQualityScore     float64       `koanf:"min_quality_score" mapstructure:"min_quality_score"`
	MaxConsecutiveFails int           `koanf:"max_consecutive_fails" mapstructure:"max_consecutive_fails"`
	MaxHoursSinceOK     float64       `koanf:"max_hours_since_ok" mapstructure:"max_hours_since_ok"`
	AlertCooldown       time.Duration `koanf:"alert_cooldown" mapstructure:"alert_cooldown"`
}

type RateLimitConfig struct {
	RequestsPerWindow int           `koanf:"requests_per_window" mapstructure:"requests_per_window"`
	Window            time.Duration `koanf:"window" mapstructure:"window"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Pipeline    PipelineConfig  `koanf:"pipeline" mapstructure:"pipeline"`
	Resolver    ResolverConfig  `koanf:"resolver" mapstructure:"resolver"`
	Health      HealthConfig    `koanf:"health" mapstructure:"health"`
	RateLimit   RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "reconcile",
		Pipeline: PipelineConfig{
			Target:          "default",
			PageSize:        100,
			SubBatchSize:    20,
			Workers:         4,
			MinQualityScore: 80,
			RequestTimeout:  30 * time.Second,
		},
		Resolver: ResolverConfig{
			CacheTTL:        24 * time.Hour,
			CacheSize:       4096,
			MaxRetries:      3,
			InitialBackoff:  time.Second,
			BreakerFailures: 5,
			BreakerWindow:   time.Minute,
			BreakerCooldown: 30 * time.Second,
		},
		Health: HealthConfig{
			MinAPISuccessRate:   95,
			MinQualityScore:     90,
			MaxConsecutiveFails: 3,
			MaxHoursSinceOK:     4,
			AlertCooldown:       time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 30,
			Window:            time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Pipeline.PageSize <= 0 {
		return fmt.Errorf("core: pipeline.page_size must be positive")
	}
	if c.Pipeline.SubBatchSize <= 0 || c.Pipeline.SubBatchSize > 1000 {
		return fmt.Errorf("core: pipeline.sub_batch_size must be in (0, 1000]")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("core: pipeline.workers must be positive")
	}
	if c.Pipeline.MinQualityScore < 0 || c.Pipeline.MinQualityScore > 100 {
		return fmt.Errorf("core: pipeline.min_quality_score must be in [0, 100]")
	}
	if c.Resolver.MaxRetries < 0 {
		return fmt.Errorf("core: resolver.max_retries must not be negative")
	}
	if c.Resolver.CacheTTL <= 0 {
		return fmt.Errorf("core: resolver.cache_ttl must be positive")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("core: rate_limit window and budget must be positive")
	}
	return nil
}

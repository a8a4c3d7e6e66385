package cache

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-service-cache/internal/cacheinfra"
	"github.com/rs/zerolog"
)

// Backend selects the storage engine behind a CacheService.
type Backend = cacheinfra.Backend

const (
	// BackendMemory is the default in-process single-flight store with per-entry policies.
	BackendMemory = cacheinfra.BackendMemory
	// BackendSturdyc stores entries in a sturdyc client using one TTL for all entries.
	BackendSturdyc = cacheinfra.BackendSturdyc
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Name               string
	Backend            Backend
	DefaultTTL         time.Duration
	SlidingExpiration  bool
	CleanupInterval    time.Duration
	Capacity           int
	NumShards          int
	EvictionPercentage int

	// sturdyc only
	EarlyRefresh         *EarlyRefreshConfig
	MissingRecordStorage bool
	EvictionInterval     time.Duration
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// Option customises a CacheService at construction time.
type Option = cacheinfra.Option

// WithLogger sets the logger used by the cache service.
func WithLogger(logger zerolog.Logger) Option {
	return cacheinfra.WithLogger(logger)
}

// WithClock replaces time.Now for expiration decisions of the memory backend.
func WithClock(now func() time.Time) Option {
	return cacheinfra.WithClock(now)
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs the cache service selected by cfg.Backend.
func NewCacheService(cfg Config, opts ...Option) (CacheService, error) {
	internal := cfg.toInternal()
	if internal.Backend == "" {
		internal.Backend = BackendMemory
	}

	switch internal.Backend {
	case BackendSturdyc:
		svc, err := cacheinfra.NewSturdycService(internal, opts...)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case BackendMemory:
		store, err := cacheinfra.NewMemoryStore(internal, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, cacheinfra.NewConfigurationError("unknown cache backend", map[string]any{
			"cache":   cfg.Name,
			"backend": string(cfg.Backend),
		})
	}
}

type envConfig struct {
	Name               string        `env:"NAME"`
	Backend            string        `env:"BACKEND"`
	DefaultTTL         time.Duration `env:"DEFAULT_TTL"`
	SlidingExpiration  bool          `env:"SLIDING_EXPIRATION"`
	CleanupInterval    time.Duration `env:"CLEANUP_INTERVAL"`
	Capacity           int           `env:"CAPACITY"`
	NumShards          int           `env:"NUM_SHARDS"`
	EvictionPercentage int           `env:"EVICTION_PERCENTAGE"`
}

// LoadConfigFromEnv starts from DefaultConfig and overrides every field whose
// prefixed environment variable is set, e.g. with prefix "USERS_CACHE_":
//
//	USERS_CACHE_NAME=users
//	USERS_CACHE_DEFAULT_TTL=30s
//	USERS_CACHE_SLIDING_EXPIRATION=true
//
// The result is validated before it is returned.
func LoadConfigFromEnv(prefix string) (Config, error) {
	return loadConfig(env.Options{Prefix: prefix})
}

// LoadConfigFromMap is LoadConfigFromEnv reading from environ instead of the process environment.
func LoadConfigFromMap(prefix string, environ map[string]string) (Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return loadConfig(env.Options{Prefix: prefix, Environment: environ})
}

func loadConfig(opts env.Options) (Config, error) {
	cfg := DefaultConfig()
	raw := envConfig{
		Name:               cfg.Name,
		Backend:            string(cfg.Backend),
		DefaultTTL:         cfg.DefaultTTL,
		SlidingExpiration:  cfg.SlidingExpiration,
		CleanupInterval:    cfg.CleanupInterval,
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		EvictionPercentage: cfg.EvictionPercentage,
	}

	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Config{}, errors.Wrap(err, CategoryConfiguration, "failed to parse cache configuration from environment").
			WithTextCode("INVALID_CACHE_ENV").
			WithMetadata(map[string]any{"prefix": opts.Prefix})
	}

	cfg.Name = raw.Name
	cfg.Backend = Backend(raw.Backend)
	cfg.DefaultTTL = raw.DefaultTTL
	cfg.SlidingExpiration = raw.SlidingExpiration
	cfg.CleanupInterval = raw.CleanupInterval
	cfg.Capacity = raw.Capacity
	cfg.NumShards = raw.NumShards
	cfg.EvictionPercentage = raw.EvictionPercentage

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) toInternal() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	return cacheinfra.Config{
		Name:                 c.Name,
		Backend:              c.Backend,
		DefaultTTL:           c.DefaultTTL,
		SlidingExpiration:    c.SlidingExpiration,
		CleanupInterval:      c.CleanupInterval,
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	return Config{
		Name:                 cfg.Name,
		Backend:              cfg.Backend,
		DefaultTTL:           cfg.DefaultTTL,
		SlidingExpiration:    cfg.SlidingExpiration,
		CleanupInterval:      cfg.CleanupInterval,
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		EvictionPercentage:   cfg.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
}

package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Backend selects the storage engine behind a cache service.
type Backend string

const (
	// BackendMemory is the in-process single-flight store with per-entry policies.
	BackendMemory Backend = "memory"
	// BackendSturdyc delegates storage to a sturdyc client. It applies the
	// configured TTL to every entry and ignores per-entry policies.
	BackendSturdyc Backend = "sturdyc"
)

// Config holds the configuration for a cache service.
type Config struct {
	// Name identifies the cache. Independent caches use distinct names.
	Name string

	// Backend selects the storage engine. Default: memory
	Backend Backend

	// DefaultTTL is applied when a caller does not supply a policy factory.
	// Zero means entries never expire. The sturdyc backend requires a positive TTL.
	DefaultTTL time.Duration

	// SlidingExpiration turns DefaultTTL into a sliding window that restarts on
	// every read.
	SlidingExpiration bool

	// CleanupInterval sets how often expired entries are swept from the memory
	// store. Zero disables the sweeper; expired entries are then dropped lazily
	// on their next lookup.
	CleanupInterval time.Duration

	// Capacity defines the maximum number of entries that the sturdyc backend
	// can store. Must be greater than 0 for that backend.
	Capacity int

	// NumShards determines the number of sturdyc shards.
	// Higher values improve concurrency but increase memory overhead.
	NumShards int

	// EvictionPercentage specifies what percentage of sturdyc entries to evict
	// when it reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh configures sturdyc early refreshes. If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage makes sturdyc remember keys whose fetch returned
	// sturdyc.ErrNotFound.
	MissingRecordStorage bool

	// EvictionInterval sets how often sturdyc checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig configures early refresh behavior.
// Early refresh prevents cache stampedes by refreshing entries
// before they expire when they're frequently accessed.
type EarlyRefreshConfig struct {
	// MinAsyncRefreshTime is the minimum time after which an async refresh can occur
	MinAsyncRefreshTime time.Duration

	// MaxAsyncRefreshTime is the maximum time after which an async refresh can occur
	MaxAsyncRefreshTime time.Duration

	// SyncRefreshTime is when a refresh becomes synchronous instead of async
	SyncRefreshTime time.Duration

	// RetryBaseDelay is the base delay for retry attempts when early refresh fails
	RetryBaseDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Name:               "default",
		Backend:            BackendMemory,
		DefaultTTL:         5 * time.Minute,
		CleanupInterval:    time.Minute,
		Capacity:           10000,
		NumShards:          256,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
// Returns a configuration error carrying one entry per invalid field.
func (c Config) Validate() error {
	sturdy := c.Backend == BackendSturdyc

	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendSturdyc)),
		validation.Field(&c.DefaultTTL,
			validation.Min(time.Duration(0)).Error("must be non-negative"),
			validation.When(sturdy, validation.Required.Error("must be greater than 0 for the sturdyc backend")),
		),
		validation.Field(&c.CleanupInterval, validation.Min(time.Duration(0)).Error("must be non-negative")),
		validation.Field(&c.Capacity, validation.When(sturdy,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0"),
		)),
		validation.Field(&c.NumShards, validation.When(sturdy,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0"),
		)),
		validation.Field(&c.EvictionPercentage, validation.When(sturdy,
			validation.Required.Error("must be between 1 and 100"),
			validation.Min(1).Error("must be between 1 and 100"),
			validation.Max(100).Error("must be between 1 and 100"),
		)),
		validation.Field(&c.EarlyRefresh),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0)).Error("must be non-negative")),
	)
	if err == nil {
		return nil
	}

	verr := errors.FromOzzoValidation(err, "invalid cache configuration")
	verr.Category = CategoryConfiguration
	return verr.WithTextCode("INVALID_CACHE_CONFIG").WithMetadata(map[string]any{"cache": c.Name})
}

// Validate checks the early refresh windows.
func (e EarlyRefreshConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.MinAsyncRefreshTime, validation.Min(time.Duration(0)).Error("must be non-negative")),
		validation.Field(&e.MaxAsyncRefreshTime, validation.Min(time.Duration(0)).Error("must be non-negative")),
		validation.Field(&e.SyncRefreshTime, validation.Min(time.Duration(0)).Error("must be non-negative")),
		validation.Field(&e.RetryBaseDelay, validation.Min(time.Duration(0)).Error("must be non-negative")),
	)
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, DefaultTTL, and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Package cache provides the read-through cache service, expiration policies and
// key serialization used to memoize service calls.
//
// # Overview
//
// This package exports two main interfaces and their default implementations:
//
//   - CacheService: a single-flight read-through cache keyed by string
//   - KeySerializer: builds cache keys from an operation name and its arguments
//
// A CacheService guarantees that concurrent callers asking for the same missing key
// share one execution of the fetch function and all observe its outcome. A fetch
// that fails (or panics) is never cached: the entry is dropped before any caller
// sees the error, so the next call retries.
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	key := cache.DeriveKey("FetchUser", 42) // "FetchUser|42|"
//	user, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) (User, error) {
//		return users.FetchUser(ctx, 42)
//	}, cache.StaticPolicy(cache.ExpiresAfter(time.Minute)))
//
// GetOrFetchAsync returns a *future.Future instead of blocking; callers joining an
// in-flight computation for the same key receive futures resolving to the same
// outcome.
//
// # Expiration
//
// Policies are attached to an entry once, when it is populated:
//
//   - NoExpiration: kept until invalidated
//   - AbsoluteExpiration: expires at a fixed instant
//   - ExpiresAfter: expires a fixed duration after population
//   - SlidingExpiration: expires once unread for the window
//
// A PolicyFactory receives the key, so policies can vary per call shape. A nil
// factory uses Config.DefaultTTL (and Config.SlidingExpiration).
//
// # Backends
//
// The memory backend is the default and honours every policy. The sturdyc
// backend applies Config.DefaultTTL to every entry, evicts by capacity, and
// ignores per-entry policies.
//
// # Key Serialization Strategy
//
// DeriveKey writes the operation name and each argument, each followed by "|".
// Nil arguments are written as "(null)". Arguments implementing fmt.Stringer or
// error use their text; other values are rendered with reflection:
//
//   - Function pointers and channels: %p formatting, stable only within a process
//   - Basic types: direct string representation
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs for deterministic output
//   - Structs: exported fields with name:value pairs
//   - Anything else: JSON
//
// # Key Collisions
//
// An argument whose text contains "|" or equals "(null)" can produce the same key
// as a different argument list. NewLengthPrefixedKeySerializer and
// NewHashedKeySerializer avoid this; KeySerializerFunc plugs in any other scheme.
//
// # Configuration
//
// Config can be built in code, or loaded with LoadConfigFromEnv using prefixed
// variables (NAME, BACKEND, DEFAULT_TTL, SLIDING_EXPIRATION, CLEANUP_INTERVAL,
// CAPACITY, NUM_SHARDS, EVICTION_PERCENTAGE). Invalid settings are reported as
// errors for which IsConfigurationError returns true.
package cache

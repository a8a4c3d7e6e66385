package cache

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-service-cache/future"
	"github.com/goliatone/go-service-cache/internal/cacheinfra"
)

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// FetchFunc is the untyped fetch function stored by a CacheService.
type FetchFunc = cacheinfra.FetchFunc

// CacheService exposes the read-through caching operations used by invokers and adapters.
// It is exported so that other packages can provide alternate cache backends.
//
// Implementations must run fetchFn at most once per live entry no matter how many
// callers ask for the key concurrently, and must not keep an entry whose fetch failed.
type CacheService interface {
	Name() string
	GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc, policy PolicyFactory) (any, error)
	GetOrFetchAsync(ctx context.Context, key string, fetchFn FetchFunc, policy PolicyFactory) *future.Future[any]
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
	Close() error
}

// ErrInvalidResultType is returned when a cached value cannot be converted to the
// type requested by the caller, typically because two operations share a key.
var ErrInvalidResultType = errors.New("cached value has unexpected type", errors.CategoryInternal).
	WithTextCode("INVALID_RESULT_TYPE")

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
// A nil policy uses the service default.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T], policy PolicyFactory) (T, error) {
	var zero T
	if fetchFn == nil {
		return zero, cacheinfra.ErrNilFetchFunc
	}

	result, err := service.GetOrFetch(ctx, key, erase(fetchFn), policy)
	if err != nil {
		return zero, err
	}
	return assertResult[T](key, result)
}

// GetOrFetchAsync returns a future for the cached or in-flight value of key. All
// callers joining the same computation share its outcome.
func GetOrFetchAsync[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T], policy PolicyFactory) *future.Future[T] {
	if fetchFn == nil {
		return future.Failed[T](cacheinfra.ErrNilFetchFunc)
	}

	shared := service.GetOrFetchAsync(ctx, key, erase(fetchFn), policy)
	if shared == nil {
		return future.Failed[T](future.ErrNilFuture)
	}

	return future.Map(shared, func(v any) (T, error) {
		return assertResult[T](key, v)
	})
}

func erase[T any](fetchFn FetchFn[T]) FetchFunc {
	return func(ctx context.Context) (any, error) {
		v, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func assertResult[T any](key string, result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T, want %T", ErrInvalidResultType, key, result, zero)
	}
	return typed, nil
}

// EvictionNotifier is implemented by services that report keys leaving the cache,
// so callers indexing keys elsewhere can drop them. Listeners must not call back
// into the service.
type EvictionNotifier interface {
	OnEvict(fn func(key string))
}

// Stats is a snapshot of cache counters.
type Stats = cacheinfra.Stats

// StatsReporter is implemented by services that keep hit and miss counters, such
// as the memory backend.
type StatsReporter interface {
	Stats() Stats
}

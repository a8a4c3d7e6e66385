package cacheinfra

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-service-cache/future"
	"github.com/rs/zerolog"
	"github.com/viccon/sturdyc"
)

// sturdycService wraps a sturdyc client providing caching behaviour.
//
// sturdyc deduplicates in-flight fetches for the same key and never stores a
// failed fetch, so callers get single-flight and failure eviction from it. It
// applies the configured TTL to every entry; per-entry policies are ignored.
// Eviction listeners hear about deletes and failed fetches only: sturdyc drops
// expired entries without telling anyone.
type sturdycService struct {
	name   string
	client *sturdyc.Client[*sturdycValue]
	logger zerolog.Logger

	evictMu sync.RWMutex
	onEvict []func(key string)
}

// sturdycValue boxes cached values. sturdyc type-asserts every fetch result, and
// a nil interface fails that assertion and masks the fetch error; a typed pointer
// does not.
type sturdycValue struct {
	value any
}

// NewSturdycService creates a new sturdyc cache service adapter.
// It validates the configuration and initializes a sturdyc client with the provided settings.
//
// Capacity, NumShards, DefaultTTL and EvictionPercentage are passed to sturdyc.New();
// other options are applied via ToSturdycOptions().
func NewSturdycService(cfg Config, opts ...Option) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)

	client := sturdyc.New[*sturdycValue](
		cfg.Capacity,
		cfg.NumShards,
		cfg.DefaultTTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &sturdycService{
		name:   cfg.Name,
		client: client,
		logger: o.logger.With().Str("cache", cfg.Name).Str("backend", string(BackendSturdyc)).Logger(),
	}, nil
}

// Name returns the cache name.
func (s *sturdycService) Name() string {
	return s.name
}

// GetOrFetch returns the cached value for key or fetches it through sturdyc.
// The policy factory is not consulted; sturdyc expires entries after its TTL.
func (s *sturdycService) GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc, _ PolicyFactory) (any, error) {
	if fetchFn == nil {
		return nil, ErrNilFetchFunc
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var fetchErr error
	boxed, err := s.client.GetOrFetch(ctx, key, func(ctx context.Context) (boxed *sturdycValue, err error) {
		defer func() {
			if r := recover(); r != nil {
				boxed, err = nil, future.NewPanicError(r)
			}
			fetchErr = err
		}()
		value, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}
		return &sturdycValue{value: value}, nil
	})
	if fetchErr != nil {
		err = fetchErr
		s.notifyEvicted(key)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache computation failed")
		return nil, err
	}
	if boxed == nil {
		return nil, nil
	}
	return boxed.value, nil
}

// GetOrFetchAsync runs GetOrFetch in the background. Concurrent callers for the
// same key still share the one fetch sturdyc keeps in flight.
func (s *sturdycService) GetOrFetchAsync(ctx context.Context, key string, fetchFn FetchFunc, policy PolicyFactory) *future.Future[any] {
	return future.Go(ctx, func(ctx context.Context) (any, error) {
		return s.GetOrFetch(ctx, key, fetchFn, policy)
	})
}

// OnEvict registers fn to receive keys removed through this service or whose
// fetch failed.
func (s *sturdycService) OnEvict(fn func(key string)) {
	if fn == nil {
		return
	}
	s.evictMu.Lock()
	s.onEvict = append(s.onEvict, fn)
	s.evictMu.Unlock()
}

func (s *sturdycService) notifyEvicted(key string) {
	s.evictMu.RLock()
	defer s.evictMu.RUnlock()
	for _, fn := range s.onEvict {
		fn(key)
	}
}

func (s *sturdycService) delete(key string) {
	s.client.Delete(key)
	s.notifyEvicted(key)
}

// Delete removes a single entry from the cache using the provided key.
func (s *sturdycService) Delete(ctx context.Context, key string) error {
	s.delete(key)
	return nil
}

// DeleteByPrefix removes all entries from the cache that have keys starting with the given prefix.
func (s *sturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.delete(key)
		}
	}
	return nil
}

// InvalidateKeys removes multiple entries from the cache using the provided keys.
func (s *sturdycService) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		s.delete(key)
	}
	return nil
}

// Len returns the number of entries held by sturdyc.
func (s *sturdycService) Len() int {
	return s.client.Size()
}

// Close releases nothing; sturdyc has no shutdown hook. It exists so both
// backends satisfy the same service contract.
func (s *sturdycService) Close() error {
	return nil
}

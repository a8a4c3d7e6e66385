package servicecache

import (
	"context"

	"github.com/goliatone/go-service-cache/cache"
	"github.com/goliatone/go-service-cache/future"
	"github.com/rs/zerolog"
)

// Invoker memoizes calls to a service through a cache.CacheService. Every call is
// identified by an operation name plus its arguments; concurrent calls with the
// same identity share one execution, and failed executions are never cached.
type Invoker struct {
	cache      cache.CacheService
	serializer cache.KeySerializer
	policy     cache.PolicyFactory
	registry   *keyRegistry
	logger     zerolog.Logger
}

// InvokerOption customises an Invoker.
type InvokerOption func(*Invoker)

// WithKeySerializer replaces the default key derivation.
func WithKeySerializer(serializer cache.KeySerializer) InvokerOption {
	return func(inv *Invoker) {
		if serializer != nil {
			inv.serializer = serializer
		}
	}
}

// WithPolicy sets the policy factory applied to every entry the invoker populates.
// Without it the cache service default applies.
func WithPolicy(policy cache.PolicyFactory) InvokerOption {
	return func(inv *Invoker) {
		inv.policy = policy
	}
}

// WithLogger sets the invoker logger.
func WithLogger(logger zerolog.Logger) InvokerOption {
	return func(inv *Invoker) {
		inv.logger = logger
	}
}

// NewInvoker returns an Invoker backed by svc. When svc implements
// cache.EvictionNotifier, keys it evicts are dropped from the invoker's operation
// and tag index.
func NewInvoker(svc cache.CacheService, opts ...InvokerOption) (*Invoker, error) {
	if svc == nil {
		return nil, cache.NewConfigurationError("invoker requires a cache service")
	}

	inv := &Invoker{
		cache:      svc,
		serializer: cache.NewDefaultKeySerializer(),
		registry:   newKeyRegistry(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inv)
		}
	}
	if notifier, ok := svc.(cache.EvictionNotifier); ok {
		notifier.OnEvict(inv.registry.forget)
	}
	return inv, nil
}

// WithPolicy returns an Invoker sharing the cache and key registry of inv but
// applying policy to the entries it populates.
func (inv *Invoker) WithPolicy(policy cache.PolicyFactory) *Invoker {
	clone := *inv
	clone.policy = policy
	return &clone
}

// Cache returns the cache service backing the invoker.
func (inv *Invoker) Cache() cache.CacheService {
	return inv.cache
}

// Key returns the cache key of a call.
func (inv *Invoker) Key(op string, args ...any) string {
	return inv.serializer.SerializeKey(op, args...)
}

// trackedCall is the key of a call plus the registry groups it belongs to.
type trackedCall struct {
	key    string
	groups []string
}

// namespacedOp prefixes op with namespace for key derivation.
func namespacedOp(namespace, op string) string {
	if namespace == "" {
		return op
	}
	return namespace + "." + op
}

// track derives the key of a call and registers it under its operation and any
// tags carried by ctx. A non-empty namespace is folded into the key only, so
// InvalidateOperation(op) still reaches calls made under every namespace.
func (inv *Invoker) track(ctx context.Context, namespace, op string, args []any) trackedCall {
	tc := trackedCall{
		key:    inv.Key(namespacedOp(namespace, op), args...),
		groups: []string{operationGroup(op)},
	}
	for _, tag := range cacheTagsFromContext(ctx) {
		tc.groups = append(tc.groups, tagGroup(tag))
	}
	inv.registry.track(tc.key, tc.groups...)
	return tc
}

// populating wraps fetch so the key is registered again once the cache has
// installed the entry it populates; an eviction of the previous entry for the
// same key may have dropped it from the registry in the meantime.
func populating[T any](inv *Invoker, tc trackedCall, fetch cache.FetchFn[T]) cache.FetchFn[T] {
	return func(ctx context.Context) (T, error) {
		inv.registry.track(tc.key, tc.groups...)
		return fetch(ctx)
	}
}

// Invoke returns the memoized result of call for (op, args). call runs only when
// no live entry exists, at most once for all concurrent callers; its error is
// returned to every waiter and the entry is discarded.
func Invoke[T any](ctx context.Context, inv *Invoker, op string, args []any, call func(ctx context.Context) (T, error)) (T, error) {
	tc := inv.track(ctx, "", op, args)
	return cache.GetOrFetch[T](ctx, inv.cache, tc.key, populating[T](inv, tc, call), inv.policy)
}

// InvokeAsync memoizes an operation whose result is produced asynchronously. The
// first caller for a key starts call; every caller arriving while that
// computation is in flight, or after it succeeded, awaits the same outcome. A
// failed outcome is discarded like in Invoke.
func InvokeAsync[T any](ctx context.Context, inv *Invoker, op string, args []any, call func(ctx context.Context) *future.Future[T]) *future.Future[T] {
	tc := inv.track(ctx, "", op, args)
	return cache.GetOrFetchAsync[T](ctx, inv.cache, tc.key, populating[T](inv, tc, func(ctx context.Context) (T, error) {
		f := call(ctx)
		if f == nil {
			var zero T
			return zero, future.ErrNilFuture
		}
		return f.Await(ctx)
	}), inv.policy)
}

// Invalidate removes the entry of a single call.
func (inv *Invoker) Invalidate(ctx context.Context, op string, args ...any) error {
	key := inv.Key(op, args...)
	inv.registry.forget(key)
	return inv.cache.Delete(ctx, key)
}

// InvalidateOperation removes every entry produced for op.
func (inv *Invoker) InvalidateOperation(ctx context.Context, op string) error {
	keys := inv.registry.take(operationGroup(op))
	inv.logger.Debug().Str("operation", op).Int("keys", len(keys)).Msg("invalidating operation")
	if len(keys) == 0 {
		return nil
	}
	return inv.cache.InvalidateKeys(ctx, keys)
}

// InvalidateTags removes every entry produced by calls made under any of tags.
func (inv *Invoker) InvalidateTags(ctx context.Context, tags ...string) error {
	tags = dedupeStrings(append([]string(nil), tags...))
	groups := make([]string, 0, len(tags))
	for _, tag := range tags {
		groups = append(groups, tagGroup(tag))
	}

	keys := inv.registry.take(groups...)
	inv.logger.Debug().Strs("tags", tags).Int("keys", len(keys)).Msg("invalidating tags")
	if len(keys) == 0 {
		return nil
	}
	return inv.cache.InvalidateKeys(ctx, keys)
}

package di

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-service-cache/cache"
	"github.com/goliatone/go-service-cache/servicecache"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// ErrContainerClosed is returned by lookups on a closed Container.
var ErrContainerClosed = errors.New("cache container is closed", errors.CategoryInternal).
	WithTextCode("CONTAINER_CLOSED")

// Container provides dependency injection for cache related components.
// It owns one cache service per name, all built from the same base configuration,
// and shares a key serializer and one Invoker per cache so that invalidation by
// operation or tag sees every key produced for that cache.
type Container struct {
	config        cache.Config
	keySerializer cache.KeySerializer
	logger        zerolog.Logger
	cacheOpts     []cache.Option

	caches   *xsync.MapOf[string, cache.CacheService]
	invokers *xsync.MapOf[string, *servicecache.Invoker]
	closed   atomic.Bool
}

// Option customises a Container.
type Option func(*Container)

// WithLogger sets the logger handed to every cache service and invoker.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(serializer cache.KeySerializer) Option {
	return func(c *Container) {
		if serializer != nil {
			c.keySerializer = serializer
		}
	}
}

// WithCacheOptions passes extra options to every cache service the container builds.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(c *Container) {
		c.cacheOpts = append(c.cacheOpts, opts...)
	}
}

// NewContainer creates a new DI container with the provided cache configuration.
// The cache named by config.Name is built eagerly so configuration errors surface here.
func NewContainer(config cache.Config, opts ...Option) (*Container, error) {
	c := &Container{
		config:        config,
		keySerializer: cache.NewDefaultKeySerializer(),
		logger:        zerolog.Nop(),
		caches:        xsync.NewMapOf[string, cache.CacheService](),
		invokers:      xsync.NewMapOf[string, *servicecache.Invoker](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if _, err := c.Cache(config.Name); err != nil {
		return nil, err
	}
	return c, nil
}

// NewContainerWithDefaults creates a new DI container using default configuration.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(cache.DefaultConfig(), opts...)
}

// CacheService returns the cache named by the container configuration.
func (c *Container) CacheService() cache.CacheService {
	svc, _ := c.caches.Load(c.config.Name)
	return svc
}

// Cache returns the cache service registered under name, building it from the
// container configuration on first use.
func (c *Container) Cache(name string) (cache.CacheService, error) {
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}

	var buildErr error
	svc, _ := c.caches.LoadOrTryCompute(name, func() (cache.CacheService, bool) {
		cfg := c.config
		cfg.Name = name

		svc, err := cache.NewCacheService(cfg, c.serviceOptions()...)
		if err != nil {
			buildErr = err
			return nil, true
		}
		c.logger.Debug().Str("cache", name).Str("backend", string(cfg.Backend)).Msg("cache registered")
		return svc, false
	})
	if buildErr != nil {
		return nil, buildErr
	}
	return svc, nil
}

func (c *Container) serviceOptions() []cache.Option {
	opts := make([]cache.Option, 0, len(c.cacheOpts)+1)
	opts = append(opts, cache.WithLogger(c.logger))
	return append(opts, c.cacheOpts...)
}

// Invoker returns the shared Invoker of the named cache.
func (c *Container) Invoker(name string) (*servicecache.Invoker, error) {
	svc, err := c.Cache(name)
	if err != nil {
		return nil, err
	}

	var buildErr error
	inv, _ := c.invokers.LoadOrTryCompute(name, func() (*servicecache.Invoker, bool) {
		inv, err := servicecache.NewInvoker(svc,
			servicecache.WithKeySerializer(c.keySerializer),
			servicecache.WithLogger(c.logger.With().Str("cache", name).Logger()),
		)
		if err != nil {
			buildErr = err
			return nil, true
		}
		return inv, false
	})
	if buildErr != nil {
		return nil, buildErr
	}
	return inv, nil
}

// KeySerializer returns the key serializer shared by every invoker.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns a copy of the base cache configuration.
func (c *Container) Config() cache.Config {
	return c.config
}

// Names returns the registered cache names in sorted order.
func (c *Container) Names() []string {
	names := make([]string, 0, c.caches.Size())
	c.caches.Range(func(name string, _ cache.CacheService) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Invalidate drops every entry of the named cache produced for op.
func (c *Container) Invalidate(ctx context.Context, name, op string) error {
	inv, err := c.Invoker(name)
	if err != nil {
		return err
	}
	return inv.InvalidateOperation(ctx, op)
}

// Close closes every cache service. Later lookups return ErrContainerClosed.
func (c *Container) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	c.caches.Range(func(name string, svc cache.CacheService) bool {
		if err := svc.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, errors.CategoryInternal, "failed to close cache").
				WithMetadata(map[string]any{"cache": name}))
		}
		return true
	})
	c.caches.Clear()
	c.invokers.Clear()

	return errors.Join(errs...)
}

// NewCachedService exposes every method of interface I implemented by impl through
// the invoker of the named cache.
//
// All services registered on one cache share its invoker. Their keys are
// namespaced by adapter name, which defaults to the interface name; give two
// implementations of the same interface distinct names with servicecache.WithName
// or they will share entries. Container.Invalidate drops an operation across every
// service on the cache.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedService[UserService](container, "users", users)
func NewCachedService[I any](container *Container, name string, impl I, opts ...servicecache.AdapterOption) (*servicecache.Adapter, error) {
	inv, err := container.Invoker(name)
	if err != nil {
		return nil, err
	}
	return servicecache.NewAdapter[I](impl, inv, opts...)
}

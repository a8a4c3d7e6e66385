package cacheinfra

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-service-cache/future"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// FetchFunc computes the value for a cache key on a miss.
type FetchFunc = func(ctx context.Context) (any, error)

// Stats is a point-in-time snapshot of a store's counters.
type Stats struct {
	Name        string
	ID          string
	Entries     int
	Hits        int64
	Misses      int64
	Failures    int64
	Expirations int64
}

// entry pairs a lazily computed cell with its expiration state.
type entry struct {
	cell     *future.Future[any]
	policy   Policy
	deadline atomic.Int64 // unix nanos, 0 never expires
}

func (e *entry) expired(now time.Time) bool {
	d := e.deadline.Load()
	return d != 0 && now.UnixNano() >= d
}

func (e *entry) touch(now time.Time) {
	if e.policy.IsSliding() {
		e.deadline.Store(now.Add(e.policy.window).UnixNano())
	}
}

// Option customises a store at construction time.
type Option func(*storeOptions)

type storeOptions struct {
	logger zerolog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used for population, expiry and failure events.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithClock replaces time.Now, mostly for tests exercising expiration.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) storeOptions {
	o := storeOptions{
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// MemoryStore maps cache keys to lazily computed cells.
//
// Every mutation of the key space goes through xsync's per-bucket Compute, so
// concurrent callers for one key agree on a single cell while unrelated keys never
// contend on a shared lock. A cell whose computation fails is removed before any
// of its waiters observe the failure, so the next call for that key starts over.
type MemoryStore struct {
	name          string
	id            string
	entries       *xsync.MapOf[string, *entry]
	defaultPolicy Policy
	logger        zerolog.Logger
	now           func() time.Time

	hits        *xsync.Counter
	misses      *xsync.Counter
	failures    *xsync.Counter
	expirations *xsync.Counter

	evictMu sync.RWMutex
	onEvict []func(key string)

	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore validates cfg and returns a ready store. When cfg.CleanupInterval
// is positive a janitor goroutine sweeps expired entries until Close is called.
func NewMemoryStore(cfg Config, opts ...Option) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	id := uuid.NewString()

	s := &MemoryStore{
		name:          cfg.Name,
		id:            id,
		entries:       xsync.NewMapOf[string, *entry](),
		defaultPolicy: cfg.DefaultPolicy(),
		logger:        o.logger.With().Str("cache", cfg.Name).Str("cache_id", id).Logger(),
		now:           o.now,
		hits:          xsync.NewCounter(),
		misses:        xsync.NewCounter(),
		failures:      xsync.NewCounter(),
		expirations:   xsync.NewCounter(),
		stop:          make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go s.janitor(cfg.CleanupInterval)
	}

	return s, nil
}

// Name returns the cache name.
func (s *MemoryStore) Name() string {
	return s.name
}

// OnEvict registers fn to receive the key of every entry that leaves the store:
// deletes, expiry sweeps, failed computations and expired entries replaced on
// lookup. fn runs while the key is locked and must not call back into the store.
func (s *MemoryStore) OnEvict(fn func(key string)) {
	if fn == nil {
		return
	}
	s.evictMu.Lock()
	s.onEvict = append(s.onEvict, fn)
	s.evictMu.Unlock()
}

func (s *MemoryStore) notifyEvicted(key string) {
	s.evictMu.RLock()
	defer s.evictMu.RUnlock()
	for _, fn := range s.onEvict {
		fn(key)
	}
}

// GetOrFetch returns the value cached under key, computing it with fetchFn on a
// miss. Concurrent callers for the same key share one execution of fetchFn. The
// first caller to resolve a fresh cell runs fetchFn in the calling goroutine.
func (s *MemoryStore) GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc, policy PolicyFactory) (any, error) {
	if fetchFn == nil {
		return nil, ErrNilFetchFunc
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := s.acquire(key, fetchFn, policy)
	if err != nil {
		return nil, err
	}
	return e.cell.Await(ctx)
}

// GetOrFetchAsync is GetOrFetch for callers that do not want to block: the cell is
// started in the background and the shared future is returned. Every caller
// joining the same in-flight computation receives the same future.
func (s *MemoryStore) GetOrFetchAsync(ctx context.Context, key string, fetchFn FetchFunc, policy PolicyFactory) *future.Future[any] {
	if fetchFn == nil {
		return future.Failed[any](ErrNilFetchFunc)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := s.acquire(key, fetchFn, policy)
	if err != nil {
		return future.Failed[any](err)
	}
	e.cell.Start(ctx)
	return e.cell
}

// acquire returns the live entry for key, installing a new one if the key is
// absent or its entry expired. The policy factory runs outside the map lock, once
// per lookup that finds no live entry.
func (s *MemoryStore) acquire(key string, fetchFn FetchFunc, factory PolicyFactory) (*entry, error) {
	now := s.now()

	if e, ok := s.entries.Load(key); ok && !e.expired(now) {
		s.hits.Inc()
		e.touch(now)
		return e, nil
	}

	policy, err := s.resolvePolicy(factory, key)
	if err != nil {
		return nil, err
	}

	var fresh *entry
	var replaced bool
	e, _ := s.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if loaded && !old.expired(now) {
			return old, false
		}
		if loaded {
			replaced = true
			s.notifyEvicted(key)
		}
		fresh = s.newEntry(key, fetchFn, policy, now)
		return fresh, false
	})

	if e != fresh {
		s.hits.Inc()
		e.touch(now)
		return e, nil
	}

	s.misses.Inc()
	if replaced {
		s.expirations.Inc()
	}
	s.logger.Debug().Str("key", key).Stringer("policy", fresh.policy).Bool("replaced_expired", replaced).Msg("cache entry populated")
	return e, nil
}

// resolvePolicy evaluates factory for key. A panicking factory is reported as a
// panic error and leaves the store untouched.
func (s *MemoryStore) resolvePolicy(factory PolicyFactory, key string) (policy Policy, err error) {
	if factory == nil {
		return s.defaultPolicy, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = future.NewPanicError(r)
			s.logger.Warn().Err(err).Str("key", key).Msg("cache policy factory failed")
		}
	}()
	return factory(key), nil
}

func (s *MemoryStore) newEntry(key string, fetchFn FetchFunc, policy Policy, now time.Time) *entry {
	e := &entry{policy: policy}
	e.deadline.Store(policy.deadlineFrom(now))
	e.cell = future.Lazy(func(ctx context.Context) (value any, err error) {
		defer func() {
			if r := recover(); r != nil {
				value, err = nil, future.NewPanicError(r)
			}
			if err != nil {
				s.evictFailed(key, e, err)
			}
		}()
		return fetchFn(ctx)
	})
	return e
}

// evictFailed removes e from the store if it is still the entry installed under
// key; a newer entry for the same key is left alone.
func (s *MemoryStore) evictFailed(key string, e *entry, cause error) {
	s.removeIf(key, func(old *entry) bool { return old == e })
	s.failures.Inc()
	s.logger.Warn().Err(cause).Str("key", key).Msg("cache computation failed, entry evicted")
}

// removeIf deletes the entry under key when pred holds, notifying eviction
// listeners before the key is unlocked.
func (s *MemoryStore) removeIf(key string, pred func(*entry) bool) bool {
	removed := false
	s.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			return old, true
		}
		if pred(old) {
			removed = true
			s.notifyEvicted(key)
			return old, true
		}
		return old, false
	})
	return removed
}

func anyEntry(*entry) bool { return true }

// Delete removes a single entry. Waiters already resolving it still receive its
// outcome; the next lookup starts a fresh computation.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.removeIf(key, anyEntry)
	return nil
}

// DeleteByPrefix removes all entries whose key starts with prefix.
func (s *MemoryStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	s.entries.Range(func(key string, _ *entry) bool {
		if strings.HasPrefix(key, prefix) {
			s.removeIf(key, anyEntry)
		}
		return true
	})
	return nil
}

// InvalidateKeys removes every listed key.
func (s *MemoryStore) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		s.removeIf(key, anyEntry)
	}
	return nil
}

// DeleteExpired sweeps expired entries and returns how many were removed.
func (s *MemoryStore) DeleteExpired() int {
	now := s.now()
	removed := 0
	s.entries.Range(func(key string, e *entry) bool {
		if !e.expired(now) {
			return true
		}
		if s.removeIf(key, func(old *entry) bool { return old == e && old.expired(now) }) {
			removed++
			s.expirations.Inc()
		}
		return true
	})
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("expired cache entries swept")
	}
	return removed
}

// Len returns the number of entries currently held, expired or not.
func (s *MemoryStore) Len() int {
	return s.entries.Size()
}

// Stats returns a snapshot of the store counters.
func (s *MemoryStore) Stats() Stats {
	return Stats{
		Name:        s.name,
		ID:          s.id,
		Entries:     s.entries.Size(),
		Hits:        s.hits.Value(),
		Misses:      s.misses.Value(),
		Failures:    s.failures.Value(),
		Expirations: s.expirations.Value(),
	}
}

// Close stops the janitor and drops every entry. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.entries.Clear()
	})
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.DeleteExpired()
		case <-s.stop:
			return
		}
	}
}

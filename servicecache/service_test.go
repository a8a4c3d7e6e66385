package servicecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-service-cache/cache"
	"github.com/goliatone/go-service-cache/future"
	"github.com/goliatone/go-service-cache/pkg/testsupport"
)

type User struct {
	ID   int
	Name string
}

// UserService is the service wrapped by the tests below.
type UserService interface {
	FetchUser(ctx context.Context, id int) (User, error)
	ComputeOrThrow(ctx context.Context, n int) (int, error)
	LoadProfile(ctx context.Context, id int) *future.Future[string]
	Search(ctx context.Context, terms ...string) ([]User, error)
	Version() (string, error)
}

var (
	errUserNotFound  = errors.New("user not found")
	errComputeFailed = errors.New("compute failed")
	errProfileFailed = errors.New("profile unavailable")
)

var userNames = map[int]string{
	7:  "Bob",
	42: "Alice",
	99: "Carol",
}

// fakeUserService records every call that reaches it. When gate is set, calls
// block until it is closed.
type fakeUserService struct {
	testsupport.CallRecorder

	gate         chan struct{}
	failProfiles int
	nilProfiles  bool
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{}
}

func (s *fakeUserService) wait() {
	if s.gate != nil {
		<-s.gate
	}
}

func (s *fakeUserService) FetchUser(ctx context.Context, id int) (User, error) {
	s.Record("FetchUser", id)
	s.wait()

	name, ok := userNames[id]
	if !ok {
		return User{}, errUserNotFound
	}
	return User{ID: id, Name: name}, nil
}

// ComputeOrThrow fails on its first execution and doubles n afterwards.
func (s *fakeUserService) ComputeOrThrow(ctx context.Context, n int) (int, error) {
	s.Record("ComputeOrThrow", n)
	s.wait()

	if s.Count("ComputeOrThrow") == 1 {
		return 0, errComputeFailed
	}
	return n * 2, nil
}

func (s *fakeUserService) LoadProfile(ctx context.Context, id int) *future.Future[string] {
	s.Record("LoadProfile", id)
	if s.nilProfiles {
		return nil
	}
	if s.Count("LoadProfile") <= s.failProfiles {
		return future.Failed[string](errProfileFailed)
	}
	return future.Go(ctx, func(ctx context.Context) (string, error) {
		s.wait()
		return fmt.Sprintf("profile:%d", id), nil
	})
}

func (s *fakeUserService) Search(ctx context.Context, terms ...string) ([]User, error) {
	s.Record("Search", terms)

	var out []User
	for id, name := range userNames {
		for _, term := range terms {
			if strings.Contains(strings.ToLower(name), strings.ToLower(term)) {
				out = append(out, User{ID: id, Name: name})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeUserService) Version() (string, error) {
	s.Record("Version")
	return "v1", nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, opts ...cache.Option) cache.CacheService {
	t.Helper()

	cfg := cache.DefaultConfig()
	cfg.Name = "users"
	cfg.DefaultTTL = 0
	cfg.CleanupInterval = 0

	svc, err := cache.NewCacheService(cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create cache service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func newTestInvoker(t *testing.T, opts ...InvokerOption) *Invoker {
	t.Helper()

	inv, err := NewInvoker(newTestCache(t), opts...)
	if err != nil {
		t.Fatalf("failed to create invoker: %v", err)
	}
	return inv
}

func newUserAdapter(t *testing.T, svc UserService) *Adapter {
	t.Helper()

	adapter, err := NewAdapter[UserService](svc, newTestInvoker(t))
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return adapter
}

func cacheStats(t *testing.T, svc cache.CacheService) cache.Stats {
	t.Helper()

	reporter, ok := svc.(cache.StatsReporter)
	if !ok {
		t.Fatalf("cache service %T does not report stats", svc)
	}
	return reporter.Stats()
}

// waitForLookups blocks until n lookups reached the cache.
func waitForLookups(t *testing.T, svc cache.CacheService, n int64) {
	t.Helper()

	testsupport.Eventually(t, 2*time.Second, func() bool {
		s := cacheStats(t, svc)
		return s.Hits+s.Misses >= n
	})
}

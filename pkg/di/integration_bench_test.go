package di

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-service-cache/cache"
	"github.com/goliatone/go-service-cache/servicecache"
)

func BenchmarkKeySerializationPerformance(b *testing.B) {
	serializers := map[string]cache.KeySerializer{
		"default":         cache.NewDefaultKeySerializer(),
		"length_prefixed": cache.NewLengthPrefixedKeySerializer(),
		"hashed":          cache.NewHashedKeySerializer(),
	}

	testCases := []struct {
		name string
		args []any
	}{
		{"simple_args", []any{"test-id", 123, true}},
		{"complex_struct", []any{User{ID: "bench-user", Name: "Benchmark User", Email: "bench@example.com"}}},
		{"slice_args", []any{[]string{"a", "b", "c"}, []int{1, 2, 3, 4, 5}}},
		{"map_args", []any{map[string]any{"key1": "value1", "key2": 42, "key3": true}}},
	}

	for name, serializer := range serializers {
		for _, tc := range testCases {
			b.Run(name+"/"+tc.name, func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					_ = serializer.SerializeKey("GetByID", tc.args...)
				}
			})
		}
	}
}

func newBenchUsers(b *testing.B, n int) (*fakeUserService, *servicecache.Adapter, func()) {
	b.Helper()

	container, err := NewContainerWithDefaults()
	if err != nil {
		b.Fatalf("Failed to create DI container: %v", err)
	}

	svc := newFakeUserService()
	for i := 0; i < n; i++ {
		svc.put(User{ID: fmt.Sprintf("bench-user-%d", i), Name: fmt.Sprintf("Benchmark User %d", i)})
	}

	adapter, err := NewCachedService[UserService](container, "users", svc)
	if err != nil {
		b.Fatalf("Failed to create cached service: %v", err)
	}
	return svc, adapter, func() { container.Close() }
}

// BenchmarkCachedVsBaseService compares cached and direct service calls
func BenchmarkCachedVsBaseService(b *testing.B) {
	svc, users, closeFn := newBenchUsers(b, 1000)
	defer closeFn()

	ctx := context.Background()
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = fmt.Sprintf("bench-user-%d", i)
		users.Call(ctx, "GetByID", ids[i])
	}

	b.Run("base_service_GetByID", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = svc.GetByID(ctx, ids[i%len(ids)])
		}
	})

	b.Run("cached_service_GetByID_cache_hit", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = users.Call(ctx, "GetByID", ids[i%len(ids)])
		}
	})
}

// BenchmarkConcurrentCacheAccess benchmarks performance under concurrent load
func BenchmarkConcurrentCacheAccess(b *testing.B) {
	_, users, closeFn := newBenchUsers(b, 100)
	defer closeFn()

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		users.Call(ctx, "GetByID", fmt.Sprintf("bench-user-%d", i))
	}

	b.Run("concurrent_cache_hits", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				_, _ = users.Call(ctx, "GetByID", fmt.Sprintf("bench-user-%d", i%100))
				i++
			}
		})
	})
}

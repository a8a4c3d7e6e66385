package servicecache

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type cacheTagsContextKey struct{}

// WithCacheTags attaches additional cache tags to the context. Keys produced by
// calls made with this context are registered under every tag, so they can be
// dropped together with Invoker.InvalidateTags.
func WithCacheTags(ctx context.Context, tags ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}

	existing := cacheTagsFromContext(ctx)
	combined := append(existing, tags...)
	combined = dedupeStrings(combined)
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, cacheTagsContextKey{}, combined)
}

func cacheTagsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if tags, ok := ctx.Value(cacheTagsContextKey{}).([]string); ok {
		return append([]string(nil), tags...)
	}
	return nil
}

// dedupeStrings drops empty and repeated values, keeping first-seen order.
func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// keyRegistry tracks the cache keys produced per group (an operation or a tag)
// so groups can be invalidated without scanning the cache.
type keyRegistry struct {
	groups *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
}

func newKeyRegistry() *keyRegistry {
	return &keyRegistry{groups: xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]]()}
}

func operationGroup(op string) string { return "op:" + op }

func tagGroup(tag string) string { return "tag:" + tag }

func (r *keyRegistry) track(key string, groups ...string) {
	for _, g := range groups {
		r.groups.Compute(g, func(keys *xsync.MapOf[string, struct{}], loaded bool) (*xsync.MapOf[string, struct{}], bool) {
			if !loaded {
				keys = xsync.NewMapOf[string, struct{}]()
			}
			keys.Store(key, struct{}{})
			return keys, false
		})
	}
}

// take removes the groups and returns the union of their keys.
func (r *keyRegistry) take(groups ...string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, g := range groups {
		keys, ok := r.groups.LoadAndDelete(g)
		if !ok {
			continue
		}
		keys.Range(func(k string, _ struct{}) bool {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, k)
			}
			return true
		})
	}
	return out
}

// forget removes key from every group and drops groups left empty.
func (r *keyRegistry) forget(key string) {
	r.groups.Range(func(g string, _ *xsync.MapOf[string, struct{}]) bool {
		r.groups.Compute(g, func(keys *xsync.MapOf[string, struct{}], loaded bool) (*xsync.MapOf[string, struct{}], bool) {
			if !loaded {
				return keys, true
			}
			keys.Delete(key)
			return keys, keys.Size() == 0
		})
		return true
	})
}

// size returns the number of distinct keys tracked across all groups.
func (r *keyRegistry) size() int {
	seen := map[string]struct{}{}
	r.groups.Range(func(_ string, keys *xsync.MapOf[string, struct{}]) bool {
		keys.Range(func(k string, _ struct{}) bool {
			seen[k] = struct{}{}
			return true
		})
		return true
	})
	return len(seen)
}

package servicecache

import (
	"context"
	"reflect"
	"sort"
	"testing"
)

func TestWithCacheTags(t *testing.T) {
	ctx := context.Background()

	if got := WithCacheTags(ctx); got != ctx {
		t.Error("expected context without tags to be returned unchanged")
	}
	if got := WithCacheTags(ctx, "", ""); got != ctx {
		t.Error("expected context with only empty tags to be returned unchanged")
	}

	ctx = WithCacheTags(ctx, "users", "tenant:1", "users")
	ctx = WithCacheTags(ctx, "tenant:1", "admins")

	want := []string{"users", "tenant:1", "admins"}
	if got := cacheTagsFromContext(ctx); !reflect.DeepEqual(got, want) {
		t.Errorf("expected tags %v, got %v", want, got)
	}

	var nilCtx context.Context
	if got := cacheTagsFromContext(WithCacheTags(nilCtx, "x")); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("expected nil context to be replaced, got %v", got)
	}
}

func TestCacheTagsFromContext_ReturnsCopy(t *testing.T) {
	ctx := WithCacheTags(context.Background(), "a", "b")

	tags := cacheTagsFromContext(ctx)
	tags[0] = "mutated"

	if got := cacheTagsFromContext(ctx); got[0] != "a" {
		t.Errorf("expected stored tags to be unaffected, got %v", got)
	}
}

func TestDedupeStrings(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"unique", []string{"a", "b"}, []string{"a", "b"}},
		{"duplicates keep first", []string{"b", "a", "b", "a"}, []string{"b", "a"}},
		{"empty values dropped", []string{"", "a", ""}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dedupeStrings(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestKeyRegistry(t *testing.T) {
	r := newKeyRegistry()

	r.track("k1", operationGroup("Get"), tagGroup("users"))
	r.track("k2", operationGroup("Get"))
	r.track("k3", operationGroup("List"), tagGroup("users"))

	t.Run("take unions groups", func(t *testing.T) {
		got := r.take(tagGroup("users"), operationGroup("List"))
		sort.Strings(got)
		if want := []string{"k1", "k3"}; !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
		if again := r.take(tagGroup("users")); len(again) != 0 {
			t.Errorf("expected taken group to be empty, got %v", again)
		}
	})

	t.Run("forget removes key everywhere", func(t *testing.T) {
		r.forget("k1")
		got := r.take(operationGroup("Get"))
		if want := []string{"k2"}; !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		if got := r.take("missing"); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("forget drops emptied groups", func(t *testing.T) {
		r := newKeyRegistry()
		r.track("k1", operationGroup("Get"), tagGroup("user:1"))
		r.track("k2", operationGroup("Get"))

		r.forget("k1")
		if n := r.groups.Size(); n != 1 {
			t.Errorf("expected only the Get group left, got %d groups", n)
		}
		if n := r.size(); n != 1 {
			t.Errorf("expected 1 tracked key, got %d", n)
		}

		r.forget("k2")
		if n := r.groups.Size(); n != 0 {
			t.Errorf("expected no groups left, got %d", n)
		}
	})
}

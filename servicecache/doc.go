// Package servicecache memoizes the operations of arbitrary services.
//
// # Overview
//
// An Invoker routes calls through a cache.CacheService. Every call is identified
// by an operation name and its arguments. While a computation for that identity is
// in flight, further callers join it instead of starting their own; once it
// succeeds its value is served until the entry expires or is invalidated. A failed
// computation is delivered to every caller that joined it and then discarded, so
// the next call starts over.
//
// # Hand-written Wrappers
//
// Invoke and InvokeAsync are the building blocks for drop-in wrappers that keep
// the wrapped interface:
//
//	type cachedUsers struct {
//		next UserService
//		inv  *servicecache.Invoker
//	}
//
//	func (c *cachedUsers) FetchUser(ctx context.Context, id int) (User, error) {
//		return servicecache.Invoke(ctx, c.inv, "FetchUser", []any{id}, func(ctx context.Context) (User, error) {
//			return c.next.FetchUser(ctx, id)
//		})
//	}
//
// # Adapters
//
// NewAdapter exposes every method of an interface through Call and CallAsync
// without a wrapper type. Methods must take an optional leading context.Context
// and return either (T, error) or a future implementing future.Awaitable:
//
//	adapter, err := servicecache.NewAdapter[UserService](users, inv)
//	user, err := adapter.Call(ctx, "FetchUser", 42)
//
// Arguments are checked against the method signature before the cache is
// consulted; mismatches return ErrInvalidArguments and unknown names return
// ErrUnknownOperation. NewDispatcher builds the same dispatch table from explicit
// Bind and BindAsync registrations when reflection is not wanted.
//
// # Asynchronous Operations
//
// Operations returning a future are cached as the future's outcome. All callers
// that arrive while it is pending receive the same shared future. Waiters may
// stop waiting when their context ends; the computation itself keeps running for
// the others.
//
// # Invalidation
//
// Invoker.Invalidate drops a single call, InvalidateOperation drops every entry
// an operation produced and InvalidateTags drops the entries of calls made with a
// context carrying WithCacheTags.
package servicecache

package future

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/goliatone/go-errors"
)

// ErrNilFuture is returned when an asynchronous operation hands back a nil future.
var ErrNilFuture = errors.New("asynchronous operation returned a nil future", errors.CategoryInternal).
	WithTextCode("NIL_FUTURE")

// Awaitable is the untyped view of a Future, used where the result type is only
// known at runtime.
type Awaitable interface {
	AwaitAny(ctx context.Context) (any, error)
	Done() <-chan struct{}
}

// Future holds the outcome of a computation that runs at most once.
//
// A Future created with Lazy does nothing until the first Await or Start. Await on
// an unstarted Future runs the computation in the calling goroutine; every other
// caller blocks until the outcome is recorded and then observes the same value and
// error. The computation receives a context detached from the caller's
// cancellation, so once started it always runs to completion.
type Future[T any] struct {
	fn      func(context.Context) (T, error)
	started atomic.Bool
	done    chan struct{}
	value   T
	err     error
}

// Lazy returns an unstarted Future backed by fn.
func Lazy[T any](fn func(ctx context.Context) (T, error)) *Future[T] {
	return &Future[T]{
		fn:   fn,
		done: make(chan struct{}),
	}
}

// Go returns a Future whose computation is already running in its own goroutine.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := Lazy(fn)
	f.Start(ctx)
	return f
}

// Resolved returns a completed Future holding value.
func Resolved[T any](value T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value}
	f.started.Store(true)
	close(f.done)
	return f
}

// Failed returns a completed Future holding err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	f.started.Store(true)
	close(f.done)
	return f
}

// Start launches the computation in a new goroutine. It reports whether this call
// started it; false means it was already started or completed.
func (f *Future[T]) Start(ctx context.Context) bool {
	if !f.started.CompareAndSwap(false, true) {
		return false
	}
	go f.exec(ctx)
	return true
}

// Await returns the outcome, running the computation inline if nobody started it.
// If ctx ends first Await returns ctx.Err() and the computation keeps running.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if f.started.CompareAndSwap(false, true) {
		f.exec(ctx)
	}

	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitAny implements Awaitable.
func (f *Future[T]) AwaitAny(ctx context.Context) (any, error) {
	v, err := f.Await(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Done is closed once the outcome is recorded.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Peek returns the outcome without blocking. ok is false while pending.
func (f *Future[T]) Peek() (value T, ok bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		return value, false, nil
	}
}

// Failed reports whether the Future completed with an error.
func (f *Future[T]) Failed() bool {
	_, ok, err := f.Peek()
	return ok && err != nil
}

func (f *Future[T]) exec(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	defer close(f.done)
	defer func() {
		if r := recover(); r != nil {
			var zero T
			f.value, f.err = zero, NewPanicError(r)
		}
		f.fn = nil
	}()

	f.value, f.err = f.fn(context.WithoutCancel(ctx))
}

// Map derives a Future that converts the outcome of src with fn. The derived
// Future starts immediately and waits for src, starting src if needed.
func Map[T, U any](src *Future[T], fn func(T) (U, error)) *Future[U] {
	return Go(context.Background(), func(ctx context.Context) (U, error) {
		v, err := src.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}

// NewPanicError converts a recovered panic value into an error.
func NewPanicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return errors.Wrap(err, errors.CategoryInternal, "panic during computation").
			WithTextCode("COMPUTATION_PANIC")
	}
	return errors.New(fmt.Sprintf("panic during computation: %v", recovered), errors.CategoryInternal).
		WithTextCode("COMPUTATION_PANIC")
}

// IsPanicError reports whether err was produced by a recovered panic.
func IsPanicError(err error) bool {
	var e *errors.Error
	return errors.As(err, &e) && e.TextCode == "COMPUTATION_PANIC"
}

package servicecache

import (
	"context"
	"fmt"
	"reflect"

	"github.com/goliatone/go-service-cache/cache"
	"github.com/goliatone/go-service-cache/future"
)

// Handler performs a synchronous operation with already validated arguments.
type Handler func(ctx context.Context, args []any) (any, error)

// AsyncHandler starts an asynchronous operation and returns its pending result.
type AsyncHandler func(ctx context.Context, args []any) future.Awaitable

// Binding registers one operation with NewDispatcher. Exactly one of Handler and
// Async must be set. Params is optional; when present, Call validates arity and
// argument types against it.
type Binding struct {
	Name    string
	Params  []Param
	Handler Handler
	Async   AsyncHandler
}

// Bind is shorthand for a synchronous Binding.
func Bind(name string, handler Handler, params ...Param) Binding {
	return Binding{Name: name, Params: params, Handler: handler}
}

// BindAsync is shorthand for an asynchronous Binding.
func BindAsync(name string, handler AsyncHandler, params ...Param) Binding {
	return Binding{Name: name, Params: params, Async: handler}
}

type boundOperation struct {
	op      Operation
	handler Handler
	async   AsyncHandler
}

// Adapter applies an Invoker to every operation of a service. The dispatch table
// is built once at construction and read-only afterwards, so an Adapter is safe
// for concurrent use.
//
// Cache keys are derived from "<adapter name>.<operation>" and the arguments, so
// adapters with distinct names never share entries even on one invoker. Adapters
// with the same name on the same invoker do.
type Adapter struct {
	name  string
	inv   *Invoker
	ops   map[string]*boundOperation
	order []string
}

// AdapterOption customises NewAdapter.
type AdapterOption func(*adapterOptions)

type adapterOptions struct {
	name string
}

// WithName overrides the adapter name, which otherwise derives from the interface type.
func WithName(name string) AdapterOption {
	return func(o *adapterOptions) {
		o.name = name
	}
}

// NewAdapter builds an Adapter exposing every method of interface I implemented
// by impl. Each method must take an optional leading context.Context and return
// either (T, error) or a future. Any other shape is a configuration error.
func NewAdapter[I any](impl I, inv *Invoker, opts ...AdapterOption) (*Adapter, error) {
	it := reflect.TypeOf((*I)(nil)).Elem()
	if it.Kind() != reflect.Interface {
		return nil, cache.NewConfigurationError("adapter type parameter must be an interface", map[string]any{
			"type": it.String(),
		})
	}

	rv := reflect.ValueOf(impl)
	if !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil()) {
		return nil, cache.NewConfigurationError("adapter requires a non-nil implementation", map[string]any{
			"type": it.String(),
		})
	}

	o := adapterOptions{name: adapterName(it)}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	bindings := make([]Binding, 0, it.NumMethod())
	ops := make([]Operation, 0, it.NumMethod())
	for i := 0; i < it.NumMethod(); i++ {
		m := it.Method(i)
		if !m.IsExported() {
			return nil, cache.NewConfigurationError("adapter cannot expose unexported method", map[string]any{
				"type":   it.String(),
				"method": m.Name,
			})
		}

		op, err := describeMethod(m.Name, m.Type)
		if err != nil {
			return nil, cache.NewConfigurationError(err.Error(), map[string]any{
				"type":   it.String(),
				"method": m.Name,
			})
		}

		method := rv.MethodByName(m.Name)
		b := Binding{Name: op.Name, Params: op.Params}
		if op.Async {
			b.Async = reflectAsyncHandler(op, method)
		} else {
			b.Handler = reflectHandler(op, method)
		}
		bindings = append(bindings, b)
		ops = append(ops, op)
	}

	a, err := newAdapter(o.name, inv, bindings)
	if err != nil {
		return nil, err
	}

	// keep the reflected descriptors, they carry result types and variadic info
	for _, op := range ops {
		a.ops[op.Name].op = op
	}
	return a, nil
}

// NewDispatcher builds an Adapter from manually registered operations.
func NewDispatcher(name string, inv *Invoker, bindings ...Binding) (*Adapter, error) {
	return newAdapter(name, inv, bindings)
}

func newAdapter(name string, inv *Invoker, bindings []Binding) (*Adapter, error) {
	if name == "" {
		return nil, cache.NewConfigurationError("adapter name is required")
	}
	if inv == nil {
		return nil, cache.NewConfigurationError("adapter requires an invoker", map[string]any{"adapter": name})
	}
	if len(bindings) == 0 {
		return nil, cache.NewConfigurationError("adapter has no operations", map[string]any{"adapter": name})
	}

	a := &Adapter{
		name:  name,
		inv:   inv,
		ops:   make(map[string]*boundOperation, len(bindings)),
		order: make([]string, 0, len(bindings)),
	}

	for _, b := range bindings {
		meta := map[string]any{"adapter": name, "operation": b.Name}
		switch {
		case b.Name == "":
			return nil, cache.NewConfigurationError("operation name is required", meta)
		case a.ops[b.Name] != nil:
			return nil, cache.NewConfigurationError("duplicate operation", meta)
		case (b.Handler == nil) == (b.Async == nil):
			return nil, cache.NewConfigurationError("operation needs exactly one of Handler or Async", meta)
		}

		a.ops[b.Name] = &boundOperation{
			op:      Operation{Name: b.Name, Params: b.Params, Async: b.Async != nil},
			handler: b.Handler,
			async:   b.Async,
		}
		a.order = append(a.order, b.Name)
	}

	inv.logger.Debug().Str("adapter", name).Strs("operations", a.order).Msg("cache adapter built")
	return a, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.name
}

// Key returns the cache key of a call to the named operation.
func (a *Adapter) Key(name string, args ...any) string {
	return a.inv.Key(namespacedOp(a.name, name), args...)
}

// Invalidate removes the entry of a single call to the named operation.
func (a *Adapter) Invalidate(ctx context.Context, name string, args ...any) error {
	key := a.Key(name, args...)
	a.inv.registry.forget(key)
	return a.inv.cache.Delete(ctx, key)
}

// Invoker returns the invoker used by the adapter.
func (a *Adapter) Invoker() *Invoker {
	return a.inv
}

// Operations returns the exposed operations in registration order.
func (a *Adapter) Operations() []Operation {
	out := make([]Operation, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.ops[name].op)
	}
	return out
}

// Operation returns the descriptor of a named operation.
func (a *Adapter) Operation(name string) (Operation, bool) {
	b, ok := a.ops[name]
	if !ok {
		return Operation{}, false
	}
	return b.op, true
}

func (a *Adapter) lookup(name string, args []any) (*boundOperation, error) {
	b, ok := a.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, a.name, name)
	}
	if err := b.op.checkArgs(args); err != nil {
		return nil, err
	}
	return b, nil
}

// Call invokes a named operation through the cache and waits for its result.
// Asynchronous operations are awaited.
func (a *Adapter) Call(ctx context.Context, name string, args ...any) (any, error) {
	b, err := a.lookup(name, args)
	if err != nil {
		return nil, err
	}
	if b.op.Async {
		return a.callAsync(ctx, b, args).Await(ctx)
	}

	tc := a.inv.track(ctx, a.name, name, args)
	return a.inv.cache.GetOrFetch(ctx, tc.key, populating[any](a.inv, tc, func(ctx context.Context) (any, error) {
		return b.handler(ctx, args)
	}), a.inv.policy)
}

// CallAsync invokes a named operation through the cache without blocking.
// Callers joining an in-flight computation share its outcome.
func (a *Adapter) CallAsync(ctx context.Context, name string, args ...any) *future.Future[any] {
	b, err := a.lookup(name, args)
	if err != nil {
		return future.Failed[any](err)
	}
	return a.callAsync(ctx, b, args)
}

func (a *Adapter) callAsync(ctx context.Context, b *boundOperation, args []any) *future.Future[any] {
	tc := a.inv.track(ctx, a.name, b.op.Name, args)

	fetch := func(ctx context.Context) (any, error) {
		return b.handler(ctx, args)
	}
	if b.op.Async {
		fetch = func(ctx context.Context) (any, error) {
			pending := b.async(ctx, args)
			if isNil(pending) {
				return nil, future.ErrNilFuture
			}
			return pending.AwaitAny(ctx)
		}
	}

	shared := a.inv.cache.GetOrFetchAsync(ctx, tc.key, populating[any](a.inv, tc, fetch), a.inv.policy)
	if shared == nil {
		return future.Failed[any](future.ErrNilFuture)
	}
	return shared
}

func reflectHandler(op Operation, method reflect.Value) Handler {
	return func(ctx context.Context, args []any) (any, error) {
		out := method.Call(callArgs(ctx, op, args))
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
}

func reflectAsyncHandler(op Operation, method reflect.Value) AsyncHandler {
	return func(ctx context.Context, args []any) future.Awaitable {
		out := method.Call(callArgs(ctx, op, args))
		if isNilValue(out[0]) {
			return nil
		}
		pending, _ := out[0].Interface().(future.Awaitable)
		return pending
	}
}

func callArgs(ctx context.Context, op Operation, args []any) []reflect.Value {
	in := make([]reflect.Value, 0, len(args)+1)
	if op.HasContext {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	for i, arg := range args {
		t := op.paramFor(i).Type
		if arg == nil {
			in = append(in, reflect.Zero(t))
			continue
		}
		in = append(in, reflect.ValueOf(arg))
	}
	return in
}

func isNil(v future.Awaitable) bool {
	return v == nil || isNilValue(reflect.ValueOf(v))
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return !v.IsValid()
	}
}

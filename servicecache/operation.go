package servicecache

import (
	"context"
	"fmt"
	"reflect"

	"github.com/goliatone/go-service-cache/future"
)

var (
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	awaitableType = reflect.TypeOf((*future.Awaitable)(nil)).Elem()
)

// Param describes one argument of an operation. Type may be nil for manually
// registered operations that accept any value.
type Param struct {
	Name string
	Type reflect.Type
}

// Operation identifies a cacheable operation. It is fixed once the adapter is built.
type Operation struct {
	Name   string
	Params []Param
	// Result is the value type produced by the operation; for asynchronous
	// operations it is the type the future resolves to.
	Result     reflect.Type
	Async      bool
	Variadic   bool
	HasContext bool
}

func (op Operation) String() string {
	kind := "sync"
	if op.Async {
		kind = "async"
	}
	return fmt.Sprintf("%s/%d(%s)", op.Name, len(op.Params), kind)
}

// describeMethod builds the Operation of an interface method. Accepted shapes:
//
//	func([ctx context.Context,] args...) (T, error)
//	func([ctx context.Context,] args...) F   // F implements future.Awaitable
func describeMethod(name string, ft reflect.Type) (Operation, error) {
	op := Operation{Name: name, Params: []Param{}, Variadic: ft.IsVariadic()}

	first := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		op.HasContext = true
		first = 1
	}
	for i := first; i < ft.NumIn(); i++ {
		op.Params = append(op.Params, Param{
			Name: fmt.Sprintf("arg%d", i-first),
			Type: ft.In(i),
		})
	}

	switch {
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		op.Result = ft.Out(0)
	case ft.NumOut() == 1 && ft.Out(0).Implements(awaitableType):
		op.Async = true
		op.Result = awaitResultType(ft.Out(0))
	default:
		return Operation{}, fmt.Errorf("method %s has unsupported shape %s: want (T, error) or a future", name, ft)
	}

	return op, nil
}

// awaitResultType returns the T of an Await(ctx) (T, error) method, or the empty
// interface type when the future only exposes AwaitAny.
func awaitResultType(t reflect.Type) reflect.Type {
	m, ok := t.MethodByName("Await")
	if !ok {
		return reflect.TypeOf((*any)(nil)).Elem()
	}
	if m.Type.NumOut() != 2 {
		return reflect.TypeOf((*any)(nil)).Elem()
	}
	return m.Type.Out(0)
}

// checkArgs reports whether args can be passed to op.
func (op Operation) checkArgs(args []any) error {
	if op.Params == nil && !op.Variadic {
		return nil
	}

	n := len(op.Params)
	switch {
	case op.Variadic && len(args) < n-1:
		return fmt.Errorf("%w: %s expects at least %d arguments, got %d", ErrInvalidArguments, op.Name, n-1, len(args))
	case !op.Variadic && len(args) != n:
		return fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidArguments, op.Name, n, len(args))
	}

	for i, arg := range args {
		param := op.paramFor(i)
		if param.Type == nil {
			continue
		}
		if !assignable(arg, param.Type) {
			return fmt.Errorf("%w: %s argument %s: %T is not assignable to %s", ErrInvalidArguments, op.Name, param.Name, arg, param.Type)
		}
	}
	return nil
}

// paramFor returns the parameter receiving argument i. For variadic operations
// trailing arguments map to the element type of the last parameter.
func (op Operation) paramFor(i int) Param {
	last := len(op.Params) - 1
	if op.Variadic && i >= last {
		p := op.Params[last]
		if p.Type != nil && p.Type.Kind() == reflect.Slice {
			p.Type = p.Type.Elem()
		}
		return p
	}
	return op.Params[i]
}

func assignable(arg any, t reflect.Type) bool {
	if arg == nil {
		return nillable(t)
	}
	return reflect.TypeOf(arg).AssignableTo(t)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

package testsupport

import (
	"sync"
	"testing"
	"time"
)

// Call is a single recorded invocation.
type Call struct {
	Method string
	Args   []any
}

// CallRecorder records method invocations on hand-written fakes. It is safe for
// concurrent use.
type CallRecorder struct {
	mu    sync.Mutex
	calls []Call
}

// Record appends an invocation.
func (r *CallRecorder) Record(method string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of every recorded invocation in order.
func (r *CallRecorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many times method was recorded.
func (r *CallRecorder) Count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset forgets every recorded invocation.
func (r *CallRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Eventually polls cond until it returns true, failing the test after timeout.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLazy_RunsOnceInline(t *testing.T) {
	var calls atomic.Int32
	f := Lazy(func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "value", nil
	})

	if _, ok, _ := f.Peek(); ok {
		t.Fatal("expected lazy future to be pending before first await")
	}

	for i := 0; i < 3; i++ {
		v, err := f.Await(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "value" {
			t.Errorf("expected value, got %q", v)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 execution, got %d", got)
	}
}

func TestFuture_ConcurrentAwaitersShareOutcome(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	boom := errors.New("boom")

	f := Lazy(func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, boom
	})

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.Await(context.Background())
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 execution, got %d", got)
	}
	for i, err := range errs {
		if err != boom {
			t.Errorf("awaiter %d: expected shared error, got %v", i, err)
		}
	}
	if !f.Failed() {
		t.Error("expected future to report failure")
	}
}

func TestFuture_StartRunsInBackground(t *testing.T) {
	f := Lazy(func(ctx context.Context) (int, error) {
		return 42, nil
	})

	if !f.Start(context.Background()) {
		t.Fatal("expected first Start to launch the computation")
	}
	if f.Start(context.Background()) {
		t.Error("expected second Start to be a no-op")
	}

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for background computation")
	}

	v, ok, err := f.Peek()
	if !ok || err != nil || v != 42 {
		t.Errorf("unexpected outcome: v=%d ok=%v err=%v", v, ok, err)
	}
}

func TestFuture_AwaitHonoursCallerContext(t *testing.T) {
	release := make(chan struct{})
	f := Go(context.Background(), func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)
	v, err := f.Await(context.Background())
	if err != nil || v != "late" {
		t.Errorf("expected computation to finish after waiter left, got %q, %v", v, err)
	}
}

func TestFuture_ComputationIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := Lazy(func(ctx context.Context) (bool, error) {
		return ctx.Err() == nil, nil
	})

	v, err := f.Await(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Error("expected computation context to be detached from caller cancellation")
	}
}

func TestFuture_PanicBecomesError(t *testing.T) {
	f := Lazy(func(ctx context.Context) (int, error) {
		panic("kaboom")
	})

	_, err := f.Await(context.Background())
	if err == nil {
		t.Fatal("expected error from panicking computation")
	}
	if !IsPanicError(err) {
		t.Errorf("expected panic error, got %v", err)
	}
}

func TestResolvedAndFailed(t *testing.T) {
	v, err := Resolved("ok").Await(context.Background())
	if err != nil || v != "ok" {
		t.Errorf("Resolved: got %q, %v", v, err)
	}

	boom := errors.New("boom")
	if _, err := Failed[int](boom).Await(context.Background()); err != boom {
		t.Errorf("Failed: expected %v, got %v", boom, err)
	}
}

func TestMap(t *testing.T) {
	src := Lazy(func(ctx context.Context) (int, error) {
		return 21, nil
	})

	doubled := Map(src, func(v int) (int, error) {
		return v * 2, nil
	})

	v, err := doubled.Await(context.Background())
	if err != nil || v != 42 {
		t.Errorf("expected 42, got %d, %v", v, err)
	}

	boom := errors.New("boom")
	failed := Map(Failed[int](boom), func(v int) (string, error) {
		t.Error("mapper must not run for failed source")
		return "", nil
	})
	if _, err := failed.Await(context.Background()); err != boom {
		t.Errorf("expected source error, got %v", err)
	}
}

func TestAwaitAny(t *testing.T) {
	var aw Awaitable = Resolved(7)
	v, err := aw.AwaitAny(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(int) != 7 {
		t.Errorf("expected 7, got %v", v)
	}
}

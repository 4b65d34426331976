package inflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	r := New()
	if r == nil {
		t.Fatal("New() returned nil")
	}
	if r.Len() != 0 {
		t.Errorf("New() registry has %d entries, want 0", r.Len())
	}
}

func TestAcquireRelease(t *testing.T) {
	r := New()

	ctx, h, superseded := r.Acquire(context.Background(), "key1")
	if superseded {
		t.Error("First Acquire() should not supersede anything")
	}
	if h.Key() != "key1" {
		t.Errorf("Handle key = %q, want key1", h.Key())
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	r.Release(h)
	if r.Len() != 0 {
		t.Errorf("Len() after Release = %d, want 0", r.Len())
	}
	if ctx.Err() == nil {
		t.Error("Release() should cancel the call context to free resources")
	}
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		t.Error("Released call should not report supersession")
	}
}

func TestAcquireSupersedes(t *testing.T) {
	r := New()

	first, h1, _ := r.Acquire(context.Background(), "key1")
	second, h2, superseded := r.Acquire(context.Background(), "key1")

	if !superseded {
		t.Error("Second Acquire() should report supersession")
	}
	if !errors.Is(context.Cause(first), ErrSuperseded) {
		t.Errorf("First call cause = %v, want ErrSuperseded", context.Cause(first))
	}
	if second.Err() != nil {
		t.Errorf("Second call should be live, got %v", second.Err())
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if h2.ID() <= h1.ID() {
		t.Errorf("Later handle ID %d should exceed earlier %d", h2.ID(), h1.ID())
	}

	// The stale handle must not remove the live one.
	r.Release(h1)
	if r.Len() != 1 {
		t.Errorf("Release of superseded handle removed live entry")
	}
	if second.Err() != nil {
		t.Errorf("Releasing the old handle cancelled the new call: %v", second.Err())
	}

	r.Release(h2)
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestCancel(t *testing.T) {
	r := New()

	ctx, _, _ := r.Acquire(context.Background(), "key1")
	if !r.Cancel("key1") {
		t.Error("Cancel() should report an existing entry")
	}
	if !errors.Is(context.Cause(ctx), ErrCanceled) {
		t.Errorf("Cause = %v, want ErrCanceled", context.Cause(ctx))
	}
	if r.Cancel("key1") {
		t.Error("Second Cancel() should report no entry")
	}
}

func TestCancelAll(t *testing.T) {
	r := New()

	var ctxs []context.Context
	for i := 0; i < 5; i++ {
		ctx, _, _ := r.Acquire(context.Background(), fmt.Sprintf("key%d", i))
		ctxs = append(ctxs, ctx)
	}

	if n := r.CancelAll(); n != 5 {
		t.Errorf("CancelAll() = %d, want 5", n)
	}
	for i, ctx := range ctxs {
		if !errors.Is(context.Cause(ctx), ErrCanceled) {
			t.Errorf("ctx %d cause = %v, want ErrCanceled", i, context.Cause(ctx))
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len() after CancelAll = %d, want 0", r.Len())
	}
}

func TestParentCancellationPropagates(t *testing.T) {
	r := New()
	parent, cancel := context.WithCancel(context.Background())

	ctx, h, _ := r.Acquire(parent, "key1")
	cancel()

	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("Call ctx err = %v, want context.Canceled", ctx.Err())
	}
	r.Release(h)
}

func TestKeysSorted(t *testing.T) {
	r := New()
	for _, k := range []string{"c", "a", "b"} {
		r.Acquire(context.Background(), k)
	}

	keys := r.Keys()
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
	r.CancelAll()
}

func TestConcurrentAcquireSingleOwner(t *testing.T) {
	r := New()

	const callers = 50
	var wg sync.WaitGroup
	ctxs := make([]context.Context, callers)
	handles := make([]*Handle, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctxs[i], handles[i], _ = r.Acquire(context.Background(), "shared")
		}(i)
	}
	wg.Wait()

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want exactly 1 owner", r.Len())
	}

	live := 0
	for _, ctx := range ctxs {
		if ctx.Err() == nil {
			live++
		}
	}
	if live != 1 {
		t.Errorf("%d live call contexts, want exactly 1", live)
	}

	for _, h := range handles {
		r.Release(h)
	}
}

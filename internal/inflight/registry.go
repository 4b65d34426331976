// Package inflight tracks the single pending call per key. A newer call for
// a key cancels the older one instead of joining it.
package inflight

import (
	"context"
	"sort"
	"sync"
)

// Handle identifies one registered call.
type Handle struct {
	key    string
	id     uint64
	cancel context.CancelCauseFunc
}

// Key returns the key the handle was registered under.
func (h *Handle) Key() string {
	return h.key
}

// ID returns the registration sequence number. Later calls have larger IDs.
func (h *Handle) ID() uint64 {
	return h.id
}

// Registry holds at most one live Handle per key.
type Registry struct {
	mu  sync.Mutex
	m   map[string]*Handle
	seq uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		m: make(map[string]*Handle),
	}
}

// Acquire registers a new call for key and returns a context that is
// cancelled when the call is superseded or cancelled. Any call already
// registered under key is cancelled with ErrSuperseded in the same critical
// section, so two callers can never both own a key. superseded reports
// whether such a call existed.
func (r *Registry) Acquire(ctx context.Context, key string) (callCtx context.Context, h *Handle, superseded bool) {
	callCtx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.m[key]; ok {
		prev.cancel(ErrSuperseded)
		superseded = true
	}

	r.seq++
	h = &Handle{key: key, id: r.seq, cancel: cancel}
	r.m[key] = h

	return callCtx, h, superseded
}

// Release removes h once its call has settled. It is a no-op if h has
// already been replaced or cancelled.
func (r *Registry) Release(h *Handle) {
	if h == nil {
		return
	}

	r.mu.Lock()
	if cur, ok := r.m[h.key]; ok && cur == h {
		delete(r.m, h.key)
	}
	r.mu.Unlock()

	h.cancel(nil)
}

// Cancel cancels the call registered under key, if any.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	h, ok := r.m[key]
	if ok {
		delete(r.m, key)
	}
	r.mu.Unlock()

	if ok {
		h.cancel(ErrCanceled)
	}
	return ok
}

// CancelAll cancels every registered call and returns how many there were.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	pending := r.m
	r.m = make(map[string]*Handle)
	r.mu.Unlock()

	for _, h := range pending {
		h.cancel(ErrCanceled)
	}
	return len(pending)
}

// Len returns the number of registered calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Strings(keys)
	return keys
}

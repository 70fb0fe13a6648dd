package job

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/xraph/jobengine/registry"
)

// Handler is one executor registration matched for a job type.
type Handler struct {
	Binding
	Ref registry.Ref
}

// Invoke resolves the executor from res and runs it for j.
func (h Handler) Invoke(ctx context.Context, res registry.Resolver, j any) error {
	ex, err := h.Ref.Resolve(res)
	if err != nil {
		return fmt.Errorf("resolve executor %s: %w", h.ExecutorType, err)
	}
	return Invoke(ctx, ex, j)
}

type entry struct {
	seq int
	h   Handler
}

// Registry maps job types to executor registrations.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	seq    int
	closed map[reflect.Type][]entry
	open   []entry

	// Lookup results per concrete job type, reset on Bind.
	cache map[reflect.Type][]Handler
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		closed: make(map[reflect.Type][]entry),
		cache:  make(map[reflect.Type][]Handler),
	}
}

// Bind records that ref executes the jobs b describes.
func (r *Registry) Bind(b Binding, ref registry.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e := entry{seq: r.seq, h: Handler{Binding: b, Ref: ref}}
	if b.Open {
		r.open = append(r.open, e)
	} else {
		r.closed[b.JobType] = append(r.closed[b.JobType], e)
	}
	clear(r.cache)
}

// Lookup returns every handler for the concrete job type t, closed and open
// merged in registration order.
func (r *Registry) Lookup(t reflect.Type) []Handler {
	r.mu.RLock()
	hs, ok := r.cache[t]
	r.mu.RUnlock()
	if ok {
		return hs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if hs, ok := r.cache[t]; ok {
		return hs
	}
	matched := slices.Clone(r.closed[t])
	for _, e := range r.open {
		if e.h.Matches(t) {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b entry) int { return a.seq - b.seq })

	hs = make([]Handler, len(matched))
	for i, e := range matched {
		hs[i] = e.h
	}
	r.cache[t] = hs
	return hs
}

// JobTypes returns the job types with closed bindings.
func (r *Registry) JobTypes() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]reflect.Type, 0, len(r.closed))
	for t := range r.closed {
		types = append(types, t)
	}
	return types
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.open)
	for _, es := range r.closed {
		n += len(es)
	}
	return n
}

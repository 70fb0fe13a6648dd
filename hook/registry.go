package hook

import (
	"reflect"
	"slices"
	"sync"

	"github.com/xraph/jobengine/registry"
)

// Handler is one hook registration matched for an event.
type Handler struct {
	Binding
	Ref registry.Ref
}

type slot struct {
	kind Kind
	t    reflect.Type
}

type entry struct {
	seq int
	h   Handler
}

// Registry is the single ordered mapping of (kind, type) to hook
// registrations. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	seq    int
	closed map[slot][]entry
	open   map[Kind][]entry

	// Lookup results per (kind, concrete type), reset on Bind.
	cache map[slot][]Handler
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		closed: make(map[slot][]entry),
		open:   make(map[Kind][]entry),
		cache:  make(map[slot][]Handler),
	}
}

// Bind records that ref handles the events b describes. Several bindings of
// one type share the same ref.
func (r *Registry) Bind(b Binding, ref registry.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e := entry{seq: r.seq, h: Handler{Binding: b, Ref: ref}}
	if b.Open {
		r.open[b.Kind] = append(r.open[b.Kind], e)
	} else {
		s := slot{kind: b.Kind, t: b.Target}
		r.closed[s] = append(r.closed[s], e)
	}
	clear(r.cache)
}

// Lookup returns the handlers for kind on concrete type t, closed and open
// merged in registration order.
func (r *Registry) Lookup(kind Kind, t reflect.Type) []Handler {
	s := slot{kind: kind, t: t}
	r.mu.RLock()
	hs, ok := r.cache[s]
	r.mu.RUnlock()
	if ok {
		return hs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if hs, ok := r.cache[s]; ok {
		return hs
	}
	var matched []entry
	for _, e := range r.closed[s] {
		if e.h.acceptsKeyOf(t) {
			matched = append(matched, e)
		}
	}
	for _, e := range r.open[kind] {
		if e.h.Matches(t) {
			matched = append(matched, e)
		}
	}
	slices.SortFunc(matched, func(a, b entry) int { return a.seq - b.seq })

	hs = make([]Handler, len(matched))
	for i, e := range matched {
		hs[i] = e.h
	}
	r.cache[s] = hs
	return hs
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, es := range r.closed {
		n += len(es)
	}
	for _, es := range r.open {
		n += len(es)
	}
	return n
}

package registry

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"

	"github.com/xraph/jobengine"
)

// Lifetime controls how often a registration is constructed.
type Lifetime int

const (
	// Singleton registrations are constructed once per Registry.
	Singleton Lifetime = iota
	// Scoped registrations are constructed once per Scope.
	Scoped
	// Transient registrations are constructed on every resolution.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// Key identifies a capability: a type and an optional name.
type Key struct {
	Type reflect.Type
	Name string
}

// KeyFor returns the Key for T with the given name.
func KeyFor[T any](name string) Key {
	return Key{Type: reflect.TypeFor[T](), Name: name}
}

func (k Key) String() string {
	if k.Name == "" {
		return fmt.Sprint(k.Type)
	}
	return fmt.Sprintf("%v[%s]", k.Type, k.Name)
}

// Factory constructs an instance. The Resolver passed in resolves the
// factory's own dependencies.
type Factory func(r Resolver) (any, error)

// Descriptor describes one registration.
type Descriptor struct {
	Key      Key
	Lifetime Lifetime
	Factory  Factory

	// Borrowed marks instances owned elsewhere. They are cached per
	// lifetime but never closed by the registry or a scope.
	Borrowed bool
}

// Resolver looks up capabilities.
type Resolver interface {
	Resolve(key Key) (any, error)
	ResolveAll(key Key) ([]any, error)
	Has(key Key) bool
}

var errClosed = errors.New("registry: closed")

// entry is one registration plus its singleton cache.
type entry struct {
	desc Descriptor

	mu    sync.Mutex
	built bool
	value any
}

// Ref points at one registration. It stays valid when later registrations
// are added under the same key.
type Ref struct {
	e *entry
}

// Key returns the key the registration was added under.
func (r Ref) Key() Key { return r.e.desc.Key }

// Lifetime returns the registration's lifetime.
func (r Ref) Lifetime() Lifetime { return r.e.desc.Lifetime }

// Resolve constructs or returns the instance for exactly this registration.
// res must be a *Registry, a *Scope, or the Resolver handed to a Factory.
func (r Ref) Resolve(res Resolver) (any, error) {
	ir, ok := res.(instancer)
	if !ok {
		return nil, fmt.Errorf("registry: resolve %s: foreign resolver %T", r.e.desc.Key, res)
	}
	return ir.instance(r.e)
}

// instancer is implemented by every resolver this package hands out.
type instancer interface {
	instance(e *entry) (any, error)
}

// Registry holds registrations and owns singleton instances.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Key][]*entry
	order   []Key
	closers []io.Closer
	closed  bool

	root *Scope
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{entries: make(map[Key][]*entry)}
	r.root = newScope(r)
	return r
}

// Add validates and stores a descriptor.
func (r *Registry) Add(d Descriptor) (Ref, error) {
	if d.Key.Type == nil {
		return Ref{}, jobengine.NewConfigError("register", nil, errors.New("registry: descriptor has no type"))
	}
	if d.Factory == nil {
		return Ref{}, jobengine.NewConfigError("register", d.Key.Type, errors.New("registry: descriptor has no factory"))
	}
	if d.Lifetime < Singleton || d.Lifetime > Transient {
		return Ref{}, jobengine.NewConfigError("register", d.Key.Type, fmt.Errorf("registry: unknown %s", d.Lifetime))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Ref{}, errClosed
	}
	e := &entry{desc: d}
	if _, ok := r.entries[d.Key]; !ok {
		r.order = append(r.order, d.Key)
	}
	r.entries[d.Key] = append(r.entries[d.Key], e)
	return Ref{e: e}, nil
}

// Keys returns every registered key in first-registration order.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Resolve resolves key from the root scope.
func (r *Registry) Resolve(key Key) (any, error) { return r.root.Resolve(key) }

// ResolveAll resolves every registration for key from the root scope.
func (r *Registry) ResolveAll(key Key) ([]any, error) { return r.root.ResolveAll(key) }

// Has reports whether key has at least one registration.
func (r *Registry) Has(key Key) bool {
	return len(r.lookup(key)) > 0
}

func (r *Registry) instance(e *entry) (any, error) { return r.root.instance(e) }

// NewScope creates a scope for Scoped registrations.
func (r *Registry) NewScope() *Scope { return newScope(r) }

// Close closes the root scope, then every constructed singleton that
// implements io.Closer, newest first.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	errs := []error{r.root.Close()}
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i].Close())
	}
	return errors.Join(errs...)
}

func (r *Registry) lookup(key Key) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries[key])
}

func (r *Registry) track(v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	r.mu.Lock()
	r.closers = append(r.closers, c)
	r.mu.Unlock()
}

func (r *Registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Scope caches Scoped instances and owns the closable scoped and transient
// instances it constructed.
type Scope struct {
	reg *Registry

	mu        sync.Mutex
	instances map[*entry]*slot
	closers   []io.Closer
	closed    bool
}

type slot struct {
	mu    sync.Mutex
	built bool
	value any
}

func newScope(r *Registry) *Scope {
	return &Scope{reg: r, instances: make(map[*entry]*slot)}
}

// Resolve returns the most recent registration for key.
func (s *Scope) Resolve(key Key) (any, error) {
	return (&resolution{scope: s}).Resolve(key)
}

// ResolveAll returns every registration for key in registration order.
func (s *Scope) ResolveAll(key Key) ([]any, error) {
	return (&resolution{scope: s}).ResolveAll(key)
}

// Has reports whether key has at least one registration.
func (s *Scope) Has(key Key) bool { return s.reg.Has(key) }

func (s *Scope) instance(e *entry) (any, error) {
	return (&resolution{scope: s}).instance(e)
}

// Close closes the scope's closable instances, newest first.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i].Close())
	}
	return errors.Join(errs...)
}

func (s *Scope) slotFor(e *entry) (*slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	sl, ok := s.instances[e]
	if !ok {
		sl = &slot{}
		s.instances[e] = sl
	}
	return sl, nil
}

func (s *Scope) track(v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	s.mu.Lock()
	s.closers = append(s.closers, c)
	s.mu.Unlock()
}

// resolution carries the chain of registrations being constructed so that
// cycles fail instead of deadlocking.
type resolution struct {
	scope *Scope
	path  []*entry
}

func (res *resolution) Resolve(key Key) (any, error) {
	entries := res.scope.reg.lookup(key)
	if len(entries) == 0 {
		return nil, fmt.Errorf("resolve %s: %w", key, jobengine.ErrNotRegistered)
	}
	return res.instance(entries[len(entries)-1])
}

func (res *resolution) ResolveAll(key Key) ([]any, error) {
	entries := res.scope.reg.lookup(key)
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		v, err := res.instance(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (res *resolution) Has(key Key) bool { return res.scope.reg.Has(key) }

func (res *resolution) instance(e *entry) (any, error) {
	if res.scope.reg.isClosed() {
		return nil, errClosed
	}
	if slices.Contains(res.path, e) {
		return nil, fmt.Errorf("resolve %s: %w", e.desc.Key, jobengine.ErrCircularDependency)
	}
	next := &resolution{scope: res.scope, path: append(slices.Clone(res.path), e)}

	switch e.desc.Lifetime {
	case Singleton:
		// Singletons never capture scoped dependencies.
		next.scope = res.scope.reg.root
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.built {
			return e.value, nil
		}
		v, err := e.desc.Factory(next)
		if err != nil {
			return nil, err
		}
		e.value, e.built = v, true
		if !e.desc.Borrowed {
			res.scope.reg.track(v)
		}
		return v, nil

	case Scoped:
		sl, err := res.scope.slotFor(e)
		if err != nil {
			return nil, err
		}
		sl.mu.Lock()
		defer sl.mu.Unlock()
		if sl.built {
			return sl.value, nil
		}
		v, err := e.desc.Factory(next)
		if err != nil {
			return nil, err
		}
		sl.value, sl.built = v, true
		if !e.desc.Borrowed {
			res.scope.track(v)
		}
		return v, nil

	default:
		v, err := e.desc.Factory(next)
		if err != nil {
			return nil, err
		}
		if !e.desc.Borrowed {
			res.scope.track(v)
		}
		return v, nil
	}
}

package asset

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/registry"
)

type options struct {
	types    []reflect.Type
	lifetime registry.Lifetime
}

// Option configures a Context and its registration.
type Option func(*options)

// WithAssetTypes restricts the context to the given asset types. Without
// it every asset type is managed.
func WithAssetTypes(types ...reflect.Type) Option {
	return func(o *options) { o.types = append(o.types, types...) }
}

// WithContextLifetime sets the registration lifetime used by AddContext.
// The default is registry.Singleton.
func WithContextLifetime(lt registry.Lifetime) Option {
	return func(o *options) { o.lifetime = lt }
}

// Context owns one Set per managed asset type.
type Context struct {
	emitter Emitter
	managed map[reflect.Type]bool

	mu   sync.Mutex
	sets map[reflect.Type]any
}

// NewContext creates a context whose sets fire events through emitter.
// A nil emitter disables hooks.
func NewContext(emitter Emitter, opts ...Option) *Context {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Context{emitter: emitter, sets: make(map[reflect.Type]any)}
	if len(o.types) > 0 {
		c.managed = make(map[reflect.Type]bool, len(o.types))
		for _, t := range o.types {
			c.managed[t] = true
		}
	}
	return c
}

// Manages reports whether the context holds assets of type t.
func (c *Context) Manages(t reflect.Type) bool {
	return c.managed == nil || c.managed[t]
}

// AssetTypes returns the asset types with a constructed set.
func (c *Context) AssetTypes() []reflect.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]reflect.Type, 0, len(c.sets))
	for t := range c.sets {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b reflect.Type) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
		return 0
	})
	return types
}

// SetOf returns the set for asset type A, creating it on first use. It
// fails with jobengine.ErrUnmanagedAsset when c does not manage A.
func SetOf[K comparable, A Asset[K]](c *Context) (*Set[K, A], error) {
	t := reflect.TypeFor[A]()
	if !c.Manages(t) {
		return nil, fmt.Errorf("set of %s: %w", t, jobengine.ErrUnmanagedAsset)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sets[t]; ok {
		set, ok := s.(*Set[K, A])
		if !ok {
			return nil, fmt.Errorf("set of %s: key type does not match existing %T", t, s)
		}
		return set, nil
	}
	set := NewSet[K, A](c.emitter)
	c.sets[t] = set
	return set, nil
}

// MustSetOf is SetOf for asset types the context is known to manage. It
// panics on error.
func MustSetOf[K comparable, A Asset[K]](c *Context) *Set[K, A] {
	s, err := SetOf[K, A](c)
	if err != nil {
		panic(err)
	}
	return s
}

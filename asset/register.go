package asset

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/registry"
)

var (
	contextPtrType = reflect.TypeFor[*Context]()
	contextType    = reflect.TypeFor[Context]()
	emitterKey     = registry.KeyFor[Emitter]("")
)

// ancestor is one context type on the embedding chain.
type ancestor struct {
	// Type is the pointer type the alias is registered under.
	Type reflect.Type

	// index is the field path from the registered struct.
	index []int
}

// Ancestors returns every exported context embedded along the chain from t
// down to *Context, nearest first. It fails with
// jobengine.ErrNotAssetContext unless t is *Context or a pointer to a
// struct whose embedding chain reaches Context.
func Ancestors(t reflect.Type) ([]reflect.Type, error) {
	chain, err := ancestors(t)
	if err != nil {
		return nil, err
	}
	out := make([]reflect.Type, len(chain))
	for i, a := range chain {
		out[i] = a.Type
	}
	return out, nil
}

func ancestors(t reflect.Type) ([]ancestor, error) {
	if t == contextPtrType {
		return nil, nil
	}
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, jobengine.NewConfigError("register context", t,
			fmt.Errorf("%w: want *asset.Context or a pointer to a struct embedding it", jobengine.ErrNotAssetContext))
	}
	path, ok := findBase(t.Elem(), nil, map[reflect.Type]bool{})
	if !ok {
		return nil, jobengine.NewConfigError("register context", t,
			fmt.Errorf("%w: %s does not embed asset.Context", jobengine.ErrNotAssetContext, t.Elem()))
	}

	var out []ancestor
	for i, f := range path {
		// Fields behind an unexported embedding cannot be projected.
		if !f.IsExported() {
			break
		}
		ft := f.Type
		if ft.Kind() != reflect.Pointer {
			ft = reflect.PointerTo(ft)
		}
		index := make([]int, i+1)
		for j := range index {
			index[j] = path[j].Index[0]
		}
		out = append(out, ancestor{Type: ft, index: index})
	}
	return out, nil
}

// findBase returns the embedded field path from st to Context.
func findBase(st reflect.Type, path []reflect.StructField, seen map[reflect.Type]bool) ([]reflect.StructField, bool) {
	if seen[st] {
		return nil, false
	}
	seen[st] = true
	for i := range st.NumField() {
		f := st.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() != reflect.Struct {
			continue
		}
		next := append(append([]reflect.StructField(nil), path...), f)
		if ft == contextType {
			return next, true
		}
		if found, ok := findBase(ft, next, seen); ok {
			return found, true
		}
	}
	return nil, false
}

// AddContext registers the context type T. newFn receives a fresh base
// Context wired to the registry's Emitter, if one is registered, and
// returns the domain context embedding it. Every exported ancestor on the
// embedding chain, including *Context, is registered as an alias of the
// same instance. newFn may be nil when T is *Context.
func AddContext[T any](r *registry.Registry, newFn func(*Context) T, opts ...Option) (registry.Ref, error) {
	t := reflect.TypeFor[T]()
	chain, err := ancestors(t)
	if err != nil {
		return registry.Ref{}, err
	}
	if newFn == nil && t != contextPtrType {
		return registry.Ref{}, jobengine.NewConfigError("register context", t, errors.New("asset: nil constructor"))
	}

	o := options{lifetime: registry.Singleton}
	for _, opt := range opts {
		opt(&o)
	}

	owner, err := r.Add(registry.Descriptor{
		Key:      registry.Key{Type: t},
		Lifetime: o.lifetime,
		Factory: func(res registry.Resolver) (any, error) {
			var emitter Emitter
			if res.Has(emitterKey) {
				v, err := res.Resolve(emitterKey)
				if err != nil {
					return nil, fmt.Errorf("resolve emitter for %s: %w", t, err)
				}
				emitter, _ = v.(Emitter)
			}
			base := NewContext(emitter, opts...)
			if newFn == nil {
				return base, nil
			}
			return newFn(base), nil
		},
	})
	if err != nil {
		return registry.Ref{}, err
	}

	for _, a := range chain {
		index := a.index
		if _, err := registry.Alias(r, registry.Key{Type: a.Type}, owner, func(v any) (any, error) {
			return project(v, index)
		}); err != nil {
			return registry.Ref{}, err
		}
	}
	return owner, nil
}

// project returns a pointer to the embedded field at index of v.
func project(v any, index []int) (any, error) {
	rv := reflect.ValueOf(v)
	for _, i := range index {
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, fmt.Errorf("asset: nil embedded context in %T", v)
			}
			rv = rv.Elem()
		}
		rv = rv.Field(i)
	}
	if rv.Kind() != reflect.Pointer {
		rv = rv.Addr()
	} else if rv.IsNil() {
		return nil, fmt.Errorf("asset: nil embedded context in %T", v)
	}
	return rv.Interface(), nil
}

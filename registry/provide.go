package registry

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/xraph/jobengine"
)

var (
	errorType    = reflect.TypeFor[error]()
	resolverType = reflect.TypeFor[Resolver]()
)

type provideConfig struct {
	lifetime Lifetime
	name     string
	as       reflect.Type
}

// ProvideOption configures Provide and Supply.
type ProvideOption func(*provideConfig)

// WithLifetime sets the registration lifetime. Provide defaults to
// Singleton; Supply always registers a singleton.
func WithLifetime(l Lifetime) ProvideOption {
	return func(c *provideConfig) { c.lifetime = l }
}

// WithName registers under a named key.
func WithName(name string) ProvideOption {
	return func(c *provideConfig) { c.name = name }
}

// As registers under t instead of the constructed type. The constructed
// type must be assignable to t.
func As(t reflect.Type) ProvideOption {
	return func(c *provideConfig) { c.as = t }
}

// ConstructorType reports the type ctor constructs. ctor must be a
// non-variadic function returning T or (T, error).
func ConstructorType(ctor any) (reflect.Type, error) {
	fn := reflect.ValueOf(ctor)
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, fmt.Errorf("registry: constructor must be a function, got %T", ctor)
	}
	ft := fn.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("registry: constructor %s must not be variadic", ft)
	}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("registry: constructor %s must return T or (T, error)", ft)
	}
	return ft.Out(0), nil
}

// Provide registers a constructor. Its parameters are resolved by type when
// the capability is first needed; a Resolver parameter receives the
// resolving scope.
func Provide(r *Registry, ctor any, opts ...ProvideOption) (Ref, error) {
	out, err := ConstructorType(ctor)
	if err != nil {
		return Ref{}, jobengine.NewConfigError("provide", reflect.TypeOf(ctor), err)
	}

	cfg := provideConfig{lifetime: Singleton}
	for _, opt := range opts {
		opt(&cfg)
	}
	key := Key{Type: out, Name: cfg.name}
	if cfg.as != nil {
		if !out.AssignableTo(cfg.as) {
			return Ref{}, jobengine.NewConfigError("provide", out, fmt.Errorf("registry: not assignable to %s", cfg.as))
		}
		key.Type = cfg.as
	}

	fn := reflect.ValueOf(ctor)
	ft := fn.Type()
	factory := func(res Resolver) (any, error) {
		args := make([]reflect.Value, ft.NumIn())
		for i := range args {
			pt := ft.In(i)
			if pt == resolverType {
				args[i] = reflect.ValueOf(res)
				continue
			}
			v, err := res.Resolve(Key{Type: pt})
			if err != nil {
				return nil, fmt.Errorf("construct %s: parameter %d: %w", out, i, err)
			}
			arg, err := valueFor(v, pt)
			if err != nil {
				return nil, fmt.Errorf("construct %s: parameter %d: %w", out, i, err)
			}
			args[i] = arg
		}
		results := fn.Call(args)
		if len(results) == 2 && !results[1].IsNil() {
			return nil, results[1].Interface().(error)
		}
		return results[0].Interface(), nil
	}

	return r.Add(Descriptor{Key: key, Lifetime: cfg.lifetime, Factory: factory})
}

// Supply registers a ready value as a singleton under T. The caller keeps
// ownership: the registry never closes it.
func Supply[T any](r *Registry, v T, opts ...ProvideOption) (Ref, error) {
	cfg := provideConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return r.Add(Descriptor{
		Key:      Key{Type: reflect.TypeFor[T](), Name: cfg.name},
		Lifetime: Singleton,
		Borrowed: true,
		Factory:  func(Resolver) (any, error) { return v, nil },
	})
}

// Alias registers key as resolving through target. project maps the
// target's instance to the alias value; nil means identity. The alias never
// constructs anything of its own, so every alias of a singleton yields the
// same shared instance.
func Alias(r *Registry, key Key, target Ref, project func(any) (any, error)) (Ref, error) {
	if target.e == nil {
		return Ref{}, jobengine.NewConfigError("alias", key.Type, errors.New("registry: alias target is empty"))
	}
	return r.Add(Descriptor{
		Key:      key,
		Lifetime: Transient,
		Borrowed: true,
		Factory: func(res Resolver) (any, error) {
			v, err := target.Resolve(res)
			if err != nil {
				return nil, err
			}
			if project == nil {
				return v, nil
			}
			return project(v)
		},
	})
}

// Inject resolves the unnamed registration for T.
func Inject[T any](res Resolver) (T, error) {
	return InjectNamed[T](res, "")
}

// InjectNamed resolves the registration for T under name.
func InjectNamed[T any](res Resolver, name string) (T, error) {
	var zero T
	v, err := res.Resolve(KeyFor[T](name))
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// InjectAll resolves every unnamed registration for T.
func InjectAll[T any](res Resolver) ([]T, error) {
	vs, err := res.ResolveAll(KeyFor[T](""))
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		t, err := cast[T](v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("registry: resolved %T, want %s", v, reflect.TypeFor[T]())
	}
	return t, nil
}

func valueFor(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("registry: resolved %s, want %s", rv.Type(), t)
	}
	return rv, nil
}

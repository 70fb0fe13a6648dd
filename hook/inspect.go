package hook

import (
	"context"
	"fmt"
	"reflect"

	"github.com/xraph/jobengine"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
	boolType    = reflect.TypeFor[bool]()
	nextType    = reflect.TypeFor[Next]()
)

// Binding describes one hook contract a type satisfies.
type Binding struct {
	Kind Kind

	// HookType is the inspected type.
	HookType reflect.Type

	// Target is the asset type, or the job type for KindJobExecute.
	Target reflect.Type

	// Key is the key parameter type for KindGet and KindDelete, nil for
	// the other kinds.
	Key reflect.Type

	// Open is true when Target is an interface.
	Open bool
}

// Matches reports whether the binding fires for target type t. Get and
// Delete bindings also require t's asset key to be assignable to Key.
func (b Binding) Matches(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if b.Open {
		if t != b.Target && !t.Implements(b.Target) {
			return false
		}
	} else if t != b.Target {
		return false
	}
	return b.acceptsKeyOf(t)
}

// acceptsKeyOf reports whether the key of asset type t can be passed as
// the binding's key parameter. Types without an AssetKey method are not
// checked.
func (b Binding) acceptsKeyOf(t reflect.Type) bool {
	if b.Key == nil {
		return true
	}
	kt, ok := AssetKeyType(t)
	return !ok || kt.AssignableTo(b.Key)
}

// AssetKeyType returns the result type of t's AssetKey method.
func AssetKeyType(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	m, ok := t.MethodByName("AssetKey")
	if !ok {
		return nil, false
	}
	in := 1
	if t.Kind() == reflect.Interface {
		in = 0
	}
	if m.Type.NumIn() != in || m.Type.NumOut() != 1 {
		return nil, false
	}
	return m.Type.Out(0), true
}

// Inspect returns a binding for every hook contract t satisfies, in Kinds
// order. It fails with jobengine.ErrNotHook when t satisfies none, or when
// a closed Get or Delete hook declares a key type its asset never uses.
func Inspect(t reflect.Type) ([]Binding, error) {
	if t == nil {
		return nil, jobengine.NewConfigError("inspect hook", nil, jobengine.ErrNotHook)
	}
	var out []Binding
	for _, k := range Kinds {
		target, key, ok := paramsOf(t, k)
		if !ok {
			continue
		}
		b := Binding{
			Kind:     k,
			HookType: t,
			Target:   target,
			Key:      key,
			Open:     target.Kind() == reflect.Interface,
		}
		if !b.Open && !b.acceptsKeyOf(target) {
			kt, _ := AssetKeyType(target)
			return nil, jobengine.NewConfigError("inspect hook", t,
				fmt.Errorf("%w: %s key parameter %s does not accept %s keys of type %s",
					jobengine.ErrNotHook, k.Method(), key, target, kt))
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, jobengine.NewConfigError("inspect hook", t,
			fmt.Errorf("%w: no OnGet, OnAdd, OnUpsert, OnUpdate, OnDelete or OnJobExecute method", jobengine.ErrNotHook))
	}
	return out, nil
}

// paramsOf checks the method shape for kind k and returns its asset or job
// type parameter and, for Get and Delete, its key parameter.
func paramsOf(t reflect.Type, k Kind) (target, key reflect.Type, ok bool) {
	m, found := t.MethodByName(k.Method())
	if !found {
		return nil, nil, false
	}
	ft := m.Type
	var params []reflect.Type
	first := 0
	if t.Kind() != reflect.Interface {
		first = 1
	}
	for i := first; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i))
	}
	if ft.IsVariadic() || ft.NumOut() != 1 || ft.Out(0) != errorType ||
		len(params) == 0 || params[0] != contextType {
		return nil, nil, false
	}

	switch k {
	case KindGet:
		// ctx, key, asset, found
		if len(params) == 4 && params[3] == boolType {
			return params[2], params[1], true
		}
	case KindAdd, KindUpsert, KindUpdate:
		// ctx, asset
		if len(params) == 2 {
			return params[1], nil, true
		}
	case KindDelete:
		// ctx, key, asset
		if len(params) == 3 {
			return params[2], params[1], true
		}
	case KindJobExecute:
		// ctx, job, next
		if len(params) == 3 && params[2] == nextType {
			return params[1], nil, true
		}
	}
	return nil, nil, false
}

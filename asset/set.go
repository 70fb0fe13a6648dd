package asset

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/hook"
)

// Asset is a value identified by a key of type K.
type Asset[K comparable] interface {
	AssetKey() K
}

// Emitter delivers set events to hooks. args follow the hook method
// parameters after the context.
type Emitter interface {
	Emit(ctx context.Context, kind hook.Kind, assetType reflect.Type, args ...any) error
}

// KeyError reports a failed set operation.
type KeyError struct {
	Op        string
	AssetType reflect.Type
	Key       any
	Err       error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %s %v: %v", e.Op, e.AssetType, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// Set stores assets of type A by key. It is safe for concurrent use.
type Set[K comparable, A Asset[K]] struct {
	typ     reflect.Type
	emitter Emitter

	mu    sync.RWMutex
	items map[K]A
}

// NewSet creates an empty set. A nil emitter disables hooks.
func NewSet[K comparable, A Asset[K]](emitter Emitter) *Set[K, A] {
	return &Set[K, A]{
		typ:     reflect.TypeFor[A](),
		emitter: emitter,
		items:   make(map[K]A),
	}
}

// TryGet looks up key. The Get hooks fire for hits and misses alike; a hook
// error is returned with the lookup result.
func (s *Set[K, A]) TryGet(ctx context.Context, key K) (A, bool, error) {
	s.mu.RLock()
	a, ok := s.items[key]
	s.mu.RUnlock()

	if err := s.emit(ctx, hook.KindGet, key, a, ok); err != nil {
		return a, ok, s.keyErr("get", key, err)
	}
	return a, ok, nil
}

// Add inserts a under its key. It fails with jobengine.ErrAssetExists when
// the key is taken and leaves the existing asset in place.
func (s *Set[K, A]) Add(ctx context.Context, a A) error {
	key := a.AssetKey()
	s.mu.Lock()
	if _, ok := s.items[key]; ok {
		s.mu.Unlock()
		return s.keyErr("add", key, jobengine.ErrAssetExists)
	}
	s.items[key] = a
	s.mu.Unlock()

	if err := s.emit(ctx, hook.KindAdd, a); err != nil {
		return s.keyErr("add", key, err)
	}
	return nil
}

// Upsert inserts a or replaces the asset under its key.
func (s *Set[K, A]) Upsert(ctx context.Context, a A) error {
	key := a.AssetKey()
	s.mu.Lock()
	s.items[key] = a
	s.mu.Unlock()

	if err := s.emit(ctx, hook.KindUpsert, a); err != nil {
		return s.keyErr("upsert", key, err)
	}
	return nil
}

// Update replaces the asset under a's key. It fails with
// jobengine.ErrAssetNotFound when the key is absent and leaves the set
// unchanged.
func (s *Set[K, A]) Update(ctx context.Context, a A) error {
	key := a.AssetKey()
	s.mu.Lock()
	if _, ok := s.items[key]; !ok {
		s.mu.Unlock()
		return s.keyErr("update", key, jobengine.ErrAssetNotFound)
	}
	s.items[key] = a
	s.mu.Unlock()

	if err := s.emit(ctx, hook.KindUpdate, a); err != nil {
		return s.keyErr("update", key, err)
	}
	return nil
}

// Delete removes the asset under key. It fails with
// jobengine.ErrAssetNotFound when the key is absent.
func (s *Set[K, A]) Delete(ctx context.Context, key K) error {
	s.mu.Lock()
	a, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		return s.keyErr("delete", key, jobengine.ErrAssetNotFound)
	}
	delete(s.items, key)
	s.mu.Unlock()

	if err := s.emit(ctx, hook.KindDelete, key, a); err != nil {
		return s.keyErr("delete", key, err)
	}
	return nil
}

// Len returns the number of assets.
func (s *Set[K, A]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Keys returns a snapshot of the keys in unspecified order.
func (s *Set[K, A]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(maps.Keys(s.items))
}

// All iterates over a snapshot of the set. No hooks fire.
func (s *Set[K, A]) All() iter.Seq2[K, A] {
	s.mu.RLock()
	snapshot := maps.Clone(s.items)
	s.mu.RUnlock()
	return maps.All(snapshot)
}

// AssetType returns A.
func (s *Set[K, A]) AssetType() reflect.Type { return s.typ }

func (s *Set[K, A]) emit(ctx context.Context, kind hook.Kind, args ...any) error {
	if s.emitter == nil {
		return nil
	}
	return s.emitter.Emit(ctx, kind, s.typ, args...)
}

func (s *Set[K, A]) keyErr(op string, key K, err error) error {
	return &KeyError{Op: op, AssetType: s.typ, Key: key, Err: err}
}

// KeyOf returns the key of an asset whose type is only known at run time,
// as open hooks see it. ok is false for nil values and values without an
// AssetKey method.
func KeyOf(a any) (key any, ok bool) {
	v := reflect.ValueOf(a)
	if !v.IsValid() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil, false
		}
	}
	m := v.MethodByName("AssetKey")
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return nil, false
	}
	return m.Call(nil)[0].Interface(), true
}

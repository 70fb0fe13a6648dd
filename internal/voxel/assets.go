package voxel

import (
	"slices"

	"github.com/google/uuid"
)

// MainManifestKey is the key of the scene's main manifest.
const MainManifestKey = "main"

// Manifest lists the shapes that make up one scene.
type Manifest struct {
	Key       string      `json:"key"`
	ShapeKeys []uuid.UUID `json:"shape_keys"`
}

// AssetKey implements asset.Asset.
func (m *Manifest) AssetKey() string { return m.Key }

// Has reports whether the manifest lists shape key.
func (m *Manifest) Has(key uuid.UUID) bool {
	return slices.Contains(m.ShapeKeys, key)
}

// with returns a copy of m listing key.
func (m *Manifest) with(key uuid.UUID) *Manifest {
	if m.Has(key) {
		return m
	}
	return &Manifest{Key: m.Key, ShapeKeys: append(slices.Clone(m.ShapeKeys), key)}
}

// without returns a copy of m not listing key.
func (m *Manifest) without(key uuid.UUID) *Manifest {
	return &Manifest{
		Key: m.Key,
		ShapeKeys: slices.DeleteFunc(slices.Clone(m.ShapeKeys), func(k uuid.UUID) bool {
			return k == key
		}),
	}
}

// Shape is one solid in the scene.
type Shape struct {
	Key  uuid.UUID `json:"key"`
	Name string    `json:"name"`
}

// NewShape creates a shape with a fresh key.
func NewShape(name string) *Shape {
	return &Shape{Key: uuid.New(), Name: name}
}

// AssetKey implements asset.Asset.
func (s *Shape) AssetKey() uuid.UUID { return s.Key }

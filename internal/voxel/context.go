package voxel

import (
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/xraph/jobengine/asset"
)

// AssetTypes are the asset types a voxel Context manages.
var AssetTypes = []reflect.Type{
	reflect.TypeFor[*Manifest](),
	reflect.TypeFor[*Shape](),
}

// Context is the voxel scene's asset context.
type Context struct {
	*asset.Context

	mu        sync.Mutex
	manifests map[string]*sync.Mutex
}

// NewContext wraps the base context.
func NewContext(c *asset.Context) *Context {
	return &Context{Context: c, manifests: make(map[string]*sync.Mutex)}
}

// lockManifest serializes read-modify-write cycles on one manifest and
// returns the unlock func. Hooks fired while it is held must not run jobs
// that edit the same manifest.
func (c *Context) lockManifest(key string) func() {
	c.mu.Lock()
	l, ok := c.manifests[key]
	if !ok {
		l = &sync.Mutex{}
		c.manifests[key] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Manifests returns the manifest set.
func (c *Context) Manifests() *asset.Set[string, *Manifest] {
	return Manifests(c.Context)
}

// Shapes returns the shape set.
func (c *Context) Shapes() *asset.Set[uuid.UUID, *Shape] {
	return Shapes(c.Context)
}

// Manifests returns the manifest set of any context managing manifests.
func Manifests(c *asset.Context) *asset.Set[string, *Manifest] {
	return asset.MustSetOf[string, *Manifest](c)
}

// Shapes returns the shape set of any context managing shapes.
func Shapes(c *asset.Context) *asset.Set[uuid.UUID, *Shape] {
	return asset.MustSetOf[uuid.UUID, *Shape](c)
}

package voxel

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/asset"
)

// ──────────────────────────────────────────────────
// UpsertMainManifest
// ──────────────────────────────────────────────────

// UpsertMainManifest makes sure the main manifest exists.
type UpsertMainManifest struct{}

// UpsertMainManifestHandler executes UpsertMainManifest. It depends only on
// the base asset context.
type UpsertMainManifestHandler struct {
	assets *asset.Context
}

// NewUpsertMainManifestHandler creates the handler.
func NewUpsertMainManifestHandler(assets *asset.Context) *UpsertMainManifestHandler {
	return &UpsertMainManifestHandler{assets: assets}
}

// Execute adds an empty main manifest unless one exists.
func (h *UpsertMainManifestHandler) Execute(ctx context.Context, _ UpsertMainManifest) error {
	manifests, err := asset.SetOf[string, *Manifest](h.assets)
	if err != nil {
		return err
	}
	_, found, err := manifests.TryGet(ctx, MainManifestKey)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return manifests.Add(ctx, &Manifest{Key: MainManifestKey, ShapeKeys: []uuid.UUID{}})
}

// ──────────────────────────────────────────────────
// AddShape
// ──────────────────────────────────────────────────

// AddShape stores a shape and lists it on a manifest.
type AddShape struct {
	Manifest string
	Shape    Shape
}

// AddShapeHandler executes AddShape.
type AddShapeHandler struct {
	scene *Context
}

// NewAddShapeHandler creates the handler.
func NewAddShapeHandler(scene *Context) *AddShapeHandler {
	return &AddShapeHandler{scene: scene}
}

// Execute upserts the shape, then updates the manifest. The manifest must
// exist. Edits of one manifest are serialized across jobs.
func (h *AddShapeHandler) Execute(ctx context.Context, j AddShape) error {
	key := manifestKey(j.Manifest)
	defer h.scene.lockManifest(key)()

	manifest, err := lookupManifest(ctx, h.scene, key)
	if err != nil {
		return err
	}
	s := j.Shape
	if err := h.scene.Shapes().Upsert(ctx, &s); err != nil {
		return err
	}
	return h.scene.Manifests().Update(ctx, manifest.with(s.Key))
}

// ──────────────────────────────────────────────────
// RemoveShape
// ──────────────────────────────────────────────────

// RemoveShape deletes a shape and drops it from a manifest.
type RemoveShape struct {
	Manifest string
	Key      uuid.UUID
}

// RemoveShapeHandler executes RemoveShape.
type RemoveShapeHandler struct {
	scene *Context
}

// NewRemoveShapeHandler creates the handler.
func NewRemoveShapeHandler(scene *Context) *RemoveShapeHandler {
	return &RemoveShapeHandler{scene: scene}
}

// Execute deletes the shape, then updates the manifest. Deleting a shape
// that does not exist fails.
func (h *RemoveShapeHandler) Execute(ctx context.Context, j RemoveShape) error {
	key := manifestKey(j.Manifest)
	defer h.scene.lockManifest(key)()

	manifest, err := lookupManifest(ctx, h.scene, key)
	if err != nil {
		return err
	}
	if err := h.scene.Shapes().Delete(ctx, j.Key); err != nil {
		return err
	}
	return h.scene.Manifests().Update(ctx, manifest.without(j.Key))
}

func manifestKey(key string) string {
	if key == "" {
		return MainManifestKey
	}
	return key
}

func lookupManifest(ctx context.Context, scene *Context, key string) (*Manifest, error) {
	m, found, err := scene.Manifests().TryGet(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("voxel: manifest %q: %w", key, jobengine.ErrAssetNotFound)
	}
	return m, nil
}

package voxel

import (
	"github.com/xraph/jobengine/asset"
	"github.com/xraph/jobengine/engine"
)

// Register adds the voxel context, its executors and the audit hook to eng.
func Register(eng *engine.Engine) error {
	if err := engine.AddAssetContext(eng, NewContext, asset.WithAssetTypes(AssetTypes...)); err != nil {
		return err
	}
	for _, ctor := range []any{
		NewUpsertMainManifestHandler,
		NewAddShapeHandler,
		NewRemoveShapeHandler,
	} {
		if err := eng.AddExecutor(ctor); err != nil {
			return err
		}
	}
	return eng.AddHook(NewAudit)
}

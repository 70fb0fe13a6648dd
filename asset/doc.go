// Package asset holds keyed in-memory asset sets and the contexts that own
// them.
//
// An asset is any type with an AssetKey method. A [Set] stores the assets
// of one type by key and fires the hook events for every lookup and
// mutation through the context's [Emitter]. Hooks fire after the set lock
// is released, so a hook may read or mutate sets itself.
//
// # Contexts
//
// [Context] is the base every domain context embeds, directly or through
// another context:
//
//	type Context struct {
//	    *asset.Context
//	}
//
//	func (c *Context) Manifests() *asset.Set[string, *Manifest] {
//	    return asset.MustSetOf[string, *Manifest](c.Context)
//	}
//
// [AddContext] registers a domain context with a registry.Registry. Every
// exported context embedded along the chain down to *asset.Context is
// registered as an alias of the same instance, so executors may depend on
// whichever level they need.
package asset

// Package hook defines the event hook contracts and the registry that fans
// events out to them.
//
// Hooks observe asset set operations and wrap job execution. Each event
// kind is a separate generic interface so a type opts in only to the
// events it cares about:
//
//	type ManifestAudit struct{ log *slog.Logger }
//
//	func (a *ManifestAudit) OnAdd(ctx context.Context, m *voxel.Manifest) error {
//	    a.log.InfoContext(ctx, "manifest added", slog.String("key", m.Key))
//	    return nil
//	}
//
//	func (a *ManifestAudit) OnDelete(ctx context.Context, key string, m *voxel.Manifest) error {
//	    a.log.InfoContext(ctx, "manifest deleted", slog.String("key", key))
//	    return nil
//	}
//
// # Contracts
//
//   - [OnGet]: every TryGet, hit or miss
//   - [OnAdd]: after an asset was added
//   - [OnUpsert]: after an asset was inserted or replaced
//   - [OnUpdate]: after an existing asset was replaced
//   - [OnDelete]: after an asset was removed
//   - [OnJobExecute]: around every executor run for a job type
//
// Contracts are matched by method shape. When the asset or job type
// parameter is concrete the hook is closed and fires for that type only;
// when it is an interface the hook is open and fires for every concrete
// type implementing it. The key parameter of [OnGet] and [OnDelete] must
// accept the asset's AssetKey type: a closed hook with any other key type
// is rejected by [Inspect], and an open one is skipped for assets whose
// keys it cannot take.
//
// Inside a job, asset events resolve hooks from the job's registry scope,
// the same scope that Job-Execute hooks come from.
//
// The [Registry] holds one ordered mapping of (kind, type) to hook
// registrations. [Fanout] resolves and invokes them in registration order;
// the first error stops the fan-out and is returned to the caller as an
// [*Error].
package hook

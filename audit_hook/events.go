package audithook

// Audit event actions. Each constant corresponds to one hook kind and
// becomes the Action field of the audit event.
const (
	ActionAssetRead     = "asset.read"
	ActionAssetAdded    = "asset.added"
	ActionAssetUpserted = "asset.upserted"
	ActionAssetUpdated  = "asset.updated"
	ActionAssetDeleted  = "asset.deleted"
	ActionJobStarted    = "job.started"
	ActionJobCompleted  = "job.completed"
	ActionJobFailed     = "job.failed"
)

// Audit event categories group related actions.
const (
	CategoryAsset = "jobengine.asset"
	CategoryJob   = "jobengine.job"
)

// AllActions returns every action this hook can emit.
func AllActions() []string {
	return []string{
		ActionAssetRead,
		ActionAssetAdded,
		ActionAssetUpserted,
		ActionAssetUpdated,
		ActionAssetDeleted,
		ActionJobStarted,
		ActionJobCompleted,
		ActionJobFailed,
	}
}

// MutationActions returns the actions for asset changes and job runs,
// leaving out reads.
func MutationActions() []string {
	return AllActions()[1:]
}

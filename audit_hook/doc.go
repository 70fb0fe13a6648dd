// Package audithook is an event hook that bridges asset and job lifecycle
// events to an audit trail backend.
//
// The Hook is open over every asset type and job type: each asset
// operation and each executor run emits a structured audit event through
// the [Recorder] interface, with a severity (info for normal operations,
// warning for deletions, critical for failed jobs) and metadata (asset
// type, key, job type, elapsed time, errors).
//
// # Usage
//
//	eng.AddHookInstance(audithook.New(audithook.RecorderFunc(
//	    func(ctx context.Context, evt *audithook.AuditEvent) error {
//	        logger.InfoContext(ctx, evt.Action, "resource", evt.Resource)
//	        return nil
//	    })))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(audithook.MutationActions()...),
//	)
//
// Recording failures are logged and never fail the audited operation.
package audithook

// Package cron enqueues jobs on a schedule from inside the process.
//
// The engine has no scheduler of its own: jobs run when a host drains a
// queue. A cron [Scheduler] is one such host-side driver. On every tick
// it enqueues a fresh job for each due entry; executing the job stays with
// whoever drains the queue (usually the engine's worker pool).
//
// # Entry
//
// An [Entry] represents a recurring job schedule:
//   - Name: unique entry name
//   - Schedule: standard cron expression (e.g., "0 9 * * 1-5") or a
//     descriptor such as "@every 30s"
//   - Queue: target queue name ("" means the engine's default queue)
//   - Enabled: whether the entry fires
//   - LastRunAt / NextRunAt: managed by the scheduler
//
// # Registering a Cron
//
//	sched := cron.NewScheduler(eng, logger)
//	err := cron.Register(sched, cron.Definition[voxel.AddShape]{
//	    Name:     "add-shape",
//	    Schedule: "@every 5s",
//	    Job:      func() voxel.AddShape { return voxel.AddShape{Shape: *voxel.NewShape("tick")} },
//	})
//
// Entries live in memory only and are lost on restart.
package cron

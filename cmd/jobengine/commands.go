package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/urfave/cli/v3"

	audithook "github.com/xraph/jobengine/audit_hook"
	"github.com/xraph/jobengine/cron"
	"github.com/xraph/jobengine/dlq"
	"github.com/xraph/jobengine/engine"
	"github.com/xraph/jobengine/internal/config"
	"github.com/xraph/jobengine/internal/voxel"
	"github.com/xraph/jobengine/stream"
)

// host bundles the engine with the dead letter queue that captures its
// failed jobs.
type host struct {
	*engine.Engine
	dead *dlq.Service
}

// newEngine loads the configuration and builds an engine with the voxel
// scene registered.
func newEngine(cmd *cli.Command) (*host, error) {
	cfg, err := config.Load(cmd.String("env"), cmd.String("config"))
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	dead := dlq.NewService(dlq.NewMemoryStore(), nil, logger)
	eng, err := engine.New(
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithMiddleware(dead.Middleware()),
	)
	if err != nil {
		return nil, err
	}
	dead.SetEnqueuer(eng)

	if err := voxel.Register(eng); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("register voxel scene: %w", err)
	}
	if cmd.Bool("audit") {
		if err := eng.AddHookInstance(audithook.New(logRecorder(logger), audithook.WithLogger(logger))); err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("register audit hook: %w", err)
		}
	}
	return &host{Engine: eng, dead: dead}, nil
}

// reportDeadLetters logs every job captured by the dead letter queue.
func (h *host) reportDeadLetters(ctx context.Context) {
	entries, err := h.dead.Store().ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		h.Logger().Error("list dead letters", slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		h.Logger().Warn("dead letter",
			slog.String("dlq_id", e.ID.String()),
			slog.String("job_type", e.JobType),
			slog.String("queue", e.Queue),
			slog.String("error", e.Error),
		)
	}
}

// logRecorder writes audit events to the logger.
func logRecorder(logger *slog.Logger) audithook.Recorder {
	return audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
			slog.String("severity", evt.Severity),
		)
		return nil
	})
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	if _, err := eng.Enqueue(ctx, voxel.UpsertMainManifest{}); err != nil {
		return err
	}
	for i := range int(cmd.Int("shapes")) {
		shape := voxel.NewShape(fmt.Sprintf("shape-%d", i+1))
		if _, err := eng.Enqueue(ctx, voxel.AddShape{Shape: *shape}); err != nil {
			return err
		}
	}

	n, err := eng.DrainAll(ctx)
	if err != nil {
		eng.reportDeadLetters(ctx)
		return fmt.Errorf("drain after %d jobs: %w", n, err)
	}

	scene, err := engine.Resolve[*voxel.Context](eng.Engine)
	if err != nil {
		return err
	}
	manifest, found, err := scene.Manifests().TryGet(ctx, voxel.MainManifestKey)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("main manifest missing after %d jobs", n)
	}
	eng.Logger().Info("scene ready",
		slog.Int("jobs", n),
		slog.Int("shapes", len(manifest.ShapeKeys)),
	)
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	if cmd.Bool("watch") {
		broker := stream.NewBroker(eng.Logger())
		defer broker.Close()
		if err := eng.AddHookInstance(broker); err != nil {
			return fmt.Errorf("register change feed: %w", err)
		}
		sub, err := broker.Subscribe("cli", stream.TopicFirehose)
		if err != nil {
			return err
		}
		go logEvents(eng.Logger(), sub)
	}

	sched, err := newScheduler(eng.Engine, cmd.String("schedule"))
	if err != nil {
		return err
	}

	if _, err := eng.Enqueue(ctx, voxel.UpsertMainManifest{}); err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			_ = eng.Stop(context.Background())
			return err
		}
	}
	eng.Logger().Info("jobengine serving",
		slog.String("worker_id", eng.WorkerID().String()),
		slog.Any("queues", eng.Config().Queues),
	)

	<-ctx.Done()
	eng.Logger().Info("shutting down")
	if sched != nil {
		_ = sched.Stop(context.Background())
	}
	err = eng.Stop(context.Background())
	eng.reportDeadLetters(context.Background())
	return err
}

// newScheduler returns a scheduler that adds a shape to the main manifest
// on every activation of expr, or nil when expr is empty.
func newScheduler(eng *engine.Engine, expr string) (*cron.Scheduler, error) {
	if expr == "" {
		return nil, nil
	}
	sched := cron.NewScheduler(eng, eng.Logger())
	var n atomic.Int64
	err := cron.Register(sched, cron.Definition[voxel.AddShape]{
		Name:     "add-shape",
		Schedule: expr,
		Job: func() voxel.AddShape {
			name := fmt.Sprintf("scheduled-%d", n.Add(1))
			return voxel.AddShape{Shape: *voxel.NewShape(name)}
		},
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// logEvents logs change feed events until the subscriber closes.
func logEvents(logger *slog.Logger, sub *stream.Subscriber) {
	for evt := range sub.C() {
		logger.Info("change",
			slog.String("type", string(evt.Type)),
			slog.String("topic", evt.Topic),
		)
		sub.AddCredits(1)
	}
}

// Command jobengine runs the voxel sample scene on a job engine.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	configFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file path",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML configuration file path",
				Value: "jobengine.yaml",
			},
			&cli.BoolFlag{
				Name:  "audit",
				Usage: "log an audit event for every asset change and job run",
			},
		}
	}

	return &cli.Command{
		Name:  "jobengine",
		Usage: "typed job dispatch over an in-process voxel scene",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "enqueue the scene jobs, drain every queue once and exit",
				Flags: append(configFlags(),
					&cli.IntFlag{
						Name:  "shapes",
						Usage: "number of shapes to add to the main manifest",
						Value: 3,
					},
				),
				Action: runAction,
			},
			{
				Name:  "serve",
				Usage: "run the worker pool until interrupted",
				Flags: append(configFlags(),
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "log every asset change and job run from the change feed",
					},
					&cli.StringFlag{
						Name:  "schedule",
						Usage: `cron expression for adding a shape to the main manifest (e.g. "@every 5s")`,
					},
				),
				Action: serveAction,
			},
		},
	}
}

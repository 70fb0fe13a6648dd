package main

import (
	"context"
	"testing"
)

func TestRunCommand(t *testing.T) {
	t.Setenv("JOBENGINE_LOG_LEVEL", "error")
	args := []string{"jobengine", "run", "--env", "", "--config", "", "--shapes", "2"}
	if err := newApp().Run(context.Background(), args); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunCommand_Audit(t *testing.T) {
	t.Setenv("JOBENGINE_LOG_LEVEL", "error")
	args := []string{"jobengine", "run", "--env", "", "--config", "", "--shapes", "1", "--audit"}
	if err := newApp().Run(context.Background(), args); err != nil {
		t.Fatalf("run --audit: %v", err)
	}
}

func TestServeCommand_StopsOnCancel(t *testing.T) {
	t.Setenv("JOBENGINE_LOG_LEVEL", "error")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	args := []string{"jobengine", "serve", "--env", "", "--config", ""}
	if err := newApp().Run(ctx, args); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestServeCommand_Watch(t *testing.T) {
	t.Setenv("JOBENGINE_LOG_LEVEL", "error")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	args := []string{"jobengine", "serve", "--env", "", "--config", "", "--watch"}
	if err := newApp().Run(ctx, args); err != nil {
		t.Fatalf("serve --watch: %v", err)
	}
}

func TestServeCommand_InvalidSchedule(t *testing.T) {
	t.Setenv("JOBENGINE_LOG_LEVEL", "error")
	args := []string{"jobengine", "serve", "--env", "", "--config", "", "--schedule", "not-a-cron"}
	if err := newApp().Run(context.Background(), args); err == nil {
		t.Fatal("expected an invalid schedule to fail")
	}
}

func TestServeCommand_Schedule(t *testing.T) {
	t.Setenv("JOBENGINE_LOG_LEVEL", "error")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	args := []string{"jobengine", "serve", "--env", "", "--config", "", "--schedule", "@every 1s"}
	if err := newApp().Run(ctx, args); err != nil {
		t.Fatalf("serve --schedule: %v", err)
	}
}

// Package app wires the scheduler, pub/sub, and recorder subsystems into one
// runnable unit, the same way the teacher's App bound a store, job runner,
// watcher, and HTTP router.
package app

import (
	"context"
	"log"

	"github.com/cyfitech/corebus/internal/clock"
	"github.com/cyfitech/corebus/internal/config"
	"github.com/cyfitech/corebus/internal/recorder"
	"github.com/cyfitech/corebus/internal/sched"
)

// App bundles one JobRunner with an optional Recorder bound to it. Callers
// register pub/sub nodes and channels against Runner()/Recorder() before
// calling Run.
type App struct {
	cfg     *config.Loaded
	runner  *sched.JobRunner
	record  *recorder.Recorder
	baseDir string
}

// New constructs the runner and, if the resolved config requests a record
// directory, the recorder bound to it.
func New(cfg *config.Loaded, baseDir string) (*App, error) {
	runner := sched.NewJobRunner(cfg.Runner)

	a := &App{cfg: cfg, runner: runner, baseDir: baseDir}

	if cfg.Recorder.RecordDir != "" || len(cfg.Recorder.SnapshotIntervals) > 0 {
		rec, err := recorder.NewRecorder(runner, baseDir, cfg.Recorder, clock.Default)
		if err != nil {
			runner.Shutdown()
			return nil, err
		}
		a.record = rec
	}

	return a, nil
}

// Run blocks until ctx is cancelled, then shuts the recorder and runner down
// in order.
func (a *App) Run(ctx context.Context) error {
	log.Printf("app: running with %d scheduler threads, record_dir=%q", a.runner.ThreadNum(), a.baseDir)
	<-ctx.Done()
	return a.Shutdown()
}

// Shutdown stops the recorder (flushing and closing every segment) and then
// the runner (draining each worker's queue before its goroutine exits).
func (a *App) Shutdown() error {
	if a.record != nil {
		if err := a.record.Close(); err != nil {
			log.Printf("app: recorder close: %v", err)
		}
	}
	a.runner.Shutdown()
	return nil
}

func (a *App) Runner() *sched.JobRunner     { return a.runner }
func (a *App) Recorder() *recorder.Recorder { return a.record }

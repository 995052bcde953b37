package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// Worker owns one local queue and one goroutine standing in for the OS
// thread described by the spec. It runs consume-steal-park in a loop until
// told to shut down.
type Worker struct {
	index  int
	runner *JobRunner
	queue  JobQueue

	mu       sync.Mutex
	cond     *sync.Cond
	shutdown bool

	lastActivity atomic.Int64 // unix nanoseconds
	parked       atomic.Bool
}

func newWorker(index int, runner *JobRunner) *Worker {
	w := &Worker{
		index:  index,
		runner: runner,
		queue:  NewRingJobQueue(32),
	}
	w.cond = sync.NewCond(&w.mu)
	w.lastActivity.Store(time.Now().UnixNano())
	return w
}

// AddJob pushes directly into this worker's local queue.
func (w *Worker) AddJob(j Job) {
	w.queue.Push(j)
	w.wake()
}

func (w *Worker) wake() {
	w.mu.Lock()
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *Worker) stop() {
	w.mu.Lock()
	w.shutdown = true
	w.cond.Signal()
	w.mu.Unlock()
}

func (w *Worker) isShutdown() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shutdown
}

func (w *Worker) markActive() {
	w.lastActivity.Store(time.Now().UnixNano())
}

func (w *Worker) idleFor() time.Duration {
	return time.Since(time.Unix(0, w.lastActivity.Load()))
}

// run is the Worker's main loop: consume-one, else steal, else park/spin
// according to the runner's always-active and active-time configuration.
func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	registerCurrentWorker(w)
	defer unregisterCurrentWorker()

	for {
		if w.isShutdown() {
			// Drain remaining local work before exiting.
			w.queue.ConsumeAll(func(j Job) { j() })
			return
		}

		if w.queue.ConsumeOne(func(j Job) { j() }) {
			w.runner.Metrics.IncJobsRun()
			w.markActive()
			continue
		}

		if w.runner.steal() {
			w.markActive()
			continue
		}

		if w.index < w.runner.cfg.AlwaysActiveThreadNum {
			continue
		}

		if w.idleFor() < w.runner.cfg.ActiveTime {
			continue
		}

		w.park()
	}
}

// park blocks on the worker's condition variable, decrementing the
// runner's active-worker count while parked. A final shutdown check under
// the same mutex as stop()'s flag write avoids the lost-wakeup race.
func (w *Worker) park() {
	w.mu.Lock()
	if w.shutdown {
		w.mu.Unlock()
		return
	}

	w.parked.Store(true)
	w.runner.activeWorkersNum.Add(-1)

	timer := time.AfterFunc(time.Second, func() {
		w.mu.Lock()
		w.cond.Signal()
		w.mu.Unlock()
	})

	w.cond.Wait()
	timer.Stop()

	w.runner.activeWorkersNum.Add(1)
	w.parked.Store(false)
	w.mu.Unlock()
}

package sched

import (
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyfitech/corebus/internal/metrics"
)

// Config mirrors the Runner JSON config schema: zero values are valid
// defaults. NewJobRunner treats a ThreadNum of 0 or less as 1.
type Config struct {
	ThreadNum             int
	AlwaysActiveThreadNum int
	ActiveTime            time.Duration
}

// JobRunner is a pool of Workers with work stealing, scheduler hints, and
// strand creation.
type JobRunner struct {
	cfg     Config
	workers []*Worker

	activeWorkersNum atomic.Int64
	readyForStealing atomic.Bool

	wg       sync.WaitGroup
	rng      *rand.Rand
	rngMu    sync.Mutex
	stopOnce sync.Once

	Metrics *metrics.Runner
}

// NewJobRunner constructs and fully starts a JobRunner: every Worker is
// created and its loop goroutine launched before this returns.
func NewJobRunner(cfg Config) *JobRunner {
	if cfg.ThreadNum <= 0 {
		cfg.ThreadNum = 1
	}
	r := &JobRunner{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		Metrics: &metrics.Runner{},
	}
	r.workers = make([]*Worker, cfg.ThreadNum)
	for i := range r.workers {
		r.workers[i] = newWorker(i, r)
	}
	r.activeWorkersNum.Store(int64(cfg.ThreadNum))
	r.readyForStealing.Store(true)

	r.wg.Add(cfg.ThreadNum)
	for _, w := range r.workers {
		go w.run(&r.wg)
	}
	return r
}

// ThreadNum returns the configured worker count.
func (r *JobRunner) ThreadNum() int { return len(r.workers) }

// ActiveThreadNum returns the current count of non-parked workers.
func (r *JobRunner) ActiveThreadNum() int { return int(r.activeWorkersNum.Load()) }

func (r *JobRunner) randIndex(n int) int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.Intn(n)
}

// DefaultSchedulerHint returns the calling worker's own index for locality
// if the caller is a Worker goroutine of this runner, otherwise a uniformly
// random index.
func (r *JobRunner) DefaultSchedulerHint() int {
	if w, ok := currentWorker(); ok && w.runner == r {
		return w.index
	}
	return r.randIndex(len(r.workers))
}

// AddJob pushes job to worker hint%N, wakes that worker, and as an
// anti-starvation measure also wakes one random other worker while stealing
// is enabled. Returns false only if the runner has no workers.
func (r *JobRunner) AddJob(job Job, hint int) bool {
	n := len(r.workers)
	if n == 0 {
		return false
	}
	idx := hint % n
	if idx < 0 {
		idx += n
	}
	r.workers[idx].AddJob(job)

	if r.readyForStealing.Load() && n > 1 {
		other := r.randIndex(n - 1)
		if other >= idx {
			other++
		}
		r.workers[other].wake()
	}
	return true
}

// AddJobDefault submits job using DefaultSchedulerHint.
func (r *JobRunner) AddJobDefault(job Job) bool {
	return r.AddJob(job, r.DefaultSchedulerHint())
}

// steal picks a random start index and scans all workers in wrap-around
// order, consuming the first job found.
func (r *JobRunner) steal() bool {
	n := len(r.workers)
	if n == 0 {
		return false
	}
	start := r.randIndex(n)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if r.workers[idx].queue.ConsumeOne(func(j Job) { j() }) {
			r.Metrics.IncJobsStolen()
			return true
		}
	}
	return false
}

// Steal exposes steal for callers outside the worker loop (e.g. tests
// exercising load-balancing behavior directly).
func (r *JobRunner) Steal() bool { return r.steal() }

// MakeStrand creates a Strand bound to this runner. The Strand holds a plain
// pointer to the runner, so the runner stays reachable for as long as any
// Strand made from it does.
func (r *JobRunner) MakeStrand() *Strand {
	return newStrand(r)
}

// Shutdown stops stealing, then stops and joins every worker in order. Any
// jobs still queued are drained by each worker's final ConsumeAll before its
// goroutine exits.
func (r *JobRunner) Shutdown() {
	r.stopOnce.Do(func() {
		r.readyForStealing.Store(false)
		for _, w := range r.workers {
			w.stop()
		}
		r.wg.Wait()
		log.Printf("sched: runner stopped, %d workers joined", len(r.workers))
	})
}

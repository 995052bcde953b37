package sched

import "github.com/cyfitech/corebus/internal/metrics"

// RunResult is returned by Strand.TryRunImmediately.
type RunResult int

const (
	// ENQUEUED means the job was handed to the runner (or the strand's
	// pending queue) and will run asynchronously.
	ENQUEUED RunResult = iota
	// FINISHED means the job already ran inline before the call returned.
	FINISHED
	// FAILED means the strand could not accept the job (it has no
	// runner).
	FAILED
)

// Strand serializes jobs: at most one of its jobs is ready-in-runner or
// executing at any instant; the rest wait in a pending FIFO.
type Strand struct {
	runner *JobRunner

	mu          HybridSpinMutex
	hasReadyJob bool
	pending     []Job

	metrics *metrics.Runner
}

func newStrand(r *JobRunner) *Strand {
	return &Strand{runner: r, metrics: r.Metrics}
}

// AddJob enqueues j on the strand. It never runs inline.
func (s *Strand) AddJob(j Job) bool {
	return s.submit(s.wrap(j))
}

// AddAliveJob enqueues j on the strand like AddJob, but j receives its own
// AliveToken and the strand does not advance to its next pending job until
// every clone of that token has been released. Unlike a bare AddJob, the
// worker goroutine running j is never blocked waiting for that release: j
// can clone the token into a job it hands off elsewhere (even back onto this
// same runner) and return immediately, with advancement happening later from
// whichever goroutine drops the last clone.
func (s *Strand) AddAliveJob(j func(AliveToken)) bool {
	return s.submit(func() {
		tok := NewAliveToken(s.advance)
		j(tok)
		tok.Release()
	})
}

// submit hands raw straight to the runner if the strand is currently idle,
// or appends it to the pending FIFO if a job is already ready/running.
func (s *Strand) submit(raw Job) bool {
	if s.runner == nil {
		return false
	}

	s.mu.Lock()
	if s.hasReadyJob {
		s.pending = append(s.pending, raw)
		s.mu.Unlock()
		s.metrics.IncStrandWaits()
		return true
	}
	s.hasReadyJob = true
	s.mu.Unlock()

	s.runner.AddJobDefault(raw)
	return true
}

// TryRunImmediately runs j on the caller's own goroutine whenever no strand
// job is currently in flight, whether or not the caller happens to be a
// worker of this strand's runner; otherwise it behaves like AddJob. A nested
// job on the same strand always finds hasReadyJob already true (set by its
// own enclosing invocation) and therefore always enqueues, never runs
// inline — that exclusion falls out of the hasReadyJob check alone and needs
// no caller-identity gate.
func (s *Strand) TryRunImmediately(j Job) RunResult {
	if s.runner == nil {
		return FAILED
	}
	wrapped := s.wrap(j)

	s.mu.Lock()
	if !s.hasReadyJob {
		s.hasReadyJob = true
		s.mu.Unlock()
		wrapped()
		return FINISHED
	}
	s.pending = append(s.pending, wrapped)
	s.mu.Unlock()
	s.metrics.IncStrandWaits()
	return ENQUEUED
}

// wrap produces the job that runs j, then advances the strand: pop the next
// pending job (if any) and submit it, else clear hasReadyJob.
func (s *Strand) wrap(j Job) Job {
	return func() {
		j()
		s.advance()
	}
}

func (s *Strand) advance() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.hasReadyJob = false
		s.mu.Unlock()
		return
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()

	s.runner.AddJobDefault(next)
}

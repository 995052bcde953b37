// Package metrics exposes atomic counters for the JobRunner and Recorder,
// adapted from the teacher's atomic-counter-plus-Snapshot metrics pattern.
package metrics

import "sync/atomic"

// Runner holds scheduler-facing counters.
type Runner struct {
	jobsRun     atomic.Int64
	jobsStolen  atomic.Int64
	strandWaits atomic.Int64
}

func (m *Runner) IncJobsRun()     { m.jobsRun.Add(1) }
func (m *Runner) IncJobsStolen()  { m.jobsStolen.Add(1) }
func (m *Runner) IncStrandWaits() { m.strandWaits.Add(1) }

// RunnerSnapshot is a point-in-time read of Runner's counters.
type RunnerSnapshot struct {
	JobsRun     int64
	JobsStolen  int64
	StrandWaits int64
}

func (m *Runner) Snapshot() RunnerSnapshot {
	return RunnerSnapshot{
		JobsRun:     m.jobsRun.Load(),
		JobsStolen:  m.jobsStolen.Load(),
		StrandWaits: m.strandWaits.Load(),
	}
}

// Recorder holds recorder-facing counters.
type Recorder struct {
	messagesWritten atomic.Int64
	writeFailures   atomic.Int64
	snapshotsTaken  atomic.Int64
	snapshotFailures atomic.Int64
}

func (m *Recorder) IncMessagesWritten()  { m.messagesWritten.Add(1) }
func (m *Recorder) IncWriteFailures()    { m.writeFailures.Add(1) }
func (m *Recorder) IncSnapshotsTaken()   { m.snapshotsTaken.Add(1) }
func (m *Recorder) IncSnapshotFailures() { m.snapshotFailures.Add(1) }

// RecorderSnapshot is a point-in-time read of Recorder's counters.
type RecorderSnapshot struct {
	MessagesWritten  int64
	WriteFailures    int64
	SnapshotsTaken   int64
	SnapshotFailures int64
}

func (m *Recorder) Snapshot() RecorderSnapshot {
	return RecorderSnapshot{
		MessagesWritten:  m.messagesWritten.Load(),
		WriteFailures:    m.writeFailures.Load(),
		SnapshotsTaken:   m.snapshotsTaken.Load(),
		SnapshotFailures: m.snapshotFailures.Load(),
	}
}

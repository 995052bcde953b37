package recorder

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/cyfitech/corebus/internal/clock"
	"github.com/cyfitech/corebus/internal/fsutil"
	"github.com/cyfitech/corebus/internal/metrics"
	"github.com/cyfitech/corebus/internal/pubsub"
	"github.com/cyfitech/corebus/internal/sched"
)

var sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9_.]+`)

func sanitizeTypeName(name string) string {
	return sanitizePattern.ReplaceAllString(name, "_")
}

func recordDirName(now time.Time, pid int) string {
	return fmt.Sprintf("record.%s.pid.%d", now.UTC().Format("20060102-150405.MST"), pid)
}

// Recorder is a Node with one dedicated record strand serializing all file
// writes, and an optional snapshot goroutine.
type Recorder struct {
	node        *pubsub.Node
	recordStrand *sched.Strand
	clock       clock.Clock

	recordDir string

	mu    sync.Mutex
	files map[pubsub.Channel]*RecordFile

	snapshotInterval *SnapshotIntervalConfig
	snapshotBaseDir  string
	snapshotPaths    []string
	snapshotDone     chan struct{}
	snapshotWG       sync.WaitGroup

	PreSnapshot  func()
	PostSnapshot func()

	Metrics *metrics.Recorder
}

// NewRecorder creates a record.<timestamp>.pid.<pid> directory under
// cfg.RecordDir, or under baseDir when cfg.RecordDir is empty, and binds a
// record strand to runner.
func NewRecorder(runner *sched.JobRunner, baseDir string, cfg Config, c clock.Clock) (*Recorder, error) {
	dir := baseDir
	if cfg.RecordDir != "" {
		dir = cfg.RecordDir
	}
	recordDir := filepath.Join(dir, recordDirName(time.Now(), os.Getpid()))
	if err := fsutil.CreateDirAll(recordDir); err != nil {
		return nil, err
	}

	r := &Recorder{
		node:         pubsub.NewNode(runner),
		recordStrand: runner.MakeStrand(),
		clock:        c,
		recordDir:    recordDir,
		files:        make(map[pubsub.Channel]*RecordFile),
		Metrics:      &metrics.Recorder{},
	}

	if len(cfg.SnapshotIntervals) > 0 {
		if len(cfg.SnapshotIntervals) > 1 {
			log.Printf("recorder: %d snapshot intervals configured, only the last one is honored", len(cfg.SnapshotIntervals))
		}
		last := cfg.SnapshotIntervals[len(cfg.SnapshotIntervals)-1]
		r.startSnapshotWorker(last)
	}
	return r, nil
}

// RegisterChannel opens a RecordFile for (T, subID) and subscribes on it
// with a callback that serializes each message and writes it through the
// record strand.
func RegisterChannel[T any](r *Recorder, subID uint64, serialize func(T) ([]byte, error)) error {
	ch := pubsub.Channel{Tag: pubsub.TagOf[T](), SubID: subID}
	segDir := filepath.Join(r.recordDir, fmt.Sprintf("%s_subid_%d.ldb", sanitizeTypeName(ch.Tag.String()), subID))

	file := NewRecordFile(func() string { return segDir }, "", NoneRolling{}, r.clock)
	if err := file.Open(); err != nil {
		return fmt.Errorf("recorder: open segment for %s: %w", ch.Tag, err)
	}

	r.mu.Lock()
	r.files[ch] = file
	r.mu.Unlock()

	return pubsub.Subscribe(r.node, subID, r.recordStrand, func(msg T) {
		bytes, err := serialize(msg)
		if err != nil {
			log.Printf("recorder: serialize failed for %s/%d: %v", ch.Tag, subID, err)
			return
		}
		r.mu.Lock()
		f := r.files[ch]
		r.mu.Unlock()
		if f == nil {
			return
		}
		if err := f.Write(bytes); err != nil {
			r.Metrics.IncWriteFailures()
			log.Printf("recorder: write failed for %s/%d, dropping message: %v", ch.Tag, subID, err)
			return
		}
		r.Metrics.IncMessagesWritten()
	})
}

func (r *Recorder) startSnapshotWorker(interval SnapshotIntervalConfig) {
	r.snapshotInterval = &interval
	r.snapshotBaseDir = filepath.Join(r.recordDir, "..", "Snapshot", interval.Name)
	r.snapshotDone = make(chan struct{})

	r.snapshotWG.Add(1)
	go r.snapshotLoop()
}

func (r *Recorder) snapshotLoop() {
	defer r.snapshotWG.Done()
	period := time.Duration(r.snapshotInterval.PeriodSec) * time.Second
	wake := time.Now().Add(period)

	for {
		select {
		case <-r.snapshotDone:
			return
		case <-time.After(time.Until(wake)):
		}
		wake = wake.Add(period)

		if r.PreSnapshot != nil {
			r.PreSnapshot()
		}
		if err := r.takeSnapshot(); err != nil {
			r.Metrics.IncSnapshotFailures()
			log.Printf("recorder: snapshot failed, skipping this tick: %v", err)
		} else {
			r.Metrics.IncSnapshotsTaken()
		}
		if r.PostSnapshot != nil {
			r.PostSnapshot()
		}
	}
}

// takeSnapshot closes every RecordFile, copies the record directory
// recursively, reopens every file, and enforces max_num_of_copies. No
// runner thread is blocked: only record-strand writes are paused, because
// the strand itself is what's driving this closure/reopen sequence.
func (r *Recorder) takeSnapshot() error {
	done := make(chan error, 1)
	r.recordStrand.AddJob(func() {
		done <- r.doSnapshot()
	})
	return <-done
}

func (r *Recorder) doSnapshot() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ch, f := range r.files {
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s before snapshot: %w", ch.Tag, err)
		}
	}

	dest := filepath.Join(r.snapshotBaseDir, time.Now().UTC().Format("20060102-150405.MST"))
	err := fsutil.CopyDirRecursive(r.recordDir, dest)

	for ch, f := range r.files {
		if reopenErr := f.Open(); reopenErr != nil {
			log.Printf("recorder: failed to reopen %s after snapshot: %v", ch.Tag, reopenErr)
		}
	}

	if err != nil {
		return fmt.Errorf("copy snapshot: %w", err)
	}

	// Two snapshots within the same second share a destination; list it once
	// so retention never deletes a directory another entry still names.
	known := false
	for _, p := range r.snapshotPaths {
		if p == dest {
			known = true
			break
		}
	}
	if !known {
		r.snapshotPaths = append(r.snapshotPaths, dest)
		sort.Strings(r.snapshotPaths)
	}
	r.enforceMaxCopiesLocked()
	return nil
}

func (r *Recorder) enforceMaxCopiesLocked() {
	max := int(r.snapshotInterval.MaxNumOfCopies)
	for len(r.snapshotPaths) > max {
		oldest := r.snapshotPaths[0]
		if err := fsutil.RemoveAll(oldest); err != nil {
			log.Printf("recorder: failed to remove old snapshot %s: %v", oldest, err)
		}
		r.snapshotPaths = r.snapshotPaths[1:]
	}
}

// GetSnapshotPaths returns the snapshot directories currently retained, in
// ascending (oldest-first) order.
func (r *Recorder) GetSnapshotPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.snapshotPaths))
	copy(out, r.snapshotPaths)
	return out
}

// Close stops the snapshot worker, drops every RecordFile (compacting and
// closing each), unsubscribes the node, and removes record_dir if it ended
// up empty.
func (r *Recorder) Close() error {
	if r.snapshotDone != nil {
		close(r.snapshotDone)
		r.snapshotWG.Wait()
	}

	r.node.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	for ch, f := range r.files {
		if err := f.Compact(); err != nil {
			log.Printf("recorder: compact failed for %s: %v", ch.Tag, err)
		}
		if err := f.Close(); err != nil {
			log.Printf("recorder: close failed for %s: %v", ch.Tag, err)
		}
	}

	if empty, _ := fsutil.IsEmptyDir(r.recordDir); empty {
		return fsutil.RemoveAll(r.recordDir)
	}
	return nil
}

// RecordDir returns the live segment root this Recorder is writing into.
func (r *Recorder) RecordDir() string { return r.recordDir }

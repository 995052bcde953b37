package recorder

import (
	"container/heap"
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cyfitech/corebus/internal/clock"
	"github.com/cyfitech/corebus/internal/pubsub"
	"github.com/cyfitech/corebus/internal/sched"
)

type replayCursor struct {
	channel   pubsub.Channel
	entries   []RecordEntry
	idx       int
	publish   func([]byte) error
}

func (c *replayCursor) currentKey() RecordKey { return c.entries[c.idx].Key }

type cursorHeap []*replayCursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	return Compare(h[i].currentKey(), h[j].currentKey()) < 0
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(*replayCursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Replayer re-publishes a record directory's contents on a simulated
// timeline, paced by the original inter-message timestamps scaled by a
// speedup rate.
type Replayer struct {
	node        *pubsub.Node
	recordDir   string
	clock       clock.Clock
	speedupRate float64

	cursors cursorHeap

	shutdown atomic.Bool
	ended    atomic.Bool

	PostStart  func()
	PreFinish  func()
	PostFinish func()
}

// NewReplayer creates a Replayer bound to runner, reading segments out of
// recordDir. speedupRate scales simulated playback time; 1.0 reproduces the
// original inter-message timing.
func NewReplayer(runner *sched.JobRunner, recordDir string, c clock.Clock, speedupRate float64) *Replayer {
	return &Replayer{
		node:        pubsub.NewNode(runner),
		recordDir:   recordDir,
		clock:       c,
		speedupRate: speedupRate,
	}
}

// RegisterReplayChannel opens the RecordFile for (T, subID), reads every entry up
// front (record directories are bounded by definition — they're closed
// segments, not a live append-only stream), and pushes the resulting cursor
// into the replay heap if it has at least one entry.
func RegisterReplayChannel[T any](r *Replayer, subID uint64, deserialize func([]byte) (T, error)) error {
	ch := pubsub.Channel{Tag: pubsub.TagOf[T](), SubID: subID}
	segDir := filepath.Join(r.recordDir, fmt.Sprintf("%s_subid_%d.ldb", sanitizeTypeName(ch.Tag.String()), subID))

	file := NewRecordFile(func() string { return segDir }, "", NoneRolling{}, r.clock)
	if err := file.Open(); err != nil {
		return fmt.Errorf("replayer: open segment for %s: %w", ch.Tag, err)
	}
	defer file.Close()

	entries, err := file.Iterate()
	if err != nil {
		return fmt.Errorf("replayer: iterate segment for %s: %w", ch.Tag, err)
	}
	if len(entries) == 0 {
		return nil
	}

	cursor := &replayCursor{
		channel: ch,
		entries: entries,
		publish: func(b []byte) error {
			v, err := deserialize(b)
			if err != nil {
				return err
			}
			pubsub.Publish(r.node, subID, v)
			return nil
		},
	}
	heap.Push(&r.cursors, cursor)
	return nil
}

// SetSpeedupRate changes the playback time multiplier.
func (r *Replayer) SetSpeedupRate(rate float64) { r.speedupRate = rate }

// StopMainLoop requests MainLoop stop at its next iteration boundary; it
// does not interrupt a sleep already in progress.
func (r *Replayer) StopMainLoop() { r.shutdown.Store(true) }

// IsEnded reports whether MainLoop has fully completed, including firing
// PostFinish.
func (r *Replayer) IsEnded() bool { return r.ended.Load() }

// MainLoop drains the replay heap in ascending key order, pacing playback
// so that expected_elapsed = (key.ts - start_record_ts) / speedup_rate
// wall-clock nanoseconds pass between the first message and each
// subsequent one.
func (r *Replayer) MainLoop() {
	if r.PostStart != nil {
		r.PostStart()
	}

	rate := r.speedupRate
	if rate <= 0 {
		rate = 1.0
	}

	var startRecordTS int64
	var startLocalTS int64
	first := true

	for r.cursors.Len() > 0 {
		if r.shutdown.Load() {
			break
		}

		top := r.cursors[0]
		key := top.currentKey()

		if first {
			startRecordTS = key.TimestampNS
			startLocalTS = r.clock.NowMonotonicNS()
			first = false
		} else {
			expectedElapsed := time.Duration(float64(key.TimestampNS-startRecordTS) / rate)
			targetLocal := startLocalTS + expectedElapsed.Nanoseconds()
			remaining := time.Duration(targetLocal - r.clock.NowMonotonicNS())
			if remaining > 10*time.Microsecond {
				time.Sleep(remaining)
			}
		}

		if err := top.publish(top.entries[top.idx].Value); err != nil {
			log.Printf("replayer: deserialization failed for %s, skipping message: %v", top.channel.Tag, err)
		}

		top.idx++
		if top.idx < len(top.entries) {
			heap.Fix(&r.cursors, 0)
		} else {
			heap.Pop(&r.cursors)
		}
	}

	if r.PreFinish != nil {
		r.PreFinish()
	}
	if r.PostFinish != nil {
		r.PostFinish()
	}
	r.ended.Store(true)
}

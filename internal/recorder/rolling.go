package recorder

import (
	"log"
	"time"

	"github.com/dustin/go-humanize"
)

// RollMeta is the bookkeeping RollingHelper needs to decide and track
// rolling.
type RollMeta struct {
	Now       time.Time
	ValueSize int64
}

// RollingHelper decides when the current segment should be closed in favor
// of a new one, and generates the new segment's directory name.
type RollingHelper interface {
	NeedToRoll(meta RollMeta) bool
	Update(meta RollMeta)
	Reset()
	// MakeNewRecordDirName defers to a caller-supplied path generator,
	// letting the Recorder control directory naming conventions while the
	// helper only decides *when* to roll.
	MakeNewRecordDirName(generator func() string) string
}

// NoneRolling never rolls.
type NoneRolling struct{}

func (NoneRolling) NeedToRoll(RollMeta) bool                            { return false }
func (NoneRolling) Update(RollMeta)                                     {}
func (NoneRolling) Reset()                                              {}
func (NoneRolling) MakeNewRecordDirName(gen func() string) string       { return gen() }

// dayHourRolling backs both ByDay and ByHour: it computes the next UTC
// boundary (day or hour) plus a small offset and rolls once now reaches it.
type dayHourRolling struct {
	boundary    func(time.Time) time.Time
	offset      time.Duration
	nextRollout time.Time
}

// NewByDayRolling rolls at each UTC day boundary plus a 60s offset.
func NewByDayRolling() RollingHelper {
	r := &dayHourRolling{
		boundary: func(t time.Time) time.Time {
			d := t.UTC()
			return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, time.UTC)
		},
		offset: 60 * time.Second,
	}
	r.Reset()
	return r
}

// NewByHourRolling rolls at each UTC hour boundary plus a 60s offset.
func NewByHourRolling() RollingHelper {
	r := &dayHourRolling{
		boundary: func(t time.Time) time.Time {
			d := t.UTC()
			return time.Date(d.Year(), d.Month(), d.Day(), d.Hour()+1, 0, 0, 0, time.UTC)
		},
		offset: 60 * time.Second,
	}
	r.Reset()
	return r
}

func (r *dayHourRolling) NeedToRoll(meta RollMeta) bool {
	return !meta.Now.Before(r.nextRollout)
}

func (r *dayHourRolling) Update(RollMeta) {}

func (r *dayHourRolling) Reset() {
	r.nextRollout = r.boundary(time.Now()).Add(r.offset)
}

func (r *dayHourRolling) MakeNewRecordDirName(gen func() string) string {
	return gen()
}

// BySizeRolling rolls once the current segment's cumulative bytes would
// reach or exceed limitBytes, or immediately for a single oversized value.
type BySizeRolling struct {
	limitBytes   int64
	currentBytes int64
}

// NewBySizeRolling rolls when the segment would reach limitBytes.
func NewBySizeRolling(limitBytes int64) *BySizeRolling {
	return &BySizeRolling{limitBytes: limitBytes}
}

func (r *BySizeRolling) NeedToRoll(meta RollMeta) bool {
	if meta.ValueSize >= r.limitBytes {
		return true
	}
	return r.currentBytes+meta.ValueSize >= r.limitBytes
}

func (r *BySizeRolling) Update(meta RollMeta) {
	r.currentBytes += meta.ValueSize
}

func (r *BySizeRolling) Reset() {
	log.Printf("recorder: rolling segment at %s", humanize.Bytes(uint64(r.currentBytes)))
	r.currentBytes = 0
}

func (r *BySizeRolling) MakeNewRecordDirName(gen func() string) string {
	return gen()
}

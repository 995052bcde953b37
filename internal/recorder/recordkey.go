// Package recorder implements the durable ordered-log facility: RecordKey
// encoding, rolling policies, RecordFile segments, the Recorder subscriber,
// and the Replayer.
package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"

	"github.com/cyfitech/corebus/internal/clock"
)

// RecordKey is a monotone ordered key: a clock timestamp paired with a
// tiebreak counter so keys generated within the same process are strictly
// increasing even when the clock's resolution collapses adjacent calls.
type RecordKey struct {
	TimestampNS int64
	Count       uint64
}

var keyPattern = regexp.MustCompile(`^T(\d{20})ns(\d{20})$`)

// ToBytes renders the canonical primary encoding: "T" + 20-digit decimal
// timestamp (clamped to >=0) + "ns" + 20-digit decimal count. Lexicographic
// comparison of this encoding matches (max(timestamp_ns, 0), count) order.
func (k RecordKey) ToBytes() []byte {
	ts := k.TimestampNS
	if ts < 0 {
		ts = 0
	}
	return []byte(fmt.Sprintf("T%020dns%020d", ts, k.Count))
}

// FromBytes decodes the canonical primary encoding, failing on any shape
// mismatch.
func FromBytes(b []byte) (RecordKey, error) {
	m := keyPattern.FindSubmatch(b)
	if m == nil {
		return RecordKey{}, fmt.Errorf("recordkey: malformed key %q", b)
	}
	ts, err := strconv.ParseInt(string(m[1]), 10, 64)
	if err != nil {
		return RecordKey{}, fmt.Errorf("recordkey: bad timestamp in %q: %w", b, err)
	}
	count, err := strconv.ParseUint(string(m[2]), 10, 64)
	if err != nil {
		return RecordKey{}, fmt.Errorf("recordkey: bad count in %q: %w", b, err)
	}
	return RecordKey{TimestampNS: ts, Count: count}, nil
}

// legacyKeyLen is the width of the raw struct reinterpretation: an int64
// timestamp followed by a uint64 counter, both little-endian.
const legacyKeyLen = 16

// FromBytesLegacy reinterprets the first 16 bytes of b as the raw
// little-endian {timestamp_ns, count} struct. It exists solely so a segment
// that can't be opened with the primary codec can still be read.
func FromBytesLegacy(b []byte) (RecordKey, error) {
	if len(b) < legacyKeyLen {
		return RecordKey{}, fmt.Errorf("recordkey: legacy key too short: %d bytes", len(b))
	}
	ts := int64(binary.LittleEndian.Uint64(b[0:8]))
	count := binary.LittleEndian.Uint64(b[8:16])
	return RecordKey{TimestampNS: ts, Count: count}, nil
}

// ToBytesLegacy is FromBytesLegacy's encoder, the counterpart needed to
// fabricate a pre-existing legacy segment (tests; a one-off migration tool).
// Nothing in normal operation writes this layout going forward.
func (k RecordKey) ToBytesLegacy() []byte {
	b := make([]byte, legacyKeyLen)
	binary.LittleEndian.PutUint64(b[0:8], uint64(k.TimestampNS))
	binary.LittleEndian.PutUint64(b[8:16], k.Count)
	return b
}

// Compare orders a and b by their canonical encoded bytes: primary order by
// timestamp, tiebreak by count.
func Compare(a, b RecordKey) int {
	return bytes.Compare(a.ToBytes(), b.ToBytes())
}

// counterSlots implements the 16-slot (timestamp_ns & 0xF) atomic counter
// array used by Make to guarantee strict monotonicity under clock-
// resolution collapse.
var counterSlots [16]atomic.Uint64

// Make mints a fresh RecordKey from the current monotonic clock reading,
// using the timestamp's low 4 bits to pick one of 16 independent counters
// and atomically incrementing it.
func Make(c clock.Clock) RecordKey {
	ts := c.NowMonotonicNS()
	slot := &counterSlots[ts&0xF]
	count := slot.Add(1) - 1
	return RecordKey{TimestampNS: ts, Count: count}
}

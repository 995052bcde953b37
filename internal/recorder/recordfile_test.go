package recorder

import (
	"path/filepath"
	"testing"

	"github.com/cyfitech/corebus/internal/clock"
	"github.com/cyfitech/corebus/internal/fsutil"
	"github.com/cyfitech/corebus/internal/kvstore"
)

func TestRecordFileWriteAndIterateOrdered(t *testing.T) {
	dir := t.TempDir()
	n := 0
	f := NewRecordFile(func() string {
		n++
		return filepath.Join(dir, "seg")
	}, "", NoneRolling{}, clock.Default)

	if err := f.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	values := []string{"a", "b", "c", "d", "e"}
	for _, v := range values {
		if err := f.Write([]byte(v)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	entries, err := f.Iterate()
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(entries) != len(values) {
		t.Fatalf("expected %d entries, got %d", len(values), len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			t.Fatalf("entries not in increasing key order at %d", i)
		}
	}
	for i, e := range entries {
		if string(e.Value) != values[i] {
			t.Fatalf("value mismatch at %d: got %s want %s", i, e.Value, values[i])
		}
	}
}

func TestRecordFileEmptyRemovedOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg")
	f := NewRecordFile(func() string { return path }, "", NoneRolling{}, clock.Default)
	if err := f.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	empty, err := fsutil.IsEmptyDir(path)
	if err != nil {
		t.Fatalf("check dir: %v", err)
	}
	if !empty {
		t.Fatalf("expected directory removed or empty after closing an empty segment")
	}
}

func TestRecordFileRollsBySize(t *testing.T) {
	dir := t.TempDir()
	i := 0
	f := NewRecordFile(func() string {
		i++
		return filepath.Join(dir, "seg", string(rune('0'+i)))
	}, "", NewBySizeRolling(10), clock.Default)
	if err := f.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	firstPath := f.GetFilePath()
	if err := f.Write([]byte("12345678901234")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f.GetFilePath() == firstPath {
		t.Fatalf("expected oversized single value to roll to a new segment")
	}
}

// TestRecordFileFallsBackToLegacyComparator fabricates a segment the way an
// older run under the legacy comparator would have left it on disk, then
// opens it through the normal RecordFile.Open path and confirms the
// comparator-mismatch fallback actually triggers: f.legacy is set, and
// Iterate decodes entries through the legacy codec in the correct
// chronological order (which raw byte order would get wrong, since the
// legacy layout stores its timestamp little-endian).
func TestRecordFileFallsBackToLegacyComparator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seg")

	legacyStore, err := kvstore.Open(path, kvstore.OpenOptions{
		CreateIfMissing: true,
		Comparator:      legacyCompare,
		ComparatorName:  legacyComparatorName,
	})
	if err != nil {
		t.Fatalf("open legacy segment: %v", err)
	}
	keys := []RecordKey{
		{TimestampNS: 100, Count: 0},
		{TimestampNS: 300, Count: 0},
		{TimestampNS: 1 << 40, Count: 0}, // large enough that byte order and numeric order diverge
	}
	for i, k := range keys {
		if err := legacyStore.Put(k.ToBytesLegacy(), []byte{byte(i)}); err != nil {
			t.Fatalf("put legacy entry: %v", err)
		}
	}
	if err := legacyStore.Close(); err != nil {
		t.Fatalf("close legacy segment: %v", err)
	}

	f := NewRecordFile(func() string { return path }, "", NoneRolling{}, clock.Default)
	if err := f.Open(); err != nil {
		t.Fatalf("open via RecordFile: %v", err)
	}
	defer f.Close()

	if !f.legacy {
		t.Fatalf("expected RecordFile to detect and fall back to the legacy comparator")
	}

	entries, err := f.Iterate()
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(entries) != len(keys) {
		t.Fatalf("expected %d entries, got %d", len(keys), len(entries))
	}
	for i, e := range entries {
		if e.Key.TimestampNS != keys[i].TimestampNS {
			t.Fatalf("entry %d: expected timestamp %d, got %d (legacy decode/order wrong)", i, keys[i].TimestampNS, e.Key.TimestampNS)
		}
		if e.Value[0] != byte(i) {
			t.Fatalf("entry %d: expected value %d, got %d", i, i, e.Value[0])
		}
	}
}

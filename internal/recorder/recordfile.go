package recorder

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/cyfitech/corebus/internal/clock"
	"github.com/cyfitech/corebus/internal/fsutil"
	"github.com/cyfitech/corebus/internal/kvstore"
)

// legacyComparatorName identifies legacyCompare to kvstore.Open, so a
// segment actually created under the legacy comparator is the only thing
// that triggers the fallback below; any other open failure propagates as a
// genuine error instead of being masked by a blind retry.
const legacyComparatorName = "legacy"

// RecordFile is one ordered-log segment over a KvStore, with open/close and
// policy-driven rolling into successive segment directories.
type RecordFile struct {
	pathGen  func() string
	linkName string
	rolling  RollingHelper
	clock    clock.Clock

	path  string
	store kvstore.KvStore
	legacy bool
	linkCreated bool
}

// NewRecordFile creates a RecordFile that will generate segment paths via
// pathGen. linkName, if non-empty, names a symlink created alongside the
// first segment, pointing at the segment's own directory name.
func NewRecordFile(pathGen func() string, linkName string, rolling RollingHelper, c clock.Clock) *RecordFile {
	if rolling == nil {
		rolling = NoneRolling{}
	}
	return &RecordFile{pathGen: pathGen, linkName: linkName, rolling: rolling, clock: c}
}

// Open opens the first segment.
func (f *RecordFile) Open() error {
	path := f.rolling.MakeNewRecordDirName(f.pathGen)
	return f.openAt(path)
}

func (f *RecordFile) openAt(path string) error {
	store, err := kvstore.Open(path, kvstore.OpenOptions{CreateIfMissing: true})
	if errors.Is(err, kvstore.ErrComparatorMismatch) {
		// The segment at path was created under a comparator other than the
		// default, which in practice only happens for a segment this code
		// itself created under the legacy comparator in an earlier run.
		store, err = kvstore.Open(path, kvstore.OpenOptions{
			CreateIfMissing: true,
			Comparator:      legacyCompare,
			ComparatorName:  legacyComparatorName,
		})
		if err != nil {
			return fmt.Errorf("recordfile: open %s under legacy comparator: %w", path, err)
		}
		f.legacy = true
		log.Printf("recordfile: opened %s under legacy comparator fallback", path)
	} else if err != nil {
		return fmt.Errorf("recordfile: open %s: %w", path, err)
	}

	f.path = path
	f.store = store

	if f.linkName != "" && !f.linkCreated {
		linkPath := filepath.Join(filepath.Dir(path), f.linkName)
		if err := fsutil.CreateSymlink(filepath.Base(path), linkPath); err != nil {
			log.Printf("recordfile: symlink creation failed: %v", err)
		}
		f.linkCreated = true
	}
	return nil
}

func legacyCompare(a, b []byte) int {
	ka, errA := FromBytesLegacy(a)
	kb, errB := FromBytesLegacy(b)
	if errA != nil || errB != nil {
		return 0
	}
	return Compare(ka, kb)
}

// IsOpen reports whether the current segment has a live KvStore handle.
func (f *RecordFile) IsOpen() bool { return f.store != nil }

// GetFilePath returns the current segment's directory path.
func (f *RecordFile) GetFilePath() string { return f.path }

// Write mints a fresh key, rolls the segment if the policy says to, and
// writes value under that key.
func (f *RecordFile) Write(value []byte) error {
	return f.WriteAt(Make(f.clock), value)
}

// WriteAt writes value under an explicit key, used by the replayer-adjacent
// tests and any caller that must control key assignment directly.
func (f *RecordFile) WriteAt(key RecordKey, value []byte) error {
	if f.store == nil {
		return fmt.Errorf("recordfile: write to unopened segment %s", f.path)
	}

	meta := RollMeta{Now: time.Now(), ValueSize: int64(len(value))}
	if f.rolling.NeedToRoll(meta) {
		if err := f.roll(); err != nil {
			return err
		}
	}

	if err := f.store.Put(key.ToBytes(), value); err != nil {
		return fmt.Errorf("recordfile: write to %s: %w", f.path, err)
	}
	f.rolling.Update(meta)
	return nil
}

func (f *RecordFile) roll() error {
	if err := f.closeCurrent(); err != nil {
		return err
	}
	f.rolling.Reset()
	return f.openAt(f.rolling.MakeNewRecordDirName(f.pathGen))
}

func (f *RecordFile) closeCurrent() error {
	if f.store == nil {
		return nil
	}
	empty, _ := f.Empty()
	if err := f.store.Close(); err != nil {
		return fmt.Errorf("recordfile: close %s: %w", f.path, err)
	}
	f.store = nil
	if empty {
		if err := fsutil.RemoveAll(f.path); err != nil {
			log.Printf("recordfile: failed to remove empty segment %s: %v", f.path, err)
		}
	}
	return nil
}

// Close closes the current segment, removing its directory if it ended up
// empty.
func (f *RecordFile) Close() error {
	return f.closeCurrent()
}

// Empty reports whether the current segment holds any entries.
func (f *RecordFile) Empty() (bool, error) {
	if f.store == nil {
		return true, nil
	}
	it, err := f.store.NewIterator()
	if err != nil {
		return false, err
	}
	defer it.Close()
	it.SeekToFirst()
	return !it.Valid(), nil
}

// Compact coalesces on-disk state; called once at final close.
func (f *RecordFile) Compact() error {
	if f.store == nil {
		return nil
	}
	return f.store.CompactRange()
}

// RecordEntry is one decoded (key, value) pair yielded by Iterate.
type RecordEntry struct {
	Key   RecordKey
	Value []byte
}

// Iterate returns every entry in the current segment in ascending key
// order, decoding keys via the legacy codec if the segment was opened
// under the legacy comparator fallback.
func (f *RecordFile) Iterate() ([]RecordEntry, error) {
	if f.store == nil {
		return nil, nil
	}
	it, err := f.store.NewIterator()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var entries []RecordEntry
	for it.SeekToFirst(); it.Valid(); it.Next() {
		var key RecordKey
		var decodeErr error
		if f.legacy {
			key, decodeErr = FromBytesLegacy(it.Key())
		} else {
			key, decodeErr = FromBytes(it.Key())
		}
		if decodeErr != nil {
			log.Printf("recordfile: skipping undecodable key in %s: %v", f.path, decodeErr)
			continue
		}
		value := append([]byte(nil), it.Value()...)
		entries = append(entries, RecordEntry{Key: key, Value: value})
	}
	return entries, nil
}

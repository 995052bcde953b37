// Package kvstore implements the KvStore capability (spec §6) on top of
// modernc.org/sqlite, the pure-Go embedded engine used throughout this
// module's storage layer in place of the source's leveldb dependency.
package kvstore

import "errors"

// Iterator walks key-sorted entries starting from the first key.
type Iterator interface {
	SeekToFirst()
	Valid() bool
	Key() []byte
	Value() []byte
	Next()
	Close() error
}

// Comparator orders two encoded keys. NewIterator sorts every row through
// this function rather than relying on the database's own byte ordering, so
// a segment whose keys aren't naturally byte-ordered (the legacy RecordKey
// layout isn't) still iterates correctly.
type Comparator func(a, b []byte) int

// DefaultComparatorName identifies bytes.Compare, the comparator Open uses
// when OpenOptions.Comparator is nil.
const DefaultComparatorName = "primary"

// OpenOptions configures Open. Comparator, if non-nil, must be paired with
// ComparatorName identifying it; Open records the name on first creation and
// rejects a later Open under a different name with ErrComparatorMismatch,
// the same way the original store's embedded comparator metadata would.
type OpenOptions struct {
	CreateIfMissing bool
	Comparator      Comparator
	ComparatorName  string
}

// ErrComparatorMismatch is returned by Open when a store already exists on
// disk under a comparator name different from the one requested. Callers
// (RecordFile) use this to decide whether to retry the open under a
// different comparator, rather than treating every open failure as grounds
// for a blind fallback.
var ErrComparatorMismatch = errors.New("kvstore: segment was created with a different comparator")

// KvStore is the capability surface the Recorder/Replayer consume. A single
// KvStore instance owns one on-disk segment directory.
type KvStore interface {
	Put(key, value []byte) error
	NewIterator() (Iterator, error)
	CompactRange() error
	Close() error
}

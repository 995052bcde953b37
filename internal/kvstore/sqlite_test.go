package kvstore

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestSqliteStorePutAndIterateOrdered(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "seg.ldb"), OpenOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	keys := [][]byte{[]byte("b"), []byte("a"), []byte("c")}
	for _, k := range keys {
		if err := store.Put(k, []byte("v-"+string(k))); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	it, err := store.NewIterator()
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	defer it.Close()

	it.SeekToFirst()
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSqliteStorePutOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "seg.ldb"), OpenOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := store.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("put: %v", err)
	}

	it, err := store.NewIterator()
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	defer it.Close()
	it.SeekToFirst()
	if !it.Valid() {
		t.Fatalf("expected one row")
	}
	if string(it.Value()) != "v2" {
		t.Fatalf("expected overwritten value v2, got %s", it.Value())
	}
	it.Next()
	if it.Valid() {
		t.Fatalf("expected exactly one row")
	}
}

func TestSqliteStoreCompactRange(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "seg.ldb"), OpenOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := store.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.CompactRange(); err != nil {
		t.Fatalf("compact: %v", err)
	}
}

func TestSqliteStoreRejectsReopenUnderDifferentComparator(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "seg.ldb")

	store, err := Open(dir, OpenOptions{CreateIfMissing: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = Open(dir, OpenOptions{
		CreateIfMissing: true,
		Comparator:      func(a, b []byte) int { return bytes.Compare(a, b) },
		ComparatorName:  "legacy",
	})
	if !errors.Is(err, ErrComparatorMismatch) {
		t.Fatalf("expected ErrComparatorMismatch, got %v", err)
	}
}

func TestSqliteStoreOrdersByComparatorNotRawBytes(t *testing.T) {
	dir := t.TempDir()
	// A comparator that reverses the usual byte order: whatever sorts last
	// lexicographically should come first through the iterator.
	reverse := func(a, b []byte) int { return bytes.Compare(b, a) }

	store, err := Open(filepath.Join(dir, "seg.ldb"), OpenOptions{
		CreateIfMissing: true,
		Comparator:      reverse,
		ComparatorName:  "reverse",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	for _, k := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
		if err := store.Put(k, k); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	it, err := store.NewIterator()
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	defer it.Close()

	it.SeekToFirst()
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

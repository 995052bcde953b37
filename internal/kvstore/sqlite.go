package kvstore

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

// sqliteStore is a KvStore backed by a single-table sqlite database file,
// grounded in the store.Store pattern of opening modernc.org/sqlite via
// database/sql and migrating a schema on first open.
type sqliteStore struct {
	db   *sql.DB
	path string
	cmp  Comparator
}

const schema = `CREATE TABLE IF NOT EXISTS kv (
	k BLOB PRIMARY KEY,
	v BLOB NOT NULL
);`

const metaSchema = `CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Open creates (if missing and requested) and opens a KvStore rooted at
// path. The directory is created with CreateDirAll semantics so callers
// don't need a separate filesystem capability call for the common case.
//
// The comparator a store was created under is recorded in store_meta on
// first open. A later Open under a different comparator name fails with
// ErrComparatorMismatch instead of silently reordering or corrupting the
// segment's apparent order.
func Open(path string, opts OpenOptions) (KvStore, error) {
	if opts.CreateIfMissing {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("kvstore: create dir %s: %w", path, err)
		}
	}

	cmp := opts.Comparator
	name := opts.ComparatorName
	if cmp == nil {
		cmp = bytes.Compare
		name = DefaultComparatorName
	}
	if name == "" {
		return nil, fmt.Errorf("kvstore: ComparatorName is required when Comparator is set")
	}

	dbFile := filepath.Join(path, "data.sqlite")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", dbFile, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: migrate %s: %w", dbFile, err)
	}
	if _, err := db.Exec(metaSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: migrate %s: %w", dbFile, err)
	}

	var stored string
	switch err := db.QueryRow(`SELECT value FROM store_meta WHERE key = 'comparator'`).Scan(&stored); err {
	case sql.ErrNoRows:
		if _, err := db.Exec(`INSERT INTO store_meta (key, value) VALUES ('comparator', ?)`, name); err != nil {
			db.Close()
			return nil, fmt.Errorf("kvstore: record comparator for %s: %w", dbFile, err)
		}
	case nil:
		if stored != name {
			db.Close()
			return nil, fmt.Errorf("kvstore: %s was created with comparator %q, got %q: %w", dbFile, stored, name, ErrComparatorMismatch)
		}
	default:
		db.Close()
		return nil, fmt.Errorf("kvstore: read comparator for %s: %w", dbFile, err)
	}

	return &sqliteStore{db: db, path: path, cmp: cmp}, nil
}

func (s *sqliteStore) Put(key, value []byte) error {
	_, err := s.db.Exec(`INSERT INTO kv (k, v) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, value)
	if err != nil {
		return fmt.Errorf("kvstore: put into %s: %w", s.path, err)
	}
	return nil
}

// NewIterator reads every row and sorts it through the store's comparator in
// Go, rather than delegating ordering to SQL. A plain `ORDER BY k ASC` would
// be wrong for the legacy comparator: the legacy RecordKey layout stores its
// timestamp little-endian, so raw byte order and chronological order
// disagree for it. Sorting via s.cmp keeps both comparators correct.
func (s *sqliteStore) NewIterator() (Iterator, error) {
	rows, err := s.db.Query(`SELECT k, v FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("kvstore: iterate %s: %w", s.path, err)
	}

	var entries []kvEntry
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("kvstore: scan %s: %w", s.path, err)
		}
		entries = append(entries, kvEntry{key: k, value: v})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("kvstore: iterate %s: %w", s.path, err)
	}
	rows.Close()

	sort.Slice(entries, func(i, j int) bool { return s.cmp(entries[i].key, entries[j].key) < 0 })

	return &sqliteIterator{entries: entries, idx: -1}, nil
}

func (s *sqliteStore) CompactRange() error {
	_, err := s.db.Exec(`VACUUM`)
	if err != nil {
		return fmt.Errorf("kvstore: compact %s: %w", s.path, err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type kvEntry struct {
	key   []byte
	value []byte
}

// sqliteIterator walks an already-sorted, fully-materialized slice. Segments
// read by this store are bounded closed logs, not live streams, so reading
// everything up front costs nothing a later full Iterate() call wouldn't
// have paid anyway, and it's what lets ordering be comparator-driven instead
// of SQL-driven.
type sqliteIterator struct {
	entries []kvEntry
	idx     int
}

func (it *sqliteIterator) SeekToFirst() { it.idx = 0 }

func (it *sqliteIterator) Valid() bool { return it.idx >= 0 && it.idx < len(it.entries) }
func (it *sqliteIterator) Key() []byte { return it.entries[it.idx].key }
func (it *sqliteIterator) Value() []byte { return it.entries[it.idx].value }
func (it *sqliteIterator) Next()        { it.idx++ }
func (it *sqliteIterator) Close() error { return nil }

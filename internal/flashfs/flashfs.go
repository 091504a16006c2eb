// Package flashfs defines the flight computer's view of its flash storage
// and provides a concrete implementation backed by go.etcd.io/bbolt.
//
// spec.md explicitly places the log-structured filesystem out of core
// scope: "consumed as an opaque file store offering create/open/seek/read
// /write/sync/remove and directory listing". FS is that interface; DB is
// the bbolt-backed stand-in used by tests, flightsim, and any deployment
// that does not have the real board's littlefs driver wired in —
// generalizing the teacher's storage.DB (one BoltDB file, ACID
// transactions standing in for fsync, CRC-verified on open) from an audit
// ledger to a flat file store.
package flashfs

import (
	"bytes"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// FS is the external collaborator contract the Recorder (C8) and Config
// store (C10) depend on. Implementations need not be POSIX-faithful; they
// only need the operations below.
type FS interface {
	// Create truncates (or creates) name and opens it for writing.
	Create(name string) (File, error)
	// Open opens an existing file for reading.
	Open(name string) (File, error)
	// Remove deletes name. Not an error if it does not exist.
	Remove(name string) error
	// List returns, sorted, the names of all files whose name starts with
	// dir, including files in nested directories.
	List(dir string) ([]string, error)
}

// File is a single open flash file. Writes are append-only from the
// Recorder's perspective (it always writes at the current end), but Seek
// is exposed because spec.md §3 names it as part of the collaborator
// contract (e.g. for the CLI's out-of-scope flight_dump to seek within a
// closed file).
type File interface {
	Write(p []byte) (n int, err error)
	Read(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Sync() error
	Close() error
}

const bucketFiles = "files" // bucketFiles/<name> -> one bolt bucket of page records
const bucketMeta = "meta"

// DB is a bbolt-backed FS. One bbolt bucket per flash file; each file's
// bytes are stored as a sequence of fixed-size page records keyed by
// big-endian page index, so that appends translate to cheap Put calls and
// Tx.Commit gives the durability spec.md §4.8 asks of an explicit fsync.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt-backed flash store at path.
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("flashfs.Open(%q): %w", path, err)
	}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketFiles))
		if err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists([]byte(bucketMeta))
		return err
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("flashfs.Open(%q): init buckets: %w", path, err)
	}
	return &DB{db: bdb}, nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Create(name string) (File, error) {
	if err := d.Remove(name); err != nil {
		return nil, err
	}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(bucketFiles))
		_, err := files.CreateBucketIfNotExists([]byte(name))
		return err
	}); err != nil {
		return nil, fmt.Errorf("flashfs.Create(%q): %w", name, err)
	}
	return &dbFile{db: d.db, name: name}, nil
}

func (d *DB) Open(name string) (File, error) {
	var exists bool
	_ = d.db.View(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(bucketFiles))
		exists = files.Bucket([]byte(name)) != nil
		return nil
	})
	if !exists {
		return nil, fmt.Errorf("flashfs.Open(%q): not found", name)
	}
	return &dbFile{db: d.db, name: name}, nil
}

func (d *DB) Remove(name string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(bucketFiles))
		if files.Bucket([]byte(name)) == nil {
			return nil
		}
		return files.DeleteBucket([]byte(name))
	})
}

func (d *DB) List(dir string) ([]string, error) {
	var names []string
	err := d.db.View(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(bucketFiles))
		return files.ForEach(func(name, v []byte) error {
			if v != nil {
				return nil // not a sub-bucket (shouldn't happen in bucketFiles)
			}
			if bytes.HasPrefix(name, []byte(dir)) {
				names = append(names, string(name))
			}
			return nil
		})
	})
	sort.Strings(names)
	return names, err
}

// PutBlob/GetBlob back the single-shot blobs named in spec.md §6
// (/flight_counter, /cats_config), which are too small to need the paged
// file representation.
func (d *DB) PutBlob(name string, data []byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		return meta.Put([]byte(name), data)
	})
}

func (d *DB) GetBlob(name string) ([]byte, bool) {
	var out []byte
	_ = d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte(name))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil
}

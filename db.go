// Package embracedb is an embedded, single-process, crash-safe key-value
// storage engine. Mutations are journaled to a write-ahead log before
// they touch the in-memory B+Tree index, and periodic snapshots bound
// recovery time by letting the log be truncated.
package embracedb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"embracedb/internal/base"
	"embracedb/internal/btree"
	"embracedb/internal/cache"
	"embracedb/internal/snapshot"
	"embracedb/internal/wal"
)

const (
	// MaxKeySize is the maximum length of a key, in bytes.
	MaxKeySize = base.MaxKeySize

	// MaxValueSize is the maximum length of a value, in bytes.
	MaxValueSize = base.MaxValueSize
)

// DB binds the in-memory tree to a WAL path and enforces the
// write-ahead, checkpoint, and recovery protocol. One DB owns its WAL
// file for appending and its snapshot path for publish-by-rename.
//
// Public calls are serialized by an internal mutex, but a DB is designed
// for a single caller: there is no MVCC and no internal background work.
type DB struct {
	mu  sync.Mutex
	log Logger

	store *btree.BTree
	vc    *cache.ValueCache // nil when disabled

	// wal and snap are nil when no WAL path is configured.
	walPath string
	wal     *wal.Writer
	snap    *snapshot.Snapshotter

	recovering         bool
	opCount            uint64
	checkpointInterval uint64
	walBufferSize      int
	closed             bool
}

// Open creates an engine. An empty path disables durability entirely:
// no WAL is written and checkpoints are no-ops. With a path, the WAL
// lives at path and the snapshot at path+".snapshot"; call
// RecoverFromWAL before the first write to load any prior state.
//
// A WAL open failure does not fail Open: it is logged, and every
// mutating call returns the I/O error until a checkpoint manages to
// reopen the file.
func Open(path string, options ...Option) (*DB, error) {
	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}

	if opts.maxDegree < base.MinMaxDegree {
		return nil, fmt.Errorf("max degree %d below minimum %d", opts.maxDegree, base.MinMaxDegree)
	}

	d := &DB{
		log:                opts.logger,
		store:              btree.New(opts.maxDegree),
		walPath:            path,
		checkpointInterval: opts.checkpointInterval,
		walBufferSize:      opts.walBufferSize,
	}

	if opts.cacheSize > 0 {
		vc, err := cache.New(uint32(opts.cacheSize))
		if err != nil {
			return nil, fmt.Errorf("create value cache: %w", err)
		}
		d.vc = vc
	}

	if path != "" {
		w, err := wal.NewWriter(path, opts.walBufferSize)
		if err != nil {
			d.log.Error("failed to open WAL, durability disabled", "path", path, "error", err)
		} else {
			d.log.Info("WAL opened", "path", path)
		}
		d.wal = w
		d.snap = snapshot.New(path + ".snapshot")
	}

	return d, nil
}

// Get returns the value stored under key, or ErrKeyNotFound. The
// returned slice is owned by the engine and must not be modified.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDatabaseClosed
	}

	if d.vc != nil {
		if value, ok := d.vc.Get(key); ok {
			return value, nil
		}
	}

	value, ok := d.store.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if d.vc != nil {
		d.vc.Put(bytes.Clone(key), value)
	}
	return value, nil
}

// Put inserts key/value, overwriting any existing value. The WAL record
// is appended and only then the tree is mutated; a failed append leaves
// the tree unchanged.
func (d *DB) Put(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	return d.put(bytes.Clone(key), bytes.Clone(value))
}

func (d *DB) put(key, value []byte) error {
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	if len(value) > MaxValueSize {
		return ErrValueTooLarge
	}

	if d.wal != nil && !d.recovering {
		if err := d.wal.WritePut(key, value); err != nil {
			return err
		}
	}

	d.store.Put(key, value)
	if d.vc != nil {
		d.vc.Put(key, value)
	}
	d.finishMutation()
	return nil
}

// Update overwrites the value of an existing key, or returns
// ErrKeyNotFound without creating it.
func (d *DB) Update(key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	return d.update(bytes.Clone(key), bytes.Clone(value))
}

func (d *DB) update(key, value []byte) error {
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	if len(value) > MaxValueSize {
		return ErrValueTooLarge
	}

	// Probe before journaling: a NotFound must not leave an UPDATE record
	// behind, or replay would resurrect the key via the upgrade-to-put
	// policy and recovery would no longer mirror the live tree.
	if _, ok := d.store.Get(key); !ok {
		return ErrKeyNotFound
	}

	if d.wal != nil && !d.recovering {
		if err := d.wal.WriteUpdate(key, value); err != nil {
			return err
		}
	}

	if err := d.store.Update(key, value); err != nil {
		return err
	}
	if d.vc != nil {
		d.vc.Put(key, value)
	}
	d.finishMutation()
	return nil
}

// Delete erases key, or returns ErrKeyNotFound.
func (d *DB) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	return d.remove(key)
}

func (d *DB) remove(key []byte) error {
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}

	if _, ok := d.store.Get(key); !ok {
		return ErrKeyNotFound
	}

	if d.wal != nil && !d.recovering {
		if err := d.wal.WriteDelete(key); err != nil {
			return err
		}
	}

	if err := d.store.Remove(key); err != nil {
		return err
	}
	if d.vc != nil {
		d.vc.Remove(key)
	}
	d.finishMutation()
	return nil
}

// IterateAll visits every key/value pair in ascending key order.
func (d *DB) IterateAll(visit func(key, value []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.store.IterateAll(visit)
}

// FlushWAL flushes the WAL buffer and syncs it to durable storage. This
// is the durability point for everything written so far.
func (d *DB) FlushWAL() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	if d.wal == nil {
		return nil
	}
	return d.wal.Sync()
}

// SetCheckpointInterval enables auto-checkpointing every n mutations.
// Zero disables it.
func (d *DB) SetCheckpointInterval(n uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.checkpointInterval = n
}

// finishMutation advances the operation counter and fires the
// auto-checkpoint when the interval elapses. Checkpoint failures are
// logged, never surfaced to the mutating call.
func (d *DB) finishMutation() {
	if d.recovering {
		return
	}
	d.opCount++
	if d.checkpointInterval > 0 && d.opCount%d.checkpointInterval == 0 {
		if err := d.createCheckpoint(); err != nil {
			d.log.Error("auto checkpoint failed", "error", err)
		}
	}
}

// CreateCheckpoint publishes a fresh snapshot, then truncates the WAL.
// The snapshot is durably published before the log is touched, so a
// crash at any point leaves a recoverable pair of files.
func (d *DB) CreateCheckpoint() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	return d.createCheckpoint()
}

func (d *DB) createCheckpoint() error {
	if d.snap == nil {
		return nil
	}

	if err := d.snap.Create(d.store); err != nil {
		return err
	}
	d.log.Info("snapshot published", "path", d.snap.Path(), "entries", d.store.Len())

	if d.wal == nil {
		return nil
	}

	// Drain the buffer before dropping the file; best-effort, since the
	// snapshot already covers everything the log held.
	if err := d.wal.Sync(); err != nil {
		d.log.Warn("wal sync before truncate failed", "error", err)
	}

	if err := d.wal.Close(); err != nil {
		d.log.Warn("wal close before truncate failed", "error", err)
	}
	if err := os.Truncate(d.walPath, 0); err != nil && !os.IsNotExist(err) {
		d.log.Error("wal truncate failed", "path", d.walPath, "error", err)
	}

	w, err := wal.NewWriter(d.walPath, d.walBufferSize)
	if err != nil {
		d.log.Error("failed to reopen WAL after checkpoint", "path", d.walPath, "error", err)
	}
	d.wal = w

	if err == nil {
		if err := d.wal.WriteCheckpoint(); err != nil {
			d.log.Warn("failed to append checkpoint marker", "error", err)
		}
	}
	return nil
}

// RecoverFromWAL rebuilds the tree from the snapshot (if any) and the
// WAL. Replay reuses the normal mutation path with the write-through
// suppressed, so recovered state is indistinguishable from state built
// by live calls. Safe to repeat; each run rebuilds the same mapping.
func (d *DB) RecoverFromWAL() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	if d.walPath == "" {
		return nil
	}

	d.recovering = true
	defer func() { d.recovering = false }()

	d.store = btree.New(d.store.MaxDegree())
	if d.vc != nil {
		d.vc.Purge()
	}

	if err := d.snap.Load(func(key, value []byte) error {
		return d.put(key, value)
	}); err != nil {
		return err
	}

	r, err := wal.NewReader(d.walPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open wal for replay: %w", err)
	}
	defer r.Close()

	replayed := 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch rec.Type {
		case wal.RecordPut:
			err = d.put(rec.Key, rec.Value)
		case wal.RecordUpdate:
			err = d.update(rec.Key, rec.Value)
			if errors.Is(err, ErrKeyNotFound) {
				// The prior PUT was absorbed into the snapshot before the
				// log was truncated; upgrade to an insert.
				err = d.put(rec.Key, rec.Value)
			}
		case wal.RecordDelete:
			err = d.remove(rec.Key)
			if errors.Is(err, ErrKeyNotFound) {
				err = nil
			}
		case wal.RecordCheckpoint:
			// Advisory marker.
		}
		if err != nil {
			return err
		}
		replayed++
	}

	d.log.Info("recovery complete", "records", replayed, "keys", d.store.Len())
	return nil
}

// Close flushes and syncs the WAL on a best-effort basis and releases
// the engine. Errors on the way down are logged, not returned; there is
// no caller state left to handle them.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.wal != nil {
		if err := d.wal.Close(); err != nil {
			d.log.Error("wal close failed", "error", err)
		} else {
			d.log.Info("WAL closed", "path", d.walPath)
		}
		d.wal = nil
	}
	d.store = nil
	d.vc = nil
	return nil
}

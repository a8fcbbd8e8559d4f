// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package store adapts a Pebble database to the ordered store interfaces
// consumed by the kvscan jobs.
package store

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
)

// Mode selects how a store is opened.
type Mode int8

const (
	// ReadOnly opens an existing store for iteration. Writes fail.
	ReadOnly Mode = iota
	// ReadWrite opens or creates a store with general purpose settings.
	ReadWrite
	// BulkIngest opens or creates a store tuned for large batched writes
	// followed by a single manual compaction: the WAL and automatic
	// compactions are disabled and memtables are large.
	BulkIngest
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case BulkIngest:
		return "bulk-ingest"
	default:
		return fmt.Sprintf("Mode(%d)", int8(m))
	}
}

// Options holds the tuning knobs exposed for opening a store. The zero value
// is usable.
type Options struct {
	// FS is the filesystem the store lives on. Defaults to vfs.Default.
	FS vfs.FS
	// CacheSize is the size of the block cache in bytes. Defaults to 64 MB.
	CacheSize int64
	// MaxOpenFiles bounds the number of open sstables. Defaults to 16384.
	MaxOpenFiles int
	// Logger receives the store's log messages. Defaults to
	// base.DefaultLogger.
	Logger base.Logger
}

// EnsureDefaults fills in default values for unset fields. It returns the
// receiver, or a new Options if the receiver is nil.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 64 << 20 // 64 MB
	}
	if o.MaxOpenFiles <= 0 {
		o.MaxOpenFiles = 16384
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	return o
}

func (o *Options) pebbleOptions(mode Mode) *pebble.Options {
	opts := &pebble.Options{
		FS:                 o.FS,
		Logger:             o.Logger,
		MaxOpenFiles:       o.MaxOpenFiles,
		FormatMajorVersion: pebble.FormatNewest,
	}
	switch mode {
	case ReadOnly:
		opts.ReadOnly = true
		opts.ErrorIfNotExists = true
	case ReadWrite:
		opts.MemTableSize = 64 << 20 // 64 MB
		opts.MemTableStopWritesThreshold = 4
		opts.L0CompactionThreshold = 2
	case BulkIngest:
		opts.DisableWAL = true
		opts.DisableAutomaticCompactions = true
		opts.MemTableSize = 256 << 20 // 256 MB
		opts.MemTableStopWritesThreshold = 24
		opts.L0CompactionThreshold = 1 << 20
		opts.L0StopWritesThreshold = 1 << 20
	}
	return opts
}

// DB is an ordered store backed by Pebble. It implements base.Store.
type DB struct {
	d    *pebble.DB
	mode Mode
}

var _ base.Store = (*DB)(nil)

// Open opens the store in dir.
func Open(dir string, mode Mode, opts *Options) (*DB, error) {
	o := *opts.EnsureDefaults()
	popts := o.pebbleOptions(mode)
	cache := pebble.NewCache(o.CacheSize)
	defer cache.Unref()
	popts.Cache = cache

	d, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, base.StoreAccessf(err, "opening %s store %q", mode, dir)
	}
	return &DB{d: d, mode: mode}, nil
}

// NewMem opens an empty read-write store backed by an in-memory filesystem.
func NewMem() (*DB, error) {
	return Open("", ReadWrite, &Options{FS: vfs.NewMem(), Logger: base.NoopLogger{}})
}

// Mode returns the mode the store was opened with.
func (db *DB) Mode() Mode {
	return db.mode
}

// NewIter implements base.Reader.
func (db *DB) NewIter(lower, upper []byte) (base.Iterator, error) {
	iter, err := db.d.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	return iter, nil
}

// Get implements base.Reader.
func (db *DB) Get(key []byte) ([]byte, error) {
	v, closer, err := db.d.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, base.ErrNotFound
	} else if err != nil {
		return nil, base.StoreAccessf(err, "get %q", key)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// Set writes a single entry.
func (db *DB) Set(key, value []byte) error {
	return base.StoreAccessf(db.d.Set(key, value, pebble.NoSync), "set %q", key)
}

// NewBatch implements base.Writer.
func (db *DB) NewBatch() base.Batch {
	return batch{b: db.d.NewBatch()}
}

// Flush implements base.Writer.
func (db *DB) Flush() error {
	return base.StoreAccessf(db.d.Flush(), "flush")
}

// CompactAll implements base.Writer. It compacts the span between the first
// and the last key of the store. An empty store is left alone.
func (db *DB) CompactAll(ctx context.Context) error {
	first, last, err := db.Span()
	if err != nil || first == nil {
		return err
	}
	end := append(last, 0)
	return base.StoreAccessf(db.d.Compact(ctx, first, end, true /* parallelize */), "compact")
}

// Span returns copies of the smallest and largest keys in the store, or nils
// if the store is empty.
func (db *DB) Span() (first, last []byte, err error) {
	iter, err := db.d.NewIter(nil)
	if err != nil {
		return nil, nil, base.StoreAccessf(err, "opening iterator")
	}
	if iter.First() {
		first = append([]byte(nil), iter.Key()...)
	}
	if iter.Last() {
		last = append([]byte(nil), iter.Key()...)
	}
	err = errors.CombineErrors(iter.Error(), iter.Close())
	if err != nil {
		return nil, nil, base.StoreAccessf(err, "scanning bounds")
	}
	return first, last, nil
}

// Metrics returns a human readable description of the store's internal
// metrics.
func (db *DB) Metrics() string {
	return db.d.Metrics().String()
}

// Close closes the store.
func (db *DB) Close() error {
	return base.StoreAccessf(db.d.Close(), "close")
}

type batch struct {
	b *pebble.Batch
}

func (b batch) Set(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

// Commit applies the batch without syncing: jobs flush once at the end.
func (b batch) Commit() error {
	return b.b.Commit(pebble.NoSync)
}

func (b batch) Count() uint32 {
	return b.b.Count()
}

func (b batch) Close() error {
	return b.b.Close()
}

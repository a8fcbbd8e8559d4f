// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "context"

// Iterator iterates over the entries of a store in ascending key order.
// *pebble.Iterator implements Iterator.
type Iterator interface {
	// First moves the iterator to the first entry at or after the lower bound
	// and returns whether the iterator is positioned at a valid entry.
	First() bool
	// SeekGE moves the iterator to the first entry whose key is greater than
	// or equal to key.
	SeekGE(key []byte) bool
	// Next advances the iterator and returns whether it is positioned at a
	// valid entry.
	Next() bool
	Valid() bool
	// Key returns the key of the current entry. The returned slice is only
	// valid until the next positioning call.
	Key() []byte
	// Value returns the value of the current entry, with the same lifetime
	// as Key.
	Value() []byte
	// Error returns any accumulated error. An iterator that encounters an
	// error becomes invalid.
	Error() error
	Close() error
}

// Reader is the read half of an ordered store.
type Reader interface {
	// NewIter returns a fresh iterator over [lower, upper). A nil lower bound
	// starts at the beginning of the key space and a nil upper bound runs to
	// its end.
	NewIter(lower, upper []byte) (Iterator, error)
	// Get returns a copy of the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
}

// Batch is an ordered sequence of pending writes that is applied to the store
// atomically by Commit.
type Batch interface {
	// Set adds a write of value to key. The batch copies key and value.
	Set(key, value []byte) error
	Commit() error
	// Count returns the number of writes in the batch.
	Count() uint32
	Close() error
}

// Writer is the write half of an ordered store. NewBatch may be called from
// concurrent workers; each worker owns the batch it creates.
type Writer interface {
	NewBatch() Batch
	// Flush persists all committed writes.
	Flush() error
	// CompactAll compacts the entire key space of the store.
	CompactAll(ctx context.Context) error
}

// Store is an ordered store that can be both read and written.
type Store interface {
	Reader
	Writer
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package scan

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/kvscan/internal/partition"
)

// Cursor is a forward-only cursor over the entries of one partition. It is
// positioned at the first entry of the partition when created, advances
// monotonically, and becomes invalid for good once the underlying iterator is
// exhausted or positioned at a key outside the partition. A Cursor is owned
// by a single worker.
type Cursor struct {
	iter  base.Iterator
	part  partition.Partition
	valid bool
}

// NewCursor returns a cursor over the entries of r that belong to p.
func NewCursor(r base.Reader, p partition.Partition) (*Cursor, error) {
	lower := p.ScanLower()
	iter, err := r.NewIter(lower, p.Upper)
	if err != nil {
		return nil, base.StoreAccessf(err, "opening iterator over %s", p)
	}
	c := &Cursor{iter: iter, part: p}
	if lower != nil {
		c.valid = c.check(iter.SeekGE(lower))
	} else {
		c.valid = c.check(iter.First())
	}
	return c, nil
}

// check reports whether the iterator, which has just been positioned, is at
// an entry of the partition. Stores are not required to honor iterator
// bounds, so membership is checked on every step.
func (c *Cursor) check(valid bool) bool {
	return valid && c.part.Contains(c.iter.Key())
}

// Partition returns the partition the cursor is bounded to.
func (c *Cursor) Partition() partition.Partition {
	return c.part
}

// Valid returns whether the cursor is positioned at an entry.
func (c *Cursor) Valid() bool {
	return c.valid
}

// Key returns the key of the current entry. It is only valid until the next
// call to Next.
func (c *Cursor) Key() []byte {
	return c.iter.Key()
}

// Value returns the value of the current entry, with the same lifetime as
// Key.
func (c *Cursor) Value() []byte {
	return c.iter.Value()
}

// Next advances the cursor and returns whether it is positioned at an entry.
func (c *Cursor) Next() bool {
	if !c.valid {
		return false
	}
	c.valid = c.check(c.iter.Next())
	return c.valid
}

// Error returns the error, if any, encountered by the underlying iterator.
func (c *Cursor) Error() error {
	return base.StoreAccessf(c.iter.Error(), "scanning %s", c.part)
}

// Close releases the underlying iterator.
func (c *Cursor) Close() error {
	c.valid = false
	return base.StoreAccessf(c.iter.Close(), "closing iterator over %s", c.part)
}

// ForEach calls fn for every entry of r that belongs to p, in key order. The
// key and value passed to fn are only valid for the duration of the call. It
// returns the number of entries visited. Iteration stops at the first error
// returned by fn or by the store.
func ForEach(r base.Reader, p partition.Partition, fn func(key, value []byte) error) (n int64, err error) {
	c, err := NewCursor(r, p)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.CombineErrors(err, c.Close())
	}()
	for ; c.Valid(); c.Next() {
		if err := fn(c.Key(), c.Value()); err != nil {
			return n, err
		}
		n++
	}
	return n, c.Error()
}

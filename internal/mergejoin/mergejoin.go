// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package mergejoin computes the set relationship between the keys of two
// independently sorted sequences with a two-pointer merge, without
// materializing either side.
package mergejoin

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Cursor is a sorted sequence of entries with unique keys. Peeking at the
// front (Key, Value) and consuming it (Next) are separate operations: the
// merge only ever advances the side whose front it has just consumed.
// *scan.Cursor implements Cursor.
type Cursor interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next() bool
	Error() error
}

// Kind classifies a key of the merged sequence.
type Kind int8

const (
	// LeftOnly keys are present in the left sequence only.
	LeftOnly Kind = iota
	// RightOnly keys are present in the right sequence only.
	RightOnly
	// Both keys are present in both sequences.
	Both
)

func (k Kind) String() string {
	switch k {
	case LeftOnly:
		return "left-only"
	case RightOnly:
		return "right-only"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("Kind(%d)", int8(k))
	}
}

// Visitor is called for every key of the merged sequence, in key order. For
// LeftOnly keys rightValue is nil and for RightOnly keys leftValue is nil.
// The slices are only valid for the duration of the call. A non-nil error
// stops the merge.
type Visitor func(kind Kind, key, leftValue, rightValue []byte) error

// Counts are the number of keys of each kind. Counts of disjoint key ranges
// combine by addition.
type Counts struct {
	LeftOnly  int64
	RightOnly int64
	Both      int64
}

// Add returns the sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		LeftOnly:  c.LeftOnly + o.LeftOnly,
		RightOnly: c.RightOnly + o.RightOnly,
		Both:      c.Both + o.Both,
	}
}

// LeftTotal returns the number of keys in the left sequence.
func (c Counts) LeftTotal() int64 {
	return c.LeftOnly + c.Both
}

// RightTotal returns the number of keys in the right sequence.
func (c Counts) RightTotal() int64 {
	return c.RightOnly + c.Both
}

func (c Counts) String() string {
	return redact.StringWithoutMarkers(c)
}

// SafeFormat implements redact.SafeFormatter.
func (c Counts) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("left-only=%d right-only=%d both=%d",
		redact.Safe(c.LeftOnly), redact.Safe(c.RightOnly), redact.Safe(c.Both))
}

// Join merges left and right and returns the number of keys of each kind.
// visit may be nil. Both cursors are left exhausted unless an error occurs.
//
// Keys are compared with bytes.Compare; values do not take part in the join
// predicate. Every entry of either cursor is consumed exactly once: when the
// fronts differ only the smaller one is consumed, and the larger one stays in
// place for the next comparison.
func Join(left, right Cursor, visit Visitor) (Counts, error) {
	var c Counts
	for left.Valid() && right.Valid() {
		lk, rk := left.Key(), right.Key()
		switch cmp := bytes.Compare(lk, rk); {
		case cmp == 0:
			c.Both++
			if visit != nil {
				if err := visit(Both, lk, left.Value(), right.Value()); err != nil {
					return Counts{}, err
				}
			}
			left.Next()
			right.Next()
		case cmp < 0:
			c.LeftOnly++
			if visit != nil {
				if err := visit(LeftOnly, lk, left.Value(), nil); err != nil {
					return Counts{}, err
				}
			}
			left.Next()
		default:
			c.RightOnly++
			if visit != nil {
				if err := visit(RightOnly, rk, nil, right.Value()); err != nil {
					return Counts{}, err
				}
			}
			right.Next()
		}
	}
	if err := errors.CombineErrors(left.Error(), right.Error()); err != nil {
		return Counts{}, err
	}

	// At most one side has entries left.
	for ; left.Valid(); left.Next() {
		c.LeftOnly++
		if visit != nil {
			if err := visit(LeftOnly, left.Key(), left.Value(), nil); err != nil {
				return Counts{}, err
			}
		}
	}
	for ; right.Valid(); right.Next() {
		c.RightOnly++
		if visit != nil {
			if err := visit(RightOnly, right.Key(), nil, right.Value()); err != nil {
				return Counts{}, err
			}
		}
	}
	if err := errors.CombineErrors(left.Error(), right.Error()); err != nil {
		return Counts{}, err
	}
	return c, nil
}

// SliceCursor is a Cursor over in-memory entries. Keys must be sorted and
// unique.
type SliceCursor struct {
	keys   [][]byte
	values [][]byte
	pos    int
}

var _ Cursor = (*SliceCursor)(nil)

// NewSliceCursor returns a cursor positioned at the first of keys. values may
// be nil, otherwise it must have the same length as keys.
func NewSliceCursor(keys, values [][]byte) *SliceCursor {
	if values != nil && len(values) != len(keys) {
		panic(errors.AssertionFailedf("%d keys but %d values", len(keys), len(values)))
	}
	return &SliceCursor{keys: keys, values: values}
}

// Valid implements Cursor.
func (c *SliceCursor) Valid() bool {
	return c.pos < len(c.keys)
}

// Key implements Cursor.
func (c *SliceCursor) Key() []byte {
	return c.keys[c.pos]
}

// Value implements Cursor.
func (c *SliceCursor) Value() []byte {
	if c.values == nil {
		return nil
	}
	return c.values[c.pos]
}

// Next implements Cursor.
func (c *SliceCursor) Next() bool {
	if c.pos < len(c.keys) {
		c.pos++
	}
	return c.Valid()
}

// Error implements Cursor.
func (c *SliceCursor) Error() error {
	return nil
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kvscan

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan/internal/mergejoin"
	"github.com/cockroachdb/kvscan/internal/partition"
	"github.com/cockroachdb/kvscan/internal/scan"
)

// JoinKind classifies a key of two compared stores.
type JoinKind = mergejoin.Kind

// Join kinds.
const (
	LeftOnly  = mergejoin.LeftOnly
	RightOnly = mergejoin.RightOnly
	Both      = mergejoin.Both
)

// CompareVisitor is called for every key of two compared stores. The key and
// values are only valid for the duration of the call. leftValue is nil for
// RightOnly keys and rightValue is nil for LeftOnly keys.
type CompareVisitor = mergejoin.Visitor

// CompareResult is the set relationship between the keys of two stores.
// Values are ignored.
type CompareResult struct {
	// LeftOnly is the number of keys present only in the left store.
	LeftOnly int64
	// RightOnly is the number of keys present only in the right store.
	RightOnly int64
	// Intersection is the number of keys present in both stores.
	Intersection int64
}

// LeftTotal returns the number of keys in the left store.
func (r CompareResult) LeftTotal() int64 {
	return r.LeftOnly + r.Intersection
}

// RightTotal returns the number of keys in the right store.
func (r CompareResult) RightTotal() int64 {
	return r.RightOnly + r.Intersection
}

func (r CompareResult) String() string {
	return mergejoin.Counts{LeftOnly: r.LeftOnly, RightOnly: r.RightOnly, Both: r.Intersection}.String()
}

// CompareStores computes the set relationship between the keys of left and
// right with a two-pointer merge join.
//
// A width of 0 runs a single serial merge over both stores. A positive width
// bounds both sides to each consecutive partition of that width, merges the
// partitions concurrently and sums the results; both variants return the
// same result.
func CompareStores(ctx context.Context, left, right Reader, width int, opts *Options) (CompareResult, error) {
	return DiffStores(ctx, left, right, width, opts, nil)
}

// DiffStores is like CompareStores, but additionally calls visit for every
// key. With a positive width visit is called concurrently from multiple
// workers, each in key order within its partition.
func DiffStores(
	ctx context.Context, left, right Reader, width int, opts *Options, visit CompareVisitor,
) (CompareResult, error) {
	o, err := prepare(opts)
	if err != nil {
		return CompareResult{}, err
	}
	parts := []Partition{partition.All()}
	if width != 0 {
		parts, err = partition.Generate(o.Alphabet, width, partition.Consecutive)
		if err != nil {
			return CompareResult{}, err
		}
	}

	start := time.Now()
	counts, err := scan.Run(ctx, o.pool(), parts, o.Observer, joinWorker(left, right, visit),
		scan.Combiner[mergejoin.Counts]{Combine: mergejoin.Counts.Add})
	if err != nil {
		return CompareResult{}, err
	}
	res := CompareResult{LeftOnly: counts.LeftOnly, RightOnly: counts.RightOnly, Intersection: counts.Both}
	o.Logger.Infof("compare: %s in %d partitions (%.1fs)", res, len(parts), time.Since(start).Seconds())
	return res, nil
}

func joinWorker(left, right Reader, visit CompareVisitor) scan.WorkFunc[mergejoin.Counts] {
	return func(_ context.Context, p Partition, stats *scan.PartitionStats) (_ mergejoin.Counts, err error) {
		lc, err := scan.NewCursor(left, p)
		if err != nil {
			return mergejoin.Counts{}, err
		}
		defer func() { err = errors.CombineErrors(err, lc.Close()) }()
		rc, err := scan.NewCursor(right, p)
		if err != nil {
			return mergejoin.Counts{}, err
		}
		defer func() { err = errors.CombineErrors(err, rc.Close()) }()

		c, err := mergejoin.Join(lc, rc, visit)
		if err != nil {
			return mergejoin.Counts{}, errors.Wrapf(err, "comparing %s", p)
		}
		stats.Entries = c.LeftOnly + c.RightOnly + 2*c.Both
		return c, nil
	}
}

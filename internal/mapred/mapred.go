// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mapred

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/kvscan/internal/partition"
	"github.com/cockroachdb/kvscan/internal/scan"
	"github.com/cockroachdb/redact"
)

// Counts are the partial results of a map or reduce worker.
type Counts struct {
	// Entries is the number of input entries processed.
	Entries int64
	// Written is the number of output entries written.
	Written int64
	// Groups is the number of groups emitted by the reduce step.
	Groups int64
}

// Add returns the sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Entries: c.Entries + o.Entries,
		Written: c.Written + o.Written,
		Groups:  c.Groups + o.Groups,
	}
}

// Combiner combines partial Counts.
var Combiner = scan.Combiner[Counts]{Combine: Counts.Add}

func (c Counts) String() string {
	return redact.StringWithoutMarkers(c)
}

// SafeFormat implements redact.SafeFormatter.
func (c Counts) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("entries=%d written=%d groups=%d",
		redact.Safe(c.Entries), redact.Safe(c.Written), redact.Safe(c.Groups))
}

// commit commits b and closes it. The batch is closed even if the commit
// fails.
func commit(b base.Batch, p partition.Partition) error {
	err := base.StoreAccessf(b.Commit(), "committing batch of %s", p)
	return errors.CombineErrors(err, base.StoreAccessf(b.Close(), "closing batch of %s", p))
}

// Map returns the worker of the map step. For every entry (k, v) of a
// partition of src it writes (enc.EncodeKey(k, v), enc.EncodeValue(k)) to a
// batch of dst, and commits the batch once the partition is exhausted.
func Map(src base.Reader, dst base.Writer, enc Encoding) scan.WorkFunc[Counts] {
	return func(_ context.Context, p partition.Partition, stats *scan.PartitionStats) (Counts, error) {
		b := dst.NewBatch()
		var buf, val []byte
		n, err := scan.ForEach(src, p, func(key, value []byte) error {
			var err error
			buf, err = enc.EncodeKey(buf[:0], key, value)
			if err != nil {
				return errors.Wrapf(err, "mapping %s", p)
			}
			val, err = enc.EncodeValue(val[:0], key)
			if err != nil {
				return errors.Wrapf(err, "mapping %s", p)
			}
			return base.StoreAccessf(b.Set(buf, val), "writing %q", buf)
		})
		stats.Entries = n
		if err != nil {
			_ = b.Close()
			return Counts{}, err
		}
		if err := commit(b, p); err != nil {
			return Counts{}, err
		}
		return Counts{Entries: n, Written: n}, nil
	}
}

// group accumulates a run of intermediate entries sharing a grouping key.
type group struct {
	key    []byte
	joined []byte
	n      int
}

func (g *group) reset(key []byte) {
	g.key = append(g.key[:0], key...)
	g.joined = g.joined[:0]
	g.n = 0
}

func (g *group) add(value, delimiter []byte) {
	if g.n > 0 {
		g.joined = append(g.joined, delimiter...)
	}
	g.joined = append(g.joined, value...)
	g.n++
}

// Reduce returns the worker of the reduce step. It scans a partition of the
// intermediate store src in key order and writes one entry per group to a
// batch of dst: the grouping key mapped to the group's values joined with
// enc.Delimiter, in scan order. Values are joined as the map step encoded
// them; enc.SplitValues recovers the source keys.
//
// The partitions must be consecutive partitions of width over src's own
// keys. A group is only guaranteed to lie within a single partition if its
// grouping key is at least width bytes long, so a shorter grouping key fails
// the job with ErrInvariantViolation. A key without a separator fails it with
// ErrMalformedKey.
func Reduce(src base.Reader, dst base.Writer, enc Encoding, width int) scan.WorkFunc[Counts] {
	return func(_ context.Context, p partition.Partition, stats *scan.PartitionStats) (Counts, error) {
		var c Counts
		var g group
		var out []byte
		b := dst.NewBatch()
		flush := func() error {
			if g.n == 0 {
				return nil
			}
			var err error
			out, err = enc.DecodeGroupingKey(out[:0], g.key)
			if err != nil {
				return errors.Wrapf(err, "reducing %s", p)
			}
			if err := b.Set(out, g.joined); err != nil {
				return base.StoreAccessf(err, "writing group %q", out)
			}
			c.Written++
			c.Groups++
			return nil
		}

		n, err := scan.ForEach(src, p, func(key, value []byte) error {
			gk, ok := enc.GroupingKey(key)
			if !ok {
				return base.MalformedKeyf("mapred: key %q in %s has no separator %q", key, p, enc.Separator)
			}
			if len(gk) < width {
				return base.InvariantViolationf(
					"mapred: grouping key %q in %s is shorter than the partition width %d", gk, p, width)
			}
			if g.n == 0 || !bytes.Equal(gk, g.key) {
				if err := flush(); err != nil {
					return err
				}
				g.reset(gk)
			}
			g.add(value, enc.Delimiter)
			return nil
		})
		if err == nil {
			err = flush()
		}
		stats.Entries = n
		if err != nil {
			_ = b.Close()
			return Counts{}, err
		}
		if err := commit(b, p); err != nil {
			return Counts{}, err
		}
		c.Entries = n
		return c, nil
	}
}

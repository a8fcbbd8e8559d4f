// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kvscan

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/kvscan/internal/mapred"
	"github.com/cockroachdb/kvscan/internal/partition"
	"github.com/cockroachdb/kvscan/internal/scan"
)

// Step is a step of a map/reduce job.
type Step int8

const (
	// Map rewrites every source entry (k, v) as (v SEP hex(k), k). The
	// Encoding's Policy applies to values containing the separator and to
	// keys containing a byte of the delimiter.
	Map Step = iota
	// Reduce emits one entry per group of the output of a Map step: the
	// grouping key mapped to the group's values joined with the delimiter.
	Reduce
)

func (s Step) String() string {
	switch s {
	case Map:
		return "map"
	case Reduce:
		return "reduce"
	default:
		return fmt.Sprintf("Step(%d)", int8(s))
	}
}

// ParseStep parses the output of Step.String.
func ParseStep(s string) (Step, error) {
	switch s {
	case "map":
		return Map, nil
	case "reduce":
		return Reduce, nil
	default:
		return 0, base.Configurationf("kvscan: unknown map/reduce step %q", s)
	}
}

// MapReduceResult summarizes a map/reduce step.
type MapReduceResult struct {
	// EntriesProcessed is the number of source entries scanned.
	EntriesProcessed int64
	// EntriesWritten is the number of entries written to the output store.
	EntriesWritten int64
	// GroupsEmitted is the number of groups emitted by a Reduce step.
	GroupsEmitted int64
}

func (r MapReduceResult) String() string {
	return fmt.Sprintf("processed=%d written=%d groups=%d",
		r.EntriesProcessed, r.EntriesWritten, r.GroupsEmitted)
}

// MapReduce runs one step of a map/reduce job from source into output, over
// consecutive partitions of the source's key space of the given width.
//
// The Reduce step must run over the output of a Map step. Its width bounds
// the length of grouping keys: a group whose grouping key is shorter than the
// width could be split between two partitions and fails the job with
// ErrInvariantViolation. A Map step whose output is meant for a Reduce step
// of a different width should set Options.GroupWidth to that width, so short
// grouping keys are caught before anything is written.
//
// The output store must be empty unless Options.AllowNonEmptyOutput is set,
// and a DB output must not be opened ReadOnly.
// After every partition has been committed, the output is flushed and
// compacted once.
func MapReduce(
	ctx context.Context, source Reader, output Writer, step Step, width int, opts *Options,
) (MapReduceResult, error) {
	o, err := prepare(opts)
	if err != nil {
		return MapReduceResult{}, err
	}
	parts, err := partition.Generate(o.Alphabet, width, partition.Consecutive)
	if err != nil {
		return MapReduceResult{}, err
	}
	if m, ok := output.(interface{ Mode() OpenMode }); ok && m.Mode() == ReadOnly {
		return MapReduceResult{}, base.Configurationf("kvscan: output store is opened %s", ReadOnly)
	}
	if !o.AllowNonEmptyOutput {
		if err := checkEmpty(output); err != nil {
			return MapReduceResult{}, err
		}
	}

	enc := o.Encoding
	var work scan.WorkFunc[mapred.Counts]
	switch step {
	case Map:
		enc.MinGroupingKeyLen = o.GroupWidth
		if enc.MinGroupingKeyLen == 0 {
			enc.MinGroupingKeyLen = width
		}
		work = mapred.Map(source, output, enc)
	case Reduce:
		work = mapred.Reduce(source, output, enc, width)
	default:
		return MapReduceResult{}, base.Configurationf("kvscan: unknown map/reduce step %s", step)
	}

	o.Logger.Infof("%s: %d partitions of width %d, %d workers", step, len(parts), width, o.Concurrency)
	start := time.Now()
	c, err := scan.Run(ctx, o.pool(), parts, o.Observer, work, mapred.Combiner)
	if err != nil {
		return MapReduceResult{}, err
	}
	o.Logger.Infof("%s: %s (%.1fs)", step, c, time.Since(start).Seconds())

	if err := output.Flush(); err != nil {
		return MapReduceResult{}, base.StoreAccessf(err, "kvscan: flushing output store")
	}
	if err := output.CompactAll(ctx); err != nil {
		return MapReduceResult{}, base.StoreAccessf(err, "kvscan: compacting output store")
	}
	o.Logger.Infof("%s: flushed and compacted output (%.1fs)", step, time.Since(start).Seconds())

	return MapReduceResult{
		EntriesProcessed: c.Entries,
		EntriesWritten:   c.Written,
		GroupsEmitted:    c.Groups,
	}, nil
}

// checkEmpty returns an error if w, when it can be read, holds any entries.
func checkEmpty(w Writer) error {
	r, ok := w.(Reader)
	if !ok {
		return nil
	}
	iter, err := r.NewIter(nil, nil)
	if err != nil {
		return base.StoreAccessf(err, "kvscan: opening iterator over output store")
	}
	nonEmpty := iter.First()
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return base.StoreAccessf(err, "kvscan: reading output store")
	}
	var key []byte
	if nonEmpty {
		key = append(key, iter.Key()...)
	}
	if err := iter.Close(); err != nil {
		return base.StoreAccessf(err, "kvscan: closing iterator over output store")
	}
	if nonEmpty {
		return base.InvariantViolationf("kvscan: output store is not empty (contains %q)", key)
	}
	return nil
}

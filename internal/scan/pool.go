// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package scan

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/kvscan/internal/partition"
	"golang.org/x/sync/errgroup"
)

// Pool is a fixed-size pool of workers that partitioned jobs are run on. A
// Pool holds no goroutines between runs and may be shared by consecutive
// jobs.
type Pool struct {
	workers int
}

// NewPool returns a pool of the given number of workers. A non-positive
// count selects runtime.GOMAXPROCS(0).
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// PartitionStats is filled in by a WorkFunc while it processes a partition.
type PartitionStats struct {
	// Entries is the number of store entries the worker consumed.
	Entries int64
}

// Observer is notified of the progress of a run. Implementations must be
// safe for concurrent use: PartitionDone is called from every worker.
type Observer interface {
	JobStarted(partitions int)
	PartitionDone(p partition.Partition, stats PartitionStats, elapsed time.Duration)
}

// NoopObserver is an Observer that ignores all notifications.
type NoopObserver struct{}

var _ Observer = NoopObserver{}

// JobStarted implements Observer.
func (NoopObserver) JobStarted(int) {}

// PartitionDone implements Observer.
func (NoopObserver) PartitionDone(partition.Partition, PartitionStats, time.Duration) {}

// WorkFunc processes a single partition and returns its partial result.
type WorkFunc[R any] func(ctx context.Context, p partition.Partition, stats *PartitionStats) (R, error)

// Combiner folds partial results. Combine must be associative and
// commutative and Identity must be its identity element: partial results
// are combined in whatever order partitions complete.
type Combiner[R any] struct {
	Identity R
	Combine  func(a, b R) R
}

// Sum is the Combiner of int64 addition.
var Sum = Combiner[int64]{Combine: func(a, b int64) int64 { return a + b }}

// Run runs work over every partition on the pool and returns the combination
// of the partial results. Workers pull partitions from a shared queue and
// fold their results locally; the per-worker partials are combined once all
// workers are done.
//
// The partitions must pass partition.Check; a scheme with gaps or overlaps
// fails with ErrInvariantViolation before any work starts.
//
// Run fails fast: the first error returned by work cancels the context
// passed to the other workers, no further partitions are started, and Run
// returns that error with no partial result. Partitions are never retried.
func Run[R any](
	ctx context.Context,
	pool *Pool,
	parts []partition.Partition,
	obs Observer,
	work WorkFunc[R],
	c Combiner[R],
) (R, error) {
	if err := partition.Check(parts); err != nil {
		var zero R
		return zero, err
	}
	if obs == nil {
		obs = NoopObserver{}
	}
	obs.JobStarted(len(parts))

	workers := min(pool.Workers(), len(parts))
	partials := make([]R, workers)
	var next atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			acc := c.Identity
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := next.Add(1) - 1
				if i >= int64(len(parts)) {
					break
				}
				p := parts[i]
				start := time.Now()
				var stats PartitionStats
				r, err := work(ctx, p, &stats)
				if err != nil {
					return err
				}
				acc = c.Combine(acc, r)
				obs.PartitionDone(p, stats, time.Since(start))
			}
			partials[w] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var zero R
		return zero, err
	}

	result := c.Identity
	for _, r := range partials {
		result = c.Combine(result, r)
	}
	return result, nil
}

// Count returns a WorkFunc counting the entries of each partition of r.
func Count(r base.Reader) WorkFunc[int64] {
	return func(_ context.Context, p partition.Partition, stats *PartitionStats) (int64, error) {
		n, err := ForEach(r, p, func(_, _ []byte) error { return nil })
		stats.Entries = n
		return n, err
	}
}

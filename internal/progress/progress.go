// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package progress accumulates the progress of partitioned jobs. A Tracker is
// passed to the executor as its observer; it is safe for concurrent use by
// the workers and by a reporting goroutine.
package progress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/kvscan/internal/partition"
	"github.com/cockroachdb/kvscan/internal/scan"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	minLatency = 10 * time.Microsecond
	maxLatency = 10 * time.Minute
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

// Snapshot is a point-in-time view of a Tracker.
type Snapshot struct {
	// Partitions is the number of partitions of all jobs started so far.
	Partitions int64
	// Done is the number of partitions completed so far.
	Done int64
	// Entries is the number of entries visited by completed partitions.
	Entries int64
	// Elapsed is the time since the tracker was created.
	Elapsed time.Duration
}

// Tick is handed to the callback of Tracker.Tick.
type Tick struct {
	Snapshot
	// Hist holds the latencies of the partitions completed since the previous
	// tick.
	Hist *hdrhistogram.Histogram
	// Cumulative holds the latencies of all partitions completed so far.
	Cumulative *hdrhistogram.Histogram
	// Interval is the time since the previous tick.
	Interval time.Duration
}

// Tracker implements scan.Observer and prometheus.Collector.
type Tracker struct {
	start      time.Time
	partitions atomic.Int64
	done       atomic.Int64
	entries    atomic.Int64

	mu struct {
		sync.Mutex
		current    *hdrhistogram.Histogram
		cumulative *hdrhistogram.Histogram
		// counts holds the entries of each partition of the most recent job,
		// indexed by partition index.
		counts   []int64
		prevTick time.Time
	}

	metrics struct {
		partitions prometheus.Counter
		entries    prometheus.Counter
		latency    prometheus.Histogram
	}
}

var _ scan.Observer = (*Tracker)(nil)
var _ prometheus.Collector = (*Tracker)(nil)

// NewTracker returns a Tracker whose metric names start with namespace.
func NewTracker(namespace string) *Tracker {
	t := &Tracker{start: time.Now()}
	t.mu.current = newHistogram()
	t.mu.cumulative = newHistogram()
	t.mu.prevTick = t.start
	t.metrics.partitions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partitions_total",
		Help:      "Number of partitions completed.",
	})
	t.metrics.entries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entries_total",
		Help:      "Number of entries visited by completed partitions.",
	})
	t.metrics.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "partition_duration_seconds",
		Help:      "Time spent processing a partition.",
		Buckets:   prometheus.ExponentialBuckets(minLatency.Seconds(), 4, 12),
	})
	return t
}

// JobStarted implements scan.Observer.
func (t *Tracker) JobStarted(partitions int) {
	t.partitions.Add(int64(partitions))
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mu.counts = make([]int64, partitions)
}

// PartitionDone implements scan.Observer.
func (t *Tracker) PartitionDone(p partition.Partition, stats scan.PartitionStats, elapsed time.Duration) {
	t.done.Add(1)
	t.entries.Add(stats.Entries)
	t.metrics.partitions.Inc()
	t.metrics.entries.Add(float64(stats.Entries))
	t.metrics.latency.Observe(elapsed.Seconds())

	elapsed = min(max(elapsed, minLatency), maxLatency)
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Index >= 0 && p.Index < len(t.mu.counts) {
		t.mu.counts[p.Index] = stats.Entries
	}
	if err := t.mu.current.RecordValue(elapsed.Nanoseconds()); err != nil {
		// The latency is clamped to the histogram's range.
		panic(fmt.Sprintf("progress: recording latency: %s", err))
	}
}

// Snapshot returns the current totals.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Partitions: t.partitions.Load(),
		Done:       t.done.Load(),
		Entries:    t.entries.Load(),
		Elapsed:    time.Since(t.start),
	}
}

// Distribution returns a copy of the per-partition entry counts of the most
// recent job. Partitions that have not completed report zero.
func (t *Tracker) Distribution() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int64(nil), t.mu.counts...)
}

// Tick swaps out the latency histogram of the current interval and calls fn
// with it, merging it into the cumulative histogram first.
func (t *Tracker) Tick(fn func(Tick)) {
	t.mu.Lock()
	h := t.mu.current
	t.mu.current = newHistogram()
	t.mu.cumulative.Merge(h)
	now := time.Now()
	tick := Tick{
		Snapshot:   t.Snapshot(),
		Hist:       h,
		Cumulative: hdrhistogram.Import(t.mu.cumulative.Export()),
		Interval:   now.Sub(t.mu.prevTick),
	}
	t.mu.prevTick = now
	t.mu.Unlock()
	fn(tick)
}

// Describe implements prometheus.Collector.
func (t *Tracker) Describe(ch chan<- *prometheus.Desc) {
	t.metrics.partitions.Describe(ch)
	t.metrics.entries.Describe(ch)
	t.metrics.latency.Describe(ch)
}

// Collect implements prometheus.Collector.
func (t *Tracker) Collect(ch chan<- prometheus.Metric) {
	t.metrics.partitions.Collect(ch)
	t.metrics.entries.Collect(ch)
	t.metrics.latency.Collect(ch)
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package scan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/kvscan/internal/partition"
	"github.com/cockroachdb/kvscan/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newStore(t *testing.T) *store.DB {
	db, err := store.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func parsePartitions(t *testing.T, td *datadriven.TestData) []partition.Partition {
	alphabet := string(partition.Hex)
	modeStr := "consecutive"
	var width int
	td.MaybeScanArgs(t, "alphabet", &alphabet)
	td.MaybeScanArgs(t, "mode", &modeStr)
	td.ScanArgs(t, "width", &width)
	mode, err := partition.ParseMode(modeStr)
	require.NoError(t, err)
	parts, err := partition.Generate(partition.Alphabet(alphabet), width, mode)
	require.NoError(t, err)
	return parts
}

// unboundedReader ignores iterator bounds, like a store without bounded
// iteration support.
type unboundedReader struct {
	base.Reader
}

func (r unboundedReader) NewIter(_, _ []byte) (base.Iterator, error) {
	return r.Reader.NewIter(nil, nil)
}

func TestCursor(t *testing.T) {
	var db *store.DB
	datadriven.RunTest(t, "testdata/cursor", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "define":
			db = newStore(t)
			b := db.NewBatch()
			for line := range crstrings.LinesSeq(td.Input) {
				key, value, _ := strings.Cut(line, ":")
				require.NoError(t, b.Set([]byte(key), []byte(value)))
			}
			require.NoError(t, b.Commit())
			require.NoError(t, b.Close())
			return ""

		case "scan":
			var r base.Reader = db
			if td.HasArg("unbounded") {
				r = unboundedReader{db}
			}
			var buf strings.Builder
			for _, p := range parsePartitions(t, td) {
				var keys []string
				n, err := ForEach(r, p, func(key, value []byte) error {
					keys = append(keys, fmt.Sprintf("%s:%s", key, value))
					return nil
				})
				require.NoError(t, err)
				require.EqualValues(t, len(keys), n)
				if n > 0 {
					fmt.Fprintf(&buf, "%s: %s\n", p.Prefix, strings.Join(keys, " "))
				}
			}
			return buf.String()

		default:
			td.Fatalf(t, "unknown command %q", td.Cmd)
			return ""
		}
	})
}

func TestCursorExhausted(t *testing.T) {
	db := newStore(t)
	require.NoError(t, db.Set([]byte("a1"), nil))
	require.NoError(t, db.Set([]byte("b1"), nil))

	parts, err := partition.Generate("ab", 1, partition.Independent)
	require.NoError(t, err)
	c, err := NewCursor(db, parts[0])
	require.NoError(t, err)
	require.True(t, c.Valid())
	require.Equal(t, "a1", string(c.Key()))
	require.False(t, c.Next())
	require.False(t, c.Valid())
	// Once invalid, the cursor never moves again.
	require.False(t, c.Next())
	require.NoError(t, c.Error())
	require.NoError(t, c.Close())
}

// TestCountEquivalence checks that a partitioned count matches a naive full
// iteration for widths 1 through 4.
func TestCountEquivalence(t *testing.T) {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewSource(seed))

	db := newStore(t)
	b := db.NewBatch()
	for i := 0; i < 5000; i++ {
		key := make([]byte, 1+rng.Intn(8))
		for j := range key {
			if rng.Intn(20) == 0 {
				key[j] = byte(rng.Intn(256))
			} else {
				key[j] = partition.Hex[rng.Intn(len(partition.Hex))]
			}
		}
		require.NoError(t, b.Set(key, nil))
	}
	require.NoError(t, b.Commit())
	require.NoError(t, b.Close())

	var want int64
	_, err := ForEach(db, partition.All(), func(_, _ []byte) error {
		want++
		return nil
	})
	require.NoError(t, err)

	pool := NewPool(8)
	for width := 1; width <= 4; width++ {
		parts, err := partition.Generate(partition.Hex, width, partition.Consecutive)
		require.NoError(t, err)
		got, err := Run(context.Background(), pool, parts, nil, Count(db), Sum)
		require.NoError(t, err)
		require.Equalf(t, want, got, "width %d", width)
	}
}

type recordingObserver struct {
	started atomic.Int64
	mu      struct {
		sync.Mutex
		done    map[int]int64
		entries int64
	}
}

func (o *recordingObserver) JobStarted(partitions int) {
	o.started.Store(int64(partitions))
}

func (o *recordingObserver) PartitionDone(
	p partition.Partition, stats PartitionStats, _ time.Duration,
) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mu.done == nil {
		o.mu.done = make(map[int]int64)
	}
	o.mu.done[p.Index]++
	o.mu.entries += stats.Entries
}

func TestRunCombinesAllPartitions(t *testing.T) {
	parts, err := partition.Generate(partition.Hex, 2, partition.Consecutive)
	require.NoError(t, err)

	var obs recordingObserver
	work := func(_ context.Context, p partition.Partition, stats *PartitionStats) (int64, error) {
		stats.Entries = 1
		return int64(p.Index), nil
	}
	for _, workers := range []int{1, 3, 16, 1000} {
		obs = recordingObserver{}
		got, err := Run(context.Background(), NewPool(workers), parts, &obs, work, Sum)
		require.NoError(t, err)
		n := int64(len(parts))
		require.Equal(t, n*(n-1)/2, got)
		require.Equal(t, n, obs.started.Load())
		require.Len(t, obs.mu.done, len(parts))
		for _, count := range obs.mu.done {
			require.EqualValues(t, 1, count)
		}
		require.Equal(t, n, obs.mu.entries)
	}
}

func TestRunFailFast(t *testing.T) {
	parts, err := partition.Generate(partition.Hex, 2, partition.Consecutive)
	require.NoError(t, err)

	boom := errors.New("boom")
	var calls atomic.Int64
	work := func(_ context.Context, p partition.Partition, _ *PartitionStats) (int64, error) {
		calls.Add(1)
		if p.Index == 5 {
			return 0, base.StoreAccessf(boom, "reading %s", p)
		}
		return 1, nil
	}

	// With a single worker partitions are processed in order, so nothing
	// after the failing partition may start.
	got, err := Run(context.Background(), NewPool(1), parts, nil, work, Sum)
	require.True(t, errors.Is(err, boom), "%v", err)
	require.True(t, errors.Is(err, base.ErrStoreAccess), "%v", err)
	require.Zero(t, got)
	require.EqualValues(t, 6, calls.Load())

	calls.Store(0)
	_, err = Run(context.Background(), NewPool(8), parts, nil, work, Sum)
	require.True(t, errors.Is(err, boom), "%v", err)
	require.LessOrEqual(t, calls.Load(), int64(len(parts)))
}

func TestRunCanceled(t *testing.T) {
	parts, err := partition.Generate(partition.Hex, 1, partition.Consecutive)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, NewPool(4), parts, nil, func(context.Context, partition.Partition, *PartitionStats) (int64, error) {
		return 1, nil
	}, Sum)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunNoPartitions(t *testing.T) {
	got, err := Run(context.Background(), NewPool(4), nil, nil, func(context.Context, partition.Partition, *PartitionStats) (int64, error) {
		t.Fatal("unexpected call")
		return 0, nil
	}, Combiner[int64]{Identity: 7, Combine: func(a, b int64) int64 { return a + b }})
	require.NoError(t, err)
	require.EqualValues(t, 7, got)
}

func TestRunRejectsInvalidScheme(t *testing.T) {
	parts, err := partition.Generate(partition.Hex, 1, partition.Consecutive)
	require.NoError(t, err)

	gapped := append([]partition.Partition(nil), parts...)
	gapped[3].Upper = []byte("35")
	overlapping := append([]partition.Partition(nil), parts...)
	overlapping[3].Upper = []byte("45")
	unsorted := append([]partition.Partition(nil), parts...)
	unsorted[2], unsorted[3] = unsorted[3], unsorted[2]

	for name, scheme := range map[string][]partition.Partition{
		"gap":      gapped,
		"overlap":  overlapping,
		"unsorted": unsorted,
		"bounded":  parts[:4],
	} {
		t.Run(name, func(t *testing.T) {
			var obs recordingObserver
			var calls atomic.Int64
			_, err := Run(context.Background(), NewPool(4), scheme, &obs,
				func(context.Context, partition.Partition, *PartitionStats) (int64, error) {
					calls.Add(1)
					return 1, nil
				}, Sum)
			require.True(t, errors.Is(err, base.ErrInvariantViolation), "%v", err)
			require.Zero(t, calls.Load())
			require.Zero(t, obs.started.Load())
		})
	}
}

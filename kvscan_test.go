// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kvscan

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan/internal/hexgen"
	"github.com/cockroachdb/kvscan/internal/progress"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newMemDB(t *testing.T) *DB {
	db, err := NewMemDB()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func testOptions() *Options {
	return &Options{Concurrency: 4, Logger: NoopLogger{}}
}

// parseBytes parses a datadriven token: either a Go quoted string or raw
// text. It returns the remainder of s after the token and an optional ':'.
func parseBytes(t *testing.T, s string) (b []byte, rest string) {
	if strings.HasPrefix(s, `"`) {
		q, err := strconv.QuotedPrefix(s)
		require.NoError(t, err)
		u, err := strconv.Unquote(q)
		require.NoError(t, err)
		rest = strings.TrimPrefix(s[len(q):], ":")
		return []byte(u), rest
	}
	before, after, _ := strings.Cut(s, ":")
	return []byte(before), after
}

func formatBytes(b []byte) string {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return strconv.Quote(string(b))
		}
	}
	return string(b)
}

func dumpDB(t *testing.T, r Reader) string {
	iter, err := r.NewIter(nil, nil)
	require.NoError(t, err)
	var buf strings.Builder
	for valid := iter.First(); valid; valid = iter.Next() {
		fmt.Fprintf(&buf, "%s: %s\n", formatBytes(iter.Key()), formatBytes(iter.Value()))
	}
	require.NoError(t, iter.Error())
	require.NoError(t, iter.Close())
	return buf.String()
}

func TestKVScan(t *testing.T) {
	datadriven.Walk(t, "testdata/kvscan", func(t *testing.T, path string) {
		dbs := map[string]*DB{}
		get := func(td *datadriven.TestData, arg string) *DB {
			var name string
			td.ScanArgs(t, arg, &name)
			db, ok := dbs[name]
			if !ok {
				db = newMemDB(t)
				dbs[name] = db
			}
			return db
		}
		ctx := context.Background()

		datadriven.RunTest(t, path, func(t *testing.T, td *datadriven.TestData) string {
			opts := testOptions()
			if td.HasArg("policy") {
				var policy string
				td.ScanArgs(t, "policy", &policy)
				p, err := ParsePolicy(policy)
				require.NoError(t, err)
				opts.Encoding.Policy = p
			}
			td.MaybeScanArgs(t, "group-width", &opts.GroupWidth)
			opts.AllowNonEmptyOutput = td.HasArg("allow-non-empty")
			var width int
			td.MaybeScanArgs(t, "width", &width)

			switch td.Cmd {
			case "define":
				var name string
				td.ScanArgs(t, "db", &name)
				db := newMemDB(t)
				dbs[name] = db
				b := db.NewBatch()
				for line := range crstrings.LinesSeq(td.Input) {
					key, rest := parseBytes(t, line)
					value, _ := parseBytes(t, rest)
					require.NoError(t, b.Set(key, value))
				}
				require.NoError(t, b.Commit())
				require.NoError(t, b.Close())
				return ""

			case "dump":
				return dumpDB(t, get(td, "db"))

			case "count":
				db := get(td, "db")
				n, err := ScanAndCount(ctx, db, width, opts)
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				m, err := CountMatching(ctx, db, width, opts)
				require.NoError(t, err)
				return fmt.Sprintf("count=%d matching=%d", n, m)

			case "compare":
				left, right := get(td, "left"), get(td, "right")
				var mu sync.Mutex
				var lines []string
				res, err := DiffStores(ctx, left, right, width, opts,
					func(kind JoinKind, key, _, _ []byte) error {
						mu.Lock()
						defer mu.Unlock()
						lines = append(lines, fmt.Sprintf("%s %s", formatBytes(key), kind))
						return nil
					})
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				slices.Sort(lines)
				var buf strings.Builder
				for _, l := range lines {
					fmt.Fprintf(&buf, "%s\n", l)
				}
				fmt.Fprintf(&buf, "%s left-total=%d right-total=%d\n", res, res.LeftTotal(), res.RightTotal())
				return buf.String()

			case "split":
				enc := opts.Clone().EnsureDefaults().Encoding
				iter, err := get(td, "db").NewIter(nil, nil)
				require.NoError(t, err)
				var buf strings.Builder
				for valid := iter.First(); valid; valid = iter.Next() {
					keys, err := enc.SplitValues(iter.Value())
					if err != nil {
						fmt.Fprintf(&buf, "%s: error: %v\n", formatBytes(iter.Key()), err)
						continue
					}
					fmt.Fprintf(&buf, "%s:", formatBytes(iter.Key()))
					for _, k := range keys {
						fmt.Fprintf(&buf, " %q", k)
					}
					buf.WriteString("\n")
				}
				require.NoError(t, iter.Close())
				return buf.String()

			case "map", "reduce":
				step, err := ParseStep(td.Cmd)
				require.NoError(t, err)
				src, dst := get(td, "src"), get(td, "dst")
				res, err := MapReduce(ctx, src, dst, step, width, opts)
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				return fmt.Sprintf("%s\n%s", res, dumpDB(t, dst))

			default:
				td.Fatalf(t, "unknown command %q", td.Cmd)
				return ""
			}
		})
	})
}

func randomSeed(t *testing.T) uint64 {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed: %d", seed)
	return seed
}

// populate writes n random hex entries to a new in-memory store.
func populate(t *testing.T, n int, seed uint64, keyLen, valueLen int) *DB {
	db := newMemDB(t)
	_, err := hexgen.Populate(context.Background(), db, hexgen.Config{
		Entries:  n,
		Writers:  4,
		Seed:     seed,
		KeyLen:   keyLen,
		ValueLen: valueLen,
	})
	require.NoError(t, err)
	return db
}

func naiveCount(t *testing.T, r Reader) int64 {
	iter, err := r.NewIter(nil, nil)
	require.NoError(t, err)
	var n int64
	for valid := iter.First(); valid; valid = iter.Next() {
		n++
	}
	require.NoError(t, iter.Error())
	require.NoError(t, iter.Close())
	return n
}

func TestScanAndCountWidths(t *testing.T) {
	db := populate(t, 2000, randomSeed(t), 8, 1)
	// Keys outside the alphabet are counted too.
	for _, k := range []string{"", "!", "zzz", "\xff\xff"} {
		require.NoError(t, db.Set([]byte(k), []byte("x")))
	}
	want := naiveCount(t, db)
	for width := 1; width <= 4; width++ {
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			n, err := ScanAndCount(context.Background(), db, width, testOptions())
			require.NoError(t, err)
			require.Equal(t, want, n)

			m, err := CountMatching(context.Background(), db, width, testOptions())
			require.NoError(t, err)
			require.Equal(t, want-4, m)
		})
	}
}

func TestFingerprint(t *testing.T) {
	seed := randomSeed(t)
	a := populate(t, 1000, seed, 0, 0)
	b := populate(t, 1000, seed, 0, 0)

	var fps []Fingerprint
	for width := 1; width <= 3; width++ {
		for _, db := range []*DB{a, b} {
			fp, err := ComputeFingerprint(context.Background(), db, width, testOptions())
			require.NoError(t, err)
			fps = append(fps, fp)
		}
	}
	for _, fp := range fps {
		require.Equal(t, fps[0], fp)
	}
	require.EqualValues(t, 1000, fps[0].Count)

	// Moving bytes between a key and its value changes the fingerprint.
	c, d := newMemDB(t), newMemDB(t)
	require.NoError(t, c.Set([]byte("ab"), []byte("c")))
	require.NoError(t, d.Set([]byte("a"), []byte("bc")))
	fc, err := ComputeFingerprint(context.Background(), c, 1, testOptions())
	require.NoError(t, err)
	fd, err := ComputeFingerprint(context.Background(), d, 1, testOptions())
	require.NoError(t, err)
	require.Equal(t, fc.Count, fd.Count)
	require.NotEqual(t, fc.Digest, fd.Digest)
}

// TestCompareRandomized checks that the partitioned merge join agrees with a
// serial one and with a map-based reference, for random stores drawn from
// the same small key space.
func TestCompareRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(randomSeed(t)))
	for iter := 0; iter < 10; iter++ {
		left, right := newMemDB(t), newMemDB(t)
		inLeft := map[string]bool{}
		inRight := map[string]bool{}
		n := rng.Intn(300)
		for i := 0; i < n; i++ {
			key := fmt.Sprintf("%03x", rng.Intn(1<<10))
			switch rng.Intn(3) {
			case 0:
				inLeft[key] = true
			case 1:
				inRight[key] = true
			default:
				inLeft[key] = true
				inRight[key] = true
			}
		}
		var want CompareResult
		for k := range inLeft {
			require.NoError(t, left.Set([]byte(k), nil))
			if inRight[k] {
				want.Intersection++
			} else {
				want.LeftOnly++
			}
		}
		for k := range inRight {
			require.NoError(t, right.Set([]byte(k), nil))
			if !inLeft[k] {
				want.RightOnly++
			}
		}

		for width := 0; width <= 3; width++ {
			res, err := CompareStores(context.Background(), left, right, width, testOptions())
			require.NoError(t, err)
			require.Equal(t, want, res, "width=%d", width)
		}
	}
}

// TestMapReduceRoundTrip checks that every source key appears in exactly one
// reduced group: the group of its value.
func TestMapReduceRoundTrip(t *testing.T) {
	src := populate(t, 3000, randomSeed(t), 4, 2)
	want := map[string][]string{}
	iter, err := src.NewIter(nil, nil)
	require.NoError(t, err)
	for valid := iter.First(); valid; valid = iter.Next() {
		want[string(iter.Value())] = append(want[string(iter.Value())], string(iter.Key()))
	}
	require.NoError(t, iter.Close())

	for _, width := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			ctx := context.Background()
			inter, out := newMemDB(t), newMemDB(t)
			tr := progress.NewTracker("test")
			opts := testOptions()
			opts.Observer = tr

			mapped, err := MapReduce(ctx, src, inter, Map, width, opts)
			require.NoError(t, err)
			n := naiveCount(t, src)
			require.Equal(t, MapReduceResult{EntriesProcessed: n, EntriesWritten: n}, mapped)

			reduced, err := MapReduce(ctx, inter, out, Reduce, width, opts)
			require.NoError(t, err)
			require.Equal(t, n, reduced.EntriesProcessed)
			require.EqualValues(t, len(want), reduced.GroupsEmitted)
			require.Equal(t, 2*n, tr.Snapshot().Entries)

			for v, keys := range want {
				got, err := out.Get([]byte(v))
				require.NoError(t, err)
				// The source iterated in key order, so keys is sorted, and
				// hex-encoding preserves the order of equal-length keys.
				require.Equal(t, strings.Join(keys, "|"), string(got))
			}
		})
	}
}

// TestMapReduceDelimiterInKeys checks that every source key of a group can
// be recovered from the reduced value, even when keys contain the delimiter.
func TestMapReduceDelimiterInKeys(t *testing.T) {
	ctx := context.Background()
	src := newMemDB(t)
	require.NoError(t, src.Set([]byte("a|b"), []byte("xx")))
	require.NoError(t, src.Set([]byte("c"), []byte("xx")))

	_, err := MapReduce(ctx, src, newMemDB(t), Map, 1, testOptions())
	require.True(t, errors.Is(err, ErrMalformedKey), "%+v", err)
	require.Contains(t, err.Error(), `key "a|b"`)

	opts := testOptions()
	opts.Encoding.Policy = Escape
	inter, out := newMemDB(t), newMemDB(t)
	_, err = MapReduce(ctx, src, inter, Map, 1, opts)
	require.NoError(t, err)
	res, err := MapReduce(ctx, inter, out, Reduce, 1, opts)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.GroupsEmitted)

	v, err := out.Get([]byte("xx"))
	require.NoError(t, err)
	keys, err := opts.Clone().EnsureDefaults().Encoding.SplitValues(v)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a|b"), []byte("c")}, keys)
}

func TestMapReduceNonEmptyOutput(t *testing.T) {
	ctx := context.Background()
	src, dst := newMemDB(t), newMemDB(t)
	require.NoError(t, src.Set([]byte("k1"), []byte("aa")))
	require.NoError(t, dst.Set([]byte("existing"), nil))

	_, err := MapReduce(ctx, src, dst, Map, 1, testOptions())
	require.True(t, errors.Is(err, ErrInvariantViolation), "%+v", err)
	require.Equal(t, "existing: \n", dumpDB(t, dst))

	opts := testOptions()
	opts.AllowNonEmptyOutput = true
	res, err := MapReduce(ctx, src, dst, Map, 1, opts)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.EntriesWritten)
}

func TestMapReduceReadOnlyOutput(t *testing.T) {
	fs := vfs.NewMem()
	db, err := Open("out", ReadWrite, &StoreOptions{FS: fs, Logger: NoopLogger{}})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	out, err := Open("out", ReadOnly, &StoreOptions{FS: fs, Logger: NoopLogger{}})
	require.NoError(t, err)
	defer func() { require.NoError(t, out.Close()) }()

	src := newMemDB(t)
	require.NoError(t, src.Set([]byte("k"), []byte("aa")))
	var calls int
	opts := testOptions()
	opts.Observer = countingObserver{&calls}
	_, err = MapReduce(context.Background(), src, out, Map, 1, opts)
	require.True(t, errors.Is(err, ErrConfiguration), "%+v", err)
	require.Zero(t, calls)
}

// countingObserver counts started jobs.
type countingObserver struct {
	jobs *int
}

func (o countingObserver) JobStarted(int) { *o.jobs++ }

func (countingObserver) PartitionDone(Partition, PartitionStats, time.Duration) {}

func TestErrorKinds(t *testing.T) {
	ctx := context.Background()
	db := newMemDB(t)
	require.NoError(t, db.Set([]byte("k"), []byte("a.b")))

	_, err := ScanAndCount(ctx, db, 0, testOptions())
	require.True(t, errors.Is(err, ErrConfiguration), "%+v", err)
	_, err = CompareStores(ctx, db, db, -1, testOptions())
	require.True(t, errors.Is(err, ErrConfiguration), "%+v", err)
	_, err = ScanAndCount(ctx, db, 1, &Options{Alphabet: "ba"})
	require.True(t, errors.Is(err, ErrConfiguration), "%+v", err)
	_, err = MapReduce(ctx, db, newMemDB(t), Step(7), 1, testOptions())
	require.True(t, errors.Is(err, ErrConfiguration), "%+v", err)

	_, err = MapReduce(ctx, db, newMemDB(t), Map, 1, testOptions())
	require.True(t, errors.Is(err, ErrMalformedKey), "%+v", err)

	_, err = MapReduce(ctx, db, newMemDB(t), Reduce, 1, testOptions())
	require.True(t, errors.Is(err, ErrMalformedKey), "%+v", err)
}

// closedReader fails to open iterators.
type closedReader struct{}

func (closedReader) NewIter(_, _ []byte) (Iterator, error) {
	return nil, errors.New("store closed")
}

func (closedReader) Get([]byte) ([]byte, error) {
	return nil, errors.New("store closed")
}

func TestStoreAccessError(t *testing.T) {
	_, err := ScanAndCount(context.Background(), closedReader{}, 2, testOptions())
	require.True(t, errors.Is(err, ErrStoreAccess), "%+v", err)
	_, err = CompareStores(context.Background(), newMemDB(t), closedReader{}, 0, testOptions())
	require.True(t, errors.Is(err, ErrStoreAccess), "%+v", err)
}

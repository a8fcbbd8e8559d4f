// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package hexgen populates stores with random entries whose keys and values
// are hex-encoded random bytes. Such keys are spread uniformly over the
// partitions of the hex alphabet.
package hexgen

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/kvscan/internal/partition"
	"github.com/cockroachdb/kvscan/internal/scan"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultKeyLen is the number of random bytes in a key.
	DefaultKeyLen = 16
	// DefaultValueLen is the number of random bytes in a value.
	DefaultValueLen = 3
)

// Generator produces random hex entries. A Generator is not safe for
// concurrent use.
type Generator struct {
	rng      *rand.Rand
	keyLen   int
	valueLen int
	raw      []byte
	buf      []byte
}

// New returns a Generator seeded with seed. Lengths that are not positive
// are replaced by the defaults.
func New(seed uint64, keyLen, valueLen int) *Generator {
	if keyLen <= 0 {
		keyLen = DefaultKeyLen
	}
	if valueLen <= 0 {
		valueLen = DefaultValueLen
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		keyLen:   keyLen,
		valueLen: valueLen,
	}
}

func (g *Generator) hex(n int) []byte {
	if cap(g.raw) < n {
		g.raw = make([]byte, n)
	}
	raw := g.raw[:n]
	_, _ = g.rng.Read(raw)
	g.buf = hex.AppendEncode(g.buf, raw)
	return g.buf
}

// Next returns a random entry. The returned slices are only valid until the
// next call.
func (g *Generator) Next() (key, value []byte) {
	g.buf = g.buf[:0]
	g.hex(g.keyLen)
	n := len(g.buf)
	g.hex(g.valueLen)
	return g.buf[:n], g.buf[n:]
}

// Config configures Populate.
type Config struct {
	// Entries is the total number of entries to write.
	Entries int
	// Writers is the number of concurrent writers. Each writer generates its
	// share of the entries into a single batch.
	Writers int
	// Seed seeds the writers' generators. Writer i uses Seed+i.
	Seed     uint64
	KeyLen   int
	ValueLen int
	// Observer is notified as writers finish. Each writer is reported as a
	// partition with the writer's index.
	Observer scan.Observer
}

// Populate writes cfg.Entries random entries to w. It does not flush or
// compact w. It returns the number of entries written.
func Populate(ctx context.Context, w base.Writer, cfg Config) (int64, error) {
	if cfg.Entries < 0 {
		return 0, base.Configurationf("hexgen: negative entry count %d", cfg.Entries)
	}
	if cfg.Writers <= 0 {
		cfg.Writers = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = scan.NoopObserver{}
	}
	cfg.Observer.JobStarted(cfg.Writers)

	counts := make([]int64, cfg.Writers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Writers; i++ {
		n := cfg.Entries / cfg.Writers
		if i < cfg.Entries%cfg.Writers {
			n++
		}
		g.Go(func() error {
			start := time.Now()
			gen := New(cfg.Seed+uint64(i), cfg.KeyLen, cfg.ValueLen)
			b := w.NewBatch()
			defer b.Close()
			for j := 0; j < n; j++ {
				if j%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				key, value := gen.Next()
				if err := b.Set(key, value); err != nil {
					return base.StoreAccessf(err, "hexgen: writing %q", key)
				}
			}
			if err := b.Commit(); err != nil {
				return base.StoreAccessf(err, "hexgen: committing batch of writer %d", i)
			}
			counts[i] = int64(n)
			cfg.Observer.PartitionDone(partition.Partition{Index: i},
				scan.PartitionStats{Entries: int64(n)}, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

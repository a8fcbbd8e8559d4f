// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kvscan

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/kvscan/internal/partition"
	"github.com/cockroachdb/kvscan/internal/scan"
)

// ScanAndCount returns the number of entries in r. The key space is split
// into consecutive partitions of the given prefix width, so every entry is
// counted exactly once whatever its key.
func ScanAndCount(ctx context.Context, r Reader, width int, opts *Options) (int64, error) {
	o, err := prepare(opts)
	if err != nil {
		return 0, err
	}
	parts, err := partition.Generate(o.Alphabet, width, partition.Consecutive)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := scan.Run(ctx, o.pool(), parts, o.Observer, scan.Count(r), scan.Sum)
	if err != nil {
		return 0, err
	}
	o.Logger.Infof("count: %d entries in %d partitions (%.1fs)", n, len(parts), time.Since(start).Seconds())
	return n, nil
}

// CountMatching returns the number of entries of r whose key starts with one
// of the prefixes of the given width over the alphabet. Each prefix is an
// exact-match filter, so keys that start with no prefix are not visited.
func CountMatching(ctx context.Context, r Reader, width int, opts *Options) (int64, error) {
	o, err := prepare(opts)
	if err != nil {
		return 0, err
	}
	parts, err := partition.Generate(o.Alphabet, width, partition.Independent)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := scan.Run(ctx, o.pool(), parts, o.Observer, scan.Count(r), scan.Sum)
	if err != nil {
		return 0, err
	}
	o.Logger.Infof("count: %d matching entries in %d partitions (%.1fs)", n, len(parts), time.Since(start).Seconds())
	return n, nil
}

// Fingerprint summarizes the contents of a store. Two stores holding the
// same entries have equal fingerprints, regardless of the partition width or
// concurrency they were computed with.
type Fingerprint struct {
	// Count is the number of entries.
	Count int64
	// Digest is the sum of the hashes of all entries.
	Digest uint64
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("count=%d digest=%016x", f.Count, f.Digest)
}

var fingerprintCombiner = scan.Combiner[Fingerprint]{
	Combine: func(a, b Fingerprint) Fingerprint {
		return Fingerprint{Count: a.Count + b.Count, Digest: a.Digest + b.Digest}
	},
}

// entryHasher hashes entries. The key is length-prefixed so that the
// boundary between key and value is part of the hash.
type entryHasher struct {
	d   *xxhash.Digest
	buf [binary.MaxVarintLen64]byte
}

func (h *entryHasher) hash(key, value []byte) uint64 {
	h.d.Reset()
	n := binary.PutUvarint(h.buf[:], uint64(len(key)))
	_, _ = h.d.Write(h.buf[:n])
	_, _ = h.d.Write(key)
	_, _ = h.d.Write(value)
	return h.d.Sum64()
}

// ComputeFingerprint returns the Fingerprint of r, scanning consecutive
// partitions of the given width.
func ComputeFingerprint(ctx context.Context, r Reader, width int, opts *Options) (Fingerprint, error) {
	o, err := prepare(opts)
	if err != nil {
		return Fingerprint{}, err
	}
	parts, err := partition.Generate(o.Alphabet, width, partition.Consecutive)
	if err != nil {
		return Fingerprint{}, err
	}
	work := func(_ context.Context, p Partition, stats *scan.PartitionStats) (Fingerprint, error) {
		h := entryHasher{d: xxhash.New()}
		var f Fingerprint
		n, err := scan.ForEach(r, p, func(key, value []byte) error {
			f.Digest += h.hash(key, value)
			return nil
		})
		stats.Entries = n
		f.Count = n
		return f, err
	}
	start := time.Now()
	f, err := scan.Run(ctx, o.pool(), parts, o.Observer, work, fingerprintCombiner)
	if err != nil {
		return Fingerprint{}, err
	}
	o.Logger.Infof("fingerprint: %s in %d partitions (%.1fs)", f, len(parts), time.Since(start).Seconds())
	return f, nil
}

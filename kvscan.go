// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package kvscan provides partition-parallel analytics over ordered key-value
// stores.
//
// Every job splits the byte-keyed space into partitions by fixed-width
// prefixes drawn from an alphabet, runs one worker per partition on a fixed
// size pool, and folds the per-partition results with an associative,
// commutative combine. Three families of jobs are provided:
//
//   - ScanAndCount, CountMatching and Fingerprint aggregate over a single
//     store.
//   - CompareStores computes the exact set relationship between the keys of
//     two independently sorted stores with a two-pointer merge join, without
//     materializing either side.
//   - MapReduce groups the entries of a store by value. The map step rewrites
//     every entry so that entries sharing a value sort contiguously in an
//     intermediate store, and the reduce step emits one entry per run of
//     equal grouping keys. The store's sort order stands in for a shuffle.
//     Encoding.SplitValues recovers the source keys of a reduced value.
//
// Jobs fail fast: the first error of any partition cancels the others and is
// returned with no partial result. Errors are marked with one of
// ErrStoreAccess, ErrMalformedKey, ErrInvariantViolation or ErrConfiguration.
package kvscan // import "github.com/cockroachdb/kvscan"

import (
	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/kvscan/internal/mapred"
	"github.com/cockroachdb/kvscan/internal/partition"
	"github.com/cockroachdb/kvscan/internal/scan"
	"github.com/cockroachdb/kvscan/internal/store"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger = base.DefaultLogger

// NoopLogger discards log messages.
type NoopLogger = base.NoopLogger

// Error kinds. Use errors.Is to classify an error returned by a job.
var (
	ErrNotFound           = base.ErrNotFound
	ErrStoreAccess        = base.ErrStoreAccess
	ErrMalformedKey       = base.ErrMalformedKey
	ErrInvariantViolation = base.ErrInvariantViolation
	ErrConfiguration      = base.ErrConfiguration
)

// Iterator iterates over the entries of a store in key order.
type Iterator = base.Iterator

// Reader is the read half of an ordered store.
type Reader = base.Reader

// Batch is a set of writes applied atomically.
type Batch = base.Batch

// Writer is the write half of an ordered store.
type Writer = base.Writer

// Store is an ordered store that can be read and written.
type Store = base.Store

// Partition is a half-open range of the key space processed by one worker.
type Partition = partition.Partition

// Alphabet is the ordered set of symbols partition prefixes are built from.
type Alphabet = partition.Alphabet

// Hex is the alphabet of lowercase hexadecimal digits.
const Hex = partition.Hex

// Observer is notified of the progress of a job.
type Observer = scan.Observer

// PartitionStats are the statistics reported for a completed partition.
type PartitionStats = scan.PartitionStats

// Encoding describes the layout of intermediate map/reduce keys.
type Encoding = mapred.Encoding

// Policy determines how the map step treats values containing the
// separator and keys containing a byte of the delimiter.
type Policy = mapred.Policy

// Separator policies.
const (
	Reject = mapred.Reject
	Escape = mapred.Escape
)

// ParsePolicy parses the output of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	return mapred.ParsePolicy(s)
}

// DefaultEncoding separates grouping keys with '.' and joins values with '|'.
var DefaultEncoding = mapred.DefaultEncoding

// DB is a Pebble-backed Store.
type DB = store.DB

// OpenMode selects how a DB is opened.
type OpenMode = store.Mode

// Open modes.
const (
	ReadOnly   = store.ReadOnly
	ReadWrite  = store.ReadWrite
	BulkIngest = store.BulkIngest
)

// StoreOptions holds the tuning knobs for opening a DB.
type StoreOptions = store.Options

// Open opens the DB in dir.
func Open(dir string, mode OpenMode, opts *StoreOptions) (*DB, error) {
	return store.Open(dir, mode, opts)
}

// NewMemDB opens an empty DB backed by memory.
func NewMemDB() (*DB, error) {
	return store.NewMem()
}

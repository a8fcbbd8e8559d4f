// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines the fundamental types shared by the kvscan packages:
// the ordered store interfaces consumed by every job, the logger, and the
// error kinds jobs fail with.
//
// # Stores
//
// A [Reader] hands out fresh [Iterator]s bounded to a half-open key range.
// Iterators are forward-only from the point of view of the jobs: they are
// positioned with First and advanced with Next, and the key and value they
// expose are only valid until the next positioning call. A [Writer] accepts
// atomic [Batch]es from independent workers and exposes the two whole-store
// maintenance operations (Flush and CompactAll) that jobs invoke once, after
// every worker has committed.
//
// # Errors
//
// Every error returned by a job is marked with exactly one of the kinds
// below and can be classified with errors.Is:
//
//   - ErrStoreAccess: reading or writing the underlying store failed.
//   - ErrMalformedKey: an intermediate key (or a value about to become one)
//     breaks the map/reduce key encoding.
//   - ErrInvariantViolation: a partition scheme or grouping key violates a
//     precondition of the job.
//   - ErrConfiguration: the job was configured with invalid parameters.
package base

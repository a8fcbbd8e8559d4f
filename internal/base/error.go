// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrNotFound means that a get call did not find the requested key.
var ErrNotFound = errors.New("kvscan: not found")

// Error kinds. Errors returned by jobs are marked with one of these and can
// be tested with errors.Is.
var (
	ErrStoreAccess        = errors.New("kvscan: store access failed")
	ErrMalformedKey       = errors.New("kvscan: malformed key")
	ErrInvariantViolation = errors.New("kvscan: invariant violation")
	ErrConfiguration      = errors.New("kvscan: invalid configuration")
)

// StoreAccessf wraps err, which was returned by the underlying store, and
// marks it as ErrStoreAccess. It returns nil if err is nil.
func StoreAccessf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrStoreAccess)
}

// MalformedKeyf returns a new error marked as ErrMalformedKey.
func MalformedKeyf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedKey)
}

// InvariantViolationf returns a new error marked as ErrInvariantViolation.
func InvariantViolationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvariantViolation)
}

// Configurationf returns a new error marked as ErrConfiguration.
func Configurationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package mapred implements a map/group/reduce pipeline that uses the sort
// order of an ordered store in place of a shuffle.
//
// The map step rewrites every source entry (k, v) as (v SEP hex(k), k). All
// entries that share a value then share the key prefix "v SEP" and therefore
// sort contiguously in the intermediate store, while the hex-encoded source
// key keeps intermediate keys unique. The reduce step scans the intermediate
// store in key order and emits one entry per run of equal grouping keys.
package mapred

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cockroachdb/kvscan/internal/base"
)

// Policy determines how the map step treats values that contain the
// separator and source keys that contain a byte of the delimiter.
type Policy int8

const (
	// Reject fails the map step on a value containing the separator or a key
	// containing a byte of the delimiter.
	Reject Policy = iota
	// Escape percent-encodes the separator and the escape byte in values, and
	// the delimiter's bytes and the escape byte in source keys. The reduce
	// step decodes grouping keys before writing them; reduced values stay
	// encoded until split with SplitValues.
	Escape
)

func (p Policy) String() string {
	switch p {
	case Reject:
		return "reject"
	case Escape:
		return "escape"
	default:
		return fmt.Sprintf("Policy(%d)", int8(p))
	}
}

// ParsePolicy parses the output of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "reject":
		return Reject, nil
	case "escape":
		return Escape, nil
	default:
		return 0, base.Configurationf("mapred: unknown policy %q", s)
	}
}

const escapeByte = '%'

const hexDigits = "0123456789abcdef"

const upperHexDigits = "0123456789ABCDEF"

// Encoding describes the layout of intermediate keys and reduced values.
type Encoding struct {
	// Separator divides the grouping key from the hex-encoded source key.
	// kvscan.Options treats a zero Separator as unset.
	Separator byte
	// Delimiter is placed between the values of a group. Source keys
	// containing any byte of Delimiter are subject to Policy, so splitting a
	// reduced value on Delimiter always yields the group's keys.
	Delimiter []byte
	// Policy determines the treatment of values containing Separator and of
	// keys containing a byte of Delimiter.
	Policy Policy
	// MinGroupingKeyLen rejects, at map time, values whose encoded grouping
	// key is shorter than this. It is set to the partition width of the
	// reduce step, below which groups could straddle partitions.
	MinGroupingKeyLen int
}

// DefaultEncoding separates grouping keys with '.' and joins reduced values
// with '|'.
var DefaultEncoding = Encoding{
	Separator: '.',
	Delimiter: []byte("|"),
	Policy:    Reject,
}

// Validate returns an error if the encoding is unusable.
func (e Encoding) Validate() error {
	if bytes.IndexByte([]byte(hexDigits), e.Separator) >= 0 {
		return base.Configurationf("mapred: separator %q is a hex digit", e.Separator)
	}
	if e.Policy == Escape && e.Separator == escapeByte {
		return base.Configurationf("mapred: separator %q is the escape byte", e.Separator)
	}
	if e.Policy != Reject && e.Policy != Escape {
		return base.Configurationf("mapred: unknown policy %s", e.Policy)
	}
	if len(e.Delimiter) == 0 {
		return base.Configurationf("mapred: empty delimiter")
	}
	// Escaped keys must never contain the delimiter.
	if e.Policy == Escape &&
		(bytes.IndexByte(e.Delimiter, escapeByte) >= 0 || bytes.ContainsAny(e.Delimiter, upperHexDigits)) {
		return base.Configurationf(
			"mapred: delimiter %q contains the escape byte or an uppercase hex digit", e.Delimiter)
	}
	if e.MinGroupingKeyLen < 0 {
		return base.Configurationf("mapred: negative minimum grouping key length %d", e.MinGroupingKeyLen)
	}
	return nil
}

// EncodeKey appends to dst the intermediate key of the source entry
// (key, value) and returns the extended buffer.
func (e Encoding) EncodeKey(dst, key, value []byte) ([]byte, error) {
	if e.Policy == Reject && bytes.IndexByte(value, e.Separator) >= 0 {
		return dst, base.MalformedKeyf(
			"mapred: value %q of key %q contains separator %q", value, key, e.Separator)
	}
	start := len(dst)
	dst = e.appendGroupingKey(dst, value)
	if n := len(dst) - start; n < e.MinGroupingKeyLen {
		return dst[:start], base.InvariantViolationf(
			"mapred: grouping key %q of key %q is shorter than the reduce partition width %d",
			dst[start:], key, e.MinGroupingKeyLen)
	}
	dst = append(dst, e.Separator)
	for _, b := range key {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return dst, nil
}

func (e Encoding) appendGroupingKey(dst, value []byte) []byte {
	if e.Policy != Escape {
		return append(dst, value...)
	}
	return appendEscaped(dst, value, func(b byte) bool { return b == e.Separator })
}

// EncodeValue appends to dst the intermediate value of a source entry with
// the given key: the key itself, with the delimiter's bytes escaped under
// the Escape policy.
func (e Encoding) EncodeValue(dst, key []byte) ([]byte, error) {
	if e.Policy != Escape {
		if e.containsDelimiterByte(key) {
			return dst, base.MalformedKeyf(
				"mapred: key %q contains a byte of delimiter %q", key, e.Delimiter)
		}
		return append(dst, key...), nil
	}
	return appendEscaped(dst, key, func(b byte) bool {
		return bytes.IndexByte(e.Delimiter, b) >= 0
	}), nil
}

func (e Encoding) containsDelimiterByte(key []byte) bool {
	for _, b := range key {
		if bytes.IndexByte(e.Delimiter, b) >= 0 {
			return true
		}
	}
	return false
}

// GroupingKey returns the prefix of an intermediate key before its last
// separator. It returns false if the key contains no separator.
func (e Encoding) GroupingKey(key []byte) ([]byte, bool) {
	i := bytes.LastIndexByte(key, e.Separator)
	if i < 0 {
		return nil, false
	}
	return key[:i], true
}

// DecodeGroupingKey appends to dst the value a grouping key was encoded
// from.
func (e Encoding) DecodeGroupingKey(dst, groupingKey []byte) ([]byte, error) {
	if e.Policy != Escape {
		return append(dst, groupingKey...), nil
	}
	return appendUnescaped(dst, groupingKey, "grouping key")
}

// SplitValues returns the source keys joined into a reduced value, in the
// order the reduce step wrote them.
func (e Encoding) SplitValues(value []byte) ([][]byte, error) {
	parts := bytes.Split(value, e.Delimiter)
	if e.Policy != Escape {
		return parts, nil
	}
	keys := make([][]byte, len(parts))
	for i, p := range parts {
		k, err := appendUnescaped(nil, p, "key")
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

// appendEscaped appends src to dst, percent-encoding the escape byte and
// every byte for which special returns true.
func appendEscaped(dst, src []byte, special func(b byte) bool) []byte {
	for _, b := range src {
		if b == escapeByte || special(b) {
			dst = append(dst, escapeByte, upperHexDigits[b>>4], upperHexDigits[b&0x0f])
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// appendUnescaped appends the decoding of src, the output of appendEscaped,
// to dst. what names src in errors.
func appendUnescaped(dst, src []byte, what string) ([]byte, error) {
	for i := 0; i < len(src); i++ {
		b := src[i]
		if b != escapeByte {
			dst = append(dst, b)
			continue
		}
		if i+2 >= len(src) {
			return dst, base.MalformedKeyf("mapred: truncated escape in %s %q", what, src)
		}
		hi := strings.IndexByte(upperHexDigits, src[i+1])
		lo := strings.IndexByte(upperHexDigits, src[i+2])
		if hi < 0 || lo < 0 {
			return dst, base.MalformedKeyf("mapred: invalid escape in %s %q", what, src)
		}
		dst = append(dst, byte(hi<<4|lo))
		i += 2
	}
	return dst, nil
}

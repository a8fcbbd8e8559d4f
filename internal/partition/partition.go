// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package partition decomposes a byte-keyed space into disjoint scan ranges
// identified by fixed-width prefixes over a key alphabet.
package partition

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/redact"
)

// MaxPartitions is the largest number of partitions Generate produces.
const MaxPartitions = 1 << 20

// Alphabet is the ordered set of symbols keys are assumed to be drawn from.
// Its bytes must be strictly increasing.
type Alphabet string

// Hex is the lowercase hexadecimal alphabet.
const Hex Alphabet = "0123456789abcdef"

// Validate returns an error if the alphabet cannot be used for partitioning.
func (a Alphabet) Validate() error {
	if len(a) <= 1 {
		return base.Configurationf("partition: alphabet %q must have at least two symbols", string(a))
	}
	for i := 1; i < len(a); i++ {
		if a[i-1] >= a[i] {
			return base.Configurationf("partition: alphabet %q is not strictly increasing at offset %d", string(a), i)
		}
	}
	return nil
}

// Mode determines how a partition's bounds relate to its prefix.
type Mode int8

const (
	// Independent partitions are exact-match filters: a partition holds the
	// keys that start with its prefix. Keys that start with no prefix are not
	// visited.
	Independent Mode = iota
	// Consecutive partitions use the next prefix as their upper bound, so the
	// partitions of one width visit every key of the store exactly once.
	Consecutive
)

func (m Mode) String() string {
	switch m {
	case Independent:
		return "independent"
	case Consecutive:
		return "consecutive"
	default:
		return fmt.Sprintf("Mode(%d)", int8(m))
	}
}

// ParseMode parses the output of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "independent":
		return Independent, nil
	case "consecutive":
		return Consecutive, nil
	default:
		return 0, base.Configurationf("partition: unknown mode %q", s)
	}
}

// Partition is the half-open key range [Lower, Upper) identified by a
// fixed-width prefix. A nil Upper is unbounded. Partitions are values and are
// never mutated after Generate returns them.
type Partition struct {
	// Index is the position of the partition in its generated list.
	Index  int
	Prefix []byte
	Lower  []byte
	Upper  []byte
	Mode   Mode
}

// All returns a single partition spanning the entire key space.
func All() Partition {
	return Partition{Mode: Consecutive}
}

// ScanLower returns the key a scan of the partition starts at. The first
// consecutive partition starts at the beginning of the key space so that keys
// sorting before every prefix are still visited.
func (p Partition) ScanLower() []byte {
	if p.Mode == Consecutive && p.Index == 0 {
		return nil
	}
	return p.Lower
}

// Contains returns whether key belongs to the partition.
func (p Partition) Contains(key []byte) bool {
	if p.Mode == Independent {
		return bytes.HasPrefix(key, p.Prefix)
	}
	if lower := p.ScanLower(); lower != nil && bytes.Compare(key, lower) < 0 {
		return false
	}
	return p.Upper == nil || bytes.Compare(key, p.Upper) < 0
}

func (p Partition) String() string {
	return redact.StringWithoutMarkers(p)
}

// SafeFormat implements redact.SafeFormatter. Prefixes are drawn from the
// alphabet and never carry user data.
func (p Partition) SafeFormat(w redact.SafePrinter, _ rune) {
	upper := redact.SafeString("+inf")
	if p.Upper != nil {
		upper = redact.SafeString(p.Upper)
	}
	w.Printf("partition #%d [%s, %s)", redact.Safe(p.Index), redact.SafeString(p.Lower), upper)
}

// Generate returns the len(alphabet)^width partitions of the given width in
// ascending prefix order.
func Generate(alphabet Alphabet, width int, mode Mode) ([]Partition, error) {
	if err := alphabet.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 {
		return nil, base.Configurationf("partition: width %d must be positive", width)
	}
	if mode != Independent && mode != Consecutive {
		return nil, base.Configurationf("partition: unknown mode %s", mode)
	}
	n := 1
	for i := 0; i < width; i++ {
		n *= len(alphabet)
		if n > MaxPartitions {
			return nil, base.Configurationf(
				"partition: width %d over %d symbols exceeds %d partitions", width, len(alphabet), MaxPartitions)
		}
	}

	buf := make([]byte, n*width)
	prefixes := make([][]byte, n)
	for i := range prefixes {
		prefix := buf[i*width : (i+1)*width : (i+1)*width]
		for j, v := width-1, i; j >= 0; j-- {
			prefix[j] = alphabet[v%len(alphabet)]
			v /= len(alphabet)
		}
		prefixes[i] = prefix
	}

	parts := make([]Partition, n)
	for i, prefix := range prefixes {
		parts[i] = Partition{Index: i, Prefix: prefix, Lower: prefix, Mode: mode}
		switch mode {
		case Independent:
			parts[i].Upper = PrefixSuccessor(prefix)
		case Consecutive:
			if i+1 < n {
				parts[i].Upper = prefixes[i+1]
			}
		}
	}
	return parts, nil
}

// Check verifies that parts are sorted and pairwise disjoint, and, for
// consecutive partitions, that they are contiguous and cover the key space.
func Check(parts []Partition) error {
	for i, p := range parts {
		if p.Index != i {
			return base.InvariantViolationf("partition: %s found at position %d", p, i)
		}
		if p.Upper != nil && bytes.Compare(p.Lower, p.Upper) >= 0 {
			return base.InvariantViolationf("partition: %s is empty", p)
		}
		if i == 0 {
			continue
		}
		prev := parts[i-1]
		if p.Mode != prev.Mode {
			return base.InvariantViolationf("partition: %s and %s have different modes", prev, p)
		}
		switch {
		case prev.Upper == nil:
			return base.InvariantViolationf("partition: unbounded %s is followed by %s", prev, p)
		case p.Mode == Consecutive && !bytes.Equal(prev.Upper, p.Lower):
			return base.InvariantViolationf("partition: %s and %s are not contiguous", prev, p)
		case bytes.Compare(prev.Upper, p.Lower) > 0:
			return base.InvariantViolationf("partition: %s overlaps %s", prev, p)
		}
	}
	if n := len(parts); n > 0 && parts[n-1].Mode == Consecutive && parts[n-1].Upper != nil {
		return base.InvariantViolationf("partition: last %s is bounded", parts[n-1])
	}
	return nil
}

// PrefixSuccessor returns the smallest key that is larger than every key
// starting with prefix, or nil if there is no such key.
func PrefixSuccessor(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xff {
			succ := append([]byte(nil), prefix[:i+1]...)
			succ[i]++
			return succ
		}
	}
	return nil
}

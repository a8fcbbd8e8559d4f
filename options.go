// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package kvscan

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan/internal/base"
	"github.com/cockroachdb/kvscan/internal/mapred"
	"github.com/cockroachdb/kvscan/internal/scan"
)

// Options holds the optional parameters for a job. The zero value, or a nil
// *Options, is usable.
type Options struct {
	// Alphabet is the set of symbols partition prefixes are drawn from. Keys
	// are assumed to be uniformly distributed over strings of this alphabet.
	// Keys outside of it are still visited by consecutive partitions, but
	// may make the partitions unbalanced.
	//
	// The default value is Hex.
	Alphabet Alphabet

	// Concurrency is the number of workers a job runs partitions on.
	//
	// The default value is runtime.GOMAXPROCS(0).
	Concurrency int

	// Logger receives the start and finish messages of jobs.
	//
	// The default value is DefaultLogger.
	Logger Logger

	// Observer is notified as partitions complete. It is never serialized by
	// String.
	Observer Observer

	// Encoding is the layout of intermediate map/reduce keys.
	//
	// The default value is DefaultEncoding. A zero Separator or an empty
	// Delimiter selects the default, so 0x00 cannot be used as a separator.
	Encoding Encoding

	// GroupWidth is the partition width the reduce step over the output of a
	// map step will use. A map step rejects values whose grouping key is
	// shorter than GroupWidth, since their group could later be split
	// between two reduce partitions.
	//
	// The default value, 0, uses the width of the map step itself.
	GroupWidth int

	// AllowNonEmptyOutput permits MapReduce to write into an output store
	// that already holds entries. Existing entries are not removed and may
	// be interleaved with, or overwritten by, the job's output.
	AllowNonEmptyOutput bool
}

// Clone creates a shallow copy of the supplied options.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	n := *o
	n.Encoding.Delimiter = append([]byte(nil), o.Encoding.Delimiter...)
	return &n
}

// EnsureDefaults fills in default values for unset fields. It returns the
// receiver, or a new Options if the receiver is nil.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.Alphabet == "" {
		o.Alphabet = Hex
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger{}
	}
	if o.Observer == nil {
		o.Observer = scan.NoopObserver{}
	}
	if o.Encoding.Separator == 0 {
		o.Encoding.Separator = DefaultEncoding.Separator
	}
	if len(o.Encoding.Delimiter) == 0 {
		o.Encoding.Delimiter = append([]byte(nil), DefaultEncoding.Delimiter...)
	}
	return o
}

// Validate verifies that the options are mutually consistent. It presumes
// EnsureDefaults has been called. The returned error is marked
// ErrConfiguration.
func (o *Options) Validate() error {
	var buf strings.Builder
	if err := o.Alphabet.Validate(); err != nil {
		fmt.Fprintf(&buf, "%v\n", err)
	}
	if err := o.Encoding.Validate(); err != nil {
		fmt.Fprintf(&buf, "%v\n", err)
	}
	if o.GroupWidth < 0 {
		fmt.Fprintf(&buf, "GroupWidth (%d) must be >= 0\n", o.GroupWidth)
	}
	if buf.Len() == 0 {
		return nil
	}
	return errors.Mark(errors.New(strings.TrimSuffix(buf.String(), "\n")), ErrConfiguration)
}

// String returns the options in the INI-like format read by Parse. The
// Logger and Observer are not included.
func (o *Options) String() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  alphabet=%s\n", strconv.Quote(string(o.Alphabet)))
	fmt.Fprintf(&buf, "  allow_non_empty_output=%t\n", o.AllowNonEmptyOutput)
	fmt.Fprintf(&buf, "  concurrency=%d\n", o.Concurrency)
	fmt.Fprintf(&buf, "  group_width=%d\n", o.GroupWidth)

	fmt.Fprintf(&buf, "\n")
	fmt.Fprintf(&buf, "[Encoding]\n")
	fmt.Fprintf(&buf, "  delimiter=%s\n", strconv.Quote(string(o.Encoding.Delimiter)))
	fmt.Fprintf(&buf, "  policy=%s\n", o.Encoding.Policy)
	fmt.Fprintf(&buf, "  separator=%s\n", strconv.Quote(string([]byte{o.Encoding.Separator})))

	return buf.String()
}

// parseOptions splits options serialized by Options.String into sections and
// key-value pairs, calling visit for each pair. Blank lines and lines starting
// with ';' or '#' are skipped.
func parseOptions(s string, visit func(section, key, value string) error) error {
	var section string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			continue
		}
		n := len(line)
		if line[0] == '[' && line[n-1] == ']' {
			section = line[1 : n-1]
			continue
		}

		pos := strings.Index(line, "=")
		if pos < 0 {
			const maxLen = 50
			if len(line) > maxLen {
				line = line[:maxLen-3] + "..."
			}
			return base.Configurationf("kvscan: invalid key=value syntax: %q", line)
		}
		key := strings.TrimSpace(line[:pos])
		value := strings.TrimSpace(line[pos+1:])
		if err := visit(section, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Parse parses options from the format written by String, overwriting the
// fields it names. Unknown sections and keys are errors.
func (o *Options) Parse(s string) error {
	return parseOptions(s, func(section, key, value string) error {
		var err error
		switch section + "." + key {
		case "Options.alphabet":
			var a string
			a, err = strconv.Unquote(value)
			o.Alphabet = Alphabet(a)
		case "Options.allow_non_empty_output":
			o.AllowNonEmptyOutput, err = strconv.ParseBool(value)
		case "Options.concurrency":
			o.Concurrency, err = strconv.Atoi(value)
		case "Options.group_width":
			o.GroupWidth, err = strconv.Atoi(value)
		case "Encoding.delimiter":
			var d string
			d, err = strconv.Unquote(value)
			o.Encoding.Delimiter = []byte(d)
		case "Encoding.policy":
			o.Encoding.Policy, err = mapred.ParsePolicy(value)
		case "Encoding.separator":
			var sep string
			sep, err = strconv.Unquote(value)
			if err == nil && len(sep) != 1 {
				err = errors.Newf("separator %q must be a single byte", sep)
			}
			if err == nil && sep[0] == 0 {
				err = errors.New("separator must not be NUL")
			}
			if err == nil {
				o.Encoding.Separator = sep[0]
			}
		default:
			return base.Configurationf("kvscan: unknown option: %s.%s", section, key)
		}
		if err != nil {
			return errors.Mark(
				errors.Wrapf(err, "kvscan: invalid value for %s.%s", section, key), ErrConfiguration)
		}
		return nil
	})
}

// pool returns the worker pool of a job run with these options.
func (o *Options) pool() *scan.Pool {
	return scan.NewPool(o.Concurrency)
}

// prepare returns a copy of opts with defaults filled in, validated.
func prepare(opts *Options) (*Options, error) {
	o := opts.Clone().EnsureDefaults()
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

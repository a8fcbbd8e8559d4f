// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan"
	"github.com/spf13/cobra"
)

var inspectConfig struct {
	key          string
	oneByOne     bool
	stats        bool
	countWidth   int
	printOptions bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [<dir>]",
	Short: "inspect a store",
	Long: `
Inspect a store by looking up a key (--key), by printing its entries one at a
time (--one-by-one), by printing its metrics (--stats), or by counting the
keys starting with a hex prefix of a given width (--count).
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) (err error) {
	if inspectConfig.printOptions {
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, opts.String())
		return nil
	}

	if len(args) == 0 {
		return errors.New("a store directory is required")
	}
	db, err := openStore(args[0], kvscan.ReadOnly)
	if err != nil {
		return err
	}
	defer closeStore(db, &err)

	switch {
	case inspectConfig.key != "":
		v, err := db.Get([]byte(inspectConfig.key))
		if err != nil {
			return errors.Wrapf(err, "key %q", inspectConfig.key)
		}
		fmt.Fprintf(stdout, "key: %s value: %s\n", inspectConfig.key, formatKey(v))
		return nil

	case inspectConfig.oneByOne:
		return inspectOneByOne(db)

	case inspectConfig.stats:
		fmt.Fprintf(stdout, "%s\n", db.Metrics())
		return nil

	case inspectConfig.countWidth > 0:
		var n int64
		err := runJob(func(ctx context.Context, opts *kvscan.Options) error {
			opts.Alphabet = kvscan.Hex
			var err error
			n, err = kvscan.CountMatching(ctx, db, inspectConfig.countWidth, opts)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "count: %d\n", n)
		return nil

	default:
		return errors.New("one of --key, --one-by-one, --stats, --count or --print-options is required")
	}
}

// inspectOneByOne prints the entries of r in order, one per line read from
// stdin. A line consisting of "q" stops.
func inspectOneByOne(r kvscan.Reader) (err error) {
	iter, err := r.NewIter(nil, nil)
	if err != nil {
		return err
	}
	defer func() { err = errors.CombineErrors(err, iter.Close()) }()

	in := bufio.NewScanner(stdin)
	for valid := iter.First(); valid; valid = iter.Next() {
		fmt.Fprintf(stdout, "key: %s value: %s\n", formatKey(iter.Key()), formatKey(iter.Value()))
		if !in.Scan() || strings.TrimSpace(in.Text()) == "q" {
			return in.Err()
		}
	}
	return iter.Error()
}

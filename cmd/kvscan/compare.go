// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/cockroachdb/kvscan"
	"github.com/spf13/cobra"
)

var compareConfig struct {
	emit bool
}

var compareCmd = &cobra.Command{
	Use:   "compare <left-dir> <right-dir>",
	Short: "compute the set relationship between the keys of two stores",
	Long: `
Merge the keys of two stores and count the keys present only in the left
store, only in the right store, and in both. Values are ignored. With
--emit, keys present in only one store are printed, prefixed with "<" for
the left store and ">" for the right one. Keys are printed in order within
each partition; partitions are interleaved unless --width=0.
`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func runCompare(cmd *cobra.Command, args []string) (err error) {
	left, err := openStore(args[0], kvscan.ReadOnly)
	if err != nil {
		return err
	}
	defer closeStore(left, &err)
	right, err := openStore(args[1], kvscan.ReadOnly)
	if err != nil {
		return err
	}
	defer closeStore(right, &err)

	var visit kvscan.CompareVisitor
	if compareConfig.emit {
		var mu sync.Mutex
		visit = func(kind kvscan.JoinKind, key, _, _ []byte) error {
			var marker string
			switch kind {
			case kvscan.LeftOnly:
				marker = "<"
			case kvscan.RightOnly:
				marker = ">"
			default:
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			_, err := fmt.Fprintf(stdout, "%s %s\n", marker, formatKey(key))
			return err
		}
	}

	var res kvscan.CompareResult
	err = runJob(func(ctx context.Context, opts *kvscan.Options) error {
		var err error
		res, err = kvscan.DiffStores(ctx, left, right, width, opts, visit)
		return err
	})
	if err != nil {
		return err
	}
	renderTable(stdout,
		[]string{"", "left", "right"},
		[][]string{
			{"total", strconv.FormatInt(res.LeftTotal(), 10), strconv.FormatInt(res.RightTotal(), 10)},
			{"unique", strconv.FormatInt(res.LeftOnly, 10), strconv.FormatInt(res.RightOnly, 10)},
			{"intersection", strconv.FormatInt(res.Intersection, 10), strconv.FormatInt(res.Intersection, 10)},
		})
	return nil
}

// formatKey prints printable keys as is and quotes the others.
func formatKey(key []byte) string {
	for _, c := range key {
		if c < 0x20 || c > 0x7e {
			return strconv.Quote(string(key))
		}
	}
	return string(key)
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/kvscan"
	"github.com/spf13/cobra"
)

var mapConfig struct {
	groupWidth int
	keep       bool
}

var mapCmd = &cobra.Command{
	Use:   "map <src-dir> <dst-dir>",
	Short: "rewrite every entry (k, v) as (v.hex(k), k)",
	Long: `
Run the map step of a group-by-value job: every entry (k, v) of the source
store is written to the destination store as (v SEP hex(k), k). Entries
sharing a value end up next to each other in the destination store.
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(kvscan.Map, args[0], args[1])
	},
}

var reduceCmd = &cobra.Command{
	Use:   "reduce <src-dir> <dst-dir>",
	Short: "join the keys of each group written by map",
	Long: `
Run the reduce step of a group-by-value job over the output of the map step:
for every value, write one entry mapping the value to the keys it was found
under, joined with the delimiter.
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(kvscan.Reduce, args[0], args[1])
	},
}

var mapReduceCmd = &cobra.Command{
	Use:   "mapreduce <src-dir> <intermediate-dir> <dst-dir>",
	Short: "group the keys of a store by value",
	Long: `
Run the map step into the intermediate store, then the reduce step into the
destination store. The intermediate store is removed afterwards unless
--keep-intermediate is set.
`,
	Args: cobra.ExactArgs(3),
	RunE: runMapReduce,
}

func runStep(step kvscan.Step, srcDir, dstDir string) (err error) {
	src, err := openStore(srcDir, kvscan.ReadOnly)
	if err != nil {
		return err
	}
	defer closeStore(src, &err)
	dst, err := openStore(dstDir, kvscan.BulkIngest)
	if err != nil {
		return err
	}
	defer closeStore(dst, &err)

	var res kvscan.MapReduceResult
	err = runJob(func(ctx context.Context, opts *kvscan.Options) error {
		if step == kvscan.Map && mapConfig.groupWidth > 0 {
			opts.GroupWidth = mapConfig.groupWidth
		}
		var err error
		res, err = kvscan.MapReduce(ctx, src, dst, step, width, opts)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %s\n", step, res)
	return nil
}

func runMapReduce(cmd *cobra.Command, args []string) error {
	srcDir, interDir, dstDir := args[0], args[1], args[2]
	if err := runStep(kvscan.Map, srcDir, interDir); err != nil {
		return err
	}
	if err := runStep(kvscan.Reduce, interDir, dstDir); err != nil {
		return err
	}
	if !mapConfig.keep {
		return os.RemoveAll(interDir)
	}
	return nil
}

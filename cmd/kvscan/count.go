// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/kvscan"
	"github.com/cockroachdb/kvscan/internal/progress"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

var countConfig struct {
	matching   bool
	plotHeight int
}

var countCmd = &cobra.Command{
	Use:   "count <dir>",
	Short: "count the entries of a store",
	Long: `
Count the entries of a store with one worker per partition. By default the
partitions are consecutive and every entry is counted. With --matching, each
partition only counts the keys starting with its prefix.
`,
	Args: cobra.ExactArgs(1),
	RunE: runCount,
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <dir>",
	Short: "compute an order-independent digest of a store",
	Long: `
Compute the number of entries of a store and the sum of the hashes of its
entries. Stores holding the same entries have the same fingerprint.
`,
	Args: cobra.ExactArgs(1),
	RunE: runFingerprint,
}

func runCount(cmd *cobra.Command, args []string) (err error) {
	db, err := openStore(args[0], kvscan.ReadOnly)
	if err != nil {
		return err
	}
	defer closeStore(db, &err)

	var n int64
	var distribution []int64
	err = runJob(func(ctx context.Context, opts *kvscan.Options) error {
		var err error
		if countConfig.matching {
			n, err = kvscan.CountMatching(ctx, db, width, opts)
		} else {
			n, err = kvscan.ScanAndCount(ctx, db, width, opts)
		}
		distribution = opts.Observer.(*progress.Tracker).Distribution()
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d\n", n)
	if countConfig.plotHeight > 0 && len(distribution) > 0 {
		fmt.Fprintln(stdout, plotDistribution(distribution, countConfig.plotHeight))
	}
	return nil
}

// plotDistribution plots the number of entries per partition. Large
// partition counts are bucketed so the plot fits in a terminal.
func plotDistribution(counts []int64, height int) string {
	const maxPoints = 256
	step := (len(counts) + maxPoints - 1) / maxPoints
	values := make([]float64, 0, maxPoints)
	for i := 0; i < len(counts); i += step {
		var sum int64
		for _, c := range counts[i:min(i+step, len(counts))] {
			sum += c
		}
		values = append(values, float64(sum))
	}
	caption := fmt.Sprintf("entries per partition (%d partitions", len(counts))
	if step > 1 {
		caption += fmt.Sprintf(", %d per point", step)
	}
	caption += ")"
	return asciigraph.Plot(values, asciigraph.Height(height), asciigraph.Caption(caption))
}

func runFingerprint(cmd *cobra.Command, args []string) (err error) {
	db, err := openStore(args[0], kvscan.ReadOnly)
	if err != nil {
		return err
	}
	defer closeStore(db, &err)

	var fp kvscan.Fingerprint
	err = runJob(func(ctx context.Context, opts *kvscan.Options) error {
		var err error
		fp, err = kvscan.ComputeFingerprint(ctx, db, width, opts)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n", fp)
	return nil
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	concurrency  int
	metricsAddr  string
	optionsPath  string
	showProgress bool
	verbose      bool
	wipe         bool
	width        int
)

var rootCmd = &cobra.Command{
	Use:   "kvscan [command] (flags)",
	Short: "partition-parallel analytics over Pebble stores",
	Long:  ``,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		countCmd,
		fingerprintCmd,
		compareCmd,
		mapCmd,
		reduceCmd,
		mapReduceCmd,
		generateCmd,
		putCmd,
		inspectCmd,
	)

	rootCmd.PersistentFlags().IntVarP(
		&concurrency, "concurrency", "c", 0, "number of concurrent workers (0 means GOMAXPROCS)")
	rootCmd.PersistentFlags().StringVar(
		&optionsPath, "options", "", "path to a file of job options, as written by --print-options")
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable verbose job logging")

	for _, cmd := range []*cobra.Command{
		countCmd, fingerprintCmd, compareCmd, mapCmd, reduceCmd, mapReduceCmd, generateCmd, inspectCmd,
	} {
		cmd.Flags().BoolVar(
			&showProgress, "progress", true, "print progress once per second")
		cmd.Flags().StringVar(
			&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	}
	for _, cmd := range []*cobra.Command{countCmd, fingerprintCmd, mapCmd, reduceCmd, mapReduceCmd} {
		cmd.Flags().IntVar(
			&width, "width", 4, "partition prefix width")
	}
	compareCmd.Flags().IntVar(
		&width, "width", 4, "partition prefix width (0 runs a single serial merge)")
	for _, cmd := range []*cobra.Command{mapCmd, reduceCmd, mapReduceCmd, generateCmd} {
		cmd.Flags().BoolVarP(
			&wipe, "wipe", "w", false, "wipe the output store before starting")
	}

	countCmd.Flags().BoolVar(
		&countConfig.matching, "matching", false,
		"only count keys starting with a prefix of the alphabet")
	countCmd.Flags().IntVar(
		&countConfig.plotHeight, "plot", 0,
		"plot the number of entries per partition with the given height (0 disables)")

	compareCmd.Flags().BoolVar(
		&compareConfig.emit, "emit", false, "print every key present in only one store")

	mapCmd.Flags().IntVar(
		&mapConfig.groupWidth, "group-width", 0,
		"width the output will be reduced with (0 means --width)")
	mapReduceCmd.Flags().BoolVar(
		&mapConfig.keep, "keep-intermediate", false, "keep the intermediate store")

	generateCmd.Flags().IntVarP(
		&generateConfig.entries, "entries", "n", 800_000, "number of entries to write")
	generateCmd.Flags().IntVar(
		&generateConfig.writers, "writers", 8, "number of concurrent writers")
	generateCmd.Flags().Uint64Var(
		&generateConfig.seed, "seed", 1, "random seed")
	for _, cmd := range []*cobra.Command{generateCmd, putCmd} {
		cmd.Flags().IntVar(
			&generateConfig.keyLen, "key-len", 16, "number of random bytes per key")
		cmd.Flags().IntVar(
			&generateConfig.valueLen, "value-len", 3, "number of random bytes per value")
	}
	putCmd.Flags().Uint64Var(
		&putSeed, "seed", 0, "random seed (0 picks one from the clock)")

	inspectCmd.Flags().StringVar(
		&inspectConfig.key, "key", "", "print the value of this key")
	inspectCmd.Flags().BoolVar(
		&inspectConfig.oneByOne, "one-by-one", false,
		"print entries one at a time, waiting for enter ('q' quits)")
	inspectCmd.Flags().BoolVar(
		&inspectConfig.stats, "stats", false, "print store metrics")
	inspectCmd.Flags().IntVar(
		&inspectConfig.countWidth, "count", 0,
		"count keys starting with a hex prefix of this width (0 disables)")
	inspectCmd.Flags().BoolVar(
		&inspectConfig.printOptions, "print-options", false,
		"print the effective job options in the format read by --options")
}

func main() {
	log.SetFlags(0)

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan"
	"github.com/cockroachdb/kvscan/internal/hexgen"
	"github.com/spf13/cobra"
)

var generateConfig struct {
	entries  int
	writers  int
	seed     uint64
	keyLen   int
	valueLen int
}

var putSeed uint64

var generateCmd = &cobra.Command{
	Use:   "generate <dir>",
	Short: "write random hex entries to a store",
	Long: `
Write random entries whose keys and values are hex-encoded random bytes.
Each writer writes its share of the entries in a single batch. The store is
flushed and compacted once all writers are done.
`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var putCmd = &cobra.Command{
	Use:   "put <dir>",
	Short: "write one random hex entry and read it back",
	Args:  cobra.ExactArgs(1),
	RunE:  runPut,
}

func runGenerate(cmd *cobra.Command, args []string) (err error) {
	db, err := openStore(args[0], kvscan.BulkIngest)
	if err != nil {
		return err
	}
	defer closeStore(db, &err)

	var n int64
	err = runJob(func(ctx context.Context, opts *kvscan.Options) error {
		var err error
		n, err = hexgen.Populate(ctx, db, hexgen.Config{
			Entries:  generateConfig.entries,
			Writers:  generateConfig.writers,
			Seed:     generateConfig.seed,
			KeyLen:   generateConfig.keyLen,
			ValueLen: generateConfig.valueLen,
			Observer: opts.Observer,
		})
		if err != nil {
			return err
		}
		if err := db.Flush(); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(stderr, "before compaction:\n%s\n", db.Metrics())
		}
		start := time.Now()
		if err := db.CompactAll(ctx); err != nil {
			return err
		}
		opts.Logger.Infof("generate: compacted in %.1fs", time.Since(start).Seconds())
		return nil
	})
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(stderr, "after compaction:\n%s\n", db.Metrics())
	}
	fmt.Fprintf(stdout, "wrote %s entries to %s\n",
		crhumanize.Count(n, crhumanize.Compact), args[0])
	return nil
}

func runPut(cmd *cobra.Command, args []string) (err error) {
	db, err := openStore(args[0], kvscan.ReadWrite)
	if err != nil {
		return err
	}
	defer closeStore(db, &err)

	seed := putSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	key, value := hexgen.New(seed, generateConfig.keyLen, generateConfig.valueLen).Next()
	if err := db.Set(key, value); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "key: %s\n", key)
	v, err := db.Get(key)
	if errors.Is(err, kvscan.ErrNotFound) {
		fmt.Fprintf(stdout, "key not found\n")
		return nil
	} else if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "val: %s\n", v)
	return nil
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/kvscan"
	"github.com/cockroachdb/kvscan/internal/progress"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var stdout = io.Writer(os.Stdout)
var stderr = io.Writer(os.Stderr)
var stdin = io.Reader(os.Stdin)

// loadOptions returns the job options configured by --options, --concurrency
// and --verbose.
func loadOptions() (*kvscan.Options, error) {
	opts := &kvscan.Options{}
	if optionsPath != "" {
		data, err := os.ReadFile(optionsPath)
		if err != nil {
			return nil, errors.Wrapf(err, "reading options")
		}
		if err := opts.Parse(string(data)); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", optionsPath)
		}
	}
	if concurrency > 0 {
		opts.Concurrency = concurrency
	}
	if verbose {
		opts.Logger = kvscan.DefaultLogger{}
	} else {
		opts.Logger = kvscan.NoopLogger{}
	}
	opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// openStore opens the store in dir. Stores opened for writing are wiped
// first if --wipe is set.
func openStore(dir string, mode kvscan.OpenMode) (*kvscan.DB, error) {
	if wipe && mode != kvscan.ReadOnly {
		fmt.Fprintf(stderr, "wiping %s\n", dir)
		if err := os.RemoveAll(dir); err != nil {
			return nil, err
		}
	}
	return kvscan.Open(dir, mode, &kvscan.StoreOptions{Logger: kvscan.DefaultLogger{}})
}

// closeStore closes db, folding the error into *err.
func closeStore(db *kvscan.DB, err *error) {
	*err = errors.CombineErrors(*err, db.Close())
}

// serveMetrics serves the metrics of tr on --metrics-addr until the returned
// function is called.
func serveMetrics(tr *progress.Tracker) (stop func(), _ error) {
	if metricsAddr == "" {
		return func() {}, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(tr, collectors.NewGoCollector())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "serving metrics")
	}
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	fmt.Fprintf(stderr, "serving metrics on http://%s/metrics\n", ln.Addr())
	return func() { _ = srv.Close() }, nil
}

// runJob runs fn with a progress tracker installed as the options' observer,
// printing progress once per second until fn returns. An interrupt cancels
// the context passed to fn.
func runJob(fn func(ctx context.Context, opts *kvscan.Options) error) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	tr := progress.NewTracker("kvscan")
	opts.Observer = tr
	stopMetrics, err := serveMetrics(tr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fn(ctx, opts) }()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var p progressPrinter
	for {
		select {
		case <-ticker.C:
			if showProgress {
				tr.Tick(p.tick)
			}

		case <-interrupt:
			fmt.Fprintf(stderr, "interrupted, canceling\n")
			cancel()

		case err := <-done:
			if err == nil && showProgress {
				tr.Tick(p.done)
			}
			return err
		}
	}
}

type progressPrinter struct {
	ticks       int
	lastEntries int64
}

func (p *progressPrinter) tick(t progress.Tick) {
	if p.ticks%20 == 0 {
		fmt.Fprintln(stderr, "_elapsed___partitions_____entries__entries/sec__p50(ms)__p99(ms)")
	}
	p.ticks++
	fmt.Fprintf(stderr, "%8s %12s %12s %12.1f %8.1f %8.1f\n",
		time.Duration(t.Elapsed.Seconds()+0.5)*time.Second,
		fmt.Sprintf("%d/%d", t.Done, t.Partitions),
		crhumanize.Count(t.Entries, crhumanize.Compact),
		float64(t.Entries-p.lastEntries)/t.Interval.Seconds(),
		time.Duration(t.Hist.ValueAtQuantile(50)).Seconds()*1000,
		time.Duration(t.Hist.ValueAtQuantile(99)).Seconds()*1000,
	)
	p.lastEntries = t.Entries
}

func (p *progressPrinter) done(t progress.Tick) {
	fmt.Fprintln(stderr, "\n_elapsed___partitions_____entries__entries/sec(cum)__p50(ms)__p99(ms)__pMax(ms)")
	fmt.Fprintf(stderr, "%7.1fs %12d %12s %17.1f %8.1f %8.1f %9.1f\n\n",
		t.Elapsed.Seconds(),
		t.Done,
		crhumanize.Count(t.Entries, crhumanize.Compact),
		float64(t.Entries)/t.Elapsed.Seconds(),
		time.Duration(t.Cumulative.ValueAtQuantile(50)).Seconds()*1000,
		time.Duration(t.Cumulative.ValueAtQuantile(99)).Seconds()*1000,
		time.Duration(t.Cumulative.Max()).Seconds()*1000,
	)
}

// renderTable writes rows as a table with a header.
func renderTable(w io.Writer, header []string, rows [][]string) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAlignment(tablewriter.ALIGN_RIGHT)
	tw.AppendBulk(rows)
	tw.Render()
}

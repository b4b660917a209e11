// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"canopy/internal/watch"
)

// runWatch executes the 'watch' CLI command: an initial full index
// followed by incremental reindexing on every debounced filesystem
// change, with no control API exposed. It runs until interrupted.
func runWatch(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: canopy watch [options]

Indexes the repository once, then watches the filesystem and
incrementally reindexes on every debounced batch of changes until
interrupted (Ctrl-C).

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger := buildLogger(globals)
	cwd, err := os.Getwd()
	if err != nil {
		fatal(fmt.Errorf("determine working directory: %w", err), globals.Quiet)
	}

	eng, err := newEngine(cwd, configPath, logger)
	if err != nil {
		fatal(err, globals.Quiet)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	runInitialAndWatch(ctx, eng, globals)
}

// runInitialAndWatch performs the cold full index, then starts a
// fsnotify-backed Watcher and feeds its debounced batches through
// ProcessBatch until ctx is canceled.
func runInitialAndWatch(ctx context.Context, eng *engine, globals GlobalFlags) {
	paths, err := eng.walkRepo()
	if err != nil {
		fatal(fmt.Errorf("walk repository: %w", err), globals.Quiet)
	}
	events := make([]watch.Event, 0, len(paths))
	for _, p := range paths {
		events = append(events, watch.Event{Path: p, Op: watch.OpCreate})
	}
	if len(events) > 0 {
		if _, err := eng.Indexer.ProcessBatch(ctx, watch.Batch{Events: events}); err != nil {
			fatal(fmt.Errorf("initial index: %w", err), globals.Quiet)
		}
	}
	printf(globals.Quiet, "indexed %d file(s), watching for changes", len(events))

	w, err := watch.New(watch.Config{
		Root:         eng.RepoRoot,
		Debounce:     time.Duration(eng.Cfg.Indexing.DebounceMillis) * time.Millisecond,
		ExcludeGlobs: eng.Cfg.Indexing.Exclude,
	})
	if err != nil {
		fatal(fmt.Errorf("start watcher: %w", err), globals.Quiet)
	}
	defer w.Close()

	errs := make(chan error, 1)
	go w.Run(ctx, errs)

	for {
		select {
		case <-ctx.Done():
			if err := saveSnapshot(eng); err != nil {
				printWarn("warning: could not save snapshot: %v", err)
			}
			return
		case err, ok := <-errs:
			if !ok {
				continue
			}
			printWarn("watch error: %v", err)
		case batch, ok := <-w.Batches():
			if !ok {
				return
			}
			diff, err := eng.Indexer.ProcessBatch(ctx, batch)
			if err != nil {
				printWarn("reindex error: %v", err)
				continue
			}
			if !diff.Empty() {
				printf(globals.Quiet, "reindexed: +%d nodes, -%d nodes, +%d edges, -%d edges",
					len(diff.AddedNodes), len(diff.RemovedNodeIDs), len(diff.AddedEdges), len(diff.RemovedEdgeIDs))
			}
		}
	}
}

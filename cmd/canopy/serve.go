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

	flag "github.com/spf13/pflag"

	"canopy/internal/api"
)

const defaultServeAddr = ":8971"

// runServe executes the 'serve' CLI command: a cold full index, a
// background Watcher feeding incremental reindexes, and the control API
// (snapshot, node, search, paths, export, live websocket feed, and
// Prometheus metrics) over HTTP, all running until interrupted.
func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", defaultServeAddr, "HTTP listen address for the control API")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: canopy serve [options]

Indexes the repository, watches it for changes, and serves the control
API: GET /v1/snapshot, /v1/nodes/{id}, /v1/search, /v1/paths, /v1/export,
the /v1/live websocket feed, and Prometheus /metrics.

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

	go runInitialAndWatch(ctx, eng, globals)

	srv := api.New(eng.Store, eng.Indexer, eng.Cache, logger)
	printf(globals.Quiet, "serving on %s", *addr)
	if err := srv.Run(ctx, *addr); err != nil {
		fatal(fmt.Errorf("serve: %w", err), globals.Quiet)
	}
}

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
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"canopy/internal/graph"
	"canopy/internal/watch"
)

// statusResult is the 'status' command's JSON payload.
type statusResult struct {
	ProjectID     string `json:"project_id"`
	RepoRoot      string `json:"repo_root"`
	Layout        string `json:"layout"`
	Files         int    `json:"files"`
	Functions     int    `json:"functions"`
	Types         int    `json:"types"`
	ConfigBlocks  int    `json:"config_blocks"`
	TotalNodes    int    `json:"total_nodes"`
	TotalEdges    int    `json:"total_edges"`
	SnapshotCache bool   `json:"snapshot_cache_present"`
}

// runStatus executes the 'status' CLI command: a fresh full index (no
// watcher, no server) followed by a count of what landed in the graph.
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", globals.JSON, "Output in JSON format")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: canopy status [options]

Indexes the repository once and reports graph statistics: how many
files, functions, types, and config blocks were found.

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

	paths, err := eng.walkRepo()
	if err != nil {
		fatal(fmt.Errorf("walk repository: %w", err), globals.Quiet)
	}

	if len(paths) > 0 {
		events := make([]watch.Event, 0, len(paths))
		for _, p := range paths {
			events = append(events, watch.Event{Path: p, Op: watch.OpCreate})
		}
		if _, err := eng.Indexer.ProcessBatch(context.Background(), watch.Batch{Events: events}); err != nil {
			fatal(fmt.Errorf("index: %w", err), globals.Quiet)
		}
	}

	_, snapPresent, _ := eng.Snapshot.Load()

	result := statusResult{
		ProjectID:     eng.Cfg.ProjectID,
		RepoRoot:      eng.RepoRoot,
		Layout:        string(eng.Detection.Layout),
		Files:         len(eng.Store.NodesByKind(graph.KindFile)),
		Functions:     len(eng.Store.NodesByKind(graph.KindFunction)) + len(eng.Store.NodesByKind(graph.KindMethod)),
		Types:         len(eng.Store.NodesByKind(graph.KindStruct)) + len(eng.Store.NodesByKind(graph.KindClass)) + len(eng.Store.NodesByKind(graph.KindInterface)),
		ConfigBlocks:  len(eng.Store.NodesByKind(graph.KindConfigBlock)),
		TotalNodes:    len(eng.Store.AllNodes()),
		TotalEdges:    len(eng.Store.AllEdges()),
		SnapshotCache: snapPresent,
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	fmt.Printf("project:       %s\n", result.ProjectID)
	fmt.Printf("repo root:     %s\n", result.RepoRoot)
	fmt.Printf("layout:        %s\n", result.Layout)
	fmt.Printf("files:         %d\n", result.Files)
	fmt.Printf("functions:     %d\n", result.Functions)
	fmt.Printf("types:         %d\n", result.Types)
	fmt.Printf("config blocks: %d\n", result.ConfigBlocks)
	fmt.Printf("total nodes:   %d\n", result.TotalNodes)
	fmt.Printf("total edges:   %d\n", result.TotalEdges)
}

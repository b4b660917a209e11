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
	"path/filepath"

	flag "github.com/spf13/pflag"

	"canopy/internal/cachestore"
	"canopy/internal/gitdelta"
	"canopy/internal/graph"
	"canopy/internal/watch"
)

// runIndex executes the 'index' CLI command: a one-shot pass over the
// repository, either a cold full walk or, with --since, only the files a
// git diff reports as changed.
//
// Examples:
//
//	canopy index                Full walk of the repository
//	canopy index --since HEAD~3 Only files changed since HEAD~3
func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	since := fs.String("since", "", "Only index files changed since this git ref (base defaults to the empty tree)")
	save := fs.Bool("save", true, "Persist the resulting snapshot to the cache directory")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: canopy index [options]

Parses every indexable file under the repository root (or, with --since,
only the files git reports changed) and builds the architecture graph.

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

	ctx := context.Background()
	var batch watch.Batch

	if *since != "" {
		det := gitdelta.NewDetector(eng.RepoRoot, logger)
		delta, err := det.Detect(*since, "")
		if err != nil {
			fatal(fmt.Errorf("git delta: %w", err), globals.Quiet)
		}
		batch = deltaToBatch(eng, delta)
	} else {
		paths, err := eng.walkRepo()
		if err != nil {
			fatal(fmt.Errorf("walk repository: %w", err), globals.Quiet)
		}
		batch.Events = make([]watch.Event, 0, len(paths))
		for _, p := range paths {
			batch.Events = append(batch.Events, watch.Event{Path: p, Op: watch.OpCreate})
		}
	}

	if len(batch.Events) == 0 {
		printf(globals.Quiet, "no indexable files found")
		return
	}

	bar := newProgressBar(int64(len(batch.Events)), "indexing", globals.Quiet)
	diff, err := eng.Indexer.ProcessBatch(ctx, batch)
	if err != nil {
		fatal(fmt.Errorf("process batch: %w", err), globals.Quiet)
	}
	_ = bar.Set64(int64(len(batch.Events)))
	_ = bar.Finish()

	printf(globals.Quiet, "indexed %d file(s): +%d nodes, -%d nodes, +%d edges, -%d edges",
		len(batch.Events), len(diff.AddedNodes), len(diff.RemovedNodeIDs), len(diff.AddedEdges), len(diff.RemovedEdgeIDs))

	if *save {
		if err := saveSnapshot(eng); err != nil {
			printWarn("warning: could not save snapshot: %v", err)
		}
	}
}

// deltaToBatch turns a gitdelta.Delta into the watch.Batch the Indexer
// expects: additions and modifications become OpCreate (ProcessBatch
// treats both identically, re-extracting the file from scratch), renames
// become a removal of the old path plus a creation of the new one.
func deltaToBatch(eng *engine, delta *gitdelta.Delta) watch.Batch {
	var b watch.Batch
	add := func(rel string, op watch.Op) {
		abs := filepath.Join(eng.RepoRoot, rel)
		if op == watch.OpRemove || eng.indexable(filepath.ToSlash(rel)) {
			b.Events = append(b.Events, watch.Event{Path: abs, Op: op})
		}
	}
	for _, p := range delta.Added {
		add(p, watch.OpCreate)
	}
	for _, p := range delta.Modified {
		add(p, watch.OpCreate)
	}
	for _, p := range delta.Deleted {
		add(p, watch.OpRemove)
	}
	for oldPath, newPath := range delta.Renamed {
		add(oldPath, watch.OpRemove)
		add(newPath, watch.OpCreate)
	}
	return b
}

// saveSnapshot persists the current Graph Store to the configured cache
// directory, so the next cold start can skip a full reparse.
func saveSnapshot(eng *engine) error {
	nodes := eng.Store.AllNodes()
	edges := eng.Store.AllEdges()
	snap := &cachestore.Snapshot{
		Nodes: nodes,
		Edges: edges,
		Files: fileRecords(eng),
	}
	return eng.Snapshot.Save(snap)
}

// fileRecords stat()s every File node's source path so a later run can
// tell, without reparsing, which files are unchanged.
func fileRecords(eng *engine) map[string]cachestore.FileRecord {
	out := make(map[string]cachestore.FileRecord)
	for _, n := range eng.Store.NodesByKind(graph.KindFile) {
		if n.FilePath == "" {
			continue
		}
		info, err := os.Stat(n.FilePath)
		if err != nil {
			continue
		}
		out[n.FilePath] = cachestore.FileRecord{ModTime: info.ModTime(), Size: info.Size()}
	}
	return out
}

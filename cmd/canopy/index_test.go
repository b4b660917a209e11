// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"path/filepath"
	"testing"

	"canopy/internal/config"
	"canopy/internal/extract"
	"canopy/internal/gitdelta"
	"canopy/internal/graph"
	"canopy/internal/indexer"
	"canopy/internal/parsecache"
	"canopy/internal/watch"
	"canopy/internal/workspace"
)

func newTestEngine(t *testing.T, repoRoot string) *engine {
	t.Helper()
	store := graph.NewStore()
	store.ApplyBatch(&graph.MutationBatch{
		UpsertNodes: []*graph.Node{{ID: "root", Kind: graph.KindDirectory, IsContainer: true}},
	})
	pools := parsecache.NewParserPools()
	registry := extract.NewDefaultRegistry(pools.Borrow)
	idx := indexer.New(store, "root", registry, nil, nil)
	cfg := config.DefaultConfig("test")

	e := &engine{
		RepoRoot:  repoRoot,
		Cfg:       cfg,
		Detection: workspace.Detection{Layout: workspace.LayoutSingleProject, RootKind: workspace.RootKindDirectory},
		Store:     store,
		Cache:     parsecache.New(true),
		Pools:     pools,
		Registry:  registry,
		Indexer:   idx,
	}
	e.compileGlobs()
	return e
}

func TestDeltaToBatch_SkipsNonIndexableAndHandlesRename(t *testing.T) {
	dir := t.TempDir()
	eng := newTestEngine(t, dir)

	delta := &gitdelta.Delta{
		Added:    []string{"new.go", "README.md"},
		Modified: []string{"changed.go"},
		Deleted:  []string{"gone.go"},
		Renamed:  map[string]string{"old.go": "moved.go"},
	}
	batch := deltaToBatch(eng, delta)

	var creates, removes int
	for _, ev := range batch.Events {
		switch ev.Op {
		case watch.OpCreate:
			creates++
		case watch.OpRemove:
			removes++
		}
	}
	// new.go, changed.go, moved.go => 3 creates; README.md is not indexable and
	// is skipped; gone.go and old.go => 2 removes (removals always pass
	// through regardless of extractability, since there is nothing left to
	// extract).
	if creates != 3 {
		t.Fatalf("expected 3 creates, got %d (batch=%+v)", creates, batch)
	}
	if removes != 2 {
		t.Fatalf("expected 2 removes, got %d (batch=%+v)", removes, batch)
	}
}

func TestEngineIndexable_RespectsExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	eng := newTestEngine(t, dir)

	if eng.indexable(filepath.ToSlash(filepath.Join("vendor", "pkg", "a.go"))) {
		t.Fatalf("expected vendor/** to be excluded by default config")
	}
	if !eng.indexable("internal/widget.go") {
		t.Fatalf("expected a plain .go file to be indexable")
	}
	if eng.indexable("README.md") {
		t.Fatalf("expected a file with no registered extractor to be non-indexable")
	}
}

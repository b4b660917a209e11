// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"canopy/internal/extract"
	"canopy/internal/graph"
	"canopy/internal/parsecache"
	"canopy/internal/watch"
)

func newTestIndexer(t *testing.T) (*Indexer, *graph.Store, string) {
	t.Helper()
	store := graph.NewStore()
	rootID := "root"
	store.ApplyBatch(&graph.MutationBatch{
		UpsertNodes: []*graph.Node{{ID: rootID, Kind: graph.KindWorkspaceRoot, IsContainer: true}},
	})
	pools := parsecache.NewParserPools()
	registry := extract.NewDefaultRegistry(pools.Borrow)
	return New(store, rootID, registry, nil, nil), store, rootID
}

func TestProcessBatch_CreateFileAddsNodesAndEdges(t *testing.T) {
	idx, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	src := "package a\n\nfunc Foo() {\n\tBar()\n}\n\nfunc Bar() {}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	diff, err := idx.ProcessBatch(context.Background(), watch.Batch{
		Events: []watch.Event{{Path: path, Op: watch.OpCreate}},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if diff == nil || len(diff.AddedNodes) == 0 {
		t.Fatalf("expected added nodes in diff, got %+v", diff)
	}

	var sawCall bool
	for _, e := range store.AllEdges() {
		if e.Kind == graph.EdgeCalls {
			sawCall = true
		}
	}
	if !sawCall {
		t.Fatalf("expected a Calls edge between Foo and Bar in the committed store")
	}
}

func TestProcessBatch_ReextractingUnchangedFileYieldsEmptyDiff(t *testing.T) {
	idx, _, _ := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	src := "package a\n\nfunc Foo() {}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx := context.Background()
	batch := watch.Batch{Events: []watch.Event{{Path: path, Op: watch.OpCreate}}}
	if _, err := idx.ProcessBatch(ctx, batch); err != nil {
		t.Fatalf("first ProcessBatch: %v", err)
	}

	diff, err := idx.ProcessBatch(ctx, watch.Batch{Events: []watch.Event{{Path: path, Op: watch.OpModify}}})
	if err != nil {
		t.Fatalf("second ProcessBatch: %v", err)
	}
	if diff == nil || !diff.Empty() {
		t.Fatalf("expected an empty diff for an unchanged re-extraction, got %+v", diff)
	}
}

func TestProcessBatch_RemoveFileClearsItsNodes(t *testing.T) {
	idx, store, _ := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	src := "package a\n\nfunc Foo() {}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx := context.Background()
	if _, err := idx.ProcessBatch(ctx, watch.Batch{Events: []watch.Event{{Path: path, Op: watch.OpCreate}}}); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	before := len(store.AllNodes())
	if before <= 1 {
		t.Fatalf("expected nodes to have been added, got %d", before)
	}

	os.Remove(path)
	diff, err := idx.ProcessBatch(ctx, watch.Batch{Events: []watch.Event{{Path: path, Op: watch.OpRemove}}})
	if err != nil {
		t.Fatalf("remove batch: %v", err)
	}
	if len(diff.RemovedNodeIDs) == 0 {
		t.Fatalf("expected removed node IDs in diff, got %+v", diff)
	}
	if len(store.AllNodes()) != 1 {
		t.Fatalf("expected only the root node to remain, got %d", len(store.AllNodes()))
	}
}

func TestSubscribe_ReceivesBroadcastDiff(t *testing.T) {
	idx, _, _ := newTestIndexer(t)
	id, ch := idx.Subscribe()
	defer idx.Unsubscribe(id)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte("package a\n\nfunc Foo() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := idx.ProcessBatch(context.Background(), watch.Batch{
		Events: []watch.Event{{Path: path, Op: watch.OpCreate}},
	}); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	select {
	case diff := <-ch:
		if diff == nil || len(diff.AddedNodes) == 0 {
			t.Fatalf("expected a populated diff on the subscriber channel")
		}
	default:
		t.Fatalf("expected a diff to already be queued on the subscriber channel")
	}
}

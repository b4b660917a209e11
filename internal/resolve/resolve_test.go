// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolve

import (
	"testing"

	"canopy/internal/graph"
	"canopy/internal/symtab"
)

func newStoreWithNode(t *testing.T, id, path string, kind graph.NodeKind) *graph.Store {
	t.Helper()
	s := graph.NewStore()
	batch := &graph.MutationBatch{}
	batch.AddNode(&graph.Node{ID: id, Kind: kind, FilePath: path})
	res := s.ApplyBatch(batch)
	if len(res.Errors) > 0 {
		t.Fatalf("ApplyBatch: %v", res.Errors)
	}
	return s
}

func TestResolve_ExactQualifiedNameMatch(t *testing.T) {
	table := symtab.NewTable()
	table.Put("a.go::helper", symtab.Entry{NodeID: "n-helper", FilePath: "a.go", Kind: "Function"})
	table.Enqueue(symtab.PendingReference{
		SourceNodeID: "n-caller",
		RefText:      "a.go::helper",
		EdgeKind:     "Calls",
		FilePath:     "a.go",
	})

	r := New(table, graph.NewStore())
	res := r.Resolve()

	if len(res.Edges) != 1 || res.Edges[0].TargetID != "n-helper" {
		t.Fatalf("expected one edge to n-helper, got %+v", res.Edges)
	}
}

func TestResolve_ScopeHintQualifiesSuffix(t *testing.T) {
	table := symtab.NewTable()
	table.Put("pkg.Helper", symtab.Entry{NodeID: "n-helper", FilePath: "pkg/helper.go", Kind: "Function"})
	table.Enqueue(symtab.PendingReference{
		SourceNodeID: "n-caller",
		RefText:      "Helper",
		EdgeKind:     "Calls",
		FilePath:     "main.go",
		ScopeHints:   []string{"pkg"},
	})

	r := New(table, graph.NewStore())
	res := r.Resolve()

	if len(res.Edges) != 1 || res.Edges[0].TargetID != "n-helper" {
		t.Fatalf("expected scope-hint resolution to n-helper, got %+v", res.Edges)
	}
}

func TestResolve_SameFileWinsOverAmbiguousSuffix(t *testing.T) {
	table := symtab.NewTable()
	table.Put("a.go::Widget.Close", symtab.Entry{NodeID: "n-a", FilePath: "a.go", Kind: "Method"})
	table.Put("b.go::Conn.Close", symtab.Entry{NodeID: "n-b", FilePath: "b.go", Kind: "Method"})
	table.Enqueue(symtab.PendingReference{
		SourceNodeID: "n-caller",
		RefText:      "x.Close",
		EdgeKind:     "Calls",
		FilePath:     "a.go",
	})

	r := New(table, graph.NewStore())
	res := r.Resolve()

	if len(res.Edges) != 1 || res.Edges[0].TargetID != "n-a" {
		t.Fatalf("expected same-file tie-break to pick n-a, got %+v", res.Edges)
	}
}

func TestResolve_UnresolvableSuffixReportsAmbiguity(t *testing.T) {
	table := symtab.NewTable()
	table.Put("a.go::Widget.Close", symtab.Entry{NodeID: "n-a", FilePath: "a.go", Kind: "Method"})
	table.Put("b.go::Conn.Close", symtab.Entry{NodeID: "n-b", FilePath: "b.go", Kind: "Method"})
	table.Enqueue(symtab.PendingReference{
		SourceNodeID: "n-caller",
		RefText:      "x.Close",
		EdgeKind:     "Calls",
		FilePath:     "c.go",
	})

	r := New(table, graph.NewStore())
	res := r.Resolve()

	if len(res.Edges) != 0 {
		t.Fatalf("expected no resolved edge, got %+v", res.Edges)
	}
	if len(res.Ambiguities) != 1 || len(res.Ambiguities[0].Candidates) != 2 {
		t.Fatalf("expected one reported ambiguity with 2 candidates, got %+v", res.Ambiguities)
	}
}

func TestResolve_UnknownReferenceYieldsNothing(t *testing.T) {
	table := symtab.NewTable()
	table.Enqueue(symtab.PendingReference{
		SourceNodeID: "n-caller",
		RefText:      "nowhere.Func",
		EdgeKind:     "Calls",
		FilePath:     "a.go",
	})

	r := New(table, graph.NewStore())
	res := r.Resolve()

	if len(res.Edges) != 0 || len(res.Ambiguities) != 0 {
		t.Fatalf("expected no edges or ambiguities for an unknown reference, got %+v / %+v", res.Edges, res.Ambiguities)
	}
}

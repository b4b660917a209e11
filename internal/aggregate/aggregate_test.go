// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package aggregate

import (
	"testing"

	"canopy/internal/graph"
)

func buildStore(t *testing.T) *graph.Store {
	t.Helper()
	s := graph.NewStore()
	batch := &graph.MutationBatch{}
	batch.AddNode(&graph.Node{ID: "pkg-a", Kind: graph.KindPackage})
	batch.AddNode(&graph.Node{ID: "pkg-b", Kind: graph.KindPackage})
	batch.AddNode(&graph.Node{ID: "fn-a1", Kind: graph.KindFunction})
	batch.AddNode(&graph.Node{ID: "fn-a2", Kind: graph.KindFunction})
	batch.AddNode(&graph.Node{ID: "fn-b1", Kind: graph.KindFunction})
	batch.AddEdge(&graph.Edge{ID: "e1", Kind: graph.EdgeContains, SourceID: "pkg-a", TargetID: "fn-a1"})
	batch.AddEdge(&graph.Edge{ID: "e2", Kind: graph.EdgeContains, SourceID: "pkg-a", TargetID: "fn-a2"})
	batch.AddEdge(&graph.Edge{ID: "e3", Kind: graph.EdgeContains, SourceID: "pkg-b", TargetID: "fn-b1"})
	batch.AddEdge(&graph.Edge{ID: "e4", Kind: graph.EdgeCalls, SourceID: "fn-a1", TargetID: "fn-b1", Provenance: graph.ProvenanceStructural, Confidence: 1.0})
	batch.AddEdge(&graph.Edge{ID: "e5", Kind: graph.EdgeCalls, SourceID: "fn-a2", TargetID: "fn-b1", Provenance: graph.ProvenanceStructural, Confidence: 1.0})
	batch.AddEdge(&graph.Edge{ID: "e6", Kind: graph.EdgeImports, SourceID: "fn-a1", TargetID: "fn-b1", Provenance: graph.ProvenanceHeuristic, Confidence: 0.8})

	res := s.ApplyBatch(batch)
	if len(res.Errors) > 0 {
		t.Fatalf("ApplyBatch: %v", res.Errors)
	}
	return s
}

func TestAggregate_CollapsesToPackageLevelWithCounts(t *testing.T) {
	s := buildStore(t)
	visible := func(id string) bool { return id == "pkg-a" || id == "pkg-b" }

	summaries := Aggregate(s, visible)
	if len(summaries) != 1 {
		t.Fatalf("expected one summary between pkg-a and pkg-b, got %+v", summaries)
	}
	sum := summaries[0]
	if sum.SourceID != "pkg-a" || sum.TargetID != "pkg-b" {
		t.Fatalf("unexpected endpoints: %+v", sum)
	}
	if sum.Count != 3 {
		t.Fatalf("expected 3 contributing edges, got %d", sum.Count)
	}
	if sum.DominantKind != graph.EdgeCalls {
		t.Fatalf("expected Calls to dominate (2 vs 1), got %v", sum.DominantKind)
	}
}

func TestAggregate_SkipsSelfLoopsWithinCollapsedContainer(t *testing.T) {
	s := buildStore(t)
	visible := func(id string) bool { return id == "pkg-a" }

	summaries := Aggregate(s, visible)
	for _, sum := range summaries {
		if sum.SourceID == "pkg-a" && sum.TargetID == "pkg-a" {
			t.Fatalf("expected no self-loop summary within collapsed pkg-a, got %+v", sum)
		}
	}
}

func TestAggregate_ExpandedViewKeepsFunctionLevelEdges(t *testing.T) {
	s := buildStore(t)
	visible := func(id string) bool {
		return id == "fn-a1" || id == "fn-a2" || id == "fn-b1"
	}

	summaries := Aggregate(s, visible)
	if len(summaries) != 2 {
		t.Fatalf("expected two distinct function-level summaries, got %+v", summaries)
	}
}

func TestDominantKind_TiesBreakLexicographically(t *testing.T) {
	hist := map[graph.EdgeKind]int{graph.EdgeImports: 2, graph.EdgeCalls: 2}
	if got := dominantKind(hist); got != graph.EdgeCalls {
		t.Fatalf("expected Calls to win tie over Imports lexicographically, got %v", got)
	}
}

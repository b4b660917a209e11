// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package diffengine

import (
	"testing"

	"canopy/internal/graph"
)

func TestBuild_SequenceNumbersAreGapFreeAndIncreasing(t *testing.T) {
	e := New()
	res := &graph.ApplyResult{AddedNodes: []*graph.Node{{ID: "n1", Kind: graph.KindFunction}}}
	d1 := e.Build(res, nil)
	d2 := e.Build(res, nil)
	if d1.Sequence != 1 || d2.Sequence != 2 {
		t.Fatalf("expected sequences 1,2; got %d,%d", d1.Sequence, d2.Sequence)
	}
}

func TestBuild_EmptyResultAndFilesYieldsEmptyDiff(t *testing.T) {
	e := New()
	d := e.Build(&graph.ApplyResult{}, nil)
	if !d.Empty() {
		t.Fatalf("expected empty diff, got %+v", d)
	}
}

func TestBuild_EmptyDiffDoesNotConsumeASequenceNumber(t *testing.T) {
	e := New()
	res := &graph.ApplyResult{AddedNodes: []*graph.Node{{ID: "n1", Kind: graph.KindFunction}}}
	empty := e.Build(&graph.ApplyResult{}, nil)
	nonEmpty := e.Build(res, nil)
	if empty.Sequence != 0 {
		t.Fatalf("expected empty diff to carry sequence 0, got %d", empty.Sequence)
	}
	if nonEmpty.Sequence != 1 {
		t.Fatalf("expected first non-empty diff to claim sequence 1, got %d", nonEmpty.Sequence)
	}
}

func TestBuild_FileOrdinalsAreGloballyMonotonicAcrossBatches(t *testing.T) {
	e := New()
	d1 := e.Build(&graph.ApplyResult{}, map[string]FileChangeKind{"a.go": FileCreated})
	d2 := e.Build(&graph.ApplyResult{}, map[string]FileChangeKind{"b.go": FileModified})
	if len(d1.ChangedFiles) != 1 || len(d2.ChangedFiles) != 1 {
		t.Fatalf("expected one changed file per batch")
	}
	if d2.ChangedFiles[0].Ordinal <= d1.ChangedFiles[0].Ordinal {
		t.Fatalf("expected strictly increasing ordinals across batches: %d then %d",
			d1.ChangedFiles[0].Ordinal, d2.ChangedFiles[0].Ordinal)
	}
}

func TestBuild_CarriesApplyResultFieldsThrough(t *testing.T) {
	e := New()
	res := &graph.ApplyResult{
		AddedNodes:     []*graph.Node{{ID: "n1", Kind: graph.KindFunction}},
		RemovedNodeIDs: []string{"n2"},
		AddedEdges:     []*graph.Edge{{ID: "e1", Kind: graph.EdgeCalls}},
		RemovedEdgeIDs: []string{"e2"},
	}
	d := e.Build(res, nil)
	if len(d.AddedNodes) != 1 || d.AddedNodes[0].ID != "n1" {
		t.Fatalf("expected added node to carry through, got %+v", d.AddedNodes)
	}
	if len(d.RemovedNodeIDs) != 1 || d.RemovedNodeIDs[0] != "n2" {
		t.Fatalf("expected removed node ID to carry through")
	}
	if len(d.AddedEdges) != 1 || len(d.RemovedEdgeIDs) != 1 {
		t.Fatalf("expected edge changes to carry through")
	}
}

func TestBuild_ChangedFilesSortedDeterministically(t *testing.T) {
	e := New()
	d := e.Build(&graph.ApplyResult{}, map[string]FileChangeKind{
		"z.go": FileModified,
		"a.go": FileCreated,
		"m.go": FileRemoved,
	})
	if len(d.ChangedFiles) != 3 {
		t.Fatalf("expected 3 changed files, got %d", len(d.ChangedFiles))
	}
	if d.ChangedFiles[0].Path != "a.go" || d.ChangedFiles[1].Path != "m.go" || d.ChangedFiles[2].Path != "z.go" {
		t.Fatalf("expected lexicographic order, got %+v", d.ChangedFiles)
	}
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import "testing"

func TestApplyBatch_AddNodesAndEdges(t *testing.T) {
	s := NewStore()
	b := &MutationBatch{}
	b.AddNode(&Node{ID: "file:a", Kind: KindFile, Name: "a.go"})
	b.AddNode(&Node{ID: "fn:a", Kind: KindFunction, Name: "a"})
	b.AddEdge(&Edge{ID: "e:contains", Kind: EdgeContains, SourceID: "file:a", TargetID: "fn:a", Confidence: 1})

	res := s.ApplyBatch(b)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.AddedNodes) != 2 || len(res.AddedEdges) != 1 {
		t.Fatalf("expected 2 added nodes and 1 added edge, got %d/%d", len(res.AddedNodes), len(res.AddedEdges))
	}

	parent, ok := s.Parent("fn:a")
	if !ok || parent != "file:a" {
		t.Fatalf("expected fn:a to have parent file:a, got %q (ok=%v)", parent, ok)
	}
}

func TestApplyBatch_MissingEndpointRefusesEdge(t *testing.T) {
	s := NewStore()
	b := &MutationBatch{}
	b.AddNode(&Node{ID: "file:a", Kind: KindFile})
	b.AddEdge(&Edge{ID: "e:bad", Kind: EdgeCalls, SourceID: "file:a", TargetID: "fn:missing"})

	res := s.ApplyBatch(b)
	if len(res.AddedEdges) != 0 {
		t.Fatalf("edge with missing endpoint should not be added")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(res.Errors))
	}
}

func TestApplyBatch_HierarchyCycleRefused(t *testing.T) {
	s := NewStore()
	b := &MutationBatch{}
	b.AddNode(&Node{ID: "a", Kind: KindDirectory})
	b.AddNode(&Node{ID: "b", Kind: KindDirectory})
	b.AddEdge(&Edge{ID: "e1", Kind: EdgeContains, SourceID: "a", TargetID: "b"})
	s.ApplyBatch(b)

	b2 := &MutationBatch{}
	b2.AddEdge(&Edge{ID: "e2", Kind: EdgeContains, SourceID: "b", TargetID: "a"})
	res := s.ApplyBatch(b2)
	if len(res.AddedEdges) != 0 {
		t.Fatalf("cyclic Contains edge should be refused")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 cycle error, got %d", len(res.Errors))
	}
}

func TestRemoveNode_CascadesDescendants(t *testing.T) {
	s := NewStore()
	b := &MutationBatch{}
	b.AddNode(&Node{ID: "file:a", Kind: KindFile})
	b.AddNode(&Node{ID: "fn:a", Kind: KindFunction})
	b.AddNode(&Node{ID: "fn:b", Kind: KindFunction})
	b.AddEdge(&Edge{ID: "e1", Kind: EdgeContains, SourceID: "file:a", TargetID: "fn:a"})
	b.AddEdge(&Edge{ID: "e2", Kind: EdgeContains, SourceID: "file:a", TargetID: "fn:b"})
	b.AddEdge(&Edge{ID: "e3", Kind: EdgeCalls, SourceID: "fn:a", TargetID: "fn:b"})
	s.ApplyBatch(b)

	rb := &MutationBatch{}
	rb.DeleteNode("file:a")
	res := s.ApplyBatch(rb)

	if len(res.RemovedNodeIDs) != 3 {
		t.Fatalf("expected 3 removed nodes (file + 2 functions), got %d: %v", len(res.RemovedNodeIDs), res.RemovedNodeIDs)
	}
	if s.Node("fn:a") != nil || s.Node("fn:b") != nil || s.Node("file:a") != nil {
		t.Fatalf("cascade should have removed all descendants")
	}
	if s.Edge("e3") != nil {
		t.Fatalf("incident Calls edge should have been removed with its endpoint")
	}
}

func TestRemoveUnknownNode_IsNoOp(t *testing.T) {
	s := NewStore()
	rb := &MutationBatch{}
	rb.DeleteNode("does-not-exist")
	res := s.ApplyBatch(rb)
	if len(res.RemovedNodeIDs) != 0 || len(res.Errors) != 0 {
		t.Fatalf("removing an unknown node should be a silent no-op")
	}
}

func TestApplyBatch_ModifiedNodeReportsChangedFields(t *testing.T) {
	s := NewStore()
	b := &MutationBatch{}
	b.AddNode(&Node{ID: "fn:a", Kind: KindFunction, Name: "a", LineCount: 10})
	s.ApplyBatch(b)

	b2 := &MutationBatch{}
	b2.AddNode(&Node{ID: "fn:a", Kind: KindFunction, Name: "a", LineCount: 15})
	res := s.ApplyBatch(b2)

	if len(res.ModifiedNodes) != 1 {
		t.Fatalf("expected 1 modified node, got %d", len(res.ModifiedNodes))
	}
	m := res.ModifiedNodes[0]
	if m.LineCount == nil || *m.LineCount != 15 {
		t.Fatalf("expected LineCount patch of 15, got %v", m.LineCount)
	}
	if m.Name != nil {
		t.Fatalf("name did not change, should not be in the patch")
	}
}

func TestReExtractingUnchangedFile_YieldsNoDiff(t *testing.T) {
	s := NewStore()
	b := &MutationBatch{}
	b.AddNode(&Node{ID: "fn:a", Kind: KindFunction, Name: "a", LineCount: 10})
	s.ApplyBatch(b)

	res := s.ApplyBatch(&MutationBatch{UpsertNodes: []*Node{{ID: "fn:a", Kind: KindFunction, Name: "a", LineCount: 10}}})
	if len(res.AddedNodes) != 0 || len(res.ModifiedNodes) != 0 {
		t.Fatalf("re-applying an identical node should produce no diff")
	}
}

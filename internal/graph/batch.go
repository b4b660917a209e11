// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

// MutationBatch is prepared entirely outside the Store's lock (parsing,
// extraction, resolution, heuristic matching, and AI calls all happen
// before a batch exists) and applied atomically by Store.ApplyBatch.
type MutationBatch struct {
	UpsertNodes []*Node
	RemoveNodes []string
	UpsertEdges []*Edge
	RemoveEdges []string
}

// AddNode stages a node upsert.
func (b *MutationBatch) AddNode(n *Node) { b.UpsertNodes = append(b.UpsertNodes, n) }

// AddEdge stages an edge upsert.
func (b *MutationBatch) AddEdge(e *Edge) { b.UpsertEdges = append(b.UpsertEdges, e) }

// DeleteNode stages a node removal by ID.
func (b *MutationBatch) DeleteNode(id string) { b.RemoveNodes = append(b.RemoveNodes, id) }

// DeleteEdge stages an edge removal by ID.
func (b *MutationBatch) DeleteEdge(id string) { b.RemoveEdges = append(b.RemoveEdges, id) }

// Empty reports whether the batch has no staged mutations.
func (b *MutationBatch) Empty() bool {
	return len(b.UpsertNodes) == 0 && len(b.RemoveNodes) == 0 &&
		len(b.UpsertEdges) == 0 && len(b.RemoveEdges) == 0
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"sync"

	"canopy/internal/coreerrs"
)

// ModifiedNode carries only the fields that changed between the previous
// and current revision of a node, per spec: name, line count, child
// count, metadata.
type ModifiedNode struct {
	ID         string
	Name       *string
	LineCount  *int
	ChildCount *int
	Metadata   map[string]string
}

// ApplyResult reports what a single ApplyBatch call actually changed, in
// commit order: node additions precede edge additions referencing them;
// edge removals precede node removals whose endpoints they carried. The
// Diff Engine builds its per-batch diff record directly from this.
type ApplyResult struct {
	AddedNodes    []*Node
	RemovedNodeIDs []string
	ModifiedNodes []ModifiedNode
	AddedEdges    []*Edge
	RemovedEdgeIDs []string
	Errors        []error
}

// Store is the in-memory directed multigraph. All fields are guarded by
// mu; ApplyBatch is the only write path and takes the exclusive hold for
// exactly the duration of applying one already-prepared batch.
type Store struct {
	mu sync.RWMutex

	nodes map[string]*Node
	edges map[string]*Edge

	// outEdges/inEdges index edge IDs by their source/target node for
	// O(degree) incident-edge iteration and cascade removal.
	outEdges map[string]map[string]struct{}
	inEdges  map[string]map[string]struct{}

	// parent is the ancestor index, kept coherent with Contains edges:
	// a Contains insert sets parent[child]=source; a Contains removal
	// clears it.
	parent map[string]string
	// containsEdgeOf maps a child node ID to the ID of the Contains edge
	// that currently establishes its parent, so removing that specific
	// edge (and only that edge) clears the pointer.
	containsEdgeOf map[string]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		nodes:          make(map[string]*Node),
		edges:          make(map[string]*Edge),
		outEdges:       make(map[string]map[string]struct{}),
		inEdges:        make(map[string]map[string]struct{}),
		parent:         make(map[string]string),
		containsEdgeOf: make(map[string]string),
	}
}

// Node returns a clone of the node with the given ID, or nil if absent.
func (s *Store) Node(id string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[id].Clone()
}

// Edge returns a clone of the edge with the given ID, or nil if absent.
func (s *Store) Edge(id string) *Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edges[id].Clone()
}

// Parent returns the containment-parent ID of id, and whether one exists.
func (s *Store) Parent(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parent[id]
	return p, ok
}

// Ancestors returns id's ancestor chain, nearest first, by walking parent
// pointers to a root.
func (s *Store) Ancestors(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	cur := id
	seen := map[string]bool{cur: true}
	for {
		p, ok := s.parent[cur]
		if !ok {
			break
		}
		if seen[p] {
			break // defensive: Contains is acyclic by construction, but don't hang if violated
		}
		out = append(out, p)
		seen[p] = true
		cur = p
	}
	return out
}

// Children returns the IDs of nodes whose Contains-parent is id.
func (s *Store) Children(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for child, p := range s.parent {
		if p == id {
			out = append(out, child)
		}
	}
	return out
}

// NodesByKind returns clones of all nodes of the given kind.
func (s *Store) NodesByKind(k NodeKind) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Node
	for _, n := range s.nodes {
		if n.Kind == k {
			out = append(out, n.Clone())
		}
	}
	return out
}

// IncidentEdges returns clones of edges touching id. dir selects
// "out", "in", or "" for both.
func (s *Store) IncidentEdges(id string, dir string) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Edge
	if dir != "in" {
		for eid := range s.outEdges[id] {
			out = append(out, s.edges[eid].Clone())
		}
	}
	if dir != "out" {
		for eid := range s.inEdges[id] {
			out = append(out, s.edges[eid].Clone())
		}
	}
	return out
}

// AllNodes returns clones of every node, for serialization.
func (s *Store) AllNodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n.Clone())
	}
	return out
}

// AllEdges returns clones of every edge, for serialization.
func (s *Store) AllEdges() []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e.Clone())
	}
	return out
}

// ApplyBatch applies a fully-prepared batch atomically. Within the
// exclusive section: upserts happen before removals of edges/nodes named
// in the same batch are processed is not required by the spec — what is
// required is that node additions precede edge additions (enforced by
// staging order in MutationBatch, which callers populate node-first) and
// that edge removals precede node removals (enforced here).
func (s *Store) ApplyBatch(b *MutationBatch) *ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &ApplyResult{}

	for _, n := range b.UpsertNodes {
		prev, existed := s.nodes[n.ID]
		s.nodes[n.ID] = n.Clone()
		if !existed {
			res.AddedNodes = append(res.AddedNodes, n.Clone())
			continue
		}
		if m, changed := diffNode(prev, n); changed {
			res.ModifiedNodes = append(res.ModifiedNodes, m)
		}
	}

	for _, e := range b.UpsertEdges {
		if _, ok := s.nodes[e.SourceID]; !ok {
			res.Errors = append(res.Errors, &coreerrs.MissingEndpoint{EdgeID: e.ID, End: "source", NodeID: e.SourceID})
			continue
		}
		if _, ok := s.nodes[e.TargetID]; !ok {
			res.Errors = append(res.Errors, &coreerrs.MissingEndpoint{EdgeID: e.ID, End: "target", NodeID: e.TargetID})
			continue
		}
		if e.Kind == EdgeContains {
			if s.wouldCycle(e.SourceID, e.TargetID) {
				res.Errors = append(res.Errors, &coreerrs.HierarchyCycle{ParentID: e.SourceID, ChildID: e.TargetID})
				continue
			}
		}
		s.insertEdge(e)
		res.AddedEdges = append(res.AddedEdges, e.Clone())
	}

	// Edge removals before node removals whose endpoints they carry.
	for _, eid := range b.RemoveEdges {
		if s.removeEdge(eid) {
			res.RemovedEdgeIDs = append(res.RemovedEdgeIDs, eid)
		}
	}

	for _, nid := range b.RemoveNodes {
		removed := s.removeNodeCascade(nid)
		res.RemovedNodeIDs = append(res.RemovedNodeIDs, removed...)
	}

	return res
}

func diffNode(prev, cur *Node) (ModifiedNode, bool) {
	m := ModifiedNode{ID: cur.ID}
	changed := false
	if prev.Name != cur.Name {
		name := cur.Name
		m.Name = &name
		changed = true
	}
	if prev.LineCount != cur.LineCount {
		lc := cur.LineCount
		m.LineCount = &lc
		changed = true
	}
	if prev.ChildCount != cur.ChildCount {
		cc := cur.ChildCount
		m.ChildCount = &cc
		changed = true
	}
	if !mapsEqual(prev.Metadata, cur.Metadata) {
		m.Metadata = cur.Metadata
		changed = true
	}
	return m, changed
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// wouldCycle reports whether adding a Contains edge parent->child would
// make child (or the new parent assignment) an ancestor of itself: true
// if parent is already a descendant of child, or parent == child.
func (s *Store) wouldCycle(parentID, childID string) bool {
	if parentID == childID {
		return true
	}
	cur := parentID
	seen := map[string]bool{}
	for {
		if cur == childID {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		p, ok := s.parent[cur]
		if !ok {
			return false
		}
		cur = p
	}
}

func (s *Store) insertEdge(e *Edge) {
	s.edges[e.ID] = e.Clone()
	if s.outEdges[e.SourceID] == nil {
		s.outEdges[e.SourceID] = make(map[string]struct{})
	}
	s.outEdges[e.SourceID][e.ID] = struct{}{}
	if s.inEdges[e.TargetID] == nil {
		s.inEdges[e.TargetID] = make(map[string]struct{})
	}
	s.inEdges[e.TargetID][e.ID] = struct{}{}

	if e.Kind == EdgeContains {
		s.parent[e.TargetID] = e.SourceID
		s.containsEdgeOf[e.TargetID] = e.ID
	}
}

func (s *Store) removeEdge(id string) bool {
	e, ok := s.edges[id]
	if !ok {
		return false // unknown identifier: no-op
	}
	delete(s.edges, id)
	if m := s.outEdges[e.SourceID]; m != nil {
		delete(m, id)
	}
	if m := s.inEdges[e.TargetID]; m != nil {
		delete(m, id)
	}
	if e.Kind == EdgeContains && s.containsEdgeOf[e.TargetID] == id {
		delete(s.parent, e.TargetID)
		delete(s.containsEdgeOf, e.TargetID)
	}
	return true
}

// removeNodeCascade removes id and, depth-first post-order, every
// descendant reachable via the ancestor index, returning the IDs actually
// removed (in removal order). Removing an unknown identifier is a no-op.
func (s *Store) removeNodeCascade(id string) []string {
	if _, ok := s.nodes[id]; !ok {
		return nil
	}
	children := s.childrenLocked(id)
	var removed []string
	for _, c := range children {
		removed = append(removed, s.removeNodeCascade(c)...)
	}
	s.removeSingleNode(id)
	removed = append(removed, id)
	return removed
}

func (s *Store) childrenLocked(id string) []string {
	var out []string
	for child, p := range s.parent {
		if p == id {
			out = append(out, child)
		}
	}
	return out
}

func (s *Store) removeSingleNode(id string) {
	for eid := range s.outEdges[id] {
		s.removeEdge(eid)
	}
	for eid := range s.inEdges[id] {
		s.removeEdge(eid)
	}
	delete(s.outEdges, id)
	delete(s.inEdges, id)
	delete(s.parent, id)
	delete(s.containsEdgeOf, id)
	delete(s.nodes, id)
}

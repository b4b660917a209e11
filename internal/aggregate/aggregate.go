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

// Package aggregate computes summary edges between currently-visible
// nodes by walking every non-Contains edge to its endpoints' nearest
// visible ancestors and grouping the results. There is no teacher
// analogue for hierarchical collapse; this package is grounded in the
// teacher's RWMutex-guarded read-heavy-index style, applied to a new
// read path over the Graph Store.
package aggregate

import (
	"sort"

	"canopy/internal/graph"
)

// Summary is one aggregated edge for display between two visible nodes.
type Summary struct {
	SourceID        string
	TargetID        string
	Count           int
	KindHistogram   map[graph.EdgeKind]int
	ProvenanceHist  map[graph.Provenance]int
	MinAIConfidence float64 // only meaningful when ProvenanceHist[ProvenanceAI] > 0
	HasAIContributor bool
	EdgeIDs         []string
	DominantKind    graph.EdgeKind
}

// Visible reports whether a node ID is in the currently-visible set.
type Visible func(nodeID string) bool

// Aggregate walks every non-Contains edge in store and groups it by the
// nearest visible ancestor of each endpoint, per spec.md §4.9.
func Aggregate(store *graph.Store, visible Visible) []Summary {
	groups := map[[2]string]*Summary{}

	for _, e := range store.AllEdges() {
		if e.Kind == graph.EdgeContains {
			continue
		}
		src := nearestVisibleAncestor(store, visible, e.SourceID)
		dst := nearestVisibleAncestor(store, visible, e.TargetID)
		if src == "" || dst == "" || src == dst {
			continue
		}

		key := [2]string{src, dst}
		s, ok := groups[key]
		if !ok {
			s = &Summary{
				SourceID:       src,
				TargetID:       dst,
				KindHistogram:  map[graph.EdgeKind]int{},
				ProvenanceHist: map[graph.Provenance]int{},
			}
			groups[key] = s
		}

		s.Count++
		s.KindHistogram[e.Kind]++
		s.ProvenanceHist[e.Provenance]++
		s.EdgeIDs = append(s.EdgeIDs, e.ID)
		if e.Provenance == graph.ProvenanceAI {
			if !s.HasAIContributor || e.Confidence < s.MinAIConfidence {
				s.MinAIConfidence = e.Confidence
			}
			s.HasAIContributor = true
		}
	}

	out := make([]Summary, 0, len(groups))
	for _, s := range groups {
		s.DominantKind = dominantKind(s.KindHistogram)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// nearestVisibleAncestor walks up parent pointers from nodeID, including
// nodeID itself, until a visible node is found. It returns "" if the
// chain is exhausted without finding one (a dangling or root-orphaned
// reference).
func nearestVisibleAncestor(store *graph.Store, visible Visible, nodeID string) string {
	if visible(nodeID) {
		return nodeID
	}
	for _, ancestor := range store.Ancestors(nodeID) {
		if visible(ancestor) {
			return ancestor
		}
	}
	return ""
}

// dominantKind picks the argmax of hist, breaking ties by lexicographically
// smaller kind name so results are stable across runs.
func dominantKind(hist map[graph.EdgeKind]int) graph.EdgeKind {
	var best graph.EdgeKind
	bestCount := -1
	for kind, count := range hist {
		if count > bestCount || (count == bestCount && kind < best) {
			best = kind
			bestCount = count
		}
	}
	return best
}

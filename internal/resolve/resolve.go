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

// Package resolve drains the symbol table's pending-reference queue into
// Structural edges. Resolution is a three-rung ladder: exact qualified
// name, then an import/scope-hint-qualified lookup, then a bare suffix
// match; ambiguous suffix matches are ranked same-file over same-directory
// over same-package over closest-in-hierarchy before being given up on.
package resolve

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"canopy/internal/graph"
	"canopy/internal/symtab"
)

// ResolvedEdge is one Structural edge produced by resolution.
type ResolvedEdge struct {
	SourceID string
	TargetID string
	Kind     string
}

// Ambiguity is reported (not silently dropped) when a suffix match found
// more than one equally-ranked candidate.
type Ambiguity struct {
	SourceNodeID string
	EdgeKind     string
	Reference    string
	Candidates   []string
}

// Result is one Resolve call's output. Unresolved holds references that
// matched nothing at all (neither a unique candidate nor an ambiguous
// set) but look like a field/method-chain access (RefText containing a
// "."), since those are exactly the shape the heuristic interface
// dispatcher can still have a shot at.
type Result struct {
	Edges       []ResolvedEdge
	Ambiguities []Ambiguity
	Unresolved  []symtab.PendingReference
}

// parallelThreshold mirrors the teacher's CallResolver: below this many
// pending references, goroutine setup costs more than it saves.
const parallelThreshold = 1000

// Resolver resolves pending references against a symbol table and the
// graph's file/directory hierarchy, which supplies tie-break context.
type Resolver struct {
	table *symtab.Table
	store *graph.Store
}

// New returns a Resolver over table, using store for hierarchy-based
// ambiguity tie-breaking.
func New(table *symtab.Table, store *graph.Store) *Resolver {
	return &Resolver{table: table, store: store}
}

// Resolve drains every pending reference currently queued in the symbol
// table and resolves each one.
func (r *Resolver) Resolve() Result {
	pending := r.table.DrainPending()
	if len(pending) < parallelThreshold {
		return r.resolveSequential(pending)
	}
	return r.resolveParallel(pending)
}

func (r *Resolver) resolveSequential(pending []symtab.PendingReference) Result {
	res := Result{}
	seen := map[string]bool{}
	for _, ref := range pending {
		r.resolveOne(ref, &res, seen)
	}
	return res
}

func (r *Resolver) resolveParallel(pending []symtab.PendingReference) Result {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	jobs := make(chan symtab.PendingReference, len(pending))
	type partial struct {
		edges       []ResolvedEdge
		ambiguities []Ambiguity
		unresolved  []symtab.PendingReference
	}
	out := make(chan partial, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := Result{}
			localSeen := map[string]bool{}
			for ref := range jobs {
				r.resolveOne(ref, &local, localSeen)
			}
			out <- partial{edges: local.Edges, ambiguities: local.Ambiguities, unresolved: local.Unresolved}
		}()
	}
	for _, ref := range pending {
		jobs <- ref
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(out)
	}()

	res := Result{}
	seen := map[string]bool{}
	for p := range out {
		for _, e := range p.edges {
			key := e.SourceID + "->" + e.TargetID + "->" + e.Kind
			if !seen[key] {
				seen[key] = true
				res.Edges = append(res.Edges, e)
			}
		}
		res.Ambiguities = append(res.Ambiguities, p.ambiguities...)
		res.Unresolved = append(res.Unresolved, p.unresolved...)
	}
	return res
}

func (r *Resolver) resolveOne(ref symtab.PendingReference, res *Result, seen map[string]bool) {
	target, ambiguous, candidates := r.resolveReference(ref)

	if target != "" {
		key := ref.SourceNodeID + "->" + target + "->" + ref.EdgeKind
		if !seen[key] {
			seen[key] = true
			res.Edges = append(res.Edges, ResolvedEdge{
				SourceID: ref.SourceNodeID,
				TargetID: target,
				Kind:     ref.EdgeKind,
			})
		}
		return
	}
	if ambiguous {
		res.Ambiguities = append(res.Ambiguities, Ambiguity{
			SourceNodeID: ref.SourceNodeID,
			EdgeKind:     ref.EdgeKind,
			Reference:    ref.RefText,
			Candidates:   candidates,
		})
		return
	}
	if strings.Contains(ref.RefText, ".") {
		res.Unresolved = append(res.Unresolved, ref)
	}
}

// resolveReference runs the three-rung ladder for a single reference.
func (r *Resolver) resolveReference(ref symtab.PendingReference) (target string, ambiguous bool, candidates []string) {
	if entries, ok := r.table.Lookup(ref.RefText); ok {
		if id := bestMatch(entries, ref); id != "" {
			return id, false, nil
		}
	}

	for _, hint := range ref.ScopeHints {
		qualified := hint + "." + lastComponent(ref.RefText)
		if entries, ok := r.table.Lookup(qualified); ok {
			if id := bestMatch(entries, ref); id != "" {
				return id, false, nil
			}
		}
	}

	suffix := lastComponent(ref.RefText)
	if suffix == "" {
		return "", false, nil
	}
	matches := r.table.SuffixMatches(suffix)
	var pool []symtab.Entry
	for _, entries := range matches {
		pool = append(pool, entries...)
	}
	if len(ref.ExpectedKinds) > 0 {
		pool = filterByKind(pool, ref.ExpectedKinds)
	}
	if len(pool) == 0 {
		return "", false, nil
	}
	if len(pool) == 1 {
		return pool[0].NodeID, false, nil
	}

	winner, tied := r.rankCandidates(pool, ref.FilePath, ref.FromPackage)
	if winner != "" {
		return winner, false, nil
	}
	for _, e := range tied {
		candidates = append(candidates, e.NodeID)
	}
	return "", true, candidates
}

func bestMatch(entries []symtab.Entry, ref symtab.PendingReference) string {
	if len(ref.ExpectedKinds) > 0 {
		if filtered := filterByKind(entries, ref.ExpectedKinds); len(filtered) == 1 {
			return filtered[0].NodeID
		}
	}
	if len(entries) == 1 {
		return entries[0].NodeID
	}
	return ""
}

func filterByKind(entries []symtab.Entry, kinds []string) []symtab.Entry {
	allowed := map[string]bool{}
	for _, k := range kinds {
		allowed[k] = true
	}
	var out []symtab.Entry
	for _, e := range entries {
		if allowed[e.Kind] {
			out = append(out, e)
		}
	}
	return out
}

func lastComponent(ref string) string {
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		return ref[idx+1:]
	}
	return ref
}

// rankCandidates applies same-file > same-directory > same-package >
// closest-in-hierarchy tie-breaking. It returns a single winner when one
// candidate strictly outranks the rest at the finest tier that produces
// any match, or ("", tiedSet) when multiple candidates remain tied at
// every tier.
func (r *Resolver) rankCandidates(pool []symtab.Entry, fromPath, fromPackage string) (string, []symtab.Entry) {
	if sameFile := filterByFile(pool, fromPath); len(sameFile) == 1 {
		return sameFile[0].NodeID, nil
	} else if len(sameFile) > 1 {
		pool = sameFile
	}

	fromDir := filepath.Dir(fromPath)
	if sameDir := filterByDir(pool, fromDir); len(sameDir) == 1 {
		return sameDir[0].NodeID, nil
	} else if len(sameDir) > 1 {
		pool = sameDir
	}

	if fromPackage != "" {
		if samePkg := filterByPackage(pool, fromPackage); len(samePkg) == 1 {
			return samePkg[0].NodeID, nil
		} else if len(samePkg) > 1 {
			pool = samePkg
		}
	}

	if r.store != nil {
		if closest := r.closestByHierarchy(pool, fromPath); len(closest) == 1 {
			return closest[0].NodeID, nil
		} else if len(closest) > 0 {
			pool = closest
		}
	}

	return "", pool
}

func filterByFile(entries []symtab.Entry, path string) []symtab.Entry {
	var out []symtab.Entry
	for _, e := range entries {
		if e.FilePath == path {
			out = append(out, e)
		}
	}
	return out
}

func filterByDir(entries []symtab.Entry, dir string) []symtab.Entry {
	var out []symtab.Entry
	for _, e := range entries {
		if filepath.Dir(e.FilePath) == dir {
			out = append(out, e)
		}
	}
	return out
}

func filterByPackage(entries []symtab.Entry, pkg string) []symtab.Entry {
	var out []symtab.Entry
	for _, e := range entries {
		if e.Package == pkg {
			out = append(out, e)
		}
	}
	return out
}

// closestByHierarchy ranks candidates by ancestor-chain distance from
// fromPath's File node, keeping only those at the minimum distance.
func (r *Resolver) closestByHierarchy(entries []symtab.Entry, fromPath string) []symtab.Entry {
	fromNode := r.findFileNode(fromPath)
	if fromNode == "" {
		return entries
	}
	fromAncestors := append([]string{fromNode}, r.store.Ancestors(fromNode)...)

	best := -1
	var winners []symtab.Entry
	for _, e := range entries {
		nodeFile := r.findFileNode(e.FilePath)
		if nodeFile == "" {
			continue
		}
		dist := ancestorDistance(fromAncestors, nodeFile, r.store)
		if dist < 0 {
			continue
		}
		switch {
		case best == -1 || dist < best:
			best = dist
			winners = []symtab.Entry{e}
		case dist == best:
			winners = append(winners, e)
		}
	}
	if len(winners) == 0 {
		return entries
	}
	return winners
}

func (r *Resolver) findFileNode(path string) string {
	for _, n := range r.store.NodesByKind(graph.KindFile) {
		if n.FilePath == path {
			return n.ID
		}
	}
	return ""
}

// ancestorDistance counts hops from any node in fromAncestors up to the
// first shared ancestor with target's own ancestor chain, or -1 if none
// is shared within the hierarchy.
func ancestorDistance(fromAncestors []string, target string, store *graph.Store) int {
	fromSet := map[string]int{}
	for i, id := range fromAncestors {
		fromSet[id] = i
	}
	targetChain := append([]string{target}, store.Ancestors(target)...)
	for i, id := range targetChain {
		if j, ok := fromSet[id]; ok {
			return i + j
		}
	}
	return -1
}

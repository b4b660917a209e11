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

// Package symtab is the concurrent map from qualified name to node
// identifiers, plus the pending-reference queue the Resolver drains.
package symtab

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Entry is one symbol-table record: a qualified name may map to more than
// one node (e.g. same name re-declared across files during a transient
// overlap), so Table stores a slice per key.
type Entry struct {
	NodeID   string
	FilePath string
	Kind     string // mirrors graph.NodeKind as a string to avoid an import cycle
	Package  string // owning package/module identifier, used by the same-package ranking tier
}

// PendingReference is one unresolved reference queued by an extractor,
// awaiting the Resolver's second phase.
type PendingReference struct {
	SourceNodeID  string // qualified-name-bearing node containing the reference site
	RefText       string
	EdgeKind      string
	FilePath      string
	Line          int
	ScopeHints    []string // in-scope module/import prefixes
	ExpectedKinds []string // optional candidate-kind filter
	FromPackage   string   // package/module identifier of the reference's own site, for the same-package ranking tier
}

// Table is the concurrent qualified-name index. Reads and writes on
// disjoint keys proceed concurrently via the underlying striped map;
// Swap performs the atomic whole-table replacement a full re-index
// requires, so readers never observe a partially-rebuilt table.
type Table struct {
	m atomic.Pointer[xsync.MapOf[string, []Entry]]

	pendingMu sync.Mutex
	pending   []PendingReference
}

// NewTable returns an empty Table.
func NewTable() *Table {
	t := &Table{}
	t.m.Store(xsync.NewMapOf[string, []Entry]())
	return t
}

// Put registers a qualified name's node entry. Multiple entries under the
// same qualified name accumulate (ambiguity is resolved, not prevented,
// at lookup time).
func (t *Table) Put(qualifiedName string, e Entry) {
	m := t.m.Load()
	m.Compute(qualifiedName, func(old []Entry, loaded bool) ([]Entry, bool) {
		if !loaded {
			return []Entry{e}, false
		}
		for _, existing := range old {
			if existing.NodeID == e.NodeID {
				return old, false
			}
		}
		return append(old, e), false
	})
}

// Lookup returns every entry registered under qualifiedName.
func (t *Table) Lookup(qualifiedName string) ([]Entry, bool) {
	m := t.m.Load()
	return m.Load(qualifiedName)
}

// SuffixMatches returns every (qualifiedName, entries) pair whose
// qualified name ends with suffix on a separator boundary ('.', ':' or
// '/') or equals it outright, so a request for "Bar" matches "pkg.Bar"
// but not "pkg.FooBar", where "Bar" is embedded mid-token.
func (t *Table) SuffixMatches(suffix string) map[string][]Entry {
	out := make(map[string][]Entry)
	m := t.m.Load()
	m.Range(func(qn string, entries []Entry) bool {
		if hasSeparatorBoundedSuffix(qn, suffix) {
			out[qn] = entries
		}
		return true
	})
	return out
}

func hasSeparatorBoundedSuffix(qn, suffix string) bool {
	if qn == suffix {
		return true
	}
	if len(qn) <= len(suffix) || qn[len(qn)-len(suffix):] != suffix {
		return false
	}
	boundary := qn[len(qn)-len(suffix)-1]
	return boundary == '.' || boundary == ':' || boundary == '/'
}

// Remove deletes nodeID's entry under the one given qualified name (used
// when a file's symbols disappear); other qualified names are untouched.
func (t *Table) Remove(qualifiedName, nodeID string) {
	m := t.m.Load()
	m.Compute(qualifiedName, func(old []Entry, loaded bool) ([]Entry, bool) {
		if !loaded {
			return nil, true
		}
		kept := old[:0]
		for _, e := range old {
			if e.NodeID != nodeID {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			return nil, true
		}
		return kept, false
	})
}

// Swap atomically replaces the entire table, used after a full
// re-index so concurrent readers never see a half-rebuilt index.
func (t *Table) Swap(next *xsync.MapOf[string, []Entry]) {
	t.m.Store(next)
}

// NewBuildMap returns a fresh map suitable for populating out-of-band
// before calling Swap.
func NewBuildMap() *xsync.MapOf[string, []Entry] {
	return xsync.NewMapOf[string, []Entry]()
}

// Enqueue appends references awaiting resolution.
func (t *Table) Enqueue(refs ...PendingReference) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	t.pending = append(t.pending, refs...)
}

// DrainPending removes and returns every currently-queued reference.
func (t *Table) DrainPending() []PendingReference {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	out := t.pending
	t.pending = nil
	return out
}

// PendingLen reports the number of currently-queued unresolved
// references, for introspection/debug surfaces.
func (t *Table) PendingLen() int {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	return len(t.pending)
}

// Pending returns a snapshot copy of every currently-queued unresolved
// reference without draining the queue, for introspection/debug surfaces
// that must not interfere with the Resolver's next drain.
func (t *Table) Pending() []PendingReference {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	out := make([]PendingReference, len(t.pending))
	copy(out, t.pending)
	return out
}

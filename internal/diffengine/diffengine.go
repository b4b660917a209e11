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

// Package diffengine turns a Graph Store ApplyResult plus the set of files
// touched by one debounce batch into a sequence-numbered Diff, ready for
// broadcast to subscribers.
package diffengine

import (
	"sort"
	"sync/atomic"
	"time"

	"canopy/internal/graph"
)

// FileChangeKind tags how a file changed within a batch.
type FileChangeKind int

const (
	FileCreated FileChangeKind = iota
	FileModified
	FileRemoved
)

// FileChange is one entry in a Diff's changed-files list. Ordinal is
// globally monotonic across every file change ever reported, independent
// of the Diff's own Sequence, so a UI can order file events even if it
// only cares about one path.
type FileChange struct {
	Path    string
	Kind    FileChangeKind
	Ordinal uint64
}

// Diff is everything that changed in one batch, in commit order.
type Diff struct {
	Sequence       uint64
	Timestamp      time.Time
	AddedNodes     []*graph.Node
	RemovedNodeIDs []string
	ModifiedNodes  []graph.ModifiedNode
	AddedEdges     []*graph.Edge
	RemovedEdgeIDs []string
	ChangedFiles   []FileChange
}

// Empty reports whether the diff carries no graph mutations and no file
// changes — re-extracting an unchanged file must produce one of these so
// the Indexer can skip publishing it.
func (d *Diff) Empty() bool {
	return len(d.AddedNodes) == 0 && len(d.RemovedNodeIDs) == 0 &&
		len(d.ModifiedNodes) == 0 && len(d.AddedEdges) == 0 &&
		len(d.RemovedEdgeIDs) == 0 && len(d.ChangedFiles) == 0
}

// Engine assigns strictly increasing, gap-free sequence numbers to diffs
// and globally monotonic ordinals to file changes. Both counters are
// plain atomics, matching the teacher's stdlib-only counting style
// elsewhere in its parallel resolution code.
type Engine struct {
	seq         atomic.Uint64
	fileOrdinal atomic.Uint64
	now         func() time.Time
}

// New returns an Engine whose sequence numbers start at 1.
func New() *Engine {
	return &Engine{now: time.Now}
}

// Build converts one ApplyResult plus its file-change kinds into a Diff.
// fileKinds maps each path touched by the batch to how it changed; Build
// sorts the paths and assigns each one the next global file-change
// ordinal in that sorted order, so ordinals within a batch are stable.
//
// A batch that produced no mutations and no file changes consumes no
// sequence number at all: Sequence would otherwise advance past an empty
// Diff the Indexer never broadcasts, leaving every subscriber-visible
// sequence with a permanent, unexplained gap.
func (e *Engine) Build(res *graph.ApplyResult, fileKinds map[string]FileChangeKind) *Diff {
	d := &Diff{
		Timestamp:      e.now(),
		AddedNodes:     res.AddedNodes,
		RemovedNodeIDs: res.RemovedNodeIDs,
		ModifiedNodes:  res.ModifiedNodes,
		AddedEdges:     res.AddedEdges,
		RemovedEdgeIDs: res.RemovedEdgeIDs,
	}
	for _, path := range sortedKeys(fileKinds) {
		d.ChangedFiles = append(d.ChangedFiles, FileChange{
			Path:    path,
			Kind:    fileKinds[path],
			Ordinal: e.fileOrdinal.Add(1),
		})
	}
	if d.Empty() {
		d.Sequence = e.seq.Load()
		return d
	}
	d.Sequence = e.seq.Add(1)
	return d
}

func sortedKeys(m map[string]FileChangeKind) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CurrentSequence reports the most recently assigned sequence number,
// i.e. the sequence a fresh snapshot should be tagged with.
func (e *Engine) CurrentSequence() uint64 {
	return e.seq.Load()
}

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

// Package parsecache backs incremental reparse. It retains, per file, the
// last parsed syntax tree, the source bytes it was parsed from, and the
// modification timestamp observed at that time. On the next change the
// retained tree lets the parser reuse unchanged regions instead of a full
// reparse.
package parsecache

import (
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
)

// Entry is one cached file's retained parse state.
type Entry struct {
	ModTime time.Time
	Tree    *sitter.Tree
	Source  []byte
}

// Cache is a concurrent map keyed by file path. The Indexer guarantees at
// most one writer in flight per path per batch by pinning one extraction
// goroutine to each path; reads for re-parsing continuation are safe
// concurrently with writes to other paths.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	retain   bool // false in low-memory mode: trees are dropped, forcing full reparse
}

// New returns a Cache. When retain is false (low-memory mode), Put drops
// the tree: Get still returns the entry's source and modification time,
// but with a nil Tree, so the next parse is a full one — trading memory
// for reparse latency.
func New(retain bool) *Cache {
	return &Cache{entries: make(map[string]*Entry), retain: retain}
}

// Get returns the retained entry for path, if any.
func (c *Cache) Get(path string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	return e, ok
}

// Put records the parse result for path. In low-memory mode the tree is
// not retained.
func (c *Cache) Put(path string, modTime time.Time, tree *sitter.Tree, source []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &Entry{ModTime: modTime, Source: source}
	if c.retain {
		e.Tree = tree
	}
	c.entries[path] = e
}

// Evict removes path's entry, e.g. on file deletion.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Len reports the number of retained entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ByteEdit describes one contiguous byte-range replacement between an old
// and new source buffer, in tree-sitter's edit-input terms.
type ByteEdit struct {
	StartByte  uint32
	OldEndByte uint32
	NewEndByte uint32
	StartPoint sitter.Point
	OldEndPoint sitter.Point
	NewEndPoint sitter.Point
}

// ApplyEdits clones old and applies each edit to it in order, producing a
// baseline tree that a subsequent Parser.ParseCtx(ctx, baseline, newSource)
// call can reuse unchanged regions against. Returns nil if old is nil (no
// prior tree exists, signaling the caller to perform a full parse).
func ApplyEdits(old *sitter.Tree, edits []ByteEdit) *sitter.Tree {
	if old == nil {
		return nil
	}
	baseline := old.Copy()
	for _, ed := range edits {
		baseline.Edit(sitter.EditInput{
			StartIndex:  ed.StartByte,
			OldEndIndex: ed.OldEndByte,
			NewEndIndex: ed.NewEndByte,
			StartPoint:  ed.StartPoint,
			OldEndPoint: ed.OldEndPoint,
			NewEndPoint: ed.NewEndPoint,
		})
	}
	return baseline
}

// DiffToEdit computes a single whole-buffer ByteEdit between oldSrc and
// newSrc using the longest common prefix/suffix, which is sufficient for
// the debounced single-file-mutation case (finer-grained multi-hunk diffs
// are unnecessary since tree-sitter only needs the outer edited range to
// bound its re-lex).
func DiffToEdit(oldSrc, newSrc []byte) ByteEdit {
	prefix := commonPrefixLen(oldSrc, newSrc)
	suffix := commonSuffixLen(oldSrc[prefix:], newSrc[prefix:])

	oldEnd := len(oldSrc) - suffix
	newEnd := len(newSrc) - suffix
	if oldEnd < prefix {
		oldEnd = prefix
	}
	if newEnd < prefix {
		newEnd = prefix
	}

	return ByteEdit{
		StartByte:   uint32(prefix),
		OldEndByte:  uint32(oldEnd),
		NewEndByte:  uint32(newEnd),
		StartPoint:  pointAt(oldSrc, prefix),
		OldEndPoint: pointAt(oldSrc, oldEnd),
		NewEndPoint: pointAt(newSrc, newEnd),
	}
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}

func pointAt(src []byte, byteOffset int) sitter.Point {
	if byteOffset > len(src) {
		byteOffset = len(src)
	}
	row, col := uint32(0), uint32(0)
	for i := 0; i < byteOffset; i++ {
		if src[i] == '\n' {
			row++
			col = 0
		} else {
			col++
		}
	}
	return sitter.Point{Row: row, Column: col}
}

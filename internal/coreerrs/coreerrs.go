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

// Package coreerrs defines the error taxonomy at the indexing core's
// surface. Every type here is contained to the narrowest unit possible —
// a file, a reference, a batch — and is never fatal to the Indexer task on
// its own.
package coreerrs

import "fmt"

// ParseFailure reports that a single file failed to parse. The file
// contributes no symbols for the current batch; any symbols it previously
// contributed are removed.
type ParseFailure struct {
	Path   string
	Reason string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse failure: %s: %s", e.Path, e.Reason)
}

// ExtractionPartial reports that a file parsed but the extractor rejected
// part of it. Symbols it could extract are retained; the rest is dropped.
type ExtractionPartial struct {
	Path   string
	Reason string
}

func (e *ExtractionPartial) Error() string {
	return fmt.Sprintf("partial extraction: %s: %s", e.Path, e.Reason)
}

// ResolutionAmbiguity reports that a reference had more than one surviving
// candidate with no unique best match. The reference is logged at debug
// and no edge is inserted.
type ResolutionAmbiguity struct {
	Reference  string
	Candidates []string
}

func (e *ResolutionAmbiguity) Error() string {
	return fmt.Sprintf("ambiguous reference %q: %d candidates", e.Reference, len(e.Candidates))
}

// MissingEndpoint refuses an edge insertion because one or both endpoints
// are absent from the node set. It indicates an upstream bug and is logged
// at warn.
type MissingEndpoint struct {
	EdgeID string
	End    string // "source" or "target"
	NodeID string
}

func (e *MissingEndpoint) Error() string {
	return fmt.Sprintf("missing %s endpoint %q for edge %q", e.End, e.NodeID, e.EdgeID)
}

// HierarchyCycle refuses a Contains-edge insertion that would introduce a
// cycle into the containment forest.
type HierarchyCycle struct {
	ParentID string
	ChildID  string
}

func (e *HierarchyCycle) Error() string {
	return fmt.Sprintf("hierarchy cycle: %q cannot contain %q", e.ParentID, e.ChildID)
}

// AIBudgetExhausted signals that the AI Bridge has exhausted its
// invocation budget for the current period. The bridge returns no results
// for the remainder of the period; logged once at info.
type AIBudgetExhausted struct {
	Period string
}

func (e *AIBudgetExhausted) Error() string {
	return fmt.Sprintf("AI bridge budget exhausted for period %s", e.Period)
}

// CacheKind distinguishes which on-disk cache a corruption was detected in.
type CacheKind string

const (
	CacheKindAI    CacheKind = "ai"
	CacheKindGraph CacheKind = "graph"
)

// CacheCorrupt reports that a persisted cache could not be decoded. The
// cache is discarded and a cold index proceeds.
type CacheCorrupt struct {
	Kind   CacheKind
	Path   string
	Reason string
}

func (e *CacheCorrupt) Error() string {
	return fmt.Sprintf("%s cache corrupt at %s: %s", e.Kind, e.Path, e.Reason)
}

// WatcherFailure reports that the underlying OS filesystem watcher errored,
// and whether a re-registration was made. internal/watch does not build
// this type: it forwards raw OS watcher errors and never re-registers.
type WatcherFailure struct {
	Reason      string
	Reregistered bool
}

func (e *WatcherFailure) Error() string {
	if e.Reregistered {
		return fmt.Sprintf("watcher failure (re-registered): %s", e.Reason)
	}
	return fmt.Sprintf("watcher failure (re-registration failed): %s", e.Reason)
}

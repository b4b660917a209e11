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

// Package cachestore persists a Graph Store snapshot plus a per-file mtime
// index to a single binary file, so a restart can skip re-parsing files
// that have not changed since the last run. It plays the role the
// teacher's EmbeddedBackend plays for CozoDB rows, retargeted at the
// Graph Store's in-memory model: one encoded file instead of a database.
package cachestore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-version"
	"github.com/vmihailenco/msgpack/v5"

	"canopy/internal/graph"
)

// FormatVersion is bumped whenever the Snapshot wire shape changes
// incompatibly. A cache file from an older major version is discarded
// rather than partially decoded.
const FormatVersion = "1.0.0"

// FileRecord is the per-file bookkeeping needed to decide whether a file
// must be re-extracted: its last-seen modification time and size.
type FileRecord struct {
	ModTime time.Time
	Size    int64
}

// Snapshot is the entire persisted state.
type Snapshot struct {
	FormatVersion string
	Sequence      uint64
	Nodes         []*graph.Node
	Edges         []*graph.Edge
	Files         map[string]FileRecord
}

// Store reads and writes a Snapshot at Path, serializing concurrent
// access across processes with an advisory file lock the way the
// teacher's CozoDB instance serializes access to its own data directory.
type Store struct {
	Path string
}

// New returns a Store rooted at path, creating its parent directory.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("cachestore: create cache dir: %w", err)
	}
	return &Store{Path: path}, nil
}

// Load reads the snapshot at Path. A missing file or a format-version
// mismatch that fails the compatibility check returns (nil, false, nil)
// so the caller falls back to a cold, from-scratch index rather than
// treating a stale cache as a hard error.
func (s *Store) Load() (*Snapshot, bool, error) {
	lock := flock.New(s.Path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, false, fmt.Errorf("cachestore: acquire read lock: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cachestore: read %s: %w", s.Path, err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, false, nil // corrupt cache: treat as absent, not fatal
	}
	if !compatible(snap.FormatVersion) {
		return nil, false, nil
	}
	return &snap, true, nil
}

// Save writes snap to Path atomically: it encodes to a temp file in the
// same directory and renames over the target, so a crash mid-write never
// leaves a half-written cache behind.
func (s *Store) Save(snap *Snapshot) error {
	snap.FormatVersion = FormatVersion

	lock := flock.New(s.Path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("cachestore: acquire write lock: %w", err)
	}
	defer lock.Unlock()

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cachestore: encode snapshot: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cachestore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("cachestore: rename into place: %w", err)
	}
	return nil
}

// compatible reports whether a persisted format version can be read by
// this build: the major component must match exactly.
func compatible(persisted string) bool {
	if persisted == "" {
		return false
	}
	want, err := version.NewVersion(FormatVersion)
	if err != nil {
		return false
	}
	got, err := version.NewVersion(persisted)
	if err != nil {
		return false
	}
	return got.Segments()[0] == want.Segments()[0]
}

// UpToDate reports whether the file at path still matches the recorded
// FileRecord, i.e. whether it can be skipped on this run's re-index.
func UpToDate(rec FileRecord, info os.FileInfo) bool {
	return info.Size() == rec.Size && info.ModTime().Equal(rec.ModTime)
}

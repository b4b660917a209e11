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

// Package watch recursively watches a repository for file-level changes
// and debounces them into batches. It is adapted from the teacher's
// cmd/cie/watch.go fsnotify walk-and-watch-dirs loop, generalized from a
// single hardcoded 2-second debounce that triggers one reindex, to a
// configurable window that emits a structured event batch.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Op is the kind of filesystem change an Event represents.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpRemove
)

// Event is one collapsed, debounced file change.
type Event struct {
	Path string
	Op   Op
}

// Batch is everything that collapsed out of one debounce window.
type Batch struct {
	Events []Event
}

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 150 * time.Millisecond

var defaultSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".canopy": true, "bin": true,
}

// Config controls a Watcher's behavior.
type Config struct {
	Root         string
	Debounce     time.Duration
	ExcludeGlobs []string // in addition to the built-in skip list
}

// Watcher recursively watches Config.Root and emits debounced Batches on
// Batches() until Close or the context passed to Run is canceled.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	excludes []glob.Glob
	batches  chan Batch
}

// New starts watching cfg.Root, adding every non-excluded subdirectory.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{cfg: cfg, fsw: fsw, batches: make(chan Batch, 1)}
	for _, pattern := range cfg.ExcludeGlobs {
		if g, err := glob.Compile(pattern, '/'); err == nil {
			w.excludes = append(w.excludes, g)
		}
	}

	if err := w.addTree(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Batches returns the channel of debounced batches.
func (w *Watcher) Batches() <-chan Batch { return w.batches }

// Close stops the underlying OS watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Run drains fsnotify events, collapsing them per-path within the
// debounce window, until ctx is canceled or the OS watcher's channels
// close. An OS watcher error is forwarded on errs as-is, with a
// non-blocking send: it is dropped when errs is nil or still holds an
// unread error. No re-registration is attempted.
func (w *Watcher) Run(ctx context.Context, errs chan<- error) {
	defer close(w.batches)

	pending := map[string]Op{}
	var timer *time.Timer
	var timerCh <-chan time.Time

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := Batch{Events: make([]Event, 0, len(pending))}
		for path, op := range pending {
			batch.Events = append(batch.Events, Event{Path: path, Op: op})
		}
		pending = map[string]Op{}
		select {
		case w.batches <- batch:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(event.Name)
					continue
				}
			}
			collapse(pending, event)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.cfg.Debounce)
			timerCh = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errs != nil {
				select {
				case errs <- err:
				default:
				}
			}
		case <-timerCh:
			timerCh = nil
			flush()
		}
	}
}

// collapse applies the same-path collapse rules within a debounce window:
// a create followed by a remove annihilates; a later write on a pending
// create stays a create; anything else is last-write-wins. Renames are
// reported by fsnotify as a Rename on the old path (handled here like a
// Remove) plus a separate Create on the new path, which the event loop picks up on its
// own — so no special-case is needed for Rename beyond treating it as a
// removal of the old path.
func collapse(pending map[string]Op, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		if prior, ok := pending[path]; ok && prior == OpCreate {
			delete(pending, path)
			return
		}
		pending[path] = OpRemove
	case event.Op&fsnotify.Create != 0:
		pending[path] = OpCreate
	case event.Op&fsnotify.Write != 0, event.Op&fsnotify.Chmod != 0:
		if prior, ok := pending[path]; ok && prior == OpCreate {
			return
		}
		pending[path] = OpModify
	}
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if defaultSkipDirs[base] {
		return true
	}
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, g := range w.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// addTree recursively adds root and its non-excluded, non-hidden
// subdirectories to the underlying fsnotify watch set.
func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if defaultSkipDirs[base] || (strings.HasPrefix(base, ".") && path != root) {
			return filepath.SkipDir
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil && os.IsPermission(err) {
			return filepath.SkipDir
		}
		return nil
	})
}

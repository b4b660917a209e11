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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"

	"canopy/internal/aibridge"
	"canopy/internal/cachestore"
	"canopy/internal/config"
	"canopy/internal/configextract"
	"canopy/internal/extract"
	"canopy/internal/graph"
	"canopy/internal/indexer"
	"canopy/internal/parsecache"
	"canopy/internal/workspace"
)

// engine bundles everything a subcommand needs to index or serve a
// repository: it is built once from the on-disk config and handed to
// whichever subcommand is running.
type engine struct {
	RepoRoot  string
	Cfg       *config.Config
	Detection workspace.Detection
	Store     *graph.Store
	Cache     *parsecache.Cache
	Pools     *parsecache.ParserPools
	Registry  *extract.Registry
	Indexer   *indexer.Indexer
	Snapshot  *cachestore.Store
	Logger    *slog.Logger

	includeGlobs []glob.Glob
	excludeGlobs []glob.Glob
}

// newEngine loads configuration rooted at repoRoot (detecting it via
// config.LoadConfig, falling back to config.DefaultConfig when none is
// on disk yet), wires the Graph Store and a fresh Indexer on top of it,
// and opens the snapshot store under the configured cache directory. A
// previously saved snapshot is not loaded: the Graph Store always starts
// out holding only the root node.
func newEngine(repoRoot, configPath string, logger *slog.Logger) (*engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	repoRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		cfg = config.DefaultConfig(filepath.Base(repoRoot))
	}

	detection, err := workspace.Detect(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("detect workspace layout: %w", err)
	}

	store := graph.NewStore()
	rootID := "root"
	rootKind := graph.KindDirectory
	if detection.RootKind == workspace.RootKindWorkspaceRoot {
		rootKind = graph.KindWorkspaceRoot
	}
	store.ApplyBatch(&graph.MutationBatch{
		UpsertNodes: []*graph.Node{{ID: rootID, Kind: rootKind, Name: filepath.Base(repoRoot), IsContainer: true}},
	})

	pools := parsecache.NewParserPools()
	registry := extract.NewDefaultRegistry(pools.Borrow)

	bridge := buildBridge(cfg)

	idx := indexer.New(store, rootID, registry, bridge, logger)
	idx.SetMinAIConfidence(cfg.AIBridge.ConfidenceThreshold)

	snap, err := cachestore.New(filepath.Join(repoRoot, cfg.Cache.Directory, "snapshot.msgpack"))
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	e := &engine{
		RepoRoot:  repoRoot,
		Cfg:       cfg,
		Detection: detection,
		Store:     store,
		Cache:     parsecache.New(cfg.Indexing.RetainParseTrees),
		Pools:     pools,
		Registry:  registry,
		Indexer:   idx,
		Snapshot:  snap,
		Logger:    logger,
	}
	e.compileGlobs()
	e.Logger.Info("engine.ready", "repo_root", e.RepoRoot, "layout", string(detection.Layout), "project_id", cfg.ProjectID)
	return e, nil
}

// buildBridge wires a CachedBridge around aibridge.NullBridge when the
// AI bridge is enabled in config, so a future real provider only has to
// replace the Inner field. With no provider configured, Canopy runs
// fully structural-plus-heuristic.
func buildBridge(cfg *config.Config) aibridge.Bridge {
	if !cfg.AIBridge.Enabled {
		return aibridge.NullBridge{}
	}
	return &aibridge.CachedBridge{
		Inner:  aibridge.NullBridge{},
		Budget: aibridge.NewBudget(cfg.AIBridge.DailyBudget, 24*time.Hour),
		Cache:  aibridge.NewCache(),
	}
}

func (e *engine) compileGlobs() {
	for _, pat := range e.Cfg.Indexing.Include {
		if g, err := glob.Compile(pat, '/'); err == nil {
			e.includeGlobs = append(e.includeGlobs, g)
		}
	}
	for _, pat := range e.Cfg.Indexing.Exclude {
		if g, err := glob.Compile(pat, '/'); err == nil {
			e.excludeGlobs = append(e.excludeGlobs, g)
		}
	}
}

// indexable reports whether path (relative to RepoRoot, slash-separated)
// should be fed through the indexing pipeline: it must have an extractor
// registered for its extension (or match one of the configextract
// filename/extension conventions), must not match an exclude glob, and
// must match an include glob when any are configured.
func (e *engine) indexable(relPath string) bool {
	ext := filepath.Ext(relPath)
	if _, ok := e.Registry.For(ext); !ok && !configextract.Recognized(relPath) {
		return false
	}
	for _, g := range e.excludeGlobs {
		if g.Match(relPath) {
			return false
		}
	}
	if len(e.includeGlobs) == 0 {
		return true
	}
	for _, g := range e.includeGlobs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

var repoSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".canopy": true, "bin": true,
}

// walkRepo collects the absolute path of every indexable file under
// RepoRoot, never descending into a directory named in repoSkipDirs
// (vendor, node_modules, .git, ...).
func (e *engine) walkRepo() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(e.RepoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(e.RepoRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if repoSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if e.indexable(rel) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

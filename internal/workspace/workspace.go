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

// Package workspace classifies a repository's layout before indexing
// starts: a single project, a workspace with explicitly declared
// members, or a generic multi-package repository inferred from sibling
// manifests.
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Layout is the detected repository shape.
type Layout string

const (
	LayoutSingleProject Layout = "single_project"
	LayoutDeclaredWorkspace Layout = "declared_workspace"
	LayoutGenericMultiPackage Layout = "generic_multi_package"
)

// RootKind is the kind the top containment node should carry.
type RootKind string

const (
	RootKindWorkspaceRoot RootKind = "WorkspaceRoot"
	RootKindDirectory     RootKind = "Directory"
)

// Detection is the result of classifying a repository root.
type Detection struct {
	Layout       Layout
	RootKind     RootKind
	PackageRoots []string // relative to repo root, sorted, deduplicated
}

var manifestNames = []string{"go.mod", "pyproject.toml", "package.json", "Cargo.toml"}

// Detect classifies repoRoot. It runs once, when the engine starts; a
// later manifest change does not re-run it.
func Detect(repoRoot string) (Detection, error) {
	if members, ok, err := declaredMembers(repoRoot); err != nil {
		return Detection{}, err
	} else if ok {
		return Detection{
			Layout:       LayoutDeclaredWorkspace,
			RootKind:     RootKindWorkspaceRoot,
			PackageRoots: members,
		}, nil
	}

	manifestDirs, err := manifestOwningDirs(repoRoot)
	if err != nil {
		return Detection{}, err
	}
	if len(manifestDirs) > 1 {
		return Detection{
			Layout:       LayoutGenericMultiPackage,
			RootKind:     RootKindDirectory,
			PackageRoots: manifestDirs,
		}, nil
	}

	return Detection{
		Layout:       LayoutSingleProject,
		RootKind:     RootKindDirectory,
		PackageRoots: []string{"."},
	}, nil
}

// declaredMembers looks for an explicit workspace member declaration:
// a package.json "workspaces" array, or a pnpm-workspace.yaml "packages"
// list. Globs in either are expanded against the filesystem.
func declaredMembers(repoRoot string) ([]string, bool, error) {
	if members, ok, err := npmWorkspaceMembers(repoRoot); err != nil {
		return nil, false, err
	} else if ok {
		return expandMemberGlobs(repoRoot, members)
	}
	if members, ok, err := pnpmWorkspaceMembers(repoRoot); err != nil {
		return nil, false, err
	} else if ok {
		return expandMemberGlobs(repoRoot, members)
	}
	return nil, false, nil
}

func npmWorkspaceMembers(repoRoot string) ([]string, bool, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, "package.json"))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var pkg struct {
		Workspaces json.RawMessage `json:"workspaces"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, false, nil // malformed manifest: not a declared workspace, fall through
	}
	if len(pkg.Workspaces) == 0 {
		return nil, false, nil
	}

	var list []string
	if err := json.Unmarshal(pkg.Workspaces, &list); err == nil {
		return list, true, nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(pkg.Workspaces, &obj); err == nil && len(obj.Packages) > 0 {
		return obj.Packages, true, nil
	}
	return nil, false, nil
}

func pnpmWorkspaceMembers(repoRoot string) ([]string, bool, error) {
	data, err := os.ReadFile(filepath.Join(repoRoot, "pnpm-workspace.yaml"))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var doc struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Packages) == 0 {
		return nil, false, nil
	}
	return doc.Packages, true, nil
}

func expandMemberGlobs(repoRoot string, patterns []string) ([]string, bool, error) {
	seen := map[string]bool{}
	var out []string
	for _, pat := range patterns {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			continue
		}
		err = filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(repoRoot, path)
			if relErr != nil || rel == "." {
				return nil
			}
			if g.Match(rel) && !seen[rel] {
				seen[rel] = true
				out = append(out, rel)
			}
			return nil
		})
		if err != nil {
			return nil, false, err
		}
	}
	sort.Strings(out)
	return out, true, nil
}

func manifestOwningDirs(repoRoot string) ([]string, error) {
	seen := map[string]bool{}
	err := filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			base := filepath.Base(path)
			if base == ".git" || base == "node_modules" || base == "vendor" || base == ".canopy" {
				return filepath.SkipDir
			}
			return nil
		}
		name := filepath.Base(path)
		for _, m := range manifestNames {
			if name == m {
				dir := filepath.Dir(path)
				rel, relErr := filepath.Rel(repoRoot, dir)
				if relErr == nil {
					seen[rel] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

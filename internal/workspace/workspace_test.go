// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetect_SingleProject(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0o644))

	got, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.Layout != LayoutSingleProject {
		t.Fatalf("expected single project, got %v", got.Layout)
	}
}

func TestDetect_GenericMultiPackage(t *testing.T) {
	dir := t.TempDir()
	must(t, os.MkdirAll(filepath.Join(dir, "svc-a"), 0o755))
	must(t, os.MkdirAll(filepath.Join(dir, "svc-b"), 0o755))
	must(t, os.WriteFile(filepath.Join(dir, "svc-a", "go.mod"), []byte("module a\n"), 0o644))
	must(t, os.WriteFile(filepath.Join(dir, "svc-b", "go.mod"), []byte("module b\n"), 0o644))

	got, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.Layout != LayoutGenericMultiPackage {
		t.Fatalf("expected generic multi-package, got %v", got.Layout)
	}
	if len(got.PackageRoots) != 2 {
		t.Fatalf("expected 2 package roots, got %v", got.PackageRoots)
	}
}

func TestDetect_DeclaredWorkspace(t *testing.T) {
	dir := t.TempDir()
	must(t, os.MkdirAll(filepath.Join(dir, "packages", "a"), 0o755))
	must(t, os.MkdirAll(filepath.Join(dir, "packages", "b"), 0o755))
	must(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"workspaces": ["packages/*"]}`), 0o644))

	got, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got.Layout != LayoutDeclaredWorkspace {
		t.Fatalf("expected declared workspace, got %v", got.Layout)
	}
	if len(got.PackageRoots) != 2 {
		t.Fatalf("expected 2 expanded package roots, got %v", got.PackageRoots)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsecache

import (
	"testing"
	"time"
)

func TestCache_PutGet(t *testing.T) {
	c := New(true)
	src := []byte("package main\n")
	c.Put("main.go", time.Now(), nil, src)

	e, ok := c.Get("main.go")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if string(e.Source) != string(src) {
		t.Fatalf("unexpected source: %q", e.Source)
	}
}

func TestCache_LowMemoryModeDropsTree(t *testing.T) {
	c := New(false)
	c.Put("main.go", time.Now(), nil, []byte("x"))
	e, ok := c.Get("main.go")
	if !ok {
		t.Fatalf("expected entry to still be tracked for source/modtime")
	}
	if e.Tree != nil {
		t.Fatalf("low-memory mode must not retain a tree")
	}
}

func TestCache_Evict(t *testing.T) {
	c := New(true)
	c.Put("a.go", time.Now(), nil, []byte("a"))
	c.Evict("a.go")
	if _, ok := c.Get("a.go"); ok {
		t.Fatalf("expected entry to be evicted")
	}
}

func TestDiffToEdit_SingleInsertion(t *testing.T) {
	old := []byte("func a() {}\n")
	next := []byte("func a() {}\nfunc b() {}\n")

	edit := DiffToEdit(old, next)
	if edit.StartByte != uint32(len(old)) {
		t.Fatalf("expected edit to start at end of old source, got %d", edit.StartByte)
	}
	if edit.OldEndByte != uint32(len(old)) {
		t.Fatalf("pure insertion should have OldEndByte == len(old), got %d", edit.OldEndByte)
	}
	if edit.NewEndByte != uint32(len(next)) {
		t.Fatalf("expected NewEndByte at end of new source, got %d", edit.NewEndByte)
	}
}

func TestDiffToEdit_IdenticalSource(t *testing.T) {
	src := []byte("package main\n")
	edit := DiffToEdit(src, src)
	if edit.StartByte != uint32(len(src)) || edit.OldEndByte != uint32(len(src)) || edit.NewEndByte != uint32(len(src)) {
		t.Fatalf("identical sources should produce a degenerate empty edit at EOF, got %+v", edit)
	}
}

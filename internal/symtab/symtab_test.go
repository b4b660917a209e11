// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package symtab

import "testing"

func TestPutAndLookup(t *testing.T) {
	tbl := NewTable()
	tbl.Put("pkg::Foo", Entry{NodeID: "fn:1", FilePath: "pkg/foo.go"})

	entries, ok := tbl.Lookup("pkg::Foo")
	if !ok || len(entries) != 1 || entries[0].NodeID != "fn:1" {
		t.Fatalf("expected one entry for pkg::Foo, got %+v (ok=%v)", entries, ok)
	}
}

func TestPut_DuplicateNodeIDIsIdempotent(t *testing.T) {
	tbl := NewTable()
	tbl.Put("pkg::Foo", Entry{NodeID: "fn:1"})
	tbl.Put("pkg::Foo", Entry{NodeID: "fn:1"})

	entries, _ := tbl.Lookup("pkg::Foo")
	if len(entries) != 1 {
		t.Fatalf("expected idempotent Put, got %d entries", len(entries))
	}
}

func TestSuffixMatches_RequiresSeparatorBoundary(t *testing.T) {
	tbl := NewTable()
	tbl.Put("pkg::Foo", Entry{NodeID: "fn:1"})
	tbl.Put("otherpkg::NotFoo", Entry{NodeID: "fn:2"})

	matches := tbl.SuffixMatches("Foo")
	if _, ok := matches["pkg::Foo"]; !ok {
		t.Fatalf("expected pkg::Foo to match suffix Foo")
	}
	if _, ok := matches["otherpkg::NotFoo"]; ok {
		t.Fatalf("NotFoo should not match suffix Foo (no separator boundary)")
	}
}

func TestRemove_DropsEntryForNode(t *testing.T) {
	tbl := NewTable()
	tbl.Put("pkg::Foo", Entry{NodeID: "fn:1"})
	tbl.Put("pkg::Foo", Entry{NodeID: "fn:2"})

	tbl.Remove("pkg::Foo", "fn:1")

	entries, ok := tbl.Lookup("pkg::Foo")
	if !ok || len(entries) != 1 || entries[0].NodeID != "fn:2" {
		t.Fatalf("expected only fn:2 to remain, got %+v (ok=%v)", entries, ok)
	}
}

func TestSwap_AtomicReplace(t *testing.T) {
	tbl := NewTable()
	tbl.Put("pkg::Foo", Entry{NodeID: "fn:1"})

	next := NewBuildMap()
	next.Store("pkg::Bar", []Entry{{NodeID: "fn:2"}})
	tbl.Swap(next)

	if _, ok := tbl.Lookup("pkg::Foo"); ok {
		t.Fatalf("old table contents should be gone after Swap")
	}
	if entries, ok := tbl.Lookup("pkg::Bar"); !ok || len(entries) != 1 {
		t.Fatalf("expected swapped-in contents to be visible")
	}
}

func TestPendingQueue_EnqueueAndDrain(t *testing.T) {
	tbl := NewTable()
	tbl.Enqueue(PendingReference{RefText: "Foo"}, PendingReference{RefText: "Bar"})
	if tbl.PendingLen() != 2 {
		t.Fatalf("expected 2 pending refs, got %d", tbl.PendingLen())
	}

	drained := tbl.DrainPending()
	if len(drained) != 2 {
		t.Fatalf("expected to drain 2 refs, got %d", len(drained))
	}
	if tbl.PendingLen() != 0 {
		t.Fatalf("expected queue empty after drain, got %d", tbl.PendingLen())
	}
}

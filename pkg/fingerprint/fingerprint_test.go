// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package fingerprint

import "testing"

func TestNodeID_Deterministic(t *testing.T) {
	a := NodeID("internal/graph/store.go", "graph::Store.Apply", 100, 240)
	b := NodeID("internal/graph/store.go", "graph::Store.Apply", 100, 240)
	if a != b {
		t.Fatalf("NodeID not deterministic: %q != %q", a, b)
	}
	if a[:5] != "node:" {
		t.Fatalf("NodeID missing kind prefix: %q", a)
	}
}

func TestNodeID_DistinctSpans(t *testing.T) {
	a := NodeID("f.go", "Foo", 0, 10)
	b := NodeID("f.go", "Foo", 10, 20)
	if a == b {
		t.Fatalf("expected distinct IDs for distinct spans, got %q for both", a)
	}
}

func TestEdgeID_DisambiguatorSeparatesCallSites(t *testing.T) {
	a := EdgeID("calls", "node:aaaa", "node:bbbb", "12")
	b := EdgeID("calls", "node:aaaa", "node:bbbb", "34")
	if a == b {
		t.Fatalf("expected distinct edge IDs for distinct call sites")
	}
}

func TestFieldID_Deterministic(t *testing.T) {
	a := FieldID("svc.go", "Builder", "writer")
	b := FieldID("svc.go", "Builder", "writer")
	if a != b || a[:4] != "fld:" {
		t.Fatalf("FieldID not stable/prefixed: %q", a)
	}
}

func TestConfigKeyID_DistinguishesFiles(t *testing.T) {
	a := ConfigKeyID("config/prod.yaml", "database.host")
	b := ConfigKeyID("config/dev.yaml", "database.host")
	if a == b {
		t.Fatalf("expected distinct IDs across files for the same key path")
	}
}

func TestAICacheKey_DeterministicAndPrefixed(t *testing.T) {
	a := AICacheKey("client.Query", []byte("func fetch() {}"), "node:a,node:b")
	b := AICacheKey("client.Query", []byte("func fetch() {}"), "node:a,node:b")
	if a != b {
		t.Fatalf("AICacheKey not deterministic: %q != %q", a, b)
	}
	if a[:3] != "ai:" {
		t.Fatalf("AICacheKey missing kind prefix: %q", a)
	}

	c := AICacheKey("client.Query", []byte("func fetch() {}"), "node:a")
	if a == c {
		t.Fatalf("expected distinct keys for distinct candidate sets")
	}
}

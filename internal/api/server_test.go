// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gwebsocket "github.com/gorilla/websocket"

	"canopy/internal/extract"
	"canopy/internal/graph"
	"canopy/internal/indexer"
	"canopy/internal/parsecache"
	"canopy/internal/symtab"
)

func newTestServer(t *testing.T) (*Server, *graph.Store) {
	t.Helper()
	store := graph.NewStore()
	rootID := "root"
	store.ApplyBatch(&graph.MutationBatch{
		UpsertNodes: []*graph.Node{{ID: rootID, Kind: graph.KindWorkspaceRoot, IsContainer: true}},
	})
	pools := parsecache.NewParserPools()
	registry := extract.NewDefaultRegistry(pools.Borrow)
	idx := indexer.New(store, rootID, registry, nil, nil)
	cache := parsecache.New(true)
	return New(store, idx, cache, nil), store
}

func TestHandleHealth_ReportsOK(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %+v", body)
	}
}

func TestHandleNode_MissingReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/nodes/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleSnapshot_ReturnsRootChildren(t *testing.T) {
	srv, store := newTestServer(t)
	store.ApplyBatch(&graph.MutationBatch{
		UpsertNodes: []*graph.Node{{ID: "child1", Kind: graph.KindFile, Name: "a.go"}},
		UpsertEdges: []*graph.Edge{{ID: "c1", Kind: graph.EdgeContains, SourceID: "root", TargetID: "child1"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/snapshot", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "a.go") {
		t.Fatalf("expected root's child in snapshot response, got %s", rec.Body.String())
	}
}

func TestHandlePending_ReportsQueuedReferences(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Indexer.Table.Enqueue(symtab.PendingReference{
		SourceNodeID: "n1",
		RefText:      "Helper",
		EdgeKind:     "Calls",
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/pending", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("expected count 1, got %+v", body)
	}
}

func TestHandleSearch_FindsByFuzzyName(t *testing.T) {
	srv, store := newTestServer(t)
	store.ApplyBatch(&graph.MutationBatch{
		UpsertNodes: []*graph.Node{{ID: "fn1", Kind: graph.KindFunction, Name: "HandleRequest"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=HndlReq", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "HandleRequest") {
		t.Fatalf("expected fuzzy match to find HandleRequest, got %s", rec.Body.String())
	}
}

func TestHandleLive_SendsFullGraphOnConnect(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/live"
	conn, _, err := gwebsocket.DefaultDialer.DialContext(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg["type"] != "full_graph" {
		t.Fatalf("expected first message to be full_graph, got %+v", msg)
	}
}

func TestHandlePaths_FindsDirectEdge(t *testing.T) {
	srv, store := newTestServer(t)
	store.ApplyBatch(&graph.MutationBatch{
		UpsertNodes: []*graph.Node{
			{ID: "a", Kind: graph.KindFunction, Name: "A"},
			{ID: "b", Kind: graph.KindFunction, Name: "B"},
		},
		UpsertEdges: []*graph.Edge{{ID: "e1", Kind: graph.EdgeCalls, SourceID: "a", TargetID: "b"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/paths?from=a&to=b&depth=3", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Paths [][]string `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Paths) != 1 || len(body.Paths[0]) != 2 {
		t.Fatalf("expected one direct path a->b, got %+v", body.Paths)
	}
}


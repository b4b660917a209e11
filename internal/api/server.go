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

// Package api serves the Control API over net/http (one handler method
// per endpoint on a server struct, mirroring the teacher's cmd/cie
// serve.go mux style) and the live-update channel over a websocket,
// framed as full_graph/graph_diff/error messages.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sahilm/fuzzy"

	"canopy/internal/aggregate"
	"canopy/internal/diffengine"
	"canopy/internal/graph"
	"canopy/internal/indexer"
	"canopy/internal/parsecache"
)

// maxPathResults caps the number of simple paths handlePaths returns, so
// a pathological from/to pair in a dense graph cannot return an
// unbounded response.
const maxPathResults = 200

// Server holds everything one HTTP process needs to answer Control API
// requests and serve the live-update channel. It never writes to Store
// itself; all mutation happens inside Indexer.
type Server struct {
	Store   *graph.Store
	Indexer *indexer.Indexer
	Cache   *parsecache.Cache
	Logger  *slog.Logger

	upgrader websocket.Upgrader
}

// New returns a Server ready to be handed to Run or Mux.
func New(store *graph.Store, idx *indexer.Indexer, cache *parsecache.Cache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Store:   store,
		Indexer: idx,
		Cache:   cache,
		Logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Mux builds the full endpoint set.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("/v1/nodes/", s.handleNodesPrefix) // dispatches /v1/nodes/{id}, /{id}/children, /{id}/content
	mux.HandleFunc("/v1/search", s.handleSearch)
	mux.HandleFunc("/v1/paths", s.handlePaths)
	mux.HandleFunc("/v1/export", s.handleExport)
	mux.HandleFunc("/v1/pending", s.handlePending)
	mux.HandleFunc("/v1/live", s.handleLive)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run starts an HTTP server on addr and blocks until it shuts down,
// either because ctx is canceled or SIGINT/SIGTERM is received —
// mirroring the teacher's runServe graceful-shutdown goroutine.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case <-sigCh:
		}
		s.Logger.Info("api.shutdown.begin")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.Logger.Info("api.listen", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sequence": s.Indexer.Diffs.CurrentSequence(),
	})
}

// handleSnapshot returns the current top-level collapsed view: the
// workspace root's direct children plus edges aggregated to that
// visibility set.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rootID := s.Indexer.RootNodeID
	children := s.Store.Children(rootID)
	visibleSet := make(map[string]bool, len(children)+1)
	for _, c := range children {
		visibleSet[c] = true
	}
	visibleSet[rootID] = true

	writeJSON(w, http.StatusOK, map[string]any{
		"sequence": s.Indexer.Diffs.CurrentSequence(),
		"nodes":    nodesByID(s.Store, children),
		"edges":    aggregate.Aggregate(s.Store, func(id string) bool { return visibleSet[id] }),
	})
}

// handleNodesPrefix dispatches the /v1/nodes/{id}[/children|/content]
// family from a single registration, since net/http's ServeMux can't
// express path parameters directly in this Go version.
func (s *Server) handleNodesPrefix(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/nodes/")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		http.Error(w, "missing node id", http.StatusBadRequest)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/children"); ok {
		s.handleNodeChildren(w, r, mustUnescape(id))
		return
	}
	if id, ok := strings.CutSuffix(rest, "/content"); ok {
		s.handleNodeContent(w, r, mustUnescape(id))
		return
	}
	s.handleNode(w, r, mustUnescape(rest))
}

func mustUnescape(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}

// handleNode returns one node's full record plus its incident edges.
func (s *Server) handleNode(w http.ResponseWriter, _ *http.Request, id string) {
	n := s.Store.Node(id)
	if n == nil {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node":  n,
		"edges": s.Store.IncidentEdges(id, ""),
	})
}

// handleNodeChildren returns id's direct children plus the edges
// aggregated between them. Only edges whose endpoints both lie inside
// id's subtree are included; an edge from a child to a node outside that
// subtree has no visible endpoint on the outside and is left out.
func (s *Server) handleNodeChildren(w http.ResponseWriter, _ *http.Request, id string) {
	if s.Store.Node(id) == nil {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	children := s.Store.Children(id)
	visibleSet := make(map[string]bool, len(children)+1)
	for _, c := range children {
		visibleSet[c] = true
	}
	visibleSet[id] = true

	writeJSON(w, http.StatusOK, map[string]any{
		"children": nodesByID(s.Store, children),
		"edges":    aggregate.Aggregate(s.Store, func(nodeID string) bool { return visibleSet[nodeID] }),
	})
}

// handleNodeContent returns the source bytes spanning a node, sliced out
// of the parse cache's retained source for its file.
func (s *Server) handleNodeContent(w http.ResponseWriter, _ *http.Request, id string) {
	n := s.Store.Node(id)
	if n == nil {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	entry, ok := s.Cache.Get(n.FilePath)
	if !ok || n.Span.EndByte > len(entry.Source) || n.Span.StartByte < 0 {
		http.Error(w, "content unavailable", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    n.FilePath,
		"span":    n.Span,
		"content": string(entry.Source[n.Span.StartByte:n.Span.EndByte]),
	})
}

// nameSource adapts a node slice to fuzzy.Source for sahilm/fuzzy.
type nameSource []*graph.Node

func (n nameSource) String(i int) string { return n[i].Name }
func (n nameSource) Len() int            { return len(n) }

// handleSearch runs a fuzzy match over every node's display name and
// returns each hit with its ancestor chain, nearest-first.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
		return
	}

	nodes := s.Store.AllNodes()
	matches := fuzzy.Find(q, nameSource(nodes))

	limit := 50
	if len(matches) < limit {
		limit = len(matches)
	}
	results := make([]map[string]any, 0, limit)
	for _, m := range matches[:limit] {
		n := nodes[m.Index]
		results = append(results, map[string]any{
			"node":      n,
			"ancestors": s.Store.Ancestors(n.ID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handlePaths enumerates simple paths between two nodes up to a depth
// bound via bounded DFS, stopping early once maxPathResults is reached.
func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		http.Error(w, "from and to are required", http.StatusBadRequest)
		return
	}
	depth := 6
	if d := r.URL.Query().Get("depth"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v > 0 {
			depth = v
		}
	}

	paths := findPaths(s.Store, from, to, depth)
	truncated := false
	if len(paths) >= maxPathResults {
		paths = paths[:maxPathResults]
		truncated = true
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"paths":     paths,
		"truncated": truncated,
	})
}

func findPaths(store *graph.Store, from, to string, maxDepth int) [][]string {
	var out [][]string
	visited := map[string]bool{from: true}
	var walk func(cur string, path []string)
	walk = func(cur string, path []string) {
		if len(out) >= maxPathResults {
			return
		}
		if cur == to {
			found := make([]string, len(path))
			copy(found, path)
			out = append(out, found)
			return
		}
		if len(path) >= maxDepth {
			return
		}
		for _, e := range store.IncidentEdges(cur, "out") {
			if visited[e.TargetID] {
				continue
			}
			visited[e.TargetID] = true
			walk(e.TargetID, append(path, e.TargetID))
			visited[e.TargetID] = false
		}
	}
	walk(from, []string{from})
	return out
}

// handleExport dumps the entire graph as structured data.
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sequence": s.Indexer.Diffs.CurrentSequence(),
		"nodes":    s.Store.AllNodes(),
		"edges":    s.Store.AllEdges(),
	})
}

// handlePending exposes the symbol table's unresolved-reference queue for
// debugging a stalled or surprising resolution outcome: what the indexer
// is still carrying forward into the next batch's resolve pass, and how
// many entries that is.
func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request) {
	pending := s.Indexer.Table.Pending()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(pending),
		"pending": pending,
	})
}

// fullGraphMessage, graphDiffMessage, and errorMessage are the three
// shapes the live-update channel ever sends.
type fullGraphMessage struct {
	Type     string        `json:"type"`
	Sequence uint64        `json:"sequence"`
	Nodes    []*graph.Node `json:"nodes"`
	Edges    []*graph.Edge `json:"edges"`
}

type graphDiffMessage struct {
	Type string           `json:"type"`
	Diff *diffengine.Diff `json:"diff"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// clientMessage is everything a client may send: a resync request or an
// advisory ack of the highest sequence it has applied.
type clientMessage struct {
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence,omitempty"`
}

// handleLive upgrades to a websocket and runs the live-update channel: a
// full_graph on connect, then one graph_diff per committed batch until
// the client disconnects or falls behind and is closed out to resync.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("api.live.upgrade_failed", "err", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	sendFullGraph := func() error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(fullGraphMessage{
			Type:     "full_graph",
			Sequence: s.Indexer.Diffs.CurrentSequence(),
			Nodes:    s.Store.AllNodes(),
			Edges:    s.Store.AllEdges(),
		})
	}
	if err := sendFullGraph(); err != nil {
		return
	}

	subID, diffs := s.Indexer.Subscribe()
	defer s.Indexer.Unsubscribe(subID)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var cm clientMessage
			if err := conn.ReadJSON(&cm); err != nil {
				return
			}
			switch cm.Type {
			case "request_full_graph":
				if err := sendFullGraph(); err != nil {
					return
				}
			case "diff_ack":
				// Advisory only; the server does not currently act on it.
			}
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case d, ok := <-diffs:
			if !ok {
				writeMu.Lock()
				_ = conn.WriteJSON(errorMessage{Type: "error", Error: "subscriber fell behind, resubscribe with a fresh snapshot"})
				writeMu.Unlock()
				return
			}
			writeMu.Lock()
			err := conn.WriteJSON(graphDiffMessage{Type: "graph_diff", Diff: d})
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func nodesByID(store *graph.Store, ids []string) []*graph.Node {
	out := make([]*graph.Node, 0, len(ids))
	for _, id := range ids {
		if n := store.Node(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

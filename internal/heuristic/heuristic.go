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

// Package heuristic matches patterns the Resolver cannot settle by exact
// symbol lookup alone: environment-variable reads, config-key accesses,
// route-to-handler bindings, container-volume mounts of source paths, and
// interface-dispatch call targets. Every edge it produces carries
// Provenance Heuristic and a confidence between MinConfidence and 1.0.
package heuristic

import (
	"path/filepath"
	"regexp"
	"strings"

	"canopy/internal/graph"
)

// MinConfidence is the floor every heuristic edge in this package must
// clear; individual patterns may score higher when the match is more
// specific.
const MinConfidence = 0.8

// FunctionSource is a function/method node together with its body text,
// as needed by the text-scanning patterns below.
type FunctionSource struct {
	NodeID string
	Body   []byte
}

var (
	goEnvPattern     = regexp.MustCompile(`os\.Getenv\(\s*"([A-Za-z_][A-Za-z0-9_]*)"\s*\)`)
	pyEnvPattern     = regexp.MustCompile(`os\.environ(?:\.get)?\[\s*['"]([A-Za-z_][A-Za-z0-9_]*)['"]\s*\]|os\.environ\.get\(\s*['"]([A-Za-z_][A-Za-z0-9_]*)['"]`)
	nodeEnvPattern   = regexp.MustCompile(`process\.env\.([A-Za-z_][A-Za-z0-9_]*)|process\.env\[['"]([A-Za-z_][A-Za-z0-9_]*)['"]\]`)
)

// EnvironmentBindings scans each function's body for a read of one of
// envVars (keyed by variable name to its EnvVariable node ID) and emits
// one EnvironmentBinding edge per match found. An exact name match inside
// a recognized env-read call is unambiguous, so these score 1.0.
func EnvironmentBindings(functions []FunctionSource, envVars map[string]string) []*graph.Edge {
	var out []*graph.Edge
	seen := map[string]bool{}

	for _, fn := range functions {
		names := map[string]bool{}
		for _, m := range goEnvPattern.FindAllSubmatch(fn.Body, -1) {
			names[string(m[1])] = true
		}
		for _, m := range pyEnvPattern.FindAllSubmatch(fn.Body, -1) {
			if len(m[1]) > 0 {
				names[string(m[1])] = true
			}
			if len(m[2]) > 0 {
				names[string(m[2])] = true
			}
		}
		for _, m := range nodeEnvPattern.FindAllSubmatch(fn.Body, -1) {
			if len(m[1]) > 0 {
				names[string(m[1])] = true
			}
			if len(m[2]) > 0 {
				names[string(m[2])] = true
			}
		}

		for name := range names {
			envNodeID, ok := envVars[name]
			if !ok {
				continue
			}
			key := envNodeID + "->" + fn.NodeID
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, &graph.Edge{
				Kind:       graph.EdgeEnvironmentBinding,
				SourceID:   envNodeID,
				TargetID:   fn.NodeID,
				Provenance: graph.ProvenanceHeuristic,
				Confidence: 1.0,
				Label:      name,
			})
		}
	}
	return out
}

// configAccessPattern matches a textual config-key lookup in a function
// body whose key is one quoted dotted or slash-separated path literal,
// e.g. `cfg.Get("server.port")` or `config("server/port")`. Bracket-indexed
// lookups such as `config["server"]["port"]` are not matched.
var configAccessPattern = regexp.MustCompile(`(?:cfg|config|settings)(?:\.Get|\.get)?\(?\s*["']([A-Za-z0-9_]+(?:[./][A-Za-z0-9_]+)+)["']`)

// ConfigKeyBindings scans function bodies for dotted-path config-key
// accesses and links them to the ConfigKey node whose qualified name ends
// in that dotted path, when exactly one such node exists.
func ConfigKeyBindings(functions []FunctionSource, configKeysBySuffix map[string][]string) []*graph.Edge {
	var out []*graph.Edge
	seen := map[string]bool{}

	for _, fn := range functions {
		for _, m := range configAccessPattern.FindAllSubmatch(fn.Body, -1) {
			dotted := strings.ReplaceAll(string(m[1]), "/", ".")
			candidates, ok := configKeysBySuffix[dotted]
			if !ok || len(candidates) != 1 {
				continue
			}
			key := candidates[0] + "->" + fn.NodeID
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, &graph.Edge{
				Kind:       graph.EdgeConfiguresArgument,
				SourceID:   candidates[0],
				TargetID:   fn.NodeID,
				Provenance: graph.ProvenanceHeuristic,
				Confidence: MinConfidence,
				Label:      dotted,
			})
		}
	}
	return out
}

// routePattern matches `.method("path", handler)` route-registration
// calls as written with Go (net/http, gorilla/mux, gin, echo) and
// JavaScript/TypeScript (Express-style) frameworks. It captures the
// HTTP method (when present), the path literal, and the handler
// reference. Python Flask/FastAPI decorators such as `@app.get("/x")`
// are not matched, since no handler argument follows the path.
var routePattern = regexp.MustCompile(
	`(?i)\.(get|post|put|patch|delete|head|handlefunc|handle)\(\s*["']([^"']+)["']\s*,\s*([A-Za-z0-9_.]+)`)

// RouteBinding is one discovered route registration, before a Route node
// has been allocated for it.
type RouteBinding struct {
	Method     string
	Path       string
	HandlerRef string
	FilePath   string
	Line       int
}

// FindRoutes scans source text for route-registration call sites.
func FindRoutes(path string, src []byte) []RouteBinding {
	var out []RouteBinding
	lines := strings.Split(string(src), "\n")
	for i, line := range lines {
		for _, m := range routePattern.FindAllStringSubmatch(line, -1) {
			out = append(out, RouteBinding{
				Method:     strings.ToUpper(m[1]),
				Path:       m[2],
				HandlerRef: m[3],
				FilePath:   path,
				Line:       i + 1,
			})
		}
	}
	return out
}

// RouteHandlerBindings turns discovered route bindings into a Route node
// plus a RouteHandler edge to the resolved handler function, for bindings
// whose handler reference resolves to exactly one function by simple
// name. fingerprintRoute produces the Route node's stable ID.
func RouteHandlerBindings(bindings []RouteBinding, handlersByName map[string]string, fingerprintRoute func(path, method, route string) string) ([]*graph.Node, []*graph.Edge) {
	var nodes []*graph.Node
	var edges []*graph.Edge

	for _, b := range bindings {
		simple := b.HandlerRef
		if idx := strings.LastIndex(simple, "."); idx >= 0 {
			simple = simple[idx+1:]
		}
		handlerID, ok := handlersByName[simple]
		if !ok {
			continue
		}

		id := fingerprintRoute(b.FilePath, b.Method, b.Path)
		nodes = append(nodes, &graph.Node{
			ID:            id,
			Kind:          graph.KindRoute,
			Name:          b.Method + " " + b.Path,
			QualifiedName: b.FilePath + "::route::" + b.Method + ":" + b.Path,
			FilePath:      b.FilePath,
			Span:          graph.Span{StartLine: b.Line, EndLine: b.Line},
			Metadata:      map[string]string{"method": b.Method, "path": b.Path},
		})
		edges = append(edges, &graph.Edge{
			Kind:       graph.EdgeRouteHandler,
			SourceID:   id,
			TargetID:   handlerID,
			Provenance: graph.ProvenanceHeuristic,
			Confidence: 0.9,
			Label:      b.HandlerRef,
			FilePath:   b.FilePath,
			Line:       b.Line,
		})
	}
	return nodes, edges
}

// DockerMountBindings links a DockerService node's declared volume host
// paths to File or Directory nodes in the repository whose relative path
// matches, when the host side of the `host:container` mapping resolves
// under the repository root.
func DockerMountBindings(services []*graph.Node, pathToNodeID map[string]string) []*graph.Edge {
	var out []*graph.Edge
	for _, svc := range services {
		volumes := svc.Metadata["volumes"]
		if volumes == "" {
			continue
		}
		for _, v := range strings.Split(volumes, ",") {
			parts := strings.SplitN(v, ":", 2)
			if len(parts) < 1 {
				continue
			}
			host := filepath.Clean(strings.TrimPrefix(parts[0], "./"))
			nodeID, ok := pathToNodeID[host]
			if !ok {
				continue
			}
			out = append(out, &graph.Edge{
				Kind:       graph.EdgeDockerMount,
				SourceID:   svc.ID,
				TargetID:   nodeID,
				Provenance: graph.ProvenanceHeuristic,
				Confidence: 0.85,
				Label:      host,
				FilePath:   svc.FilePath,
			})
		}
	}
	return out
}

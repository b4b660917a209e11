// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package heuristic

import (
	"testing"

	"canopy/internal/graph"
)

func TestEnvironmentBindings_MatchesGoGetenv(t *testing.T) {
	fns := []FunctionSource{{NodeID: "n-fn", Body: []byte(`func f() { v := os.Getenv("DATABASE_URL") }`)}}
	edges := EnvironmentBindings(fns, map[string]string{"DATABASE_URL": "n-env"})

	if len(edges) != 1 {
		t.Fatalf("expected one binding, got %+v", edges)
	}
	if edges[0].SourceID != "n-env" || edges[0].TargetID != "n-fn" || edges[0].Confidence != 1.0 {
		t.Fatalf("unexpected edge: %+v", edges[0])
	}
	if edges[0].Kind != graph.EdgeEnvironmentBinding || edges[0].Provenance != graph.ProvenanceHeuristic {
		t.Fatalf("unexpected kind/provenance: %+v", edges[0])
	}
}

func TestEnvironmentBindings_IgnoresUnknownVariable(t *testing.T) {
	fns := []FunctionSource{{NodeID: "n-fn", Body: []byte(`os.Getenv("UNRELATED")`)}}
	edges := EnvironmentBindings(fns, map[string]string{"DATABASE_URL": "n-env"})
	if len(edges) != 0 {
		t.Fatalf("expected no bindings, got %+v", edges)
	}
}

func TestFindRoutes_MatchesExpressStyleRegistration(t *testing.T) {
	src := []byte(`app.get("/widgets", widgetHandler);`)
	routes := FindRoutes("server.js", src)
	if len(routes) != 1 {
		t.Fatalf("expected one route, got %+v", routes)
	}
	if routes[0].Method != "GET" || routes[0].Path != "/widgets" || routes[0].HandlerRef != "widgetHandler" {
		t.Fatalf("unexpected route: %+v", routes[0])
	}
}

func TestRouteHandlerBindings_ResolvesHandlerByName(t *testing.T) {
	bindings := []RouteBinding{{Method: "GET", Path: "/widgets", HandlerRef: "widgetHandler", FilePath: "server.js", Line: 1}}
	handlers := map[string]string{"widgetHandler": "n-handler"}

	nodes, edges := RouteHandlerBindings(bindings, handlers, func(path, method, route string) string {
		return "route:" + path + method + route
	})

	if len(nodes) != 1 || nodes[0].Kind != graph.KindRoute {
		t.Fatalf("expected one Route node, got %+v", nodes)
	}
	if len(edges) != 1 || edges[0].TargetID != "n-handler" || edges[0].Kind != graph.EdgeRouteHandler {
		t.Fatalf("expected one RouteHandler edge to n-handler, got %+v", edges)
	}
}

func TestDockerMountBindings_MatchesHostPath(t *testing.T) {
	svc := &graph.Node{ID: "n-svc", Metadata: map[string]string{"volumes": "./src:/app/src"}}
	edges := DockerMountBindings([]*graph.Node{svc}, map[string]string{"src": "n-src-dir"})

	if len(edges) != 1 || edges[0].TargetID != "n-src-dir" || edges[0].Kind != graph.EdgeDockerMount {
		t.Fatalf("expected one DockerMount edge to n-src-dir, got %+v", edges)
	}
}

func TestInterfaceDispatcher_ViaFields_SingleImplementationIsConfident(t *testing.T) {
	d := &InterfaceDispatcher{
		FieldTypes:   map[string]map[string]string{"Builder": {"writer": "Writer"}},
		Implementers: map[string][]string{"Writer": {"FileWriter"}},
		MethodNodeID: map[string]string{"FileWriter.Write": "n-write"},
	}
	edges := d.Resolve(UnresolvedCall{
		CallerNodeID: "n-build",
		CallerName:   "Builder.Build",
		CalleeRef:    "b.writer.Write",
	})
	if len(edges) != 1 || edges[0].TargetID != "n-write" || edges[0].Confidence != 1.0 {
		t.Fatalf("expected one confident edge to n-write, got %+v", edges)
	}
}

func TestInterfaceDispatcher_ViaFields_MultipleImplementationsFanOutWithLowerConfidence(t *testing.T) {
	d := &InterfaceDispatcher{
		FieldTypes:   map[string]map[string]string{"Builder": {"writer": "Writer"}},
		Implementers: map[string][]string{"Writer": {"FileWriter", "NetWriter"}},
		MethodNodeID: map[string]string{"FileWriter.Write": "n-file", "NetWriter.Write": "n-net"},
	}
	edges := d.Resolve(UnresolvedCall{
		CallerNodeID: "n-build",
		CallerName:   "Builder.Build",
		CalleeRef:    "b.writer.Write",
	})
	if len(edges) != 2 {
		t.Fatalf("expected two fanned-out edges, got %+v", edges)
	}
	for _, e := range edges {
		if e.Confidence != MinConfidence {
			t.Fatalf("expected MinConfidence on ambiguous dispatch, got %v", e.Confidence)
		}
	}
}

func TestInterfaceDispatcher_ViaParams_MatchesParameterName(t *testing.T) {
	d := &InterfaceDispatcher{
		Implementers: map[string][]string{"Querier": {"SQLClient"}},
		MethodNodeID: map[string]string{"SQLClient.Query": "n-query"},
	}
	edges := d.Resolve(UnresolvedCall{
		CallerNodeID:    "n-fetch",
		CallerName:      "fetch",
		CallerSignature: "func fetch(client Querier, id string) error",
		CalleeRef:       "client.Query",
	})
	if len(edges) != 1 || edges[0].TargetID != "n-query" {
		t.Fatalf("expected one edge to n-query via parameter match, got %+v", edges)
	}
}

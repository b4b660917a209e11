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

package heuristic

import (
	"strings"

	"canopy/internal/graph"
	"canopy/pkg/gosig"
)

// UnresolvedCall is a call the Resolver gave up on because its callee
// reference names a chained field or parameter access (e.g. "s.store.Save")
// rather than a symbol with an exact or suffix match.
type UnresolvedCall struct {
	CallerNodeID   string
	CallerName     string // "TypeName.Method" for methods, bare name for functions
	CallerSignature string // full "func ..." signature text, for parameter matching
	CalleeRef      string
	FilePath       string
	Line           int
}

// InterfaceDispatcher resolves calls through a struct field's or a
// parameter's static interface (or concrete) type, adapted from the
// teacher's field/parameter call-dispatch matcher. Every edge it produces
// has kind Calls, whatever edge kind the unresolved reference carried.
type InterfaceDispatcher struct {
	// FieldTypes: "StructName" -> "fieldName" -> "declared field type"
	FieldTypes map[string]map[string]string
	// Implementers: "InterfaceName" -> concrete type names implementing it
	Implementers map[string][]string
	// MethodNodeID: "TypeName.MethodName" -> node ID
	MethodNodeID map[string]string
}

// Resolve dispatches call through field types first (struct methods),
// then through the caller's parameter types (standalone functions, or as
// a method fallback). Every produced edge carries Provenance Heuristic;
// confidence is 1.0 when the field/parameter type resolves to a single
// concrete implementation, MinConfidence when it fans out across
// multiple interface implementers (the true target is runtime-dependent).
func (d *InterfaceDispatcher) Resolve(call UnresolvedCall) []*graph.Edge {
	if !strings.Contains(call.CalleeRef, ".") {
		return nil
	}

	if strings.Contains(call.CallerName, ".") {
		if edges := d.viaFields(call); len(edges) > 0 {
			return edges
		}
	}
	return d.viaParams(call)
}

func (d *InterfaceDispatcher) viaFields(call UnresolvedCall) []*graph.Edge {
	structName := strings.SplitN(call.CallerName, ".", 2)[0]
	fieldTypes, ok := d.FieldTypes[structName]
	if !ok {
		return nil
	}

	parts := strings.Split(call.CalleeRef, ".")
	methodName := parts[len(parts)-1]

	var fieldType string
	for i := len(parts) - 2; i >= 0; i-- {
		if ft, ok := fieldTypes[parts[i]]; ok {
			fieldType = ft
			break
		}
	}
	if fieldType == "" {
		return nil
	}
	return d.toImplementations(call, methodName, fieldType)
}

func (d *InterfaceDispatcher) viaParams(call UnresolvedCall) []*graph.Edge {
	if call.CallerSignature == "" {
		return nil
	}
	params := gosig.ParseParams(call.CallerSignature)
	if len(params) == 0 {
		return nil
	}

	parts := strings.Split(call.CalleeRef, ".")
	methodName := parts[len(parts)-1]

	for i := len(parts) - 2; i >= 0; i-- {
		candidate := parts[i]
		for _, p := range params {
			if p.Name != candidate {
				continue
			}
			if edges := d.toImplementations(call, methodName, gosig.NormalizeType(p.Type)); len(edges) > 0 {
				return edges
			}
		}
	}
	return nil
}

func (d *InterfaceDispatcher) toImplementations(call UnresolvedCall, methodName, typeName string) []*graph.Edge {
	if implTypes, ok := d.Implementers[typeName]; ok && len(implTypes) > 0 {
		var edges []*graph.Edge
		confidence := 1.0
		if len(implTypes) > 1 {
			confidence = MinConfidence
		}
		for _, implType := range implTypes {
			if nodeID, ok := d.MethodNodeID[implType+"."+methodName]; ok {
				edges = append(edges, &graph.Edge{
					Kind:       graph.EdgeCalls,
					SourceID:   call.CallerNodeID,
					TargetID:   nodeID,
					Provenance: graph.ProvenanceHeuristic,
					Confidence: confidence,
					Label:      call.CalleeRef,
					FilePath:   call.FilePath,
					Line:       call.Line,
				})
			}
		}
		if len(edges) > 0 {
			return edges
		}
	}

	if nodeID, ok := d.MethodNodeID[typeName+"."+methodName]; ok {
		return []*graph.Edge{{
			Kind:       graph.EdgeCalls,
			SourceID:   call.CallerNodeID,
			TargetID:   nodeID,
			Provenance: graph.ProvenanceHeuristic,
			Confidence: 1.0,
			Label:      call.CalleeRef,
			FilePath:   call.FilePath,
			Line:       call.Line,
		}}
	}
	return nil
}

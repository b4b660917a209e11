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

package javascript

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"canopy/internal/extract"
)

type walkCtx struct {
	src             []byte
	path            string
	symbols         []extract.Symbol
	edges           []extract.IntraEdge
	funcNodes       []funcNode
	nameToQualified map[string]string
	aliasToModule   map[string]string // bound name -> module specifier, accumulated from import statements
}

type funcNode struct {
	qualified string
	node      *sitter.Node
}

// WalkProgram extracts symbols, intra-file edges and unresolved call
// references from a parsed JavaScript or TypeScript program. Both
// grammars share these node type names for the constructs this function
// inspects.
func WalkProgram(root *sitter.Node, src []byte, path string) extract.Result {
	ctx := &walkCtx{src: src, path: path, nameToQualified: make(map[string]string), aliasToModule: make(map[string]string)}
	walk(root, ctx, "")

	res := extract.Result{Symbols: ctx.symbols, IntraEdges: ctx.edges}
	for _, fn := range ctx.funcNodes {
		edges, refs := calls(fn.node, src, fn.qualified, ctx.nameToQualified, ctx.aliasToModule)
		res.IntraEdges = append(res.IntraEdges, edges...)
		res.UnresolvedRefs = append(res.UnresolvedRefs, refs...)
	}
	return res
}

func walk(n *sitter.Node, ctx *walkCtx, scope string) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "class_declaration":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			break
		}
		name := string(ctx.src[nameNode.StartByte():nameNode.EndByte()])
		qualified := ctx.path + "::" + name
		ctx.symbols = append(ctx.symbols, simpleSymbol(n, name, qualified, "Class"))
		if body := n.ChildByFieldName("body"); body != nil {
			walkClassBody(body, ctx, qualified)
		}
		return
	case "function_declaration", "generator_function_declaration":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			break
		}
		name := string(ctx.src[nameNode.StartByte():nameNode.EndByte()])
		qualified := ctx.path + "::" + name
		ctx.symbols = append(ctx.symbols, simpleSymbol(n, name, qualified, "Function"))
		ctx.nameToQualified[name] = qualified
		ctx.funcNodes = append(ctx.funcNodes, funcNode{qualified: qualified, node: n})
	case "import_statement":
		sym := importSymbol(n, ctx.src, ctx.path)
		ctx.symbols = append(ctx.symbols, sym)
		for alias, module := range jsImportAliases(sym.Metadata["statement"], sym.Metadata["source"]) {
			ctx.aliasToModule[alias] = module
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), ctx, scope)
	}
}

func walkClassBody(body *sitter.Node, ctx *walkCtx, ownerQualified string) {
	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		switch member.Type() {
		case "method_definition":
			nameNode := member.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := string(ctx.src[nameNode.StartByte():nameNode.EndByte()])
			qualified := ownerQualified + "." + name
			ctx.symbols = append(ctx.symbols, simpleSymbol(member, name, qualified, "Method"))
			ctx.nameToQualified[name] = qualified
			ctx.funcNodes = append(ctx.funcNodes, funcNode{qualified: qualified, node: member})
			ctx.edges = append(ctx.edges, extract.IntraEdge{
				Kind:          "Contains",
				FromQualified: ownerQualified,
				ToQualified:   qualified,
				Line:          int(member.StartPoint().Row) + 1,
			})
		case "field_definition":
			nameNode := member.ChildByFieldName("property")
			if nameNode == nil {
				continue
			}
			name := string(ctx.src[nameNode.StartByte():nameNode.EndByte()])
			ctx.symbols = append(ctx.symbols, extract.Symbol{
				Kind:          "Field",
				Name:          name,
				QualifiedName: ownerQualified + "." + name,
				StartByte:     int(member.StartByte()),
				EndByte:       int(member.EndByte()),
				StartLine:     int(member.StartPoint().Row) + 1,
				EndLine:       int(member.EndPoint().Row) + 1,
				Exported:      !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "#"),
				Metadata:      map[string]string{"owner": ownerQualified},
			})
		}
	}
}

func simpleSymbol(n *sitter.Node, name, qualified, kind string) extract.Symbol {
	return extract.Symbol{
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		StartByte:     int(n.StartByte()),
		EndByte:       int(n.EndByte()),
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Exported:      !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "#"),
	}
}

func importSymbol(n *sitter.Node, src []byte, path string) extract.Symbol {
	text := strings.TrimSpace(string(src[n.StartByte():n.EndByte()]))
	source := ""
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "string" {
			source = strings.Trim(string(src[c.StartByte():c.EndByte()]), `"'`)
		}
	}
	return extract.Symbol{
		Kind:          "Import",
		Name:          source,
		QualifiedName: path + "::import::" + source,
		StartByte:     int(n.StartByte()),
		EndByte:       int(n.EndByte()),
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Metadata:      map[string]string{"statement": text, "source": source},
	}
}

var (
	reDefaultImport   = regexp.MustCompile(`^import\s+(\w+)\s*(?:,|from)`)
	reNamespaceImport = regexp.MustCompile(`\*\s+as\s+(\w+)`)
	reNamedImports    = regexp.MustCompile(`\{([^}]*)\}`)
)

// jsImportAliases parses one normalized import statement's bound local
// names against its module specifier, covering default ("import X from
// 'mod'"), namespace ("import * as X from 'mod'"), and named ("import {
// a, b as c } from 'mod'") bindings, any of which may appear combined in
// a single statement.
func jsImportAliases(statement, source string) map[string]string {
	out := map[string]string{}
	if source == "" {
		return out
	}
	if m := reDefaultImport.FindStringSubmatch(statement); m != nil {
		out[m[1]] = source
	}
	if m := reNamespaceImport.FindStringSubmatch(statement); m != nil {
		out[m[1]] = source
	}
	if m := reNamedImports.FindStringSubmatch(statement); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name := part
			if fields := strings.Fields(part); len(fields) == 3 && fields[1] == "as" {
				name = fields[2]
			} else if len(fields) == 1 {
				name = fields[0]
			}
			out[name] = source
		}
	}
	return out
}

func calls(fnNode *sitter.Node, src []byte, callerQualified string, nameToQualified, aliasToModule map[string]string) ([]extract.IntraEdge, []extract.UnresolvedRef) {
	var edges []extract.IntraEdge
	var refs []extract.UnresolvedRef
	seen := map[string]bool{}

	body := fnNode.ChildByFieldName("body")
	if body == nil {
		return edges, refs
	}

	var w func(n *sitter.Node)
	w = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				name := string(src[fn.StartByte():fn.EndByte()])
				simple := name
				if idx := strings.LastIndex(name, "."); idx >= 0 {
					simple = name[idx+1:]
				}
				key := callerQualified + "->" + name
				if !seen[key] {
					seen[key] = true
					if calleeQualified, ok := nameToQualified[simple]; ok && calleeQualified != callerQualified {
						edges = append(edges, extract.IntraEdge{
							Kind:          "Calls",
							FromQualified: callerQualified,
							ToQualified:   calleeQualified,
							Line:          int(n.StartPoint().Row) + 1,
						})
					} else {
						var scopeHints []string
						scopePrefix := simple
						if idx := strings.Index(name, "."); idx > 0 {
							scopePrefix = name[:idx]
						}
						if module, ok := aliasToModule[scopePrefix]; ok {
							scopeHints = []string{module}
						}
						refs = append(refs, extract.UnresolvedRef{
							FromQualified: callerQualified,
							RefText:       name,
							EdgeKind:      "Calls",
							Line:          int(n.StartPoint().Row) + 1,
							ScopeHints:    scopeHints,
							ExpectedKinds: []string{"Function", "Method", "Class"},
						})
					}
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			w(n.Child(i))
		}
	}
	w(body)
	return edges, refs
}

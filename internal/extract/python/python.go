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

// Package python is the Python language extractor: functions, classes,
// methods, imports, and same-module call references.
package python

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"canopy/internal/extract"
)

type Extractor struct {
	Borrow func(language string) (*sitter.Parser, func(), error)
}

func (e *Extractor) Language() string { return "python" }

func (e *Extractor) Extract(path string, src []byte, prior *sitter.Tree) (*sitter.Tree, extract.Result, error) {
	parser, release, err := e.borrowParser()
	if err != nil {
		return nil, extract.Result{}, err
	}
	defer release()

	tree, err := parser.ParseCtx(context.Background(), prior, src)
	if err != nil {
		return nil, extract.Result{}, fmt.Errorf("python: tree-sitter parse: %w", err)
	}

	res := extract.Result{}
	ctx := &walkCtx{src: src, path: path, nameToQualified: make(map[string]string), aliasToModule: make(map[string]string)}
	walk(tree.RootNode(), ctx, "")
	res.Symbols = ctx.symbols
	res.IntraEdges = ctx.edges

	for _, fn := range ctx.funcNodes {
		edges, unresolved := calls(fn.node, src, fn.qualified, ctx.nameToQualified, ctx.aliasToModule)
		res.IntraEdges = append(res.IntraEdges, edges...)
		res.UnresolvedRefs = append(res.UnresolvedRefs, unresolved...)
	}

	return tree, res, nil
}

func (e *Extractor) borrowParser() (*sitter.Parser, func(), error) {
	if e.Borrow != nil {
		return e.Borrow("python")
	}
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return p, func() {}, nil
}

type funcNode struct {
	qualified string
	node      *sitter.Node
}

type walkCtx struct {
	src             []byte
	path            string
	symbols         []extract.Symbol
	edges           []extract.IntraEdge
	funcNodes       []funcNode
	nameToQualified map[string]string
	aliasToModule   map[string]string // bound name -> module path, accumulated from import statements
}

func walk(n *sitter.Node, ctx *walkCtx, scope string) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "class_definition":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			break
		}
		name := string(ctx.src[nameNode.StartByte():nameNode.EndByte()])
		qualified := qualify(ctx.path, scope, name)
		ctx.symbols = append(ctx.symbols, typeSymbol(n, name, qualified, "Class"))
		body := n.ChildByFieldName("body")
		for i := 0; i < int(body.ChildCount()); i++ {
			walk(body.Child(i), ctx, qualified)
		}
		return
	case "function_definition":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			break
		}
		name := string(ctx.src[nameNode.StartByte():nameNode.EndByte()])
		qualified := qualify(ctx.path, scope, name)
		kind := "Function"
		if scope != "" {
			kind = "Method"
		}
		ctx.symbols = append(ctx.symbols, funcSymbol(n, ctx.src, name, qualified, kind))
		ctx.nameToQualified[name] = qualified
		ctx.funcNodes = append(ctx.funcNodes, funcNode{qualified: qualified, node: n})
		if scope != "" {
			ctx.edges = append(ctx.edges, extract.IntraEdge{
				Kind:          "Contains",
				FromQualified: scope,
				ToQualified:   qualified,
				Line:          int(n.StartPoint().Row) + 1,
			})
		}
		body := n.ChildByFieldName("body")
		for i := 0; i < int(body.ChildCount()); i++ {
			walk(body.Child(i), ctx, qualified)
		}
		return
	case "import_statement", "import_from_statement":
		sym := importSymbol(n, ctx.src, ctx.path)
		ctx.symbols = append(ctx.symbols, sym)
		for alias, module := range pythonImportAliases(sym.Metadata["statement"]) {
			ctx.aliasToModule[alias] = module
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), ctx, scope)
	}
}

func qualify(path, scope, name string) string {
	if scope == "" {
		return path + "::" + name
	}
	return scope + "." + name
}

func typeSymbol(n *sitter.Node, name, qualified, kind string) extract.Symbol {
	return extract.Symbol{
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		StartByte:     int(n.StartByte()),
		EndByte:       int(n.EndByte()),
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Exported:      !strings.HasPrefix(name, "_"),
	}
}

func funcSymbol(n *sitter.Node, src []byte, name, qualified, kind string) extract.Symbol {
	params := ""
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = string(src[p.StartByte():p.EndByte()])
	}
	return extract.Symbol{
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		StartByte:     int(n.StartByte()),
		EndByte:       int(n.EndByte()),
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Exported:      !strings.HasPrefix(name, "_"),
		Metadata:      map[string]string{"signature": "def " + name + params},
	}
}

func importSymbol(n *sitter.Node, src []byte, path string) extract.Symbol {
	text := strings.TrimSpace(string(src[n.StartByte():n.EndByte()]))
	return extract.Symbol{
		Kind:          "Import",
		Name:          text,
		QualifiedName: path + "::import::" + text,
		StartByte:     int(n.StartByte()),
		EndByte:       int(n.EndByte()),
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Metadata:      map[string]string{"statement": text},
	}
}

var (
	reImportAs     = regexp.MustCompile(`^import\s+([\w.]+)\s+as\s+(\w+)$`)
	reImportPlain  = regexp.MustCompile(`^import\s+([\w.]+)$`)
	reFromImportAs = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+(\w+)\s+as\s+(\w+)$`)
	reFromImport   = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+(\w+)$`)
)

// pythonImportAliases parses one normalized import statement's bound
// names to the module they came from, covering the four shapes the
// grammar allows: "import X", "import X as Y", "from X import Y", and
// "from X import Y as Z". Multi-name "import a, b" and wildcard "import
// *" forms bind no single traceable alias and are left unparsed.
func pythonImportAliases(statement string) map[string]string {
	out := map[string]string{}
	switch {
	case reImportAs.MatchString(statement):
		m := reImportAs.FindStringSubmatch(statement)
		out[m[2]] = m[1]
	case reFromImportAs.MatchString(statement):
		m := reFromImportAs.FindStringSubmatch(statement)
		out[m[3]] = m[1] + "." + m[2]
	case reFromImport.MatchString(statement):
		m := reFromImport.FindStringSubmatch(statement)
		out[m[2]] = m[1] + "." + m[2]
	case reImportPlain.MatchString(statement):
		m := reImportPlain.FindStringSubmatch(statement)
		module := m[1]
		name := module
		if idx := strings.LastIndex(module, "."); idx >= 0 {
			name = module[idx+1:]
		}
		out[name] = module
	}
	return out
}

func calls(fnNode *sitter.Node, src []byte, callerQualified string, nameToQualified, aliasToModule map[string]string) ([]extract.IntraEdge, []extract.UnresolvedRef) {
	var edges []extract.IntraEdge
	var refs []extract.UnresolvedRef
	seen := map[string]bool{}

	var w func(n *sitter.Node)
	w = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call" {
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
	body := fnNode.ChildByFieldName("body")
	if body != nil {
		w(body)
	}
	return edges, refs
}

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

// Package golang is the Go language extractor: functions, methods,
// structs, interfaces, type aliases, constants, imports, same-file calls,
// and cross-file unresolved call references.
package golang

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"canopy/internal/extract"
)

// Extractor implements extract.Extractor for Go source, using a
// sync.Pool-backed parser supplied by the caller's parser pools (see
// internal/parsecache.ParserPools) so parser objects, which are not
// thread-safe, are never shared across concurrent extractions.
type Extractor struct {
	Borrow func(language string) (*sitter.Parser, func(), error)
}

func (e *Extractor) Language() string { return "go" }

func (e *Extractor) Extract(path string, src []byte, prior *sitter.Tree) (*sitter.Tree, extract.Result, error) {
	parser, release, err := e.borrowParser()
	if err != nil {
		return nil, extract.Result{}, err
	}
	defer release()

	tree, err := parser.ParseCtx(context.Background(), prior, src)
	if err != nil {
		return nil, extract.Result{}, fmt.Errorf("golang: tree-sitter parse: %w", err)
	}

	root := tree.RootNode()
	res := extract.Result{}

	res.PackageName = packageName(root, src)
	importSymbols := imports(root, src, path)
	res.Symbols = append(res.Symbols, importSymbols...)
	aliasToImport := aliasImportMap(importSymbols)

	ctx := &walkCtx{src: src, path: path, nameToQualified: make(map[string]string)}
	walkDecls(root, ctx)
	res.Symbols = append(res.Symbols, ctx.symbols...)
	res.IntraEdges = append(res.IntraEdges, ctx.containsEdges...)

	for _, fn := range ctx.funcNodes {
		localCalls, unresolved := extractCalls(fn.node, src, fn.qualified, ctx.nameToQualified, aliasToImport)
		res.IntraEdges = append(res.IntraEdges, localCalls...)
		res.UnresolvedRefs = append(res.UnresolvedRefs, unresolved...)
	}

	types, fields := walkTypes(root, src, path)
	res.Symbols = append(res.Symbols, types...)
	res.Symbols = append(res.Symbols, fields...)

	return tree, res, nil
}

func (e *Extractor) borrowParser() (*sitter.Parser, func(), error) {
	if e.Borrow != nil {
		return e.Borrow("go")
	}
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return p, func() {}, nil
}

func packageName(root *sitter.Node, src []byte) string {
	if root == nil {
		return ""
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "package_clause" {
			continue
		}
		if n := child.ChildByFieldName("name"); n != nil {
			return string(src[n.StartByte():n.EndByte()])
		}
	}
	return ""
}

func imports(root *sitter.Node, src []byte, path string) []extract.Symbol {
	var out []extract.Symbol
	if root == nil {
		return out
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			grand := child.Child(j)
			switch grand.Type() {
			case "import_spec":
				if s := importSpec(grand, src, path); s != nil {
					out = append(out, *s)
				}
			case "import_spec_list":
				for k := 0; k < int(grand.ChildCount()); k++ {
					spec := grand.Child(k)
					if spec.Type() == "import_spec" {
						if s := importSpec(spec, src, path); s != nil {
							out = append(out, *s)
						}
					}
				}
			}
		}
	}
	return out
}

func importSpec(node *sitter.Node, src []byte, path string) *extract.Symbol {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		for i := 0; i < int(node.ChildCount()); i++ {
			if node.Child(i).Type() == "interpreted_string_literal" {
				pathNode = node.Child(i)
				break
			}
		}
	}
	if pathNode == nil {
		return nil
	}
	importPath := strings.Trim(string(src[pathNode.StartByte():pathNode.EndByte()]), `"`)

	alias := ""
	if n := node.ChildByFieldName("name"); n != nil {
		alias = string(src[n.StartByte():n.EndByte()])
	} else {
		for i := 0; i < int(node.ChildCount()); i++ {
			switch node.Child(i).Type() {
			case "dot", ".":
				alias = "."
			case "blank_identifier":
				alias = "_"
			case "package_identifier":
				alias = string(src[node.Child(i).StartByte():node.Child(i).EndByte()])
			}
		}
	}

	return &extract.Symbol{
		Kind:          "Import",
		Name:          importPath,
		QualifiedName: path + "::import::" + importPath,
		StartByte:     int(node.StartByte()),
		EndByte:       int(node.EndByte()),
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
		Metadata:      map[string]string{"import_path": importPath, "alias": alias},
	}
}

// aliasImportMap builds a package-alias -> import-path lookup from the
// file's import symbols, so a selector call like foo.Bar can be scoped to
// the import it was resolved against. Dot- and blank-imports carry no
// usable alias and are skipped; an unaliased import is keyed by the last
// path segment, Go's own default package-identifier rule.
func aliasImportMap(importSymbols []extract.Symbol) map[string]string {
	out := make(map[string]string, len(importSymbols))
	for _, sym := range importSymbols {
		importPath := sym.Metadata["import_path"]
		alias := sym.Metadata["alias"]
		switch alias {
		case ".", "_":
			continue
		case "":
			if idx := strings.LastIndex(importPath, "/"); idx >= 0 {
				out[importPath[idx+1:]] = importPath
			} else {
				out[importPath] = importPath
			}
		default:
			out[alias] = importPath
		}
	}
	return out
}

type funcNode struct {
	qualified string
	node      *sitter.Node
}

type walkCtx struct {
	src             []byte
	path            string
	symbols         []extract.Symbol
	containsEdges   []extract.IntraEdge
	funcNodes       []funcNode
	nameToQualified map[string]string // simple name -> qualified name, for same-file call resolution
	anonCounter     int
}

func walkDecls(node *sitter.Node, ctx *walkCtx) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "function_declaration":
		addFunc(node, ctx, false)
	case "method_declaration":
		addFunc(node, ctx, true)
	case "func_literal":
		ctx.anonCounter++
		name := fmt.Sprintf("$anon_%d", ctx.anonCounter)
		qualified := ctx.path + "::" + name
		sym := funcSymbol(node, ctx, name, qualified, "Function", signatureOf(node, ctx.src, "", ""))
		ctx.symbols = append(ctx.symbols, sym)
		ctx.funcNodes = append(ctx.funcNodes, funcNode{qualified: qualified, node: node})
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkDecls(node.Child(i), ctx)
	}
}

func addFunc(node *sitter.Node, ctx *walkCtx, isMethod bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(ctx.src[nameNode.StartByte():nameNode.EndByte()])
	kind := "Function"
	fullName := name
	receiverType := ""

	if isMethod {
		kind = "Method"
		if recv := node.ChildByFieldName("receiver"); recv != nil {
			receiverType = baseTypeName(findTypeInReceiver(recv), ctx.src)
		}
		if receiverType != "" {
			fullName = receiverType + "." + name
		}
	}

	qualified := ctx.path + "::" + fullName
	sig := signatureOf(node, ctx.src, fullName, receiverType)
	sym := funcSymbol(node, ctx, fullName, qualified, kind, sig)
	ctx.symbols = append(ctx.symbols, sym)
	ctx.funcNodes = append(ctx.funcNodes, funcNode{qualified: qualified, node: node})
	ctx.nameToQualified[name] = qualified

	if receiverType != "" {
		ctx.containsEdges = append(ctx.containsEdges, extract.IntraEdge{
			Kind:          "Contains",
			FromQualified: ctx.path + "::" + receiverType,
			ToQualified:   qualified,
			Line:          int(node.StartPoint().Row) + 1,
		})
	}
}

func funcSymbol(node *sitter.Node, ctx *walkCtx, name, qualified, kind, signature string) extract.Symbol {
	return extract.Symbol{
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		StartByte:     int(node.StartByte()),
		EndByte:       int(node.EndByte()),
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
		Exported:      isExported(name),
		Metadata:      map[string]string{"signature": signature},
	}
}

func signatureOf(node *sitter.Node, src []byte, name, receiverType string) string {
	var b strings.Builder
	b.WriteString("func ")
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		b.WriteString(string(src[recv.StartByte():recv.EndByte()]))
		b.WriteString(" ")
	}
	if name != "" {
		simple := name
		if receiverType != "" {
			simple = strings.TrimPrefix(name, receiverType+".")
		}
		b.WriteString(simple)
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		b.WriteString(string(src[tp.StartByte():tp.EndByte()]))
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		b.WriteString(string(src[params.StartByte():params.EndByte()]))
	}
	if result := node.ChildByFieldName("result"); result != nil {
		b.WriteString(" ")
		b.WriteString(string(src[result.StartByte():result.EndByte()]))
	}
	return b.String()
}

func findTypeInReceiver(receiver *sitter.Node) *sitter.Node {
	for i := 0; i < int(receiver.ChildCount()); i++ {
		child := receiver.Child(i)
		if child.Type() == "parameter_declaration" {
			if t := child.ChildByFieldName("type"); t != nil {
				return t
			}
		}
	}
	return nil
}

func baseTypeName(typeNode *sitter.Node, src []byte) string {
	if typeNode == nil {
		return ""
	}
	switch typeNode.Type() {
	case "pointer_type":
		for i := 0; i < int(typeNode.ChildCount()); i++ {
			c := typeNode.Child(i)
			if c.Type() != "*" {
				return baseTypeName(c, src)
			}
		}
	case "generic_type":
		if t := typeNode.ChildByFieldName("type"); t != nil {
			return string(src[t.StartByte():t.EndByte()])
		}
	case "qualified_type":
		for i := 0; i < int(typeNode.ChildCount()); i++ {
			if typeNode.Child(i).Type() == "type_identifier" {
				return string(src[typeNode.Child(i).StartByte():typeNode.Child(i).EndByte()])
			}
		}
	case "type_identifier":
		return string(src[typeNode.StartByte():typeNode.EndByte()])
	}
	name := string(src[typeNode.StartByte():typeNode.EndByte()])
	name = strings.TrimPrefix(name, "*")
	if idx := strings.Index(name, "["); idx > 0 {
		name = name[:idx]
	}
	return name
}

func isExported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func extractCalls(fnNode *sitter.Node, src []byte, callerQualified string, nameToQualified, aliasToImport map[string]string) ([]extract.IntraEdge, []extract.UnresolvedRef) {
	body := fnNode.ChildByFieldName("body")
	if body == nil {
		for i := 0; i < int(fnNode.ChildCount()); i++ {
			if fnNode.Child(i).Type() == "block" {
				body = fnNode.Child(i)
				break
			}
		}
	}
	if body == nil {
		return nil, nil
	}

	var edges []extract.IntraEdge
	var unresolved []extract.UnresolvedRef
	seenLocal := map[string]bool{}
	seenUnresolved := map[string]bool{}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "call_expression" {
			processCall(n, src, callerQualified, nameToQualified, aliasToImport, &edges, &unresolved, seenLocal, seenUnresolved)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return edges, unresolved
}

func processCall(node *sitter.Node, src []byte, callerQualified string, nameToQualified, aliasToImport map[string]string, edges *[]extract.IntraEdge, unresolved *[]extract.UnresolvedRef, seenLocal, seenUnresolved map[string]bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	simple := calleeSimpleName(fn, src)
	full := calleeFullName(fn, src)
	if simple == "" {
		return
	}

	if calleeQualified, ok := nameToQualified[simple]; ok {
		if calleeQualified != callerQualified {
			key := callerQualified + "->" + calleeQualified
			if !seenLocal[key] {
				seenLocal[key] = true
				*edges = append(*edges, extract.IntraEdge{
					Kind:          "Calls",
					FromQualified: callerQualified,
					ToQualified:   calleeQualified,
					Line:          int(node.StartPoint().Row) + 1,
				})
			}
			return
		}
		if full != "" && full != simple {
			addUnresolved(node, callerQualified, full, aliasToImport, unresolved, seenUnresolved)
		}
		return
	}

	if full != "" {
		addUnresolved(node, callerQualified, full, aliasToImport, unresolved, seenUnresolved)
	}
}

func addUnresolved(node *sitter.Node, callerQualified, calleeName string, aliasToImport map[string]string, unresolved *[]extract.UnresolvedRef, seen map[string]bool) {
	key := callerQualified + "->" + calleeName
	if seen[key] {
		return
	}
	seen[key] = true

	var scopeHints []string
	if idx := strings.Index(calleeName, "."); idx > 0 {
		if importPath, ok := aliasToImport[calleeName[:idx]]; ok {
			scopeHints = []string{importPath}
		}
	}

	*unresolved = append(*unresolved, extract.UnresolvedRef{
		FromQualified: callerQualified,
		RefText:       calleeName,
		EdgeKind:      "Calls",
		Line:          int(node.StartPoint().Row) + 1,
		ScopeHints:    scopeHints,
		ExpectedKinds: []string{"Function", "Method"},
	})
}

func calleeSimpleName(node *sitter.Node, src []byte) string {
	switch node.Type() {
	case "identifier":
		return string(src[node.StartByte():node.EndByte()])
	case "selector_expression":
		if f := node.ChildByFieldName("field"); f != nil {
			return string(src[f.StartByte():f.EndByte()])
		}
	case "index_expression":
		if op := node.ChildByFieldName("operand"); op != nil {
			return calleeSimpleName(op, src)
		}
	}
	return ""
}

func calleeFullName(node *sitter.Node, src []byte) string {
	switch node.Type() {
	case "identifier", "selector_expression":
		return string(src[node.StartByte():node.EndByte()])
	case "index_expression":
		if op := node.ChildByFieldName("operand"); op != nil {
			return calleeFullName(op, src)
		}
	}
	return ""
}

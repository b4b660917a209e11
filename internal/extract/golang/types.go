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

package golang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"canopy/internal/extract"
)

// walkTypes finds every type_declaration and const_declaration in root and
// returns both the type-level symbols (Struct, Interface, Enum, TypeAlias,
// Constant) and the field-level symbols nested inside struct bodies.
func walkTypes(root *sitter.Node, src []byte, path string) ([]extract.Symbol, []extract.Symbol) {
	var types []extract.Symbol
	var fields []extract.Symbol
	if root == nil {
		return types, fields
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "type_declaration":
			t, f := typeDeclaration(n, src, path)
			types = append(types, t...)
			fields = append(fields, f...)
		case "const_declaration":
			types = append(types, constDeclaration(n, src, path)...)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return types, fields
}

func typeDeclaration(node *sitter.Node, src []byte, path string) ([]extract.Symbol, []extract.Symbol) {
	var types []extract.Symbol
	var fields []extract.Symbol

	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		name := string(src[nameNode.StartByte():nameNode.EndByte()])
		qualified := path + "::" + name
		kind := typeKind(typeNode)

		types = append(types, extract.Symbol{
			Kind:          kind,
			Name:          name,
			QualifiedName: qualified,
			StartByte:     int(spec.StartByte()),
			EndByte:       int(spec.EndByte()),
			StartLine:     int(spec.StartPoint().Row) + 1,
			EndLine:       int(spec.EndPoint().Row) + 1,
			Exported:      isExported(name),
			Metadata:      map[string]string{"underlying": typeNode.Type()},
		})

		if kind == "Struct" {
			fields = append(fields, structFields(typeNode, src, qualified)...)
		}
	}
	return types, fields
}

func typeKind(typeNode *sitter.Node) string {
	switch typeNode.Type() {
	case "struct_type":
		return "Struct"
	case "interface_type":
		return "Interface"
	default:
		return "TypeAlias"
	}
}

func structFields(structType *sitter.Node, src []byte, ownerQualified string) []extract.Symbol {
	var out []extract.Symbol
	body := structType
	if structType.Type() == "struct_type" {
		if b := structType.ChildByFieldName("body"); b != nil {
			body = b
		}
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		decl := body.Child(i)
		if decl.Type() != "field_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		typeText := ""
		if typeNode != nil {
			typeText = string(src[typeNode.StartByte():typeNode.EndByte()])
		}
		nameField := decl.ChildByFieldName("name")
		if nameField != nil {
			out = append(out, fieldSymbol(decl, nameField, src, ownerQualified, typeText))
			continue
		}
		// embedded field: the type itself is the field name
		for j := 0; j < int(decl.ChildCount()); j++ {
			c := decl.Child(j)
			if c.Type() == "type_identifier" || c.Type() == "qualified_type" {
				out = append(out, fieldSymbol(decl, c, src, ownerQualified, typeText))
				break
			}
		}
	}
	return out
}

func fieldSymbol(decl, nameNode *sitter.Node, src []byte, ownerQualified, typeText string) extract.Symbol {
	name := string(src[nameNode.StartByte():nameNode.EndByte()])
	return extract.Symbol{
		Kind:          "Field",
		Name:          name,
		QualifiedName: ownerQualified + "." + name,
		StartByte:     int(decl.StartByte()),
		EndByte:       int(decl.EndByte()),
		StartLine:     int(decl.StartPoint().Row) + 1,
		EndLine:       int(decl.EndPoint().Row) + 1,
		Exported:      isExported(name),
		Metadata:      map[string]string{"type": typeText, "owner": ownerQualified},
	}
}

// constDeclaration treats a `const ( ... )` block that uses iota as an Enum
// and a plain const block as a set of Constant symbols.
func constDeclaration(node *sitter.Node, src []byte, path string) []extract.Symbol {
	var out []extract.Symbol
	usesIota := strings.Contains(string(src[node.StartByte():node.EndByte()]), "iota")
	kind := "Constant"
	if usesIota {
		kind = "Enum"
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "const_spec" {
			continue
		}
		for j := 0; j < int(spec.ChildCount()); j++ {
			c := spec.Child(j)
			if c.Type() != "identifier" {
				continue
			}
			name := string(src[c.StartByte():c.EndByte()])
			out = append(out, extract.Symbol{
				Kind:          kind,
				Name:          name,
				QualifiedName: path + "::" + name,
				StartByte:     int(spec.StartByte()),
				EndByte:       int(spec.EndByte()),
				StartLine:     int(spec.StartPoint().Row) + 1,
				EndLine:       int(spec.EndPoint().Row) + 1,
				Exported:      isExported(name),
			})
		}
	}
	return out
}

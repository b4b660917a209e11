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

// Package extract defines the Language Extractor contract and a registry
// of per-language implementations. Adding a language is purely additive:
// register an extension-to-extractor mapping, no core changes.
package extract

import sitter "github.com/smacker/go-tree-sitter"

// Symbol is one symbol defined in the extracted file.
type Symbol struct {
	Kind          string // mirrors graph.NodeKind as a string, to keep this package import-free of internal/graph
	Name          string
	QualifiedName string
	StartByte     int
	EndByte       int
	StartLine     int
	EndLine       int
	Exported      bool
	Metadata      map[string]string
}

// IntraEdge is a relation whose endpoints are both defined in this file.
type IntraEdge struct {
	Kind           string
	FromQualified  string
	ToQualified    string
	Line           int
}

// UnresolvedRef is a reference the extractor could not settle locally.
type UnresolvedRef struct {
	FromQualified string // the symbol containing the reference site
	RefText       string
	EdgeKind      string
	Line          int
	ScopeHints    []string
	ExpectedKinds []string
}

// Result is what one Extract call produces for one file.
type Result struct {
	Symbols        []Symbol
	IntraEdges     []IntraEdge
	UnresolvedRefs []UnresolvedRef
	PackageName    string
	Errors         []error
}

// Extractor is the uniform capability every supported language implements:
// given a path, new source bytes, and an optional prior syntax tree,
// produce a new syntax tree and an extraction result.
type Extractor interface {
	Language() string
	Extract(path string, src []byte, prior *sitter.Tree) (*sitter.Tree, Result, error)
}

// Registry maps file extensions to the Extractor that handles them.
type Registry struct {
	byExtension map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExtension: make(map[string]Extractor)}
}

// Register associates each of extensions (e.g. ".go") with e.
func (r *Registry) Register(e Extractor, extensions ...string) {
	for _, ext := range extensions {
		r.byExtension[ext] = e
	}
}

// For returns the extractor registered for a file extension, if any.
func (r *Registry) For(extension string) (Extractor, bool) {
	e, ok := r.byExtension[extension]
	return e, ok
}

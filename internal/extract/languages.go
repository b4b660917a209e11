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

package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"canopy/internal/extract/golang"
	"canopy/internal/extract/javascript"
	"canopy/internal/extract/python"
	"canopy/internal/extract/typescript"
)

// BorrowFunc hands out a pooled, language-specific *sitter.Parser plus a
// release function. internal/parsecache.(*ParserPools).Borrow satisfies
// this signature.
type BorrowFunc func(language string) (*sitter.Parser, func(), error)

// NewDefaultRegistry wires every language extractor this module ships
// with into a Registry, keyed by file extension. Adding a fifth language
// means adding one more Register call here; nothing else in the indexer
// changes.
func NewDefaultRegistry(borrow BorrowFunc) *Registry {
	r := NewRegistry()

	r.Register(&golang.Extractor{Borrow: borrow}, ".go")
	r.Register(&python.Extractor{Borrow: borrow}, ".py")
	r.Register(&javascript.Extractor{Borrow: borrow}, ".js", ".jsx", ".mjs", ".cjs")
	r.Register(&typescript.Extractor{Borrow: borrow}, ".ts", ".mts")
	r.Register(&typescript.Extractor{Borrow: borrow, TSX: true}, ".tsx")

	return r
}

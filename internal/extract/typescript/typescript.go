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

// Package typescript is the TypeScript (and TSX) language extractor. It
// reuses internal/extract/javascript's WalkProgram: the TypeScript grammar
// is a superset of JavaScript's and shares the node type names that walk
// inspects, so only parser selection differs.
package typescript

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"canopy/internal/extract"
	"canopy/internal/extract/javascript"
)

type Extractor struct {
	Borrow func(language string) (*sitter.Parser, func(), error)
	// TSX selects the JSX-aware TypeScript grammar, for .tsx files.
	TSX bool
}

func (e *Extractor) Language() string {
	if e.TSX {
		return "tsx"
	}
	return "typescript"
}

func (e *Extractor) Extract(path string, src []byte, prior *sitter.Tree) (*sitter.Tree, extract.Result, error) {
	parser, release, err := e.borrowParser()
	if err != nil {
		return nil, extract.Result{}, err
	}
	defer release()

	tree, err := parser.ParseCtx(context.Background(), prior, src)
	if err != nil {
		return nil, extract.Result{}, fmt.Errorf("typescript: tree-sitter parse: %w", err)
	}

	return tree, javascript.WalkProgram(tree.RootNode(), src, path), nil
}

func (e *Extractor) borrowParser() (*sitter.Parser, func(), error) {
	// parsecache.ParserPools has no tsx pool, so a .tsx file always gets
	// its own parser.
	if e.Borrow != nil && !e.TSX {
		return e.Borrow(e.Language())
	}
	p := sitter.NewParser()
	if e.TSX {
		p.SetLanguage(tsx.GetLanguage())
	} else {
		p.SetLanguage(typescript.GetLanguage())
	}
	return p, func() {}, nil
}

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

// Package javascript is the JavaScript language extractor: functions,
// classes, methods, imports, and same-module call references. The node
// types it walks are shared with the TypeScript grammar, so
// internal/extract/typescript reuses WalkProgram directly.
package javascript

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"canopy/internal/extract"
)

type Extractor struct {
	Borrow func(language string) (*sitter.Parser, func(), error)
}

func (e *Extractor) Language() string { return "javascript" }

func (e *Extractor) Extract(path string, src []byte, prior *sitter.Tree) (*sitter.Tree, extract.Result, error) {
	parser, release, err := e.borrowParser()
	if err != nil {
		return nil, extract.Result{}, err
	}
	defer release()

	tree, err := parser.ParseCtx(context.Background(), prior, src)
	if err != nil {
		return nil, extract.Result{}, fmt.Errorf("javascript: tree-sitter parse: %w", err)
	}

	return tree, WalkProgram(tree.RootNode(), src, path), nil
}

func (e *Extractor) borrowParser() (*sitter.Parser, func(), error) {
	if e.Borrow != nil {
		return e.Borrow("javascript")
	}
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return p, func() {}, nil
}

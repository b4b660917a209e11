// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsecache

import (
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ParserPools holds one sync.Pool per language, since tree-sitter parser
// objects are not safe for concurrent use. Extractors borrow a parser for
// the duration of one file and return it.
type ParserPools struct {
	init sync.Once

	goPool sync.Pool
	pyPool sync.Pool
	jsPool sync.Pool
	tsPool sync.Pool
}

// NewParserPools returns an empty set of pools; languages are lazily
// registered on first Borrow.
func NewParserPools() *ParserPools {
	return &ParserPools{}
}

func (p *ParserPools) ensureInit() {
	p.init.Do(func() {
		p.goPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(golang.GetLanguage())
			return parser
		}
		p.pyPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(python.GetLanguage())
			return parser
		}
		p.jsPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(javascript.GetLanguage())
			return parser
		}
		p.tsPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(typescript.GetLanguage())
			return parser
		}
	})
}

// Borrow returns a parser for language and a release func to return it to
// its pool. An unsupported language returns an error.
func (p *ParserPools) Borrow(language string) (*sitter.Parser, func(), error) {
	p.ensureInit()

	var pool *sync.Pool
	switch language {
	case "go":
		pool = &p.goPool
	case "python":
		pool = &p.pyPool
	case "javascript":
		pool = &p.jsPool
	case "typescript":
		pool = &p.tsPool
	default:
		return nil, nil, fmt.Errorf("parsecache: unsupported language %q", language)
	}

	obj := pool.Get()
	parser, ok := obj.(*sitter.Parser)
	if !ok {
		return nil, nil, fmt.Errorf("parsecache: invalid parser type from %s pool", language)
	}
	return parser, func() { pool.Put(parser) }, nil
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package golang

import (
	"strings"
	"testing"
)

const sampleSource = `package widget

import (
	"fmt"
	alias "example.com/other"
)

type Widget struct {
	Name string
	size int
}

type Greeter interface {
	Greet() string
}

func (w *Widget) Greet() string {
	return helper(w.Name)
}

func helper(name string) string {
	return fmt.Sprintf("hi %s", name)
}

func unrelated() {
	alias.DoSomething()
}
`

func TestExtract_FindsPackageNameAndImports(t *testing.T) {
	e := &Extractor{}
	_, res, err := e.Extract("widget.go", []byte(sampleSource), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.PackageName != "widget" {
		t.Fatalf("expected package name widget, got %q", res.PackageName)
	}

	var sawFmt, sawAliased bool
	for _, s := range res.Symbols {
		if s.Kind != "Import" {
			continue
		}
		if s.Name == "fmt" {
			sawFmt = true
		}
		if s.Name == "example.com/other" && s.Metadata["alias"] == "alias" {
			sawAliased = true
		}
	}
	if !sawFmt || !sawAliased {
		t.Fatalf("expected both imports to be extracted, got %+v", res.Symbols)
	}
}

func TestExtract_FindsFunctionsAndMethods(t *testing.T) {
	e := &Extractor{}
	_, res, err := e.Extract("widget.go", []byte(sampleSource), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var sawMethod, sawFunc bool
	for _, s := range res.Symbols {
		switch s.QualifiedName {
		case "widget.go::Widget.Greet":
			sawMethod = s.Kind == "Method"
		case "widget.go::helper":
			sawFunc = s.Kind == "Function"
		}
	}
	if !sawMethod {
		t.Fatalf("expected Widget.Greet method symbol, got %+v", res.Symbols)
	}
	if !sawFunc {
		t.Fatalf("expected helper function symbol, got %+v", res.Symbols)
	}
}

func TestExtract_SameFileCallResolvesToIntraEdge(t *testing.T) {
	e := &Extractor{}
	_, res, err := e.Extract("widget.go", []byte(sampleSource), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var found bool
	for _, edge := range res.IntraEdges {
		if edge.Kind == "Calls" && edge.FromQualified == "widget.go::Widget.Greet" && edge.ToQualified == "widget.go::helper" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Widget.Greet -> helper call edge, got %+v", res.IntraEdges)
	}
}

func TestExtract_CrossPackageCallIsUnresolved(t *testing.T) {
	e := &Extractor{}
	_, res, err := e.Extract("widget.go", []byte(sampleSource), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var found bool
	for _, ref := range res.UnresolvedRefs {
		if strings.Contains(ref.RefText, "alias.DoSomething") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alias.DoSomething to be an unresolved reference, got %+v", res.UnresolvedRefs)
	}
}

func TestExtract_StructAndInterfaceTypesArePresent(t *testing.T) {
	e := &Extractor{}
	_, res, err := e.Extract("widget.go", []byte(sampleSource), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var sawStruct, sawInterface, sawField bool
	for _, s := range res.Symbols {
		switch {
		case s.Kind == "Struct" && s.Name == "Widget":
			sawStruct = true
		case s.Kind == "Interface" && s.Name == "Greeter":
			sawInterface = true
		case s.Kind == "Field" && s.Name == "Name":
			sawField = true
		}
	}
	if !sawStruct || !sawInterface || !sawField {
		t.Fatalf("expected Widget struct, Greeter interface and Name field, got %+v", res.Symbols)
	}
}

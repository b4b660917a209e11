// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package javascript

import "testing"

const sampleSource = `import { helper } from "./helper.js";

class Widget {
  greet(name) {
    return helper(name);
  }
}

function standalone() {
  console.log("hi");
}
`

func TestExtract_FindsClassMethodsAndFunctions(t *testing.T) {
	e := &Extractor{}
	_, res, err := e.Extract("widget.js", []byte(sampleSource), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var sawClass, sawMethod, sawFunc, sawImport bool
	for _, s := range res.Symbols {
		switch {
		case s.Kind == "Class" && s.Name == "Widget":
			sawClass = true
		case s.Kind == "Method" && s.Name == "greet":
			sawMethod = true
		case s.Kind == "Function" && s.Name == "standalone":
			sawFunc = true
		case s.Kind == "Import" && s.Name == "./helper.js":
			sawImport = true
		}
	}
	if !sawClass || !sawMethod || !sawFunc || !sawImport {
		t.Fatalf("expected class/method/function/import symbols, got %+v", res.Symbols)
	}
}

func TestExtract_ImportedCallIsUnresolved(t *testing.T) {
	e := &Extractor{}
	_, res, err := e.Extract("widget.js", []byte(sampleSource), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var found bool
	for _, ref := range res.UnresolvedRefs {
		if ref.RefText == "helper" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected helper() call to be unresolved, got %+v", res.UnresolvedRefs)
	}
}

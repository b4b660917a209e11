// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package typescript

import "testing"

const sampleSource = `import { helper } from "./helper";

class Widget {
  greet(name: string): string {
    return helper(name);
  }
}

function standalone(): void {
  console.log("hi");
}
`

func TestExtract_FindsClassMethodsAndFunctions(t *testing.T) {
	e := &Extractor{}
	_, res, err := e.Extract("widget.ts", []byte(sampleSource), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var sawClass, sawMethod, sawFunc bool
	for _, s := range res.Symbols {
		switch {
		case s.Kind == "Class" && s.Name == "Widget":
			sawClass = true
		case s.Kind == "Method" && s.Name == "greet":
			sawMethod = true
		case s.Kind == "Function" && s.Name == "standalone":
			sawFunc = true
		}
	}
	if !sawClass || !sawMethod || !sawFunc {
		t.Fatalf("expected class/method/function symbols, got %+v", res.Symbols)
	}
}

func TestExtractor_Language_TSXVariant(t *testing.T) {
	e := &Extractor{TSX: true}
	if e.Language() != "tsx" {
		t.Fatalf("expected tsx language tag, got %q", e.Language())
	}
}

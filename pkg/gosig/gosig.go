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

// Package gosig parses Go function signatures into parameter name/type
// pairs. It has no dependencies of its own so both the Go language
// extractor and the heuristic linker's interface-dispatch matcher can
// import it without creating a cycle between extraction and linking.
package gosig

import "strings"

// Param holds a parsed parameter's name and base type, with the pointer,
// slice, and variadic decoration stripped off so the heuristic linker can
// compare it directly against a struct field's base type.
type Param struct {
	Name string
	Type string
}

// ParseParams extracts every declared parameter's name and base type from
// a full Go function signature string, e.g.
// "func (s *Server) Run(ctx context.Context, a, b Querier) error" yields
// [{ctx, Context} {a, Querier} {b, Querier}].
//
// Go's grouped-parameter shorthand ("a, b int" meaning both a and b are
// int) means a parameter's type is only known once a later,
// fully-typed group in the same comma list is reached; this walks the
// comma-separated groups left to right, buffering bare names until a
// typed group resolves them. A trailing group of bare names with no
// following type never resolves and is dropped, matching a signature
// that is itself malformed.
//
// A func-typed parameter ("fn func(int) error") normalizes its type to
// the literal string "func" rather than attempting to parse the nested
// signature. Method receivers are skipped entirely.
func ParseParams(signature string) []Param {
	paramList := ExtractParamString(signature)
	if paramList == "" {
		return nil
	}

	var params []Param
	var pendingNames []string

	for _, group := range splitTopLevel(paramList, ',') {
		tokens := tokenizeGroup(strings.TrimSpace(group))
		switch len(tokens) {
		case 0:
			continue
		case 1:
			pendingNames = append(pendingNames, tokens[0])
		default:
			typ := NormalizeType(tokens[len(tokens)-1])
			pendingNames = append(pendingNames, tokens[0])
			for _, name := range pendingNames {
				params = append(params, Param{Name: name, Type: typ})
			}
			pendingNames = nil
		}
	}

	return params
}

// ExtractParamString isolates the parenthesized parameter list from a Go
// function signature, skipping over a method receiver's own parens first
// when one is present. Given
// "func (r *Type) Name(ctx Context, q Querier) error" it returns
// "ctx Context, q Querier".
func ExtractParamString(sig string) string {
	pos := strings.Index(sig, "func")
	if pos == -1 {
		return ""
	}
	pos += len("func")
	pos = skipSpace(sig, pos)

	if pos < len(sig) && sig[pos] == '(' {
		closeAt := matchingClose(sig, pos)
		if closeAt == -1 {
			return ""
		}
		pos = closeAt + 1
	}

	// Whatever remains before the parameter list is the function name
	// (absent for a receiverless literal like "func(a int) error").
	for pos < len(sig) && sig[pos] != '(' {
		pos++
	}

	if pos >= len(sig) {
		return ""
	}
	closeAt := matchingClose(sig, pos)
	if closeAt == -1 {
		return ""
	}
	return sig[pos+1 : closeAt]
}

// NormalizeType strips pointer, slice, and variadic decoration from a Go
// type expression and drops any package qualifier, reducing it to its
// bare type name:
//
//	"*Querier"     -> "Querier"
//	"[]Querier"    -> "Querier"
//	"pkg.Querier"  -> "Querier"
//	"*pkg.Querier" -> "Querier"
//	"...string"    -> "string"
//	"func(int) error" -> "func"
func NormalizeType(typ string) string {
	typ = strings.TrimPrefix(typ, "...")
	typ = strings.TrimLeft(typ, "*")
	typ = strings.TrimPrefix(typ, "[]")
	typ = strings.TrimLeft(typ, "*")

	if strings.HasPrefix(typ, "func") {
		return "func"
	}
	if dot := strings.LastIndex(typ, "."); dot >= 0 {
		typ = typ[dot+1:]
	}
	return typ
}

// splitTopLevel splits s on sep, ignoring any sep byte nested inside
// parentheses, so a func-typed parameter's own comma-separated argument
// list never fractures the outer parameter group it belongs to.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// tokenizeGroup splits one comma-separated parameter group into its
// whitespace-delimited tokens: typically a name and a type, or just a
// name when the type is shared with a following group. A leading "*",
// "[", or "func" token absorbs the remainder of the group unsplit, since
// those denote the start of a (possibly space-containing) type
// expression rather than a second name.
func tokenizeGroup(group string) []string {
	group = strings.TrimPrefix(group, "...")
	fields := strings.Fields(group)

	var tokens []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if strings.HasPrefix(f, "*") || strings.HasPrefix(f, "[") || strings.HasPrefix(f, "func") {
			tokens = append(tokens, strings.Join(fields[i:], " "))
			break
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// matchingClose returns the index of the ')' matching the '(' at open,
// or -1 if s is unbalanced from that point on.
func matchingClose(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t' || s[pos] == '\n') {
		pos++
	}
	return pos
}

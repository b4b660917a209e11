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

// Package fingerprint generates deterministic, stable IDs for graph nodes
// and edges. IDs are content-derived so that re-indexing an unchanged file
// produces the same node IDs, which is what lets the diff engine tell apart
// a real structural change from a reparse of identical source.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Kind tags the entity a fingerprint was generated for. The tag is folded
// into the ID string itself so IDs from different kinds never collide even
// if their seed components happen to match.
type Kind string

const (
	KindNode       Kind = "node"
	KindEdge       Kind = "edge"
	KindField      Kind = "fld"
	KindImplements Kind = "impl"
	KindImport     Kind = "imp"
	KindConfig     Kind = "cfg"
	KindAICache    Kind = "ai"
	KindRoute      Kind = "route"
)

func sum(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// NodeID derives a stable node ID from the file path, the node's qualified
// name within that file, and its byte span. The span is included (rather
// than just name) so that two nodes with the same name in the same file
// (e.g. overloaded-by-receiver methods in different languages) still get
// distinct IDs.
func NodeID(filePath, qualifiedName string, startByte, endByte int) string {
	return string(KindNode) + ":" + sum(filePath, qualifiedName, itoa(startByte), itoa(endByte))
}

// EdgeID derives a stable edge ID from its endpoints and kind. Call sites
// and other fan-out edges additionally fold in a disambiguator (e.g. the
// call-site line) since one function may call another from several lines.
func EdgeID(kind, fromID, toID, disambiguator string) string {
	return string(KindEdge) + ":" + sum(kind, fromID, toID, disambiguator)
}

// FieldID derives a stable ID for a struct/class field record used by the
// heuristic linker's interface-dispatch pattern.
func FieldID(filePath, ownerName, fieldName string) string {
	return string(KindField) + ":" + sum(filePath, ownerName, fieldName)
}

// ImplementsID derives a stable ID for a concrete-type-implements-interface
// fact.
func ImplementsID(typeName, interfaceName string) string {
	return string(KindImplements) + ":" + sum(typeName, interfaceName)
}

// ImportID derives a stable ID for an import/require statement.
func ImportID(filePath, importPath string) string {
	return string(KindImport) + ":" + sum(filePath, importPath)
}

// ConfigKeyID derives a stable ID for a configuration key extracted from a
// non-code file (YAML/JSON/TOML/.env/route table/etc).
func ConfigKeyID(filePath, keyPath string) string {
	return string(KindConfig) + ":" + sum(filePath, keyPath)
}

// RouteID derives a stable ID for an HTTP route binding discovered by the
// heuristic linker's route matcher.
func RouteID(filePath, method, route string) string {
	return string(KindRoute) + ":" + sum(filePath, method, route)
}

// AICacheKey derives a cache key for a bridge lookup from the reference
// text, the source snippet it was found in, and the joined candidate node
// IDs it was resolved against.
func AICacheKey(refText string, source []byte, joinedCandidateIDs string) string {
	return string(KindAICache) + ":" + sum(refText, string(source), joinedCandidateIDs)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

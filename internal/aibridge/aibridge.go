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

// Package aibridge is the seam for an optional semantic-reference
// provider. The provider itself is out of scope: this package ships only
// the Bridge interface, a NullBridge that never suggests anything, and
// the budget/cache machinery that would wrap a real provider.
package aibridge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"canopy/pkg/fingerprint"
)

// Suggestion is one candidate SemanticReference edge a Bridge proposes.
// The caller (the Indexer) decides whether to admit it into the graph.
type Suggestion struct {
	TargetNodeID string
	Confidence   float64
	Rationale    string
}

// Bridge resolves a reference the Resolver and Heuristic Linker could
// not, given the reference text and a pool of plausible target node IDs.
type Bridge interface {
	Suggest(ctx context.Context, refText string, sourceSnippet []byte, candidateNodeIDs []string) ([]Suggestion, error)
}

// NullBridge never suggests anything. It is the default Bridge so that
// Canopy runs fully structural-plus-heuristic out of the box.
type NullBridge struct{}

func (NullBridge) Suggest(context.Context, string, []byte, []string) ([]Suggestion, error) {
	return nil, nil
}

// Budget caps how many Bridge calls may be spent within period. Once it
// is exhausted, CachedBridge skips the inner call and returns no
// suggestions and no error until the window resets.
type Budget struct {
	mu       sync.Mutex
	period   time.Duration
	limit    int
	used     int
	windowAt time.Time
}

// NewBudget returns a Budget allowing limit calls per period.
func NewBudget(limit int, period time.Duration) *Budget {
	return &Budget{limit: limit, period: period}
}

// Take reports whether a call may proceed, resetting the window if it has
// elapsed.
func (b *Budget) Take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.windowAt) >= b.period {
		b.windowAt = now
		b.used = 0
	}
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Remaining reports how many calls are left in the current window.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit-b.used < 0 {
		return 0
	}
	return b.limit - b.used
}

// Cache memoizes Bridge results by a SHA-256 fingerprint over the
// reference text, the source snippet, and the sorted candidate set, using
// the same "prefix:" + hex[:16] ID convention as pkg/fingerprint.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]Suggestion
}

// NewCache returns an empty result cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]Suggestion)}
}

// Key computes the cache key for a (refText, source, candidates) triple.
func Key(refText string, source []byte, candidateNodeIDs []string) string {
	sorted := append([]string(nil), candidateNodeIDs...)
	sort.Strings(sorted)
	return fingerprint.AICacheKey(refText, source, strings.Join(sorted, ","))
}

func (c *Cache) Get(key string) ([]Suggestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache) Put(key string, suggestions []Suggestion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = suggestions
}

// CachedBridge wraps an inner Bridge with a budget and a result cache: a
// cache hit never spends budget, and a budget-exhausted miss returns an
// empty suggestion set rather than an error, since a SemanticReference
// pass is always optional.
type CachedBridge struct {
	Inner  Bridge
	Budget *Budget
	Cache  *Cache
	Now    func() time.Time
}

func (c *CachedBridge) Suggest(ctx context.Context, refText string, sourceSnippet []byte, candidateNodeIDs []string) ([]Suggestion, error) {
	key := Key(refText, sourceSnippet, candidateNodeIDs)
	if cached, ok := c.Cache.Get(key); ok {
		return cached, nil
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if c.Budget != nil && !c.Budget.Take(now()) {
		return nil, nil
	}

	suggestions, err := c.Inner.Suggest(ctx, refText, sourceSnippet, candidateNodeIDs)
	if err != nil {
		return nil, err
	}
	c.Cache.Put(key, suggestions)
	return suggestions, nil
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package aibridge

import (
	"context"
	"testing"
	"time"
)

func TestNullBridge_NeverSuggests(t *testing.T) {
	var b NullBridge
	suggestions, err := b.Suggest(context.Background(), "ref", nil, nil)
	if err != nil || suggestions != nil {
		t.Fatalf("expected no suggestions and no error, got %+v, %v", suggestions, err)
	}
}

func TestBudget_ExhaustsWithinWindow(t *testing.T) {
	b := NewBudget(2, time.Minute)
	now := time.Now()
	if !b.Take(now) || !b.Take(now) {
		t.Fatalf("expected first two takes to succeed")
	}
	if b.Take(now) {
		t.Fatalf("expected third take to fail once budget is exhausted")
	}
}

func TestBudget_ResetsAfterPeriodElapses(t *testing.T) {
	b := NewBudget(1, time.Second)
	start := time.Now()
	if !b.Take(start) {
		t.Fatalf("expected first take to succeed")
	}
	if b.Take(start) {
		t.Fatalf("expected second take in same window to fail")
	}
	if !b.Take(start.Add(2 * time.Second)) {
		t.Fatalf("expected take after window elapses to succeed")
	}
}

type countingBridge struct{ calls int }

func (c *countingBridge) Suggest(context.Context, string, []byte, []string) ([]Suggestion, error) {
	c.calls++
	return []Suggestion{{TargetNodeID: "n-1", Confidence: 0.5}}, nil
}

func TestCachedBridge_CacheHitSkipsInnerCall(t *testing.T) {
	inner := &countingBridge{}
	cb := &CachedBridge{Inner: inner, Budget: NewBudget(10, time.Minute), Cache: NewCache()}

	if _, err := cb.Suggest(context.Background(), "ref", []byte("src"), []string{"a"}); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if _, err := cb.Suggest(context.Background(), "ref", []byte("src"), []string{"a"}); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected inner bridge to be called once, got %d", inner.calls)
	}
}

func TestCachedBridge_BudgetExhaustedReturnsEmptyNotError(t *testing.T) {
	inner := &countingBridge{}
	cb := &CachedBridge{Inner: inner, Budget: NewBudget(0, time.Minute), Cache: NewCache()}

	suggestions, err := cb.Suggest(context.Background(), "ref", []byte("src"), []string{"a"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if suggestions != nil {
		t.Fatalf("expected no suggestions when budget is exhausted, got %+v", suggestions)
	}
	if inner.calls != 0 {
		t.Fatalf("expected inner bridge not to be called, got %d calls", inner.calls)
	}
}

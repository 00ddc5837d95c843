package provider

import (
	"fmt"
	"testing"
	"time"
)

func TestResolverFallbackWithoutLookup(t *testing.T) {
	r := NewResolver(nil, time.Minute, map[string]Selection{
		"nano": {Provider: "anthropic", Model: "nano-model"},
		"pro":  {Provider: "anthropic", Model: "pro-model"},
	})

	if got := r.Resolve("u1", "nano").Model; got != "nano-model" {
		t.Errorf("nano model = %q", got)
	}
	if got := r.Resolve("u1", "pro").Model; got != "pro-model" {
		t.Errorf("pro model = %q", got)
	}
	if got := r.Resolve("u1", "unknown"); got != (Selection{}) {
		t.Errorf("unknown task = %+v, want zero selection", got)
	}
}

func TestResolverCachesWithinTTL(t *testing.T) {
	calls := 0
	r := NewResolver(func(userID, task string) (Selection, error) {
		calls++
		return Selection{Provider: "openai", Model: "custom-" + task}, nil
	}, time.Minute, nil)

	for i := 0; i < 3; i++ {
		if got := r.Resolve("u1", "pro").Model; got != "custom-pro" {
			t.Fatalf("model = %q", got)
		}
	}
	if calls != 1 {
		t.Errorf("lookup calls = %d, want 1 (cached within TTL)", calls)
	}

	r.Invalidate("u1", "pro")
	r.Resolve("u1", "pro")
	if calls != 2 {
		t.Errorf("lookup calls after invalidate = %d, want 2", calls)
	}

	// Distinct users resolve independently.
	r.Resolve("u2", "pro")
	if calls != 3 {
		t.Errorf("lookup calls for second user = %d, want 3", calls)
	}
}

func TestResolverLookupFailureUsesFallback(t *testing.T) {
	r := NewResolver(func(userID, task string) (Selection, error) {
		return Selection{}, fmt.Errorf("config service down")
	}, time.Minute, map[string]Selection{
		"pro": {Provider: "anthropic", Model: "fallback-model"},
	})

	if got := r.Resolve("u1", "pro").Model; got != "fallback-model" {
		t.Errorf("model = %q, want the configured fallback", got)
	}
}

package provider

import (
	"fmt"
	"sync"
	"time"

	"selene/internal/config"
	"selene/internal/logging"
)

// NewFromConfig builds the default provider client from config.
func NewFromConfig(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicURL,
			Model:   cfg.ProModel,
			Timeout: cfg.GetTimeout(),
		}), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIURL,
			Model:   cfg.ProModel,
			Timeout: cfg.GetTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// =============================================================================
// MODEL RESOLVER - (user, task) -> provider+model, TTL-cached
// =============================================================================

// Selection names a provider and model for one task.
type Selection struct {
	Provider string
	Model    string
}

// ResolveFunc is the external lookup the resolver caches. It may hit a
// database or remote config service; the resolver bounds how often.
type ResolveFunc func(userID, task string) (Selection, error)

// Resolver caches per-(user, task) model selections with a TTL.
type Resolver struct {
	mu        sync.RWMutex
	lookup    ResolveFunc
	ttl       time.Duration
	entries   map[string]resolverEntry
	fallbacks map[string]Selection // per-task defaults from config
}

type resolverEntry struct {
	sel     Selection
	expires time.Time
}

// NewResolver creates a resolver around an external lookup. lookup may
// be nil; every task then resolves to its configured fallback.
func NewResolver(lookup ResolveFunc, ttl time.Duration, fallbacks map[string]Selection) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if fallbacks == nil {
		fallbacks = make(map[string]Selection)
	}
	return &Resolver{
		lookup:    lookup,
		ttl:       ttl,
		entries:   make(map[string]resolverEntry),
		fallbacks: fallbacks,
	}
}

// Resolve returns the provider+model for a user and task. Lookup failure
// degrades to the task's fallback selection; a turn is never blocked on
// resolution.
func (r *Resolver) Resolve(userID, task string) Selection {
	key := userID + "|" + task

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.sel
	}

	if r.lookup == nil {
		return r.fallbacks[task]
	}

	sel, err := r.lookup(userID, task)
	if err != nil {
		logging.Get(logging.CategoryAPI).Warn("model resolution failed for task=%s: %v (using fallback)", task, err)
		return r.fallbacks[task]
	}

	r.mu.Lock()
	r.entries[key] = resolverEntry{sel: sel, expires: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return sel
}

// Invalidate drops a cached selection.
func (r *Resolver) Invalidate(userID, task string) {
	r.mu.Lock()
	delete(r.entries, userID+"|"+task)
	r.mu.Unlock()
}

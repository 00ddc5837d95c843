// Package memory assembles ranked context blocks for prompt assembly:
// durable user facts, recent tool/action history from the event log, and
// relevant conversation excerpts. Ranking uses Gemini embeddings when
// configured, degrading to keyword overlap scoring on any failure.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"selene/internal/config"
	"selene/internal/logging"
	"selene/internal/state"
	"selene/internal/store"
)

// Ranker orders candidate text blocks by relevance to a query.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []string, topN int) ([]string, error)
}

// Provider is the store-backed context source. It implements
// state.ContextSource.
type Provider struct {
	store    *store.Store
	cfg      config.MemoryConfig
	ranker   Ranker
	fallback Ranker
}

// NewProvider creates a Provider. When embeddings are enabled but the
// ranker cannot be constructed, the keyword fallback carries ranking
// alone.
func NewProvider(st *store.Store, cfg config.MemoryConfig) *Provider {
	p := &Provider{store: st, cfg: cfg, fallback: KeywordRanker{}}

	if cfg.Embeddings {
		ranker, err := NewEmbeddingRanker(cfg.GenAIKey, cfg.GenAIModel)
		if err != nil {
			logging.Memory("embedding ranker unavailable, using keyword ranking: %v", err)
		} else {
			p.ranker = ranker
			logging.Memory("embedding ranker enabled (model: %s)", cfg.GenAIModel)
		}
	}
	return p
}

// GetContext retrieves and ranks a turn's memory context. Facts, recent
// actions and conversation excerpts are fetched in parallel.
func (p *Provider) GetContext(ctx context.Context, userID, query, sessionID string, view *state.AgentView) (*state.MemoryContext, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "Provider.GetContext")
	defer timer.Stop()

	mc := &state.MemoryContext{}
	var g errgroup.Group

	g.Go(func() error {
		facts, err := p.store.ListFacts(userID)
		if err != nil {
			return fmt.Errorf("facts: %w", err)
		}
		for _, f := range facts {
			mc.Facts = append(mc.Facts, f.Content)
		}
		if len(mc.Facts) > p.cfg.MaxFacts {
			mc.Facts = mc.Facts[len(mc.Facts)-p.cfg.MaxFacts:]
		}
		return nil
	})

	g.Go(func() error {
		actions, err := p.recentActions(sessionID)
		if err != nil {
			return fmt.Errorf("actions: %w", err)
		}
		mc.RecentActions = actions
		return nil
	})

	var conversations []string
	g.Go(func() error {
		excerpts, err := p.conversationExcerpts(sessionID)
		if err != nil {
			return fmt.Errorf("conversations: %w", err)
		}
		conversations = excerpts
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	mc.Conversations = p.rank(ctx, query, conversations, p.cfg.MaxConversations)
	return mc, nil
}

// rank uses the embedding ranker when available and falls back to
// keyword overlap on any error. Ranking never fails the retrieval.
func (p *Provider) rank(ctx context.Context, query string, candidates []string, topN int) []string {
	if len(candidates) == 0 {
		return nil
	}
	if p.ranker != nil {
		ranked, err := p.ranker.Rank(ctx, query, candidates, topN)
		if err == nil {
			return ranked
		}
		logging.Memory("embedding ranking failed, falling back to keyword overlap: %v", err)
	}
	ranked, err := p.fallback.Rank(ctx, query, candidates, topN)
	if err != nil {
		logging.Memory("keyword ranking failed: %v", err)
		if topN > len(candidates) {
			topN = len(candidates)
		}
		return candidates[:topN]
	}
	return ranked
}

// recentActions extracts task and plan events from the session tail.
func (p *Provider) recentActions(sessionID string) ([]string, error) {
	records, err := p.store.LoadRecentEvents(sessionID, 50)
	if err != nil {
		return nil, err
	}

	var actions []string
	for _, r := range records {
		switch r.Type {
		case state.EventTaskStarted:
			actions = append(actions, "started task: "+payloadField(r.Payload, "task"))
		case state.EventTaskCompleted:
			actions = append(actions, "completed task: "+payloadField(r.Payload, "task"))
		case state.EventPlanSet:
			actions = append(actions, "planned: "+payloadField(r.Payload, "plan"))
		}
	}
	if len(actions) > p.cfg.MaxActions {
		actions = actions[len(actions)-p.cfg.MaxActions:]
	}
	return actions, nil
}

// conversationExcerpts extracts recent user message texts as ranking
// candidates.
func (p *Provider) conversationExcerpts(sessionID string) ([]string, error) {
	records, err := p.store.LoadRecentEvents(sessionID, 100)
	if err != nil {
		return nil, err
	}

	var excerpts []string
	for _, r := range records {
		if r.Type == state.EventUserMessage {
			if text := payloadField(r.Payload, "text"); text != "" {
				excerpts = append(excerpts, text)
			}
		}
	}
	return excerpts, nil
}

func payloadField(payload, field string) string {
	var m map[string]string
	if json.Unmarshal([]byte(payload), &m) != nil {
		return ""
	}
	return m[field]
}

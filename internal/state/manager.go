package state

import (
	"context"
	"strings"

	"selene/internal/logging"
	"selene/internal/store"
)

// MemoryContext holds ranked text blocks for prompt assembly. Rendering
// order is fixed: facts first, recent actions second, conversation
// excerpts last.
type MemoryContext struct {
	Facts         []string
	RecentActions []string
	Conversations []string
}

// Render formats the memory context as prompt text.
func (m *MemoryContext) Render() string {
	if m == nil || (len(m.Facts) == 0 && len(m.RecentActions) == 0 && len(m.Conversations) == 0) {
		return ""
	}
	var b strings.Builder
	if len(m.Facts) > 0 {
		b.WriteString("Known facts:\n")
		for _, f := range m.Facts {
			b.WriteString("- " + f + "\n")
		}
	}
	if len(m.RecentActions) > 0 {
		b.WriteString("Recent actions:\n")
		for _, a := range m.RecentActions {
			b.WriteString("- " + a + "\n")
		}
	}
	if len(m.Conversations) > 0 {
		b.WriteString("Relevant conversation history:\n")
		for _, c := range m.Conversations {
			b.WriteString("- " + c + "\n")
		}
	}
	return b.String()
}

// ContextSource retrieves ranked memory context for a turn.
type ContextSource interface {
	GetContext(ctx context.Context, userID, query, sessionID string, view *AgentView) (*MemoryContext, error)
}

// TurnContext is what Advance hands the pipeline: the post-append view
// and the retrieved memory context.
type TurnContext struct {
	View     *AgentView
	Memories *MemoryContext
}

// Manager owns event appends and view derivation for sessions. Callers
// must serialize turns within one session; different sessions are
// independent.
type Manager struct {
	store  *store.Store
	memory ContextSource
}

// NewManager creates a Manager. memory may be nil; turns then run
// without retrieved context.
func NewManager(st *store.Store, memory ContextSource) *Manager {
	return &Manager{store: st, memory: memory}
}

// Snapshot recomputes a session's view by full replay of its event log.
func (m *Manager) Snapshot(sessionID string) (*AgentView, error) {
	records, err := m.store.LoadEvents(sessionID)
	if err != nil {
		return nil, err
	}
	return Replay(toEvents(records)), nil
}

// Advance derives events from the user message, appends them, recomputes
// the view and retrieves memory context. It never fails the turn: on any
// internal error it logs and returns the prior view unchanged with an
// empty memory context.
func (m *Manager) Advance(ctx context.Context, sessionID, turnID, userID, message string, prior *AgentView) *TurnContext {
	timer := logging.StartTimer(logging.CategoryState, "Manager.Advance")
	defer timer.Stop()

	view := prior
	if view == nil {
		snapshot, err := m.Snapshot(sessionID)
		if err != nil {
			logging.Get(logging.CategoryState).Warn("failed to replay session %s, advancing on empty view: %v", sessionID, err)
			snapshot = &AgentView{}
		}
		view = snapshot
	}

	updated := *view
	for _, d := range DeriveEvents(view, message) {
		rec, err := m.store.AppendEvent(sessionID, turnID, d.Type, d.Payload)
		if err != nil {
			logging.Get(logging.CategoryState).Warn("failed to append %s event for session %s: %v", d.Type, sessionID, err)
			return &TurnContext{View: view, Memories: &MemoryContext{}}
		}
		apply(&updated, Event{
			SessionID: rec.SessionID,
			TurnID:    rec.TurnID,
			Type:      rec.Type,
			Payload:   rec.Payload,
			Sequence:  rec.Sequence,
			Timestamp: rec.CreatedAt,
		})
	}

	memories := &MemoryContext{}
	if m.memory != nil {
		mc, err := m.memory.GetContext(ctx, userID, message, sessionID, &updated)
		if err != nil {
			logging.Get(logging.CategoryState).Warn("memory context retrieval failed for session %s: %v", sessionID, err)
		} else if mc != nil {
			memories = mc
		}
	}

	logging.StateDebug("advanced session %s: topic=%q mood=%q interactions=%d",
		sessionID, updated.CurrentTopic, updated.CurrentMood, updated.InteractionCount)
	return &TurnContext{View: &updated, Memories: memories}
}

// RecordPlan appends a plan_set event once the planner has produced the
// turn's plan. Failure is logged, not propagated.
func (m *Manager) RecordPlan(sessionID, turnID, plan string) {
	if _, err := m.store.AppendEvent(sessionID, turnID, EventPlanSet, encodePayload(planPayload{Plan: plan})); err != nil {
		logging.Get(logging.CategoryState).Warn("failed to record plan for session %s: %v", sessionID, err)
	}
}

func toEvents(records []store.EventRecord) []Event {
	events := make([]Event, 0, len(records))
	for _, r := range records {
		events = append(events, Event{
			SessionID: r.SessionID,
			TurnID:    r.TurnID,
			Type:      r.Type,
			Payload:   r.Payload,
			Sequence:  r.Sequence,
			Timestamp: r.CreatedAt,
		})
	}
	return events
}

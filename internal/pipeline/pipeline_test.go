package pipeline

import (
	"context"
	"strings"
	"sync"

	"selene/internal/identity"
	"selene/internal/provider"
	"selene/internal/state"
)

// mockClient replays scripted responses and records every request.
type mockClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []provider.Request
	system    []string // system prompts from CompleteWithSystem
}

func (m *mockClient) next() string {
	if len(m.responses) == 0 {
		return "ok"
	}
	r := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return r
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.system = append(m.system, system)
	return m.next(), nil
}

func (m *mockClient) CompleteWithOptions(ctx context.Context, req provider.Request) (*provider.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &provider.Result{Content: m.next()}, nil
}

// judgeCalls counts requests issued by the Supervisor's judge.
func (m *mockClient) judgeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, req := range m.requests {
		if strings.HasPrefix(req.Options.LoggingContext, "supervisor.judge") {
			n++
		}
	}
	return n
}

func testDoc() *identity.Document {
	return &identity.Document{
		ID:      "selene",
		Version: 1,
		Traits:  []string{"warm", "direct"},
		SharedBaseline: []string{
			"Answer the user's actual question.",
		},
		ModeGuidelines: map[string][]string{
			"companion": {"Keep it natural."},
			"voice":     {"One or two spoken sentences."},
		},
		BehavioralNorms: []string{"Do not repeat the user."},
		StyleRules: map[string][]string{
			"voice": {"No formatting."},
		},
		Capabilities: []string{"research", "set_reminder"},
		Rubric:       []string{"Addresses the user's message.", "No fabricated tool results."},
	}
}

func testState(mode identity.Mode, draft string) *State {
	st := NewState("s1", "u1", "hello there", mode, identity.Ref{ID: "selene", Version: 1})
	st.Draft = draft
	st.Memories = &state.MemoryContext{}
	return st
}

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"selene/internal/config"
	"selene/internal/identity"
	"selene/internal/provider"
)

// streamingMockClient also implements provider.Streamer, delivering the
// scripted response as two deltas and a terminal summary chunk.
type streamingMockClient struct {
	mockClient
	streams int
}

func (m *streamingMockClient) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.streams++
	err := m.err
	var resp string
	if err == nil {
		resp = m.next()
	}
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.Chunk, 4)
	go func() {
		defer close(ch)
		half := len(resp) / 2
		ch <- provider.Chunk{Delta: resp[:half]}
		ch <- provider.Chunk{Delta: resp[half:]}
		ch <- provider.Chunk{Done: true, Usage: &provider.Result{OutputTokens: 7}}
	}()
	return ch, nil
}

func TestDraftCarriesHintsPlanAndCorrection(t *testing.T) {
	client := &mockClient{responses: []string{"sure, here you go"}}
	g := NewGenerator(client, config.DefaultPipelineConfig())

	st := testState(identity.ModeCompanion, "")
	st.Plan = []string{"acknowledge", "answer"}
	st.InjectedHints = "- Keep responses shorter and more concise."
	st.CorrectionPrompt = "Stop opening every reply with the user's name."

	g.Draft(context.Background(), st, testDoc(), "pro-model")
	if st.Draft != "sure, here you go" {
		t.Errorf("draft = %q", st.Draft)
	}

	req := client.requests[0]
	system := req.Messages[0].Content
	user := req.Messages[1].Content
	if !strings.Contains(system, "Keep responses shorter") {
		t.Error("injected hints missing from system prompt")
	}
	if !strings.Contains(user, "1. acknowledge") {
		t.Error("plan missing from draft prompt")
	}
	if !strings.Contains(user, "Stop opening every reply") {
		t.Error("correction prompt missing from draft prompt")
	}
	if req.Options.MaxTokens != config.DefaultPipelineConfig().MaxTokens {
		t.Errorf("max tokens = %d, want long-form budget", req.Options.MaxTokens)
	}
}

func TestDraftShortFormTokenBudget(t *testing.T) {
	client := &mockClient{responses: []string{"short answer"}}
	g := NewGenerator(client, config.DefaultPipelineConfig())

	st := testState(identity.ModeVoice, "")
	g.Draft(context.Background(), st, testDoc(), "pro-model")

	if got := client.requests[0].Options.MaxTokens; got != config.DefaultPipelineConfig().MaxTokensShort {
		t.Errorf("max tokens = %d, want short-form budget", got)
	}
}

func TestDraftFailureSetsErrorMarker(t *testing.T) {
	client := &mockClient{err: fmt.Errorf("upstream down")}
	g := NewGenerator(client, config.DefaultPipelineConfig())

	st := testState(identity.ModeCompanion, "")
	g.Draft(context.Background(), st, testDoc(), "pro-model")

	if !strings.HasPrefix(st.Draft, ErrorMarker) {
		t.Errorf("draft = %q, want visible error marker", st.Draft)
	}
}

func TestDraftUsesStreamingWhenSupported(t *testing.T) {
	client := &streamingMockClient{mockClient: mockClient{responses: []string{"streamed response"}}}
	g := NewGenerator(client, config.DefaultPipelineConfig())

	st := testState(identity.ModeCompanion, "")
	g.Draft(context.Background(), st, testDoc(), "pro-model")

	if st.Draft != "streamed response" {
		t.Errorf("draft = %q, want deltas reassembled in order", st.Draft)
	}
	if client.streams != 1 {
		t.Errorf("stream calls = %d, want 1", client.streams)
	}
}

func TestDraftStreamFailureSetsErrorMarker(t *testing.T) {
	client := &streamingMockClient{mockClient: mockClient{err: fmt.Errorf("upstream down")}}
	g := NewGenerator(client, config.DefaultPipelineConfig())

	st := testState(identity.ModeCompanion, "")
	g.Draft(context.Background(), st, testDoc(), "pro-model")

	if !strings.HasPrefix(st.Draft, ErrorMarker) {
		t.Errorf("draft = %q, want visible error marker", st.Draft)
	}
}

func TestRepairClearsIssuesOnSuccess(t *testing.T) {
	client := &mockClient{responses: []string{"fixed response"}}
	g := NewGenerator(client, config.DefaultPipelineConfig())

	st := testState(identity.ModeCompanion, "the bad draft")
	st.Plan = []string{"answer"}
	st.CritiqueIssues = []string{"response is too long", "tone is robotic"}

	g.Repair(context.Background(), st, testDoc(), "pro-model")
	if st.Draft != "fixed response" {
		t.Errorf("draft = %q", st.Draft)
	}
	if len(st.CritiqueIssues) != 0 {
		t.Errorf("issues not cleared: %v", st.CritiqueIssues)
	}

	user := client.requests[0].Messages[1].Content
	if !strings.Contains(user, "the bad draft") {
		t.Error("repair prompt missing prior draft")
	}
	if !strings.Contains(user, "1. response is too long") || !strings.Contains(user, "2. tone is robotic") {
		t.Error("repair prompt missing enumerated issues")
	}
	if got := client.requests[0].Options.Temperature; got != config.DefaultPipelineConfig().RepairTemperature {
		t.Errorf("repair temperature = %v", got)
	}
}

func TestRepairFailureKeepsPriorDraft(t *testing.T) {
	client := &mockClient{err: fmt.Errorf("upstream down")}
	g := NewGenerator(client, config.DefaultPipelineConfig())

	st := testState(identity.ModeCompanion, "the prior draft")
	st.CritiqueIssues = []string{"too long"}
	st.Attempts = 1

	g.Repair(context.Background(), st, testDoc(), "pro-model")
	if st.Draft != "the prior draft" {
		t.Errorf("draft = %q, want prior draft preserved", st.Draft)
	}
	if st.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", st.Attempts)
	}
	if len(st.CritiqueIssues) != 1 {
		t.Error("issues must survive a failed repair")
	}
}

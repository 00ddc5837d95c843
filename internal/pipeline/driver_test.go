package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"selene/internal/config"
	"selene/internal/identity"
	"selene/internal/provider"
	"selene/internal/router"
	"selene/internal/state"
	"selene/internal/store"
)

type capturedEnqueue struct {
	states []*State
}

func (c *capturedEnqueue) Enqueue(st *State) { c.states = append(c.states, st) }

type staticHints string

func (s staticHints) RenderHints(userID string) string { return string(s) }

func newTestDriver(t *testing.T, client *mockClient) (*Driver, *capturedEnqueue, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	registry := identity.NewRegistry()
	registry.Register(testDoc())

	cfg := config.DefaultPipelineConfig()
	llm := config.DefaultLLMConfig()
	captured := &capturedEnqueue{}

	driver := NewDriver(DriverDeps{
		Router:     router.New(config.DefaultRouterConfig(), nil, ""),
		Manager:    state.NewManager(st, nil),
		Planner:    NewPlanner(client, llm.NanoModel, cfg),
		Generator:  NewGenerator(client, cfg),
		Supervisor: NewSupervisor(client, llm.JudgeModel, cfg),
		Registry:   registry,
		Store:      st,
		Hints:      staticHints(""),
		Critique:   captured,
		LLM:        llm,
		Pipeline:   cfg,
	})
	return driver, captured, st
}

const rejectVerdict = `{"approved": false, "issues": ["tone is robotic"], "fix_instructions": "relax"}`
const approveVerdict = `{"approved": true, "issues": []}`

func TestRepairLoopTerminatesAtBound(t *testing.T) {
	// The judge rejects every draft; the loop must force-accept after
	// the configured number of repair cycles.
	client := &mockClient{responses: []string{
		"1. answer directly", // planner
		"first draft",        // draft
		rejectVerdict,        // review 1
		"second draft",       // repair 1
		rejectVerdict,        // review 2
		"third draft",        // repair 2
		rejectVerdict,        // review 3, repeats from here
	}}
	driver, captured, _ := newTestDriver(t, client)

	turn, err := driver.RunTurn(context.Background(), "s1", "u1", "selene", "tell me a story", identity.ModeCompanion)
	if err != nil {
		t.Fatal(err)
	}

	st := turn.State
	if st.Phase != PhaseApproved {
		t.Errorf("phase = %s, want approved", st.Phase)
	}
	if st.FinalOutput != "third draft" {
		t.Errorf("final output = %q, want the last draft force-accepted", st.FinalOutput)
	}
	if st.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", st.Attempts)
	}
	if len(captured.states) != 1 {
		t.Errorf("critique enqueues = %d, want 1", len(captured.states))
	}
}

func TestGreetingTurnApprovesFirstPass(t *testing.T) {
	client := &mockClient{responses: []string{
		"1. Say hi back.", // planner
		"hey! how was your day?",
		approveVerdict,
	}}
	driver, captured, _ := newTestDriver(t, client)

	turn, err := driver.RunTurn(context.Background(), "s1", "u1", "selene", "hey", identity.ModeCompanion)
	if err != nil {
		t.Fatal(err)
	}

	if turn.Decision.Route != router.RouteNano {
		t.Errorf("route = %s, want nano", turn.Decision.Route)
	}
	st := turn.State
	if st.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no repair cycle)", st.Attempts)
	}
	if st.FinalOutput != "hey! how was your day?" {
		t.Errorf("final output = %q", st.FinalOutput)
	}
	if len(st.Plan) != 1 {
		t.Errorf("plan = %v, want one step for smalltalk", st.Plan)
	}
	if len(captured.states) != 1 || captured.states[0].TurnID != st.TurnID {
		t.Error("delivered turn not handed to the critique queue")
	}
}

func TestPendingCorrectionsConsumedIntoPrompt(t *testing.T) {
	client := &mockClient{responses: []string{
		"1. answer", "a draft", approveVerdict,
	}}
	driver, _, st := newTestDriver(t, client)

	if err := st.AddPendingCorrection("s1", "t0", "moderate", `["too long"]`, "Keep it under three sentences.", "old response"); err != nil {
		t.Fatal(err)
	}

	turn, err := driver.RunTurn(context.Background(), "s1", "u1", "selene", "what should i cook tonight", identity.ModeCompanion)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(turn.State.CorrectionPrompt, "Keep it under three sentences.") {
		t.Errorf("correction prompt = %q", turn.State.CorrectionPrompt)
	}

	// Consumed: a second turn sees no correction.
	client.mu.Lock()
	client.responses = []string{"1. answer", "another draft", approveVerdict}
	client.mu.Unlock()
	turn, err = driver.RunTurn(context.Background(), "s1", "u1", "selene", "thanks!", identity.ModeCompanion)
	if err != nil {
		t.Fatal(err)
	}
	if turn.State.CorrectionPrompt != "" {
		t.Errorf("correction prompt carried over: %q", turn.State.CorrectionPrompt)
	}
}

func TestResolverSelectsModelPerTier(t *testing.T) {
	client := &mockClient{responses: []string{
		"1. Say hi back.", "hey!", approveVerdict,
	}}
	driver, _, _ := newTestDriver(t, client)
	driver.resolver = provider.NewResolver(func(userID, task string) (provider.Selection, error) {
		return provider.Selection{Provider: "anthropic", Model: "custom-" + task}, nil
	}, time.Minute, nil)

	if _, err := driver.RunTurn(context.Background(), "s1", "u1", "selene", "hey", identity.ModeCompanion); err != nil {
		t.Fatal(err)
	}

	var draftModel string
	client.mu.Lock()
	for _, req := range client.requests {
		if strings.HasPrefix(req.Options.LoggingContext, "generator.draft") {
			draftModel = req.Model
		}
	}
	client.mu.Unlock()
	if draftModel != "custom-nano" {
		t.Errorf("draft model = %q, want the resolver's selection for the nano tier", draftModel)
	}
}

func TestUnknownIdentityFailsTurn(t *testing.T) {
	driver, _, _ := newTestDriver(t, &mockClient{})
	if _, err := driver.RunTurn(context.Background(), "s1", "u1", "nobody", "hey", identity.ModeCompanion); err == nil {
		t.Fatal("expected error for unknown identity id")
	}
}

package pipeline

import (
	"context"
	"strings"

	"selene/internal/config"
	"selene/internal/identity"
	"selene/internal/logging"
	"selene/internal/provider"
	"selene/internal/router"
	"selene/internal/state"
	"selene/internal/store"
)

// CritiqueEnqueuer receives completed turns for asynchronous review.
// Enqueue must be fire-and-forget: it never blocks or fails the turn.
type CritiqueEnqueuer interface {
	Enqueue(st *State)
}

// HintSource renders a user's accumulated behavioral hints as free text
// for the draft prompt.
type HintSource interface {
	RenderHints(userID string) string
}

// Driver runs the full synchronous turn: route, advance, plan, draft,
// review, bounded repair, then hands the delivered turn to the critique
// queue.
type Driver struct {
	router     *router.Router
	manager    *state.Manager
	planner    *Planner
	generator  *Generator
	supervisor *Supervisor
	registry   *identity.Registry
	store      *store.Store
	hints      HintSource
	critique   CritiqueEnqueuer
	resolver   *provider.Resolver
	llm        config.LLMConfig
	cfg        config.PipelineConfig
}

// DriverDeps collects the Driver's collaborators.
type DriverDeps struct {
	Router     *router.Router
	Manager    *state.Manager
	Planner    *Planner
	Generator  *Generator
	Supervisor *Supervisor
	Registry   *identity.Registry
	Store      *store.Store
	Hints      HintSource
	Critique   CritiqueEnqueuer
	Resolver   *provider.Resolver
	LLM        config.LLMConfig
	Pipeline   config.PipelineConfig
}

// NewDriver creates a Driver. Hints and Critique may be nil; the turn
// then runs without feedback injection or post-hoc review.
func NewDriver(deps DriverDeps) *Driver {
	return &Driver{
		router:     deps.Router,
		manager:    deps.Manager,
		planner:    deps.Planner,
		generator:  deps.Generator,
		supervisor: deps.Supervisor,
		registry:   deps.Registry,
		store:      deps.Store,
		hints:      deps.Hints,
		critique:   deps.Critique,
		resolver:   deps.Resolver,
		llm:        deps.LLM,
		cfg:        deps.Pipeline,
	}
}

// Turn is the delivered result of one turn.
type Turn struct {
	State    *State
	Decision *router.Decision
}

// RunTurn handles one inbound message end to end. Turns for the same
// session must be serialized by the caller.
func (d *Driver) RunTurn(ctx context.Context, sessionID, userID, identityID, message string, mode identity.Mode) (*Turn, error) {
	doc, err := d.registry.Latest(identityID)
	if err != nil {
		return nil, err
	}

	decision := d.router.QuickRoute(message)
	if decision == nil {
		decision = d.router.Route(ctx, message, router.Context{SessionID: sessionID, UserID: userID})
	}

	st := NewState(sessionID, userID, message, mode, doc.Ref())
	d.prepare(ctx, st)

	d.planner.Plan(ctx, st, doc)
	d.manager.RecordPlan(sessionID, st.TurnID, strings.Join(st.Plan, "; "))

	model := d.modelFor(userID, decision)
	d.runLoop(ctx, st, doc, model)

	if d.critique != nil {
		d.critique.Enqueue(st)
	}
	return &Turn{State: st, Decision: decision}, nil
}

// prepare advances session state and loads feedback for the prompt:
// injected hints and any pending corrections from earlier critiques.
func (d *Driver) prepare(ctx context.Context, st *State) {
	tc := d.manager.Advance(ctx, st.SessionID, st.TurnID, st.UserID, st.UserInput, nil)
	st.AgentView = tc.View
	st.Memories = tc.Memories

	if d.hints != nil {
		st.InjectedHints = d.hints.RenderHints(st.UserID)
	}

	corrections, err := d.store.TakePendingCorrections(st.SessionID)
	if err != nil {
		logging.Get(logging.CategorySupervisor).Warn("failed to load pending corrections for session %s: %v", st.SessionID, err)
		return
	}
	if len(corrections) > 0 {
		var b strings.Builder
		for _, c := range corrections {
			b.WriteString(c.FixInstructions)
			b.WriteString("\n")
		}
		st.CorrectionPrompt = strings.TrimSpace(b.String())
	}
}

// modelFor maps the routed tier to a model, consulting the resolver for
// per-user selections first and falling back to the configured tier map.
func (d *Driver) modelFor(userID string, decision *router.Decision) string {
	tier := "pro"
	fallback := d.llm.ProModel
	if decision.Route == router.RouteNano {
		tier = "nano"
		fallback = d.llm.NanoModel
	}

	if d.resolver != nil {
		if sel := d.resolver.Resolve(userID, tier); sel.Model != "" {
			return sel.Model
		}
	}
	return fallback
}

// runLoop drives Drafting -> Reviewing -> {Approved | Repairing} with a
// bounded repair count. Past the bound the last draft is force-accepted;
// the loop always terminates.
func (d *Driver) runLoop(ctx context.Context, st *State, doc *identity.Document, model string) {
	st.Phase = PhaseDrafting
	d.generator.Draft(ctx, st, doc, model)

	repairs := 0
	for {
		st.Phase = PhaseReviewing
		verdict := d.supervisor.Review(ctx, st, doc)

		if verdict.Approved {
			st.Phase = PhaseApproved
			st.FinalOutput = st.Draft
			st.Attempts++
			logging.Supervisor("turn %s approved after %d attempt(s)", st.TurnID, st.Attempts)
			return
		}

		st.CritiqueIssues = verdict.Issues
		st.Attempts++

		if repairs >= d.cfg.MaxRepairAttempts {
			st.Phase = PhaseApproved
			st.FinalOutput = st.Draft
			logging.Supervisor("turn %s force-accepted after %d repair attempts", st.TurnID, repairs)
			return
		}

		st.Phase = PhaseRepairing
		d.generator.Repair(ctx, st, doc, model)
		repairs++
	}
}

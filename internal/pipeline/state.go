// Package pipeline implements the synchronous per-turn generation chain:
// plan, draft, review, bounded repair. One State value is owned by one
// in-flight turn and never shared across turns.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"selene/internal/identity"
	"selene/internal/state"
)

// Phase is the turn state machine position.
type Phase string

const (
	PhaseDrafting  Phase = "drafting"
	PhaseReviewing Phase = "reviewing"
	PhaseRepairing Phase = "repairing"
	PhaseApproved  Phase = "approved"
)

// State carries everything one turn accumulates on its way from user
// input to delivered output.
type State struct {
	SessionID string
	TurnID    string
	UserID    string
	UserInput string

	Mode     identity.Mode
	Identity identity.Ref

	AgentView *state.AgentView
	Memories  *state.MemoryContext

	Plan           []string
	Draft          string
	CritiqueIssues []string
	Attempts       int
	FinalOutput    string

	// InjectedHints is accumulated critique-queue feedback rendered as
	// free text for the draft prompt.
	InjectedHints string

	// CorrectionPrompt carries pending corrections from earlier turns.
	CorrectionPrompt string

	Phase Phase
}

// NewState creates the turn's State with a fresh turn id.
func NewState(sessionID, userID, input string, mode identity.Mode, ref identity.Ref) *State {
	return &State{
		SessionID: sessionID,
		TurnID:    uuid.NewString(),
		UserID:    userID,
		UserInput: input,
		Mode:      mode,
		Identity:  ref,
		Phase:     PhaseDrafting,
	}
}

// RenderPlan formats the plan as a numbered list.
func (s *State) RenderPlan() string {
	var b strings.Builder
	for i, step := range s.Plan {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return b.String()
}

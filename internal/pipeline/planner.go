package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"selene/internal/config"
	"selene/internal/identity"
	"selene/internal/logging"
	"selene/internal/provider"
)

// =============================================================================
// PLANNER
// =============================================================================

// Planner turns the advanced turn state into a short ordered plan of
// response steps.
type Planner struct {
	client provider.Client
	model  string
	cfg    config.PipelineConfig
}

// NewPlanner creates a Planner. Planning runs on the low-cost model.
func NewPlanner(client provider.Client, model string, cfg config.PipelineConfig) *Planner {
	return &Planner{client: client, model: model, cfg: cfg}
}

var smalltalkPattern = regexp.MustCompile(
	`(?i)^(hey|hi|hello|yo|sup|good (morning|afternoon|evening|night)|how are you( doing| today)?|how's it going|what's up|morning|evening)[\s!?.]*$`)

// isSmalltalk reports whether the message is a short greeting or similar
// smalltalk that needs no multi-step plan.
func isSmalltalk(message string) bool {
	trimmed := strings.TrimSpace(message)
	return len(trimmed) <= 40 && smalltalkPattern.MatchString(trimmed)
}

// Plan fills st.Plan. Prompt assembly order is fixed: identity prompt
// (mode tag, baseline, guidelines, norms, style), then the rendered view,
// memories, user input and the task directive. Provider failure yields a
// static non-empty per-mode plan; the plan is never empty.
func (p *Planner) Plan(ctx context.Context, st *State, doc *identity.Document) *State {
	timer := logging.StartTimer(logging.CategoryPlanner, "Planner.Plan")
	defer timer.Stop()

	directive := p.directive(st)
	system := doc.RenderSystemPrompt(st.Mode)

	var b strings.Builder
	if st.AgentView != nil {
		b.WriteString(st.AgentView.Render())
		b.WriteString("\n")
	}
	if m := st.Memories.Render(); m != "" {
		b.WriteString(m)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User message: %s\n\n%s", st.UserInput, directive)

	content, err := p.client.CompleteWithSystem(ctx, system, b.String())
	if err != nil {
		logging.Planner("plan generation failed, using fallback plan: %v", err)
		st.Plan = fallbackPlan(st.Mode)
		return st
	}

	steps := parsePlan(content, p.cfg.MaxPlanSteps)
	if len(steps) == 0 {
		logging.PlannerDebug("no parseable steps in plan output, using fallback")
		steps = fallbackPlan(st.Mode)
	}
	st.Plan = steps
	logging.PlannerDebug("planned %d steps for turn %s", len(steps), st.TurnID)
	return st
}

// directive is complexity-adaptive: smalltalk in companion-like modes
// collapses to one natural step.
func (p *Planner) directive(st *State) string {
	if st.Mode.CompanionLike() && isSmalltalk(st.UserInput) {
		return "Plan the response in exactly one natural step. Output a single numbered line."
	}
	return fmt.Sprintf(
		"Plan the response as an ordered list of 1 to %d short steps, scaled to the complexity of the message. Output only numbered lines, one step per line.",
		p.cfg.MaxPlanSteps)
}

var planLinePattern = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*]\s+)(.+)$`)

// parsePlan extracts numbered or bulleted steps from model output.
func parsePlan(content string, maxSteps int) []string {
	var steps []string
	for _, line := range strings.Split(content, "\n") {
		if m := planLinePattern.FindStringSubmatch(line); m != nil {
			step := strings.TrimSpace(m[1])
			if step != "" {
				steps = append(steps, step)
			}
		}
		if len(steps) >= maxSteps {
			break
		}
	}
	return steps
}

// fallbackPlan is the static per-mode plan used when the provider fails.
// Downstream nodes assume a non-empty plan.
func fallbackPlan(mode identity.Mode) []string {
	switch mode {
	case identity.ModeVoice:
		return []string{"Answer briefly in plain spoken language."}
	case identity.ModeCompanion:
		return []string{
			"Acknowledge what the user said in a warm, natural way.",
			"Respond to their message directly.",
		}
	default:
		return []string{
			"Understand what the user is asking for.",
			"Answer the request directly and completely.",
		}
	}
}

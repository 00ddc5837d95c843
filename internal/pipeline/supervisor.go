package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"selene/internal/config"
	"selene/internal/identity"
	"selene/internal/logging"
	"selene/internal/provider"
)

// =============================================================================
// SUPERVISOR
// =============================================================================

// Verdict is the structured review judgment. If Approved is true, Issues
// is empty.
type Verdict struct {
	Approved        bool     `json:"approved"`
	Issues          []string `json:"issues"`
	FixInstructions string   `json:"fix_instructions"`
}

// Supervisor validates drafts. Quick deterministic checks run first; the
// judge model is only consulted when every quick check passes, so a
// lenient judge can never override them.
type Supervisor struct {
	client provider.Client
	model  string
	cfg    config.PipelineConfig
}

// NewSupervisor creates a Supervisor. Judging runs on the low-cost model.
func NewSupervisor(client provider.Client, model string, cfg config.PipelineConfig) *Supervisor {
	return &Supervisor{client: client, model: model, cfg: cfg}
}

// Review runs the two-phase check over the current draft.
func (s *Supervisor) Review(ctx context.Context, st *State, doc *identity.Document) *Verdict {
	timer := logging.StartTimer(logging.CategorySupervisor, "Supervisor.Review")
	defer timer.Stop()

	if issues := s.quickChecks(st); len(issues) > 0 {
		logging.Supervisor("quick checks rejected turn %s: %v", st.TurnID, issues)
		return &Verdict{
			Approved:        false,
			Issues:          issues,
			FixInstructions: "Rewrite the response resolving every listed issue.",
		}
	}

	return s.judge(ctx, st, doc)
}

// ----------------------------------------------------------------------------
// Quick deterministic checks
// ----------------------------------------------------------------------------

var forbiddenCharPattern = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f�]")

var markdownPatterns = []*regexp.Regexp{
	regexp.MustCompile("```"),
	regexp.MustCompile(`(?m)^#{1,6}\s`),
	regexp.MustCompile(`\*\*[^*]+\*\*`),
	regexp.MustCompile(`(?m)^\s*[-*]\s+\S`),
	regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`),
}

// toolClaims maps hallucination phrases to the tool keyword that must
// appear in memory for the claim to be legitimate.
var toolClaims = []struct {
	pattern *regexp.Regexp
	tool    string
}{
	{regexp.MustCompile(`(?i)\b(i searched|i've searched|search results|i looked (it|that) up)\b`), "search"},
	{regexp.MustCompile(`(?i)\b(your calendar|i checked your calendar|on your schedule)\b`), "calendar"},
	{regexp.MustCompile(`(?i)\b(i('ve)? set a reminder|reminder is set)\b`), "reminder"},
	{regexp.MustCompile(`(?i)\b(i('ve)? (created|added) (a |the )?task)\b`), "task"},
	{regexp.MustCompile(`(?i)\b(i('ve)? sent (the |an? )?(email|message))\b`), "sent"},
}

func (s *Supervisor) quickChecks(st *State) []string {
	var issues []string

	if forbiddenCharPattern.MatchString(st.Draft) {
		issues = append(issues, "response contains forbidden control characters")
	}

	if st.Mode.ShortForm() {
		for _, p := range markdownPatterns {
			if p.MatchString(st.Draft) {
				issues = append(issues, "response contains markdown formatting, which is not allowed in this mode")
				break
			}
		}
		if len(st.Draft) > s.cfg.ShortFormMaxChars {
			issues = append(issues, fmt.Sprintf(
				"response is too long for this mode (%d chars, limit %d)", len(st.Draft), s.cfg.ShortFormMaxChars))
		}
	}

	for _, claim := range toolClaims {
		if claim.pattern.MatchString(st.Draft) && !s.memoryMentions(st, claim.tool) {
			issues = append(issues, fmt.Sprintf(
				"response claims a %s action with no matching record of that action", claim.tool))
		}
	}

	return issues
}

// memoryMentions reports whether any memory block references the tool.
func (s *Supervisor) memoryMentions(st *State, tool string) bool {
	if st.Memories == nil {
		return false
	}
	for _, block := range st.Memories.RecentActions {
		if strings.Contains(strings.ToLower(block), tool) {
			return true
		}
	}
	for _, block := range st.Memories.Facts {
		if strings.Contains(strings.ToLower(block), tool) {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------------
// Judge model check
// ----------------------------------------------------------------------------

const judgeContract = `You are a strict but fair response reviewer. Reply with EXACTLY one JSON object and nothing else:
{"approved": <bool>, "issues": [<strings>], "fix_instructions": <string>}
Default to approving. Normal, natural, non-robotic responses are fine; only flag responses that clearly violate the rubric. Do not flag tone or phrasing preferences.`

// judge runs the low-temperature judge call. Any failure, including an
// unparseable reply, yields a fail-open approved verdict: availability is
// prioritized over strict enforcement in the synchronous path.
func (s *Supervisor) judge(ctx context.Context, st *State, doc *identity.Document) *Verdict {
	var b strings.Builder
	b.WriteString("Rubric:\n")
	b.WriteString(doc.RenderRubric())
	fmt.Fprintf(&b, "\nMode: %s\n\nResponse to review:\n%s", st.Mode, st.Draft)

	result, err := s.client.CompleteWithOptions(ctx, provider.Request{
		Model: s.model,
		Messages: []provider.Message{
			{Role: "system", Content: judgeContract},
			{Role: "user", Content: b.String()},
		},
		Options: provider.Options{
			Temperature:    s.cfg.JudgeTemperature,
			MaxTokens:      512,
			LoggingContext: "supervisor.judge:" + st.TurnID,
		},
	})
	if err != nil {
		logging.Supervisor("judge call failed for turn %s, failing open: %v", st.TurnID, err)
		return &Verdict{Approved: true}
	}

	verdict, err := parseVerdict(result.Content)
	if err != nil {
		logging.Supervisor("judge verdict unparseable for turn %s, failing open: %v", st.TurnID, err)
		return &Verdict{Approved: true}
	}
	logging.SupervisorDebug("judge verdict for turn %s: approved=%v issues=%d",
		st.TurnID, verdict.Approved, len(verdict.Issues))
	return verdict
}

// parseVerdict extracts the first JSON object from judge output and
// normalizes it: approved implies no issues.
func parseVerdict(content string) (*Verdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in judge output")
	}

	var v Verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("failed to parse verdict: %w", err)
	}
	if v.Approved {
		v.Issues = nil
		v.FixInstructions = ""
	}
	return &v, nil
}

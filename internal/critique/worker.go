package critique

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"selene/internal/identity"
	"selene/internal/logging"
	"selene/internal/pipeline"
	"selene/internal/state"
)

// process runs one critique job end to end and persists its result. The
// returned error requeues the job for retry; hint and correction writes
// that fail individually are logged, not retried.
func (q *Queue) process(ctx context.Context, turnID string, payloadJSON string, userID string) error {
	started := time.Now()

	var payload JobPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return fmt.Errorf("invalid job payload: %w", err)
	}

	// The identity document is pinned to the version recorded at turn
	// time, not the current version.
	doc, err := q.registry.Get(identity.Ref{ID: payload.IdentityID, Version: payload.IdentityVersion})
	if err != nil {
		return fmt.Errorf("pinned identity %s v%d unavailable: %w", payload.IdentityID, payload.IdentityVersion, err)
	}

	st := &pipeline.State{
		SessionID: payload.SessionID,
		TurnID:    payload.TurnID,
		UserID:    payload.UserID,
		UserInput: payload.UserInput,
		Mode:      payload.Mode,
		Identity:  doc.Ref(),
		Plan:      payload.Plan,
		Draft:     payload.Draft,
		Memories:  &state.MemoryContext{},
	}

	verdict := q.supervisor.Review(ctx, st, doc)
	result := &JobResult{
		Approved:        verdict.Approved,
		Issues:          verdict.Issues,
		FixInstructions: verdict.FixInstructions,
		Severity:        severityFor(len(verdict.Issues)),
	}

	result.HintsGenerated = q.writeHints(&payload, verdict.Issues)

	if !verdict.Approved {
		issuesJSON, _ := json.Marshal(verdict.Issues)
		if err := q.store.AddPendingCorrection(
			payload.SessionID, payload.TurnID, result.Severity,
			string(issuesJSON), verdict.FixInstructions, payload.Draft,
		); err != nil {
			logging.Critique("failed to persist correction for turn %s: %v", payload.TurnID, err)
		}
	}

	q.notifier.Notify(&payload, result)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode job result: %w", err)
	}
	if err := q.store.CompleteCritiqueJob(turnID, string(resultJSON), time.Since(started).Milliseconds()); err != nil {
		return fmt.Errorf("failed to record job result: %w", err)
	}

	logging.CritiqueDebug("processed critique for turn %s in %v (severity=%s)",
		payload.TurnID, time.Since(started), result.Severity)
	return nil
}

// writeHints maps issues to hint types and upserts session- and
// user-scoped hints. Returns the distinct hint types generated.
func (q *Queue) writeHints(payload *JobPayload, issues []string) []string {
	seen := make(map[string]bool)
	var generated []string

	for _, issue := range issues {
		rule := classifyIssue(issue)
		if rule == nil || seen[rule.hintType] {
			continue
		}
		seen[rule.hintType] = true

		if err := q.store.UpsertSessionHint(payload.SessionID, rule.hintType, rule.text); err != nil {
			logging.Critique("failed to upsert session hint %s: %v", rule.hintType, err)
		}
		if err := q.store.UpsertUserHint(payload.UserID, rule.hintType, rule.text, q.cfg.HintWeightStep, q.cfg.HintMaxWeight); err != nil {
			logging.Critique("failed to upsert user hint %s: %v", rule.hintType, err)
		}
		generated = append(generated, rule.hintType)
	}
	return generated
}

// RenderHints renders a user's accumulated hints as prompt text, highest
// weight first. This is the feedback path into future generation prompts.
func (q *Queue) RenderHints(userID string) string {
	hints, err := q.store.ListUserHints(userID)
	if err != nil {
		logging.Critique("failed to load hints for user %s: %v", userID, err)
		return ""
	}
	if len(hints) == 0 {
		return ""
	}

	var b strings.Builder
	for _, h := range hints {
		fmt.Fprintf(&b, "- %s\n", h.Text)
	}
	return strings.TrimSpace(b.String())
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"selene/internal/config"
	"selene/internal/identity"
	"selene/internal/logging"
	"selene/internal/provider"
)

// =============================================================================
// GENERATOR
// =============================================================================

// ErrorMarker prefixes the draft when draft-mode generation fails, so the
// delivery layer can detect it and surface a safe fallback instead of
// silently dropping the turn.
const ErrorMarker = "[selene-error]"

// Generator produces and repairs response drafts.
type Generator struct {
	client provider.Client
	cfg    config.PipelineConfig
}

// NewGenerator creates a Generator.
func NewGenerator(client provider.Client, cfg config.PipelineConfig) *Generator {
	return &Generator{client: client, cfg: cfg}
}

func (g *Generator) maxTokens(mode identity.Mode) int {
	if mode.ShortForm() {
		return g.cfg.MaxTokensShort
	}
	return g.cfg.MaxTokens
}

// complete prefers the provider's streaming API when available. The
// draft is buffered to completion either way; streaming keeps long
// generations from tripping whole-response timeouts.
func (g *Generator) complete(ctx context.Context, req provider.Request) (*provider.Result, error) {
	s, ok := g.client.(provider.Streamer)
	if !ok {
		return g.client.CompleteWithOptions(ctx, req)
	}

	ch, err := s.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	var usage *provider.Result
	for chunk := range ch {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		b.WriteString(chunk.Delta)
		if chunk.Done {
			usage = chunk.Usage
		}
	}
	if usage == nil {
		// Stream ended without the terminal summary chunk.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, provider.ErrNoCompletion
	}
	usage.Content = strings.TrimSpace(b.String())
	return usage, nil
}

// Draft generates the first draft: full identity prompt plus injected
// hints, memories, plan, optional correction prompt and the user input.
// Provider failure sets a visible error marker draft, never an empty one.
func (g *Generator) Draft(ctx context.Context, st *State, doc *identity.Document, model string) *State {
	timer := logging.StartTimer(logging.CategoryGenerator, "Generator.Draft")
	defer timer.Stop()

	system := doc.RenderSystemPrompt(st.Mode)
	if st.InjectedHints != "" {
		system += "\nLearned adjustments from past feedback:\n" + st.InjectedHints
	}

	var b strings.Builder
	if m := st.Memories.Render(); m != "" {
		b.WriteString(m)
		b.WriteString("\n")
	}
	if len(st.Plan) > 0 {
		b.WriteString("Response plan:\n")
		b.WriteString(st.RenderPlan())
		b.WriteString("\n")
	}
	if st.CorrectionPrompt != "" {
		b.WriteString("Correction from a previous review:\n")
		b.WriteString(st.CorrectionPrompt)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "User message: %s", st.UserInput)

	result, err := g.complete(ctx, provider.Request{
		Model: model,
		Messages: []provider.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: b.String()},
		},
		Options: provider.Options{
			Temperature:    g.cfg.DraftTemperature,
			MaxTokens:      g.maxTokens(st.Mode),
			LoggingContext: "generator.draft:" + st.TurnID,
		},
	})
	if err != nil {
		logging.Generator("draft generation failed for turn %s: %v", st.TurnID, err)
		st.Draft = fmt.Sprintf("%s draft generation failed: %v", ErrorMarker, err)
		return st
	}

	st.Draft = result.Content
	logging.GeneratorDebug("draft for turn %s: %d chars (%d out tokens)",
		st.TurnID, len(result.Content), result.OutputTokens)
	return st
}

// Repair regenerates the draft at lower temperature against the
// enumerated critique issues. Success replaces the draft and clears the
// issues so the caller re-enters review; failure preserves the prior
// draft and increments Attempts.
func (g *Generator) Repair(ctx context.Context, st *State, doc *identity.Document, model string) *State {
	timer := logging.StartTimer(logging.CategoryGenerator, "Generator.Repair")
	defer timer.Stop()

	var b strings.Builder
	b.WriteString("Your previous draft was rejected by review. Fix ALL of the listed issues and output only the corrected response.\n\n")
	if len(st.Plan) > 0 {
		b.WriteString("Original plan:\n")
		b.WriteString(st.RenderPlan())
		b.WriteString("\n")
	}
	b.WriteString("Previous draft:\n")
	b.WriteString(st.Draft)
	b.WriteString("\n\nIssues to fix:\n")
	for i, issue := range st.CritiqueIssues {
		fmt.Fprintf(&b, "%d. %s\n", i+1, issue)
	}
	fmt.Fprintf(&b, "\nUser message: %s", st.UserInput)

	result, err := g.complete(ctx, provider.Request{
		Model: model,
		Messages: []provider.Message{
			{Role: "system", Content: doc.RenderSystemPrompt(st.Mode)},
			{Role: "user", Content: b.String()},
		},
		Options: provider.Options{
			Temperature:    g.cfg.RepairTemperature,
			MaxTokens:      g.maxTokens(st.Mode),
			LoggingContext: "generator.repair:" + st.TurnID,
		},
	})
	if err != nil {
		logging.Generator("repair failed for turn %s, keeping prior draft: %v", st.TurnID, err)
		st.Attempts++
		return st
	}

	st.Draft = result.Content
	st.CritiqueIssues = nil
	logging.GeneratorDebug("repaired draft for turn %s: %d chars", st.TurnID, len(result.Content))
	return st
}

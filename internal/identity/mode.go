package identity

import (
	"fmt"
	"strings"
)

// Mode is the conversation form factor. Prompt assembly is mode-dependent
// and each variant has exactly one renderer so composition stays exhaustive.
type Mode string

const (
	// ModeAssistant is the default long-form helpful mode.
	ModeAssistant Mode = "assistant"

	// ModeCompanion is the casual companion mode. Smalltalk collapses
	// planning to a single natural step.
	ModeCompanion Mode = "companion"

	// ModeVoice is short-form: markdown is forbidden and responses are
	// length-capped.
	ModeVoice Mode = "voice"
)

// ParseMode parses a mode string, defaulting to assistant.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCompanion:
		return ModeCompanion
	case ModeVoice:
		return ModeVoice
	default:
		return ModeAssistant
	}
}

// ShortForm reports whether this mode forbids markdown and caps length.
func (m Mode) ShortForm() bool {
	return m == ModeVoice
}

// CompanionLike reports whether smalltalk should collapse planning.
func (m Mode) CompanionLike() bool {
	return m == ModeCompanion || m == ModeVoice
}

// RenderSystemPrompt renders the full identity prompt for a mode:
// traits, shared baseline, mode guidelines, behavioral norms, style rules,
// mode-switch guardrail, capability list. One renderer per mode variant.
func (d *Document) RenderSystemPrompt(mode Mode) string {
	switch mode {
	case ModeCompanion:
		return d.renderCompanion()
	case ModeVoice:
		return d.renderVoice()
	default:
		return d.renderAssistant()
	}
}

func (d *Document) renderAssistant() string {
	var sb strings.Builder
	sb.WriteString("[mode: assistant]\n\n")
	d.renderCommon(&sb, ModeAssistant)
	return sb.String()
}

func (d *Document) renderCompanion() string {
	var sb strings.Builder
	sb.WriteString("[mode: companion]\n\n")
	d.renderCommon(&sb, ModeCompanion)
	return sb.String()
}

func (d *Document) renderVoice() string {
	var sb strings.Builder
	sb.WriteString("[mode: voice]\n\n")
	d.renderCommon(&sb, ModeVoice)
	sb.WriteString("Voice constraints: plain spoken text only. No markdown, no lists, no code fences. Keep it brief.\n")
	return sb.String()
}

func (d *Document) renderCommon(sb *strings.Builder, mode Mode) {
	renderList(sb, "Core traits:", d.Traits)
	renderList(sb, "Baseline rules:", d.SharedBaseline)
	renderList(sb, fmt.Sprintf("Guidelines (%s):", mode), d.ModeGuidelines[string(mode)])
	renderList(sb, "Behavioral norms:", d.BehavioralNorms)
	renderList(sb, fmt.Sprintf("Style (%s):", mode), d.StyleRules[string(mode)])
	if d.ModeSwitchGuardrail != "" {
		sb.WriteString("Guardrail: ")
		sb.WriteString(d.ModeSwitchGuardrail)
		sb.WriteString("\n\n")
	}
	renderList(sb, "Capabilities:", d.Capabilities)
}

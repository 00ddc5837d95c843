// Package identity manages identity/style documents: the externally
// authored definition of who the agent is and how it should speak.
// Documents are keyed by id+version; the critique worker re-reviews
// delivered responses against the version in force at turn time, so the
// registry keeps every loaded version and never mutates one in place.
package identity

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one versioned identity/style definition.
type Document struct {
	ID      string `yaml:"id"`
	Version int    `yaml:"version"`

	// Traits are the core personality traits rendered at the top of every
	// generation prompt.
	Traits []string `yaml:"traits"`

	// SharedBaseline holds mode-independent rules.
	SharedBaseline []string `yaml:"shared_baseline"`

	// ModeGuidelines holds per-mode behavioral guidelines.
	ModeGuidelines map[string][]string `yaml:"mode_guidelines"`

	// BehavioralNorms apply in every mode.
	BehavioralNorms []string `yaml:"behavioral_norms"`

	// StyleRules holds per-mode style rules.
	StyleRules map[string][]string `yaml:"style_rules"`

	// ModeSwitchGuardrail prevents the model from drifting between modes
	// mid-conversation.
	ModeSwitchGuardrail string `yaml:"mode_switch_guardrail"`

	// Capabilities lists the tools/actions the agent may claim to have.
	Capabilities []string `yaml:"capabilities"`

	// Rubric is the compliance rubric the Supervisor judges drafts against.
	Rubric []string `yaml:"rubric"`
}

// ParseDocument parses a YAML identity document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse identity document: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("identity document missing id")
	}
	if doc.Version <= 0 {
		doc.Version = 1
	}
	return &doc, nil
}

// LoadDocument reads and parses an identity document from disk.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity document: %w", err)
	}
	return ParseDocument(data)
}

// Ref identifies a document version.
type Ref struct {
	ID      string
	Version int
}

// Ref returns this document's reference.
func (d *Document) Ref() Ref {
	return Ref{ID: d.ID, Version: d.Version}
}

// RenderRubric renders the compliance rubric as prompt text.
func (d *Document) RenderRubric() string {
	if len(d.Rubric) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Compliance rubric:\n")
	for _, r := range d.Rubric {
		sb.WriteString("- ")
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderList(sb *strings.Builder, header string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(header)
	sb.WriteString("\n")
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

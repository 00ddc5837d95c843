package critique

import "strings"

// hintRule maps an issue substring to a hint type and its canonical
// rendered text. The table is ordered; the first matching rule per issue
// wins.
type hintRule struct {
	substr   string
	hintType string
	text     string
}

var hintTaxonomy = []hintRule{
	{"too long", "brevity", "Keep responses shorter and more concise."},
	{"markdown", "formatting", "Use plain text only; no markdown formatting."},
	{"control character", "encoding", "Emit only plain printable text."},
	{"no matching record", "tool_claims", "Never claim tool or search results that did not happen."},
	{"hallucinat", "tool_claims", "Never claim tool or search results that did not happen."},
	{"robotic", "tone", "Sound natural and conversational, not scripted."},
	{"repetiti", "repetition", "Avoid repeating the same phrasing across responses."},
	{"off-topic", "relevance", "Stay focused on what the user actually asked."},
	{"ignor", "relevance", "Stay focused on what the user actually asked."},
	{"tone", "tone", "Sound natural and conversational, not scripted."},
	{"style", "style", "Follow the configured style rules for this mode."},
	{"inaccura", "accuracy", "Do not state unverified claims as fact."},
	{"incorrect", "accuracy", "Do not state unverified claims as fact."},
}

// classifyIssue maps one issue string to a hint rule, or nil when no
// rule matches.
func classifyIssue(issue string) *hintRule {
	lower := strings.ToLower(issue)
	for i := range hintTaxonomy {
		if strings.Contains(lower, hintTaxonomy[i].substr) {
			return &hintTaxonomy[i]
		}
	}
	return nil
}

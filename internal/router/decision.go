// Package router classifies an inbound message and decides which compute
// tier handles it. Every turn produces exactly one immutable Decision.
// Failure policy is asymmetric with the rest of the pipeline: anything
// that goes wrong here escalates toward more scrutiny, never less.
package router

import "fmt"

// Class is the intent class of a message.
type Class string

const (
	ClassChat       Class = "chat"       // casual conversation
	ClassTransform  Class = "transform"  // rewrite/translate/summarize of given text
	ClassFactual    Class = "factual"    // knowledge question
	ClassActionable Class = "actionable" // wants something done
)

// Route is the compute tier that handles the message.
type Route string

const (
	RouteNano     Route = "nano"      // cheapest model, no tools
	RoutePro      Route = "pro"       // full model, no tools
	RouteProTools Route = "pro+tools" // full model with tool access
)

// Risk grades the cost of a wrong answer.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Confidence requirement levels.
const (
	ConfidenceEstimate = "estimate"
	ConfidenceVerified = "verified"
)

// Decision sources.
const (
	SourceHardRule      = "hard_rule"
	SourceQuickRule     = "quick_rule"
	SourceKeywordRule   = "keyword_classifier"
	SourceLLMClassifier = "llm_classifier"
	SourceFailSafe      = "fail_safe"
)

// Decision is the immutable routing decision for one message.
type Decision struct {
	Class              Class    `json:"class"`
	NeedsFreshData     bool     `json:"needs_fresh_data"`
	NeedsTools         bool     `json:"needs_tools"`
	RiskIfWrong        Risk     `json:"risk_if_wrong"`
	ConfidenceRequired string   `json:"confidence_required"`
	Route              Route    `json:"route"`
	DecisionSource     string   `json:"decision_source"`
	DecisionTimeMs     int64    `json:"decision_time_ms"`
	MatchedPatterns    []string `json:"matched_patterns,omitempty"`
}

// String returns a compact summary for logs.
func (d *Decision) String() string {
	return fmt.Sprintf("class=%s route=%s risk=%s fresh=%v tools=%v source=%s",
		d.Class, d.Route, d.RiskIfWrong, d.NeedsFreshData, d.NeedsTools, d.DecisionSource)
}

// Context carries optional per-message routing context.
type Context struct {
	UserID    string
	SessionID string
	Mode      string
}

// escalated builds the forced hard-escalation decision.
func escalated(source string, patterns []string) *Decision {
	return &Decision{
		Class:              ClassActionable,
		NeedsFreshData:     true,
		NeedsTools:         true,
		RiskIfWrong:        RiskHigh,
		ConfidenceRequired: ConfidenceVerified,
		Route:              RouteProTools,
		DecisionSource:     source,
		MatchedPatterns:    patterns,
	}
}

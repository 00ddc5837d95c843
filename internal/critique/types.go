// Package critique implements the asynchronous post-delivery review
// queue. Delivered turns are re-reviewed by the same Supervisor used
// synchronously, findings become typed behavioral hints and pending
// corrections, and accumulated hints feed back into future generation
// prompts. The queue is fully decoupled from synchronous turn latency.
package critique

import (
	"selene/internal/identity"
)

// Severity bands for critique findings.
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeveritySerious  = "serious"
)

// severityFor derives severity from issue count: 0, 1-2, 3+.
func severityFor(issueCount int) string {
	switch {
	case issueCount == 0:
		return SeverityMinor
	case issueCount <= 2:
		return SeverityModerate
	default:
		return SeveritySerious
	}
}

// JobPayload is the full turn snapshot carried by a critique job.
type JobPayload struct {
	SessionID string        `json:"session_id"`
	TurnID    string        `json:"turn_id"`
	UserID    string        `json:"user_id"`
	UserInput string        `json:"user_input"`
	Draft     string        `json:"draft"`
	Plan      []string      `json:"plan"`
	Mode      identity.Mode `json:"mode"`

	// Identity pins the document version in force at turn time, so
	// hints reflect the rules the draft was actually generated under.
	IdentityID      string `json:"identity_id"`
	IdentityVersion int    `json:"identity_version"`
}

// JobResult is the persisted outcome of one critique job.
type JobResult struct {
	Approved        bool     `json:"approved"`
	Issues          []string `json:"issues"`
	FixInstructions string   `json:"fix_instructions"`
	Severity        string   `json:"severity"`
	HintsGenerated  []string `json:"hints_generated"`
}

// Package state maintains the append-only per-session event log and the
// AgentView snapshot derived from it. The event log is the only durable
// source of truth for the view; the view is a pure fold over events and
// must be recomputable by full replay at any time.
package state

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Event types.
const (
	EventUserMessage   = "user_message"
	EventTopicChange   = "topic_change"
	EventMoodShift     = "mood_shift"
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventPlanSet       = "plan_set"
)

// Event is one append-only log entry for a session.
type Event struct {
	SessionID string    `json:"session_id"`
	TurnID    string    `json:"turn_id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

type messagePayload struct {
	Text string `json:"text"`
}

type topicPayload struct {
	Topic string `json:"topic"`
}

type moodPayload struct {
	Mood string `json:"mood"`
}

type taskPayload struct {
	Task string `json:"task"`
}

type planPayload struct {
	Plan string `json:"plan"`
}

func encodePayload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ====================================================================
// Event derivation
// ====================================================================

type keywordRule struct {
	label   string
	pattern *regexp.Regexp
}

// Rules are ordered; the first match wins, so a message touching two
// topics yields the same topic on every replay.
var topicRules = []keywordRule{
	{"work", regexp.MustCompile(`(?i)\b(work|job|meeting|boss|office|project|deadline)\b`)},
	{"food", regexp.MustCompile(`(?i)\b(food|eat|dinner|lunch|breakfast|cook|recipe|restaurant)\b`)},
	{"plans", regexp.MustCompile(`(?i)\b(plan|weekend|trip|vacation|schedule|calendar)\b`)},
	{"health", regexp.MustCompile(`(?i)\b(gym|exercise|workout|sleep|tired|sick|doctor)\b`)},
	{"music", regexp.MustCompile(`(?i)\b(music|song|album|playlist|concert|band)\b`)},
	{"movies", regexp.MustCompile(`(?i)\b(movie|film|show|series|watch|episode)\b`)},
	{"tech", regexp.MustCompile(`(?i)\b(computer|phone|app|code|software|internet)\b`)},
	{"feelings", regexp.MustCompile(`(?i)\b(feel|feeling|mood|emotion)\b`)},
}

var moodRules = []keywordRule{
	{"happy", regexp.MustCompile(`(?i)\b(happy|great|awesome|excited|amazing|wonderful)\b`)},
	{"sad", regexp.MustCompile(`(?i)\b(sad|down|depressed|unhappy|miserable)\b`)},
	{"stressed", regexp.MustCompile(`(?i)\b(stressed|overwhelmed|anxious|worried|nervous)\b`)},
	{"tired", regexp.MustCompile(`(?i)\b(tired|exhausted|sleepy|drained|burnt out)\b`)},
	{"angry", regexp.MustCompile(`(?i)\b(angry|mad|furious|annoyed|frustrated)\b`)},
}

var taskStartPattern = regexp.MustCompile(`(?i)\b(remind me|help me|i need to|can you (help|do)|let's (do|start|work on))\b`)
var taskDonePattern = regexp.MustCompile(`(?i)\b(done|finished|completed|all set|wrapped (it |that )?up)\b`)

func detectTopic(message string) string {
	for _, r := range topicRules {
		if r.pattern.MatchString(message) {
			return r.label
		}
	}
	return ""
}

func detectMood(message string) string {
	for _, r := range moodRules {
		if r.pattern.MatchString(message) {
			return r.label
		}
	}
	return ""
}

// DeriveEvents computes the events a user message implies relative to the
// current snapshot. A user_message event is always first; topic, mood and
// task events follow only when the message moves the view.
func DeriveEvents(view *AgentView, message string) []derived {
	out := []derived{{Type: EventUserMessage, Payload: encodePayload(messagePayload{Text: message})}}

	if topic := detectTopic(message); topic != "" && topic != view.CurrentTopic {
		out = append(out, derived{Type: EventTopicChange, Payload: encodePayload(topicPayload{Topic: topic})})
	}
	if mood := detectMood(message); mood != "" && mood != view.CurrentMood {
		out = append(out, derived{Type: EventMoodShift, Payload: encodePayload(moodPayload{Mood: mood})})
	}
	if view.ActiveTask == "" && taskStartPattern.MatchString(message) {
		task := strings.TrimSpace(message)
		if len(task) > 120 {
			task = task[:120]
		}
		out = append(out, derived{Type: EventTaskStarted, Payload: encodePayload(taskPayload{Task: task})})
	} else if view.ActiveTask != "" && taskDonePattern.MatchString(message) {
		out = append(out, derived{Type: EventTaskCompleted, Payload: encodePayload(taskPayload{Task: view.ActiveTask})})
	}

	return out
}

type derived struct {
	Type    string
	Payload string
}

package state

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AgentView is the derived snapshot of a session. It is a pure fold over
// the event log: Replay over the same events always yields the same view.
type AgentView struct {
	CurrentTopic     string `json:"current_topic"`
	CurrentMood      string `json:"current_mood"`
	ActiveTask       string `json:"active_task"`
	ActivePlan       string `json:"active_plan"`
	InteractionCount int    `json:"interaction_count"`
}

// Replay folds an ordered event sequence into a view. Unknown event
// types are skipped so old logs replay under newer code.
func Replay(events []Event) *AgentView {
	view := &AgentView{}
	for _, e := range events {
		apply(view, e)
	}
	return view
}

func apply(view *AgentView, e Event) {
	switch e.Type {
	case EventUserMessage:
		view.InteractionCount++
	case EventTopicChange:
		var p topicPayload
		if json.Unmarshal([]byte(e.Payload), &p) == nil && p.Topic != "" {
			view.CurrentTopic = p.Topic
		}
	case EventMoodShift:
		var p moodPayload
		if json.Unmarshal([]byte(e.Payload), &p) == nil && p.Mood != "" {
			view.CurrentMood = p.Mood
		}
	case EventTaskStarted:
		var p taskPayload
		if json.Unmarshal([]byte(e.Payload), &p) == nil {
			view.ActiveTask = p.Task
		}
	case EventTaskCompleted:
		view.ActiveTask = ""
	case EventPlanSet:
		var p planPayload
		if json.Unmarshal([]byte(e.Payload), &p) == nil {
			view.ActivePlan = p.Plan
		}
	}
}

// Render formats the view as prompt text. Empty fields are omitted.
func (v *AgentView) Render() string {
	var b strings.Builder
	b.WriteString("Current session state:\n")
	if v.CurrentTopic != "" {
		fmt.Fprintf(&b, "- Topic: %s\n", v.CurrentTopic)
	}
	if v.CurrentMood != "" {
		fmt.Fprintf(&b, "- User mood: %s\n", v.CurrentMood)
	}
	if v.ActiveTask != "" {
		fmt.Fprintf(&b, "- Active task: %s\n", v.ActiveTask)
	}
	if v.ActivePlan != "" {
		fmt.Fprintf(&b, "- Active plan: %s\n", v.ActivePlan)
	}
	fmt.Fprintf(&b, "- Interactions this session: %d\n", v.InteractionCount)
	return b.String()
}

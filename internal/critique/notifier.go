package critique

import "selene/internal/logging"

// Notifier receives review outcomes. Notification is best-effort: a
// failing notifier never fails the job.
type Notifier interface {
	Notify(payload *JobPayload, result *JobResult)
}

// LogNotifier writes review outcomes to the critique log.
type LogNotifier struct{}

// Notify logs the outcome.
func (LogNotifier) Notify(payload *JobPayload, result *JobResult) {
	if result.Approved {
		logging.Critique("turn %s reviewed clean (severity=%s)", payload.TurnID, result.Severity)
		return
	}
	logging.Critique("turn %s flagged: severity=%s issues=%d hints=%v",
		payload.TurnID, result.Severity, len(result.Issues), result.HintsGenerated)
}

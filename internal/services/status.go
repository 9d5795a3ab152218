package services

// RunStatus is the terminal state of a pipeline stage.
type RunStatus string

const (
	StatusCompleted     RunStatus = "completed"
	StatusStoppedQuota  RunStatus = "stopped_quota"
	StatusStoppedBudget RunStatus = "stopped_budget"
	StatusFailed        RunStatus = "failed"
)

// StatusFor maps the error that ended a stage to its run status. Quota and
// budget exhaustion are expected operating conditions, not failures.
func StatusFor(err error) RunStatus {
	switch Classify(err) {
	case KindNone:
		return StatusCompleted
	case KindQuota:
		return StatusStoppedQuota
	case KindBudget:
		return StatusStoppedBudget
	default:
		return StatusFailed
	}
}

// Stopped reports whether the stage ended early without failing.
func (s RunStatus) Stopped() bool {
	return s == StatusStoppedQuota || s == StatusStoppedBudget
}

// Failed reports whether the stage should surface a failing exit code.
func (s RunStatus) Failed() bool {
	return s == StatusFailed
}

// Label renders a human-facing description of the status.
func (s RunStatus) Label() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusStoppedQuota:
		return "stopped by quota"
	case StatusStoppedBudget:
		return "stopped by call budget"
	case StatusFailed:
		return "failed"
	default:
		return string(s)
	}
}

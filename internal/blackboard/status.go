// Package blackboard implements the Orchestrator's per-run inference
// status map and per-loop iteration Workspace, grounded on the teacher's
// internal/core/api_scheduler.go phase/state-machine discipline: an
// explicit enum plus an allowed-transition table, generalized from one
// shard's execution phases to one inference's lifecycle status.
package blackboard

// Status is the closed set of lifecycle states an inference passes
// through, per spec.md §4.7.
type Status int

const (
	Pending Status = iota
	Ready
	InProgress
	Completed
	Failed
	// CompletedSkipped covers both the "Pending -> Skipped" and
	// "descendant moves to Completed-Skipped" language of spec.md §4.7:
	// a timing skip always lands an inference here, whether it is the
	// timing-gated inference itself or one of its descendants.
	CompletedSkipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Ready:
		return "Ready"
	case InProgress:
		return "InProgress"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case CompletedSkipped:
		return "CompletedSkipped"
	default:
		return "UnknownStatus"
	}
}

// IsProducer reports whether this status counts as "has a producer" for
// Ready-selection condition 2 in spec.md §4.8: Completed and
// CompletedSkipped both count, a skipped inference's empty output is
// still "produced" for dependency purposes.
func (s Status) IsProducer() bool {
	return s == Completed || s == CompletedSkipped
}

var normalTransitions = map[Status]map[Status]bool{
	Pending:    {Ready: true, CompletedSkipped: true},
	Ready:      {InProgress: true},
	InProgress: {Completed: true, Failed: true},
}

// isValidTransition checks the table from spec.md §4.7. Completed/Failed
// back to Pending is NOT valid here — that path is reserved for explicit
// loop resets and PATCH/OVERWRITE reconciliation, which bypass this check
// via Blackboard.Reset and Blackboard.Reconcile.
func isValidTransition(from, to Status) bool {
	return normalTransitions[from][to]
}

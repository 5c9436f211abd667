package orchestrator

// stallDetector implements ProgressStall: a run with no ready inference
// and no Blackboard change for limit consecutive cycles is considered
// stuck rather than quietly spinning forever.
type stallDetector struct {
	limit          int
	stagnantCycles int
}

func newStallDetector(limit int) *stallDetector {
	return &stallDetector{limit: limit}
}

// tick records one cycle's outcome; progressed is true whenever the
// cycle dispatched at least one inference. It returns true once the
// stall threshold has been crossed.
func (d *stallDetector) tick(progressed bool) bool {
	if progressed {
		d.stagnantCycles = 0
		return false
	}
	d.stagnantCycles++
	return d.stagnantCycles >= d.limit
}

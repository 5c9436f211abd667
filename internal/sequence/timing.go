package sequence

import (
	"context"
	"fmt"

	"normcode/internal/compiler"
	"normcode/internal/refalgebra"
)

// timingSequence implements T, the only sequence kind permitted to query
// the Blackboard directly (spec.md §4.6.5): it decides whether its own
// subtree runs at all, and propagates a negative decision as a skip to
// every descendant inference.
type timingSequence struct{}

func (timingSequence) Run(ctx context.Context, rc RunContext) (Outcome, error) {
	wi, ok := rc.Inference.WorkingInterpretation.(compiler.TimingWI)
	if !ok {
		return Outcome{}, fmt.Errorf("timing: inference %s has no TimingWI", rc.Inference.ID)
	}

	proceed, err := evaluateGate(rc, wi)
	if err != nil {
		return Outcome{}, err
	}

	if proceed {
		return Outcome{Output: refalgebra.Singleton(refalgebra.ConcreteElement(true))}, nil
	}

	if rc.Blackboard != nil && len(rc.DescendantIDs) > 0 {
		if err := rc.Blackboard.SkipSubtree(rc.DescendantIDs, rc.LoopIteration); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{
		Output:     refalgebra.Singleton(refalgebra.SkipElement()),
		Skip:       true,
		SkippedIDs: rc.DescendantIDs,
	}, nil
}

// evaluateGate resolves the three Timing markers: "if" gates on the named
// condition's truth value, "if!" on its negation, and "after" gates on
// whether the named inference has already produced (Completed or
// CompletedSkipped both count, per Status.IsProducer).
func evaluateGate(rc RunContext, wi compiler.TimingWI) (bool, error) {
	switch wi.Marker {
	case compiler.TimingIf, compiler.TimingIfBang:
		ref, ok := rc.Inputs[wi.Condition]
		if !ok {
			return false, fmt.Errorf("timing: unknown condition concept %q", wi.Condition)
		}
		e, err := refalgebra.Get(ref, map[refalgebra.Axis]int{})
		if err != nil {
			return false, err
		}
		if e.IsSkip() {
			return false, nil
		}
		v, _ := e.Value()
		b, _ := v.(bool)
		if wi.Marker == compiler.TimingIfBang {
			return !b, nil
		}
		return b, nil
	case compiler.TimingAfter:
		if rc.Blackboard == nil {
			return false, fmt.Errorf("timing: no Blackboard configured for 'after' gate")
		}
		entry, ok := rc.Blackboard.Get(wi.Condition)
		if !ok {
			return false, fmt.Errorf("timing: unknown inference %q referenced by 'after' gate", wi.Condition)
		}
		return entry.Status.IsProducer(), nil
	default:
		return false, fmt.Errorf("timing: unknown marker %q", wi.Marker)
	}
}

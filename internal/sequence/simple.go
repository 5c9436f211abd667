package sequence

import (
	"context"
	"fmt"

	"normcode/internal/refalgebra"
)

// simpleSequence is the pass-through pipeline kept for test infrastructure
// only: the compiler never emits compiler.Simple from real source, but
// fixture plans used to exercise the orchestrator in isolation need a
// sequence kind with no paradigm, no perception, and no blackboard
// dependency at all.
type simpleSequence struct{}

func (simpleSequence) Run(ctx context.Context, rc RunContext) (Outcome, error) {
	if len(rc.Inputs) == 1 {
		for _, ref := range rc.Inputs {
			return Outcome{Output: refalgebra.Copy(ref)}, nil
		}
	}
	if len(rc.Inputs) == 0 {
		return Outcome{Output: refalgebra.Singleton(refalgebra.SkipElement())}, nil
	}
	return Outcome{}, fmt.Errorf("simple: expected at most one input, got %d", len(rc.Inputs))
}

package sequence

import (
	"context"
	"fmt"

	"normcode/internal/compiler"
	"normcode/internal/refalgebra"
)

// loopingSequence implements GR->LR: each Run call advances one
// iteration, storing that iteration's concepts into the shared Workspace
// and reporting Continue=true, until the loop base is exhausted, at which
// point it assembles the final joined output and reports Continue=false.
// The orchestrator is responsible for re-invoking Run with an incremented
// RunContext.LoopIteration as long as Continue is true.
type loopingSequence struct{}

func (loopingSequence) Run(ctx context.Context, rc RunContext) (Outcome, error) {
	wi, ok := rc.Inference.WorkingInterpretation.(compiler.LoopingWI)
	if !ok {
		return Outcome{}, fmt.Errorf("looping: inference %s has no LoopingWI", rc.Inference.ID)
	}
	base, ok := rc.Inputs[wi.LoopBaseConcept]
	if !ok {
		return Outcome{}, fmt.Errorf("looping: unknown loop base concept %q", wi.LoopBaseConcept)
	}
	axis, length := loopAxis(base)

	if rc.LoopIteration >= length {
		return finalizeLoop(rc, wi)
	}
	if rc.Workspace == nil {
		return Outcome{}, fmt.Errorf("looping: no Workspace configured")
	}

	e, err := refalgebra.Get(base, map[refalgebra.Axis]int{axis: rc.LoopIteration})
	if err != nil {
		return Outcome{}, err
	}
	current := refalgebra.Singleton(e)

	rc.Workspace.DeclareInvariants(wi.LoopIndex, invariantNames(wi.InLoopConcept))
	snapshot := map[string]*refalgebra.Reference{wi.CurrentLoopBaseConcept: current}
	for name := range wi.InLoopConcept {
		if ref, ok := rc.Inputs[name]; ok {
			snapshot[name] = ref
		}
	}
	rc.Workspace.Store(wi.LoopIndex, rc.LoopIteration, snapshot)

	return Outcome{Output: current, Continue: true}, nil
}

// loopAxis picks the loop base's own dimension to iterate: its first
// non-None axis, or NoneAxis itself (length 1) for a singleton base.
func loopAxis(base *refalgebra.Reference) (refalgebra.Axis, int) {
	for i, a := range base.Axes {
		if a != refalgebra.NoneAxis {
			return a, base.Shape[i]
		}
	}
	return refalgebra.NoneAxis, 1
}

func invariantNames(inLoop map[string]int) []string {
	names := make([]string, 0, len(inLoop))
	for name := range inLoop {
		names = append(names, name)
	}
	return names
}

// finalizeLoop joins every stored iteration's ConceptToInfer Reference
// along GroupBase, the "group_base re-assembles the per-iteration outputs"
// rule of spec.md §4.6.6.
func finalizeLoop(rc RunContext, wi compiler.LoopingWI) (Outcome, error) {
	_, length := loopAxis(rc.Inputs[wi.LoopBaseConcept])
	var refs []*refalgebra.Reference
	for i := 0; i < length; i++ {
		snap, ok := rc.Workspace.Get(wi.LoopIndex, i)
		if !ok {
			continue
		}
		ref, ok := snap[wi.ConceptToInfer]
		if !ok {
			continue
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return Outcome{Output: refalgebra.Singleton(refalgebra.SkipElement()), Continue: false}, nil
	}
	joined, err := refalgebra.Join(refs, refalgebra.Axis(wi.GroupBase))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Output: joined, Continue: false}, nil
}

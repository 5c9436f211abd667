package sequence

import (
	"context"
	"fmt"

	"normcode/internal/compiler"
	"normcode/internal/paradigm"
	"normcode/internal/refalgebra"
)

// imperativeSequence implements the IWI->IR->MFP->MVP->TVA->OR->OWI
// pipeline of spec.md §4.6.1, the base every other sequence kind except
// Simple extends.
type imperativeSequence struct{}

func (imperativeSequence) Run(ctx context.Context, rc RunContext) (Outcome, error) {
	st := &execState{}
	if err := runStages(ctx, rc, st, imperativeStages); err != nil {
		return Outcome{}, err
	}
	return st.outcome, nil
}

var imperativeStages = []stage{
	{"IWI", stageIWI},
	{"IR", stageIR},
	{"MFP", stageMFP},
	{"MVP", stageMVP},
	{"TVA", stageTVA},
	{"OR", stageOR},
	{"OWI", stageOWI},
}

// stageIWI reads the Imperative Working Interpretation off the compiled
// inference; every other stage reaches back into st.wi rather than
// re-deriving anything from the source tree.
func stageIWI(ctx context.Context, rc RunContext, st *execState) error {
	wi, ok := rc.Inference.WorkingInterpretation.(compiler.ImperativeWI)
	if !ok {
		// JudgementWI embeds ImperativeWI; judgementSequence hands this
		// stage list the embedded value directly, so a bare ImperativeWI
		// is the only shape this stage should ever see here.
		return fmt.Errorf("imperative: inference %s has no ImperativeWI", rc.Inference.ID)
	}
	st.wi = wi
	return nil
}

// stageIR is Input Resolution: rc.Inputs already holds one Reference per
// value/context concept name, bound by the orchestrator before Run is
// called; this stage just validates every name IWI's ValueOrder expects
// is actually present.
func stageIR(ctx context.Context, rc RunContext, st *execState) error {
	wi := st.wi.(compiler.ImperativeWI)
	for name := range wi.ValueOrder {
		if _, ok := rc.Inputs[name]; !ok {
			return fmt.Errorf("imperative: missing input reference for value %q", name)
		}
	}
	return nil
}

// stageMFP is Materialize From Paradigm: F_V runs here, once, using only
// the paradigm's declared vertical inputs.
func stageMFP(ctx context.Context, rc RunContext, st *execState) error {
	wi := st.wi.(compiler.ImperativeWI)
	if wi.Paradigm == "" {
		st.verticalCtx = map[string]interface{}{}
		return nil
	}
	if rc.Loader == nil {
		return fmt.Errorf("imperative: no paradigm Loader configured")
	}
	p, err := rc.Loader.Load(wi.Paradigm)
	if err != nil {
		return err
	}
	verticalInputs := map[string]interface{}{}
	for _, name := range p.VerticalInputs {
		if ref, ok := rc.Inputs[name]; ok {
			verticalInputs[name] = ref
		}
	}
	vctx, err := paradigm.RunVertical(ctx, p, rc.Registry, verticalInputs)
	if err != nil {
		return err
	}
	st.verticalCtx = vctx
	phi, err := paradigm.BuildComposition(p, rc.Registry, vctx)
	if err != nil {
		return err
	}
	st.phi = phi
	return nil
}

// stageMVP is Materialize Via Perception: any Sign-carrying input is
// transmuted through the PerceptionRouter, the single I/O boundary a
// sequence ever crosses.
func stageMVP(ctx context.Context, rc RunContext, st *execState) error {
	m, err := materializeInputs(ctx, rc)
	if err != nil {
		return err
	}
	st.materialized = m
	return nil
}

// stageTVA is Transform Via Application: apply the composed Phi to the
// materialized runtime values. A paradigm-less WI (body_faculty only,
// no composition) passes the single materialized value through.
func stageTVA(ctx context.Context, rc RunContext, st *execState) error {
	if st.phi == nil {
		wi := st.wi.(compiler.ImperativeWI)
		for name, pos := range wi.ValueOrder {
			if pos == 0 {
				st.result = st.materialized[name]
				return nil
			}
		}
		return nil
	}
	res, err := st.phi(ctx, st.materialized)
	if err != nil {
		return err
	}
	st.result = res
	return nil
}

// stageOR is Output Resolution: wrap TVA's raw result into a Reference,
// fanning a returned []interface{} out along CreateAxisOnListOutput when
// the WI asks for it.
func stageOR(ctx context.Context, rc RunContext, st *execState) error {
	wi := st.wi.(compiler.ImperativeWI)
	if wi.CreateAxisOnListOutput != "" {
		if list, ok := st.result.([]interface{}); ok {
			axis := refalgebra.Axis(wi.CreateAxisOnListOutput)
			ref, err := refalgebra.New([]refalgebra.Axis{axis}, refalgebra.Shape{len(list)})
			if err != nil {
				return err
			}
			for i, v := range list {
				if err := refalgebra.Set(ref, refalgebra.ConcreteElement(v), map[refalgebra.Axis]int{axis: i}); err != nil {
					return err
				}
			}
			st.outcome.Output = ref
			return nil
		}
	}
	st.outcome.Output = refalgebra.Singleton(refalgebra.ConcreteElement(st.result))
	return nil
}

// stageOWI is Output Working-Interpretation binding: a no-op for plain
// Imperative, kept as an explicit stage because Judgement overrides it
// with TIA's quantified assertion.
func stageOWI(ctx context.Context, rc RunContext, st *execState) error {
	return nil
}

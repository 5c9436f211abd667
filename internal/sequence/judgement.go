package sequence

import (
	"context"
	"fmt"
	"reflect"

	"normcode/internal/compiler"
	"normcode/internal/refalgebra"
)

// judgementSequence implements IWI->IR->MFP->MVP->TVA->OR->TIA->OWI: the
// same pipeline as Imperative with one extra stage, TIA, evaluating the
// quantified assertion over OR's result before OWI binds the output.
type judgementSequence struct{}

func (judgementSequence) Run(ctx context.Context, rc RunContext) (Outcome, error) {
	st := &execState{}
	if err := runStages(ctx, rc, st, judgementStages); err != nil {
		return Outcome{}, err
	}
	return st.outcome, nil
}

var judgementStages = []stage{
	{"IWI", stageJudgementIWI},
	{"IR", stageIR},
	{"MFP", stageMFP},
	{"MVP", stageMVP},
	{"TVA", stageTVA},
	{"OR", stageOR},
	{"TIA", stageTIA},
	{"OWI", stageOWI},
}

func stageJudgementIWI(ctx context.Context, rc RunContext, st *execState) error {
	jwi, ok := rc.Inference.WorkingInterpretation.(compiler.JudgementWI)
	if !ok {
		return fmt.Errorf("judgement: inference %s has no JudgementWI", rc.Inference.ID)
	}
	st.wi = jwi.ImperativeWI
	st.assertion = jwi.AssertionCondition
	return nil
}

// stageTIA is Truth-value Interpretation and Application: it replaces
// OR's raw output with the boolean result of applying the assertion's
// quantifier to the materialized target value(s).
func stageTIA(ctx context.Context, rc RunContext, st *execState) error {
	target, ok := st.materialized[st.assertion.Target]
	if !ok {
		target = st.result
	}
	actual := evaluateQuantifier(st.assertion.Quantifier, target)
	st.outcome.Output = refalgebra.Singleton(refalgebra.ConcreteElement(actual == st.assertion.Expected))
	return nil
}

// evaluateQuantifier reduces a materialized value to a single boolean per
// the "all"/"any"/"for-each" quantifiers spec.md §4.4.4 allows on a
// Judgement assertion; a scalar target is its own truth value.
func evaluateQuantifier(quantifier string, v interface{}) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		b, _ := v.(bool)
		return b
	}
	switch quantifier {
	case "any":
		for i := 0; i < rv.Len(); i++ {
			if b, ok := rv.Index(i).Interface().(bool); ok && b {
				return true
			}
		}
		return false
	case "all", "for-each":
		for i := 0; i < rv.Len(); i++ {
			if b, ok := rv.Index(i).Interface().(bool); !ok || !b {
				return false
			}
		}
		return true
	default:
		return false
	}
}

package sequence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normcode/internal/blackboard"
	"normcode/internal/compiler"
	"normcode/internal/paradigm"
	"normcode/internal/refalgebra"
)

func TestForDispatchesEveryKnownKind(t *testing.T) {
	kinds := []compiler.SequenceKind{
		compiler.Imperative, compiler.Judgement, compiler.Assigning,
		compiler.Grouping, compiler.Timing, compiler.Looping, compiler.Simple,
	}
	for _, k := range kinds {
		seq, err := For(k)
		require.NoError(t, err)
		assert.NotNil(t, seq)
	}
}

func TestForRejectsUnknownKind(t *testing.T) {
	_, err := For(compiler.SequenceKind(99))
	var uerr *UnknownSequenceKindError
	require.ErrorAs(t, err, &uerr)
}

func TestImperativeRunsPlainBodyFacultyWithoutParadigm(t *testing.T) {
	seq := imperativeSequence{}
	inf := &compiler.Inference{
		ID: "1.1",
		WorkingInterpretation: compiler.ImperativeWI{
			ValueOrder: map[string]int{"raw": 0},
		},
	}
	rc := RunContext{
		Inference: inf,
		Inputs: map[string]*refalgebra.Reference{
			"raw": refalgebra.Singleton(refalgebra.ConcreteElement(42)),
		},
	}
	out, err := seq.Run(context.Background(), rc)
	require.NoError(t, err)
	e := out.Output.Elements[0]
	v, _ := e.Value()
	assert.Equal(t, 42, v)
}

func TestImperativeRunsParadigmComposition(t *testing.T) {
	loader := &paradigm.MemLoader{Paradigms: map[string]*paradigm.Paradigm{
		"double": {
			ID:               "double",
			OutputFormat:     "o_Literal",
			CompositionSteps: []paradigm.Step{{Name: "doubled", Tool: "math.double", Args: []string{"$n"}}},
		},
	}}
	registry := paradigm.MapRegistry{
		"math.double": func(ctx context.Context, args []interface{}) (interface{}, error) {
			return args[0].(int) * 2, nil
		},
	}
	seq := imperativeSequence{}
	inf := &compiler.Inference{
		ID: "1.2",
		WorkingInterpretation: compiler.ImperativeWI{
			Paradigm:   "double",
			ValueOrder: map[string]int{"n": 0},
		},
	}
	rc := RunContext{
		Inference: inf,
		Loader:    loader,
		Registry:  registry,
		Inputs: map[string]*refalgebra.Reference{
			"n": refalgebra.Singleton(refalgebra.ConcreteElement(21)),
		},
	}
	out, err := seq.Run(context.Background(), rc)
	require.NoError(t, err)
	v, _ := out.Output.Elements[0].Value()
	assert.Equal(t, 42, v)
}

func TestJudgementAppliesQuantifierAndExpected(t *testing.T) {
	seq := judgementSequence{}
	inf := &compiler.Inference{
		ID: "1.3",
		WorkingInterpretation: compiler.JudgementWI{
			ImperativeWI: compiler.ImperativeWI{ValueOrder: map[string]int{"flag": 0}},
			AssertionCondition: compiler.AssertionCondition{
				Quantifier: "for-each",
				Target:     "flag",
				Expected:   true,
			},
		},
	}
	rc := RunContext{
		Inference: inf,
		Inputs: map[string]*refalgebra.Reference{
			"flag": refalgebra.Singleton(refalgebra.ConcreteElement(true)),
		},
	}
	out, err := seq.Run(context.Background(), rc)
	require.NoError(t, err)
	v, _ := out.Output.Elements[0].Value()
	assert.Equal(t, true, v)
}

func TestAssigningLiteralMarkerWrapsFaceValue(t *testing.T) {
	seq := assigningSequence{}
	inf := &compiler.Inference{
		WorkingInterpretation: compiler.AssigningWI{
			Marker:    compiler.AssignLiteral,
			FaceValue: "%(1)",
		},
	}
	out, err := seq.Run(context.Background(), RunContext{Inference: inf})
	require.NoError(t, err)
	v, _ := out.Output.Elements[0].Value()
	assert.Equal(t, "%(1)", v)
}

func TestAssigningAppendMarkerGrowsDestination(t *testing.T) {
	dest, err := refalgebra.New([]refalgebra.Axis{"item"}, refalgebra.Shape{1})
	require.NoError(t, err)
	require.NoError(t, refalgebra.Set(dest, refalgebra.ConcreteElement("a"), map[refalgebra.Axis]int{"item": 0}))
	src, err := refalgebra.New([]refalgebra.Axis{"item"}, refalgebra.Shape{1})
	require.NoError(t, err)
	require.NoError(t, refalgebra.Set(src, refalgebra.ConcreteElement("b"), map[refalgebra.Axis]int{"item": 0}))

	seq := assigningSequence{}
	inf := &compiler.Inference{
		WorkingInterpretation: compiler.AssigningWI{
			Marker:            compiler.AssignAppend,
			AssignSource:      "src",
			AssignDestination: "dest",
			ByAxes:            []string{"item"},
		},
	}
	rc := RunContext{
		Inference: inf,
		Inputs: map[string]*refalgebra.Reference{
			"dest": dest,
			"src":  src,
		},
	}
	out, err := seq.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Output.Shape[0])
}

func TestGroupingProducesCrossProductOutput(t *testing.T) {
	a, err := refalgebra.New([]refalgebra.Axis{"i"}, refalgebra.Shape{2})
	require.NoError(t, err)
	require.NoError(t, refalgebra.Set(a, refalgebra.ConcreteElement(1), map[refalgebra.Axis]int{"i": 0}))
	require.NoError(t, refalgebra.Set(a, refalgebra.ConcreteElement(2), map[refalgebra.Axis]int{"i": 1}))

	seq := groupingSequence{}
	inf := &compiler.Inference{
		WorkingInterpretation: compiler.GroupingWI{
			Marker:  compiler.GroupIn,
			Sources: []string{"a"},
		},
	}
	rc := RunContext{
		Inference: inf,
		Inputs:    map[string]*refalgebra.Reference{"a": a},
	}
	out, err := seq.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, refalgebra.Shape{2}, out.Output.Shape)
}

func TestTimingIfGateProceedsOnTrueCondition(t *testing.T) {
	seq := timingSequence{}
	inf := &compiler.Inference{
		WorkingInterpretation: compiler.TimingWI{Marker: compiler.TimingIf, Condition: "ready"},
	}
	rc := RunContext{
		Inference: inf,
		Inputs: map[string]*refalgebra.Reference{
			"ready": refalgebra.Singleton(refalgebra.ConcreteElement(true)),
		},
	}
	out, err := seq.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.False(t, out.Skip)
}

func TestTimingIfGateSkipsSubtreeOnFalseCondition(t *testing.T) {
	bb := blackboard.New([]string{"1.1.1", "1.1.2"})
	seq := timingSequence{}
	inf := &compiler.Inference{
		WorkingInterpretation: compiler.TimingWI{Marker: compiler.TimingIf, Condition: "ready"},
	}
	rc := RunContext{
		Inference:     inf,
		Blackboard:    bb,
		DescendantIDs: []string{"1.1.1", "1.1.2"},
		Inputs: map[string]*refalgebra.Reference{
			"ready": refalgebra.Singleton(refalgebra.ConcreteElement(false)),
		},
	}
	out, err := seq.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.True(t, out.Skip)
	for _, id := range []string{"1.1.1", "1.1.2"} {
		e, _ := bb.Get(id)
		assert.Equal(t, blackboard.CompletedSkipped, e.Status)
	}
}

func TestTimingIfBangNegatesCondition(t *testing.T) {
	seq := timingSequence{}
	inf := &compiler.Inference{
		WorkingInterpretation: compiler.TimingWI{Marker: compiler.TimingIfBang, Condition: "done"},
	}
	rc := RunContext{
		Inference: inf,
		Inputs: map[string]*refalgebra.Reference{
			"done": refalgebra.Singleton(refalgebra.ConcreteElement(false)),
		},
	}
	out, err := seq.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.False(t, out.Skip)
}

func TestLoopingAdvancesThenFinalizes(t *testing.T) {
	base, err := refalgebra.New([]refalgebra.Axis{"digit"}, refalgebra.Shape{2})
	require.NoError(t, err)
	require.NoError(t, refalgebra.Set(base, refalgebra.ConcreteElement(3), map[refalgebra.Axis]int{"digit": 0}))
	require.NoError(t, refalgebra.Set(base, refalgebra.ConcreteElement(7), map[refalgebra.Axis]int{"digit": 1}))

	ws := blackboard.NewWorkspace()
	seq := loopingSequence{}
	inf := &compiler.Inference{
		WorkingInterpretation: compiler.LoopingWI{
			LoopIndex:              "1.4",
			LoopBaseConcept:        "digits",
			CurrentLoopBaseConcept: "current",
			GroupBase:              "digit",
			ConceptToInfer:         "squared",
			InLoopConcept:          map[string]int{},
		},
	}

	rc0 := RunContext{Inference: inf, Workspace: ws, LoopIteration: 0,
		Inputs: map[string]*refalgebra.Reference{"digits": base}}
	out0, err := seq.Run(context.Background(), rc0)
	require.NoError(t, err)
	assert.True(t, out0.Continue)
	v0, _ := out0.Output.Elements[0].Value()
	assert.Equal(t, 3, v0)

	squared0 := refalgebra.Singleton(refalgebra.ConcreteElement(9))
	snap, _ := ws.Get("1.4", 0)
	snap["squared"] = squared0
	ws.Store("1.4", 0, snap)

	rc1 := RunContext{Inference: inf, Workspace: ws, LoopIteration: 1,
		Inputs: map[string]*refalgebra.Reference{"digits": base}}
	out1, err := seq.Run(context.Background(), rc1)
	require.NoError(t, err)
	assert.True(t, out1.Continue)

	squared1 := refalgebra.Singleton(refalgebra.ConcreteElement(49))
	snap1, _ := ws.Get("1.4", 1)
	snap1["squared"] = squared1
	ws.Store("1.4", 1, snap1)

	rcFinal := RunContext{Inference: inf, Workspace: ws, LoopIteration: 2,
		Inputs: map[string]*refalgebra.Reference{"digits": base}}
	outFinal, err := seq.Run(context.Background(), rcFinal)
	require.NoError(t, err)
	assert.False(t, outFinal.Continue)
	assert.Equal(t, refalgebra.Shape{2, 1}, outFinal.Output.Shape)
}

func TestSimplePassesThroughSoleInput(t *testing.T) {
	seq := simpleSequence{}
	ref := refalgebra.Singleton(refalgebra.ConcreteElement("x"))
	out, err := seq.Run(context.Background(), RunContext{Inputs: map[string]*refalgebra.Reference{"a": ref}})
	require.NoError(t, err)
	v, _ := out.Output.Elements[0].Value()
	assert.Equal(t, "x", v)
}

func TestSimpleRejectsMultipleInputs(t *testing.T) {
	seq := simpleSequence{}
	_, err := seq.Run(context.Background(), RunContext{Inputs: map[string]*refalgebra.Reference{
		"a": refalgebra.Singleton(refalgebra.ConcreteElement(1)),
		"b": refalgebra.Singleton(refalgebra.ConcreteElement(2)),
	}})
	assert.Error(t, err)
}

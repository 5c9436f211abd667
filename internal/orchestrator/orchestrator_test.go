package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"normcode/internal/blackboard"
	"normcode/internal/compiler"
	"normcode/internal/refalgebra"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newChainPlan() (*compiler.ConceptRepo, *compiler.InferenceRepo) {
	concepts := compiler.NewConceptRepo()
	concepts.Concepts["c-a"] = &compiler.Concept{ID: "c-a", Name: "a"}
	concepts.Concepts["c-b"] = &compiler.Concept{ID: "c-b", Name: "b"}
	concepts.Concepts["c-c"] = &compiler.Concept{ID: "c-c", Name: "c"}

	inferences := compiler.NewInferenceRepo()
	inferences.Inferences["1"] = &compiler.Inference{
		ID:                    "1",
		OutputConceptID:       "c-b",
		ValueConceptIDs:       []string{"c-a"},
		SequenceKind:          compiler.Simple,
		WorkingInterpretation: compiler.SimpleWI{},
	}
	inferences.Inferences["2"] = &compiler.Inference{
		ID:                    "2",
		OutputConceptID:       "c-c",
		ValueConceptIDs:       []string{"c-b"},
		SequenceKind:          compiler.Simple,
		WorkingInterpretation: compiler.SimpleWI{},
	}
	return concepts, inferences
}

func TestRunCompletesAChainOfInferences(t *testing.T) {
	concepts, inferences := newChainPlan()
	seed := map[string]*refalgebra.Reference{
		"c-a": refalgebra.Singleton(refalgebra.ConcreteElement(5)),
	}
	orch := New(concepts, inferences, nil, nil, nil, seed, Config{MaxConcurrentFaculty: 2})

	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Completed, outcome)

	refs := orch.References()
	v, _ := refs["c-c"].Elements[0].Value()
	assert.Equal(t, 5, v)

	snapshot := orch.Metrics()
	assert.Equal(t, 2, snapshot.Completions)
}

func TestRunReturnsCancelledOnContextCancellation(t *testing.T) {
	concepts, inferences := newChainPlan()
	orch := New(concepts, inferences, nil, nil, nil, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := orch.Run(ctx)
	assert.Equal(t, Cancelled, outcome)
	assert.Error(t, err)
}

func TestRunStallsOnACircularDependency(t *testing.T) {
	concepts := compiler.NewConceptRepo()
	concepts.Concepts["c-x"] = &compiler.Concept{ID: "c-x", Name: "x"}
	concepts.Concepts["c-y"] = &compiler.Concept{ID: "c-y", Name: "y"}

	inferences := compiler.NewInferenceRepo()
	inferences.Inferences["1"] = &compiler.Inference{
		ID: "1", OutputConceptID: "c-x", ValueConceptIDs: []string{"c-y"},
		SequenceKind: compiler.Simple, WorkingInterpretation: compiler.SimpleWI{},
	}
	inferences.Inferences["2"] = &compiler.Inference{
		ID: "2", OutputConceptID: "c-y", ValueConceptIDs: []string{"c-x"},
		SequenceKind: compiler.Simple, WorkingInterpretation: compiler.SimpleWI{},
	}

	orch := New(concepts, inferences, nil, nil, nil, nil, Config{StallCycles: 2})

	outcome, err := orch.Run(context.Background())
	assert.Equal(t, Stalled, outcome)
	assert.Error(t, err)
}

func TestRunFailsWhenMaxCyclesExceeded(t *testing.T) {
	concepts, inferences := newChainPlan()
	seed := map[string]*refalgebra.Reference{
		"c-a": refalgebra.Singleton(refalgebra.ConcreteElement(5)),
	}
	orch := New(concepts, inferences, nil, nil, nil, seed, Config{MaxCycles: 1})

	outcome, err := orch.Run(context.Background())
	assert.Equal(t, Failed, outcome)
	assert.Error(t, err)
}

func TestDescendantsOfFindsFlowIndexSubtree(t *testing.T) {
	repo := compiler.NewInferenceRepo()
	for _, id := range []string{"1", "1.1", "1.1.1", "1.2", "2"} {
		repo.Inferences[id] = &compiler.Inference{ID: id}
	}
	assert.Equal(t, []string{"1.1", "1.1.1", "1.2"}, descendantsOf("1", repo))
}

func TestReadySelectorGatesOnProducerStatus(t *testing.T) {
	bb := blackboard.New([]string{"1", "2"})
	producerOf := map[string]string{"c-b": "1"}
	inferences := compiler.NewInferenceRepo()
	inferences.Inferences["1"] = &compiler.Inference{ID: "1", ValueConceptIDs: []string{"c-a"}}
	inferences.Inferences["2"] = &compiler.Inference{ID: "2", ValueConceptIDs: []string{"c-b"}}

	ready := ReadySelector(inferences, compiler.NewConceptRepo(), bb, producerOf)
	assert.Equal(t, []string{"1"}, ready, "2 depends on 1's unproduced output")

	require.NoError(t, bb.Transition("1", blackboard.Ready, 1))
	require.NoError(t, bb.Transition("1", blackboard.InProgress, 1))
	require.NoError(t, bb.Transition("1", blackboard.Completed, 1))

	ready = ReadySelector(inferences, compiler.NewConceptRepo(), bb, producerOf)
	assert.Equal(t, []string{"2"}, ready)
}

func TestOrderReadyPutsLoopContinuationsFirst(t *testing.T) {
	ordered := OrderReady([]string{"1.2", "1.1", "1.3"}, map[string]bool{"1.3": true})
	assert.Equal(t, []string{"1.3", "1.1", "1.2"}, ordered)
}

func TestStallDetectorTripsAfterLimit(t *testing.T) {
	d := newStallDetector(3)
	assert.False(t, d.tick(false))
	assert.False(t, d.tick(false))
	assert.True(t, d.tick(false))
}

func TestStallDetectorResetsOnProgress(t *testing.T) {
	d := newStallDetector(2)
	assert.False(t, d.tick(false))
	assert.False(t, d.tick(true))
	assert.False(t, d.tick(false))
}

func TestCancelTokenRecordsReason(t *testing.T) {
	ctx, token := NewCancelToken(context.Background())
	reason := assert.AnError
	token.Cancel(reason)

	<-ctx.Done()
	assert.Equal(t, reason, Reason(ctx))
}

// newLoopingPlan builds a Looping inference "1" over a 3-element base
// concept plus one descendant "1.1" that echoes the current element
// through, mirroring how a real plan's loop body would feed back into
// ConceptToInfer.
func newLoopingPlan() (*compiler.ConceptRepo, *compiler.InferenceRepo) {
	concepts := compiler.NewConceptRepo()
	concepts.Concepts["c-base"] = &compiler.Concept{ID: "c-base", Name: "items"}
	concepts.Concepts["c-cur"] = &compiler.Concept{ID: "c-cur", Name: "item"}
	concepts.Concepts["c-out"] = &compiler.Concept{ID: "c-out", Name: "doubled"}
	concepts.Concepts["c-joined"] = &compiler.Concept{ID: "c-joined", Name: "results"}

	inferences := compiler.NewInferenceRepo()
	inferences.Inferences["1"] = &compiler.Inference{
		ID:              "1",
		OutputConceptID: "c-joined",
		ValueConceptIDs: []string{"c-base"},
		SequenceKind:    compiler.Looping,
		WorkingInterpretation: compiler.LoopingWI{
			LoopIndex:              "loop-1",
			LoopBaseConcept:        "items",
			CurrentLoopBaseConcept: "item",
			GroupBase:              "items",
			ConceptToInfer:         "doubled",
			InLoopConcept:          map[string]int{},
		},
	}
	inferences.Inferences["1.1"] = &compiler.Inference{
		ID:              "1.1",
		OutputConceptID: "c-out",
		ValueConceptIDs: []string{"c-cur"},
		SequenceKind:    compiler.Simple,
		WorkingInterpretation: compiler.SimpleWI{},
	}
	return concepts, inferences
}

func TestRunFoldsLoopingDescendantOutputAcrossIterations(t *testing.T) {
	concepts, inferences := newLoopingPlan()
	base := &refalgebra.Reference{
		Axes:  []refalgebra.Axis{"n"},
		Shape: refalgebra.Shape{3},
		Elements: []refalgebra.Element{
			refalgebra.ConcreteElement(1),
			refalgebra.ConcreteElement(2),
			refalgebra.ConcreteElement(3),
		},
	}
	seed := map[string]*refalgebra.Reference{"c-base": base}

	orch := New(concepts, inferences, nil, nil, nil, seed, Config{})
	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Completed, outcome)

	joined := orch.References()["c-joined"]
	require.NotNil(t, joined)
	require.Len(t, joined.Elements, 3)
	for i, want := range []int{1, 2, 3} {
		got, ok := joined.Elements[i].Value()
		require.True(t, ok)
		assert.Equal(t, want, got, "iteration %d's descendant output must be folded into the final join", i)
	}

	snapshot := orch.Metrics()
	assert.Equal(t, 3, snapshot.Iterations)
}

func TestCancelTokenDoesNotLeakAfterTimeout(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	ctx, token := NewCancelToken(parent)
	defer token.Cancel(nil)
	<-ctx.Done()
	assert.Error(t, Reason(ctx))
}

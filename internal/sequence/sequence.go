// Package sequence implements the seven fixed agent-sequence pipelines of
// spec.md §4.6, one file per kind, mirroring the teacher's one-Go-file-
// per-agent-kind layout under internal/shards/{coder,tester,reviewer,
// researcher,system} behind a common interface and factory dispatch.
package sequence

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"normcode/internal/blackboard"
	"normcode/internal/compiler"
	"normcode/internal/paradigm"
	"normcode/internal/perception"
	"normcode/internal/refalgebra"
)

// RunContext carries everything a sequence needs to execute one inference.
// Concepts are addressed by name (matching WorkingInterpretation's own
// keys) rather than by repository ID, since a sequence only ever reasons
// about the concepts local to its own inference.
type RunContext struct {
	Inference     *compiler.Inference
	OutputConcept string
	Inputs        map[string]*refalgebra.Reference
	Router        *perception.PerceptionRouter
	Loader        paradigm.Loader
	Registry      paradigm.FacultyRegistry
	Blackboard    *blackboard.Blackboard
	Workspace     *blackboard.Workspace
	FacultySem    *semaphore.Weighted // bounds concurrent PerceptionRouter.Transmute calls; nil means unbounded
	DescendantIDs []string            // for Timing: ids of this inference's subtree, flow-index order
	LoopIteration int
}

// Outcome is what running a sequence produces.
type Outcome struct {
	Output     *refalgebra.Reference // bound externally to RunContext.OutputConcept
	Skip       bool
	SkippedIDs []string
	Continue   bool // Looping only: whether the orchestrator should schedule another iteration
}

// Sequence is the common interface every one of the seven pipelines
// implements.
type Sequence interface {
	Run(ctx context.Context, rc RunContext) (Outcome, error)
}

// UnknownSequenceKindError is raised by For on a kind outside the closed
// enum, rather than silently falling through to a default pipeline.
type UnknownSequenceKindError struct{ Kind compiler.SequenceKind }

func (e *UnknownSequenceKindError) Error() string {
	return fmt.Sprintf("sequence: unknown sequence kind %v", e.Kind)
}

// For dispatches a SequenceKind to its Sequence implementation.
func For(kind compiler.SequenceKind) (Sequence, error) {
	switch kind {
	case compiler.Imperative:
		return imperativeSequence{}, nil
	case compiler.Judgement:
		return judgementSequence{}, nil
	case compiler.Assigning:
		return assigningSequence{}, nil
	case compiler.Grouping:
		return groupingSequence{}, nil
	case compiler.Timing:
		return timingSequence{}, nil
	case compiler.Looping:
		return loopingSequence{}, nil
	case compiler.Simple:
		return simpleSequence{}, nil
	default:
		return nil, &UnknownSequenceKindError{Kind: kind}
	}
}

// stage is one named step of a sequence's fixed pipeline. Stages mutate a
// shared execState; a stage returning an error aborts the remaining
// stages, matching the teacher's shard pipeline short-circuit-on-error
// discipline.
type stage struct {
	name string
	run  func(ctx context.Context, rc RunContext, st *execState) error
}

// execState threads intermediate results between a sequence's stages.
type execState struct {
	wi           compiler.WorkingInterpretation
	materialized map[string]interface{}
	verticalCtx  map[string]interface{}
	phi          paradigm.Phi
	result       interface{}
	outcome      Outcome
	assertion    compiler.AssertionCondition // Judgement only
}

func runStages(ctx context.Context, rc RunContext, st *execState, stages []stage) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.run(ctx, rc, st); err != nil {
			return fmt.Errorf("sequence: stage %q: %w", s.name, err)
		}
	}
	return nil
}

// materializeInputs runs MVP on the first element of each Reference in
// rc.Inputs: a Sign is transmuted through the PerceptionRouter, the only
// path sequences touch I/O through (spec.md §4.2); a concrete value is
// taken as is; a Skip or empty input is left out. Each Transmute call is bounded by
// rc.FacultySem, since a body faculty may reach an external service.
func materializeInputs(ctx context.Context, rc RunContext) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(rc.Inputs))
	for name, ref := range rc.Inputs {
		if ref == nil || len(ref.Elements) == 0 {
			continue
		}
		e := ref.Elements[0]
		switch {
		case e.IsSkip():
			continue
		case e.IsSign():
			sign, _ := e.SignValue()
			ps, ok := sign.(perception.Sign)
			if !ok {
				return nil, fmt.Errorf("sequence: sign element for %q is not a perception.Sign", name)
			}
			if rc.Router == nil {
				return nil, fmt.Errorf("sequence: no PerceptionRouter configured to materialize %q", name)
			}
			v, err := transmute(ctx, rc, ps)
			if err != nil {
				return nil, err
			}
			out[name] = v
		default:
			v, _ := e.Value()
			out[name] = v
		}
	}
	return out, nil
}

// transmute acquires rc.FacultySem (if configured) before calling through
// to the PerceptionRouter and releases it once Transmute returns.
func transmute(ctx context.Context, rc RunContext, sign perception.Sign) (interface{}, error) {
	if rc.FacultySem != nil {
		if err := rc.FacultySem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer rc.FacultySem.Release(1)
	}
	return rc.Router.Transmute(ctx, sign)
}
